package catalog

import "strings"

// basicInfoFields belong to the basic, location and media steps. They are
// never part of a category's field set even when the taxonomy lists them.
var basicInfoFields = map[string]bool{
	"title":            true,
	"description":      true,
	"price":            true,
	"listingType":      true,
	"address":          true,
	"city":             true,
	"locality":         true,
	"state":            true,
	"pincode":          true,
	"latitude":         true,
	"longitude":        true,
	"propertyTypeId":   true,
	"propertyTypeName": true,
	"subTypeId":        true,
	"subTypeName":      true,
	"videoUrl":         true,
	"virtualTourUrl":   true,
}

// IsBasicInfoField reports whether name is owned by a fixed wizard step
// rather than by the taxonomy.
func IsBasicInfoField(name string) bool {
	return basicInfoFields[name]
}

// NormalizeKey turns a display name such as "Independent House" or
// "co-working" into its taxonomy key ("INDEPENDENT_HOUSE", "CO_WORKING").
func NormalizeKey(s string) string {
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToUpper(strings.Join(strings.Fields(s), "_"))
}

// Resolve returns the ordered category-specific field names for a property
// type and sub-type. Unknown keys yield an empty list: the category simply
// has no specific fields yet. The returned slice is a fresh copy.
func (c *Catalog) Resolve(propertyType, subType string) []string {
	subs, ok := c.taxonomy[NormalizeKey(propertyType)]
	if !ok {
		return []string{}
	}
	names, ok := subs[NormalizeKey(subType)]
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if basicInfoFields[n] {
			continue
		}
		out = append(out, n)
	}
	return out
}

// HasCategory reports whether the taxonomy knows the type/sub-type pair.
func (c *Catalog) HasCategory(propertyType, subType string) bool {
	subs, ok := c.taxonomy[NormalizeKey(propertyType)]
	if !ok {
		return false
	}
	_, ok = subs[NormalizeKey(subType)]
	return ok
}
