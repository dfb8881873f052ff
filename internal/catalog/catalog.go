// Package catalog provides the read-only listing catalog: field metadata,
// conditional visibility rules, the property-type taxonomy, amenities and
// cities. The catalog is defined in CUE (catalog.cue), compiled and checked
// against its own definitions once at startup, and never mutated afterwards.
// A *Catalog is safe for concurrent read access.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/matthewbaird/listingform/internal/types"
)

//go:embed catalog.cue
var source []byte

// document mirrors the top-level shape of catalog.cue.
type document struct {
	Fields        map[string]types.FieldMetadata  `json:"fields"`
	Rules         map[string]types.VisibilityRule `json:"rules"`
	PropertyTypes []propertyTypeDoc               `json:"propertyTypes"`
	Amenities     []types.Amenity                 `json:"amenities"`
	Cities        []types.City                    `json:"cities"`
}

type propertyTypeDoc struct {
	Key      string       `json:"key"`
	Label    string       `json:"label"`
	SubTypes []subTypeDoc `json:"subTypes"`
}

type subTypeDoc struct {
	Key    string   `json:"key"`
	Label  string   `json:"label"`
	Fields []string `json:"fields"`
}

// Catalog holds every static lookup table the form engine consults.
type Catalog struct {
	fields         map[string]types.FieldMetadata
	rules          map[string]types.VisibilityRule
	taxonomy       map[string]map[string][]string // TYPE -> SUB_TYPE -> field names
	propertyTypes  []types.PropertyType
	categoryFields map[string]bool
	amenities      []types.Amenity
	amenityByID    map[string]types.Amenity
	cities         []types.City
}

// Load compiles the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(source)
}

// MustLoad is Load for process startup and tests; it panics on a broken
// embedded catalog.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse compiles CUE catalog source. The source must satisfy the
// definitions declared in catalog.cue.
func Parse(src []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename("catalog.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compiling catalog: %w", err)
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("validating catalog: %w", err)
	}

	var doc document
	if err := v.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return build(doc)
}

func build(doc document) (*Catalog, error) {
	c := &Catalog{
		fields:         doc.Fields,
		rules:          doc.Rules,
		taxonomy:       make(map[string]map[string][]string, len(doc.PropertyTypes)),
		categoryFields: make(map[string]bool),
		amenities:      doc.Amenities,
		amenityByID:    make(map[string]types.Amenity, len(doc.Amenities)),
		cities:         doc.Cities,
	}
	if c.fields == nil {
		c.fields = map[string]types.FieldMetadata{}
	}
	if c.rules == nil {
		c.rules = map[string]types.VisibilityRule{}
	}

	for _, pt := range doc.PropertyTypes {
		if _, dup := c.taxonomy[pt.Key]; dup {
			return nil, fmt.Errorf("duplicate property type %q", pt.Key)
		}
		subs := make(map[string][]string, len(pt.SubTypes))
		entry := types.PropertyType{Key: pt.Key, Label: pt.Label}
		for _, st := range pt.SubTypes {
			if _, dup := subs[st.Key]; dup {
				return nil, fmt.Errorf("duplicate sub-type %s/%s", pt.Key, st.Key)
			}
			subs[st.Key] = st.Fields
			entry.SubTypes = append(entry.SubTypes, types.SubType{Key: st.Key, Label: st.Label})
			for _, f := range st.Fields {
				if !basicInfoFields[f] {
					c.categoryFields[f] = true
				}
			}
		}
		c.taxonomy[pt.Key] = subs
		c.propertyTypes = append(c.propertyTypes, entry)
	}

	for dependent, rule := range c.rules {
		if rule.DependsOn == dependent {
			return nil, fmt.Errorf("rule for %q depends on itself", dependent)
		}
	}

	for _, a := range c.amenities {
		if _, dup := c.amenityByID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate amenity %q", a.ID)
		}
		c.amenityByID[a.ID] = a
	}
	return c, nil
}

// Field returns the metadata registered for name. A missing entry is a
// legal state; callers fall back to a plain text control.
func (c *Catalog) Field(name string) (types.FieldMetadata, bool) {
	m, ok := c.fields[name]
	return m, ok
}

// Rule returns the visibility rule for a dependent field.
func (c *Catalog) Rule(name string) (types.VisibilityRule, bool) {
	r, ok := c.rules[name]
	return r, ok
}

// FieldNames returns every registered field name in sorted order.
func (c *Catalog) FieldNames() []string {
	names := make([]string, 0, len(c.fields))
	for n := range c.fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PropertyTypes returns the taxonomy in display order.
func (c *Catalog) PropertyTypes() []types.PropertyType {
	return c.propertyTypes
}

// IsCategoryField reports whether name belongs to at least one category's
// field list, i.e. whether a taxonomy change can make it irrelevant.
func (c *Catalog) IsCategoryField(name string) bool {
	return c.categoryFields[name]
}

// Amenities returns the amenity catalog in display order.
func (c *Catalog) Amenities() []types.Amenity {
	return c.amenities
}

// Amenity looks up one amenity by id.
func (c *Catalog) Amenity(id string) (types.Amenity, bool) {
	a, ok := c.amenityByID[id]
	return a, ok
}

// AmenityCategories returns the distinct amenity categories in first-seen order.
func (c *Catalog) AmenityCategories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range c.amenities {
		if !seen[a.Category] {
			seen[a.Category] = true
			out = append(out, a.Category)
		}
	}
	return out
}

// Cities returns the cities offered by the location step.
func (c *Catalog) Cities() []types.City {
	return c.cities
}

// Localities returns the localities of a city, matched case-insensitively.
func (c *Catalog) Localities(city string) ([]string, bool) {
	for _, ct := range c.cities {
		if strings.EqualFold(ct.Name, city) {
			return ct.Localities, true
		}
	}
	return nil, false
}

// CategoryFields returns every category-specific field name in sorted order.
func (c *Catalog) CategoryFields() []string {
	out := make([]string, 0, len(c.categoryFields))
	for n := range c.categoryFields {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
