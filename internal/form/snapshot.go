// Package form holds the mutable listing snapshot and the pure functions
// that read it: the conditional visibility evaluator and the render plan
// that maps resolved fields onto a closed set of controls.
package form

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/matthewbaird/listingform/internal/collect"
)

// Well-known snapshot keys for the taxonomy selection.
const (
	KeyPropertyTypeID   = "propertyTypeId"
	KeyPropertyTypeName = "propertyTypeName"
	KeySubTypeID        = "subTypeId"
	KeySubTypeName      = "subTypeName"
)

// Snapshot is the single mutable aggregate of a listing being edited. All
// scalar, boolean and date attributes live in one map keyed by field name;
// amenities and nearby places have their own collectors.
//
// A Snapshot has exactly one owner (the wizard). It is not safe for
// concurrent use.
type Snapshot struct {
	values       map[string]any
	Amenities    collect.AmenitySet
	NearbyPlaces collect.NearbyPlaces
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{values: make(map[string]any)}
}

// Get returns the value of a field. A field set to nil counts as missing.
func (s *Snapshot) Get(name string) (any, bool) {
	v, ok := s.values[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Set stores a value; nil deletes the field.
func (s *Snapshot) Set(name string, v any) {
	if v == nil {
		delete(s.values, name)
		return
	}
	s.values[name] = v
}

// Delete removes a field.
func (s *Snapshot) Delete(name string) {
	delete(s.values, name)
}

// Keys returns the names of all set fields in sorted order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a shallow copy of the scalar fields.
func (s *Snapshot) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{values: s.Values()}
	c.Amenities.Set(s.Amenities.IDs())
	c.NearbyPlaces.Set(s.NearbyPlaces.List())
	return c
}

// String returns the trimmed string form of a field, or "".
func (s *Snapshot) String(name string) string {
	v, ok := s.Get(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(Stringify(v))
}

// Number returns a field as a float. Numbers, numeric strings and
// number-with-unit objects ({"value": 1200, "unit": "sqft"}) are accepted.
func (s *Snapshot) Number(name string) (float64, bool) {
	v, ok := s.Get(name)
	if !ok {
		return 0, false
	}
	return ToNumber(v)
}

// Bool returns a field as a boolean.
func (s *Snapshot) Bool(name string) bool {
	v, ok := s.Get(name)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	}
	return false
}

// PropertyType returns the selected property type name (or id when no
// name was supplied).
func (s *Snapshot) PropertyType() string {
	if n := s.String(KeyPropertyTypeName); n != "" {
		return n
	}
	return s.String(KeyPropertyTypeID)
}

// SubType returns the selected sub-type name (or id).
func (s *Snapshot) SubType() string {
	if n := s.String(KeySubTypeName); n != "" {
		return n
	}
	return s.String(KeySubTypeID)
}

// ToNumber converts the value shapes a client may send into a float.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case map[string]any:
		inner, ok := n["value"]
		if !ok || inner == nil {
			return 0, false
		}
		return ToNumber(inner)
	}
	return 0, false
}

// Stringify renders a scalar value the way a form input would show it.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// IsEmpty reports whether a value counts as "not filled in".
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]any:
		if len(x) == 0 {
			return true
		}
		if inner, ok := x["value"]; ok {
			return IsEmpty(inner)
		}
		return false
	}
	return false
}

// Truthy mirrors how a checkbox-or-count dependency is read: true, a
// non-zero number, a non-empty list or a non-empty string other than
// "false"/"0".
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		t := strings.TrimSpace(strings.ToLower(x))
		return t != "" && t != "false" && t != "0"
	case []any, []string, map[string]any:
		return !IsEmpty(x)
	}
	if n, ok := ToNumber(v); ok {
		return n != 0
	}
	return true
}
