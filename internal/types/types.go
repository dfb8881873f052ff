// Package types provides the Go structs shared by the listing form engine:
// field metadata loaded from the CUE catalog, attachment records, nearby
// places and the persisted property record used for edit-mode hydration.
package types

import (
	"encoding/json"
	"time"
)

// FieldType is the closed set of controls a listing field can render as.
type FieldType string

const (
	FieldText           FieldType = "text"
	FieldTextarea       FieldType = "textarea"
	FieldNumber         FieldType = "number"
	FieldCheckbox       FieldType = "checkbox"
	FieldSelect         FieldType = "select"
	FieldMultiSelect    FieldType = "multi-select"
	FieldMultiTag       FieldType = "multi-tag"
	FieldNumberWithUnit FieldType = "number-with-unit"
	FieldDate           FieldType = "date"
	FieldPlotDimensions FieldType = "plot-dimensions"
	FieldFileUpload     FieldType = "file-upload"
)

// FieldTypes lists every FieldType in declaration order.
var FieldTypes = []FieldType{
	FieldText, FieldTextarea, FieldNumber, FieldCheckbox, FieldSelect,
	FieldMultiSelect, FieldMultiTag, FieldNumberWithUnit, FieldDate,
	FieldPlotDimensions, FieldFileUpload,
}

// Valid reports whether ft is one of the known field types.
func (ft FieldType) Valid() bool {
	for _, known := range FieldTypes {
		if ft == known {
			return true
		}
	}
	return false
}

// Numeric reports whether values of this type carry a number.
func (ft FieldType) Numeric() bool {
	return ft == FieldNumber || ft == FieldNumberWithUnit
}

// FieldMetadata describes one potential form field. Entries are immutable
// once the catalog is loaded.
type FieldMetadata struct {
	Type        FieldType `json:"type"`
	Label       string    `json:"label"`
	Required    bool      `json:"required,omitempty"`
	Options     []string  `json:"options,omitempty"` // select, multi-select, multi-tag
	Units       []string  `json:"units,omitempty"`   // number-with-unit, plot-dimensions
	Min         *float64  `json:"min,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
}

// Visibility rule operators.
const (
	OpEq     = "eq"
	OpNeq    = "neq"
	OpIn     = "in"
	OpNotIn  = "not_in"
	OpTruthy = "truthy"
	OpEmpty  = "empty"
)

// VisibilityRule shows a dependent field only while another field's value
// satisfies the operator.
type VisibilityRule struct {
	DependsOn string   `json:"dependsOn"`
	Operator  string   `json:"operator"`
	Value     string   `json:"value,omitempty"`
	Values    []string `json:"values,omitempty"`
}

// SubType is one entry of the second taxonomy level.
type SubType struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// PropertyType is one entry of the first taxonomy level with its sub-types
// in display order.
type PropertyType struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	SubTypes []SubType `json:"subTypes"`
}

// Amenity is one entry of the fixed amenity catalog.
type Amenity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Icon     string `json:"icon,omitempty"`
}

// City groups the localities offered by the location step.
type City struct {
	Name       string   `json:"name"`
	State      string   `json:"state"`
	Localities []string `json:"localities"`
}

// File is an uploaded file body held in memory until submission.
type File struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // MIME type as declared by the client
	Size    int64  `json:"size"`
	Content []byte `json:"-"`
}

// ImageAttachment is one listing photo. File is set for uploads that have
// not been persisted yet (paired with a transient Preview); URL and Key are
// set once persisted.
type ImageAttachment struct {
	File        *File  `json:"file,omitempty"`
	URL         string `json:"url,omitempty"`
	Preview     string `json:"preview,omitempty"`
	Caption     string `json:"caption,omitempty"`
	Order       int    `json:"order"`
	IsCover     bool   `json:"isCover"`
	IsFloorPlan bool   `json:"isFloorPlan"`
	Key         string `json:"key,omitempty"`
}

// Persisted reports whether the image already lives in the backend.
func (a ImageAttachment) Persisted() bool {
	return a.File == nil && a.URL != ""
}

// DocumentAttachment is one supporting document (brochure, title deed, ...).
type DocumentAttachment struct {
	File *File  `json:"file,omitempty"`
	URL  string `json:"url,omitempty"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// NearbyPlace is a free-form point of interest near the property.
type NearbyPlace struct {
	Name     string `json:"name"`
	Distance string `json:"distance"` // free text, e.g. "500m"
	Category string `json:"category"`
	Icon     string `json:"icon,omitempty"`
}

// PersistedImage is an image as returned by the persistence collaborator.
type PersistedImage struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	Caption     string `json:"caption,omitempty"`
	Order       int    `json:"order"`
	IsCover     bool   `json:"isCover"`
	IsFloorPlan bool   `json:"isFloorPlan"`
}

// PersistedDocument is a document as returned by the persistence collaborator.
type PersistedDocument struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// PropertyRecord is one stored listing, the source for edit-mode hydration.
type PropertyRecord struct {
	ID           string              `json:"id"`
	Fields       map[string]any      `json:"fields"`
	Images       []PersistedImage    `json:"images"`
	Documents    []PersistedDocument `json:"documents"`
	Amenities    []string            `json:"amenities"`
	NearbyPlaces []NearbyPlace       `json:"nearbyPlaces"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// ActivityEntry is one wizard lifecycle event as kept in the activity log.
type ActivityEntry struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	WizardID   string          `json:"wizardId"`
	PropertyID string          `json:"propertyId,omitempty"`
	Step       string          `json:"step,omitempty"`
	Summary    string          `json:"summary"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
