package form

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/matthewbaird/listingform/internal/types"
)

// Control is the closed set of widgets a field renders as. Every
// types.FieldType maps to exactly one variant; FallbackControl covers field
// names with no registered metadata.
type Control interface {
	Kind() string
	control()
}

// TextControl is a single-line input.
type TextControl struct {
	Placeholder string `json:"placeholder,omitempty"`
}

// TextareaControl is a multi-line input.
type TextareaControl struct {
	Placeholder string `json:"placeholder,omitempty"`
}

// NumberControl is a numeric input with an optional lower bound.
type NumberControl struct {
	Min *float64 `json:"min,omitempty"`
}

// CheckboxControl is a yes/no toggle.
type CheckboxControl struct{}

// SelectControl picks one of Options.
type SelectControl struct {
	Options []string `json:"options"`
}

// MultiSelectControl picks any number of Options.
type MultiSelectControl struct {
	Options []string `json:"options"`
}

// MultiTagControl accepts free tags; Suggestions seed the picker.
type MultiTagControl struct {
	Suggestions []string `json:"suggestions,omitempty"`
}

// NumberWithUnitControl is a number paired with one of Units.
type NumberWithUnitControl struct {
	Units []string `json:"units"`
	Min   *float64 `json:"min,omitempty"`
}

// DateControl is a calendar date (YYYY-MM-DD).
type DateControl struct{}

// PlotDimensionsControl captures length x width in one of Units.
type PlotDimensionsControl struct {
	Units []string `json:"units"`
}

// FileUploadControl accepts files of the listed MIME types.
type FileUploadControl struct {
	Accept []string `json:"accept"`
}

// FallbackControl is a plain text input for unregistered field names.
type FallbackControl struct{}

func (TextControl) Kind() string           { return string(types.FieldText) }
func (TextareaControl) Kind() string       { return string(types.FieldTextarea) }
func (NumberControl) Kind() string         { return string(types.FieldNumber) }
func (CheckboxControl) Kind() string       { return string(types.FieldCheckbox) }
func (SelectControl) Kind() string         { return string(types.FieldSelect) }
func (MultiSelectControl) Kind() string    { return string(types.FieldMultiSelect) }
func (MultiTagControl) Kind() string       { return string(types.FieldMultiTag) }
func (NumberWithUnitControl) Kind() string { return string(types.FieldNumberWithUnit) }
func (DateControl) Kind() string           { return string(types.FieldDate) }
func (PlotDimensionsControl) Kind() string { return string(types.FieldPlotDimensions) }
func (FileUploadControl) Kind() string     { return string(types.FieldFileUpload) }
func (FallbackControl) Kind() string       { return "fallback" }

func (TextControl) control()           {}
func (TextareaControl) control()       {}
func (NumberControl) control()         {}
func (CheckboxControl) control()       {}
func (SelectControl) control()         {}
func (MultiSelectControl) control()    {}
func (MultiTagControl) control()       {}
func (NumberWithUnitControl) control() {}
func (DateControl) control()           {}
func (PlotDimensionsControl) control() {}
func (FileUploadControl) control()     {}
func (FallbackControl) control()       {}

// uploadAccept is what a file-upload field inside the details step accepts.
var uploadAccept = []string{"application/pdf", "image/jpeg", "image/png"}

// ControlFor maps field metadata onto its control. ok=false (no registered
// metadata) always yields FallbackControl.
func ControlFor(meta types.FieldMetadata, ok bool) Control {
	if !ok {
		return FallbackControl{}
	}
	switch meta.Type {
	case types.FieldText:
		return TextControl{Placeholder: meta.Placeholder}
	case types.FieldTextarea:
		return TextareaControl{Placeholder: meta.Placeholder}
	case types.FieldNumber:
		return NumberControl{Min: meta.Min}
	case types.FieldCheckbox:
		return CheckboxControl{}
	case types.FieldSelect:
		return SelectControl{Options: meta.Options}
	case types.FieldMultiSelect:
		return MultiSelectControl{Options: meta.Options}
	case types.FieldMultiTag:
		return MultiTagControl{Suggestions: meta.Options}
	case types.FieldNumberWithUnit:
		return NumberWithUnitControl{Units: meta.Units, Min: meta.Min}
	case types.FieldDate:
		return DateControl{}
	case types.FieldPlotDimensions:
		return PlotDimensionsControl{Units: meta.Units}
	case types.FieldFileUpload:
		return FileUploadControl{Accept: uploadAccept}
	default:
		return FallbackControl{}
	}
}

var titleCaser = cases.Title(language.English)

// DeriveLabel turns a camel-case field name into a display label:
// "furnishingStatus" becomes "Furnishing Status".
func DeriveLabel(name string) string {
	var words []string
	var cur []rune
	runes := []rune(name)
	for i, r := range runes {
		if r == '_' || r == '-' || r == ' ' {
			if len(cur) > 0 {
				words = append(words, string(cur))
				cur = nil
			}
			continue
		}
		boundary := unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1])))
		if boundary && len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return titleCaser.String(strings.Join(words, " "))
}
