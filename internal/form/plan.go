package form

import "github.com/matthewbaird/listingform/internal/types"

// Schema is the read-only view of the catalog the form layer needs.
type Schema interface {
	RuleSource
	Field(name string) (types.FieldMetadata, bool)
	Resolve(propertyType, subType string) []string
}

// Field is one entry of a render plan.
type Field struct {
	Name     string  `json:"name"`
	Label    string  `json:"label"`
	Required bool    `json:"required"`
	Kind     string  `json:"kind"`
	Control  Control `json:"control"`
	Value    any     `json:"value,omitempty"`
}

// Describe builds the plan entry for one field name, falling back to a
// derived label and a plain text control when the name is unregistered.
func Describe(schema Schema, name string, snap *Snapshot) Field {
	meta, ok := schema.Field(name)
	label := meta.Label
	if !ok || label == "" {
		label = DeriveLabel(name)
	}
	ctl := ControlFor(meta, ok)
	f := Field{
		Name:     name,
		Label:    label,
		Required: ok && meta.Required,
		Kind:     ctl.Kind(),
		Control:  ctl,
	}
	if snap != nil {
		f.Value, _ = snap.Get(name)
	}
	return f
}

// Plan returns the category fields to render for the snapshot's taxonomy
// selection, in resolver order, with hidden conditional fields left out.
// An unknown or incomplete selection yields an empty plan.
func Plan(schema Schema, snap *Snapshot) []Field {
	names := schema.Resolve(snap.PropertyType(), snap.SubType())
	out := make([]Field, 0, len(names))
	for _, n := range names {
		if !IsVisible(schema, n, snap) {
			continue
		}
		out = append(out, Describe(schema, n, snap))
	}
	return out
}

// VisibleFields is Plan reduced to field names.
func VisibleFields(schema Schema, snap *Snapshot) []string {
	names := schema.Resolve(snap.PropertyType(), snap.SubType())
	out := make([]string, 0, len(names))
	for _, n := range names {
		if IsVisible(schema, n, snap) {
			out = append(out, n)
		}
	}
	return out
}
