package validate

import (
	"sort"
	"strings"
)

// Result is the outcome of one validation pass: the current error for each
// failing field plus the set of fields the user has interacted with. Errors
// are recomputed wholesale on every pass; Touched only ever grows until the
// wizard is reset.
type Result struct {
	Errors  map[string]string `json:"errors"`
	Touched map[string]bool   `json:"touched"`
}

func newResult() Result {
	return Result{Errors: make(map[string]string), Touched: make(map[string]bool)}
}

// IsValid reports whether the pass produced no errors.
func (r Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Touch marks fields as interacted with.
func (r *Result) Touch(fields ...string) {
	if r.Touched == nil {
		r.Touched = make(map[string]bool, len(fields))
	}
	for _, f := range fields {
		r.Touched[f] = true
	}
}

// Visible returns only the errors of touched fields.
func (r Result) Visible() map[string]string {
	out := make(map[string]string)
	for f, msg := range r.Errors {
		if r.Touched[f] {
			out[f] = msg
		}
	}
	return out
}

// Fields returns the failing field names in sorted order.
func (r Result) Fields() []string {
	out := make([]string, 0, len(r.Errors))
	for f := range r.Errors {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Toast summarizes the errors as a single notification line, joining the
// messages in field order.
func (r Result) Toast() string {
	fields := r.Fields()
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = r.Errors[f]
	}
	return strings.Join(msgs, "; ")
}

func (r Result) set(field, msg string) {
	if _, exists := r.Errors[field]; !exists {
		r.Errors[field] = msg
	}
}
