package form

import (
	"slices"

	"github.com/matthewbaird/listingform/internal/types"
)

// RuleSource looks up the visibility rule for a dependent field.
type RuleSource interface {
	Rule(name string) (types.VisibilityRule, bool)
}

// IsVisible reports whether a field should render for the current snapshot.
// Fields without a rule are always visible. The snapshot is only read.
func IsVisible(rules RuleSource, name string, snap *Snapshot) bool {
	rule, ok := rules.Rule(name)
	if !ok {
		return true
	}
	v, present := snap.Get(rule.DependsOn)
	return Matches(rule, v, present)
}

// Matches applies a rule to the dependent value. A missing value never
// matches unless the operator is "empty".
func Matches(rule types.VisibilityRule, v any, present bool) bool {
	if rule.Operator == types.OpEmpty {
		return !present || IsEmpty(v)
	}
	if !present {
		return false
	}

	got := scalars(v)
	switch rule.Operator {
	case types.OpEq:
		return slices.Contains(got, rule.Value)
	case types.OpNeq:
		return !slices.Contains(got, rule.Value)
	case types.OpIn:
		return anyIn(got, rule.Values)
	case types.OpNotIn:
		return !anyIn(got, rule.Values)
	case types.OpTruthy:
		return Truthy(v)
	default:
		return false
	}
}

// scalars flattens multi-select values so that eq/in match any selected option.
func scalars(v any) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, Stringify(e))
		}
		return out
	case []string:
		return x
	}
	return []string{Stringify(v)}
}

func anyIn(got, allowed []string) bool {
	for _, g := range got {
		if slices.Contains(allowed, g) {
			return true
		}
	}
	return false
}
