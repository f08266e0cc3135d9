// Package branching evaluates survey conditions and resolves conditional routing.
// Evaluation never fails: a missing variable or a malformed condition is false.
package branching

import (
	"strings"

	"chatsurvey/internal/model"
)

// Evaluate reports whether cond holds over vars. Operators that accept a
// fallback variable use fallback when the condition names none.
func Evaluate(cond *model.Condition, vars map[string]any, fallback string) bool {
	if cond == nil {
		return false
	}

	switch cond.Op {
	case model.OpLT, model.OpGT, model.OpEquals, model.OpIn:
		name := cond.Variable
		if name == "" {
			name = fallback
		}
		if name == "" {
			return false
		}
		value, ok := vars[name]
		if !ok {
			return false
		}
		switch cond.Op {
		case model.OpLT:
			return compare(value, cond.Value, func(a, b float64) bool { return a < b })
		case model.OpGT:
			return compare(value, cond.Value, func(a, b float64) bool { return a > b })
		case model.OpEquals:
			return equals(value, cond.Value)
		default:
			return in(value, cond.Values)
		}

	case model.OpLessThan, model.OpGreaterThan, model.OpContains:
		if cond.Variable == "" {
			return false
		}
		value, ok := vars[cond.Variable]
		if !ok {
			return false
		}
		switch cond.Op {
		case model.OpLessThan:
			return compare(value, cond.Value, func(a, b float64) bool { return a < b })
		case model.OpGreaterThan:
			return compare(value, cond.Value, func(a, b float64) bool { return a > b })
		default:
			return contains(value, cond.Value)
		}

	case model.OpNot:
		if len(cond.Conditions) == 0 || cond.Conditions[0] == nil {
			return false
		}
		return !Evaluate(cond.Conditions[0], vars, fallback)

	case model.OpOr:
		for _, c := range cond.Conditions {
			if Evaluate(c, vars, fallback) {
				return true
			}
		}
		return false

	case model.OpAnd:
		for _, c := range cond.Conditions {
			if !Evaluate(c, vars, fallback) {
				return false
			}
		}
		return true
	}
	return false
}

func compare(value, target any, cmp func(a, b float64) bool) bool {
	a, ok := ToNumber(value)
	if !ok {
		return false
	}
	b, ok := ToNumber(target)
	if !ok {
		return false
	}
	return cmp(a, b)
}

// equals is strict equality, except two lists compare as sets of equal size
func equals(value, target any) bool {
	want, wantList := asList(target)
	got, gotList := asList(value)
	if wantList && gotList {
		if len(want) != len(got) {
			return false
		}
		for _, w := range want {
			if !listHas(got, w) {
				return false
			}
		}
		return true
	}
	return model.StrictEqual(value, target)
}

func in(value any, allowed []any) bool {
	if items, ok := asList(value); ok {
		for _, item := range items {
			if listHas(allowed, item) {
				return true
			}
		}
		return false
	}
	return listHas(allowed, value)
}

func contains(value, needle any) bool {
	if items, ok := asList(value); ok {
		return listHas(items, needle)
	}
	if s, ok := value.(string); ok {
		if needle == nil {
			return strings.Contains(s, "null")
		}
		return strings.Contains(s, Stringify(needle))
	}
	return false
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func listHas(items []any, v any) bool {
	for _, item := range items {
		if model.StrictEqual(item, v) {
			return true
		}
	}
	return false
}
