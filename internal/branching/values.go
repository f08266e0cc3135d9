package branching

import (
	"math"
	"strconv"
	"strings"

	"chatsurvey/internal/model"
)

// Truthy follows the survey language's truthiness: nil, false, 0, NaN and ""
// are false, every list and object is true.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	if f, ok := model.AsFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	}
	return true
}

// ToNumber coerces a variable value for numeric comparison. Numbers, numeric
// strings and booleans convert; nil, empty strings, lists and objects do not.
func ToNumber(v any) (float64, bool) {
	if f, ok := model.AsFloat(v); ok {
		return f, !math.IsNaN(f)
	}
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Stringify renders a value for template output. Lists join with ",",
// nil renders empty.
func Stringify(v any) string {
	if v == nil {
		return ""
	}
	if f, ok := model.AsFloat(v); ok {
		return formatNumber(f)
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = Stringify(item)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	case map[string]any:
		return "[object Object]"
	}
	return ""
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
