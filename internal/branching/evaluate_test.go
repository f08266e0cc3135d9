package branching

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsurvey/internal/model"
)

func cond(t *testing.T, src string) *model.Condition {
	t.Helper()
	var c model.Condition
	require.NoError(t, json.Unmarshal([]byte(src), &c))
	return &c
}

func TestEvaluate(t *testing.T) {
	vars := map[string]any{
		"age":      float64(34),
		"score":    "7",
		"tags":     []any{"arts", "music"},
		"name":     "Ana Lucia",
		"consent":  true,
		"nothing":  nil,
		"empty":    "",
		"contacts": []any{"email", "text"},
	}

	tests := []struct {
		name     string
		cond     string
		fallback string
		want     bool
	}{
		{"lt named", `{"variable": "age", "lt": 40}`, "", true},
		{"lt fallback", `{"lt": 30}`, "age", false},
		{"gt numeric string", `{"variable": "score", "gt": 5}`, "", true},
		{"gt without any variable", `{"gt": 5}`, "", false},
		{"lt missing variable", `{"variable": "ghost", "lt": 5}`, "", false},
		{"lt non numeric", `{"variable": "name", "lt": 5}`, "", false},
		{"lt empty string", `{"variable": "empty", "lt": 5}`, "", false},
		{"lessThan", `{"variable": "age", "lessThan": 35}`, "", true},
		{"greaterThan", `{"variable": "age", "greaterThan": 35}`, "", false},
		{"equals scalar", `{"variable": "consent", "equals": true}`, "", true},
		{"equals is strict", `{"variable": "score", "equals": 7}`, "", false},
		{"equals fallback", `{"equals": "Ana Lucia"}`, "name", true},
		{"equals null", `{"variable": "nothing", "equals": null}`, "", true},
		{"equals missing vs null", `{"variable": "ghost", "equals": null}`, "", false},
		{"equals list set-style", `{"variable": "tags", "equals": ["music", "arts"]}`, "", true},
		{"equals list length differs", `{"variable": "tags", "equals": ["music"]}`, "", false},
		{"equals list vs scalar", `{"variable": "tags", "equals": "arts"}`, "", false},
		{"in scalar", `{"variable": "name", "in": ["Bo", "Ana Lucia"]}`, "", true},
		{"in list any", `{"variable": "tags", "in": ["sports", "music"]}`, "", true},
		{"in list none", `{"variable": "tags", "in": ["sports"]}`, "", false},
		{"in wrapped scalar", `{"in": "arts"}`, "name", false},
		{"contains list", `{"variable": "contacts", "contains": "email"}`, "", true},
		{"contains substring", `{"variable": "name", "contains": "Luc"}`, "", true},
		{"contains on bool", `{"variable": "consent", "contains": "t"}`, "", false},
		{"contains ignores fallback", `{"contains": "Luc"}`, "name", false},
		{"not", `{"not": {"variable": "consent", "equals": false}}`, "", true},
		{"not passes fallback", `{"not": {"lt": 18}}`, "age", true},
		{"or", `{"or": [{"variable": "age", "lt": 18}, {"variable": "consent", "equals": true}]}`, "", true},
		{"or empty", `{"or": []}`, "", false},
		{"and", `{"and": [{"variable": "age", "gt": 18}, {"variable": "tags", "contains": "arts"}]}`, "", true},
		{"and empty", `{"and": []}`, "", true},
		{"and one false", `{"and": [{"variable": "age", "gt": 18}, {"variable": "tags", "contains": "film"}]}`, "", false},
		{"malformed", `{"matches": "x"}`, "", false},
		{"non object", `"default"`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(cond(t, tt.cond), vars, tt.fallback))
		})
	}
}

func TestEvaluate_NilCondition(t *testing.T) {
	assert.False(t, Evaluate(nil, map[string]any{"a": 1}, "a"))
	assert.False(t, Evaluate(&model.Condition{Op: model.OpNot}, nil, ""))
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(float64(0)))
	assert.False(t, Truthy(false))
	assert.True(t, Truthy("0"))
	assert.True(t, Truthy([]any{}))
	assert.True(t, Truthy(map[string]any{}))
	assert.True(t, Truthy(int64(2)))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "3", Stringify(float64(3)))
	assert.Equal(t, "2.5", Stringify(2.5))
	assert.Equal(t, "a,b", Stringify([]any{"a", "b"}))
	assert.Equal(t, "true", Stringify(true))
}
