package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSurvey = `{
  "survey": {"id": "civic-pulse", "name": "Civic Pulse"},
  "blocks": {
    "welcome": {"type": "dynamic-message", "content": "Hi {{user_name}}", "next": "b1"},
    "b1": {
      "type": "single-choice",
      "content": "Pick one",
      "variable": "choice",
      "options": [
        {"id": "a", "value": "A", "label": "Option A", "next": "b2", "emoji": "🅰️"},
        {"id": "b", "value": true, "label": "Option B", "setVariables": {"picked_b": true}}
      ],
      "conditionalNext": {"if": {"variable": "choice", "equals": "B"}, "then": "b3", "else": {"if": {"lt": 3}, "then": "b2", "else": "b4"}}
    },
    "b2": {"type": "scale", "content": {"yes": "Great", "no": "Okay"}, "contentCondition": {"if": {"variable": "picked_b", "equals": true}, "then": "yes", "else": "no"}, "min": 1, "max": 5},
    "b3": {"type": "routing", "content": "", "next": {"if": [{"when": {"variable": "x", "in": ["a", "b"]}, "goto": "b4"}], "else": "b2"}},
    "b4": {"type": "final-message", "content": "Bye", "conditionalContent": [{"condition": {"variable": "x", "contains": "a"}, "content": "A!"}, {"condition": "default", "content": "Default"}]}
  }
}`

func TestSurveyConfig_PreservesBlockOrder(t *testing.T) {
	var cfg SurveyConfig
	require.NoError(t, json.Unmarshal([]byte(sampleSurvey), &cfg))

	assert.Equal(t, []string{"welcome", "b1", "b2", "b3", "b4"}, cfg.Blocks.Keys())
	first, ok := cfg.FirstBlockID()
	require.True(t, ok)
	assert.Equal(t, "welcome", first)

	b1, ok := cfg.Block("b1")
	require.True(t, ok)
	assert.Equal(t, "b1", b1.ID, "id defaults to the map key")
}

func TestSurveyConfig_FirstBlockPrefersEntry(t *testing.T) {
	cfg := SurveyConfig{Blocks: NewBlockMap(
		&Block{ID: "intro", Type: BlockDynamicMessage},
		&Block{ID: EntryBlockID, Type: BlockTextInput},
	)}
	first, ok := cfg.FirstBlockID()
	require.True(t, ok)
	assert.Equal(t, EntryBlockID, first)

	var empty SurveyConfig
	_, ok = empty.FirstBlockID()
	assert.False(t, ok)
}

func TestBlock_ExtraFieldsRoundTrip(t *testing.T) {
	var cfg SurveyConfig
	require.NoError(t, json.Unmarshal([]byte(sampleSurvey), &cfg))

	b2, _ := cfg.Block("b2")
	assert.Equal(t, float64(1), b2.Extra["min"])
	assert.Equal(t, float64(5), b2.Extra["max"])
	assert.True(t, b2.Content.Keyed())

	b1, _ := cfg.Block("b1")
	assert.Equal(t, "🅰️", b1.Options[0].Extra["emoji"])

	data, err := json.Marshal(b2)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, float64(5), generic["max"])
	assert.Equal(t, map[string]any{"yes": "Great", "no": "Okay"}, generic["content"])
}

func TestRouting_Shapes(t *testing.T) {
	var cfg SurveyConfig
	require.NoError(t, json.Unmarshal([]byte(sampleSurvey), &cfg))

	b1, _ := cfg.Block("b1")
	require.NotNil(t, b1.ConditionalNext)
	r := b1.ConditionalNext
	assert.False(t, r.IsList())
	assert.Equal(t, OpEquals, r.If.Op)
	assert.Equal(t, "b3", r.Then)
	require.NotNil(t, r.ElseRouting)
	assert.Equal(t, OpLT, r.ElseRouting.If.Op)
	assert.Equal(t, "b4", r.ElseRouting.Else)

	b3, _ := cfg.Block("b3")
	require.NotNil(t, b3.Next)
	assert.Empty(t, b3.LiteralNext())
	require.True(t, b3.Next.Routing.IsList())
	assert.Equal(t, "b4", b3.Next.Routing.Rules[0].Goto)
	assert.Equal(t, []any{"a", "b"}, b3.Next.Routing.Rules[0].When.Values)
	assert.Equal(t, "b2", b3.Next.Routing.Else)
}

func TestConditionalContent_Default(t *testing.T) {
	var cfg SurveyConfig
	require.NoError(t, json.Unmarshal([]byte(sampleSurvey), &cfg))

	b4, _ := cfg.Block("b4")
	require.Len(t, b4.ConditionalContent, 2)
	assert.Equal(t, OpContains, b4.ConditionalContent[0].Condition.Op)
	assert.True(t, b4.ConditionalContent[1].Default)
}

func TestCondition_Parse(t *testing.T) {
	tests := []struct {
		name string
		json string
		op   Operator
	}{
		{"lt", `{"lt": 3}`, OpLT},
		{"gt wins over variable ops", `{"variable": "n", "gt": 1, "lessThan": 4}`, OpGT},
		{"lessThan needs variable", `{"lessThan": 4}`, ""},
		{"lessThan", `{"variable": "n", "lessThan": 4}`, OpLessThan},
		{"contains", `{"variable": "s", "contains": "x"}`, OpContains},
		{"in scalar", `{"in": "x"}`, OpIn},
		{"not", `{"not": {"equals": 1}}`, OpNot},
		{"null not", `{"not": null}`, ""},
		{"or", `{"or": [{"equals": 1}, {"equals": 2}]}`, OpOr},
		{"and", `{"and": []}`, OpAnd},
		{"unknown", `{"matches": "x"}`, ""},
		{"not an object", `"default"`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Condition
			require.NoError(t, json.Unmarshal([]byte(tt.json), &c))
			assert.Equal(t, tt.op, c.Op)
		})
	}

	var in Condition
	require.NoError(t, json.Unmarshal([]byte(`{"variable": "v", "in": "x"}`), &in))
	assert.Equal(t, []any{"x"}, in.Values)
	assert.Equal(t, "v", in.Variable)
}

func TestCondition_MarshalRoundTrip(t *testing.T) {
	src := `{"and":[{"variable":"age","gt":18},{"not":{"variable":"tags","in":["a","b"]}}]}`
	var c Condition
	require.NoError(t, json.Unmarshal([]byte(src), &c))

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, src, string(data))
}

func TestBlockMap_MarshalKeepsOrder(t *testing.T) {
	m := NewBlockMap(
		&Block{ID: "z", Type: BlockTextInput},
		&Block{ID: "a", Type: BlockEnd},
	)
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back BlockMap
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"z", "a"}, back.Keys())
}

func TestOption_Matches(t *testing.T) {
	tests := []struct {
		name   string
		option Option
		answer Answer
		want   bool
	}{
		{"value", Option{Value: "A"}, TextAnswer("A"), true},
		{"id", Option{ID: "opt-1", Value: "A"}, TextAnswer("opt-1"), true},
		{"number", Option{Value: float64(3)}, NumberAnswer(3), true},
		{"bool option, string answer", Option{Value: true}, TextAnswer("true"), true},
		{"bool option, other string", Option{Value: false}, TextAnswer("nope"), true},
		{"string option, bool answer", Option{Value: "false"}, BoolAnswer(false), true},
		{"string option, bool mismatch", Option{Value: "yes"}, BoolAnswer(true), false},
		{"number vs string", Option{Value: float64(3)}, TextAnswer("3"), false},
		{"list answer", Option{Value: "A"}, ListAnswer("A"), false},
		{"missing answer never matches", Option{ID: "x"}, NoAnswer(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.option.Matches(tt.answer))
		})
	}
}
