package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chatsurvey/internal/model"
)

func TestRuleDeriver(t *testing.T) {
	tests := []struct {
		name   string
		rules  []model.DerivedVariable
		answer model.Answer
		want   map[string]any
	}{
		{
			name:   "answer binds raw value",
			rules:  []model.DerivedVariable{{Set: "connection_type", Op: model.DeriveAnswer}},
			answer: model.TextAnswer("artist"),
			want:   map[string]any{"connection_type": "artist"},
		},
		{
			name:   "answer falls back to default when falsy",
			rules:  []model.DerivedVariable{{Set: "user_name", Op: model.DeriveAnswer, Default: ""}},
			answer: model.NoAnswer(),
			want:   map[string]any{"user_name": ""},
		},
		{
			name: "count and contains on a list",
			rules: []model.DerivedVariable{
				{Set: "n", Op: model.DeriveCount},
				{Set: "wants_print", Op: model.DeriveContains, Values: []any{"print", "newsletter"}},
				{Set: "wants_social", Op: model.DeriveContains, Values: []any{"social"}},
			},
			answer: model.ListAnswer("email", "newsletter"),
			want:   map[string]any{"n": float64(2), "wants_print": true, "wants_social": false},
		},
		{
			name: "count and contains on a scalar",
			rules: []model.DerivedVariable{
				{Set: "n", Op: model.DeriveCount},
				{Set: "has_other", Op: model.DeriveContains, Values: []any{"other"}},
			},
			answer: model.TextAnswer("other"),
			want:   map[string]any{"n": float64(0), "has_other": false},
		},
		{
			name:   "field with default",
			rules:  []model.DerivedVariable{{Set: "vision", Op: model.DeriveField, Field: "type", Default: "skipped"}},
			answer: model.ObjectAnswer(map[string]any{"type": "video"}),
			want:   map[string]any{"vision": "video"},
		},
		{
			name:   "field on a non-object uses default",
			rules:  []model.DerivedVariable{{Set: "vision", Op: model.DeriveField, Field: "type", Default: "skipped"}},
			answer: model.TextAnswer("skip"),
			want:   map[string]any{"vision": "skipped"},
		},
		{
			name:   "onlyFor skips other kinds",
			rules:  []model.DerivedVariable{{Set: "url", Op: model.DeriveField, Field: "responseUrl", OnlyFor: model.AnswerObject}},
			answer: model.TextAnswer("skip"),
			want:   map[string]any{},
		},
		{
			name:   "merge copies object keys",
			rules:  []model.DerivedVariable{{Op: model.DeriveMerge}},
			answer: model.ObjectAnswer(map[string]any{"age": "30-39", "zip": "15213"}),
			want:   map[string]any{"age": "30-39", "zip": "15213"},
		},
		{
			name:   "constant",
			rules:  []model.DerivedVariable{{Set: "seen_intro", Op: model.DeriveConstant, Default: true}},
			answer: model.Acknowledged,
			want:   map[string]any{"seen_intro": true},
		},
		{
			name:   "unknown op is ignored",
			rules:  []model.DerivedVariable{{Set: "x", Op: "explode"}},
			answer: model.TextAnswer("a"),
			want:   map[string]any{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := map[string]any{}
			RuleDeriver{}.Derive(&model.Block{ID: "q", DerivedVariables: tt.rules}, tt.answer, vars)
			assert.Equal(t, tt.want, vars)
		})
	}
}

func TestRuleDeriver_DoesNotAliasAnswer(t *testing.T) {
	answer := model.ObjectAnswer(map[string]any{"tags": []any{"a"}})
	vars := map[string]any{}
	RuleDeriver{}.Derive(&model.Block{DerivedVariables: []model.DerivedVariable{{Op: model.DeriveMerge}}}, answer, vars)

	vars["tags"].([]any)[0] = "changed"
	assert.Equal(t, "a", answer.Object["tags"].([]any)[0])
}
