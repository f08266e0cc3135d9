package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAnswer(t *testing.T) {
	tests := []struct {
		name    string
		block   Block
		raw     string
		want    Answer
		wantErr bool
	}{
		{"single choice text", Block{ID: "q", Type: BlockSingleChoice}, `"A"`, TextAnswer("A"), false},
		{"scale number", Block{ID: "q", Type: BlockScale}, `4`, NumberAnswer(4), false},
		{"yes-no bool", Block{ID: "q", Type: BlockYesNo}, `true`, BoolAnswer(true), false},
		{"single choice rejects list", Block{ID: "q", Type: BlockSingleChoice}, `["A"]`, Answer{}, true},
		{"multi choice list", Block{ID: "q", Type: BlockMultiChoice}, `["a","b"]`, ListAnswer("a", "b"), false},
		{"multi choice rejects scalar", Block{ID: "q", Type: BlockMultiChoice}, `"a"`, Answer{}, true},
		{"multi choice rejects nested", Block{ID: "q", Type: BlockMultiChoice}, `[["a"]]`, Answer{}, true},
		{"ranking within limit", Block{ID: "q", Type: BlockRanking, MaxSelections: 2}, `["x","y"]`, ListAnswer("x", "y"), false},
		{"ranking over limit", Block{ID: "q", Type: BlockRanking, MaxSelections: 2}, `["x","y","z"]`, Answer{}, true},
		{"text input", Block{ID: "q", Type: BlockTextInput}, `"hello"`, TextAnswer("hello"), false},
		{"text input rejects number", Block{ID: "q", Type: BlockTextInput}, `3`, Answer{}, true},
		{"contact form object", Block{ID: "q", Type: BlockContactForm}, `{"email":"a@b.c"}`, ObjectAnswer(map[string]any{"email": "a@b.c"}), false},
		{"empty string always allowed", Block{ID: "q", Type: BlockMultiChoice}, `""`, TextAnswer(""), false},
		{"message acknowledgement", Block{ID: "q", Type: BlockDynamicMessage}, `"acknowledged"`, Acknowledged, false},
		{"message rejects object", Block{ID: "q", Type: BlockRouting}, `{"a":1}`, Answer{}, true},
		{"missing answer", Block{ID: "q", Type: BlockTextInput}, ``, NoAnswer(), false},
		{"malformed json", Block{ID: "q", Type: BlockTextInput}, `{`, Answer{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAnswer(&tt.block, json.RawMessage(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAnswer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnswer_JSONIsRawValue(t *testing.T) {
	data, err := json.Marshal(map[string]Answer{
		"a": TextAnswer("x"),
		"b": ListAnswer("p", float64(2)),
		"c": NoAnswer(),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":["p",2],"c":null}`, string(data))
}

func TestAnswerFromValue_Normalizes(t *testing.T) {
	assert.Equal(t, NumberAnswer(7), AnswerFromValue(int64(7)))
	assert.Equal(t, ListAnswer("a", "b"), AnswerFromValue([]string{"a", "b"}))
	assert.Equal(t, NoAnswer(), AnswerFromValue(nil))
}

func TestSessionState_RecordOnce(t *testing.T) {
	s := NewSessionState("s", "r", "b0", "Ada")
	s.Record("b0", TextAnswer("x"))
	s.Record("b0", TextAnswer("y"))

	assert.Equal(t, []string{"b0"}, s.CompletedBlocks)
	assert.Equal(t, TextAnswer("y"), s.Answers["b0"])
	assert.Equal(t, "Ada", s.Variables[RespondentNameVariable])

	clone := s.Clone()
	clone.Record("b1", ListAnswer("z"))
	clone.Variables["k"] = 1
	assert.Len(t, s.CompletedBlocks, 1)
	assert.NotContains(t, s.Variables, "k")
}
