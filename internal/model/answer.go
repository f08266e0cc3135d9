package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidAnswer is returned when an answer does not fit its block type
var ErrInvalidAnswer = errors.New("invalid answer")

// AnswerKind tags which field of an Answer holds the value
type AnswerKind string

const (
	AnswerNone   AnswerKind = "none"
	AnswerText   AnswerKind = "text"
	AnswerBool   AnswerKind = "bool"
	AnswerNumber AnswerKind = "number"
	AnswerList   AnswerKind = "list"
	AnswerObject AnswerKind = "object"
)

// Acknowledged is the answer used to pass through routing-only blocks
var Acknowledged = TextAnswer("acknowledged")

// Answer is a respondent's raw answer as a tagged value
type Answer struct {
	Kind   AnswerKind
	Text   string
	Bool   bool
	Number float64
	List   []any
	Object map[string]any
}

func NoAnswer() Answer               { return Answer{Kind: AnswerNone} }
func TextAnswer(s string) Answer     { return Answer{Kind: AnswerText, Text: s} }
func BoolAnswer(b bool) Answer       { return Answer{Kind: AnswerBool, Bool: b} }
func NumberAnswer(n float64) Answer  { return Answer{Kind: AnswerNumber, Number: n} }
func ListAnswer(items ...any) Answer { return Answer{Kind: AnswerList, List: items} }

func ObjectAnswer(obj map[string]any) Answer {
	return Answer{Kind: AnswerObject, Object: obj}
}

// AnswerFromValue wraps a decoded JSON value
func AnswerFromValue(v any) Answer {
	if f, ok := AsFloat(v); ok {
		return NumberAnswer(f)
	}
	switch t := v.(type) {
	case nil:
		return NoAnswer()
	case string:
		return TextAnswer(t)
	case bool:
		return BoolAnswer(t)
	case []any:
		return Answer{Kind: AnswerList, List: t}
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return Answer{Kind: AnswerList, List: items}
	case map[string]any:
		return ObjectAnswer(t)
	}
	// anything else goes through JSON to land on a decoded shape
	data, err := json.Marshal(v)
	if err != nil {
		return NoAnswer()
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return NoAnswer()
	}
	return AnswerFromValue(decoded)
}

// Value returns the answer as a plain decoded JSON value
func (a Answer) Value() any {
	switch a.Kind {
	case AnswerText:
		return a.Text
	case AnswerBool:
		return a.Bool
	case AnswerNumber:
		return a.Number
	case AnswerList:
		return a.List
	case AnswerObject:
		return a.Object
	}
	return nil
}

// IsEmptyText reports whether the answer is exactly the empty string
func (a Answer) IsEmptyText() bool {
	return a.Kind == AnswerText && a.Text == ""
}

// IsScalar reports whether the answer is text, bool or number
func (a Answer) IsScalar() bool {
	return a.Kind == AnswerText || a.Kind == AnswerBool || a.Kind == AnswerNumber
}

// Contains reports whether a list answer holds v
func (a Answer) Contains(v any) bool {
	for _, item := range a.List {
		if StrictEqual(item, v) {
			return true
		}
	}
	return false
}

// Clone deep-copies list and object payloads
func (a Answer) Clone() Answer {
	switch a.Kind {
	case AnswerList:
		a.List = CloneValue(a.List).([]any)
	case AnswerObject:
		a.Object = CloneVariables(a.Object)
	}
	return a
}

func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = AnswerFromValue(v)
	return nil
}

// DecodeAnswer decodes and validates a submitted answer for a block.
// The empty string and a missing answer are accepted for every block type
// so onEmpty and skipped blocks can apply.
func DecodeAnswer(block *Block, raw json.RawMessage) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	var a Answer
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a); err != nil {
			return Answer{}, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
		}
	} else {
		a = NoAnswer()
	}
	if block == nil || a.IsEmptyText() || a.Kind == AnswerNone {
		return a, nil
	}
	if err := validateAnswer(block, a); err != nil {
		return Answer{}, err
	}
	return a, nil
}

func validateAnswer(block *Block, a Answer) error {
	fail := func(want string) error {
		return fmt.Errorf("%w: block %s (%s) expects %s, got %s", ErrInvalidAnswer, block.ID, block.Type, want, a.Kind)
	}

	switch block.Type {
	case BlockSingleChoice, BlockScale, BlockYesNo, BlockQuickReply:
		if !a.IsScalar() {
			return fail("a single value")
		}
	case BlockMultiChoice, BlockRanking:
		if a.Kind != AnswerList {
			return fail("a list")
		}
		for _, item := range a.List {
			if !AnswerFromValue(item).IsScalar() {
				return fail("a list of values")
			}
		}
		if block.Type == BlockRanking && block.MaxSelections > 0 && len(a.List) > block.MaxSelections {
			return fmt.Errorf("%w: block %s accepts at most %d ranked items, got %d",
				ErrInvalidAnswer, block.ID, block.MaxSelections, len(a.List))
		}
	case BlockTextInput, BlockLongText:
		if a.Kind != AnswerText {
			return fail("text")
		}
	case BlockContactForm, BlockDemographics, BlockVideoAsk:
		if a.Kind != AnswerObject && !a.IsScalar() {
			return fail("an object")
		}
	case BlockDynamicMessage, BlockRouting, BlockFinalMessage, BlockEnd:
		if a.Kind == AnswerList || a.Kind == AnswerObject {
			return fail("an acknowledgement")
		}
	}
	return nil
}
