package template

import (
	"encoding/json"
	"fmt"
	"strings"

	"chatsurvey/internal/branching"
	"chatsurvey/internal/model"
)

const (
	// DefaultContentVariable selects keyed dynamic-message content when a block names no contentVariable
	DefaultContentVariable = "connection_type"

	fallbackMessage = "Thanks for sharing!"
	placeholderText = "placeholder"
)

// Options tunes question formatting
type Options struct {
	ContentVariable string
}

func (o Options) contentVariable(b *model.Block) string {
	if b.ContentVariable != "" {
		return b.ContentVariable
	}
	if o.ContentVariable != "" {
		return o.ContentVariable
	}
	return DefaultContentVariable
}

// FormatQuestion renders a block for a client. The returned question is a
// deep copy; block is left untouched.
func FormatQuestion(block *model.Block, vars map[string]any, opts Options) *model.Question {
	if block == nil {
		return nil
	}
	q := block.Clone()

	switch {
	case !q.Content.Keyed():
		q.Content = model.Content{Text: Render(q.Content.Text, vars)}
	case q.ContentCondition != nil:
		key := q.ContentCondition.Else
		if branching.Evaluate(q.ContentCondition.If, vars, "") {
			key = q.ContentCondition.Then
		}
		q.Content = model.Content{Text: Render(q.Content.Variants[key], vars)}
	case q.Type == model.BlockDynamicMessage:
		q.Content = model.Content{Text: Render(selectVariant(q, vars, opts), vars)}
	}

	if matched, ok := matchConditionalContent(q.ConditionalContent, vars); ok && matched != "" {
		if !q.Content.Keyed() && (q.Content.Text == placeholderText || q.Content.Text == "") {
			q.Content = model.Content{Text: Render(matched, vars)}
		}
	}

	for i := range q.Options {
		if q.Options[i].Label != "" {
			q.Options[i].Label = Render(q.Options[i].Label, vars)
		}
	}
	if q.Placeholder != "" {
		q.Placeholder = Render(q.Placeholder, vars)
	}
	return q
}

func selectVariant(q *model.Block, vars map[string]any, opts Options) string {
	selected, ok := q.Content.Variants["default"]
	if !ok || selected == "" {
		selected = fallbackMessage
	}
	if v := vars[opts.contentVariable(q)]; branching.Truthy(v) {
		if variant := q.Content.Variants[branching.Stringify(v)]; variant != "" {
			selected = variant
		}
	}
	return selected
}

func matchConditionalContent(items []model.ConditionalContent, vars map[string]any) (string, bool) {
	for _, item := range items {
		if item.Default || branching.Evaluate(item.Condition, vars, "") {
			return item.Content, true
		}
	}
	return "", false
}

// FormatAnswer renders an answer for the conversation transcript using the
// labels of the rendered question.
func FormatAnswer(a model.Answer, q *model.Question) string {
	if a.Kind == model.AnswerNone {
		return ""
	}
	value := a.Value()
	var qType model.BlockType
	if q != nil {
		qType = q.Type
	}

	switch qType {
	case model.BlockSingleChoice:
		if opt := findOption(q, value); opt != nil {
			return optionText(opt, value)
		}
		return branching.Stringify(value)

	case model.BlockMultiChoice:
		if a.Kind == model.AnswerList && q.Options != nil {
			labels := make([]string, len(a.List))
			for i, v := range a.List {
				labels[i] = optionText(findOption(q, v), v)
			}
			return strings.Join(labels, ", ")
		}
		return branching.Stringify(value)

	case model.BlockScale:
		if opt := findOption(q, value); opt != nil {
			emoji, _ := opt.Extra["emoji"].(string)
			switch {
			case emoji != "" && opt.Label != "":
				return emoji + " " + opt.Label
			case emoji != "":
				return emoji
			case opt.Label != "":
				return opt.Label
			}
		}
		return branching.Stringify(value)

	case model.BlockRanking:
		if a.Kind == model.AnswerList && q.Options != nil {
			ranked := make([]string, len(a.List))
			for i, v := range a.List {
				ranked[i] = fmt.Sprintf("%d. %s", i+1, optionText(findOption(q, v), v))
			}
			return strings.Join(ranked, ", ")
		}
		return branching.Stringify(value)

	case model.BlockTextInput, model.BlockLongText:
		return branching.Stringify(value)
	}

	if a.Kind == model.AnswerList || a.Kind == model.AnswerObject {
		data, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return branching.Stringify(value)
}

func findOption(q *model.Question, v any) *model.Option {
	if q == nil {
		return nil
	}
	for i := range q.Options {
		opt := &q.Options[i]
		if (opt.ID != "" && model.StrictEqual(opt.ID, v)) || model.StrictEqual(opt.Value, v) {
			return opt
		}
	}
	return nil
}

func optionText(opt *model.Option, v any) string {
	if opt == nil {
		return branching.Stringify(v)
	}
	if opt.Label != "" {
		return opt.Label
	}
	if branching.Truthy(opt.Value) {
		return branching.Stringify(opt.Value)
	}
	return branching.Stringify(v)
}
