package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BlockType tags what kind of question or message a block renders as
type BlockType string

const (
	BlockSingleChoice   BlockType = "single-choice"
	BlockMultiChoice    BlockType = "multi-choice"
	BlockRanking        BlockType = "ranking"
	BlockScale          BlockType = "scale"
	BlockYesNo          BlockType = "yes-no"
	BlockQuickReply     BlockType = "quick-reply"
	BlockTextInput      BlockType = "text-input"
	BlockLongText       BlockType = "long-text"
	BlockContactForm    BlockType = "contact-form"
	BlockDemographics   BlockType = "demographics"
	BlockVideoAsk       BlockType = "videoask"
	BlockDynamicMessage BlockType = "dynamic-message"
	BlockRouting        BlockType = "routing"
	BlockFinalMessage   BlockType = "final-message"
	BlockEnd            BlockType = "end"
)

// EntryBlockID is preferred as the first block when present
const EntryBlockID = "b0"

// IsTerminal reports whether reaching this block type ends the survey
func (t BlockType) IsTerminal() bool {
	return t == BlockFinalMessage || t == BlockEnd
}

// IsRespondentFacing reports whether the block collects an answer from the respondent
func (t BlockType) IsRespondentFacing() bool {
	switch t {
	case BlockRouting, BlockDynamicMessage, BlockFinalMessage, BlockEnd:
		return false
	}
	return true
}

// SurveyMeta identifies a survey definition
type SurveyMeta struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// SurveyConfig is a parsed survey definition. It is read-only once loaded.
type SurveyConfig struct {
	Survey   SurveyMeta    `json:"survey"`
	Blocks   BlockMap      `json:"blocks"`
	Progress *ProgressSpec `json:"progress,omitempty"`
}

// Block returns the block with the given id
func (c *SurveyConfig) Block(id string) (*Block, bool) {
	if c == nil {
		return nil, false
	}
	return c.Blocks.Get(id)
}

// FirstBlockID prefers the entry block, else the first block in definition order
func (c *SurveyConfig) FirstBlockID() (string, bool) {
	if c == nil || c.Blocks.Len() == 0 {
		return "", false
	}
	if _, ok := c.Blocks.Get(EntryBlockID); ok {
		return EntryBlockID, true
	}
	return c.Blocks.Keys()[0], true
}

// ProgressSpec declares the expected path used for progress calculation
type ProgressSpec struct {
	MainPath []string          `json:"mainPath"`
	Segments []ProgressSegment `json:"segments,omitempty"`
}

// ProgressSegment appends Blocks to the expected path when its guard holds.
// IfTruthy names a variable whose truthiness is the guard; When is a full condition.
type ProgressSegment struct {
	When     *Condition `json:"when,omitempty"`
	IfTruthy string     `json:"ifTruthy,omitempty"`
	Blocks   []string   `json:"blocks"`
}

// Block is one node of the survey graph
type Block struct {
	ID                 string               `json:"id"`
	Type               BlockType            `json:"type"`
	Content            Content              `json:"content"`
	ContentCondition   *ContentCondition    `json:"contentCondition,omitempty"`
	ContentVariable    string               `json:"contentVariable,omitempty"`
	ConditionalContent []ConditionalContent `json:"conditionalContent,omitempty"`
	Placeholder        string               `json:"placeholder,omitempty"`
	Options            []Option             `json:"options,omitempty"`
	Variable           string               `json:"variable,omitempty"`
	Next               *Next                `json:"next,omitempty"`
	ConditionalNext    *Routing             `json:"conditionalNext,omitempty"`
	ShowIf             *Condition           `json:"showIf,omitempty"`
	OnEmpty            *OnEmpty             `json:"onEmpty,omitempty"`
	MaxSelections      int                  `json:"maxSelections,omitempty"`
	DerivedVariables   []DerivedVariable    `json:"derivedVariables,omitempty"`

	// Extra carries renderer-only fields (emoji, scale bounds, media urls) untouched
	Extra map[string]any `json:"-"`
}

var blockFields = fieldSet(
	"id", "type", "content", "contentCondition", "contentVariable", "conditionalContent",
	"placeholder", "options", "variable", "next", "conditionalNext", "showIf", "onEmpty",
	"maxSelections", "derivedVariables",
)

func (b *Block) UnmarshalJSON(data []byte) error {
	type plain Block
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extraFields(data, blockFields)
	if err != nil {
		return err
	}
	*b = Block(p)
	b.Extra = extra
	return nil
}

func (b Block) MarshalJSON() ([]byte, error) {
	type plain Block
	return marshalWithExtra(plain(b), b.Extra)
}

// LiteralNext returns the block's literal next target, if any
func (b *Block) LiteralNext() string {
	if b == nil || b.Next == nil {
		return ""
	}
	return b.Next.Target
}

// MatchOption returns the first option matching the answer
func (b *Block) MatchOption(a Answer) (*Option, bool) {
	if b == nil {
		return nil, false
	}
	for i := range b.Options {
		if b.Options[i].Matches(a) {
			return &b.Options[i], true
		}
	}
	return nil, false
}

// Clone deep-copies the block's mutable parts. Conditions and routing are
// shared, they are never modified after loading.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	out := *b
	if b.Content.Variants != nil {
		out.Content.Variants = make(map[string]string, len(b.Content.Variants))
		for k, v := range b.Content.Variants {
			out.Content.Variants[k] = v
		}
	}
	if b.Options != nil {
		out.Options = make([]Option, len(b.Options))
		for i, o := range b.Options {
			o.Value = CloneValue(o.Value)
			o.SetVariables = CloneVariables(o.SetVariables)
			o.Extra = CloneVariables(o.Extra)
			out.Options[i] = o
		}
	}
	out.ConditionalContent = append([]ConditionalContent(nil), b.ConditionalContent...)
	out.DerivedVariables = append([]DerivedVariable(nil), b.DerivedVariables...)
	out.Extra = CloneVariables(b.Extra)
	return &out
}

// Option is a selectable choice of a block
type Option struct {
	ID           string         `json:"id,omitempty"`
	Value        any            `json:"value,omitempty"`
	Label        string         `json:"label,omitempty"`
	Next         string         `json:"next,omitempty"`
	SetVariables map[string]any `json:"setVariables,omitempty"`

	Extra map[string]any `json:"-"`
}

var optionFields = fieldSet("id", "value", "label", "next", "setVariables")

func (o *Option) UnmarshalJSON(data []byte) error {
	type plain Option
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extraFields(data, optionFields)
	if err != nil {
		return err
	}
	*o = Option(p)
	o.Extra = extra
	return nil
}

func (o Option) MarshalJSON() ([]byte, error) {
	type plain Option
	return marshalWithExtra(plain(o), o.Extra)
}

// Matches compares the option's value or id with an answer. Boolean option
// values match the strings "true"/"false" and vice versa.
func (o *Option) Matches(a Answer) bool {
	if a.Kind == AnswerNone {
		return false
	}
	v := a.Value()
	if StrictEqual(o.Value, v) {
		return true
	}
	if o.ID != "" && StrictEqual(o.ID, v) {
		return true
	}
	switch ov := o.Value.(type) {
	case bool:
		if a.Kind == AnswerText {
			return ov == (a.Text == "true")
		}
	case string:
		if a.Kind == AnswerBool {
			return (ov == "true") == a.Bool
		}
	}
	return false
}

// Content is either plain text or a set of variants keyed by a condition
// result or a variable value
type Content struct {
	Text     string
	Variants map[string]string
}

// Keyed reports whether the content is a variant table
func (c Content) Keyed() bool {
	return c.Variants != nil
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Content{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{Text: s}
		return nil
	case data[0] == '{':
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("content variants: %w", err)
		}
		*c = Content{Variants: m}
		return nil
	}
	return fmt.Errorf("content must be a string or an object, got %s", string(data))
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Variants != nil {
		return json.Marshal(c.Variants)
	}
	return json.Marshal(c.Text)
}

// ContentCondition picks a content variant key by evaluating If
type ContentCondition struct {
	If   *Condition `json:"if"`
	Then string     `json:"then"`
	Else string     `json:"else"`
}

// ConditionalContent is one entry of an ordered content override list.
// A condition written as the literal "default" always matches.
type ConditionalContent struct {
	Default   bool
	Condition *Condition
	Content   string
}

func (cc *ConditionalContent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Condition json.RawMessage `json:"condition"`
		Content   string          `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*cc = ConditionalContent{Content: raw.Content}
	cond := bytes.TrimSpace(raw.Condition)
	if len(cond) == 0 || bytes.Equal(cond, []byte("null")) {
		return nil
	}
	if cond[0] == '"' {
		var s string
		if err := json.Unmarshal(cond, &s); err != nil {
			return err
		}
		cc.Default = s == "default"
		return nil
	}
	var c Condition
	if err := json.Unmarshal(cond, &c); err != nil {
		return err
	}
	cc.Condition = &c
	return nil
}

func (cc ConditionalContent) MarshalJSON() ([]byte, error) {
	out := map[string]any{"content": cc.Content}
	if cc.Default {
		out["condition"] = "default"
	} else if cc.Condition != nil {
		out["condition"] = cc.Condition
	}
	return json.Marshal(out)
}

// OnEmpty overrides routing when the answer is the empty string
type OnEmpty struct {
	Message string `json:"message,omitempty"`
	Next    string `json:"next,omitempty"`
}

// Next is either a literal block id or a conditional routing structure
type Next struct {
	Target  string
	Routing *Routing
}

func (n *Next) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = Next{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Next{Target: s}
		return nil
	}
	var r Routing
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("next: %w", err)
	}
	*n = Next{Routing: &r}
	return nil
}

func (n Next) MarshalJSON() ([]byte, error) {
	if n.Routing != nil {
		return json.Marshal(n.Routing)
	}
	return json.Marshal(n.Target)
}

func fieldSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func extraFields(data []byte, known map[string]struct{}) (map[string]any, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var extra map[string]any
	for k, raw := range all {
		if _, ok := known[k]; ok {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	return extra, nil
}

func marshalWithExtra(v any, extra map[string]any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var merged map[string]any
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, exists := merged[k]; !exists {
			merged[k] = val
		}
	}
	return json.Marshal(merged)
}
