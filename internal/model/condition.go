package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Operator names the test a Condition performs
type Operator string

const (
	// OpLT and OpGT compare against the named variable or the caller's fallback
	OpLT Operator = "lt"
	OpGT Operator = "gt"

	// OpLessThan, OpGreaterThan and OpContains require an explicit variable
	OpLessThan    Operator = "lessThan"
	OpGreaterThan Operator = "greaterThan"
	OpContains    Operator = "contains"

	OpEquals Operator = "equals"
	OpIn     Operator = "in"
	OpNot    Operator = "not"
	OpOr     Operator = "or"
	OpAnd    Operator = "and"
)

// Condition is a node of a boolean predicate tree over the variable bag.
// A Condition with an empty Op is malformed and never holds.
type Condition struct {
	Op       Operator
	Variable string

	// Value is the operand of comparison, equality and contains tests
	Value any
	// Values is the allowed set of an in test
	Values []any
	// Conditions are the children of or/and; Conditions[0] is the operand of not
	Conditions []*Condition
}

// UsesFallback reports whether the operator accepts the caller's fallback variable
func (o Operator) UsesFallback() bool {
	switch o {
	case OpLT, OpGT, OpEquals, OpIn:
		return true
	}
	return false
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	*c = Condition{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		// non-object conditions are malformed and evaluate false
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["variable"]; ok {
		if err := json.Unmarshal(v, &c.Variable); err != nil {
			return fmt.Errorf("condition variable: %w", err)
		}
	}

	decodeValue := func(key string) error {
		return json.Unmarshal(raw[key], &c.Value)
	}

	// key precedence mirrors the evaluation order of the routing language
	switch {
	case has(raw, "lt"):
		c.Op = OpLT
		return decodeValue("lt")
	case has(raw, "gt"):
		c.Op = OpGT
		return decodeValue("gt")
	case has(raw, "equals"):
		c.Op = OpEquals
		return decodeValue("equals")
	case has(raw, "in"):
		c.Op = OpIn
		var v any
		if err := json.Unmarshal(raw["in"], &v); err != nil {
			return err
		}
		if list, ok := v.([]any); ok {
			c.Values = list
		} else {
			c.Values = []any{v}
		}
		return nil
	}

	if c.Variable != "" {
		switch {
		case has(raw, "lessThan"):
			c.Op = OpLessThan
			return decodeValue("lessThan")
		case has(raw, "greaterThan"):
			c.Op = OpGreaterThan
			return decodeValue("greaterThan")
		case has(raw, "contains"):
			c.Op = OpContains
			return decodeValue("contains")
		}
	}

	if v, ok := raw["not"]; ok && !isNull(v) {
		var child Condition
		if err := json.Unmarshal(v, &child); err != nil {
			return err
		}
		c.Op = OpNot
		c.Conditions = []*Condition{&child}
		return nil
	}
	for _, op := range []Operator{OpOr, OpAnd} {
		v, ok := raw[string(op)]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 || v[0] != '[' {
			continue
		}
		var children []*Condition
		if err := json.Unmarshal(v, &children); err != nil {
			return err
		}
		c.Op = op
		c.Conditions = children
		return nil
	}
	return nil
}

func (c Condition) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if c.Variable != "" {
		out["variable"] = c.Variable
	}
	switch c.Op {
	case OpIn:
		out[string(c.Op)] = c.Values
	case OpNot:
		if len(c.Conditions) > 0 {
			out[string(c.Op)] = c.Conditions[0]
		}
	case OpOr, OpAnd:
		out[string(c.Op)] = c.Conditions
	case "":
	default:
		out[string(c.Op)] = c.Value
	}
	return json.Marshal(out)
}

// Routing is a conditional next-block structure in one of two shapes.
// List form: ordered Rules with an Else fallback id.
// Nested form: If/Then with an Else that is either an id or another nested routing.
type Routing struct {
	Rules []RoutingRule

	If          *Condition
	Then        string
	Else        string
	ElseRouting *Routing
}

// RoutingRule sends the respondent to Goto when When holds
type RoutingRule struct {
	When *Condition `json:"when"`
	Goto string     `json:"goto"`
}

// IsList reports whether the routing uses the ordered rule list shape
func (r *Routing) IsList() bool {
	return r != nil && r.Rules != nil
}

func (r *Routing) UnmarshalJSON(data []byte) error {
	*r = Routing{}
	var raw struct {
		If   json.RawMessage `json:"if"`
		Then string          `json:"then"`
		Else json.RawMessage `json:"else"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	cond := bytes.TrimSpace(raw.If)
	switch {
	case len(cond) > 0 && cond[0] == '[':
		var rules []RoutingRule
		if err := json.Unmarshal(cond, &rules); err != nil {
			return fmt.Errorf("routing rules: %w", err)
		}
		if rules == nil {
			rules = []RoutingRule{}
		}
		r.Rules = rules
	case len(cond) > 0 && cond[0] == '{':
		var c Condition
		if err := json.Unmarshal(cond, &c); err != nil {
			return err
		}
		r.If = &c
		r.Then = raw.Then
	case len(cond) > 0 && isNull(cond):
		// an explicit null test is a nested form that never holds
		r.If = &Condition{}
		r.Then = raw.Then
	}

	alt := bytes.TrimSpace(raw.Else)
	switch {
	case len(alt) == 0 || isNull(alt):
	case alt[0] == '"':
		if err := json.Unmarshal(alt, &r.Else); err != nil {
			return err
		}
	case alt[0] == '{' && !r.IsList():
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(alt, &probe); err != nil {
			return err
		}
		if _, ok := probe["if"]; ok {
			var nested Routing
			if err := json.Unmarshal(alt, &nested); err != nil {
				return err
			}
			r.ElseRouting = &nested
		}
	}
	return nil
}

func (r Routing) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if r.IsList() {
		out["if"] = r.Rules
	} else if r.If != nil {
		out["if"] = r.If
		out["then"] = r.Then
	}
	if r.ElseRouting != nil {
		out["else"] = r.ElseRouting
	} else if r.Else != "" {
		out["else"] = r.Else
	}
	return json.Marshal(out)
}

func has(raw map[string]json.RawMessage, key string) bool {
	_, ok := raw[key]
	return ok
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
