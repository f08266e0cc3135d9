package service

import (
	"chatsurvey/internal/branching"
	"chatsurvey/internal/model"
)

// VariableDeriver computes extra variables after a block is answered
type VariableDeriver interface {
	Derive(block *model.Block, answer model.Answer, vars map[string]any)
}

// RuleDeriver applies the block's derivedVariables rules in order
type RuleDeriver struct{}

func (RuleDeriver) Derive(block *model.Block, answer model.Answer, vars map[string]any) {
	for _, rule := range block.DerivedVariables {
		if rule.OnlyFor != "" && rule.OnlyFor != answer.Kind {
			continue
		}
		applyRule(rule, answer, vars)
	}
}

func applyRule(rule model.DerivedVariable, answer model.Answer, vars map[string]any) {
	switch rule.Op {
	case model.DeriveAnswer:
		v := answer.Clone().Value()
		if rule.Default != nil && !branching.Truthy(v) {
			v = model.CloneValue(rule.Default)
		}
		vars[rule.Set] = v

	case model.DeriveCount:
		vars[rule.Set] = float64(len(answer.List))

	case model.DeriveContains:
		found := false
		if answer.Kind == model.AnswerList {
			for _, want := range rule.Values {
				if answer.Contains(want) {
					found = true
					break
				}
			}
		}
		vars[rule.Set] = found

	case model.DeriveField:
		var v any
		if answer.Kind == model.AnswerObject {
			v = model.CloneValue(answer.Object[rule.Field])
		}
		if !branching.Truthy(v) {
			v = model.CloneValue(rule.Default)
		}
		vars[rule.Set] = v

	case model.DeriveMerge:
		if answer.Kind == model.AnswerObject {
			for k, v := range answer.Object {
				vars[k] = model.CloneValue(v)
			}
		}

	case model.DeriveConstant:
		vars[rule.Set] = model.CloneValue(rule.Default)
	}
}
