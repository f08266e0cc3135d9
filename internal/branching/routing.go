package branching

import "chatsurvey/internal/model"

// ResolveNext picks the next block id from a conditional routing structure.
// blockVar is the fallback variable for conditions that name none.
// It returns "" when nothing matches and no else applies.
func ResolveNext(r *model.Routing, vars map[string]any, blockVar string) string {
	if r == nil {
		return ""
	}
	if r.IsList() {
		for _, rule := range r.Rules {
			if Evaluate(rule.When, vars, blockVar) {
				return rule.Goto
			}
		}
		return r.Else
	}
	if r.If == nil {
		return ""
	}

	// nested else chains are walked iteratively
	for cur := r; cur != nil; cur = cur.ElseRouting {
		if Evaluate(cur.If, vars, blockVar) {
			return cur.Then
		}
		if cur.ElseRouting == nil {
			return cur.Else
		}
	}
	return ""
}
