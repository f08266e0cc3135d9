// Package template renders survey text and formats blocks for clients.
package template

import (
	"regexp"

	"chatsurvey/internal/branching"
)

var (
	ifElsePattern = regexp.MustCompile(`\{\{#if (\w+)\}\}([\s\S]*?)\{\{else\}\}([\s\S]*?)\{\{/if\}\}`)
	ifPattern     = regexp.MustCompile(`\{\{#if (\w+)\}\}([\s\S]*?)\{\{/if\}\}`)
	varPattern    = regexp.MustCompile(`\{\{(\w+)\}\}`)
)

// Render substitutes placeholders in a single pass per form, in order:
// {{#if V}}A{{else}}B{{/if}}, then {{#if V}}A{{/if}}, then {{V}}.
// Unset variables render as the empty string.
func Render(text string, vars map[string]any) string {
	if text == "" {
		return text
	}

	text = ifElsePattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := ifElsePattern.FindStringSubmatch(m)
		if branching.Truthy(vars[sub[1]]) {
			return sub[2]
		}
		return sub[3]
	})
	text = ifPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := ifPattern.FindStringSubmatch(m)
		if branching.Truthy(vars[sub[1]]) {
			return sub[2]
		}
		return ""
	})
	return varPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := varPattern.FindStringSubmatch(m)
		return branching.Stringify(vars[sub[1]])
	})
}
