package surveyconfig

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"chatsurvey/internal/model"
)

//go:embed schema.cue
var schemaSource string

// Issue is one validation finding
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// Report collects validation findings. Only Errors make a definition unusable.
type Report struct {
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

func (r *Report) OK() bool {
	return r == nil || len(r.Errors) == 0
}

// Err joins the errors under ErrInvalidSurvey, nil when there are none
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.String()
	}
	return fmt.Errorf("%w: %s", ErrInvalidSurvey, strings.Join(msgs, "; "))
}

// validateSchema checks a JSON document against #Survey
func validateSchema(doc []byte) []Issue {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return []Issue{{Path: "schema", Message: err.Error()}}
	}
	def := schema.LookupPath(cue.ParsePath("#Survey"))

	value := ctx.CompileBytes(doc, cue.Filename("survey.json"))
	if err := value.Err(); err != nil {
		return cueIssues(err)
	}

	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cueIssues(err)
	}
	return nil
}

func cueIssues(err error) []Issue {
	var issues []Issue
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		issues = append(issues, Issue{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	if len(issues) == 0 {
		issues = append(issues, Issue{Message: err.Error()})
	}
	return issues
}

// CheckReferences reports block ids that routing points at but the survey
// does not define, and content variant keys that do not exist.
func CheckReferences(cfg *model.SurveyConfig) []Issue {
	var issues []Issue
	missing := func(path, id string) {
		if id == "" {
			return
		}
		if _, ok := cfg.Block(id); !ok {
			issues = append(issues, Issue{Path: path, Message: fmt.Sprintf("unknown block %q", id)})
		}
	}

	for _, id := range cfg.Blocks.Keys() {
		b, _ := cfg.Block(id)
		base := "blocks." + id

		if b.Next != nil {
			missing(base+".next", b.Next.Target)
			for _, target := range routingTargets(b.Next.Routing) {
				missing(base+".next", target)
			}
		}
		for _, target := range routingTargets(b.ConditionalNext) {
			missing(base+".conditionalNext", target)
		}
		for i, opt := range b.Options {
			missing(fmt.Sprintf("%s.options[%d].next", base, i), opt.Next)
		}
		if b.OnEmpty != nil {
			missing(base+".onEmpty.next", b.OnEmpty.Next)
		}
		if cc := b.ContentCondition; cc != nil && b.Content.Keyed() {
			for _, key := range []string{cc.Then, cc.Else} {
				if _, ok := b.Content.Variants[key]; !ok {
					issues = append(issues, Issue{Path: base + ".contentCondition", Message: fmt.Sprintf("unknown content key %q", key)})
				}
			}
		}
		if b.Type == model.BlockRanking && b.MaxSelections > len(b.Options) && len(b.Options) > 0 {
			issues = append(issues, Issue{Path: base + ".maxSelections", Message: "exceeds the number of options"})
		}
	}

	if p := cfg.Progress; p != nil {
		for i, id := range p.MainPath {
			missing(fmt.Sprintf("progress.mainPath[%d]", i), id)
		}
		for i, seg := range p.Segments {
			for j, id := range seg.Blocks {
				missing(fmt.Sprintf("progress.segments[%d].blocks[%d]", i, j), id)
			}
		}
	}
	return issues
}

func routingTargets(r *model.Routing) []string {
	var out []string
	for r != nil {
		for _, rule := range r.Rules {
			out = append(out, rule.Goto)
		}
		if r.Then != "" {
			out = append(out, r.Then)
		}
		if r.Else != "" {
			out = append(out, r.Else)
		}
		r = r.ElseRouting
	}
	return out
}
