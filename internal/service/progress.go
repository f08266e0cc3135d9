package service

import (
	"math"

	"chatsurvey/internal/branching"
	"chatsurvey/internal/model"
)

// ExpectedPath lists the blocks a respondent is expected to answer given the
// variables collected so far. It is recomputed on every call since answers
// can add segments.
func ExpectedPath(cfg *model.SurveyConfig, vars map[string]any) []string {
	if cfg == nil {
		return nil
	}
	if cfg.Progress == nil {
		var ids []string
		for _, id := range cfg.Blocks.Keys() {
			if b, _ := cfg.Block(id); b.Type.IsRespondentFacing() {
				ids = append(ids, id)
			}
		}
		return ids
	}

	ids := append([]string{}, cfg.Progress.MainPath...)
	for _, seg := range cfg.Progress.Segments {
		if segmentApplies(seg, vars) {
			ids = append(ids, seg.Blocks...)
		}
	}
	return ids
}

func segmentApplies(seg model.ProgressSegment, vars map[string]any) bool {
	if seg.When != nil && !branching.Evaluate(seg.When, vars, "") {
		return false
	}
	if seg.IfTruthy != "" && !branching.Truthy(vars[seg.IfTruthy]) {
		return false
	}
	return true
}

// Progress is the rounded percentage of the expected path already completed
func Progress(cfg *model.SurveyConfig, state *model.SessionState) int {
	expected := ExpectedPath(cfg, state.Variables)
	if len(expected) == 0 {
		return 0
	}

	done := 0
	for _, id := range expected {
		if state.HasCompleted(id) {
			done++
		}
	}
	p := int(math.Round(100 * float64(done) / float64(len(expected))))
	return min(p, 100)
}
