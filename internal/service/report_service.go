package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"chatsurvey/internal/branching"
	"chatsurvey/internal/cache"
	"chatsurvey/internal/model"
	"chatsurvey/internal/repository"
)

const defaultRankingPoints = 3

// ReportService builds the admin dashboard report over stored responses
type ReportService struct {
	responses   repository.ResponseRepo
	surveys     *SurveyService
	reportCache cache.ReportCache
	broadcaster Broadcaster
	now         func() time.Time
}

// NewReportService creates a new report service
func NewReportService(responses repository.ResponseRepo, surveys *SurveyService, reportCache cache.ReportCache) *ReportService {
	return &ReportService{
		responses:   responses,
		surveys:     surveys,
		reportCache: reportCache,
		now:         time.Now,
	}
}

// SetBroadcaster sets the broadcaster (avoids import cycle)
func (s *ReportService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Report returns the chart data and totals for the active survey
func (s *ReportService) Report(ctx context.Context) (*model.ResponseReport, error) {
	cfg, err := s.surveys.Active(ctx)
	if err != nil {
		return nil, err
	}
	id := surveyID(cfg, "runtime")

	if s.reportCache != nil {
		if cached, err := s.reportCache.Get(ctx, id); err == nil && cached != nil {
			return cached, nil
		}
	}

	responses, err := s.responses.ListResponses(ctx, repository.ListOptions{WithAnswers: true})
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	report := BuildReport(cfg, responses)
	report.SurveyID = id
	report.GeneratedAt = s.now().UTC()

	if s.reportCache != nil {
		_ = s.reportCache.Set(ctx, report)
	}
	return report, nil
}

// Responses lists stored responses, newest first
func (s *ReportService) Responses(ctx context.Context, limit int, withAnswers bool) ([]*model.Response, error) {
	return s.responses.ListResponses(ctx, repository.ListOptions{Limit: limit, WithAnswers: withAnswers})
}

// Counts returns stored and completed response totals
func (s *ReportService) Counts(ctx context.Context) (repository.ResponseCounts, error) {
	return s.responses.CountResponses(ctx)
}

// ClearResponses deletes every stored response and drops the cached report
func (s *ReportService) ClearResponses(ctx context.Context) (int64, error) {
	n, err := s.responses.DeleteAllResponses(ctx)
	if err != nil {
		return 0, err
	}
	if s.reportCache != nil {
		if cfg, err := s.surveys.Active(ctx); err == nil {
			_ = s.reportCache.Invalidate(ctx, surveyID(cfg, "runtime"))
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToAdmins(EventResponsesCleared, map[string]int64{"deleted": n})
	}
	return n, nil
}

// BuildReport aggregates responses into per-question charts. Only
// single-choice, scale, multi-choice and ranking blocks with options are
// charted.
func BuildReport(cfg *model.SurveyConfig, responses []*model.Response) *model.ResponseReport {
	report := &model.ResponseReport{
		TotalResponses: len(responses),
		Charts:         []model.QuestionChart{},
	}
	for _, r := range responses {
		if r.IsComplete() {
			report.Completed++
		}
	}
	if report.TotalResponses > 0 {
		report.CompletionRate = float64(report.Completed) / float64(report.TotalResponses)
	}

	for _, id := range cfg.Blocks.Keys() {
		block, _ := cfg.Block(id)
		if len(block.Options) == 0 {
			continue
		}
		var data []model.ChartPoint
		switch block.Type {
		case model.BlockSingleChoice, model.BlockScale:
			data = singleChoiceCounts(block, responses)
		case model.BlockMultiChoice:
			data = multiChoiceCounts(block, responses)
		case model.BlockRanking:
			data = rankingScores(block, responses)
		default:
			continue
		}
		report.Charts = append(report.Charts, model.QuestionChart{
			BlockID:  id,
			Question: block.Content.Text,
			Type:     block.Type,
			Data:     data,
		})
	}
	return report
}

func singleChoiceCounts(block *model.Block, responses []*model.Response) []model.ChartPoint {
	counts := optionTally(block)
	for _, r := range responses {
		a, ok := answerFor(r, block.ID)
		if !ok {
			continue
		}
		if key, ok := scalarKey(a); ok {
			if _, known := counts[key]; known {
				counts[key]++
			}
		}
	}
	return chartPoints(block, counts)
}

func multiChoiceCounts(block *model.Block, responses []*model.Response) []model.ChartPoint {
	counts := optionTally(block)
	for _, r := range responses {
		a, ok := answerFor(r, block.ID)
		if !ok || a.Kind != model.AnswerList {
			continue
		}
		for _, item := range a.List {
			key := branching.Stringify(item)
			if _, known := counts[key]; known {
				counts[key]++
			}
		}
	}
	return chartPoints(block, counts)
}

// rankingScores awards maxSelections points for first place, one less for
// each following place
func rankingScores(block *model.Block, responses []*model.Response) []model.ChartPoint {
	maxPoints := block.MaxSelections
	if maxPoints == 0 {
		maxPoints = defaultRankingPoints
	}

	scores := optionTally(block)
	for _, r := range responses {
		a, ok := answerFor(r, block.ID)
		if !ok || a.Kind != model.AnswerList {
			continue
		}
		for i, item := range a.List {
			key := branching.Stringify(item)
			if _, known := scores[key]; known {
				scores[key] += max(0, maxPoints-i)
			}
		}
	}

	points := chartPoints(block, scores)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Value > points[j].Value
	})
	return points
}

func optionTally(block *model.Block) map[string]int {
	counts := make(map[string]int, len(block.Options))
	for _, opt := range block.Options {
		counts[branching.Stringify(opt.Value)] = 0
	}
	return counts
}

func chartPoints(block *model.Block, counts map[string]int) []model.ChartPoint {
	points := make([]model.ChartPoint, len(block.Options))
	for i, opt := range block.Options {
		points[i] = model.ChartPoint{
			Label: opt.Label,
			Value: counts[branching.Stringify(opt.Value)],
		}
	}
	return points
}

// answerFor returns the first stored answer for a block
func answerFor(r *model.Response, blockID string) (model.Answer, bool) {
	for _, a := range r.Answers {
		if a.BlockID == blockID {
			return a.Answer, true
		}
	}
	return model.Answer{}, false
}

// scalarKey maps a single-value answer onto an option key. Object answers
// wrapping a value or text field count by that field.
func scalarKey(a model.Answer) (string, bool) {
	switch a.Kind {
	case model.AnswerText, model.AnswerNumber, model.AnswerBool:
		return branching.Stringify(a.Value()), true
	case model.AnswerObject:
		if v, ok := a.Object["value"]; ok {
			return branching.Stringify(v), true
		}
		if v, ok := a.Object["text"].(string); ok {
			return v, true
		}
	}
	return "", false
}
