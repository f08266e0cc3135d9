package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"chatsurvey/internal/cache"
	"chatsurvey/internal/model"
	"chatsurvey/internal/template"
)

var (
	ErrInvalidConfig   = errors.New("survey config with blocks is required")
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownBlock    = errors.New("unknown block")
	ErrStaleAnswer     = errors.New("stale answer")
)

// StaleAnswerError reports a stored answer whose block is gone from the config
type StaleAnswerError struct {
	BlockID string
}

func (e *StaleAnswerError) Error() string {
	return fmt.Sprintf("stale answer: block %q is not in the survey config", e.BlockID)
}

func (e *StaleAnswerError) Unwrap() error { return ErrStaleAnswer }

// Persistence is the durable answer log the engine writes through
type Persistence interface {
	CreateResponse(ctx context.Context, p model.CreateResponseParams) (*model.Response, error)
	SaveAnswer(ctx context.Context, p model.SaveAnswerParams) error
	CompleteResponse(ctx context.Context, responseID string) error
	GetResponseBySessionID(ctx context.Context, sessionID string) (*model.Response, error)
}

const defaultMaxRoutingHops = 32

// RuntimeService runs survey sessions. The session cache is an optimization:
// a durable session missing from it is rebuilt from the answer log.
type RuntimeService struct {
	persistence Persistence
	sessions    cache.SessionCache
	deriver     VariableDeriver
	broadcaster Broadcaster
	logger      *slog.Logger
	locks       *keyedMutex

	maxHops      int
	strictReplay bool
	format       template.Options
}

// RuntimeOption configures a RuntimeService
type RuntimeOption func(*RuntimeService)

func WithLogger(l *slog.Logger) RuntimeOption {
	return func(s *RuntimeService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithSessionCache(c cache.SessionCache) RuntimeOption {
	return func(s *RuntimeService) {
		if c != nil {
			s.sessions = c
		}
	}
}

// WithDeriver replaces the rule-driven variable derivation
func WithDeriver(d VariableDeriver) RuntimeOption {
	return func(s *RuntimeService) {
		if d != nil {
			s.deriver = d
		}
	}
}

// WithMaxRoutingHops bounds how many routing, skipped or empty message blocks
// one submission may pass through
func WithMaxRoutingHops(n int) RuntimeOption {
	return func(s *RuntimeService) {
		if n > 0 {
			s.maxHops = n
		}
	}
}

// WithStrictReplay makes reconstruction fail on answers for removed blocks
// instead of skipping them
func WithStrictReplay(strict bool) RuntimeOption {
	return func(s *RuntimeService) {
		s.strictReplay = strict
	}
}

// WithContentVariable sets the variable that picks keyed dynamic-message content
func WithContentVariable(name string) RuntimeOption {
	return func(s *RuntimeService) {
		s.format.ContentVariable = name
	}
}

// NewRuntimeService creates a runtime engine over persistence
func NewRuntimeService(persistence Persistence, opts ...RuntimeOption) *RuntimeService {
	s := &RuntimeService{
		persistence: persistence,
		sessions:    cache.NewMemorySessionCache(),
		deriver:     RuleDeriver{},
		logger:      slog.Default(),
		locks:       newKeyedMutex(),
		maxHops:     defaultMaxRoutingHops,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetBroadcaster sets the admin live feed (avoids import cycle)
func (s *RuntimeService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// StartPreview starts a session that is never persisted. It lives only in the
// session cache and cannot be reconstructed.
func (s *RuntimeService) StartPreview(ctx context.Context, cfg *model.SurveyConfig, opts model.StartOptions) (*model.StartResult, error) {
	firstID, err := firstBlock(cfg)
	if err != nil {
		return nil, err
	}

	session := &model.RuntimeSession{
		SessionID: uuid.NewString(),
		Kind:      model.SessionPreview,
		Config:    cfg,
		State:     model.NewSessionState(surveyID(cfg, "preview"), uuid.NewString(), firstID, opts.RespondentName),
	}
	session.State.Metadata = trackingMetadata(opts.Tracking)

	if err := s.storeSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session started",
		"session_id", session.SessionID,
		"response_id", session.State.ResponseID,
		"kind", session.Kind,
	)
	return s.startResult(session), nil
}

// StartRuntime starts a durable session backed by a new response record
func (s *RuntimeService) StartRuntime(ctx context.Context, cfg *model.SurveyConfig, opts model.StartOptions) (*model.StartResult, error) {
	firstID, err := firstBlock(cfg)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	metadata := trackingMetadata(opts.Tracking)
	resp, err := s.persistence.CreateResponse(ctx, model.CreateResponseParams{
		SessionID:      sessionID,
		DeploymentID:   opts.DeploymentID,
		DraftID:        opts.DraftID,
		RespondentName: opts.RespondentName,
		Metadata:       metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("create response: %w", err)
	}

	session := &model.RuntimeSession{
		SessionID:    sessionID,
		Kind:         model.SessionRuntime,
		Config:       cfg,
		State:        model.NewSessionState(surveyID(cfg, "runtime", opts.DraftID, opts.DeploymentID), resp.ID, firstID, opts.RespondentName),
		DeploymentID: opts.DeploymentID,
		DraftID:      opts.DraftID,
	}
	session.State.Metadata = model.CloneVariables(metadata)

	if err := s.storeSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session started",
		"session_id", session.SessionID,
		"response_id", resp.ID,
		"kind", session.Kind,
	)
	s.broadcast(EventSessionStarted, session, firstID, 0)
	return s.startResult(session), nil
}

// SubmitRequest is one answer submission. Config is used to rebuild the
// session when it is not cached.
type SubmitRequest struct {
	SessionID  string
	QuestionID string
	Answer     json.RawMessage
	Config     *model.SurveyConfig
}

// SubmitAnswer records an answer and moves the session to its next block.
// The updated session is cached only after the answer is persisted.
func (s *RuntimeService) SubmitAnswer(ctx context.Context, req SubmitRequest) (*model.AnswerResult, error) {
	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	session, err := s.loadSession(ctx, req.SessionID, req.Config)
	if err != nil {
		return nil, err
	}

	block, ok := lookupBlock(session.Config, req.QuestionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBlock, req.QuestionID)
	}
	answer, err := model.DecodeAnswer(block, req.Answer)
	if err != nil {
		return nil, err
	}

	next := session.Clone()
	nextBlock := s.advance(next, block, req.QuestionID, answer)

	if next.Durable() {
		err := s.persistence.SaveAnswer(ctx, model.SaveAnswerParams{
			ResponseID: next.State.ResponseID,
			QuestionID: req.QuestionID,
			Answer:     answer,
		})
		if err != nil {
			return nil, fmt.Errorf("save answer: %w", err)
		}
	}
	if err := s.storeSession(ctx, next); err != nil {
		return nil, err
	}

	progress := Progress(next.Config, next.State)
	s.logger.Info("answer processed",
		"session_id", req.SessionID,
		"block_id", req.QuestionID,
		"next_block_id", next.State.CurrentBlockID,
		"progress", progress,
	)
	s.broadcast(EventAnswerRecorded, next, req.QuestionID, progress)

	return &model.AnswerResult{
		NextQuestion: s.render(nextBlock, next.State.Variables),
		Progress:     progress,
	}, nil
}

// GetSessionState returns the resumable view of a session, rebuilding it from
// the answer log when it is not cached and cfg is given.
func (s *RuntimeService) GetSessionState(ctx context.Context, sessionID string, cfg *model.SurveyConfig) (*model.SessionView, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.loadSession(ctx, sessionID, cfg)
	if err != nil {
		return nil, err
	}

	state := session.State
	current, _ := lookupBlock(session.Config, state.CurrentBlockID)
	return &model.SessionView{
		CurrentQuestion:     s.render(current, state.Variables),
		Progress:            Progress(session.Config, state),
		IsComplete:          current == nil,
		ResponseID:          state.ResponseID,
		ConversationHistory: s.history(session),
	}, nil
}

// CompleteSession marks the session's response complete and evicts it.
// It never fails for a missing or already completed session.
func (s *RuntimeService) CompleteSession(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("session cache read failed", "session_id", sessionID, "error", err)
	}

	if session == nil {
		resp, err := s.persistence.GetResponseBySessionID(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("get response: %w", err)
		}
		if resp == nil || resp.IsComplete() {
			return nil
		}
		if err := s.persistence.CompleteResponse(ctx, resp.ID); err != nil {
			return fmt.Errorf("complete response: %w", err)
		}
		s.logger.Info("session completed", "session_id", sessionID, "response_id", resp.ID, "cached", false)
		s.broadcastEvent(EventSessionCompleted, model.SurveyEvent{SessionID: sessionID, ResponseID: resp.ID, Progress: 100})
		return nil
	}

	if session.Durable() {
		if err := s.persistence.CompleteResponse(ctx, session.State.ResponseID); err != nil {
			return fmt.Errorf("complete response: %w", err)
		}
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("session cache delete failed", "session_id", sessionID, "error", err)
	}

	s.logger.Info("session completed", "session_id", sessionID, "response_id", session.State.ResponseID, "cached", true)
	if session.Durable() {
		s.broadcast(EventSessionCompleted, session, session.State.CurrentBlockID, Progress(session.Config, session.State))
	}
	return nil
}

// ClearSession drops a session from the cache without touching its response
func (s *RuntimeService) ClearSession(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	return s.sessions.Delete(ctx, sessionID)
}

// Reconstruct rebuilds a durable session by replaying its stored answers
// through the same steps live submissions take. It returns nil, nil when the
// session has no response or the response is complete.
func (s *RuntimeService) Reconstruct(ctx context.Context, sessionID string, cfg *model.SurveyConfig) (*model.RuntimeSession, error) {
	firstID, err := firstBlock(cfg)
	if err != nil {
		return nil, err
	}

	resp, err := s.persistence.GetResponseBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get response: %w", err)
	}
	if resp == nil || resp.IsComplete() {
		return nil, nil
	}

	session := &model.RuntimeSession{
		SessionID:    sessionID,
		Kind:         model.SessionRuntime,
		Config:       cfg,
		State:        model.NewSessionState(surveyID(cfg, "runtime", resp.DraftID, resp.DeploymentID), resp.ID, firstID, resp.RespondentName),
		DeploymentID: resp.DeploymentID,
		DraftID:      resp.DraftID,
	}
	session.State.Metadata = model.CloneVariables(resp.Metadata)

	s.logger.Debug("reconstruction started", "session_id", sessionID, "answers", len(resp.Answers))

	skipped := 0
	for _, stored := range resp.Answers {
		block, ok := lookupBlock(cfg, stored.BlockID)
		if !ok {
			if s.strictReplay {
				return nil, &StaleAnswerError{BlockID: stored.BlockID}
			}
			s.logger.Warn("skipping stale answer during replay", "session_id", sessionID, "block_id", stored.BlockID)
			skipped++
			continue
		}
		s.advance(session, block, stored.BlockID, stored.Answer.Clone())
	}

	s.logger.Info("session reconstructed",
		"session_id", sessionID,
		"answers", len(resp.Answers),
		"skipped", skipped,
		"current_block_id", session.State.CurrentBlockID,
	)
	return session, nil
}

func (s *RuntimeService) loadSession(ctx context.Context, sessionID string, cfg *model.SurveyConfig) (*model.RuntimeSession, error) {
	cached, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("session cache read failed", "session_id", sessionID, "error", err)
	}
	if cached != nil {
		return cached, nil
	}
	if cfg == nil {
		return nil, ErrSessionNotFound
	}

	rebuilt, err := s.Reconstruct(ctx, sessionID, cfg)
	if err != nil {
		return nil, err
	}
	if rebuilt == nil {
		return nil, ErrSessionNotFound
	}
	if err := s.storeSession(ctx, rebuilt); err != nil {
		return nil, err
	}
	return rebuilt, nil
}

// storeSession caches a session. A cache failure only matters for previews,
// durable sessions can be rebuilt.
func (s *RuntimeService) storeSession(ctx context.Context, session *model.RuntimeSession) error {
	err := s.sessions.Set(ctx, session)
	if err == nil {
		return nil
	}
	if !session.Durable() {
		return fmt.Errorf("cache preview session: %w", err)
	}
	s.logger.Warn("session cache write failed", "session_id", session.SessionID, "error", err)
	return nil
}

func (s *RuntimeService) startResult(session *model.RuntimeSession) *model.StartResult {
	first, _ := lookupBlock(session.Config, session.State.CurrentBlockID)
	return &model.StartResult{
		SessionID:     session.SessionID,
		ResponseID:    session.State.ResponseID,
		FirstQuestion: s.render(first, session.State.Variables),
	}
}

func (s *RuntimeService) render(b *model.Block, vars map[string]any) *model.Question {
	if b == nil {
		return nil
	}
	return template.FormatQuestion(b, vars, s.format)
}

func firstBlock(cfg *model.SurveyConfig) (string, error) {
	if cfg == nil {
		return "", ErrInvalidConfig
	}
	id, ok := cfg.FirstBlockID()
	if !ok {
		return "", ErrInvalidConfig
	}
	return id, nil
}

// surveyID picks the first non-empty of the config's survey id and fallbacks,
// ending with def
func surveyID(cfg *model.SurveyConfig, def string, fallbacks ...string) string {
	if cfg != nil && cfg.Survey.ID != "" {
		return cfg.Survey.ID
	}
	for _, f := range fallbacks {
		if f != "" {
			return f
		}
	}
	return def
}

func trackingMetadata(tracking map[string]any) map[string]any {
	if tracking == nil {
		return nil
	}
	return map[string]any{"tracking": model.CloneVariables(tracking)}
}
