package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chatsurvey/internal/model"
)

// fakeStore is an in-memory Persistence that counts writes
type fakeStore struct {
	mu        sync.Mutex
	responses map[string]*model.Response
	bySession map[string]string

	creates   int
	saves     int
	completes int
	failSave  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		responses: map[string]*model.Response{},
		bySession: map[string]string{},
	}
}

func (f *fakeStore) CreateResponse(_ context.Context, p model.CreateResponseParams) (*model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	r := &model.Response{
		ID:             uuid.NewString(),
		SessionID:      p.SessionID,
		DeploymentID:   p.DeploymentID,
		DraftID:        p.DraftID,
		RespondentName: p.RespondentName,
		Metadata:       model.CloneVariables(p.Metadata),
		CreatedAt:      time.Now(),
	}
	f.responses[r.ID] = r
	f.bySession[p.SessionID] = r.ID
	return r, nil
}

func (f *fakeStore) SaveAnswer(_ context.Context, p model.SaveAnswerParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return f.failSave
	}
	r, ok := f.responses[p.ResponseID]
	if !ok {
		return errors.New("no such response")
	}
	f.saves++
	r.Answers = append(r.Answers, model.PersistedAnswer{
		ID:        uuid.NewString(),
		BlockID:   p.QuestionID,
		Answer:    p.Answer.Clone(),
		CreatedAt: time.Now(),
	})
	r.AnswerCount = len(r.Answers)
	r.LastBlockID = p.QuestionID
	return nil
}

func (f *fakeStore) CompleteResponse(_ context.Context, responseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.responses[responseID]
	if !ok {
		return errors.New("no such response")
	}
	f.completes++
	if r.CompletedAt == nil {
		now := time.Now()
		r.CompletedAt = &now
	}
	return nil
}

func (f *fakeStore) GetResponseBySessionID(_ context.Context, sessionID string) (*model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.bySession[sessionID]
	if !ok {
		return nil, nil
	}
	r := *f.responses[id]
	r.Metadata = model.CloneVariables(r.Metadata)
	r.Answers = make([]model.PersistedAnswer, len(f.responses[id].Answers))
	for i, a := range f.responses[id].Answers {
		a.Answer = a.Answer.Clone()
		r.Answers[i] = a
	}
	return &r, nil
}

func (f *fakeStore) counts() (creates, saves, completes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.saves, f.completes
}

type recordedEvent struct {
	msgType string
	payload any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) BroadcastToAdmins(msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{msgType, payload})
}

func (b *fakeBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.msgType
	}
	return out
}

func mustConfig(t *testing.T, src string) *model.SurveyConfig {
	t.Helper()
	var cfg model.SurveyConfig
	require.NoError(t, json.Unmarshal([]byte(src), &cfg))
	return &cfg
}

func raw(v string) json.RawMessage {
	return json.RawMessage(v)
}

// submit posts an answer and fails the test on error
func submit(t *testing.T, svc *RuntimeService, sessionID, blockID, answer string) *model.AnswerResult {
	t.Helper()
	res, err := svc.SubmitAnswer(context.Background(), SubmitRequest{
		SessionID:  sessionID,
		QuestionID: blockID,
		Answer:     raw(answer),
	})
	require.NoError(t, err)
	return res
}

// cachedState reads a session straight from the service's cache
func cachedState(t *testing.T, svc *RuntimeService, sessionID string) *model.SessionState {
	t.Helper()
	session, err := svc.sessions.Get(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	return session.State
}

const branchSurvey = `{
  "survey": {"id": "branch"},
  "blocks": {
    "b1": {
      "type": "single-choice",
      "content": "Pick",
      "options": [
        {"id": "a", "value": "A", "label": "Option A", "next": "b2"},
        {"id": "b", "value": "B", "label": "Option B", "next": "b3"}
      ]
    },
    "b2": {"type": "final-message", "content": "You picked A"},
    "b3": {"type": "final-message", "content": "You picked B"}
  }
}`

const linearSurvey = `{
  "survey": {"id": "linear"},
  "blocks": {
    "b0": {"type": "text-input", "content": "Your name?", "variable": "name", "next": "b1"},
    "b1": {
      "type": "single-choice",
      "content": "Hi {{name}}, want updates?",
      "variable": "updates",
      "options": [
        {"value": "yes", "label": "Yes", "next": "b2", "setVariables": {"wants_updates": true}},
        {"value": "no", "label": "No", "next": "b2"}
      ]
    },
    "b2": {"type": "scale", "content": "{{#if wants_updates}}Great!{{else}}Ok.{{/if}} Rate us", "next": "b3",
      "options": [{"value": 1, "label": "Bad"}, {"value": 5, "label": "Good"}]},
    "b3": {"type": "multi-choice", "content": "Topics?", "next": "b4",
      "options": [{"value": "arts"}, {"value": "sports"}]},
    "b4": {"type": "final-message", "content": "Thanks {{name}}"}
  }
}`
