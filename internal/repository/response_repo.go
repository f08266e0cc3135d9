package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatsurvey/internal/model"
)

// ErrNotFound is returned when a write targets a record that does not exist
var ErrNotFound = errors.New("not found")

// ResponseRepo is the durable answer log behind runtime sessions
type ResponseRepo interface {
	CreateResponse(ctx context.Context, p model.CreateResponseParams) (*model.Response, error)
	// SaveAnswer appends to the answer log and updates the response snapshot atomically
	SaveAnswer(ctx context.Context, p model.SaveAnswerParams) error
	// CompleteResponse marks a response complete. Completing twice keeps the first timestamp.
	CompleteResponse(ctx context.Context, responseID string) error
	// GetResponseBySessionID returns nil, nil when the session has no response.
	// Answers are in creation order.
	GetResponseBySessionID(ctx context.Context, sessionID string) (*model.Response, error)

	ListResponses(ctx context.Context, opts ListOptions) ([]*model.Response, error)
	CountResponses(ctx context.Context) (ResponseCounts, error)
	DeleteAllResponses(ctx context.Context) (int64, error)
}

// ListOptions filters admin listings
type ListOptions struct {
	Limit       int
	WithAnswers bool
}

// ResponseCounts summarizes stored responses
type ResponseCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

func now() time.Time {
	return time.Now().UTC()
}

// normalizeBSON turns driver-decoded values back into plain JSON shapes
func normalizeBSON(v any) any {
	switch t := v.(type) {
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalizeBSON(e.Value)
		}
		return out
	case primitive.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeBSON(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeBSON(val)
		}
		return out
	case primitive.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeBSON(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeBSON(val)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case primitive.ObjectID:
		return t.Hex()
	}
	return v
}

func normalizeMetadata(m bson.M) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out, _ := normalizeBSON(map[string]any(m)).(map[string]any)
	return out
}
