package model

import "time"

// Response is the durable record of one respondent's pass through a survey
type Response struct {
	ID             string            `json:"id"`
	SessionID      string            `json:"sessionId"`
	DeploymentID   string            `json:"deploymentId,omitempty"`
	DraftID        string            `json:"draftId,omitempty"`
	RespondentName string            `json:"respondentName,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
	AnswerCount    int               `json:"answerCount"`
	LastBlockID    string            `json:"lastBlockId,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
	Answers        []PersistedAnswer `json:"answers,omitempty"`
}

// IsComplete reports whether the response was marked complete
func (r *Response) IsComplete() bool {
	return r.CompletedAt != nil
}

// PersistedAnswer is one entry of a response's append-only answer log
type PersistedAnswer struct {
	ID        string    `json:"id"`
	BlockID   string    `json:"blockId"`
	Answer    Answer    `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateResponseParams describes a new response
type CreateResponseParams struct {
	SessionID      string
	DeploymentID   string
	DraftID        string
	RespondentName string
	Metadata       map[string]any
}

// SaveAnswerParams appends an answer to a response
type SaveAnswerParams struct {
	ResponseID string
	QuestionID string
	Answer     Answer
}
