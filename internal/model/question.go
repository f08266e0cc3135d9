package model

// Question is a rendered block handed to a client. It is always a copy;
// the configured block is never modified by rendering.
type Question = Block

// StartResult is returned when a session starts
type StartResult struct {
	SessionID     string    `json:"sessionId"`
	ResponseID    string    `json:"responseId"`
	FirstQuestion *Question `json:"firstQuestion"`
}

// AnswerResult is returned after an answer is processed.
// A nil NextQuestion means the survey has no further block.
type AnswerResult struct {
	NextQuestion *Question `json:"nextQuestion"`
	Progress     int       `json:"progress"`
}

// ConversationItem is one exchange of a session's chat transcript
type ConversationItem struct {
	BlockID         string    `json:"blockId"`
	QuestionContent string    `json:"questionContent"`
	AnswerContent   *string   `json:"answerContent"`
	QuestionType    BlockType `json:"questionType"`
	IsBotOnly       bool      `json:"isBotOnly"`
}

// SessionView is the resumable view of a session
type SessionView struct {
	CurrentQuestion     *Question          `json:"currentQuestion"`
	Progress            int                `json:"progress"`
	IsComplete          bool               `json:"isComplete"`
	ResponseID          string             `json:"responseId"`
	ConversationHistory []ConversationItem `json:"conversationHistory"`
}

// StartOptions configures a new session
type StartOptions struct {
	RespondentName string
	Tracking       map[string]any
	DeploymentID   string
	DraftID        string
}
