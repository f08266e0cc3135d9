package model

import "time"

// ChartPoint is one bar of a question chart
type ChartPoint struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// QuestionChart aggregates the answers of one chartable block
type QuestionChart struct {
	BlockID  string       `json:"blockId"`
	Question string       `json:"question"`
	Type     BlockType    `json:"type"`
	Data     []ChartPoint `json:"data"`
}

// ResponseReport is the admin summary over all stored responses
type ResponseReport struct {
	SurveyID       string          `json:"surveyId"`
	TotalResponses int             `json:"totalResponses"`
	Completed      int             `json:"completed"`
	CompletionRate float64         `json:"completionRate"` // 0-1
	Charts         []QuestionChart `json:"charts"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}

// SurveyEvent is pushed to admin dashboards as sessions progress
type SurveyEvent struct {
	SessionID  string `json:"sessionId"`
	ResponseID string `json:"responseId"`
	BlockID    string `json:"blockId,omitempty"`
	Progress   int    `json:"progress"`
}
