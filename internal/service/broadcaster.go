package service

import "chatsurvey/internal/model"

// Admin feed event types
const (
	EventSessionStarted   = "session_started"
	EventAnswerRecorded   = "answer_recorded"
	EventSessionCompleted = "session_completed"
	EventResponsesCleared = "responses_cleared"
)

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToAdmins(msgType string, payload interface{})
}

func (s *RuntimeService) broadcast(msgType string, session *model.RuntimeSession, blockID string, progress int) {
	if !session.Durable() {
		return
	}
	s.broadcastEvent(msgType, model.SurveyEvent{
		SessionID:  session.SessionID,
		ResponseID: session.State.ResponseID,
		BlockID:    blockID,
		Progress:   progress,
	})
}

func (s *RuntimeService) broadcastEvent(msgType string, ev model.SurveyEvent) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToAdmins(msgType, ev)
	}
}
