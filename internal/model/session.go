package model

// SessionKind distinguishes durable sessions from throwaway previews
type SessionKind string

const (
	SessionPreview SessionKind = "preview"
	SessionRuntime SessionKind = "runtime"
)

// RespondentNameVariable is seeded from the respondent's name at session start
const RespondentNameVariable = "user_name"

// SessionState is the per-respondent progress through a survey.
// Every id in CompletedBlocks has an entry in Answers.
type SessionState struct {
	SurveyID        string            `json:"surveyId"`
	ResponseID      string            `json:"responseId"`
	CurrentBlockID  string            `json:"currentBlockId"`
	Variables       map[string]any    `json:"variables"`
	CompletedBlocks []string          `json:"completedBlocks"`
	Answers         map[string]Answer `json:"answers"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
}

// NewSessionState starts a state at firstBlockID with only the respondent name bound
func NewSessionState(surveyID, responseID, firstBlockID, respondentName string) *SessionState {
	return &SessionState{
		SurveyID:       surveyID,
		ResponseID:     responseID,
		CurrentBlockID: firstBlockID,
		Variables: map[string]any{
			RespondentNameVariable: respondentName,
		},
		CompletedBlocks: []string{},
		Answers:         map[string]Answer{},
	}
}

// Record stores the answer and marks the block completed once
func (s *SessionState) Record(blockID string, a Answer) {
	s.Answers[blockID] = a
	if !s.HasCompleted(blockID) {
		s.CompletedBlocks = append(s.CompletedBlocks, blockID)
	}
}

func (s *SessionState) HasCompleted(blockID string) bool {
	for _, id := range s.CompletedBlocks {
		if id == blockID {
			return true
		}
	}
	return false
}

// Clone deep-copies the state
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	out.Variables = CloneVariables(s.Variables)
	out.Metadata = CloneVariables(s.Metadata)
	out.CompletedBlocks = append([]string{}, s.CompletedBlocks...)
	out.Answers = make(map[string]Answer, len(s.Answers))
	for k, a := range s.Answers {
		out.Answers[k] = a.Clone()
	}
	return &out
}

// RuntimeSession binds a state to the survey it runs and how it is stored
type RuntimeSession struct {
	SessionID    string        `json:"sessionId"`
	Kind         SessionKind   `json:"kind"`
	Config       *SurveyConfig `json:"config"`
	State        *SessionState `json:"state"`
	DeploymentID string        `json:"deploymentId,omitempty"`
	DraftID      string        `json:"draftId,omitempty"`
}

// Durable reports whether answers are written to persistence
func (r *RuntimeSession) Durable() bool {
	return r.Kind == SessionRuntime
}

// Clone copies the session with a deep-copied state. The config is shared, it is read-only.
func (r *RuntimeSession) Clone() *RuntimeSession {
	out := *r
	out.State = r.State.Clone()
	return &out
}
