package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"chatsurvey/internal/model"
	"chatsurvey/internal/service"
	"chatsurvey/internal/surveyconfig"
)

// RuntimeHandler serves the respondent-facing session endpoints
type RuntimeHandler struct {
	runtime      *service.RuntimeService
	surveys      *service.SurveyService
	deploymentID string
	logger       *slog.Logger
}

// NewRuntimeHandler creates a new runtime handler
func NewRuntimeHandler(runtime *service.RuntimeService, surveys *service.SurveyService, deploymentID string, logger *slog.Logger) *RuntimeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuntimeHandler{
		runtime:      runtime,
		surveys:      surveys,
		deploymentID: deploymentID,
		logger:       logger,
	}
}

// StartRequest is the optional body for starting a session
type StartRequest struct {
	RespondentName string                 `json:"respondentName"`
	Tracking       map[string]interface{} `json:"tracking"`
	DraftID        string                 `json:"draftId"`
	// Config is only honored by preview: a JSON document or a YAML string
	Config json.RawMessage `json:"config"`
}

// AnswerRequest is the body for submitting an answer
type AnswerRequest struct {
	QuestionID string          `json:"questionId"`
	Answer     json.RawMessage `json:"answer"`
}

// Start handles POST /v1/runtime/start
func (h *RuntimeHandler) Start(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStartRequest(w, r)
	if !ok {
		return
	}

	cfg, err := h.surveys.Active(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.runtime.StartRuntime(r.Context(), cfg, model.StartOptions{
		RespondentName: req.RespondentName,
		Tracking:       req.Tracking,
		DeploymentID:   h.deploymentID,
		DraftID:        req.DraftID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Preview handles POST /v1/runtime/preview. Without a config in the body the
// active survey is previewed.
func (h *RuntimeHandler) Preview(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStartRequest(w, r)
	if !ok {
		return
	}

	var cfg *model.SurveyConfig
	var err error
	if len(req.Config) > 0 {
		def := []byte(req.Config)
		var text string
		if json.Unmarshal(req.Config, &text) == nil {
			def = []byte(text)
		}
		var report *surveyconfig.Report
		if cfg, report, err = surveyconfig.Parse(def, ""); err != nil {
			writeValidationError(w, err, report)
			return
		}
	} else if cfg, err = h.surveys.Active(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.runtime.StartPreview(r.Context(), cfg, model.StartOptions{
		RespondentName: req.RespondentName,
		Tracking:       req.Tracking,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// State handles GET /v1/runtime/sessions/{sessionId}
func (h *RuntimeHandler) State(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	view, err := h.runtime.GetSessionState(r.Context(), sessionID, h.rebuildConfig(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Answer handles POST /v1/runtime/sessions/{sessionId}/answer. Reaching a
// final-message or end block completes the session.
func (h *RuntimeHandler) Answer(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "questionId is required")
		return
	}

	result, err := h.runtime.SubmitAnswer(r.Context(), service.SubmitRequest{
		SessionID:  sessionID,
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		Config:     h.rebuildConfig(r.Context()),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if next := result.NextQuestion; next != nil && (next.Type == model.BlockFinalMessage || next.Type == model.BlockEnd) {
		if err := h.runtime.CompleteSession(r.Context(), sessionID); err != nil {
			h.logger.Warn("auto-complete failed", "session_id", sessionID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// End handles POST /v1/runtime/sessions/{sessionId}/end
func (h *RuntimeHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	if err := h.runtime.CompleteSession(r.Context(), sessionID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// rebuildConfig is the survey used to reconstruct sessions missing from the
// cache. Without an active survey only cached sessions can be served.
func (h *RuntimeHandler) rebuildConfig(ctx context.Context) *model.SurveyConfig {
	cfg, err := h.surveys.Active(ctx)
	if err != nil {
		if !errors.Is(err, service.ErrNoActiveSurvey) {
			h.logger.Warn("active survey unavailable", "error", err)
		}
		return nil
	}
	return cfg
}

func decodeStartRequest(w http.ResponseWriter, r *http.Request) (*StartRequest, bool) {
	var req StartRequest
	if r.Body == nil {
		return &req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &req, true
}
