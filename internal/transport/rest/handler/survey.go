package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"chatsurvey/internal/model"
	"chatsurvey/internal/service"
	"chatsurvey/internal/surveyconfig"
)

// SurveyHandler handles stored survey endpoints
type SurveyHandler struct {
	surveySvc *service.SurveyService
}

// NewSurveyHandler creates a new survey handler
func NewSurveyHandler(surveySvc *service.SurveyService) *SurveyHandler {
	return &SurveyHandler{surveySvc: surveySvc}
}

// SurveyRequest is the body for creating or updating a survey. Definition is
// a JSON document, or a string holding YAML.
type SurveyRequest struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
}

// SurveyResponse is a stored survey plus its validation warnings
type SurveyResponse struct {
	*model.StoredSurvey
	Warnings []surveyconfig.Issue `json:"warnings,omitempty"`
}

// Create handles POST /v1/surveys
func (h *SurveyHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, def, ok := decodeSurveyRequest(w, r)
	if !ok {
		return
	}

	survey, report, err := h.surveySvc.Create(r.Context(), req.Name, def)
	if err != nil {
		writeValidationError(w, err, report)
		return
	}

	writeJSON(w, http.StatusCreated, surveyResponse(survey, report))
}

// List handles GET /v1/surveys
func (h *SurveyHandler) List(w http.ResponseWriter, r *http.Request) {
	surveys, err := h.surveySvc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"surveys": surveys})
}

// Get handles GET /v1/surveys/{surveyId}
func (h *SurveyHandler) Get(w http.ResponseWriter, r *http.Request) {
	survey, err := h.surveySvc.GetByID(r.Context(), mux.Vars(r)["surveyId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, survey)
}

// Update handles PUT /v1/surveys/{surveyId}
func (h *SurveyHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, def, ok := decodeSurveyRequest(w, r)
	if !ok {
		return
	}

	survey, report, err := h.surveySvc.Update(r.Context(), mux.Vars(r)["surveyId"], req.Name, def)
	if err != nil {
		writeValidationError(w, err, report)
		return
	}

	writeJSON(w, http.StatusOK, surveyResponse(survey, report))
}

func decodeSurveyRequest(w http.ResponseWriter, r *http.Request) (*SurveyRequest, []byte, bool) {
	var req SurveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, nil, false
	}
	if len(req.Definition) == 0 {
		writeError(w, http.StatusBadRequest, "definition is required")
		return nil, nil, false
	}

	def := []byte(req.Definition)
	var text string
	if err := json.Unmarshal(req.Definition, &text); err == nil {
		def = []byte(text)
	}
	return &req, def, true
}

func writeValidationError(w http.ResponseWriter, err error, report *surveyconfig.Report) {
	if report == nil || report.OK() {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":    err.Error(),
		"errors":   report.Errors,
		"warnings": report.Warnings,
	})
}

func surveyResponse(survey *model.StoredSurvey, report *surveyconfig.Report) SurveyResponse {
	resp := SurveyResponse{StoredSurvey: survey}
	if report != nil {
		resp.Warnings = report.Warnings
	}
	return resp
}
