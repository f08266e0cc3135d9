package handler

import (
	"net/http"
	"strconv"

	"chatsurvey/internal/service"
)

const defaultResponseLimit = 100

// ReportHandler handles admin report endpoints
type ReportHandler struct {
	reportSvc *service.ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportSvc *service.ReportService) *ReportHandler {
	return &ReportHandler{reportSvc: reportSvc}
}

// Report handles GET /v1/admin/report
func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.reportSvc.Report(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Responses handles GET /v1/admin/responses?limit=&answers=true
func (h *ReportHandler) Responses(w http.ResponseWriter, r *http.Request) {
	limit := defaultResponseLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	withAnswers := r.URL.Query().Get("answers") == "true"

	responses, err := h.reportSvc.Responses(r.Context(), limit, withAnswers)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	counts, err := h.reportSvc.Counts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"responses": responses,
		"total":     counts.Total,
		"completed": counts.Completed,
	})
}

// ClearResponses handles POST /v1/admin/clear-responses
func (h *ReportHandler) ClearResponses(w http.ResponseWriter, r *http.Request) {
	n, err := h.reportSvc.ClearResponses(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": n})
}
