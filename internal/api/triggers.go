package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadtrigger/internal/analytics"
	"github.com/patrickwarner/openadtrigger/internal/db"
	"github.com/patrickwarner/openadtrigger/internal/middleware"
	"github.com/patrickwarner/openadtrigger/internal/models"
)

const maxTriggerLimit = 1000

// ListTriggers returns recent triggers, newest first.
// Query: location (optional), limit (default 50, max 1000).
func (s *Server) ListTriggers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "triggers"
	status := s.listTriggers(w, r)
	s.observe(endpoint, "GET", status, start)
}

func (s *Server) listTriggers(w http.ResponseWriter, r *http.Request) int {
	if s.TriggerLog == nil {
		writeError(w, http.StatusServiceUnavailable, "trigger log unavailable")
		return http.StatusServiceUnavailable
	}
	limit := analytics.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return http.StatusBadRequest
		}
		limit = min(n, maxTriggerLimit)
	}

	triggers, err := s.TriggerLog.RecentTriggers(r.Context(), r.URL.Query().Get("location"), limit)
	if err != nil {
		if errors.Is(err, analytics.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "trigger log unavailable")
			return http.StatusServiceUnavailable
		}
		middleware.LoggerFromRequest(r, s.Logger).Error("query triggers", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return http.StatusInternalServerError
	}
	if triggers == nil {
		triggers = []models.PlaybackTrigger{}
	}
	writeJSON(w, http.StatusOK, triggers)
	return http.StatusOK
}

type statusRequest struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ReportTriggerStatus records the terminal outcome the playback or billing
// side reports for a trigger. Only done and failed are accepted, once.
func (s *Server) ReportTriggerStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := s.reportStatus(w, r)
	s.observe("triggers/{id}/status", "POST", status, start)
}

func (s *Server) reportStatus(w http.ResponseWriter, r *http.Request) int {
	logger := middleware.LoggerFromRequest(r, s.Logger)
	id := mux.Vars(r)["id"]

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return http.StatusBadRequest
	}
	st, err := models.ParseTriggerStatus(req.Status)
	if err != nil || !models.TriggerPending.CanTransition(st) {
		writeError(w, http.StatusBadRequest, "status must be done or failed")
		return http.StatusBadRequest
	}
	outcome := models.TriggerOutcome{TriggerID: id, Status: st, Detail: req.Detail, ReportedAt: s.nowFn().UTC()}

	if s.TriggerLog != nil {
		switch err := s.TriggerLog.RecordStatus(r.Context(), outcome); {
		case errors.Is(err, models.ErrNotFound):
			writeError(w, http.StatusNotFound, "trigger not found")
			return http.StatusNotFound
		case errors.Is(err, analytics.ErrStatusConflict):
			writeError(w, http.StatusConflict, "trigger status already final")
			return http.StatusConflict
		case err != nil:
			logger.Error("record trigger status", zap.String("trigger_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return http.StatusInternalServerError
		}
	}

	if s.Outcomes != nil {
		if err := s.Outcomes.RecordOutcome(r.Context(), outcome); err != nil {
			if errors.Is(err, db.ErrOutcomeExists) {
				writeError(w, http.StatusConflict, "trigger status already final")
				return http.StatusConflict
			}
			// Audit write failures do not fail the report.
			logger.Error("persist trigger outcome", zap.String("trigger_id", id), zap.Error(err))
		}
	}

	s.Metrics.IncrementOutcomes(string(st))
	logger.Info("trigger outcome reported", zap.String("trigger_id", id), zap.String("status", string(st)))
	writeJSON(w, http.StatusOK, outcome)
	return http.StatusOK
}
