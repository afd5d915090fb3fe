package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/openadtrigger/internal/middleware"
	"github.com/patrickwarner/openadtrigger/internal/models"
)

type evaluateRequest struct {
	LocationID string                 `json:"location_id"`
	At         *time.Time             `json:"at,omitempty"`
	Snapshot   models.ContextSnapshot `json:"snapshot"`
}

// EvaluateHandler runs a dry evaluation of one location against the supplied
// snapshot and returns the per-stage trace. Nothing is fired or recorded.
func (s *Server) EvaluateHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := s.evaluate(w, r)
	s.observe("evaluate", "POST", status, start)
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) int {
	if !s.DebugTrace || s.Scheduler == nil {
		writeError(w, http.StatusNotFound, "evaluation trace disabled")
		return http.StatusNotFound
	}

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return http.StatusBadRequest
	}
	if req.LocationID == "" {
		req.LocationID = req.Snapshot.LocationID
	}
	if req.LocationID == "" {
		writeError(w, http.StatusBadRequest, "location_id required")
		return http.StatusBadRequest
	}
	now := s.nowFn()
	if req.At != nil {
		now = *req.At
	}

	trace, err := s.Scheduler.DryRun(r.Context(), req.LocationID, req.Snapshot, now)
	if err != nil {
		middleware.LoggerFromRequest(r, s.Logger).Error("dry run", zap.String("location_id", req.LocationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return http.StatusInternalServerError
	}
	writeJSON(w, http.StatusOK, trace)
	return http.StatusOK
}
