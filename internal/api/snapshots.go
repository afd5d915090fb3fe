package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadtrigger/internal/middleware"
	"github.com/patrickwarner/openadtrigger/internal/models"
)

// PutSnapshot stores the current context for the location at {id}. The next
// tick evaluates the location against it. Available only when the engine
// reads context from pushed snapshots.
func (s *Server) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := s.putSnapshot(w, r)
	s.observe("locations/{id}/snapshot", "PUT", status, start)
}

func (s *Server) putSnapshot(w http.ResponseWriter, r *http.Request) int {
	if s.Snapshots == nil {
		writeError(w, http.StatusNotFound, "snapshot push disabled")
		return http.StatusNotFound
	}
	var snap models.ContextSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return http.StatusBadRequest
	}
	snap.LocationID = mux.Vars(r)["id"]
	if snap.Timestamp.IsZero() {
		snap.Timestamp = s.nowFn().UTC()
	}
	s.Snapshots.Set(snap)
	middleware.LoggerFromRequest(r, s.Logger).Debug("context snapshot stored", zap.String("location_id", snap.LocationID))
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent
}

// DeleteSnapshot forgets the context for {id}; the location stops firing
// until a new snapshot arrives.
func (s *Server) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusNoContent
	if s.Snapshots == nil {
		status = http.StatusNotFound
		writeError(w, status, "snapshot push disabled")
	} else {
		s.Snapshots.Delete(mux.Vars(r)["id"])
		w.WriteHeader(status)
	}
	s.observe("locations/{id}/snapshot", "DELETE", status, start)
}
