package api

import (
	"net/http"
	"time"

	"github.com/patrickwarner/openadtrigger/internal/logic/ratelimit"
)

type healthResponse struct {
	Status     string                              `json:"status"`
	RateLimits map[string]ratelimit.RateLimitStats `json:"rate_limits,omitempty"`
}

// HealthHandler responds with a simple status check plus per-advertiser
// write limiter statistics when limiting is configured.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "health"
	const method = "GET"

	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", RateLimits: s.Limiter.GetStats()})

	s.observe(endpoint, method, http.StatusOK, start)
}
