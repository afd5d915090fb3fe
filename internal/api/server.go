package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadtrigger/internal/analytics"
	"github.com/patrickwarner/openadtrigger/internal/contextsource"
	"github.com/patrickwarner/openadtrigger/internal/db"
	"github.com/patrickwarner/openadtrigger/internal/logic/ratelimit"
	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
	"github.com/patrickwarner/openadtrigger/internal/scheduler"
)

// CampaignUpdateChannel carries campaign change notifications for other
// engine replicas and dashboards.
const CampaignUpdateChannel = "campaign-updates"

// OutcomeStore persists reported trigger outcomes for audit.
type OutcomeStore interface {
	RecordOutcome(ctx context.Context, o models.TriggerOutcome) error
}

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger     *zap.Logger
	Registry   models.CampaignRegistry
	Scheduler  *scheduler.Scheduler
	TriggerLog analytics.TriggerLog
	Outcomes   OutcomeStore
	Store      *db.RedisStore
	Metrics    observability.MetricsRegistry
	DebugTrace bool
	// Limiter throttles campaign writes per advertiser. Nil disables it.
	Limiter *ratelimit.KeyedLimiter
	// Snapshots receives pushed context when no upstream source is
	// configured. Nil disables the snapshot routes.
	Snapshots *contextsource.StaticSource

	nowFn func() time.Time
}

// NewServer constructs a Server. outcomes and store may be nil.
func NewServer(logger *zap.Logger, registry models.CampaignRegistry, sched *scheduler.Scheduler, log analytics.TriggerLog, outcomes OutcomeStore, store *db.RedisStore, metrics observability.MetricsRegistry, debug bool) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	s := &Server{
		Logger:     logger,
		Registry:   registry,
		Scheduler:  sched,
		TriggerLog: log,
		Outcomes:   outcomes,
		Store:      store,
		Metrics:    metrics,
		DebugTrace: debug,
		nowFn:      time.Now,
	}
	s.refreshCampaignGauge()
	return s
}

// Routes builds the router for the admin and operational surface.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/campaigns", s.ListCampaigns).Methods("GET")
	api.HandleFunc("/campaigns", s.CreateCampaign).Methods("POST")
	api.HandleFunc("/campaigns/{id}", s.GetCampaign).Methods("GET")
	api.HandleFunc("/campaigns/{id}", s.UpdateCampaign).Methods("PUT")
	api.HandleFunc("/campaigns/{id}/deactivate", s.DeactivateCampaign).Methods("POST")
	api.HandleFunc("/campaigns/{id}/activate", s.ActivateCampaign).Methods("POST")

	api.HandleFunc("/triggers", s.ListTriggers).Methods("GET")
	api.HandleFunc("/triggers/{id}/status", s.ReportTriggerStatus).Methods("POST")

	api.HandleFunc("/locations/{id}/snapshot", s.PutSnapshot).Methods("PUT")
	api.HandleFunc("/locations/{id}/snapshot", s.DeleteSnapshot).Methods("DELETE")

	api.HandleFunc("/evaluate", s.EvaluateHandler).Methods("POST")
	return r
}

type UpdateMessage struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id"`
}

func (s *Server) notifyUpdate(ctx context.Context, action, id string) {
	if s.Store == nil || s.Store.Client == nil {
		return
	}
	msg := UpdateMessage{Entity: "campaign", Action: action, ID: id}
	if _, err := s.Store.Publish(ctx, CampaignUpdateChannel, msg); err != nil {
		s.Logger.Error("failed to publish update message", zap.Error(err))
	}
}

func (s *Server) refreshCampaignGauge() {
	if s.Registry == nil {
		return
	}
	active, inactive := 0, 0
	for _, c := range s.Registry.All() {
		if c.Active {
			active++
		} else {
			inactive++
		}
	}
	s.Metrics.SetRegisteredCampaigns(active, inactive)
}

func (s *Server) observe(endpoint, method string, status int, start time.Time) {
	s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
