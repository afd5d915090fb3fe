package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adtrigger_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adtrigger_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// scheduler ticks
	TickCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adtrigger_ticks_total",
			Help: "Total scheduler ticks run",
		},
	)

	// wall time of a full tick across all locations
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adtrigger_tick_duration_seconds",
			Help:    "Duration of scheduler ticks",
			Buckets: prometheus.DefBuckets,
		},
	)

	// per-location evaluation latency
	EvaluationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adtrigger_location_evaluation_seconds",
			Help:    "Duration of a single location evaluation",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// locations skipped because no context snapshot was available
	SnapshotFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adtrigger_snapshot_failures_total",
			Help: "Context snapshots that could not be obtained",
		},
		[]string{"reason"},
	)

	// candidates remaining after each filter stage
	Candidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adtrigger_candidates_total",
			Help: "Campaigns surviving each evaluation stage",
		},
		[]string{"stage"},
	)

	// triggers emitted per location
	TriggersEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adtrigger_triggers_total",
			Help: "Playback triggers emitted",
		},
		[]string{"location_id"},
	)

	// winners that lost their cooldown claim to a concurrent evaluation
	CooldownConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adtrigger_cooldown_conflicts_total",
			Help: "Winners dropped because the cooldown claim failed",
		},
	)

	// cooldown store errors
	CooldownErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adtrigger_cooldown_errors_total",
			Help: "Cooldown store errors",
		},
	)

	// conflict resolver invariant violations
	InvariantViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adtrigger_invariant_violations_total",
			Help: "Internal invariant violations detected and skipped",
		},
	)

	// trigger sink failures labelled by sink
	SinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adtrigger_sink_errors_total",
			Help: "Errors delivering triggers to a sink",
		},
		[]string{"sink"},
	)

	// playback outcomes reported back, labelled by status
	Outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adtrigger_outcomes_total",
			Help: "Playback outcomes reported",
		},
		[]string{"status"},
	)

	// campaigns currently registered, by state
	RegisteredCampaigns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adtrigger_campaigns",
			Help: "Registered campaigns",
		},
		[]string{"state"},
	)

	// context source calls labelled by outcome
	ContextSourceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adtrigger_context_source_requests_total",
			Help: "Context source requests",
		},
		[]string{"outcome"},
	)

	// admin writes rejected by the rate limiter
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adtrigger_rate_limited_total",
			Help: "Admin API requests rejected by rate limiting",
		},
		[]string{"scope"},
	)

	// Latency of context source calls
	ContextSourceLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adtrigger_context_source_duration_seconds",
			Help:    "Duration of context source requests",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		TickCount,
		TickDuration,
		EvaluationLatency,
		SnapshotFailures,
		Candidates,
		TriggersEmitted,
		CooldownConflicts,
		CooldownErrors,
		InvariantViolations,
		SinkErrors,
		Outcomes,
		RegisteredCampaigns,
		ContextSourceRequests,
		ContextSourceLatency,
		RateLimited,
	)
}
