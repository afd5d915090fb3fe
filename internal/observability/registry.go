package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// so components take metrics as a dependency instead of touching globals.
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Scheduler metrics
	IncrementTicks()
	RecordTickDuration(duration time.Duration)
	RecordEvaluationLatency(duration time.Duration)
	IncrementSnapshotFailures(reason string)
	AddCandidates(stage string, n int)
	IncrementTriggers(locationID string)
	IncrementCooldownConflicts()
	IncrementCooldownErrors()
	IncrementInvariantViolations()
	IncrementSinkErrors(sink string)

	// Registry and outcome metrics
	SetRegisteredCampaigns(active, inactive int)
	IncrementOutcomes(status string)
	IncrementRateLimited(scope string)

	// Context source metrics
	IncrementContextSourceRequests(outcome string)
	RecordContextSourceLatency(duration time.Duration)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Scheduler metrics
func (r *PrometheusRegistry) IncrementTicks() {
	TickCount.Inc()
}

func (r *PrometheusRegistry) RecordTickDuration(duration time.Duration) {
	TickDuration.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) RecordEvaluationLatency(duration time.Duration) {
	EvaluationLatency.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementSnapshotFailures(reason string) {
	SnapshotFailures.WithLabelValues(reason).Inc()
}

func (r *PrometheusRegistry) AddCandidates(stage string, n int) {
	Candidates.WithLabelValues(stage).Add(float64(n))
}

func (r *PrometheusRegistry) IncrementTriggers(locationID string) {
	TriggersEmitted.WithLabelValues(locationID).Inc()
}

func (r *PrometheusRegistry) IncrementCooldownConflicts() {
	CooldownConflicts.Inc()
}

func (r *PrometheusRegistry) IncrementCooldownErrors() {
	CooldownErrors.Inc()
}

func (r *PrometheusRegistry) IncrementInvariantViolations() {
	InvariantViolations.Inc()
}

func (r *PrometheusRegistry) IncrementSinkErrors(sink string) {
	SinkErrors.WithLabelValues(sink).Inc()
}

// Registry and outcome metrics
func (r *PrometheusRegistry) SetRegisteredCampaigns(active, inactive int) {
	RegisteredCampaigns.WithLabelValues("active").Set(float64(active))
	RegisteredCampaigns.WithLabelValues("inactive").Set(float64(inactive))
}

func (r *PrometheusRegistry) IncrementOutcomes(status string) {
	Outcomes.WithLabelValues(status).Inc()
}

func (r *PrometheusRegistry) IncrementRateLimited(scope string) {
	RateLimited.WithLabelValues(scope).Inc()
}

// Context source metrics
func (r *PrometheusRegistry) IncrementContextSourceRequests(outcome string) {
	ContextSourceRequests.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) RecordContextSourceLatency(duration time.Duration) {
	ContextSourceLatency.Observe(duration.Seconds())
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

func (r *NoOpRegistry) IncrementTicks()                                {}
func (r *NoOpRegistry) RecordTickDuration(duration time.Duration)      {}
func (r *NoOpRegistry) RecordEvaluationLatency(duration time.Duration) {}
func (r *NoOpRegistry) IncrementSnapshotFailures(reason string)        {}
func (r *NoOpRegistry) AddCandidates(stage string, n int)              {}
func (r *NoOpRegistry) IncrementTriggers(locationID string)            {}
func (r *NoOpRegistry) IncrementCooldownConflicts()                    {}
func (r *NoOpRegistry) IncrementCooldownErrors()                       {}
func (r *NoOpRegistry) IncrementInvariantViolations()                  {}
func (r *NoOpRegistry) IncrementSinkErrors(sink string)                {}

func (r *NoOpRegistry) SetRegisteredCampaigns(active, inactive int) {}
func (r *NoOpRegistry) IncrementOutcomes(status string)             {}
func (r *NoOpRegistry) IncrementRateLimited(scope string)           {}

func (r *NoOpRegistry) IncrementContextSourceRequests(outcome string)     {}
func (r *NoOpRegistry) RecordContextSourceLatency(duration time.Duration) {}

var (
	_ MetricsRegistry = (*PrometheusRegistry)(nil)
	_ MetricsRegistry = (*NoOpRegistry)(nil)
)
