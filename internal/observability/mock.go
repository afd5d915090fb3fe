package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry records counter values so tests can assert on them.
type MockMetricsRegistry struct {
	mu                  sync.Mutex
	Ticks               int
	SnapshotFailures    map[string]int
	Candidates          map[string]int
	Triggers            map[string]int
	CooldownConflicts   int
	CooldownErrors      int
	InvariantViolations int
	SinkErrors          map[string]int
	Outcomes            map[string]int
	Requests            map[string]int
	ContextRequests     map[string]int
	RateLimited         map[string]int
	ActiveCampaigns     int
	InactiveCampaigns   int
}

// NewMockMetricsRegistry returns an empty mock.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{
		SnapshotFailures: map[string]int{},
		Candidates:       map[string]int{},
		Triggers:         map[string]int{},
		SinkErrors:       map[string]int{},
		Outcomes:         map[string]int{},
		Requests:         map[string]int{},
		ContextRequests:  map[string]int{},
		RateLimited:      map[string]int{},
	}
}

func (m *MockMetricsRegistry) inc(counter map[string]int, key string, n int) {
	m.mu.Lock()
	counter[key] += n
	m.mu.Unlock()
}

// Count returns a snapshot read of one labelled counter under the lock.
func (m *MockMetricsRegistry) Count(counter map[string]int, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return counter[key]
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc(m.Requests, endpoint+" "+method+" "+status, 1)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

func (m *MockMetricsRegistry) IncrementTicks() {
	m.mu.Lock()
	m.Ticks++
	m.mu.Unlock()
}
func (m *MockMetricsRegistry) RecordTickDuration(duration time.Duration)      {}
func (m *MockMetricsRegistry) RecordEvaluationLatency(duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementSnapshotFailures(reason string) {
	m.inc(m.SnapshotFailures, reason, 1)
}
func (m *MockMetricsRegistry) AddCandidates(stage string, n int)   { m.inc(m.Candidates, stage, n) }
func (m *MockMetricsRegistry) IncrementTriggers(locationID string) { m.inc(m.Triggers, locationID, 1) }
func (m *MockMetricsRegistry) IncrementCooldownConflicts() {
	m.mu.Lock()
	m.CooldownConflicts++
	m.mu.Unlock()
}
func (m *MockMetricsRegistry) IncrementCooldownErrors() {
	m.mu.Lock()
	m.CooldownErrors++
	m.mu.Unlock()
}
func (m *MockMetricsRegistry) IncrementInvariantViolations() {
	m.mu.Lock()
	m.InvariantViolations++
	m.mu.Unlock()
}
func (m *MockMetricsRegistry) IncrementSinkErrors(sink string) { m.inc(m.SinkErrors, sink, 1) }

func (m *MockMetricsRegistry) SetRegisteredCampaigns(active, inactive int) {
	m.mu.Lock()
	m.ActiveCampaigns, m.InactiveCampaigns = active, inactive
	m.mu.Unlock()
}
func (m *MockMetricsRegistry) IncrementOutcomes(status string) { m.inc(m.Outcomes, status, 1) }
func (m *MockMetricsRegistry) IncrementRateLimited(scope string) {
	m.inc(m.RateLimited, scope, 1)
}

func (m *MockMetricsRegistry) IncrementContextSourceRequests(outcome string) {
	m.inc(m.ContextRequests, outcome, 1)
}
func (m *MockMetricsRegistry) RecordContextSourceLatency(duration time.Duration) {}

var _ MetricsRegistry = (*MockMetricsRegistry)(nil)
