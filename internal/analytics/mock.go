package analytics

import (
	"context"
	"sync"

	"github.com/patrickwarner/openadtrigger/internal/models"
)

// MockTriggerLog records calls for tests. Err, when set, is returned from
// every method.
type MockTriggerLog struct {
	mu       sync.Mutex
	Err      error
	Triggers []models.PlaybackTrigger
	Outcomes []models.TriggerOutcome
}

// NewMockTriggerLog creates an empty mock.
func NewMockTriggerLog() *MockTriggerLog {
	return &MockTriggerLog{}
}

func (m *MockTriggerLog) RecordTrigger(ctx context.Context, t models.PlaybackTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Triggers = append(m.Triggers, t)
	return nil
}

func (m *MockTriggerLog) RecordStatus(ctx context.Context, o models.TriggerOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Outcomes = append(m.Outcomes, o)
	return nil
}

func (m *MockTriggerLog) RecentTriggers(ctx context.Context, locationID string, limit int) ([]models.PlaybackTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.PlaybackTrigger
	for i := len(m.Triggers) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if locationID == "" || m.Triggers[i].LocationID == locationID {
			out = append(out, m.Triggers[i])
		}
	}
	return out, nil
}

// Recorded returns a copy of the triggers recorded so far.
func (m *MockTriggerLog) Recorded() []models.PlaybackTrigger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PlaybackTrigger(nil), m.Triggers...)
}
