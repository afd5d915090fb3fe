package analytics

import (
	"context"
	"errors"
	"sync"

	"github.com/patrickwarner/openadtrigger/internal/models"
)

// DefaultRecentLimit caps RecentTriggers when the caller passes no limit.
const DefaultRecentLimit = 50

var (
	// ErrUnavailable is returned when the trigger log backend is not configured.
	ErrUnavailable = errors.New("trigger log unavailable")
	// ErrStatusConflict is returned when a trigger already has a terminal status
	// or the reported status is not a legal transition.
	ErrStatusConflict = errors.New("trigger status already final")
)

// TriggerLog is the append-only record of emitted triggers and the outcomes
// reported for them. Implementations never rewrite a trigger row; status
// changes are appended as separate entries.
type TriggerLog interface {
	RecordTrigger(ctx context.Context, t models.PlaybackTrigger) error
	RecordStatus(ctx context.Context, o models.TriggerOutcome) error
	// RecentTriggers returns up to limit triggers, newest first, with their
	// current status. An empty locationID matches every location.
	RecentTriggers(ctx context.Context, locationID string, limit int) ([]models.PlaybackTrigger, error)
}

// MemoryLog keeps the most recent triggers in a fixed-size ring.
type MemoryLog struct {
	mu       sync.RWMutex
	capacity int
	ring     []models.PlaybackTrigger
	next     int
	full     bool
	index    map[string]int
}

// NewMemoryLog creates a log that retains the last capacity triggers.
func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryLog{
		capacity: capacity,
		ring:     make([]models.PlaybackTrigger, capacity),
		index:    make(map[string]int, capacity),
	}
}

// RecordTrigger appends t, evicting the oldest entry when the ring is full.
func (l *MemoryLog) RecordTrigger(ctx context.Context, t models.PlaybackTrigger) error {
	if l == nil {
		return ErrUnavailable
	}
	if t.Status == "" {
		t.Status = models.TriggerPending
	}
	t.MatchedConditions = append([]string(nil), t.MatchedConditions...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		delete(l.index, l.ring[l.next].ID)
	}
	l.ring[l.next] = t
	l.index[t.ID] = l.next
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.full = true
	}
	return nil
}

// RecordStatus applies a terminal outcome to a retained trigger.
func (l *MemoryLog) RecordStatus(ctx context.Context, o models.TriggerOutcome) error {
	if l == nil {
		return ErrUnavailable
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.index[o.TriggerID]
	if !ok {
		return models.ErrNotFound
	}
	if !l.ring[pos].Status.CanTransition(o.Status) {
		return ErrStatusConflict
	}
	l.ring[pos].Status = o.Status
	return nil
}

// Trigger returns a retained trigger by ID.
func (l *MemoryLog) Trigger(id string) (models.PlaybackTrigger, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.index[id]
	if !ok {
		return models.PlaybackTrigger{}, false
	}
	return l.ring[pos], true
}

// RecentTriggers walks the ring backwards from the newest entry.
func (l *MemoryLog) RecentTriggers(ctx context.Context, locationID string, limit int) ([]models.PlaybackTrigger, error) {
	if l == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.full {
		size = l.capacity
	}
	out := make([]models.PlaybackTrigger, 0, min(limit, size))
	for i := 1; i <= size && len(out) < limit; i++ {
		t := l.ring[(l.next-i+l.capacity)%l.capacity]
		if locationID != "" && t.LocationID != locationID {
			continue
		}
		t.MatchedConditions = append([]string(nil), t.MatchedConditions...)
		out = append(out, t)
	}
	return out, nil
}

var (
	_ TriggerLog = (*MemoryLog)(nil)
	_ TriggerLog = (*ClickHouseLog)(nil)
	_ TriggerLog = (*MockTriggerLog)(nil)
)
