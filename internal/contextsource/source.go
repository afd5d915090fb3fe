package contextsource

import (
	"context"
	"errors"
	"sync"

	"github.com/patrickwarner/openadtrigger/internal/models"
)

// ErrNoSnapshot is returned when a source has nothing for a location.
var ErrNoSnapshot = errors.New("no context snapshot for location")

// Source supplies the current context snapshot for a location.
type Source interface {
	Snapshot(ctx context.Context, locationID string) (models.ContextSnapshot, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, locationID string) (models.ContextSnapshot, error)

// Snapshot calls f.
func (f SourceFunc) Snapshot(ctx context.Context, locationID string) (models.ContextSnapshot, error) {
	return f(ctx, locationID)
}

// StaticSource serves snapshots pushed into it with Set. The server exposes
// it as PUT /api/locations/{id}/snapshot when no HTTP source is configured.
type StaticSource struct {
	mu        sync.RWMutex
	snapshots map[string]models.ContextSnapshot
}

// NewStaticSource returns an empty StaticSource.
func NewStaticSource() *StaticSource {
	return &StaticSource{snapshots: make(map[string]models.ContextSnapshot)}
}

// Set stores snap as the current snapshot for its location.
func (s *StaticSource) Set(snap models.ContextSnapshot) {
	s.mu.Lock()
	s.snapshots[snap.LocationID] = snap
	s.mu.Unlock()
}

// Delete forgets the snapshot for locationID.
func (s *StaticSource) Delete(locationID string) {
	s.mu.Lock()
	delete(s.snapshots, locationID)
	s.mu.Unlock()
}

// Snapshot returns the stored snapshot or ErrNoSnapshot.
func (s *StaticSource) Snapshot(ctx context.Context, locationID string) (models.ContextSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.ContextSnapshot{}, err
	}
	s.mu.RLock()
	snap, ok := s.snapshots[locationID]
	s.mu.RUnlock()
	if !ok {
		return models.ContextSnapshot{}, ErrNoSnapshot
	}
	return snap, nil
}

var (
	_ Source = (*StaticSource)(nil)
	_ Source = SourceFunc(nil)
	_ Source = (*HTTPSource)(nil)
)
