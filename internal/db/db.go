package db

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/patrickwarner/openadtrigger/internal/models"
)

// LocationDirectory lists the locations the scheduler evaluates each tick.
type LocationDirectory interface {
	Locations(ctx context.Context) ([]models.Location, error)
}

// StaticLocations is an in-memory LocationDirectory.
type StaticLocations struct {
	mu        sync.RWMutex
	locations map[string]models.Location
}

// NewStaticLocations builds a directory from the given locations.
func NewStaticLocations(locations ...models.Location) *StaticLocations {
	s := &StaticLocations{locations: make(map[string]models.Location, len(locations))}
	for _, l := range locations {
		s.locations[l.ID] = l
	}
	return s
}

// ParseStaticLocations parses a comma separated list of "id" or
// "id@Time/Zone" entries, for example "mall-1@Europe/Berlin,kiosk-7".
func ParseStaticLocations(spec string) *StaticLocations {
	var locs []models.Location
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, tz, _ := strings.Cut(part, "@")
		locs = append(locs, models.Location{ID: id, TimeZone: tz, Active: true})
	}
	return NewStaticLocations(locs...)
}

// Put adds or replaces a location.
func (s *StaticLocations) Put(l models.Location) {
	s.mu.Lock()
	s.locations[l.ID] = l
	s.mu.Unlock()
}

// Locations returns active locations ordered by ID.
func (s *StaticLocations) Locations(_ context.Context) ([]models.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Location, 0, len(s.locations))
	for _, l := range s.locations {
		if l.Active {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ LocationDirectory = (*StaticLocations)(nil)
