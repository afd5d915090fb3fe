package models

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a campaign is not registered.
var ErrNotFound = errors.New("entity not found")

// CampaignRegistry is the validated in-memory catalogue of campaigns.
// Reads go through immutable snapshots so an evaluation tick never observes
// a campaign added or changed halfway through.
type CampaignRegistry interface {
	// Register validates c and stores it. An empty ID is assigned a new
	// UUID. Registering an existing ID replaces that campaign while keeping
	// its registration order. Invalid campaigns are rejected in full with a
	// *ValidationError.
	Register(c Campaign) (string, error)
	Deactivate(id string) error
	Activate(id string) error

	Get(id string) (Campaign, bool)
	// List returns active campaigns scoped to locationID in registration order.
	List(locationID string) []Campaign
	All() []Campaign

	// Snapshot returns the current immutable view of the registry.
	Snapshot() *RegistrySnapshot
}

// RegistrySnapshot is an immutable view of the registry at one point in time.
type RegistrySnapshot struct {
	campaigns  []Campaign // ordered by Seq
	index      map[string]int
	byLocation map[string][]int // active campaigns only
}

func buildSnapshot(campaigns []Campaign) *RegistrySnapshot {
	sort.SliceStable(campaigns, func(i, j int) bool { return campaigns[i].Seq < campaigns[j].Seq })
	snap := &RegistrySnapshot{
		campaigns:  campaigns,
		index:      make(map[string]int, len(campaigns)),
		byLocation: make(map[string][]int),
	}
	for i, c := range campaigns {
		snap.index[c.ID] = i
		if !c.Active {
			continue
		}
		seen := make(map[string]struct{}, len(c.LocationScope))
		for _, loc := range c.LocationScope {
			if _, dup := seen[loc]; dup {
				continue
			}
			seen[loc] = struct{}{}
			snap.byLocation[loc] = append(snap.byLocation[loc], i)
		}
	}
	return snap
}

// ForLocation returns the active campaigns placed at locationID in
// registration order.
func (s *RegistrySnapshot) ForLocation(locationID string) []Campaign {
	if s == nil {
		return nil
	}
	idx := s.byLocation[locationID]
	out := make([]Campaign, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.campaigns[i].Clone())
	}
	return out
}

// Get returns a copy of the campaign with the given ID.
func (s *RegistrySnapshot) Get(id string) (Campaign, bool) {
	if s == nil {
		return Campaign{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return Campaign{}, false
	}
	return s.campaigns[i].Clone(), true
}

// All returns every campaign, active or not, in registration order.
func (s *RegistrySnapshot) All() []Campaign {
	if s == nil {
		return nil
	}
	out := make([]Campaign, len(s.campaigns))
	for i, c := range s.campaigns {
		out[i] = c.Clone()
	}
	return out
}

// Len returns the number of registered campaigns.
func (s *RegistrySnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.campaigns)
}

// InMemoryCampaignRegistry implements CampaignRegistry with copy-on-write
// snapshots. Writers serialize on mu; readers never block.
type InMemoryCampaignRegistry struct {
	mu      sync.Mutex
	nextSeq uint64
	data    atomic.Pointer[RegistrySnapshot]
}

// NewInMemoryCampaignRegistry creates an empty registry.
func NewInMemoryCampaignRegistry() *InMemoryCampaignRegistry {
	r := &InMemoryCampaignRegistry{}
	r.data.Store(buildSnapshot(nil))
	return r
}

func (r *InMemoryCampaignRegistry) Register(c Campaign) (string, error) {
	c = c.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	warnings, err := c.Validate()
	if err != nil {
		return "", err
	}
	c.Warnings = warnings

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.data.Load()
	next := make([]Campaign, 0, len(current.campaigns)+1)
	replaced := false
	for _, existing := range current.campaigns {
		if existing.ID == c.ID {
			c.Seq = existing.Seq
			next = append(next, c)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		r.nextSeq++
		c.Seq = r.nextSeq
		next = append(next, c)
	}
	r.data.Store(buildSnapshot(next))
	return c.ID, nil
}

func (r *InMemoryCampaignRegistry) Deactivate(id string) error {
	return r.setActive(id, false)
}

func (r *InMemoryCampaignRegistry) Activate(id string) error {
	return r.setActive(id, true)
}

func (r *InMemoryCampaignRegistry) setActive(id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.data.Load()
	i, ok := current.index[id]
	if !ok {
		return ErrNotFound
	}
	if current.campaigns[i].Active == active {
		return nil
	}
	next := make([]Campaign, len(current.campaigns))
	copy(next, current.campaigns)
	updated := next[i]
	updated.Active = active
	next[i] = updated
	r.data.Store(buildSnapshot(next))
	return nil
}

func (r *InMemoryCampaignRegistry) Get(id string) (Campaign, bool) {
	return r.data.Load().Get(id)
}

func (r *InMemoryCampaignRegistry) List(locationID string) []Campaign {
	return r.data.Load().ForLocation(locationID)
}

func (r *InMemoryCampaignRegistry) All() []Campaign {
	return r.data.Load().All()
}

func (r *InMemoryCampaignRegistry) Snapshot() *RegistrySnapshot {
	return r.data.Load()
}

var _ CampaignRegistry = (*InMemoryCampaignRegistry)(nil)
