package models

import "time"

// Campaign is the unit of scheduling: a creative, the conditions under which
// it may play, and the calendar that bounds when it is eligible.
// Campaigns are owned by an advertiser and placed at one or more locations.
type Campaign struct {
	ID            string      `json:"id" yaml:"id"`
	AdvertiserID  string      `json:"advertiser_id" yaml:"advertiser_id"`
	Name          string      `json:"name,omitempty" yaml:"name,omitempty"`
	CreativeID    string      `json:"creative_id,omitempty" yaml:"creative_id,omitempty"`
	LocationScope []string    `json:"location_scope" yaml:"location_scope"`
	Priority      int         `json:"priority" yaml:"priority"`
	Conditions    []Predicate `json:"conditions" yaml:"conditions"`
	Calendar      Calendar    `json:"calendar" yaml:"calendar"`
	// MinSpacingMinutes overrides the derived spacing between two firings
	// at the same location. Zero means derive it.
	MinSpacingMinutes int  `json:"min_spacing_minutes,omitempty" yaml:"min_spacing_minutes,omitempty"`
	Active            bool `json:"is_active" yaml:"is_active"`

	// Set by the registry.
	Seq      uint64   `json:"registration_seq" yaml:"-"`
	Warnings []string `json:"warnings,omitempty" yaml:"-"`
}

// AppliesTo reports whether the campaign is placed at locationID.
func (c Campaign) AppliesTo(locationID string) bool {
	for _, id := range c.LocationScope {
		if id == locationID {
			return true
		}
	}
	return false
}

// MinSpacing returns the minimum interval between consecutive firings of the
// campaign at one location. An explicit value wins, then the interval of an
// IntervalRepeat recurrence, then floor.
func (c Campaign) MinSpacing(floor time.Duration) time.Duration {
	if c.MinSpacingMinutes > 0 {
		return time.Duration(c.MinSpacingMinutes) * time.Minute
	}
	if c.Calendar.Recurrence.EffectiveKind() == RecurrenceIntervalRepeat && c.Calendar.Recurrence.EveryMinutes > 0 {
		return time.Duration(c.Calendar.Recurrence.EveryMinutes) * time.Minute
	}
	return floor
}

// Clone returns a deep copy so registry snapshots never share slices with callers.
func (c Campaign) Clone() Campaign {
	out := c
	out.LocationScope = append([]string(nil), c.LocationScope...)
	out.Warnings = append([]string(nil), c.Warnings...)
	out.Conditions = make([]Predicate, len(c.Conditions))
	for i, p := range c.Conditions {
		out.Conditions[i] = p.clone()
	}
	out.Calendar = c.Calendar.clone()
	return out
}
