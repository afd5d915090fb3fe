package filters

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickwarner/openadtrigger/internal/logic"
	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
)

// Candidate stages reported to metrics and traces.
const (
	StageScoped     = "scoped"
	StageCalendar   = "calendar"
	StageConditions = "conditions"
	StageCooldown   = "cooldown"
)

// SinglePassFilter narrows a location's campaigns to those eligible to fire:
// open calendar, all conditions true, and outside the cooldown window.
type SinglePassFilter struct {
	tracker logic.CooldownTracker
	floor   time.Duration
	metrics observability.MetricsRegistry
}

// NewSinglePassFilter creates a filter. floor is the minimum spacing for
// campaigns that do not derive one from their own definition.
func NewSinglePassFilter(tracker logic.CooldownTracker, floor time.Duration, metrics observability.MetricsRegistry) *SinglePassFilter {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &SinglePassFilter{tracker: tracker, floor: floor, metrics: metrics}
}

// FilterCampaigns applies calendar and condition checks inline, then the
// cooldown check for the survivors in one tracker call. The input order is
// preserved. now must be in the location's local time.
func (f *SinglePassFilter) FilterCampaigns(
	ctx context.Context,
	campaigns []models.Campaign,
	locationID string,
	snap models.ContextSnapshot,
	now time.Time,
) ([]models.Campaign, error) {
	if len(campaigns) == 0 {
		return nil, nil
	}

	filtered := make([]models.Campaign, 0, len(campaigns))
	calendarOpen := 0
	for _, c := range campaigns {
		// 1. Active and scoped
		if !c.Active || !c.AppliesTo(locationID) {
			continue
		}

		// 2. Calendar
		if !logic.IsOpen(c.Calendar, now) {
			continue
		}
		calendarOpen++

		// 3. Conditions
		if !logic.MatchesConditions(c, snap) {
			continue
		}
		filtered = append(filtered, c)
	}
	f.metrics.AddCandidates(StageCalendar, calendarOpen)
	f.metrics.AddCandidates(StageConditions, len(filtered))

	if len(filtered) == 0 {
		return nil, nil
	}

	// 4. Cooldown
	out, err := FilterByCooldown(ctx, f.tracker, filtered, locationID, now, f.floor)
	if err != nil {
		return nil, err
	}
	f.metrics.AddCandidates(StageCooldown, len(out))
	return out, nil
}

// FilterCampaignsWithTrace runs the stages one at a time and records the
// survivors of each in trace.
func (f *SinglePassFilter) FilterCampaignsWithTrace(
	ctx context.Context,
	campaigns []models.Campaign,
	locationID string,
	snap models.ContextSnapshot,
	now time.Time,
	trace *logic.EvaluationTrace,
) ([]models.Campaign, error) {
	var scoped []models.Campaign
	for _, c := range FilterByActive(campaigns) {
		if c.AppliesTo(locationID) {
			scoped = append(scoped, c)
		}
	}
	trace.AddStep(StageScoped, scoped)

	open := FilterByCalendar(scoped, now)
	trace.AddStepWithDetails(StageCalendar, open, map[string]string{
		"local_time": now.Format(time.RFC3339),
	})

	matched := FilterByConditions(open, snap)
	trace.AddStep(StageConditions, matched)

	eligible, err := FilterByCooldown(ctx, f.tracker, matched, locationID, now, f.floor)
	if err != nil {
		trace.AddStepWithDetails(StageCooldown, nil, map[string]string{"error": err.Error()})
		return nil, err
	}
	trace.AddStepWithDetails(StageCooldown, eligible, map[string]string{
		"input_count":  fmt.Sprintf("%d", len(matched)),
		"output_count": fmt.Sprintf("%d", len(eligible)),
	})
	return eligible, nil
}
