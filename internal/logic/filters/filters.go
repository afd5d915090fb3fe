package filters

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickwarner/openadtrigger/internal/logic"
	"github.com/patrickwarner/openadtrigger/internal/models"
)

// FilterByActive removes deactivated campaigns.
func FilterByActive(campaigns []models.Campaign) []models.Campaign {
	var out []models.Campaign
	for _, c := range campaigns {
		if c.Active {
			out = append(out, c)
		}
	}
	return out
}

// FilterByCalendar keeps campaigns whose calendar is open at now. now must
// already be in the location's local time.
func FilterByCalendar(campaigns []models.Campaign, now time.Time) []models.Campaign {
	var out []models.Campaign
	for _, c := range campaigns {
		if logic.IsOpen(c.Calendar, now) {
			out = append(out, c)
		}
	}
	return out
}

// FilterByConditions keeps campaigns whose every predicate holds for snap.
func FilterByConditions(campaigns []models.Campaign, snap models.ContextSnapshot) []models.Campaign {
	var out []models.Campaign
	for _, c := range campaigns {
		if logic.MatchesConditions(c, snap) {
			out = append(out, c)
		}
	}
	return out
}

// FilterByCooldown removes campaigns that fired at locationID less than their
// minimum spacing ago. Trackers that support batching are queried once. Any
// tracker error is returned and no campaign passes.
func FilterByCooldown(ctx context.Context, tracker logic.CooldownTracker, campaigns []models.Campaign, locationID string, now time.Time, floor time.Duration) ([]models.Campaign, error) {
	if tracker == nil {
		return nil, fmt.Errorf("cooldown filter: nil tracker")
	}
	if len(campaigns) == 0 {
		return nil, nil
	}

	if batch, ok := tracker.(logic.BatchCooldownChecker); ok {
		checks := make([]logic.CooldownCheck, len(campaigns))
		for i, c := range campaigns {
			checks[i] = logic.CooldownCheck{CampaignID: c.ID, MinSpacing: c.MinSpacing(floor)}
		}
		allowed, err := batch.CanFireBatch(ctx, locationID, now, checks)
		if err != nil {
			return nil, fmt.Errorf("cooldown batch: %w", err)
		}
		var out []models.Campaign
		for _, c := range campaigns {
			if allowed[c.ID] {
				out = append(out, c)
			}
		}
		return out, nil
	}

	var out []models.Campaign
	for _, c := range campaigns {
		ok, err := tracker.CanFire(ctx, c.ID, locationID, now, c.MinSpacing(floor))
		if err != nil {
			return nil, fmt.Errorf("cooldown %s: %w", c.ID, err)
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}
