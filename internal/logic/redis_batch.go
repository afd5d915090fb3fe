package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CanFireBatch answers CanFire for every check at locationID using one
// pipelined round trip. The result maps campaign IDs to whether they may fire.
func (t *RedisCooldownTracker) CanFireBatch(ctx context.Context, locationID string, now time.Time, checks []CooldownCheck) (map[string]bool, error) {
	if t.store == nil || t.store.Client == nil {
		return nil, ErrNilRedisStore
	}
	result := make(map[string]bool, len(checks))
	if len(checks) == 0 {
		return result, nil
	}

	pipe := t.store.Client.Pipeline()
	commands := make([]*redis.StringCmd, len(checks))
	for i, c := range checks {
		commands[i] = pipe.Get(ctx, cooldownKey(c.CampaignID, locationID))
	}

	// Exec reports redis.Nil when any key is missing; per-command errors are
	// inspected below.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipeline exec failed: %w", err)
	}

	nowMs := now.UnixMilli()
	for i, c := range checks {
		last, err := commands[i].Int64()
		switch {
		case errors.Is(err, redis.Nil):
			result[c.CampaignID] = true
		case err != nil:
			return nil, fmt.Errorf("read cooldown %s: %w", c.CampaignID, err)
		default:
			result[c.CampaignID] = nowMs-last >= c.MinSpacing.Milliseconds()
		}
	}
	return result, nil
}
