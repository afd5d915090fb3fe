package logic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickwarner/openadtrigger/internal/db"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultCooldownRetention is how long a Redis cooldown entry outlives its
// last firing when the campaign's spacing is shorter.
const DefaultCooldownRetention = 24 * time.Hour

// CooldownTracker keeps the last firing time per (campaign, location) pair.
type CooldownTracker interface {
	// CanFire reports whether the campaign may fire at the location: it has
	// never fired there, or at least minSpacing has passed since it last did.
	CanFire(ctx context.Context, campaignID, locationID string, now time.Time, minSpacing time.Duration) (bool, error)
	// RecordFire stores now as the last firing time. Persistent trackers keep
	// the entry for at least minSpacing.
	RecordFire(ctx context.Context, campaignID, locationID string, now time.Time, minSpacing time.Duration) error
	// TryFire atomically performs CanFire and, when it passes, RecordFire.
	TryFire(ctx context.Context, campaignID, locationID string, now time.Time, minSpacing time.Duration) (bool, error)
}

// CooldownCheck is one entry of a batched cooldown lookup.
type CooldownCheck struct {
	CampaignID string
	MinSpacing time.Duration
}

// BatchCooldownChecker is implemented by trackers that can answer CanFire for
// many campaigns at one location in a single round trip.
type BatchCooldownChecker interface {
	CanFireBatch(ctx context.Context, locationID string, now time.Time, checks []CooldownCheck) (map[string]bool, error)
}

func cooldownKey(campaignID, locationID string) string {
	return fmt.Sprintf("cooldown:%s:%s", campaignID, locationID)
}

type pairKey struct{ campaign, location string }

// InMemoryCooldownTracker keeps cooldown state for the life of the process.
type InMemoryCooldownTracker struct {
	mu        sync.Mutex
	lastFired map[pairKey]time.Time
}

// NewInMemoryCooldownTracker returns an empty tracker.
func NewInMemoryCooldownTracker() *InMemoryCooldownTracker {
	return &InMemoryCooldownTracker{lastFired: make(map[pairKey]time.Time)}
}

func (t *InMemoryCooldownTracker) CanFire(_ context.Context, campaignID, locationID string, now time.Time, minSpacing time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canFireLocked(pairKey{campaignID, locationID}, now, minSpacing), nil
}

func (t *InMemoryCooldownTracker) canFireLocked(k pairKey, now time.Time, minSpacing time.Duration) bool {
	last, ok := t.lastFired[k]
	return !ok || now.Sub(last) >= minSpacing
}

func (t *InMemoryCooldownTracker) RecordFire(_ context.Context, campaignID, locationID string, now time.Time, _ time.Duration) error {
	t.mu.Lock()
	t.lastFired[pairKey{campaignID, locationID}] = now
	t.mu.Unlock()
	return nil
}

func (t *InMemoryCooldownTracker) TryFire(_ context.Context, campaignID, locationID string, now time.Time, minSpacing time.Duration) (bool, error) {
	k := pairKey{campaignID, locationID}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.canFireLocked(k, now, minSpacing) {
		return false, nil
	}
	t.lastFired[k] = now
	return true, nil
}

// LastFired returns the recorded firing time for the pair, if any.
func (t *InMemoryCooldownTracker) LastFired(campaignID, locationID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastFired[pairKey{campaignID, locationID}]
	return last, ok
}

// tryFireScript compares and sets the last firing time (unix millis) in one
// step so two evaluators can never both claim the same cooldown slot.
var tryFireScript = redis.NewScript(`
local last = redis.call('GET', KEYS[1])
local now = tonumber(ARGV[1])
if last and (now - tonumber(last)) < tonumber(ARGV[2]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisCooldownTracker stores cooldown state in Redis so that it survives
// restarts and is shared between scheduler replicas. Redis errors are
// returned to the caller, which must treat them as "cannot fire".
type RedisCooldownTracker struct {
	store     *db.RedisStore
	retention time.Duration
}

// NewRedisCooldownTracker creates a tracker backed by store. A non-positive
// retention uses DefaultCooldownRetention.
func NewRedisCooldownTracker(store *db.RedisStore, retention time.Duration) *RedisCooldownTracker {
	if retention <= 0 {
		retention = DefaultCooldownRetention
	}
	return &RedisCooldownTracker{store: store, retention: retention}
}

func (t *RedisCooldownTracker) ttl(minSpacing time.Duration) time.Duration {
	if minSpacing > t.retention {
		return minSpacing
	}
	return t.retention
}

func (t *RedisCooldownTracker) CanFire(ctx context.Context, campaignID, locationID string, now time.Time, minSpacing time.Duration) (bool, error) {
	if t.store == nil || t.store.Client == nil {
		return false, ErrNilRedisStore
	}
	last, err := t.store.Client.Get(ctx, cooldownKey(campaignID, locationID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		zap.L().Error("redis cooldown", zap.Error(err))
		return false, fmt.Errorf("read cooldown: %w", err)
	}
	return now.UnixMilli()-last >= minSpacing.Milliseconds(), nil
}

func (t *RedisCooldownTracker) RecordFire(ctx context.Context, campaignID, locationID string, now time.Time, minSpacing time.Duration) error {
	if t.store == nil || t.store.Client == nil {
		return ErrNilRedisStore
	}
	if err := t.store.Client.Set(ctx, cooldownKey(campaignID, locationID), now.UnixMilli(), t.ttl(minSpacing)).Err(); err != nil {
		zap.L().Error("failed to record cooldown", zap.Error(err))
		return fmt.Errorf("record cooldown: %w", err)
	}
	return nil
}

func (t *RedisCooldownTracker) TryFire(ctx context.Context, campaignID, locationID string, now time.Time, minSpacing time.Duration) (bool, error) {
	if t.store == nil || t.store.Client == nil {
		return false, ErrNilRedisStore
	}
	res, err := tryFireScript.Run(ctx, t.store.Client,
		[]string{cooldownKey(campaignID, locationID)},
		now.UnixMilli(), minSpacing.Milliseconds(), t.ttl(minSpacing).Milliseconds(),
	).Int()
	if err != nil {
		zap.L().Error("redis cooldown claim", zap.Error(err))
		return false, fmt.Errorf("claim cooldown: %w", err)
	}
	return res == 1, nil
}

var (
	_ CooldownTracker      = (*InMemoryCooldownTracker)(nil)
	_ CooldownTracker      = (*RedisCooldownTracker)(nil)
	_ BatchCooldownChecker = (*RedisCooldownTracker)(nil)
)
