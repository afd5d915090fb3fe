package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/patrickwarner/openadtrigger/internal/observability"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestTokenBucket_Allow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	bucket := newTokenBucket(5, 1, clock.now)

	for i := 0; i < 5; i++ {
		assert.True(t, bucket.Allow(), "request %d", i+1)
	}
	assert.False(t, bucket.Allow(), "6th request should be blocked")

	hits, total := bucket.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(6), total)
}

func TestTokenBucket_Refill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	bucket := newTokenBucket(2, 10, clock.now)

	bucket.Allow()
	bucket.Allow()
	assert.False(t, bucket.Allow())

	clock.t = clock.t.Add(200 * time.Millisecond) // 2 tokens
	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())
}

func TestKeyedLimiter(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	l := NewKeyedLimiter("campaigns", Config{Capacity: 2, RefillRate: 1, Enabled: true}, metrics)
	clock := &fakeClock{t: time.Unix(0, 0)}
	l.now = clock.now

	assert.True(t, l.Allow("adv-1"))
	assert.True(t, l.Allow("adv-1"))
	assert.False(t, l.Allow("adv-1"))
	assert.True(t, l.Allow("adv-2"), "keys have separate buckets")
	assert.True(t, l.Allow(""))

	assert.Equal(t, 1, metrics.Count(metrics.RateLimited, "campaigns"))
	stats := l.GetStats()
	assert.Equal(t, int64(1), stats["adv-1"].Hits)
	assert.Contains(t, stats, AnonymousKey)
}

func TestKeyedLimiter_Disabled(t *testing.T) {
	l := NewKeyedLimiter("campaigns", Config{Capacity: 0, Enabled: false}, nil)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("adv"))
	}
	var nilLimiter *KeyedLimiter
	assert.True(t, nilLimiter.Allow("adv"))
}
