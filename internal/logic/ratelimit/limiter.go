package ratelimit

import (
	"sync"
	"time"

	"github.com/patrickwarner/openadtrigger/internal/observability"
)

// AnonymousKey buckets requests that carry no client key.
const AnonymousKey = "anonymous"

// KeyedLimiter rate limits requests per client key, typically an advertiser
// ID. Each key gets its own token bucket, created lazily on first access.
//
//	limiter := NewKeyedLimiter("campaigns", Config{Capacity: 20, RefillRate: 5, Enabled: true}, metrics)
//	if !limiter.Allow(advertiserID) {
//	    // reply 429
//	}
type KeyedLimiter struct {
	scope   string
	buckets map[string]*TokenBucket
	mu      sync.RWMutex
	config  Config
	metrics observability.MetricsRegistry
	now     func() time.Time
}

// Config holds the configuration for rate limiting.
type Config struct {
	Capacity   int  // burst allowance
	RefillRate int  // tokens per second
	Enabled    bool
}

// NewKeyedLimiter creates a limiter whose hits are reported under scope.
func NewKeyedLimiter(scope string, config Config, metrics observability.MetricsRegistry) *KeyedLimiter {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &KeyedLimiter{
		scope:   scope,
		buckets: make(map[string]*TokenBucket),
		config:  config,
		metrics: metrics,
		now:     time.Now,
	}
}

// Allow reports whether a request for key may proceed. It always returns
// true when limiting is disabled.
func (l *KeyedLimiter) Allow(key string) bool {
	if l == nil || !l.config.Enabled {
		return true
	}
	if key == "" {
		key = AnonymousKey
	}

	l.mu.RLock()
	bucket, exists := l.buckets[key]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		bucket, exists = l.buckets[key]
		if !exists {
			bucket = newTokenBucket(l.config.Capacity, l.config.RefillRate, l.now)
			l.buckets[key] = bucket
		}
		l.mu.Unlock()
	}

	allowed := bucket.Allow()
	if !allowed {
		l.metrics.IncrementRateLimited(l.scope)
	}
	return allowed
}

// GetStats returns a snapshot of per-key statistics. A nil limiter has none.
func (l *KeyedLimiter) GetStats() map[string]RateLimitStats {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]RateLimitStats, len(l.buckets))
	for key, bucket := range l.buckets {
		hits, total := bucket.Stats()
		hitRate := 0.0
		if total > 0 {
			hitRate = float64(hits) / float64(total)
		}
		stats[key] = RateLimitStats{Key: key, Hits: hits, Total: total, HitRate: hitRate}
	}
	return stats
}

// RateLimitStats contains statistics about rate limiting for a single key.
type RateLimitStats struct {
	Key     string  `json:"key"`
	Hits    int64   `json:"hits"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"` // 0.0-1.0
}
