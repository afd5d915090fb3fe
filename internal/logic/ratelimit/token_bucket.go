// Package ratelimit implements token bucket rate limiting for admin API writes.
//
// The token bucket algorithm allows bursts up to the bucket capacity while
// holding a sustained rate over time, so a misbehaving client cannot flood
// the campaign registry with re-registrations.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements a thread-safe token bucket rate limiter.
//
// The bucket has a fixed capacity and refills at a constant rate.
// Each request consumes one token. When the bucket is empty,
// requests are rejected until tokens refill.
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
	hitCount   int64
	totalCount int64
	now        func() time.Time
}

// NewTokenBucket creates a full bucket with the given capacity and refill
// rate in tokens per second.
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity, refillRate int, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow attempts to consume one token, refilling first for the time elapsed
// since the last refill.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.totalCount++

	now := tb.now()
	tokensToAdd := int(now.Sub(tb.lastRefill).Seconds() * float64(tb.refillRate))
	if tokensToAdd > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+tokensToAdd)
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	tb.hitCount++
	return false
}

// Stats returns how many requests were limited and how many were seen.
func (tb *TokenBucket) Stats() (hits, total int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.hitCount, tb.totalCount
}
