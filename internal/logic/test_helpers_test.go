package logic

import (
	"context"
	"testing"
	"time"

	"github.com/patrickwarner/openadtrigger/internal/db"
	"github.com/patrickwarner/openadtrigger/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis spins up an in-memory Redis and returns a store pointed at it.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *db.RedisStore) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	store := &db.RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: s.Addr()}),
		Ctx:    context.Background(),
	}
	t.Cleanup(store.Close)
	return s, store
}

// at builds a UTC instant for test readability.
func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func numPredicate(cat models.Category, key string, op models.Operator, v float64) models.Predicate {
	return models.Predicate{Category: cat, Key: key, Operator: op, Operand: models.Operand{Number: models.Float(v)}}
}
