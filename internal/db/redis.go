package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTriggerChannel is the pub/sub channel playback triggers are published on.
const DefaultTriggerChannel = "playback-triggers"

// RedisStore wraps a redis client and context for operations.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Ctx:    context.Background(),
	}

	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(rs.Ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// Publish marshals v as JSON and publishes it on channel. It returns the
// number of subscribers that received the message.
func (r *RedisStore) Publish(ctx context.Context, channel string, v any) (int64, error) {
	if r == nil || r.Client == nil {
		return 0, fmt.Errorf("redis store not configured")
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal %s message: %w", channel, err)
	}
	n, err := r.Client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publish %s: %w", channel, err)
	}
	return n, nil
}

// Subscribe returns a subscription to channel. Callers must Close it.
func (r *RedisStore) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return r.Client.Subscribe(ctx, channel)
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
