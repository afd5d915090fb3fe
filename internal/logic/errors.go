package logic

import "errors"

// ErrNilRedisStore is returned when a Redis-backed component has no client.
var ErrNilRedisStore = errors.New("redis store is nil")
