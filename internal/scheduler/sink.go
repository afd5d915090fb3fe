package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/patrickwarner/openadtrigger/internal/analytics"
	"github.com/patrickwarner/openadtrigger/internal/db"
	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
)

// ErrSinkFull is returned by ChannelSink when its buffer has no room.
var ErrSinkFull = errors.New("trigger channel full")

// TriggerSink receives every emitted trigger after its firing is recorded.
type TriggerSink interface {
	Emit(ctx context.Context, t models.PlaybackTrigger) error
}

// SinkFunc adapts a function to TriggerSink.
type SinkFunc func(ctx context.Context, t models.PlaybackTrigger) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, t models.PlaybackTrigger) error { return f(ctx, t) }

type namedSink struct {
	name string
	sink TriggerSink
}

// MultiSink fans a trigger out to every registered sink. A failing sink does
// not stop delivery to the others.
type MultiSink struct {
	sinks   []namedSink
	metrics observability.MetricsRegistry
}

// NewMultiSink creates an empty fan-out.
func NewMultiSink(metrics observability.MetricsRegistry) *MultiSink {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &MultiSink{metrics: metrics}
}

// Add registers s under name. It is not safe to call once triggers flow.
func (m *MultiSink) Add(name string, s TriggerSink) *MultiSink {
	m.sinks = append(m.sinks, namedSink{name: name, sink: s})
	return m
}

// Emit delivers t to each sink in registration order.
func (m *MultiSink) Emit(ctx context.Context, t models.PlaybackTrigger) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.sink.Emit(ctx, t); err != nil {
			m.metrics.IncrementSinkErrors(s.name)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// LogSink appends triggers to the trigger log.
func LogSink(log analytics.TriggerLog) TriggerSink {
	return SinkFunc(func(ctx context.Context, t models.PlaybackTrigger) error {
		return log.RecordTrigger(ctx, t)
	})
}

// RedisPublishSink publishes triggers as JSON on a Redis channel for the
// playback and billing consumers.
type RedisPublishSink struct {
	store   *db.RedisStore
	channel string
}

// NewRedisPublishSink publishes on channel, or db.DefaultTriggerChannel when empty.
func NewRedisPublishSink(store *db.RedisStore, channel string) *RedisPublishSink {
	if channel == "" {
		channel = db.DefaultTriggerChannel
	}
	return &RedisPublishSink{store: store, channel: channel}
}

func (s *RedisPublishSink) Emit(ctx context.Context, t models.PlaybackTrigger) error {
	if s.store == nil || s.store.Client == nil {
		return fmt.Errorf("publish trigger: nil redis store")
	}
	if _, err := s.store.Publish(ctx, s.channel, t); err != nil {
		return fmt.Errorf("publish trigger %s: %w", t.ID, err)
	}
	return nil
}

// ChannelSink hands triggers to an in-process consumer without blocking the
// tick. Triggers that find the buffer full are dropped with ErrSinkFull.
type ChannelSink struct {
	ch chan models.PlaybackTrigger
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan models.PlaybackTrigger, buffer)}
}

// C returns the receive side.
func (s *ChannelSink) C() <-chan models.PlaybackTrigger { return s.ch }

func (s *ChannelSink) Emit(ctx context.Context, t models.PlaybackTrigger) error {
	select {
	case s.ch <- t:
		return nil
	default:
		return ErrSinkFull
	}
}

var (
	_ TriggerSink = (*MultiSink)(nil)
	_ TriggerSink = (*RedisPublishSink)(nil)
	_ TriggerSink = (*ChannelSink)(nil)
)
