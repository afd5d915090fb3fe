package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openadtrigger/internal/analytics"
	"github.com/patrickwarner/openadtrigger/internal/db"
	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
)

func sampleTrigger() models.PlaybackTrigger {
	return models.PlaybackTrigger{
		ID:         "t1",
		CampaignID: "C2",
		LocationID: "L",
		FiredAt:    wed(14, 0),
		Status:     models.TriggerPending,
	}
}

func TestMultiSink_ContinuesPastFailure(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	log := analytics.NewMemoryLog(10)
	ch := NewChannelSink(1)

	sink := NewMultiSink(metrics).
		Add("broken", SinkFunc(func(context.Context, models.PlaybackTrigger) error { return errors.New("boom") })).
		Add("log", LogSink(log)).
		Add("channel", ch)

	err := sink.Emit(context.Background(), sampleTrigger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: boom")
	assert.Equal(t, 1, metrics.Count(metrics.SinkErrors, "broken"))

	_, ok := log.Trigger("t1")
	assert.True(t, ok)
	select {
	case got := <-ch.C():
		assert.Equal(t, "C2", got.CampaignID)
	default:
		t.Fatal("channel sink did not receive trigger")
	}
}

func TestChannelSink_DropsWhenFull(t *testing.T) {
	ch := NewChannelSink(1)
	require.NoError(t, ch.Emit(context.Background(), sampleTrigger()))
	assert.ErrorIs(t, ch.Emit(context.Background(), sampleTrigger()), ErrSinkFull)
}

func TestRedisPublishSink(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	store := &db.RedisStore{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}), Ctx: context.Background()}
	defer store.Close()

	ctx := context.Background()
	sub := store.Subscribe(ctx, "triggers-test")
	defer func() { _ = sub.Close() }()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	sink := NewRedisPublishSink(store, "triggers-test")
	require.NoError(t, sink.Emit(ctx, sampleTrigger()))

	select {
	case msg := <-sub.Channel():
		var got models.PlaybackTrigger
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "t1", got.ID)
		assert.Equal(t, models.TriggerPending, got.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger published")
	}
}

func TestRedisPublishSink_NilStore(t *testing.T) {
	sink := NewRedisPublishSink(nil, "")
	assert.Equal(t, db.DefaultTriggerChannel, sink.channel)
	assert.Error(t, sink.Emit(context.Background(), sampleTrigger()))
}

func TestLogSink(t *testing.T) {
	log := analytics.NewMockTriggerLog()
	sink := LogSink(log)

	require.NoError(t, sink.Emit(context.Background(), sampleTrigger()))
	got := log.Recorded()
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)

	log.Err = errors.New("clickhouse down")
	assert.Error(t, sink.Emit(context.Background(), sampleTrigger()))
	assert.Len(t, log.Recorded(), 1)
}
