package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadtrigger/internal/analytics"
	"github.com/patrickwarner/openadtrigger/internal/contextsource"
	"github.com/patrickwarner/openadtrigger/internal/db"
	"github.com/patrickwarner/openadtrigger/internal/logic"
	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/scheduler"
)

func TestShutdownWaitsForInProgressTick(t *testing.T) {
	registry := models.NewInMemoryCampaignRegistry()
	_, err := registry.Register(models.NewTestCampaign("c1", 5, "L"))
	require.NoError(t, err)

	entered := make(chan struct{})
	source := contextsource.SourceFunc(func(ctx context.Context, locationID string) (models.ContextSnapshot, error) {
		close(entered)
		time.Sleep(200 * time.Millisecond)
		return models.ContextSnapshot{Weather: &models.WeatherReading{Temperature: models.Float(21)}}, nil
	})
	log := analytics.NewMemoryLog(10)
	sched := scheduler.New(registry, db.NewStaticLocations(models.Location{ID: "L", Active: true}), source,
		logic.NewInMemoryCooldownTracker(), nil, scheduler.LogSink(log),
		scheduler.Settings{TickInterval: time.Hour, SnapshotTimeout: 5 * time.Second}, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := startScheduler(ctx, sched)

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never started")
	}
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, waitScheduler(waitCtx, done))

	got, err := log.RecentTriggers(context.Background(), "L", 10)
	require.NoError(t, err)
	require.Len(t, got, 1, "tick cancelled mid-flight still records its trigger")
	assert.Equal(t, "c1", got[0].CampaignID)
}

func TestWaitScheduler(t *testing.T) {
	assert.NoError(t, waitScheduler(context.Background(), nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, waitScheduler(ctx, make(chan error)), context.DeadlineExceeded)

	done := make(chan error, 1)
	done <- scheduler.ErrAlreadyRunning
	close(done)
	assert.NoError(t, waitScheduler(context.Background(), done))
}
