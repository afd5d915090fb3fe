package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openadtrigger/internal/analytics"
	"github.com/patrickwarner/openadtrigger/internal/contextsource"
	"github.com/patrickwarner/openadtrigger/internal/db"
	"github.com/patrickwarner/openadtrigger/internal/logic"
	"github.com/patrickwarner/openadtrigger/internal/logic/filters"
	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
)

// 2025-01-08 is a Wednesday.
func wed(hour, minute int) time.Time {
	return time.Date(2025, 1, 8, hour, minute, 0, 0, time.UTC)
}

func wednesdayCampaign(id string, priority int, spacing int, p models.Predicate, locs ...string) models.Campaign {
	return models.Campaign{
		ID:                id,
		AdvertiserID:      "adv",
		CreativeID:        "cr-" + id,
		LocationScope:     locs,
		Priority:          priority,
		Conditions:        []models.Predicate{p},
		Calendar:          models.Calendar{Recurrence: models.Recurrence{Kind: models.RecurrenceWeekly, Weekdays: []models.Weekday{models.Weekday(time.Wednesday)}}},
		MinSpacingMinutes: spacing,
		Active:            true,
	}
}

func above(key string, v float64) models.Predicate {
	return models.Predicate{Category: models.CategoryEnvironmental, Key: key, Operator: models.OpAbove, Operand: models.Operand{Number: models.Float(v)}}
}

type fixture struct {
	registry *models.InMemoryCampaignRegistry
	source   *contextsource.StaticSource
	tracker  *logic.InMemoryCooldownTracker
	log      *analytics.MemoryLog
	metrics  *observability.MockMetricsRegistry
	sched    *Scheduler
}

func newFixture(t *testing.T, locations ...models.Location) *fixture {
	t.Helper()
	f := &fixture{
		registry: models.NewInMemoryCampaignRegistry(),
		source:   contextsource.NewStaticSource(),
		tracker:  logic.NewInMemoryCooldownTracker(),
		log:      analytics.NewMemoryLog(100),
		metrics:  observability.NewMockMetricsRegistry(),
	}
	sink := NewMultiSink(f.metrics).Add("log", LogSink(f.log))
	f.sched = New(f.registry, db.NewStaticLocations(locations...), f.source, f.tracker, nil, sink,
		Settings{TickInterval: time.Minute, SnapshotTimeout: 100 * time.Millisecond, Concurrency: 4}, nil, f.metrics)
	var n atomic.Int64
	f.sched.newID = func() string { return fmt.Sprintf("t%d", n.Add(1)) }
	return f
}

func (f *fixture) register(t *testing.T, cs ...models.Campaign) {
	t.Helper()
	for _, c := range cs {
		_, err := f.registry.Register(c)
		require.NoError(t, err)
	}
}

func warmHumid(loc string) models.ContextSnapshot {
	return models.ContextSnapshot{
		LocationID: loc,
		Weather:    &models.WeatherReading{Temperature: models.Float(32), Humidity: models.Float(75)},
	}
}

func campaignIDs(ts []models.PlaybackTrigger) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.CampaignID
	}
	return out
}

func TestTick_EndToEndCooldownHandOff(t *testing.T) {
	f := newFixture(t, models.Location{ID: "L", Active: true})
	f.register(t,
		wednesdayCampaign("C1", 5, 60, above(models.KeyTemperature, 30), "L"),
		wednesdayCampaign("C2", 8, 30, above(models.KeyHumidity, 70), "L"),
	)
	f.source.Set(warmHumid("L"))
	ctx := context.Background()

	steps := []struct {
		at   time.Time
		want []string
	}{
		{wed(14, 0), []string{"C2"}},
		{wed(14, 20), []string{"C1"}},
		{wed(14, 30), []string{"C2"}},
		{wed(14, 45), nil},
		{wed(15, 0), []string{"C2"}},
	}
	for _, step := range steps {
		got, err := f.sched.Tick(ctx, step.at)
		require.NoError(t, err)
		if step.want == nil {
			assert.Empty(t, got, "at %s", step.at.Format("15:04"))
			continue
		}
		assert.Equal(t, step.want, campaignIDs(got), "at %s", step.at.Format("15:04"))
	}

	recent, err := f.log.RecentTriggers(ctx, "L", 10)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	last := recent[len(recent)-1]
	assert.Equal(t, "C2", last.CampaignID)
	assert.Equal(t, 8, last.ResolvedPriority)
	assert.Equal(t, models.TriggerPending, last.Status)
	assert.Equal(t, []string{"environmental.humidity greater_than 70"}, last.MatchedConditions)
	assert.Equal(t, wed(14, 0), last.FiredAt.UTC())
	assert.Equal(t, 4, f.metrics.Count(f.metrics.Triggers, "L"))
}

func TestTick_CooldownRespected(t *testing.T) {
	f := newFixture(t, models.Location{ID: "L", Active: true})
	f.register(t, wednesdayCampaign("only", 1, 15, above(models.KeyTemperature, 0), "L"))
	f.source.Set(warmHumid("L"))

	var fired []time.Time
	for m := 0; m < 120; m++ {
		got, err := f.sched.Tick(context.Background(), wed(10, 0).Add(time.Duration(m)*time.Minute))
		require.NoError(t, err)
		for _, tr := range got {
			fired = append(fired, tr.FiredAt)
		}
	}
	require.Len(t, fired, 8)
	for i := 1; i < len(fired); i++ {
		assert.GreaterOrEqual(t, fired[i].Sub(fired[i-1]), 15*time.Minute)
	}
}

func TestTick_TieBreakByRegistrationOrder(t *testing.T) {
	for i := 0; i < 5; i++ {
		f := newFixture(t, models.Location{ID: "L", Active: true})
		f.register(t,
			wednesdayCampaign("B-first", 8, 30, above(models.KeyTemperature, 0), "L"),
			wednesdayCampaign("A-second", 8, 30, above(models.KeyTemperature, 0), "L"),
		)
		f.source.Set(warmHumid("L"))
		got, err := f.sched.Tick(context.Background(), wed(9, 0))
		require.NoError(t, err)
		assert.Equal(t, []string{"B-first"}, campaignIDs(got))
	}
}

func TestTick_SnapshotFailureIsolated(t *testing.T) {
	f := newFixture(t,
		models.Location{ID: "ok", Active: true},
		models.Location{ID: "missing", Active: true},
		models.Location{ID: "slow", Active: true},
	)
	f.register(t, wednesdayCampaign("C", 1, 30, above(models.KeyTemperature, 0), "ok", "missing", "slow"))

	static := contextsource.NewStaticSource()
	static.Set(warmHumid("ok"))
	f.sched.source = contextsource.SourceFunc(func(ctx context.Context, loc string) (models.ContextSnapshot, error) {
		if loc == "slow" {
			<-ctx.Done()
			return models.ContextSnapshot{}, ctx.Err()
		}
		return static.Snapshot(ctx, loc)
	})

	got, err := f.sched.Tick(context.Background(), wed(12, 0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].LocationID)
	assert.Equal(t, 1, f.metrics.Count(f.metrics.SnapshotFailures, "missing"))
	assert.Equal(t, 1, f.metrics.Count(f.metrics.SnapshotFailures, "timeout"))
}

func TestTick_MissingReadingNeverFires(t *testing.T) {
	f := newFixture(t, models.Location{ID: "L", Active: true})
	f.register(t, wednesdayCampaign("C", 1, 30, above(models.KeyTemperature, -50), "L"))
	f.source.Set(models.ContextSnapshot{LocationID: "L"})

	got, err := f.sched.Tick(context.Background(), wed(12, 0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTick_Deterministic(t *testing.T) {
	build := func() []string {
		f := newFixture(t, models.Location{ID: "L1", Active: true}, models.Location{ID: "L2", Active: true})
		f.register(t,
			wednesdayCampaign("x", 3, 30, above(models.KeyTemperature, 0), "L1", "L2"),
			wednesdayCampaign("y", 6, 30, above(models.KeyHumidity, 50), "L2"),
			wednesdayCampaign("z", 6, 30, above(models.KeyHumidity, 50), "L1", "L2"),
		)
		f.source.Set(warmHumid("L1"))
		f.source.Set(warmHumid("L2"))
		got, err := f.sched.Tick(context.Background(), wed(8, 0))
		require.NoError(t, err)
		out := make([]string, len(got))
		for i, tr := range got {
			out[i] = tr.LocationID + "=" + tr.CampaignID
		}
		return out
	}
	want := []string{"L1=z", "L2=y"}
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, build())
	}
}

func TestTick_LocalTimeZone(t *testing.T) {
	// 23:30 UTC on Tuesday is already Wednesday in Tokyo.
	f := newFixture(t,
		models.Location{ID: "tokyo", TimeZone: "Asia/Tokyo", Active: true},
		models.Location{ID: "utc", Active: true},
	)
	f.register(t, wednesdayCampaign("C", 1, 30, above(models.KeyTemperature, 0), "tokyo", "utc"))
	f.source.Set(warmHumid("tokyo"))
	f.source.Set(warmHumid("utc"))

	got, err := f.sched.Tick(context.Background(), time.Date(2025, 1, 7, 23, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tokyo", got[0].LocationID)
}

// racingTracker reports a lost claim for one campaign, as if a concurrent
// tick had just fired it.
type racingTracker struct {
	*logic.InMemoryCooldownTracker
	lose string
}

func (r racingTracker) TryFire(ctx context.Context, campaignID, locationID string, now time.Time, minSpacing time.Duration) (bool, error) {
	if campaignID == r.lose {
		return false, nil
	}
	return r.InMemoryCooldownTracker.TryFire(ctx, campaignID, locationID, now, minSpacing)
}

func TestTick_LostClaimFallsThrough(t *testing.T) {
	f := newFixture(t, models.Location{ID: "L", Active: true})
	f.register(t,
		wednesdayCampaign("C1", 5, 60, above(models.KeyTemperature, 30), "L"),
		wednesdayCampaign("C2", 8, 30, above(models.KeyHumidity, 70), "L"),
	)
	f.source.Set(warmHumid("L"))
	f.sched.tracker = racingTracker{InMemoryCooldownTracker: f.tracker, lose: "C2"}

	got, err := f.sched.Tick(context.Background(), wed(14, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, campaignIDs(got))
	assert.Equal(t, 1, f.metrics.CooldownConflicts)
}

type brokenTracker struct{ *logic.InMemoryCooldownTracker }

func (brokenTracker) TryFire(context.Context, string, string, time.Time, time.Duration) (bool, error) {
	return false, errors.New("store down")
}

func TestTick_CooldownErrorFailsClosed(t *testing.T) {
	f := newFixture(t, models.Location{ID: "L", Active: true})
	f.register(t, wednesdayCampaign("C", 1, 30, above(models.KeyTemperature, 0), "L"))
	f.source.Set(warmHumid("L"))
	f.sched.tracker = brokenTracker{f.tracker}

	got, err := f.sched.Tick(context.Background(), wed(14, 0))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, f.metrics.CooldownErrors)
}

type failingDirectory struct{}

func (failingDirectory) Locations(context.Context) ([]models.Location, error) {
	return nil, errors.New("directory down")
}

func TestTick_DirectoryError(t *testing.T) {
	f := newFixture(t)
	f.sched.locations = failingDirectory{}
	_, err := f.sched.Tick(context.Background(), wed(14, 0))
	assert.Error(t, err)
}

func TestTick_ConcurrentTicksSingleWinner(t *testing.T) {
	f := newFixture(t, models.Location{ID: "L", Active: true})
	f.register(t, wednesdayCampaign("C", 1, 30, above(models.KeyTemperature, 0), "L"))
	f.source.Set(warmHumid("L"))

	var (
		wg    sync.WaitGroup
		total atomic.Int64
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.sched.Tick(context.Background(), wed(14, 0))
			assert.NoError(t, err)
			total.Add(int64(len(got)))
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), total.Load())
}

func TestDryRun(t *testing.T) {
	f := newFixture(t, models.Location{ID: "L", Active: true})
	f.register(t,
		wednesdayCampaign("C1", 5, 60, above(models.KeyTemperature, 30), "L"),
		wednesdayCampaign("C2", 8, 30, above(models.KeyHumidity, 70), "L"),
		wednesdayCampaign("C3", 9, 30, above(models.KeyHumidity, 90), "L"),
	)

	trace, err := f.sched.DryRun(context.Background(), "L", warmHumid("L"), wed(14, 0))
	require.NoError(t, err)

	stages := map[string][]string{}
	for _, s := range trace.Steps {
		stages[s.Stage] = s.CampaignIDs
	}
	assert.Equal(t, []string{"C1", "C2", "C3"}, stages[filters.StageCalendar])
	assert.Equal(t, []string{"C1", "C2"}, stages[filters.StageConditions])
	assert.Equal(t, []string{"C2", "C1"}, stages["ranked"])
	assert.Equal(t, []string{"C2"}, stages["winner"])

	_, ok := f.tracker.LastFired("C2", "L")
	assert.False(t, ok, "dry run must not claim cooldowns")
	recent, _ := f.log.RecentTriggers(context.Background(), "L", 10)
	assert.Empty(t, recent)
}

func TestRun_StopsAndRejectsSecondRun(t *testing.T) {
	f := newFixture(t, models.Location{ID: "L", Active: true})
	f.register(t, models.NewTestCampaign("C", 1, "L"))
	f.source.Set(warmHumid("L"))
	f.sched.settings.TickInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sched.Run(ctx) }()

	require.Eventually(t, func() bool {
		recent, _ := f.log.RecentTriggers(context.Background(), "L", 1)
		return len(recent) == 1
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, f.sched.Run(context.Background()), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
