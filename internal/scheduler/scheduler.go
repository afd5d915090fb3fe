package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/patrickwarner/openadtrigger/internal/contextsource"
	"github.com/patrickwarner/openadtrigger/internal/db"
	"github.com/patrickwarner/openadtrigger/internal/logic"
	"github.com/patrickwarner/openadtrigger/internal/logic/filters"
	"github.com/patrickwarner/openadtrigger/internal/logic/selectors"
	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
)

// ErrAlreadyRunning is returned by Run when the loop is already active.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Settings are the policy constants of the loop.
type Settings struct {
	TickInterval    time.Duration
	SnapshotTimeout time.Duration
	MinSpacingFloor time.Duration
	Concurrency     int
}

func (s Settings) withDefaults() Settings {
	if s.TickInterval <= 0 {
		s.TickInterval = time.Minute
	}
	if s.SnapshotTimeout <= 0 {
		s.SnapshotTimeout = 2 * time.Second
	}
	if s.MinSpacingFloor <= 0 {
		s.MinSpacingFloor = s.TickInterval
	}
	if s.Concurrency <= 0 {
		s.Concurrency = 1
	}
	return s
}

// Scheduler evaluates every location once per tick and emits at most one
// trigger per location.
type Scheduler struct {
	registry  models.CampaignRegistry
	locations db.LocationDirectory
	source    contextsource.Source
	tracker   logic.CooldownTracker
	filter    *filters.SinglePassFilter
	resolver  selectors.Resolver
	sink      TriggerSink
	settings  Settings
	logger    *zap.Logger
	metrics   observability.MetricsRegistry

	running atomic.Bool
	nowFn   func() time.Time
	newID   func() string
}

// New wires a scheduler. sink may be nil when triggers are only returned
// from Tick.
func New(
	registry models.CampaignRegistry,
	locations db.LocationDirectory,
	source contextsource.Source,
	tracker logic.CooldownTracker,
	resolver selectors.Resolver,
	sink TriggerSink,
	settings Settings,
	logger *zap.Logger,
	metrics observability.MetricsRegistry,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if resolver == nil {
		resolver = selectors.NewPriorityResolver(false, logger, metrics)
	}
	if sink == nil {
		sink = SinkFunc(func(context.Context, models.PlaybackTrigger) error { return nil })
	}
	settings = settings.withDefaults()
	return &Scheduler{
		registry:  registry,
		locations: locations,
		source:    source,
		tracker:   tracker,
		filter:    filters.NewSinglePassFilter(tracker, settings.MinSpacingFloor, metrics),
		resolver:  resolver,
		sink:      sink,
		settings:  settings,
		logger:    logger,
		metrics:   metrics,
		nowFn:     time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Run ticks at the configured interval until ctx is cancelled. The first tick
// runs immediately. A tick in progress when ctx is cancelled completes before
// Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.logger.Info("scheduler started",
		zap.Duration("tick_interval", s.settings.TickInterval),
		zap.Int("concurrency", s.settings.Concurrency))

	ticker := time.NewTicker(s.settings.TickInterval)
	defer ticker.Stop()

	s.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.Tick(context.WithoutCancel(ctx), s.nowFn()); err != nil {
		s.logger.Error("tick failed", zap.Error(err))
	}
}

// Tick evaluates every known location at now and returns the emitted
// triggers ordered by location ID. The campaign set is read once for the
// whole tick. An error means the location directory could not be read.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) ([]models.PlaybackTrigger, error) {
	ctx, span := observability.Tracer("scheduler").Start(ctx, "scheduler.tick")
	defer span.End()

	start := time.Now()
	s.metrics.IncrementTicks()
	defer func() { s.metrics.RecordTickDuration(time.Since(start)) }()

	locations, err := s.locations.Locations(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list locations: %w", err)
	}
	campaigns := s.registry.Snapshot()
	span.SetAttributes(
		attribute.Int("locations", len(locations)),
		attribute.Int("campaigns", campaigns.Len()),
	)
	s.logger.Debug("tick started", zap.Time("now", now), zap.Int("locations", len(locations)))

	results := make([]*models.PlaybackTrigger, len(locations))
	var g errgroup.Group
	g.SetLimit(s.settings.Concurrency)
	for i, loc := range locations {
		g.Go(func() error {
			results[i] = s.evaluateLocation(ctx, campaigns, loc, now)
			return nil
		})
	}
	_ = g.Wait()

	var fired []models.PlaybackTrigger
	for _, t := range results {
		if t != nil {
			fired = append(fired, *t)
		}
	}
	s.logger.Debug("tick finished", zap.Int("triggers", len(fired)), zap.Duration("elapsed", time.Since(start)))
	return fired, nil
}

func (s *Scheduler) evaluateLocation(ctx context.Context, campaigns *models.RegistrySnapshot, loc models.Location, now time.Time) *models.PlaybackTrigger {
	scoped := campaigns.ForLocation(loc.ID)
	if len(scoped) == 0 {
		return nil
	}

	ctx, span := observability.Tracer("scheduler").Start(ctx, "scheduler.location")
	defer span.End()
	span.SetAttributes(attribute.String("location_id", loc.ID))

	start := time.Now()
	defer func() { s.metrics.RecordEvaluationLatency(time.Since(start)) }()
	s.metrics.AddCandidates(filters.StageScoped, len(scoped))

	local := now.In(loc.Zone())
	snap, err := s.fetchSnapshot(ctx, loc.ID)
	if err != nil {
		reason := snapshotFailureReason(err)
		s.metrics.IncrementSnapshotFailures(reason)
		s.logger.Warn("skipping location: no context snapshot",
			zap.String("location_id", loc.ID),
			zap.String("reason", reason),
			zap.Error(err))
		return nil
	}
	snap = normalizeSnapshot(snap, loc, local)

	eligible, err := s.filter.FilterCampaigns(ctx, scoped, loc.ID, snap, local)
	if err != nil {
		s.metrics.IncrementCooldownErrors()
		s.logger.Error("cooldown lookup failed", zap.String("location_id", loc.ID), zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return nil
	}

	for _, c := range s.resolver.Rank(eligible, loc.ID) {
		ok, err := s.tracker.TryFire(ctx, c.ID, loc.ID, local, c.MinSpacing(s.settings.MinSpacingFloor))
		if err != nil {
			s.metrics.IncrementCooldownErrors()
			s.logger.Error("cooldown claim failed",
				zap.String("campaign_id", c.ID),
				zap.String("location_id", loc.ID),
				zap.Error(err))
			span.SetStatus(codes.Error, err.Error())
			return nil
		}
		if !ok {
			// Another evaluation claimed this pair since the filter ran.
			s.metrics.IncrementCooldownConflicts()
			continue
		}
		t := s.emit(ctx, c, loc, snap, local)
		return &t
	}
	return nil
}

func (s *Scheduler) emit(ctx context.Context, c models.Campaign, loc models.Location, snap models.ContextSnapshot, firedAt time.Time) models.PlaybackTrigger {
	matched, _ := logic.MatchedConditions(c, snap)
	t := models.PlaybackTrigger{
		ID:                s.newID(),
		CampaignID:        c.ID,
		AdvertiserID:      c.AdvertiserID,
		CreativeID:        c.CreativeID,
		LocationID:        loc.ID,
		FiredAt:           firedAt,
		MatchedConditions: matched,
		ResolvedPriority:  c.Priority,
		Status:            models.TriggerPending,
	}
	s.metrics.IncrementTriggers(loc.ID)
	s.logger.Info("trigger emitted",
		zap.String("trigger_id", t.ID),
		zap.String("campaign_id", c.ID),
		zap.String("location_id", loc.ID),
		zap.Int("priority", c.Priority))

	if err := s.sink.Emit(ctx, t); err != nil {
		s.logger.Warn("trigger delivery incomplete", zap.String("trigger_id", t.ID), zap.Error(err))
	}
	return t
}

func (s *Scheduler) fetchSnapshot(ctx context.Context, locationID string) (models.ContextSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.SnapshotTimeout)
	defer cancel()

	type result struct {
		snap models.ContextSnapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := s.source.Snapshot(ctx, locationID)
		done <- result{snap, err}
	}()

	select {
	case r := <-done:
		return r.snap, r.err
	case <-ctx.Done():
		return models.ContextSnapshot{}, ctx.Err()
	}
}

// normalizeSnapshot pins the snapshot to the location and expresses its
// timestamp in local time so temporal predicates read wall-clock values.
func normalizeSnapshot(snap models.ContextSnapshot, loc models.Location, local time.Time) models.ContextSnapshot {
	snap.LocationID = loc.ID
	if snap.Timestamp.IsZero() {
		snap.Timestamp = local
	} else {
		snap.Timestamp = snap.Timestamp.In(local.Location())
	}
	return snap
}

func snapshotFailureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, contextsource.ErrNoSnapshot):
		return "missing"
	default:
		return "error"
	}
}

// DryRun evaluates one location against snap without claiming cooldowns or
// emitting anything. The trace lists the survivors of each stage and the
// winner, if any.
func (s *Scheduler) DryRun(ctx context.Context, locationID string, snap models.ContextSnapshot, now time.Time) (*logic.EvaluationTrace, error) {
	loc := models.Location{ID: locationID}
	known, err := s.locations.Locations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	for _, l := range known {
		if l.ID == locationID {
			loc = l
			break
		}
	}

	local := now.In(loc.Zone())
	snap = normalizeSnapshot(snap, loc, local)

	trace := &logic.EvaluationTrace{LocationID: locationID}
	eligible, err := s.filter.FilterCampaignsWithTrace(ctx, s.registry.Snapshot().ForLocation(locationID), locationID, snap, local, trace)
	if err != nil {
		return trace, err
	}
	ranked := s.resolver.Rank(eligible, locationID)
	trace.AddStep("ranked", ranked)
	if len(ranked) > 0 {
		matched, _ := logic.MatchedConditions(ranked[0], snap)
		trace.AddStepWithDetails("winner", ranked[:1], map[string]string{
			"matched_conditions": fmt.Sprintf("%q", matched),
		})
	} else {
		trace.AddStep("winner", nil)
	}
	return trace, nil
}
