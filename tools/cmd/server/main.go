package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/patrickwarner/openadtrigger/internal/analytics"
	"github.com/patrickwarner/openadtrigger/internal/api"
	"github.com/patrickwarner/openadtrigger/internal/config"
	"github.com/patrickwarner/openadtrigger/internal/contextsource"
	"github.com/patrickwarner/openadtrigger/internal/db"
	"github.com/patrickwarner/openadtrigger/internal/logic"
	"github.com/patrickwarner/openadtrigger/internal/logic/ratelimit"
	"github.com/patrickwarner/openadtrigger/internal/logic/selectors"
	"github.com/patrickwarner/openadtrigger/internal/middleware"
	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
	"github.com/patrickwarner/openadtrigger/internal/scheduler"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	// Postgres backs the location directory when selected and, whenever a
	// DSN is configured, the trigger outcome audit table.
	var pg *db.Postgres
	if cfg.PostgresDSN != "" {
		var err error
		pg, err = db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer pg.Close()
	}

	var locations db.LocationDirectory
	switch cfg.LocationBackend {
	case config.BackendPostgres:
		if pg == nil {
			return errors.New("LOCATION_BACKEND=postgres requires POSTGRES_DSN")
		}
		locations = pg
	case config.BackendStatic, "":
		locations = db.ParseStaticLocations(cfg.Locations)
	default:
		return fmt.Errorf("unknown location backend %q", cfg.LocationBackend)
	}

	var store *db.RedisStore
	if cfg.CooldownBackend == config.BackendRedis || cfg.PublishTriggers {
		var err error
		store, err = db.InitRedis(cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer store.Close()
	}

	var tracker logic.CooldownTracker
	switch cfg.CooldownBackend {
	case config.BackendRedis:
		tracker = logic.NewRedisCooldownTracker(store, cfg.CooldownRetention)
	case config.BackendMemory, "":
		tracker = logic.NewInMemoryCooldownTracker()
	default:
		return fmt.Errorf("unknown cooldown backend %q", cfg.CooldownBackend)
	}

	var triggerLog analytics.TriggerLog
	switch cfg.TriggerLogBackend {
	case config.BackendClickHouse:
		chLog, err := analytics.InitClickHouse(cfg.ClickHouseDSN, cfg.CHMaxOpenConns, cfg.CHMaxIdleConns, cfg.CHConnMaxLifetime)
		if err != nil {
			return fmt.Errorf("failed to connect clickhouse: %w", err)
		}
		defer chLog.Close()
		triggerLog = chLog
	case config.BackendMemory, "":
		triggerLog = analytics.NewMemoryLog(cfg.TriggerLogCapacity)
	default:
		return fmt.Errorf("unknown trigger log backend %q", cfg.TriggerLogBackend)
	}

	sink := scheduler.NewMultiSink(metricsRegistry).Add("trigger_log", scheduler.LogSink(triggerLog))
	if cfg.PublishTriggers {
		sink.Add("redis", scheduler.NewRedisPublishSink(store, cfg.TriggerChannel))
	}

	var (
		source contextsource.Source
		pushed *contextsource.StaticSource
	)
	if cfg.ContextSourceURL != "" {
		httpSource := contextsource.NewHTTPSource(cfg.ContextSourceURL, cfg.ContextSourceTimeout, logger, metricsRegistry)
		if err := httpSource.HealthCheck(ctx); err != nil {
			logger.Warn("context source health check failed", zap.String("url", cfg.ContextSourceURL), zap.Error(err))
		}
		source = httpSource
	} else {
		logger.Warn("CONTEXT_SOURCE_URL not set, locations fire only after a snapshot is pushed to PUT /api/locations/{id}/snapshot")
		pushed = contextsource.NewStaticSource()
		source = pushed
	}

	registry := models.NewInMemoryCampaignRegistry()
	if cfg.CampaignSeedFile != "" {
		n, err := models.LoadCampaignSeed(cfg.CampaignSeedFile, registry, logger)
		if err != nil {
			return fmt.Errorf("load campaign seed: %w", err)
		}
		logger.Info("campaign seed loaded", zap.String("file", cfg.CampaignSeedFile), zap.Int("campaigns", n))
	}

	resolver := selectors.NewPriorityResolver(cfg.StrictInvariants, logger, metricsRegistry)
	sched := scheduler.New(registry, locations, source, tracker, resolver, sink, scheduler.Settings{
		TickInterval:    cfg.TickInterval,
		SnapshotTimeout: cfg.SnapshotTimeout,
		MinSpacingFloor: cfg.EffectiveMinSpacingFloor(),
		Concurrency:     cfg.TickConcurrency,
	}, logger, metricsRegistry)

	var outcomes api.OutcomeStore
	if pg != nil {
		outcomes = pg
	}
	srvDeps := api.NewServer(logger, registry, sched, triggerLog, outcomes, store, metricsRegistry, cfg.DebugTrace)
	srvDeps.Limiter = ratelimit.NewKeyedLimiter("campaigns", ratelimit.Config{
		Capacity:   cfg.AdminRateLimitCapacity,
		RefillRate: cfg.AdminRateLimitRefill,
		Enabled:    cfg.AdminRateLimitEnabled,
	}, metricsRegistry)
	srvDeps.Snapshots = pushed

	var handler http.Handler = srvDeps.Routes()
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.WithTraceLogger(logger)(handler)
	handler = otelhttp.NewHandler(handler, cfg.ServiceName)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Trigger engine running",
		zap.String("addr", addr),
		zap.Duration("tick_interval", cfg.TickInterval),
		zap.String("cooldown_backend", cfg.CooldownBackend),
		zap.String("trigger_log_backend", cfg.TriggerLogBackend))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	// The scheduler gets its own context so a listener failure also stops it.
	schedCtx, stopSched := context.WithCancel(ctx)
	defer stopSched()
	schedDone := startScheduler(schedCtx, sched)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	case runErr = <-schedDone:
		schedDone = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Deferred store closes run after this returns, so the in-progress tick
	// must finish first.
	stopSched()
	if err := waitScheduler(shutdownCtx, schedDone); err != nil {
		logger.Error("scheduler did not stop in time", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return runErr
}

// startScheduler runs sched until ctx is cancelled. The returned channel
// yields Run's error, if any, and is closed once Run has returned.
func startScheduler(ctx context.Context, sched *scheduler.Scheduler) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		if err := sched.Run(ctx); err != nil {
			done <- fmt.Errorf("scheduler: %w", err)
		}
	}()
	return done
}

// waitScheduler blocks until done is closed or ctx expires. A nil channel
// means the scheduler already stopped.
func waitScheduler(ctx context.Context, done <-chan error) error {
	if done == nil {
		return nil
	}
	for {
		select {
		case _, ok := <-done:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
