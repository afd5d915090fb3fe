package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/patrickwarner/openadtrigger/internal/config"
	"github.com/patrickwarner/openadtrigger/internal/db"
	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
)

var (
	addr            string
	locationCSV     string
	seed            int64
	missingRate     float64
	surgeInterval   time.Duration
	surgeDuration   time.Duration
	surgeMultiplier float64
	flush           bool
	redisAddr       string
	debug           bool
	stats           bool
)

const statsInterval = 5 * time.Second

var (
	countServed  uint64
	countMissing uint64
)

var (
	weatherConditions = []string{"clear", "cloudy", "rain", "snow"}
	promotionTypes    = []string{"", "clearance", "bogo", "seasonal"}
	ageBands          = []string{"18-24", "25-34", "35-44", "45-54", "55+"}
	spendSegments     = []string{"budget", "mid", "premium"}
	locationTypes     = []string{"mall", "transit", "gym", "cafe"}
)

// locationState is the random walk for one location.
type locationState struct {
	temperature float64
	humidity    float64
	traffic     float64
	locType     string
}

// simulator produces context snapshots whose readings drift slowly between
// requests, with periodic foot-traffic surges.
type simulator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	states      map[string]*locationState
	started     time.Time
	missingRate float64
	surgeEvery  time.Duration
	surgeFor    time.Duration
	surgeMult   float64
	now         func() time.Time
}

func newSimulator(seed int64, locations []string) *simulator {
	s := &simulator{
		rng:       rand.New(rand.NewSource(seed)),
		states:    map[string]*locationState{},
		surgeMult: 1,
		now:       time.Now,
	}
	s.started = s.now()
	for _, id := range locations {
		s.state(id)
	}
	return s
}

func (s *simulator) state(id string) *locationState {
	st, ok := s.states[id]
	if !ok {
		st = &locationState{
			temperature: 10 + s.rng.Float64()*20,
			humidity:    30 + s.rng.Float64()*50,
			traffic:     20 + s.rng.Float64()*60,
			locType:     locationTypes[s.rng.Intn(len(locationTypes))],
		}
		s.states[id] = st
	}
	return st
}

func (s *simulator) inSurge(now time.Time) bool {
	if s.surgeEvery <= 0 || s.surgeFor <= 0 {
		return false
	}
	return now.Sub(s.started)%s.surgeEvery < s.surgeFor
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

// snapshot advances the location's walk and returns the resulting reading.
// ok is false when the simulated feed has no data for this request.
func (s *simulator) snapshot(locationID string) (models.ContextSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.missingRate > 0 && s.rng.Float64() < s.missingRate {
		return models.ContextSnapshot{}, false
	}

	now := s.now()
	st := s.state(locationID)
	st.temperature = clamp(st.temperature+s.rng.NormFloat64()*0.8, -20, 45)
	st.humidity = clamp(st.humidity+s.rng.NormFloat64()*2, 0, 100)
	st.traffic = clamp(st.traffic+s.rng.NormFloat64()*5, 0, 100)

	traffic := st.traffic
	if s.inSurge(now) {
		traffic = clamp(traffic*s.surgeMult, 0, 100)
	}

	snap := models.ContextSnapshot{
		LocationID: locationID,
		Timestamp:  now.UTC(),
		Weather: &models.WeatherReading{
			Temperature: models.Float(math.Round(st.temperature*10) / 10),
			Humidity:    models.Float(math.Round(st.humidity)),
			Condition:   weatherConditions[s.rng.Intn(len(weatherConditions))],
		},
		Location: &models.LocationState{
			Type:         st.locType,
			FootTraffic:  models.Float(math.Round(traffic)),
			CrowdDensity: models.Float(math.Round(traffic*0.8) / 100),
		},
		Audience: &models.AudienceProfile{
			AgeBand:      ageBands[s.rng.Intn(len(ageBands))],
			SpendSegment: spendSegments[s.rng.Intn(len(spendSegments))],
		},
		IsHoliday: models.Bool(false),
	}
	if promo := promotionTypes[s.rng.Intn(len(promotionTypes))]; promo != "" {
		snap.Promotion = &models.PromotionState{
			Type:       promo,
			Discount:   models.Float(float64(5 * (1 + s.rng.Intn(10)))),
			StockLevel: models.Float(float64(s.rng.Intn(100))),
		}
	}
	return snap, true
}

func (s *simulator) routes(logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.HandleFunc("/locations/{id}/snapshot", func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		snap, ok := s.snapshot(id)
		if !ok {
			atomic.AddUint64(&countMissing, 1)
			logger.Debug("snapshot withheld", zap.String("location_id", id))
			http.Error(w, "no reading", http.StatusNotFound)
			return
		}
		atomic.AddUint64(&countServed, 1)
		logger.Debug("snapshot served",
			zap.String("location_id", id),
			zap.Float64("temperature", *snap.Weather.Temperature),
			zap.Float64("foot_traffic", *snap.Location.FootTraffic))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}).Methods("GET")
	return r
}

// flushCooldowns removes engine cooldown keys so a fresh run starts with
// every campaign eligible.
func flushCooldowns(logger *zap.Logger, addr string) error {
	store, err := db.InitRedis(addr)
	if err != nil {
		return err
	}
	defer store.Close()

	keys, err := store.Client.Keys(store.Ctx, "cooldown:*").Result()
	if err != nil {
		return fmt.Errorf("list cooldown keys: %w", err)
	}
	if len(keys) > 0 {
		if err := store.Client.Del(store.Ctx, keys...).Err(); err != nil {
			return fmt.Errorf("delete cooldown keys: %w", err)
		}
	}
	logger.Info("redis cooldowns flushed", zap.String("addr", addr), zap.Int("keys_deleted", len(keys)))
	return nil
}

func main() {
	flag.StringVar(&addr, "addr", ":8790", "listen address")
	flag.StringVar(&locationCSV, "locations", "", "comma-separated location IDs to pre-warm")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "rng seed")
	flag.Float64Var(&missingRate, "missing-rate", 0, "probability a snapshot request returns 404")
	flag.DurationVar(&surgeInterval, "surge-interval", 0, "interval between foot-traffic surges (0 to disable)")
	flag.DurationVar(&surgeDuration, "surge-duration", 0, "duration of each surge window")
	flag.Float64Var(&surgeMultiplier, "surge-multiplier", 2.0, "foot-traffic multiplier during a surge")
	flag.BoolVar(&flush, "flush", false, "flush redis cooldowns before serving")
	flag.StringVar(&redisAddr, "redis", "", "redis address (defaults to REDIS_ADDR)")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.BoolVar(&stats, "stats", false, "print aggregated stats periodically")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	logger, err := observability.InitLoggerWithLevel(level, "context-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if flush {
		addr := redisAddr
		if addr == "" {
			cfg, err := config.Load()
			if err != nil {
				logger.Fatal("load config", zap.Error(err))
			}
			addr = cfg.RedisAddr
		}
		if err := flushCooldowns(logger, addr); err != nil {
			logger.Fatal("flush cooldowns", zap.Error(err))
		}
	}

	var locations []string
	for _, id := range strings.Split(locationCSV, ",") {
		if id = strings.TrimSpace(id); id != "" {
			locations = append(locations, id)
		}
	}
	sim := newSimulator(seed, locations)
	sim.missingRate = missingRate
	sim.surgeEvery = surgeInterval
	sim.surgeFor = surgeDuration
	sim.surgeMult = surgeMultiplier

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					logger.Info("stats",
						zap.Uint64("served", atomic.LoadUint64(&countServed)),
						zap.Uint64("missing", atomic.LoadUint64(&countMissing)))
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	srv := &http.Server{Addr: addr, Handler: sim.routes(logger), ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("context simulator running",
		zap.String("addr", addr),
		zap.Int64("seed", seed),
		zap.Int("locations", len(locations)))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("listen", zap.Error(err))
	}
}
