package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend names accepted by the *_BACKEND settings.
const (
	BackendMemory     = "memory"
	BackendRedis      = "redis"
	BackendClickHouse = "clickhouse"
	BackendStatic     = "static"
	BackendPostgres   = "postgres"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string        `env:"PORT" envDefault:"8787"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ServiceName  string        `env:"SERVICE_NAME" envDefault:"openadtrigger"`
	DebugTrace   bool          `env:"DEBUG_TRACE" envDefault:"false"`

	// ShutdownTimeout bounds the wait for an in-progress tick and open
	// requests on shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Scheduler
	TickInterval    time.Duration `env:"TICK_INTERVAL" envDefault:"1m"`
	SnapshotTimeout time.Duration `env:"SNAPSHOT_TIMEOUT" envDefault:"2s"`
	// MinSpacingFloor is the spacing for campaigns that neither set one nor
	// repeat on an interval. Zero means one tick interval.
	MinSpacingFloor  time.Duration `env:"MIN_SPACING_FLOOR" envDefault:"0s"`
	TickConcurrency  int           `env:"TICK_CONCURRENCY" envDefault:"8"`
	StrictInvariants bool          `env:"STRICT_INVARIANTS" envDefault:"false"`
	CampaignSeedFile string        `env:"CAMPAIGN_SEED_FILE"`

	// Cooldown state
	CooldownBackend   string        `env:"COOLDOWN_BACKEND" envDefault:"memory"`
	CooldownRetention time.Duration `env:"COOLDOWN_RETENTION" envDefault:"24h"`
	RedisAddr         string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	TriggerChannel    string        `env:"TRIGGER_CHANNEL" envDefault:"playback-triggers"`
	PublishTriggers   bool          `env:"PUBLISH_TRIGGERS" envDefault:"false"`

	// Trigger log
	TriggerLogBackend  string `env:"TRIGGER_LOG_BACKEND" envDefault:"memory"`
	TriggerLogCapacity int    `env:"TRIGGER_LOG_CAPACITY" envDefault:"10000"`
	ClickHouseDSN      string `env:"CLICKHOUSE_DSN" envDefault:"clickhouse://default:@localhost:9000/default"`
	// ClickHouse connection pooling configuration
	CHMaxOpenConns    int           `env:"CH_MAX_OPEN_CONNS" envDefault:"25"`
	CHMaxIdleConns    int           `env:"CH_MAX_IDLE_CONNS" envDefault:"5"`
	CHConnMaxLifetime time.Duration `env:"CH_CONN_MAX_LIFETIME" envDefault:"5m"`

	// Locations and outcome audit
	LocationBackend string `env:"LOCATION_BACKEND" envDefault:"static"`
	Locations       string `env:"LOCATIONS"`
	PostgresDSN     string `env:"POSTGRES_DSN"`
	// Database connection pooling configuration
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"1m"`

	// Context source
	ContextSourceURL     string        `env:"CONTEXT_SOURCE_URL"`
	ContextSourceTimeout time.Duration `env:"CONTEXT_SOURCE_TIMEOUT" envDefault:"2s"`

	// Admin API write rate limiting, per advertiser
	AdminRateLimitEnabled  bool `env:"ADMIN_RATE_LIMIT_ENABLED" envDefault:"false"`
	AdminRateLimitCapacity int  `env:"ADMIN_RATE_LIMIT_CAPACITY" envDefault:"20"`
	AdminRateLimitRefill   int  `env:"ADMIN_RATE_LIMIT_REFILL" envDefault:"5"`

	// Tracing configuration
	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TempoEndpoint     string  `env:"TEMPO_ENDPOINT" envDefault:"tempo:4317"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

// Load parses environment variables into a Config. Unset variables take
// their defaults; a malformed value is returned as an error.
func Load() (Config, error) {
	return env.ParseAs[Config]()
}

// EffectiveMinSpacingFloor returns MinSpacingFloor, or the tick interval
// when it is unset, so a campaign cannot fire twice within one tick.
func (c Config) EffectiveMinSpacingFloor() time.Duration {
	if c.MinSpacingFloor > 0 {
		return c.MinSpacingFloor
	}
	return c.TickInterval
}
