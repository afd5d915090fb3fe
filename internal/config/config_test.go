package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8787", cfg.Port)
	assert.Equal(t, time.Minute, cfg.TickInterval)
	assert.Equal(t, 2*time.Second, cfg.SnapshotTimeout)
	assert.Equal(t, BackendMemory, cfg.CooldownBackend)
	assert.Equal(t, BackendStatic, cfg.LocationBackend)
	assert.Equal(t, 8, cfg.TickConcurrency)
	assert.Equal(t, time.Minute, cfg.EffectiveMinSpacingFloor())
	assert.False(t, cfg.AdminRateLimitEnabled)
	assert.Equal(t, 20, cfg.AdminRateLimitCapacity)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "30s")
	t.Setenv("MIN_SPACING_FLOOR", "5m")
	t.Setenv("COOLDOWN_BACKEND", "redis")
	t.Setenv("STRICT_INVARIANTS", "true")
	t.Setenv("LOCATIONS", "mall-1@Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.TickInterval)
	assert.Equal(t, 5*time.Minute, cfg.EffectiveMinSpacingFloor())
	assert.Equal(t, BackendRedis, cfg.CooldownBackend)
	assert.True(t, cfg.StrictInvariants)
	assert.Equal(t, "mall-1@Europe/Berlin", cfg.Locations)
}

func TestLoad_Malformed(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "soon")
	_, err := Load()
	assert.Error(t, err)
}
