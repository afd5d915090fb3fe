package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		env, level string
		want       zapcore.Level
	}{
		{"", "", zap.InfoLevel},
		{"dev", "", zap.DebugLevel},
		{"production", "", zap.InfoLevel},
		{"dev", "warn", zap.WarnLevel},
		{"", "ERROR", zap.ErrorLevel},
		{"", "verbose", zap.InfoLevel},
	}
	for _, tt := range tests {
		t.Setenv("ENV", tt.env)
		t.Setenv("LOG_LEVEL", tt.level)
		assert.Equal(t, tt.want, getLogLevel(), "ENV=%q LOG_LEVEL=%q", tt.env, tt.level)
	}
}

func TestInitLoggerWithLevel_ReplacesGlobal(t *testing.T) {
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	logger, err := InitLoggerWithLevel(zap.WarnLevel, "test-svc")
	assert.NoError(t, err)
	assert.Same(t, logger, zap.L())
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestMockMetricsRegistry_Counts(t *testing.T) {
	m := NewMockMetricsRegistry()
	m.IncrementTriggers("L")
	m.IncrementTriggers("L")
	m.AddCandidates("calendar", 3)
	assert.Equal(t, 2, m.Count(m.Triggers, "L"))
	assert.Equal(t, 3, m.Count(m.Candidates, "calendar"))
}
