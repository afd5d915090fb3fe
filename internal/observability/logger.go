package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultServiceName names the engine in logs and traces.
const DefaultServiceName = "openadtrigger"

// InitLogger constructs a production zap.Logger configured for the service.
// The returned logger should be passed to other components for structured logging.
func InitLogger() (*zap.Logger, error) {
	return InitLoggerWithLevel(getLogLevel(), DefaultServiceName)
}

// InitLoggerWithService constructs a production zap.Logger named after serviceName.
func InitLoggerWithService(serviceName string) (*zap.Logger, error) {
	return InitLoggerWithLevel(getLogLevel(), serviceName)
}

// InitStderrLogger builds the same logger as InitLoggerWithService but writes
// only to stderr, for processes that own stdout (the MCP stdio server).
func InitStderrLogger(serviceName string) (*zap.Logger, error) {
	cfg := productionConfig(getLogLevel())
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return build(cfg, serviceName)
}

// InitLoggerWithLevel constructs a zap.Logger at the provided level.
// The returned logger is named with the service name and installed as the global logger.
func InitLoggerWithLevel(level zapcore.Level, serviceName string) (*zap.Logger, error) {
	return build(productionConfig(level), serviceName)
}

func productionConfig(level zapcore.Level) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)

	// field names expected by the log shipper
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "logger"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func build(cfg zap.Config, serviceName string) (*zap.Logger, error) {
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	logger = logger.Named(serviceName).With(zap.String("service", serviceName))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// getLogLevel determines the appropriate log level based on environment
func getLogLevel() zapcore.Level {
	env := strings.ToLower(os.Getenv("ENV"))
	logLevel := strings.ToUpper(os.Getenv("LOG_LEVEL"))

	if logLevel == "" {
		switch env {
		case "development", "dev":
			return zap.DebugLevel
		default:
			return zap.InfoLevel
		}
	}

	switch logLevel {
	case "DEBUG":
		return zap.DebugLevel
	case "INFO":
		return zap.InfoLevel
	case "WARN":
		return zap.WarnLevel
	case "ERROR":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
