package middleware

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type loggerKey struct{}

// WithTraceLogger stores a request-scoped logger in the context. When the
// request carries an active span the logger is tagged with its trace and
// span IDs.
func WithTraceLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), loggerKey{}, withSpan(r.Context(), logger))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withSpan(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// LoggerFromContext returns the request logger, or fallback tagged with the
// active span when none was stored.
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return withSpan(ctx, fallback)
}

// LoggerFromRequest is LoggerFromContext for an HTTP request.
func LoggerFromRequest(r *http.Request, fallback *zap.Logger) *zap.Logger {
	return LoggerFromContext(r.Context(), fallback)
}
