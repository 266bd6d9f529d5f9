package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"newsmap/internal/handler/http/requestid"

	"go.opentelemetry.io/otel/trace"
)

// ParseLevel maps LOG_LEVEL values onto slog levels. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a JSON logger writing to w. Every line carries the service
// name so api and worker output can share one sink.
func New(w io.Writer, service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})
	return slog.New(handler).With(slog.String("service", service))
}

// NewLogger creates the process logger on stdout at the LOG_LEVEL level.
func NewLogger(service string) *slog.Logger {
	return New(os.Stdout, service, ParseLevel(os.Getenv("LOG_LEVEL")))
}

// WithRequestID returns logger enriched with the request ID and, when the
// context carries a recording span, the trace ID.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	var attrs []any
	if id := requestid.FromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}
