package observability

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// InitLogger initializes the global zerolog logger. Unknown levels fall back
// to info.
func InitLogger(serviceName, env, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).With().
			Str("service", serviceName).
			Logger()
	} else {
		// CLIs write their results to stdout, so logs go to stderr.
		log.Logger = zerolog.New(os.Stderr).
			With().
			Timestamp().
			Caller().
			Str("service", serviceName).
			Logger()
	}
}

// ContextWithFields attaches a logger carrying the given string fields to
// ctx. LoggerFromContext picks it up further down the call chain.
func ContextWithFields(ctx context.Context, fields map[string]string) context.Context {
	lc := LoggerFromContext(ctx).With()
	for k, v := range fields {
		lc = lc.Str(k, v)
	}
	return lc.Logger().WithContext(ctx)
}

// LoggerFromContext returns the logger attached to ctx, or the global one,
// enriched with the active trace and span ids
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	logger := log.With().Logger()
	if attached := zerolog.Ctx(ctx); attached.GetLevel() != zerolog.Disabled {
		logger = attached.With().Logger()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return &logger
}
