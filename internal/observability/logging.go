package observability

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/demonfiddler/evidence-engine-sub001/internal/config"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

type loggerKey struct{}

// NewLogger creates a zap.Logger configured for JSON output to stdout.
//
// Log level usage conventions:
//   - error: backend unreachable, session store failures, unhandled panics
//   - warn:  GraphQL errors, open circuit breaker, rejected selections, discarded session values
//   - info:  request start/end, mutations, master link changes
//   - debug: fetch sequencing, stale responses, GraphQL variables (redacted)
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapCfg.Build()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger stored in the context, or fallback.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// RequestLogger returns the context's logger enriched with the session id,
// the signed-in username and the active trace id, where present.
func RequestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := LoggerFrom(ctx, fallback)

	var fields []zap.Field
	if id := model.SessionIDFrom(ctx); id != "" {
		fields = append(fields, zap.String("session_id", id))
	}
	if sec, ok := model.SecurityStateFrom(ctx); ok && sec.Username != "" {
		fields = append(fields, zap.String("username", sec.Username))
	}
	if id := TraceIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

var defaultSensitiveFields = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"authorization": true,
	"email":         true,
}

// RedactBody returns a copy of body with sensitive fields replaced by
// "[REDACTED]". sensitiveFields extends the default set. Nested objects are
// redacted recursively. Intended for debug logging of GraphQL variables.
func RedactBody(body map[string]any, sensitiveFields []string) map[string]any {
	if body == nil {
		return nil
	}

	redactSet := make(map[string]bool, len(defaultSensitiveFields)+len(sensitiveFields))
	for k, v := range defaultSensitiveFields {
		redactSet[k] = v
	}
	for _, f := range sensitiveFields {
		redactSet[f] = true
	}

	result := make(map[string]any, len(body))
	for k, v := range body {
		switch {
		case redactSet[k]:
			result[k] = "[REDACTED]"
		default:
			if nested, ok := v.(map[string]any); ok {
				result[k] = RedactBody(nested, sensitiveFields)
			} else {
				result[k] = v
			}
		}
	}
	return result
}
