package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// NewLogger builds the process logger. Production gets JSON output, every
// other environment the console encoder.
func NewLogger(environment, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// WithActor returns a context carrying the acting user's id for log fields.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// FromContext adds the actor id from ctx, when present, to the logger.
func FromContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if userID, ok := ctx.Value(ctxKey{}).(string); ok && userID != "" {
		return logger.With(zap.String("actor_id", userID))
	}
	return logger
}
