// Package logging wraps zap with the request-scoped context the HTTP layer
// and the squash workflow log under.
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
}

// NewLogger builds a JSON production logger, or a console logger when
// environment is "development".
func NewLogger(level, environment string) (*Logger, error) {
	config := zap.NewProductionConfig()
	if environment == "development" {
		config = zap.NewDevelopmentConfig()
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{logger.With(zap.String("service", "repodeck"))}, nil
}

// Nop returns a Logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{zap.NewNop()}
}

// For returns a logger carrying the request id and every field annotated
// onto ctx so far.
func (l *Logger) For(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	if reqID := RequestID(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	fields = append(fields, Annotations(ctx)...)
	if len(fields) == 0 {
		return l.Logger
	}
	return l.With(fields...)
}
