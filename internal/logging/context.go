package logging

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type ctxKey string

const (
	// RequestIDKey is the context key the RequestID middleware stores ids under
	RequestIDKey ctxKey = "request_id"

	annotationsKey ctxKey = "annotations"
)

// Fielder is implemented by values that know which of their fields are
// worth logging, such as decoded request bodies.
type Fielder interface {
	LogFields() []zap.Field
}

type annotations struct {
	mu     sync.Mutex
	fields []zap.Field
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithAnnotations gives ctx a place for handlers to leave fields that the
// request logger picks up once the handler returns.
func WithAnnotations(ctx context.Context) context.Context {
	return context.WithValue(ctx, annotationsKey, &annotations{})
}

// Annotate adds fields to ctx. It is a no-op without WithAnnotations.
func Annotate(ctx context.Context, fields ...zap.Field) {
	a, ok := ctx.Value(annotationsKey).(*annotations)
	if !ok || len(fields) == 0 {
		return
	}
	a.mu.Lock()
	a.fields = append(a.fields, fields...)
	a.mu.Unlock()
}

func Annotations(ctx context.Context) []zap.Field {
	a, ok := ctx.Value(annotationsKey).(*annotations)
	if !ok {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]zap.Field(nil), a.fields...)
}
