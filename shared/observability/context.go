package observability

import (
	"context"

	"github.com/balu-bunny/lambdaTest/shared/observability/types"
)

// WithRequestID stores the request correlation id for the logger.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, types.RequestIDKey, requestID)
}

// WithTraceID stores the distributed trace id for the logger.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, types.TraceIDKey, traceID)
}

// WithJob tags every later log line with the backup job identity. Empty
// values are left out.
func WithJob(ctx context.Context, objectName, jobID string) context.Context {
	if objectName != "" {
		ctx = context.WithValue(ctx, types.ObjectNameKey, objectName)
	}
	if jobID != "" {
		ctx = context.WithValue(ctx, types.JobIDKey, jobID)
	}
	return ctx
}

// RequestID returns the request id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(types.RequestIDKey).(string)
	return id
}

// TraceID returns the trace id stored by WithTraceID.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(types.TraceIDKey).(string)
	return id
}
