// Package types holds the observability contracts, kept apart so that
// logger and metrics implementations can import them without a cycle.
package types

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
)

// Logger writes structured entries. Implementations pick up the values
// stored under ContextKeys from ctx.
type Logger interface {
	Debug(ctx context.Context, msg string, fields Fields)
	Info(ctx context.Context, msg string, fields Fields)
	Warn(ctx context.Context, msg string, fields Fields)
	Error(ctx context.Context, msg string, err error, fields Fields)

	// WithFields returns a logger that adds fields to every entry. The
	// receiver is left unchanged.
	WithFields(fields Fields) Logger
}

// Metrics records stage outcomes. operation is a stage or sub-step name such
// as "download" or "ledger"; errorType is an error code or a short reason.
type Metrics interface {
	RecordSuccess(operation string)
	RecordError(operation, errorType string)
	RecordDuration(operation string, seconds float64)
	RecordFileSize(operation string, bytes int64)

	// StartOperation and EndOperation bracket an in-flight operation.
	StartOperation(operation string)
	EndOperation(operation string)
}

// Fields are JSON-serialisable key/value pairs.
type Fields map[string]interface{}

// ContextKey is the type of the context keys the logger extracts.
type ContextKey string

const (
	TraceIDKey    ContextKey = "trace_id"
	RequestIDKey  ContextKey = "request_id"
	ObjectNameKey ContextKey = "object_name"
	JobIDKey      ContextKey = "job_id"
)

// ContextKeys lists the keys in the order they are emitted.
var ContextKeys = []ContextKey{TraceIDKey, RequestIDKey, ObjectNameKey, JobIDKey}

// Config configures a Provider.
type Config struct {
	ServiceName string
	Environment string
	// LogLevel is "debug", "info", "warn" or "error".
	LogLevel string
	// LogOutput defaults to os.Stdout.
	LogOutput io.Writer
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer       prometheus.Registerer
	AdditionalFields Fields
}

// Provider hands out one Logger and one Metrics per component name.
type Provider interface {
	Logger(component string) Logger
	Metrics(component string) Metrics
	Close() error
}
