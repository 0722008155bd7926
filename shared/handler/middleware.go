package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/balu-bunny/lambdaTest/shared/observability"
	"github.com/balu-bunny/lambdaTest/shared/observability/types"
)

// operation names a request in logs and metrics.
func operation(req Request) string {
	if req.Type == "" {
		return "unknown"
	}
	return req.Type
}

// LoggingMiddleware logs one line when a request starts and one when it ends.
func LoggingMiddleware(provider observability.Provider) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			logger := provider.Logger("handler").WithFields(types.Fields{
				"stage":    operation(req),
				"source":   req.Source,
				"worker":   WorkerName(ctx),
				"platform": Platform(ctx),
			})
			logger.Info(ctx, "Request received", types.Fields{"payload_size": len(req.Payload)})

			start := time.Now()
			resp, err := next(ctx, req)
			resp.Duration = time.Since(start)
			took := types.Fields{"duration_ms": resp.Duration.Milliseconds()}

			switch {
			case err != nil:
				logger.Error(ctx, "Request not handled", err, took)
			case resp.Error != nil:
				took["error_code"] = resp.Error.Code
				took["retryable"] = resp.Error.Retryable
				logger.Warn(ctx, "Request failed: "+resp.Error.Message, took)
			default:
				logger.Info(ctx, "Request done", took)
			}
			return resp, err
		}
	}
}

// MetricsMiddleware counts outcomes per request type. A failed response is
// counted under its error code.
func MetricsMiddleware(provider observability.Provider) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			metrics := provider.Metrics("handler")
			op := operation(req)

			metrics.StartOperation(op)
			defer metrics.EndOperation(op)

			start := time.Now()
			resp, err := next(ctx, req)
			metrics.RecordDuration(op, time.Since(start).Seconds())

			switch {
			case err != nil:
				metrics.RecordError(op, "processing_error")
			case resp.Success:
				metrics.RecordSuccess(op)
			case resp.Error != nil:
				metrics.RecordError(op, resp.Error.Code)
			default:
				metrics.RecordError(op, "unknown_error")
			}
			return resp, err
		}
	}
}

// RecoveryMiddleware turns a panic into a retryable InternalError. The
// panic value and stack go to the log, never to the caller.
func RecoveryMiddleware(provider observability.Provider) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (resp Response, err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				provider.Logger("handler").Error(ctx, "Panic recovered", fmt.Errorf("panic: %v", r), types.Fields{
					"stage": operation(req),
					"stack": string(debug.Stack()),
				})
				provider.Metrics("handler").RecordError("panic", "panic_recovered")
				resp, err = NewErrorResponse(req.ID, CodeInternal, "An internal error occurred", ""), nil
			}()
			return next(ctx, req)
		}
	}
}

// traceHeaders are checked in order for an incoming trace id.
var traceHeaders = []string{"trace_id", "x-trace-id", "x-amzn-trace-id", "x-request-id", "correlation-id"}

// TracingMiddleware carries a trace id through ctx, the request metadata and
// the response metadata. An X-Ray header contributes its Root only.
func TracingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			traceID := incomingTraceID(req.Metadata)
			if traceID == "" {
				traceID = uuid.NewString()
			}

			ctx = observability.WithTraceID(ctx, traceID)
			req.SetMetadata("trace_id", traceID)

			resp, err := next(ctx, req)
			if resp.Metadata == nil {
				resp.Metadata = map[string]string{}
			}
			resp.Metadata["trace_id"] = traceID
			return resp, err
		}
	}
}

func incomingTraceID(metadata map[string]string) string {
	for _, key := range traceHeaders {
		value := strings.TrimSpace(metadata[key])
		if value == "" {
			continue
		}
		if key == "x-amzn-trace-id" {
			return xrayRoot(value)
		}
		return value
	}
	return ""
}

// xrayRoot extracts Root from "Root=1-5759e988-bd862e3fe1be46a994272793;Parent=...".
func xrayRoot(header string) string {
	for _, part := range strings.Split(header, ";") {
		if k, v, ok := strings.Cut(strings.TrimSpace(part), "="); ok && k == "Root" {
			return v
		}
	}
	return header
}

// TimeoutMiddleware answers with a retryable TransientError once timeout
// elapses, even if the worker is still running. The worker sees the
// cancelled context.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				resp Response
				err  error
			}
			done := make(chan result, 1)
			go func() {
				resp, err := next(ctx, req)
				done <- result{resp, err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				return NewErrorResponse(req.ID, CodeTransient, "Request processing timed out",
					"exceeded "+timeout.String()), nil
			}
		}
	}
}

// ValidationMiddleware fills the request id and timestamp, then rejects a
// request without a type, with a payload larger than maxSize (when
// positive) or with a payload that is not JSON. An empty or null payload
// becomes {}.
func ValidationMiddleware(maxSize int64) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			if req.ID == "" {
				req.ID = uuid.NewString()
			}
			if req.Timestamp.IsZero() {
				req.Timestamp = time.Now().UTC()
			}
			if req.Metadata == nil {
				req.Metadata = map[string]string{}
			}

			if req.Type == "" {
				return NewErrorResponse(req.ID, CodeValidation, "Request type is required", "Missing stage name"), nil
			}
			if maxSize > 0 && int64(len(req.Payload)) > maxSize {
				return NewErrorResponse(req.ID, CodeValidation, "Payload too large",
					fmt.Sprintf("%d bytes exceeds %d", len(req.Payload), maxSize)), nil
			}

			if trimmed := strings.TrimSpace(string(req.Payload)); trimmed == "" || trimmed == "null" {
				req.Payload = json.RawMessage("{}")
			}
			if !json.Valid(req.Payload) {
				return NewErrorResponse(req.ID, CodeValidation, "Invalid JSON payload", "Payload must be valid JSON"), nil
			}

			return next(ctx, req)
		}
	}
}
