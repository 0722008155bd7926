package handler

import (
	"context"
	"time"

	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/observability"
)

// Worker runs requests for one service. It knows nothing about the channel
// a request arrived on.
type Worker interface {
	Name() string

	// Process reports domain failures as an unsuccessful Response. A
	// returned error means the request could not be handled at all.
	Process(ctx context.Context, request Request) (Response, error)

	Health(ctx context.Context) error
}

// HandlerFunc handles one request.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

type invocationKey struct{}

type invocation struct {
	worker   string
	platform string
}

func invocationFrom(ctx context.Context) invocation {
	inv, _ := ctx.Value(invocationKey{}).(invocation)
	return inv
}

// WorkerName returns the name of the worker serving ctx.
func WorkerName(ctx context.Context) string { return invocationFrom(ctx).worker }

// Platform returns the channel ("lambda", "http", "cli") ctx arrived on.
func Platform(ctx context.Context) string { return invocationFrom(ctx).platform }

// Handler runs a Worker behind a middleware chain. Middleware added first
// runs outermost.
type Handler struct {
	worker Worker
	obs    observability.Provider
	cfg    *config.HandlerConfig
	mws    []Middleware
	chain  HandlerFunc
}

// NewHandler wraps worker with no middleware. Factory adds the standard
// stack.
func NewHandler(worker Worker, provider observability.Provider, cfg *config.HandlerConfig) *Handler {
	if cfg == nil {
		defaults := config.DefaultHandlerConfig()
		cfg = &defaults
	}
	return &Handler{
		worker: worker,
		obs:    provider,
		cfg:    cfg,
		chain:  worker.Process,
	}
}

// Use appends middleware. The chain is rebuilt from the worker outwards on
// every call, so later additions run inside earlier ones.
func (h *Handler) Use(mw ...Middleware) {
	h.mws = append(h.mws, mw...)
	next := HandlerFunc(h.worker.Process)
	for i := len(h.mws) - 1; i >= 0; i-- {
		next = h.mws[i](next)
	}
	h.chain = next
}

// Handle runs req with the handler deadline and the invocation context set.
func (h *Handler) Handle(ctx context.Context, req Request) (Response, error) {
	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	ctx = observability.WithRequestID(ctx, req.ID)
	ctx = context.WithValue(ctx, invocationKey{}, invocation{worker: h.worker.Name(), platform: h.cfg.Platform})
	return h.chain(ctx, req)
}

// Health asks the worker.
func (h *Handler) Health(ctx context.Context) error { return h.worker.Health(ctx) }

// Config returns the handler configuration.
func (h *Handler) Config() *config.HandlerConfig { return h.cfg }

// Worker returns the wrapped worker.
func (h *Handler) Worker() Worker { return h.worker }

// LogShutdown records process shutdown. The caller owns the exit.
func LogShutdown(logger observability.Logger, metrics observability.Metrics, startTime time.Time) {
	uptime := time.Since(startTime).Seconds()
	metrics.RecordDuration("service_uptime", uptime)
	metrics.RecordSuccess("shutdown_complete")
	logger.Info(context.Background(), "Shutdown complete", observability.Fields{"uptime_seconds": uptime})
}
