package handler

import (
	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/observability"
)

// Platforms a handler can be created for.
const (
	PlatformLambda = "lambda"
	PlatformHTTP   = "http"
	PlatformCLI    = "cli"
)

// Factory builds handlers wrapped in the standard middleware stack.
type Factory struct {
	worker   Worker
	provider observability.Provider
	cfg      config.HandlerConfig
}

// NewFactory starts from the default handler configuration.
func NewFactory(worker Worker, provider observability.Provider) *Factory {
	return &Factory{worker: worker, provider: provider, cfg: config.DefaultHandlerConfig()}
}

// WithHandlerConfig replaces the handler configuration.
func (f *Factory) WithHandlerConfig(cfg config.HandlerConfig) *Factory {
	f.cfg = cfg
	return f
}

// Create builds a handler for the configured platform, detecting it when
// unset or "auto".
func (f *Factory) Create() *Handler {
	platform := f.cfg.Platform
	if platform == "" || platform == "auto" {
		platform = DetectPlatform()
	}
	return f.CreateFor(platform)
}

// CreateHTTP builds a handler for the HTTP server.
func (f *Factory) CreateHTTP() *Handler { return f.CreateFor(PlatformHTTP) }

// CreateLambda builds a handler for the Lambda runtime.
func (f *Factory) CreateLambda() *Handler { return f.CreateFor(PlatformLambda) }

// CreateFor builds a handler for platform. The stack, outermost first, is
// timeout, recovery, tracing, metrics, logging, validation. Recovery sits
// inside the timeout so it runs on the goroutine the timeout starts. There
// is no retry layer: the orchestrator replays a failed stage as a whole.
func (f *Factory) CreateFor(platform string) *Handler {
	cfg := f.cfg
	cfg.Platform = platform
	h := NewHandler(f.worker, f.provider, &cfg)

	var stack []Middleware
	if cfg.Timeout > 0 {
		stack = append(stack, TimeoutMiddleware(cfg.Timeout))
	}
	stack = append(stack, RecoveryMiddleware(f.provider))
	if cfg.EnableTracing {
		stack = append(stack, TracingMiddleware())
	}
	if cfg.EnableMetrics {
		stack = append(stack, MetricsMiddleware(f.provider))
	}
	stack = append(stack, LoggingMiddleware(f.provider), ValidationMiddleware(cfg.MaxRequestSize))

	h.Use(stack...)
	return h
}

// DetectPlatform picks lambda inside the Lambda runtime and http elsewhere.
func DetectPlatform() string {
	if config.IsLambda() {
		return PlatformLambda
	}
	return PlatformHTTP
}
