// Package observability provides the logging and metrics provider shared by
// every backup stage.
package observability

import (
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/balu-bunny/lambdaTest/shared/observability/logger"
	"github.com/balu-bunny/lambdaTest/shared/observability/metrics"
	"github.com/balu-bunny/lambdaTest/shared/observability/types"
)

type (
	Logger   = types.Logger
	Metrics  = types.Metrics
	Fields   = types.Fields
	Config   = types.Config
	Provider = types.Provider
)

// components builds one value per component name on first use.
type components[T any] struct {
	mu    sync.Mutex
	items map[string]T
	build func(component string) T
}

func (c *components[T]) get(component string) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.items[component]; ok {
		return v
	}
	if c.items == nil {
		c.items = make(map[string]T)
	}
	v := c.build(component)
	c.items[component] = v
	return v
}

// DefaultProvider writes JSON logs and registers Prometheus collectors.
type DefaultProvider struct {
	config  Config
	loggers components[Logger]
	metrics components[Metrics]
}

// NewProvider returns a provider for cfg. Logs go to stdout and metrics to
// prometheus.DefaultRegisterer unless cfg says otherwise.
//
//	provider := NewProvider(&Config{ServiceName: "sfbackup", LogLevel: "info"})
//	log := provider.Logger("stage")
func NewProvider(cfg *Config) Provider {
	p := &DefaultProvider{config: *cfg}
	if p.config.LogOutput == nil {
		p.config.LogOutput = os.Stdout
	}
	if p.config.Registerer == nil {
		p.config.Registerer = prometheus.DefaultRegisterer
	}
	p.loggers.build = p.newLogger
	p.metrics.build = p.newMetrics
	return p
}

// Logger returns the logger of component, named "{service}.{component}" and
// carrying AdditionalFields plus "component".
func (p *DefaultProvider) Logger(component string) Logger {
	return p.loggers.get(component)
}

// Metrics returns the collectors of component, prefixed "{service}_{component}".
func (p *DefaultProvider) Metrics(component string) Metrics {
	return p.metrics.get(component)
}

func (p *DefaultProvider) newLogger(component string) Logger {
	fields := Fields{"component": component}
	for k, v := range p.config.AdditionalFields {
		fields[k] = v
	}
	return logger.New(p.config.ServiceName+"."+component, p.config.Environment,
		p.config.LogLevel, p.config.LogOutput, fields)
}

func (p *DefaultProvider) newMetrics(component string) Metrics {
	return metrics.New(metrics.MetricName(p.config.ServiceName, component), p.config.Registerer)
}

// Close closes a LogOutput that is an io.Closer, except stdout and stderr.
func (p *DefaultProvider) Close() error {
	out := p.config.LogOutput
	if out == os.Stdout || out == os.Stderr {
		return nil
	}
	if closer, ok := out.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
