// Package mocks provides testify mocks for the observability ports. The
// constructors accept every call so tests only assert what they care about.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/balu-bunny/lambdaTest/shared/observability/types"
)

var (
	_ types.Logger   = (*MockLogger)(nil)
	_ types.Metrics  = (*MockMetrics)(nil)
	_ types.Provider = (*MockProvider)(nil)
)

// accept registers an optional expectation with arity wildcard arguments.
func accept(m *mock.Mock, method string, arity int) *mock.Call {
	args := make([]interface{}, arity)
	for i := range args {
		args[i] = mock.Anything
	}
	return m.On(method, args...).Maybe()
}

type MockLogger struct{ mock.Mock }

func NewMockLogger() *MockLogger {
	m := &MockLogger{}
	for _, method := range []string{"Debug", "Info", "Warn"} {
		accept(&m.Mock, method, 3)
	}
	accept(&m.Mock, "Error", 4)
	accept(&m.Mock, "WithFields", 1).Return(m)
	return m
}

func (m *MockLogger) Debug(ctx context.Context, msg string, f types.Fields) { m.Called(ctx, msg, f) }
func (m *MockLogger) Info(ctx context.Context, msg string, f types.Fields)  { m.Called(ctx, msg, f) }
func (m *MockLogger) Warn(ctx context.Context, msg string, f types.Fields)  { m.Called(ctx, msg, f) }

func (m *MockLogger) Error(ctx context.Context, msg string, err error, f types.Fields) {
	m.Called(ctx, msg, err, f)
}

// WithFields returns the configured logger, or the mock itself so child
// loggers stay assertable.
func (m *MockLogger) WithFields(f types.Fields) types.Logger {
	if l, ok := m.Called(f).Get(0).(types.Logger); ok {
		return l
	}
	return m
}

type MockMetrics struct{ mock.Mock }

func NewMockMetrics() *MockMetrics {
	m := &MockMetrics{}
	for _, method := range []string{"RecordSuccess", "StartOperation", "EndOperation"} {
		accept(&m.Mock, method, 1)
	}
	for _, method := range []string{"RecordError", "RecordDuration", "RecordFileSize"} {
		accept(&m.Mock, method, 2)
	}
	return m
}

func (m *MockMetrics) RecordSuccess(op string)                { m.Called(op) }
func (m *MockMetrics) RecordError(op, errorType string)       { m.Called(op, errorType) }
func (m *MockMetrics) RecordDuration(op string, secs float64) { m.Called(op, secs) }
func (m *MockMetrics) RecordFileSize(op string, bytes int64)  { m.Called(op, bytes) }
func (m *MockMetrics) StartOperation(op string)               { m.Called(op) }
func (m *MockMetrics) EndOperation(op string)                 { m.Called(op) }

type MockProvider struct{ mock.Mock }

// NewMockProvider hands out logger and metrics for any component.
func NewMockProvider(logger *MockLogger, metrics *MockMetrics) *MockProvider {
	p := &MockProvider{}
	accept(&p.Mock, "Logger", 1).Return(logger)
	accept(&p.Mock, "Metrics", 1).Return(metrics)
	accept(&p.Mock, "Close", 0).Return(nil)
	return p
}

func (m *MockProvider) Logger(component string) types.Logger {
	l, _ := m.Called(component).Get(0).(types.Logger)
	return l
}

func (m *MockProvider) Metrics(component string) types.Metrics {
	mt, _ := m.Called(component).Get(0).(types.Metrics)
	return mt
}

func (m *MockProvider) Close() error { return m.Called().Error(0) }
