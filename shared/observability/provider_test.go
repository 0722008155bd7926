package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balu-bunny/lambdaTest/shared/observability/types"
)

func newTestProvider(buf *bytes.Buffer) Provider {
	return NewProvider(&Config{
		ServiceName: "sfbackup",
		Environment: "test",
		LogLevel:    "info",
		LogOutput:   buf,
		Registerer:  prometheus.NewRegistry(),
		AdditionalFields: types.Fields{
			"version": "1.0.0",
		},
	})
}

func TestDefaultProvider_LoggerIsCachedPerComponent(t *testing.T) {
	var buf bytes.Buffer
	provider := newTestProvider(&buf)
	defer provider.Close()

	first := provider.Logger("stage")
	assert.Same(t, first, provider.Logger("stage"))
	assert.NotSame(t, first, provider.Logger("ledger"))
}

func TestDefaultProvider_LoggerFields(t *testing.T) {
	var buf bytes.Buffer
	provider := newTestProvider(&buf)

	ctx := WithJob(WithRequestID(context.Background(), "req-9"), "Contact", "750A")
	provider.Logger("stage").Info(ctx, "checked", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "sfbackup.stage", entry["service"])
	assert.Equal(t, "stage", entry["component"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Equal(t, "req-9", entry["request_id"])
	assert.Equal(t, "Contact", entry["object_name"])
	assert.Equal(t, "750A", entry["job_id"])
}

func TestDefaultProvider_MetricsIsCachedPerComponent(t *testing.T) {
	var buf bytes.Buffer
	provider := newTestProvider(&buf)

	first := provider.Metrics("stage")
	assert.Same(t, first, provider.Metrics("stage"))

	// a second component registers distinct collectors without panicking
	assert.NotPanics(t, func() { provider.Metrics("handler") })
}

func TestDefaultProvider_Close(t *testing.T) {
	t.Run("stdout is left open", func(t *testing.T) {
		provider := NewProvider(&Config{ServiceName: "test", Registerer: prometheus.NewRegistry()})
		assert.NoError(t, provider.Close())
	})

	t.Run("buffer is not a closer", func(t *testing.T) {
		var buf bytes.Buffer
		assert.NoError(t, newTestProvider(&buf).Close())
	})
}

func TestContextHelpers(t *testing.T) {
	ctx := WithJob(context.Background(), "", "")
	assert.Nil(t, ctx.Value(types.ObjectNameKey))
	assert.Nil(t, ctx.Value(types.JobIDKey))

	assert.Equal(t, "", RequestID(ctx))
	assert.Equal(t, "abc", RequestID(WithRequestID(ctx, "abc")))
	assert.Equal(t, "t-1", WithTraceID(ctx, "t-1").Value(types.TraceIDKey))
}
