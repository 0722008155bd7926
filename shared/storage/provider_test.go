package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balu-bunny/lambdaTest/shared/config"
	obsmocks "github.com/balu-bunny/lambdaTest/shared/observability/mocks"
	"github.com/balu-bunny/lambdaTest/shared/storage/adapters/fs"
)

func TestGetProvider_Shared(t *testing.T) {
	assert.Same(t, GetProvider(), GetProvider())
}

func TestProvider_OpenReusesStore(t *testing.T) {
	ctx := context.Background()
	logger, metrics := obsmocks.NewMockLogger(), obsmocks.NewMockMetrics()
	cfg := config.StorageConfig{Provider: "fs", BasePath: t.TempDir()}

	p := &Provider{}
	assert.Nil(t, p.Current())

	first, err := p.Open(ctx, &cfg, logger, metrics)
	require.NoError(t, err)
	assert.IsType(t, &fs.Storage{}, first)

	again, err := p.Open(ctx, &cfg, logger, metrics)
	require.NoError(t, err)
	assert.Same(t, first, again)

	moved := cfg
	moved.BasePath = t.TempDir()
	other, err := p.Open(ctx, &moved, logger, metrics)
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Same(t, other, p.Current())

	p.Reset()
	assert.Nil(t, p.Current())
}

func TestProvider_OpenFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	logger, metrics := obsmocks.NewMockLogger(), obsmocks.NewMockMetrics()

	p := &Provider{}
	good, err := p.Open(ctx, &config.StorageConfig{Provider: "fs", BasePath: t.TempDir()}, logger, metrics)
	require.NoError(t, err)

	_, err = p.Open(ctx, &config.StorageConfig{Provider: "gcs"}, logger, metrics)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open gcs storage")
	assert.Same(t, good, p.Current())
}

func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New(context.Background(), &config.StorageConfig{Provider: "gcs"}, obsmocks.NewMockLogger(), obsmocks.NewMockMetrics())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage provider: gcs")
}

func TestNew_S3RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), &config.StorageConfig{Provider: "s3"}, obsmocks.NewMockLogger(), obsmocks.NewMockMetrics())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")
}
