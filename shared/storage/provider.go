// Package storage selects and owns the object store used by the backup
// stages.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/observability"
	"github.com/balu-bunny/lambdaTest/shared/storage/adapters/fs"
	"github.com/balu-bunny/lambdaTest/shared/storage/adapters/s3"
	"github.com/balu-bunny/lambdaTest/shared/storage/types"
)

// ObjectStorage is re-exported so callers only import this package.
type ObjectStorage = types.ObjectStorage

// Provider keeps one store per process so a warm Lambda reuses its S3
// client across invocations.
type Provider struct {
	mu     sync.Mutex
	store  types.ObjectStorage
	opened config.StorageConfig
}

var shared = &Provider{}

// GetProvider returns the process-wide provider.
func GetProvider() *Provider { return shared }

// Open returns the store for cfg. The store is built on the first call and
// rebuilt only when cfg differs from the one it was built with.
func (p *Provider) Open(ctx context.Context, cfg *config.StorageConfig, logger observability.Logger, metrics observability.Metrics) (types.ObjectStorage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil && p.opened == *cfg {
		return p.store, nil
	}

	store, err := New(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Provider, err)
	}
	p.store, p.opened = store, *cfg
	return store, nil
}

// Current returns the last opened store, or nil.
func (p *Provider) Current() types.ObjectStorage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store
}

// Reset forgets the open store.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store, p.opened = nil, config.StorageConfig{}
}

// New builds a store for cfg.Provider, "s3" or "fs".
func New(ctx context.Context, cfg *config.StorageConfig, logger observability.Logger, metrics observability.Metrics) (types.ObjectStorage, error) {
	switch cfg.Provider {
	case "s3":
		return s3.NewClient(ctx, cfg, logger, metrics)
	case "fs":
		return fs.NewStorage(cfg.BasePath, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}
