// Package mocks provides a testify mock of the object store.
package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/balu-bunny/lambdaTest/shared/storage/types"
)

// MockStorage is a mock implementation of types.ObjectStorage. Put drains
// the reader so callers that stream from HTTP bodies behave as in production;
// the drained bytes are kept in Bodies.
type MockStorage struct {
	mock.Mock
	mu     sync.Mutex
	Bodies map[string]string
}

func (m *MockStorage) Put(ctx context.Context, key string, reader io.Reader, metadata types.ObjectMetadata) (*types.PutResult, error) {
	data, readErr := io.ReadAll(reader)
	args := m.Called(ctx, key, metadata)
	if readErr != nil {
		return nil, readErr
	}
	if args.Error(1) == nil {
		m.mu.Lock()
		if m.Bodies == nil {
			m.Bodies = map[string]string{}
		}
		m.Bodies[key] = string(data)
		m.mu.Unlock()
	}
	res, _ := args.Get(0).(*types.PutResult)
	return res, args.Error(1)
}

func (m *MockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// Body returns what was stored under key.
func (m *MockStorage) Body(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Bodies[key]
}
