// Package types holds the object store port shared by every adapter.
package types

import (
	"context"
	"io"
)

// ObjectStorage writes backup artifacts under caller-chosen keys. Put
// overwrites, so repeating a write with the same key is idempotent.
type ObjectStorage interface {
	Put(ctx context.Context, key string, reader io.Reader, metadata ObjectMetadata) (*PutResult, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// ObjectMetadata is attached to a stored object.
type ObjectMetadata struct {
	ContentType  string
	UserMetadata map[string]string
}

// PutResult describes a stored object.
type PutResult struct {
	Key      string
	Location string
	Bytes    int64
}
