// Package fs stores backup artifacts on the local filesystem. It backs the
// `serve` and `invoke` commands when no bucket is available.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/balu-bunny/lambdaTest/shared/observability"
	"github.com/balu-bunny/lambdaTest/shared/storage/types"
)

const metadataSuffix = ".meta.json"

// Storage implements types.ObjectStorage using the local filesystem
type Storage struct {
	basePath string
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewStorage creates the base directory if needed.
func NewStorage(basePath string, logger observability.Logger, metrics observability.Metrics) (*Storage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	return &Storage{
		basePath: basePath,
		logger:   logger.WithFields(observability.Fields{"storage": "filesystem"}),
		metrics:  metrics,
	}, nil
}

// Put writes to a temporary file and renames it into place so readers never
// observe a partial object.
func (s *Storage) Put(ctx context.Context, key string, reader io.Reader, metadata types.ObjectMetadata) (*types.PutResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordDuration("fs_put", time.Since(start).Seconds())
	}()

	objectPath, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(objectPath), 0o755); err != nil {
		s.metrics.RecordError("fs_put", "mkdir")
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(objectPath), ".upload-*")
	if err != nil {
		s.metrics.RecordError("fs_put", "create")
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.metrics.RecordError("fs_put", "write")
		return nil, fmt.Errorf("failed to write data: %w", err)
	}

	if err := os.Rename(tmp.Name(), objectPath); err != nil {
		s.metrics.RecordError("fs_put", "rename")
		return nil, fmt.Errorf("failed to move object into place: %w", err)
	}

	if err := s.saveMetadata(objectPath, metadata); err != nil {
		s.metrics.RecordError("fs_put", "metadata")
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}

	s.metrics.RecordSuccess("fs_put")
	s.metrics.RecordFileSize("csv", written)
	s.logger.Debug(ctx, "object stored successfully", observability.Fields{
		"key":   key,
		"bytes": written,
	})

	return &types.PutResult{Key: key, Location: "file://" + objectPath, Bytes: written}, nil
}

// Get opens a stored object
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objectPath, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(objectPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Exists reports whether key has been stored
func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	objectPath, err := s.objectPath(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(objectPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// objectPath maps a key below basePath and rejects keys that would escape it.
func (s *Storage) objectPath(key string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(key))
	if cleaned == string(filepath.Separator) || strings.HasSuffix(cleaned, metadataSuffix) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.basePath, cleaned), nil
}

func (s *Storage) saveMetadata(objectPath string, metadata types.ObjectMetadata) error {
	if metadata.ContentType == "" && len(metadata.UserMetadata) == 0 {
		return nil
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	return os.WriteFile(objectPath+metadataSuffix, data, 0o644)
}
