package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/filefolio/docfolio/internal/common"
)

// fsStore keeps blobs as flat files under a single directory.
type fsStore struct {
	dir    string
	logger *slog.Logger
}

func NewFS(dir string, logger *slog.Logger) (BlobStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: storage directory is required", common.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage dir: %v", common.ErrStorage, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &fsStore{dir: dir, logger: logger}, nil
}

func (s *fsStore) path(key string) (string, error) {
	// keys are generated uuids, but refuse anything path-like regardless
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: invalid storage key %q", common.ErrInvalidInput, key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *fsStore) Save(_ context.Context, key string, content []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("%w: write blob: %v", common.ErrStorage, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: finalize blob: %v", common.ErrStorage, err)
	}
	s.logger.Debug("storage.fs.save", "key", key, "bytes", len(content))
	return nil
}

func (s *fsStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open blob: %v", common.ErrStorage, err)
	}
	return f, nil
}

func (s *fsStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: delete blob: %v", common.ErrStorage, err)
	}
	return nil
}
