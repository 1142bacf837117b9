package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/filefolio/docfolio/internal/common"
)

// BlobStore holds the original uploaded files, keyed by the storage key
// recorded on the document. Keys are opaque to callers.
type BlobStore interface {
	Save(ctx context.Context, key string, content []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New selects a backend from configuration: local disk by default, an
// S3-compatible object store when STORAGE_BACKEND=minio.
func New(cfg common.StorageConfig, logger *slog.Logger) (BlobStore, error) {
	switch cfg.Backend {
	case "", "fs":
		return NewFS(cfg.Dir, logger)
	case "minio":
		return NewMinIO(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", common.ErrInvalidInput, cfg.Backend)
	}
}
