package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/filefolio/docfolio/internal/common"
)

// minioStore keeps blobs in an S3-compatible bucket. Safe for concurrent use.
type minioStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewMinIO connects to the configured endpoint and ensures the bucket exists.
func NewMinIO(cfg common.StorageConfig, logger *slog.Logger) (BlobStore, error) {
	if cfg.MinIOEndpoint == "" {
		return nil, fmt.Errorf("%w: minio endpoint is required", common.ErrInvalidInput)
	}
	if cfg.MinIOAccessKey == "" || cfg.MinIOSecretKey == "" {
		return nil, fmt.Errorf("%w: minio credentials are required", common.ErrInvalidInput)
	}
	if cfg.MinIOBucket == "" {
		return nil, fmt.Errorf("%w: minio bucket is required", common.ErrInvalidInput)
	}

	cli, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create minio client: %v", common.ErrStorage, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return nil, fmt.Errorf("%w: check bucket: %v", common.ErrStorage, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("%w: create bucket: %v", common.ErrStorage, err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &minioStore{client: cli, bucket: cfg.MinIOBucket, logger: logger}, nil
}

func (s *minioStore) Save(ctx context.Context, key string, content []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content),
		int64(len(content)), minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return fmt.Errorf("%w: put object: %v", common.ErrStorage, err)
	}
	s.logger.Debug("storage.minio.save", "key", key, "bytes", len(content))
	return nil
}

func (s *minioStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get object: %v", common.ErrStorage, err)
	}
	// GetObject is lazy; Stat forces the first round trip so missing keys
	// surface here instead of on the first Read
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: stat object: %v", common.ErrStorage, err)
	}
	return obj, nil
}

func (s *minioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: remove object: %v", common.ErrStorage, err)
	}
	return nil
}
