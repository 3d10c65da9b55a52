// Package storage stores uploaded files until the extractor pulls them
// back out. Backends: local disk for dev, MinIO or S3 for deployments.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/feichai0017/docflow/config"
	"github.com/feichai0017/docflow/pkg/logger"
	"github.com/feichai0017/docflow/pkg/storage/local"
	"github.com/feichai0017/docflow/pkg/storage/minio"
	"github.com/feichai0017/docflow/pkg/storage/s3"
)

// Storage holds uploaded files keyed by name.
type Storage interface {
	Put(ctx context.Context, reader io.Reader, key string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// PurgeOlderThan removes files last modified before threshold; the
	// retention task drives it.
	PurgeOlderThan(ctx context.Context, threshold time.Time) error
}

// New selects a backend from configuration.
func New(cfg config.StorageConfig, log logger.Logger) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return local.New(cfg.UploadDir, log)
	case "minio":
		return minio.New(minio.Config{
			Endpoint:   cfg.Minio.Endpoint,
			AccessKey:  cfg.Minio.AccessKey,
			SecretKey:  cfg.Minio.SecretKey,
			BucketName: cfg.Minio.BucketName,
			Region:     cfg.Minio.Region,
			UseSSL:     cfg.Minio.UseSSL,
		}, log)
	case "s3":
		return s3.New(s3.Config{
			BucketName: cfg.S3.BucketName,
			Region:     cfg.S3.Region,
			AccessKey:  cfg.S3.AccessKey,
			SecretKey:  cfg.S3.SecretKey,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
