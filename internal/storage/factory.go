package storage

import (
	"context"
	"fmt"

	"mediagen/internal/infra"
)

// NewFromConfig selects the blob store backend from service configuration:
// "s3" for object storage, "file" for the local development store.
func NewFromConfig(ctx context.Context, cfg *infra.Config) (BlobStore, error) {
	switch cfg.StorageBackend {
	case "s3":
		return NewS3Store(ctx, S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
			PublicURL: cfg.S3PublicURL,
		})
	case "file", "":
		return NewFileStore(cfg.StoragePath, "")
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
}
