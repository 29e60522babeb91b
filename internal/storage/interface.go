package storage

import "context"

// BlobStore persists generated media blobs. Implementations exist for local
// disk (development) and S3-compatible object storage (production).
type BlobStore interface {
	// Write persists the blob at the given key and returns the
	// canonicalized storage key.
	Write(ctx context.Context, key, contentType string, data []byte) (string, error)

	// URL returns a stable URL for a stored key, for handing to the UI.
	URL(key string) string
}
