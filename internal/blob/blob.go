// Package blob stores the raw bytes of uploaded documents.
package blob

import (
	"context"
	"errors"
	"io"

	"github.com/petrorag/petrorag/internal/config"
)

var ErrObjectNotFound = errors.New("object not found")

// Store is the interface to the uploaded-file byte store.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string, dst io.Writer) error
	Delete(ctx context.Context, key string) error
}

// NewStore builds the configured blob store backend.
func NewStore(cfg *config.Config) (Store, error) {
	if cfg.Blob.Type == "minio" {
		return NewMinioStore(
			WithEndpoint(cfg.Blob.Endpoint),
			WithBucket(cfg.Blob.Bucket),
			WithCredentials(cfg.Blob.AccessKey, cfg.Blob.SecretKey),
			WithSSL(cfg.Blob.UseSSL),
		)
	}
	return NewFsStore(cfg.Blob.LocalDir)
}
