package storage

import (
	"context"
	"fmt"

	"product-catalog/internal/config"
	"product-catalog/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// Object is an image ready to be stored. ContentType is the detected type of Data.
type Object struct {
	Data        []byte
	ContentType string
}

// Store persists product images and hands back a reference that can later
// be used to remove them.
type Store interface {
	Put(ctx context.Context, obj Object) (domain.ImageRef, error)
	Delete(ctx context.Context, ref domain.ImageRef) error
}

// New builds the store selected by ASSET_STORE.
func New(ctx context.Context, cfg config.AssetConfig, baseURL string) (Store, error) {
	switch cfg.Store {
	case config.AssetStoreLocal:
		return NewLocalStore(afero.NewOsFs(), cfg.UploadsDir, baseURL)
	case config.AssetStoreS3:
		client, err := NewS3Client(ctx, cfg.S3.Region, cfg.S3.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
		return NewS3Store(client, cfg.S3), nil
	default:
		return nil, fmt.Errorf("unknown asset store %q", cfg.Store)
	}
}

func extensionFor(contentType string) string {
	if m := mimetype.Lookup(contentType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".bin"
}
