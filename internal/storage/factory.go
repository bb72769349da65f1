package storage

import (
	"fmt"

	"github.com/timmy/galleria/internal/config"
)

// NewGalleryStorage creates a GalleryStorage instance for the configured
// backend.
// Parameters:
//   - cfg: gallery configuration including backend selection.
//   - baseURL: base URL used to build absolute image URLs.
// Returns:
//   - GalleryStorage: initialized storage backend.
//   - error: non-nil if the backend cannot be created.
func NewGalleryStorage(cfg *config.GalleryConfig, baseURL string) (GalleryStorage, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStorage(cfg.Path, baseURL)
	case "s3":
		return NewS3Storage(&S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			PublicURL: cfg.S3.PublicURL,
		})
	default:
		return nil, fmt.Errorf("unknown gallery backend: %q", cfg.Backend)
	}
}
