package storage

import "context"

// ImageInfo describes one committed gallery image.
type ImageInfo struct {
	Filename string `json:"filename"`
	Path     string `json:"path"` // gallery-relative, e.g. "gallery/a.jpg"
}

// GalleryStorage is where committed images live. Commit moves a staged file
// into the gallery; the staged copy is gone once Commit returns nil, so a
// later per-image failure leaves the image visible but unindexed rather than
// lost.
type GalleryStorage interface {
	// Commit moves the staged file into the gallery and returns its
	// gallery-relative path.
	Commit(ctx context.Context, stagingPath, filename string) (string, error)

	// List returns all committed JPEG images, sorted by filename.
	List(ctx context.Context) ([]ImageInfo, error)

	// URL returns the absolute URL for a gallery-relative path.
	URL(path string) string

	// ServeDir returns the local directory to mount for static serving,
	// or false when images are served from elsewhere (object storage).
	ServeDir() (string, bool)
}
