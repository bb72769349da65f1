package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStorage implements GalleryStorage for a served filesystem directory.
type LocalStorage struct {
	basePath string
	prefix   string // URL path segment, the base directory name
	baseURL  string
}

// NewLocalStorage creates a local gallery rooted at basePath. The directory
// is created if missing.
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create gallery directory: %w", err)
	}
	return &LocalStorage{
		basePath: basePath,
		prefix:   filepath.Base(basePath),
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Commit moves the staged file into the gallery. Rename first; if staging and
// gallery sit on different filesystems, fall back to copy-then-remove.
func (s *LocalStorage) Commit(ctx context.Context, stagingPath, filename string) (string, error) {
	dest := filepath.Join(s.basePath, filename)

	if err := os.Rename(stagingPath, dest); err != nil {
		if !isCrossDevice(err) {
			return "", fmt.Errorf("failed to move %s into gallery: %w", filename, err)
		}
		if err := copyFile(stagingPath, dest); err != nil {
			return "", fmt.Errorf("failed to copy %s into gallery: %w", filename, err)
		}
		if err := os.Remove(stagingPath); err != nil {
			return "", fmt.Errorf("failed to remove staged copy of %s: %w", filename, err)
		}
	}

	return path.Join(s.prefix, filename), nil
}

// List returns committed JPEG images sorted by filename.
func (s *LocalStorage) List(ctx context.Context) ([]ImageInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery directory: %w", err)
	}

	var images []ImageInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg":
		default:
			continue
		}
		images = append(images, ImageInfo{
			Filename: entry.Name(),
			Path:     path.Join(s.prefix, entry.Name()),
		})
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Filename < images[j].Filename
	})

	return images, nil
}

// URL returns the absolute URL for a gallery-relative path.
func (s *LocalStorage) URL(p string) string {
	return s.baseURL + "/" + strings.TrimPrefix(p, "/")
}

// ServeDir returns the directory to mount for static serving.
func (s *LocalStorage) ServeDir() (string, bool) {
	return s.basePath, true
}

func isCrossDevice(err error) bool {
	linkErr, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	return strings.Contains(linkErr.Err.Error(), "cross-device") ||
		strings.Contains(linkErr.Err.Error(), "invalid cross-device link")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
