package staging

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/timmy/galleria/internal/apperr"
	"github.com/timmy/galleria/internal/source"
)

// Adapter implements the Source interface over a staging directory. Only
// JPEG files are picked up (case-insensitive extension match); everything
// else in the directory is ignored.
type Adapter struct {
	basePath string
}

// NewAdapter creates a new staging adapter.
// Parameters:
//   - basePath: path to the staging directory.
// Returns:
//   - *Adapter: initialized staging adapter.
func NewAdapter(basePath string) *Adapter {
	return &Adapter{basePath: basePath}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return "staging:" + filepath.Base(a.basePath)
}

// List returns all staged JPEG files sorted lexically by filename. A missing
// staging directory is a not-found error: the batch cannot start.
func (a *Adapter) List(ctx context.Context) ([]source.StagedImage, error) {
	entries, err := os.ReadDir(a.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Errorf(apperr.KindNotFound, "staging.List", "staging directory not found: %s", a.basePath)
		}
		return nil, apperr.E(apperr.KindNotFound, "staging.List", err)
	}

	var images []source.StagedImage
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !isJPEG(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// File vanished between readdir and stat; skip it.
			continue
		}

		images = append(images, source.StagedImage{
			Filename:  entry.Name(),
			LocalPath: filepath.Join(a.basePath, entry.Name()),
			Format:    "jpg",
			FileSize:  info.Size(),
		})
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Filename < images[j].Filename
	})

	return images, nil
}

// isJPEG reports whether name has a .jpg or .jpeg extension, case-insensitive.
func isJPEG(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}
