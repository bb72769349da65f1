package source

import "context"

// StagedImage is one image awaiting ingestion.
type StagedImage struct {
	Filename  string // base name, becomes the gallery filename
	LocalPath string // absolute or working-dir-relative path in staging
	Format    string // normalized extension without dot (jpg)
	FileSize  int64
}

// Source enumerates images staged for ingestion.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// List returns all staged images in a fixed, reproducible order
	// (lexical by filename) so identity allocation is deterministic
	// within a batch.
	List(ctx context.Context) ([]StagedImage, error)
}
