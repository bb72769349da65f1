package service

import (
	"context"

	"github.com/timmy/galleria/internal/domain"
	"github.com/timmy/galleria/internal/repository"
)

// CaptionProvider generates a natural-language caption for an image. It is
// an external capability: captions are not guaranteed deterministic across
// calls for the same image.
type CaptionProvider interface {
	Caption(ctx context.Context, imageData []byte, format string) (string, error)
	Model() string
}

// EmbeddingProvider turns text into a fixed-dimension vector. The same
// provider and model must serve both the ingestion and the query path, or
// similarity scores are meaningless.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimensions() int
}

// VectorIndex stores (id, vector, payload) triples and answers top-K
// similarity queries. Implemented by repository.QdrantRepository.
type VectorIndex interface {
	Upsert(ctx context.Context, id uint64, vector []float32, payload *repository.PhotoPayload) error
	Query(ctx context.Context, vector []float32, topK int) ([]repository.QueryHit, error)
}

// IdentityAllocator hands out unique integer ids for newly committed images.
// Implemented by repository.IDAllocator.
type IdentityAllocator interface {
	Next(ctx context.Context) (uint64, error)
}

// PhotoStore persists photo metadata. FindByFilename returns nil without
// error for a filename that was never committed. Implemented by
// repository.PhotoRepository.
type PhotoStore interface {
	Save(ctx context.Context, photo *domain.Photo) error
	FindByFilename(ctx context.Context, filename string) (*domain.Photo, error)
}

// BatchStore persists ingestion batch audit records. Implemented by
// repository.BatchRepository.
type BatchStore interface {
	Create(ctx context.Context, batch *domain.IngestBatch) error
	Update(ctx context.Context, batch *domain.IngestBatch) error
}
