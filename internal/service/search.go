package service

import (
	"context"

	"github.com/timmy/galleria/internal/apperr"
	"github.com/timmy/galleria/internal/logger"
	"github.com/timmy/galleria/internal/storage"
)

const defaultTopK = 3

// SearchService answers free-text similarity queries and lists the gallery.
type SearchService struct {
	embedder EmbeddingProvider
	index    VectorIndex
	gallery  storage.GalleryStorage
	logger   *logger.Logger
	topK     int
}

// SearchServiceConfig holds configuration for the search service.
type SearchServiceConfig struct {
	DefaultTopK int
}

// NewSearchService creates a new search service. The embedding provider must
// be the same instance the ingestion pipeline uses.
func NewSearchService(
	embedder EmbeddingProvider,
	index VectorIndex,
	gallery storage.GalleryStorage,
	log *logger.Logger,
	cfg *SearchServiceConfig,
) *SearchService {
	topK := defaultTopK
	if cfg != nil && cfg.DefaultTopK > 0 {
		topK = cfg.DefaultTopK
	}
	return &SearchService{
		embedder: embedder,
		index:    index,
		gallery:  gallery,
		logger:   log,
		topK:     topK,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *SearchService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// SimilarImage is one ranked query result.
type SimilarImage struct {
	ImagePath string  `json:"image_path"`
	Caption   string  `json:"caption"`
	Score     float32 `json:"score"`
}

// Similar embeds the query text and returns the top-K most similar images in
// index order. topK values below 1 fall back to the configured default. An
// empty result set is not an error; a provider or index failure is.
func (s *SearchService) Similar(ctx context.Context, text string, topK int) ([]SimilarImage, error) {
	if topK < 1 {
		topK = s.topK
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, apperr.E(apperr.KindQuery, "search.Similar", err)
	}

	hits, err := s.index.Query(ctx, vector, topK)
	if err != nil {
		return nil, apperr.E(apperr.KindQuery, "search.Similar", err)
	}

	results := make([]SimilarImage, 0, len(hits))
	for _, hit := range hits {
		if hit.Payload == nil {
			continue
		}
		results = append(results, SimilarImage{
			ImagePath: s.gallery.URL(hit.Payload.ImagePath),
			Caption:   hit.Payload.Caption,
			Score:     hit.Score,
		})
	}

	s.log(ctx).WithFields(logger.Fields{
		"top_k": topK,
		"hits":  len(results),
	}).Debug("Similarity query served")

	return results, nil
}

// ImageItem is one gallery listing entry.
type ImageItem struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// ListImages returns every committed gallery image with its absolute URL,
// sorted by filename. Images that failed processing still appear here; they
// are visible but not retrievable by search.
func (s *SearchService) ListImages(ctx context.Context) ([]ImageItem, error) {
	infos, err := s.gallery.List(ctx)
	if err != nil {
		return nil, apperr.E(apperr.KindNotFound, "search.ListImages", err)
	}

	items := make([]ImageItem, len(infos))
	for i, info := range infos {
		items[i] = ImageItem{
			Filename: info.Filename,
			Path:     s.gallery.URL(info.Path),
		}
	}
	return items, nil
}
