package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/galleria/internal/apperr"
)

// EmbeddingService generates text embeddings through an OpenAI-compatible
// embeddings endpoint. Both the ingestion path (captions) and the query path
// (free text) go through the same instance, so vectors always come from the
// same model version.
type EmbeddingService struct {
	client     *resty.Client
	model      string
	dimensions int
	endpoint   string
}

// EmbeddingServiceConfig holds configuration for the embedding service.
type EmbeddingServiceConfig struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(cfg *EmbeddingServiceConfig) *EmbeddingService {
	client := resty.New()
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8081/v1"
	}

	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = 384
	}

	return &EmbeddingService{
		client:     client,
		model:      cfg.Model,
		dimensions: dimensions,
		endpoint:   strings.TrimSuffix(baseURL, "/") + "/embeddings",
	}
}

// Model returns the embedding model name being used.
func (s *EmbeddingService) Model() string {
	return s.model
}

// Dimensions returns the fixed output dimension of the model.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// OpenAI-compatible embeddings API request/response structures
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding for a single text. Empty input is rejected:
// no caller has a legitimate empty-text embedding (empty captions are
// skipped upstream, empty queries are rejected at the API boundary).
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Errorf(apperr.KindEmbedding, "embedding.Embed", "empty input text")
	}

	var resp embeddingResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(embeddingRequest{Model: s.model, Input: []string{text}}).
		SetResult(&resp).
		Post(s.endpoint)

	if err != nil {
		return nil, apperr.E(apperr.KindEmbedding, "embedding.Embed", err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != nil {
			return nil, apperr.Errorf(apperr.KindEmbedding, "embedding.Embed", "HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return nil, apperr.Errorf(apperr.KindEmbedding, "embedding.Embed", "HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}

	if len(resp.Data) == 0 {
		return nil, apperr.Errorf(apperr.KindEmbedding, "embedding.Embed", "no embedding returned")
	}

	vector := resp.Data[0].Embedding
	if len(vector) != s.dimensions {
		// A partial or mismatched vector must never reach the index.
		return nil, apperr.Errorf(apperr.KindEmbedding, "embedding.Embed", "unexpected dimension: got %d, want %d", len(vector), s.dimensions)
	}

	return vector, nil
}
