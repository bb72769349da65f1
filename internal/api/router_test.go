package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/timmy/galleria/internal/api/middleware"
	"github.com/timmy/galleria/internal/domain"
	"github.com/timmy/galleria/internal/logger"
	"github.com/timmy/galleria/internal/repository"
	"github.com/timmy/galleria/internal/service"
	"github.com/timmy/galleria/internal/storage"
)

type stubAllocator struct{ next uint64 }

func (a *stubAllocator) Next(ctx context.Context) (uint64, error) {
	a.next++
	return a.next, nil
}

type stubPhotoStore struct{}

func (stubPhotoStore) Save(ctx context.Context, photo *domain.Photo) error { return nil }
func (stubPhotoStore) FindByFilename(ctx context.Context, filename string) (*domain.Photo, error) {
	return nil, nil
}

type stubBatchStore struct{}

func (stubBatchStore) Create(ctx context.Context, batch *domain.IngestBatch) error { return nil }
func (stubBatchStore) Update(ctx context.Context, batch *domain.IngestBatch) error { return nil }

type stubCaptioner struct{}

func (stubCaptioner) Caption(ctx context.Context, imageData []byte, format string) (string, error) {
	return "a test image", nil
}
func (stubCaptioner) Model() string { return "stub-vision" }

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}
func (stubEmbedder) Model() string   { return "stub-embedder" }
func (stubEmbedder) Dimensions() int { return 4 }

type stubIndex struct {
	hits []repository.QueryHit
}

func (x *stubIndex) Upsert(ctx context.Context, id uint64, vector []float32, payload *repository.PhotoPayload) error {
	return nil
}

func (x *stubIndex) Query(ctx context.Context, vector []float32, topK int) ([]repository.QueryHit, error) {
	if len(x.hits) > topK {
		return x.hits[:topK], nil
	}
	return x.hits, nil
}

func testRouter(t *testing.T, index *stubIndex) (*gin.Engine, string) {
	t.Helper()

	galleryDir := filepath.Join(t.TempDir(), "gallery")
	stagingDir := filepath.Join(t.TempDir(), "staging")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		t.Fatalf("failed to create staging dir: %v", err)
	}
	gallery, err := storage.NewLocalStorage(galleryDir, "http://localhost:8080")
	if err != nil {
		t.Fatalf("failed to create gallery storage: %v", err)
	}

	lg := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	searchService := service.NewSearchService(stubEmbedder{}, index, gallery, lg, nil)
	ingestService := service.NewIngestService(
		&stubAllocator{}, stubPhotoStore{}, stubBatchStore{}, index,
		stubCaptioner{}, stubEmbedder{}, gallery,
		service.NewStatusManager(), lg,
	)

	router := SetupRouter(searchService, ingestService, gallery, lg, &RouterConfig{
		Mode:        "test",
		CORS:        middleware.CORSConfig{AllowAllOrigins: true},
		StagingPath: stagingDir,
		DefaultTopK: 3,
	})
	return router, galleryDir
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := testRouter(t, &stubIndex{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Service != "galleria" {
		t.Errorf("unexpected health payload: %+v", resp)
	}
}

func TestSimilarEndpoint(t *testing.T) {
	index := &stubIndex{hits: []repository.QueryHit{
		{ID: 1, Score: 0.9, Payload: &repository.PhotoPayload{Caption: "a test image", ImagePath: "gallery/a.jpg"}},
		{ID: 2, Score: 0.5, Payload: &repository.PhotoPayload{Caption: "another image", ImagePath: "gallery/b.jpg"}},
	}}
	router, _ := testRouter(t, index)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/similar?caption=test&top_k=2", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Caption string                 `json:"caption"`
		TopK    int                    `json:"top_k"`
		Results []service.SimilarImage `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Caption != "test" || resp.TopK != 2 {
		t.Errorf("unexpected echo fields: %+v", resp)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].ImagePath != "http://localhost:8080/gallery/a.jpg" {
		t.Errorf("unexpected image url: %q", resp.Results[0].ImagePath)
	}
}

func TestSimilarEndpointRequiresCaption(t *testing.T) {
	router, _ := testRouter(t, &stubIndex{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/similar", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListImagesEndpoint(t *testing.T) {
	router, galleryDir := testRouter(t, &stubIndex{})

	if err := os.WriteFile(filepath.Join(galleryDir, "a.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write gallery file: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/images", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Total  int                 `json:"total"`
		Images []service.ImageItem `json:"images"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 1 || len(resp.Images) != 1 {
		t.Fatalf("unexpected listing: %+v", resp)
	}
}

func TestStaticGalleryServing(t *testing.T) {
	router, galleryDir := testRouter(t, &stubIndex{})

	if err := os.WriteFile(filepath.Join(galleryDir, "a.jpg"), []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("failed to write gallery file: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/gallery/a.jpg", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "jpeg-bytes" {
		t.Errorf("unexpected body: %q", w.Body.String())
	}
}

func TestIngestStatusEndpoint(t *testing.T) {
	router, _ := testRouter(t, &stubIndex{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ingest/status", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var status domain.BatchStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.State != domain.BatchStateIdle {
		t.Errorf("expected idle state, got %s", status.State)
	}
}

func TestIngestEndpointAcceptsBatch(t *testing.T) {
	router, _ := testRouter(t, &stubIndex{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		BatchID string `json:"batch_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.BatchID == "" {
		t.Error("expected a batch id")
	}
}
