package service

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"github.com/timmy/galleria/internal/apperr"
	"github.com/timmy/galleria/internal/domain"
	"github.com/timmy/galleria/internal/repository"
)

// fakeAllocator hands out sequential ids and can be told to fail.
type fakeAllocator struct {
	mu   sync.Mutex
	next uint64
	fail bool
}

func (a *fakeAllocator) Next(ctx context.Context) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return 0, apperr.Errorf(apperr.KindAllocation, "allocator.Next", "counter unreadable")
	}
	a.next++
	return a.next, nil
}

// fakePhotoStore records saved photos keyed by filename.
type fakePhotoStore struct {
	mu     sync.Mutex
	photos map[string]*domain.Photo
}

func newFakePhotoStore() *fakePhotoStore {
	return &fakePhotoStore{photos: make(map[string]*domain.Photo)}
}

func (s *fakePhotoStore) Save(ctx context.Context, photo *domain.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *photo
	s.photos[photo.Filename] = &copied
	return nil
}

func (s *fakePhotoStore) FindByFilename(ctx context.Context, filename string) (*domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[filename]
	if !ok {
		return nil, nil
	}
	copied := *photo
	return &copied, nil
}

func (s *fakePhotoStore) get(filename string) *domain.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photos[filename]
}

// fakeBatchStore records batch audit rows.
type fakeBatchStore struct {
	mu      sync.Mutex
	batches map[string]*domain.IngestBatch
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{batches: make(map[string]*domain.IngestBatch)}
}

func (s *fakeBatchStore) Create(ctx context.Context, batch *domain.IngestBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *batch
	s.batches[batch.ID] = &copied
	return nil
}

func (s *fakeBatchStore) Update(ctx context.Context, batch *domain.IngestBatch) error {
	return s.Create(ctx, batch)
}

func (s *fakeBatchStore) get(id string) *domain.IngestBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches[id]
}

// fakeCaptioner returns a canned caption per image content, or an error for
// contents listed in failFor.
type fakeCaptioner struct {
	captions map[string]string // image content -> caption
	failFor  map[string]bool
}

func (c *fakeCaptioner) Caption(ctx context.Context, imageData []byte, format string) (string, error) {
	key := string(imageData)
	if c.failFor[key] {
		return "", apperr.Errorf(apperr.KindCaption, "caption.Caption", "model unavailable")
	}
	if caption, ok := c.captions[key]; ok {
		return caption, nil
	}
	return "an unremarkable picture", nil
}

func (c *fakeCaptioner) Model() string { return "fake-vision" }

// fakeEmbedder maps text deterministically into a small unit vector, so
// identical texts always land on the same point and score highest against
// themselves under dot product.
type fakeEmbedder struct {
	fail bool
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, apperr.Errorf(apperr.KindEmbedding, "embedding.Embed", "model unavailable")
	}
	h := fnv.New64a()
	h.Write([]byte(text))
	sum := h.Sum64()

	vector := make([]float32, 4)
	var norm float64
	for i := range vector {
		v := float64(int64((sum>>(i*16))&0xffff) - 0x8000)
		vector[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector, nil
}

func (e *fakeEmbedder) Model() string   { return "fake-embedder" }
func (e *fakeEmbedder) Dimensions() int { return 4 }

// fakeIndex is an in-memory vector index scored by dot product.
type fakeIndex struct {
	mu      sync.Mutex
	entries map[uint64]fakeEntry
	fail    bool
	upserts int
}

type fakeEntry struct {
	vector  []float32
	payload repository.PhotoPayload
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: make(map[uint64]fakeEntry)}
}

func (x *fakeIndex) Upsert(ctx context.Context, id uint64, vector []float32, payload *repository.PhotoPayload) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.fail {
		return apperr.Errorf(apperr.KindIndex, "qdrant.Upsert", "index unavailable")
	}
	x.upserts++
	x.entries[id] = fakeEntry{vector: append([]float32(nil), vector...), payload: *payload}
	return nil
}

func (x *fakeIndex) Query(ctx context.Context, vector []float32, topK int) ([]repository.QueryHit, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.fail {
		return nil, apperr.Errorf(apperr.KindIndex, "qdrant.Query", "index unavailable")
	}

	hits := make([]repository.QueryHit, 0, len(x.entries))
	for id, entry := range x.entries {
		var score float32
		for i := range vector {
			if i < len(entry.vector) {
				score += vector[i] * entry.vector[i]
			}
		}
		payload := entry.payload
		hits = append(hits, repository.QueryHit{ID: id, Score: score, Payload: &payload})
	}

	// Ties break by id so repeated queries see one fixed order.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (x *fakeIndex) entry(id uint64) (fakeEntry, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	e, ok := x.entries[id]
	return e, ok
}

func (x *fakeIndex) size() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}
