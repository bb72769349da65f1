package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/timmy/galleria/internal/apperr"
	"github.com/timmy/galleria/internal/domain"
	"github.com/timmy/galleria/internal/logger"
	"github.com/timmy/galleria/internal/source/staging"
	"github.com/timmy/galleria/internal/storage"
)

func TestMain(m *testing.M) {
	logger.SetDefaultLogger(logger.New(&logger.Config{Level: "error", Output: io.Discard}))
	os.Exit(m.Run())
}

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Output: io.Discard})
}

type ingestHarness struct {
	svc       *IngestService
	allocator *fakeAllocator
	photos    *fakePhotoStore
	batches   *fakeBatchStore
	index     *fakeIndex
	captioner *fakeCaptioner
	embedder  *fakeEmbedder
	gallery   storage.GalleryStorage
	staging   string
}

func newIngestHarness(t *testing.T) *ingestHarness {
	t.Helper()

	stagingDir := filepath.Join(t.TempDir(), "staging")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		t.Fatalf("failed to create staging dir: %v", err)
	}

	gallery, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "gallery"), "http://localhost:8080")
	if err != nil {
		t.Fatalf("failed to create gallery storage: %v", err)
	}

	h := &ingestHarness{
		allocator: &fakeAllocator{},
		photos:    newFakePhotoStore(),
		batches:   newFakeBatchStore(),
		index:     newFakeIndex(),
		captioner: &fakeCaptioner{captions: map[string]string{}, failFor: map[string]bool{}},
		embedder:  &fakeEmbedder{},
		gallery:   gallery,
		staging:   stagingDir,
	}
	h.svc = NewIngestService(
		h.allocator, h.photos, h.batches, h.index,
		h.captioner, h.embedder, h.gallery,
		NewStatusManager(), testLogger(),
	)
	return h
}

// stage writes a staged image whose file content doubles as the key the fake
// captioner uses.
func (h *ingestHarness) stage(t *testing.T, filename, content, caption string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(h.staging, filename), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to stage %s: %v", filename, err)
	}
	h.captioner.captions[content] = caption
}

func TestIngestRunHappyPath(t *testing.T) {
	h := newIngestHarness(t)
	h.stage(t, "b.jpg", "beach-bytes", "a sandy beach at sunset")
	h.stage(t, "a.jpg", "cat-bytes", "a cat sleeping on a sofa")

	result, err := h.svc.Run(context.Background(), staging.NewAdapter(h.staging))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Total != 2 || result.Indexed != 2 || result.Failed != 0 {
		t.Errorf("unexpected result: total=%d indexed=%d failed=%d", result.Total, result.Indexed, result.Failed)
	}

	status := h.svc.Status()
	if status.State != domain.BatchStateCompleted {
		t.Errorf("expected completed state, got %s", status.State)
	}

	// Lexical staging order pins ids: a.jpg first.
	catPhoto := h.photos.get("a.jpg")
	if catPhoto == nil {
		t.Fatal("a.jpg was not saved")
	}
	if catPhoto.ID != 1 {
		t.Errorf("expected a.jpg to get id 1, got %d", catPhoto.ID)
	}
	if catPhoto.Status != domain.PhotoStatusIndexed {
		t.Errorf("expected indexed status, got %s", catPhoto.Status)
	}
	if catPhoto.Caption != "a cat sleeping on a sofa" {
		t.Errorf("unexpected caption: %q", catPhoto.Caption)
	}
	if catPhoto.CaptionModel != "fake-vision" || catPhoto.EmbeddingModel != "fake-embedder" {
		t.Errorf("model names not recorded: caption=%q embedding=%q", catPhoto.CaptionModel, catPhoto.EmbeddingModel)
	}

	beachPhoto := h.photos.get("b.jpg")
	if beachPhoto == nil || beachPhoto.ID != 2 {
		t.Fatalf("expected b.jpg with id 2, got %+v", beachPhoto)
	}

	entry, ok := h.index.entry(1)
	if !ok {
		t.Fatal("index entry for id 1 missing")
	}
	if entry.payload.Caption != "a cat sleeping on a sofa" {
		t.Errorf("unexpected payload caption: %q", entry.payload.Caption)
	}
	if entry.payload.ImagePath != "gallery/a.jpg" {
		t.Errorf("unexpected payload path: %q", entry.payload.ImagePath)
	}

	// Staged files were moved, not copied.
	if _, err := os.Stat(filepath.Join(h.staging, "a.jpg")); !os.IsNotExist(err) {
		t.Error("a.jpg still present in staging after commit")
	}

	batch := h.batches.get(result.BatchID)
	if batch == nil {
		t.Fatal("batch audit record missing")
	}
	if batch.State != domain.BatchStateCompleted || batch.IndexedImages != 2 {
		t.Errorf("unexpected batch record: state=%s indexed=%d", batch.State, batch.IndexedImages)
	}
	if batch.CompletedAt == nil {
		t.Error("batch record missing completion time")
	}
}

func TestIngestCaptionFailureSkipsImage(t *testing.T) {
	h := newIngestHarness(t)
	h.stage(t, "a.jpg", "cat-bytes", "a cat sleeping on a sofa")
	h.stage(t, "b.jpg", "broken-bytes", "")
	h.captioner.failFor["broken-bytes"] = true

	result, err := h.svc.Run(context.Background(), staging.NewAdapter(h.staging))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Indexed != 1 || result.Failed != 1 {
		t.Errorf("expected 1 indexed, 1 failed, got indexed=%d failed=%d", result.Indexed, result.Failed)
	}

	// A failing image never blocks the batch.
	if state := h.svc.Status().State; state != domain.BatchStateCompleted {
		t.Errorf("expected completed state, got %s", state)
	}

	// The failed image is committed to the gallery but kept out of the index.
	broken := h.photos.get("b.jpg")
	if broken == nil {
		t.Fatal("b.jpg failure was not recorded")
	}
	if broken.Status != domain.PhotoStatusFailed {
		t.Errorf("expected failed status, got %s", broken.Status)
	}
	if broken.LastError == "" {
		t.Error("failure cause not recorded")
	}
	if broken.GalleryPath != "gallery/b.jpg" {
		t.Errorf("failed image should still be committed, got path %q", broken.GalleryPath)
	}
	if h.index.size() != 1 {
		t.Errorf("expected 1 index entry, got %d", h.index.size())
	}

	batch := h.batches.get(result.BatchID)
	if batch == nil {
		t.Fatal("batch audit record missing")
	}
	if batch.FailedImages != 1 || batch.ErrorLog == "" {
		t.Errorf("batch record should capture the failure: failed=%d log=%q", batch.FailedImages, batch.ErrorLog)
	}
}

func TestIngestIndexFailureLeavesNoPartialEntry(t *testing.T) {
	h := newIngestHarness(t)
	h.stage(t, "a.jpg", "cat-bytes", "a cat sleeping on a sofa")
	h.index.fail = true

	result, err := h.svc.Run(context.Background(), staging.NewAdapter(h.staging))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Indexed != 0 || result.Failed != 1 {
		t.Errorf("expected 0 indexed, 1 failed, got indexed=%d failed=%d", result.Indexed, result.Failed)
	}
	if h.index.upserts != 0 {
		t.Errorf("expected no successful upserts, got %d", h.index.upserts)
	}
	photo := h.photos.get("a.jpg")
	if photo == nil || photo.Status != domain.PhotoStatusFailed {
		t.Fatalf("expected failed photo record, got %+v", photo)
	}
	// Caption and embedding completed before the index error, so they are
	// kept on the record for a later retry.
	if photo.Caption == "" {
		t.Error("caption should be preserved on the failed record")
	}
}

func TestIngestAllocationFailureRetiresNothing(t *testing.T) {
	h := newIngestHarness(t)
	h.stage(t, "a.jpg", "cat-bytes", "a cat sleeping on a sofa")
	h.allocator.fail = true

	result, err := h.svc.Run(context.Background(), staging.NewAdapter(h.staging))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", result.Failed)
	}
	if len(h.photos.photos) != 0 {
		t.Errorf("no photo record should exist, got %d", len(h.photos.photos))
	}
	// Allocation failed before commit, so the staged file stays put.
	if _, err := os.Stat(filepath.Join(h.staging, "a.jpg")); err != nil {
		t.Errorf("staged file should remain after allocation failure: %v", err)
	}
}

func TestIngestMissingStagingDirFailsBatch(t *testing.T) {
	h := newIngestHarness(t)

	result, err := h.svc.Run(context.Background(), staging.NewAdapter(filepath.Join(h.staging, "nope")))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("expected empty result, got total=%d", result.Total)
	}

	status := h.svc.Status()
	if status.State != domain.BatchStateError {
		t.Errorf("expected error state, got %s", status.State)
	}
	if status.Error == "" {
		t.Error("expected error detail in status")
	}

	batch := h.batches.get(result.BatchID)
	if batch == nil || batch.State != domain.BatchStateError {
		t.Fatalf("expected error batch record, got %+v", batch)
	}
}

func TestIngestStartRejectsConcurrentBatch(t *testing.T) {
	h := newIngestHarness(t)

	// Admit a batch directly so the manager is busy without racing a
	// background goroutine.
	if err := h.svc.status.Begin("manual", "ingestion started"); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if _, err := h.svc.Start(staging.NewAdapter(h.staging)); !apperr.IsKind(err, apperr.KindAdmission) {
		t.Fatalf("expected admission error, got %v", err)
	}

	h.svc.status.Complete("done")
	if _, err := h.svc.Run(context.Background(), staging.NewAdapter(h.staging)); err != nil {
		t.Fatalf("expected batch to be admitted after completion: %v", err)
	}
}

func TestIngestReprocessedFilenameKeepsID(t *testing.T) {
	h := newIngestHarness(t)
	h.stage(t, "a.jpg", "cat-bytes-v1", "a cat sleeping on a sofa")

	if _, err := h.svc.Run(context.Background(), staging.NewAdapter(h.staging)); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// The same filename arrives again with new content. It must keep its
	// id and overwrite its vector, never add a second index entry.
	h.stage(t, "a.jpg", "cat-bytes-v2", "a cat stretching on a sofa")
	if _, err := h.svc.Run(context.Background(), staging.NewAdapter(h.staging)); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	photo := h.photos.get("a.jpg")
	if photo == nil {
		t.Fatal("a.jpg was not saved")
	}
	if photo.ID != 1 {
		t.Errorf("re-processing must reuse id 1, got %d", photo.ID)
	}
	if photo.Caption != "a cat stretching on a sofa" {
		t.Errorf("caption not refreshed: %q", photo.Caption)
	}

	if h.index.size() != 1 {
		t.Fatalf("one committed image must have one index entry, got %d", h.index.size())
	}
	entry, ok := h.index.entry(1)
	if !ok {
		t.Fatal("index entry for id 1 missing")
	}
	if entry.payload.Caption != "a cat stretching on a sofa" {
		t.Errorf("vector payload not refreshed: %q", entry.payload.Caption)
	}

	// No id was consumed by the second run.
	if h.allocator.next != 1 {
		t.Errorf("expected 1 allocation across both runs, got %d", h.allocator.next)
	}
}

func TestIngestReprocessingIdenticalImageIsIdempotent(t *testing.T) {
	h := newIngestHarness(t)
	h.stage(t, "a.jpg", "cat-bytes", "a cat sleeping on a sofa")

	if _, err := h.svc.Run(context.Background(), staging.NewAdapter(h.staging)); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	before, ok := h.index.entry(1)
	if !ok {
		t.Fatal("index entry for id 1 missing")
	}
	hitsBefore, err := h.index.Query(context.Background(), before.vector, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	// Same bytes staged again: the upsert under the same id must leave the
	// index observably unchanged.
	h.stage(t, "a.jpg", "cat-bytes", "a cat sleeping on a sofa")
	if _, err := h.svc.Run(context.Background(), staging.NewAdapter(h.staging)); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if h.index.size() != 1 {
		t.Fatalf("expected 1 index entry after re-processing, got %d", h.index.size())
	}
	after, ok := h.index.entry(1)
	if !ok {
		t.Fatal("index entry for id 1 missing after re-processing")
	}
	if len(after.vector) != len(before.vector) {
		t.Fatalf("vector dimension changed: %d vs %d", len(after.vector), len(before.vector))
	}
	for i := range after.vector {
		if after.vector[i] != before.vector[i] {
			t.Fatalf("vector changed at component %d: %f vs %f", i, after.vector[i], before.vector[i])
		}
	}

	hitsAfter, err := h.index.Query(context.Background(), before.vector, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(hitsAfter) != len(hitsBefore) {
		t.Fatalf("hit count changed: %d vs %d", len(hitsAfter), len(hitsBefore))
	}
	for i := range hitsAfter {
		if hitsAfter[i].ID != hitsBefore[i].ID || hitsAfter[i].Score != hitsBefore[i].Score {
			t.Errorf("hit %d changed: %+v vs %+v", i, hitsAfter[i], hitsBefore[i])
		}
	}
}

func TestIngestEmptyStagingCompletes(t *testing.T) {
	h := newIngestHarness(t)

	result, err := h.svc.Run(context.Background(), staging.NewAdapter(h.staging))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Total != 0 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if state := h.svc.Status().State; state != domain.BatchStateCompleted {
		t.Errorf("expected completed state, got %s", state)
	}
}
