package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/galleria/internal/domain"
	"github.com/timmy/galleria/internal/logger"
	"github.com/timmy/galleria/internal/repository"
	"github.com/timmy/galleria/internal/source"
	"github.com/timmy/galleria/internal/storage"
)

// IngestService runs ingestion batches: for each staged image it allocates
// an identity, commits the file into the gallery, captions it, embeds the
// caption, and upserts the vector. Per-image failures are logged and skipped;
// only a failure outside the per-image loop fails the batch.
type IngestService struct {
	allocator IdentityAllocator
	photos    PhotoStore
	batches   BatchStore
	index     VectorIndex
	captioner CaptionProvider
	embedder  EmbeddingProvider
	gallery   storage.GalleryStorage
	status    *StatusManager
	logger    *logger.Logger
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	allocator IdentityAllocator,
	photos PhotoStore,
	batches BatchStore,
	index VectorIndex,
	captioner CaptionProvider,
	embedder EmbeddingProvider,
	gallery storage.GalleryStorage,
	status *StatusManager,
	log *logger.Logger,
) *IngestService {
	return &IngestService{
		allocator: allocator,
		photos:    photos,
		batches:   batches,
		index:     index,
		captioner: captioner,
		embedder:  embedder,
		gallery:   gallery,
		status:    status,
		logger:    log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *IngestService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Status returns the current batch status. Read-only.
func (s *IngestService) Status() domain.BatchStatus {
	return s.status.Status()
}

// BatchResult holds the per-image accounting of one finished batch.
type BatchResult struct {
	BatchID   string
	Total     int
	Indexed   int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
}

// Start admits and launches a batch in the background, returning as soon as
// the batch is accepted. Rejected with an admission error while another
// batch is processing. The batch runs on a detached context: once started it
// cannot be aborted mid-flight.
func (s *IngestService) Start(src source.Source) (string, error) {
	batchID := uuid.New().String()
	if err := s.status.Begin(batchID, "ingestion started"); err != nil {
		return "", err
	}

	go func() {
		ctx := logger.SetBatchID(context.Background(), batchID)
		ctx = logger.SetComponent(ctx, "ingest")
		s.run(ctx, src, batchID)
	}()

	return batchID, nil
}

// Run admits and runs a batch synchronously. Used by the ingest CLI.
func (s *IngestService) Run(ctx context.Context, src source.Source) (*BatchResult, error) {
	batchID := uuid.New().String()
	if err := s.status.Begin(batchID, "ingestion started"); err != nil {
		return nil, err
	}

	ctx = logger.SetBatchID(ctx, batchID)
	return s.run(ctx, src, batchID), nil
}

func (s *IngestService) run(ctx context.Context, src source.Source, batchID string) *BatchResult {
	result := &BatchResult{
		BatchID:   batchID,
		StartTime: time.Now(),
	}

	batch := &domain.IngestBatch{
		ID:        batchID,
		State:     domain.BatchStateProcessing,
		StartedAt: result.StartTime,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		// Audit record only; the batch itself can still run.
		s.log(ctx).WithError(err).Warn("Failed to create batch record")
	}

	images, err := src.List(ctx)
	if err != nil {
		s.log(ctx).WithError(err).Error("Ingestion could not start")
		s.status.Fail("ingestion could not start", err)
		s.finishBatch(ctx, batch, result, domain.BatchStateError, err.Error())
		result.EndTime = time.Now()
		return result
	}

	result.Total = len(images)
	s.log(ctx).WithFields(logger.Fields{
		"source": src.GetSourceID(),
		"count":  len(images),
	}).Info("Starting ingestion batch")

	var errLog []string
	for _, img := range images {
		if ctx.Err() != nil {
			break
		}

		if err := s.processImage(ctx, img); err != nil {
			result.Failed++
			errLog = append(errLog, fmt.Sprintf("%s: %v", img.Filename, err))
			s.log(ctx).WithField(logger.FieldImage, img.Filename).WithError(err).Error("Failed to process image")
			continue
		}
		result.Indexed++
	}

	result.EndTime = time.Now()

	if ctx.Err() != nil {
		s.status.Fail("ingestion aborted", ctx.Err())
		s.finishBatch(context.WithoutCancel(ctx), batch, result, domain.BatchStateError, strings.Join(errLog, "\n"))
	} else {
		message := fmt.Sprintf("processed %d images: %d indexed, %d failed", result.Total, result.Indexed, result.Failed)
		s.status.Complete(message)
		s.finishBatch(context.WithoutCancel(ctx), batch, result, domain.BatchStateCompleted, strings.Join(errLog, "\n"))
	}

	logger.With(logger.Fields{
		logger.FieldCount:      result.Total,
		logger.FieldDurationMs: result.EndTime.Sub(result.StartTime).Milliseconds(),
	}).WithBatchOutcome(result.Indexed, result.Failed).
		Info(ctx, "Ingestion batch finished")

	return result
}

func (s *IngestService) finishBatch(ctx context.Context, batch *domain.IngestBatch, result *BatchResult, state domain.BatchState, errLog string) {
	now := time.Now()
	batch.State = state
	batch.TotalImages = result.Total
	batch.IndexedImages = result.Indexed
	batch.FailedImages = result.Failed
	batch.CompletedAt = &now
	batch.ErrorLog = errLog
	if err := s.batches.Update(ctx, batch); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to update batch record")
	}
}

// processImage runs the per-image pipeline. Any error here skips the image
// without touching the rest of the batch. The ordering of steps preserves the
// index invariant: a vector is upserted only after a complete caption and
// embedding exist, so the index never holds a partial entry.
func (s *IngestService) processImage(ctx context.Context, img source.StagedImage) error {
	// Read the staged bytes before committing; after Commit the staging
	// copy is gone and an S3-backed gallery has no local file to reread.
	data, err := os.ReadFile(img.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to read staged image: %w", err)
	}

	width, height := 0, 0
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		width, height = cfg.Width, cfg.Height
	}

	// A previously committed filename keeps its id, so re-processing
	// overwrites the existing vector point instead of leaving a stale
	// entry under the old id next to a new one.
	var id uint64
	existing, err := s.photos.FindByFilename(ctx, img.Filename)
	if err != nil {
		return fmt.Errorf("failed to look up existing record: %w", err)
	}
	if existing != nil {
		id = existing.ID
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldImage:   img.Filename,
			logger.FieldImageID: id,
		}).Info("Re-processing committed image")
	} else {
		id, err = s.allocator.Next(ctx)
		if err != nil {
			return err
		}
	}

	galleryPath, err := s.gallery.Commit(ctx, img.LocalPath, img.Filename)
	if err != nil {
		// A freshly allocated id is retired here, never handed out again.
		return fmt.Errorf("failed to commit image: %w", err)
	}

	photo := &domain.Photo{
		ID:          id,
		Filename:    img.Filename,
		GalleryPath: galleryPath,
		Format:      img.Format,
		FileSize:    int64(len(data)),
		Width:       width,
		Height:      height,
		Status:      domain.PhotoStatusPending,
	}

	caption, err := s.captioner.Caption(ctx, data, img.Format)
	if err != nil {
		// Committed but unindexed: the image stays visible in the gallery
		// and the failed record makes the inconsistency observable.
		s.recordFailure(ctx, photo, err)
		return err
	}

	photo.Caption = caption
	photo.CaptionModel = s.captioner.Model()

	vector, err := s.embedder.Embed(ctx, caption)
	if err != nil {
		s.recordFailure(ctx, photo, err)
		return err
	}

	payload := &repository.PhotoPayload{
		Caption:   caption,
		ImagePath: galleryPath,
	}
	if err := s.index.Upsert(ctx, id, vector, payload); err != nil {
		s.recordFailure(ctx, photo, err)
		return err
	}

	photo.Status = domain.PhotoStatusIndexed
	photo.EmbeddingModel = s.embedder.Model()
	if err := s.photos.Save(ctx, photo); err != nil {
		return fmt.Errorf("failed to save photo record: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldImage:   img.Filename,
		logger.FieldImageID: id,
	}).Info("Image indexed")

	return nil
}

func (s *IngestService) recordFailure(ctx context.Context, photo *domain.Photo, cause error) {
	photo.Status = domain.PhotoStatusFailed
	photo.LastError = cause.Error()
	if err := s.photos.Save(ctx, photo); err != nil {
		s.log(ctx).WithField(logger.FieldImage, photo.Filename).WithError(err).Warn("Failed to record image failure")
	}
}
