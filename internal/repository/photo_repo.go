package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/galleria/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PhotoRepository handles photo metadata operations.
type PhotoRepository struct {
	db *gorm.DB
}

// NewPhotoRepository creates a new PhotoRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *PhotoRepository: repository instance bound to db.
func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Save creates or updates a photo record keyed by filename. Re-processing a
// committed file must not create a second row.
func (r *PhotoRepository) Save(ctx context.Context, photo *domain.Photo) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "filename"}},
		UpdateAll: true,
	}).Create(photo).Error
}

// GetByID retrieves a photo by its allocated id.
func (r *PhotoRepository) GetByID(ctx context.Context, id uint64) (*domain.Photo, error) {
	var photo domain.Photo
	if err := r.db.WithContext(ctx).First(&photo, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &photo, nil
}

// GetByFilename retrieves a photo by its gallery filename.
func (r *PhotoRepository) GetByFilename(ctx context.Context, filename string) (*domain.Photo, error) {
	var photo domain.Photo
	if err := r.db.WithContext(ctx).First(&photo, "filename = ?", filename).Error; err != nil {
		return nil, err
	}
	return &photo, nil
}

// FindByFilename retrieves a photo by filename, returning nil without error
// when the filename has never been committed. The ingest pipeline uses this
// to keep one id per committed image across re-processing runs.
func (r *PhotoRepository) FindByFilename(ctx context.Context, filename string) (*domain.Photo, error) {
	var photo domain.Photo
	err := r.db.WithContext(ctx).First(&photo, "filename = ?", filename).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

// ListByStatus retrieves photos by status with pagination.
func (r *PhotoRepository) ListByStatus(ctx context.Context, status domain.PhotoStatus, limit, offset int) ([]domain.Photo, error) {
	var photos []domain.Photo
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&photos).Error; err != nil {
		return nil, err
	}
	return photos, nil
}

// CountByStatus counts photos by status. Used by the reconciliation check:
// the indexed count should equal the number of committed images minus the
// logged per-image failures.
func (r *PhotoRepository) CountByStatus(ctx context.Context, status domain.PhotoStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Photo{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MaxID returns the highest allocated photo id, or 0 for an empty gallery.
func (r *PhotoRepository) MaxID(ctx context.Context) (uint64, error) {
	var maxID *uint64
	if err := r.db.WithContext(ctx).Model(&domain.Photo{}).Select("MAX(id)").Scan(&maxID).Error; err != nil {
		return 0, err
	}
	if maxID == nil {
		return 0, nil
	}
	return *maxID, nil
}

// BatchRepository persists ingestion batch audit records.
type BatchRepository struct {
	db *gorm.DB
}

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a new batch record.
func (r *BatchRepository) Create(ctx context.Context, batch *domain.IngestBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

// Update updates an existing batch record.
func (r *BatchRepository) Update(ctx context.Context, batch *domain.IngestBatch) error {
	return r.db.WithContext(ctx).Save(batch).Error
}

// GetByID retrieves a batch record.
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.IngestBatch, error) {
	var batch domain.IngestBatch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListRecent retrieves the most recently started batches.
func (r *BatchRepository) ListRecent(ctx context.Context, limit int) ([]domain.IngestBatch, error) {
	var batches []domain.IngestBatch
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}

// Finish marks a batch terminal with its final counts.
func (r *BatchRepository) Finish(ctx context.Context, batch *domain.IngestBatch, state domain.BatchState) error {
	now := time.Now()
	batch.State = state
	batch.CompletedAt = &now
	return r.Update(ctx, batch)
}
