package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/galleria/internal/apperr"
	"github.com/timmy/galleria/internal/domain"
	"gorm.io/gorm"
)

const photoCounter = "photo_id"

// IDAllocator hands out unique, stable integer ids backed by a durable
// counter row. Ids survive process restarts and are never recycled: a failed
// image retires its id rather than returning it, so a later image can never
// overwrite another image's vector in the index.
type IDAllocator struct {
	db *gorm.DB
}

// NewIDAllocator creates an allocator bound to db.
func NewIDAllocator(db *gorm.DB) *IDAllocator {
	return &IDAllocator{db: db}
}

// Next allocates the next photo id. The counter is incremented atomically
// inside a transaction; on first use it is seeded from max(photos.id) so an
// existing gallery keeps its id space. Failures are reported as allocation
// errors and abort only the current image.
func (a *IDAllocator) Next(ctx context.Context) (uint64, error) {
	var id uint64
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.IDCounter{}).
			Where("name = ?", photoCounter).
			Update("next_id", gorm.Expr("next_id + 1"))
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			seeded, err := seedCounter(tx)
			if err != nil {
				return err
			}
			id = seeded
			return nil
		}

		var counter domain.IDCounter
		if err := tx.First(&counter, "name = ?", photoCounter).Error; err != nil {
			return err
		}
		// counter.NextID is the post-increment value; a pre-increment
		// value of 0 would hand out id 0, which no photo may carry.
		if counter.NextID < 2 {
			return fmt.Errorf("counter %q is corrupted", photoCounter)
		}
		id = counter.NextID - 1
		return nil
	})
	if err != nil {
		return 0, apperr.E(apperr.KindAllocation, "allocator.Next", err)
	}
	return id, nil
}

// seedCounter creates the counter row from the highest existing photo id and
// returns the id allocated by this first call.
func seedCounter(tx *gorm.DB) (uint64, error) {
	var maxID *uint64
	if err := tx.Model(&domain.Photo{}).Select("MAX(id)").Scan(&maxID).Error; err != nil {
		return 0, fmt.Errorf("failed to seed counter: %w", err)
	}

	allocated := uint64(1)
	if maxID != nil {
		allocated = *maxID + 1
	}

	counter := domain.IDCounter{Name: photoCounter, NextID: allocated + 1}
	if err := tx.Create(&counter).Error; err != nil {
		return 0, fmt.Errorf("failed to create counter: %w", err)
	}
	return allocated, nil
}

// Peek returns the next id that would be allocated without consuming it.
// Intended for diagnostics only.
func (a *IDAllocator) Peek(ctx context.Context) (uint64, error) {
	var counter domain.IDCounter
	err := a.db.WithContext(ctx).First(&counter, "name = ?", photoCounter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.E(apperr.KindAllocation, "allocator.Peek", err)
	}
	return counter.NextID, nil
}
