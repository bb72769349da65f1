package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/timmy/galleria/internal/apperr"
	"github.com/timmy/galleria/internal/config"
	"github.com/timmy/galleria/internal/domain"
	"gorm.io/gorm"
)

func testDBConfig(t *testing.T) *config.DatabaseConfig {
	t.Helper()
	return &config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "galleria.db"),
		MaxIdleConns: 2,
		MaxOpenConns: 4,
		AutoMigrate:  true,
	}
}

func openTestDB(t *testing.T, cfg *config.DatabaseConfig) *gorm.DB {
	t.Helper()
	db, err := InitDB(cfg)
	if err != nil {
		t.Fatalf("failed to init database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestAllocatorSequence(t *testing.T) {
	db := openTestDB(t, testDBConfig(t))
	allocator := NewIDAllocator(db)
	ctx := context.Background()

	for want := uint64(1); want <= 5; want++ {
		got, err := allocator.Next(ctx)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected id %d, got %d", want, got)
		}
	}

	next, err := allocator.Peek(ctx)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if next != 6 {
		t.Errorf("expected Peek to report 6, got %d", next)
	}
}

func TestAllocatorSurvivesReopen(t *testing.T) {
	cfg := testDBConfig(t)
	ctx := context.Background()

	db := openTestDB(t, cfg)
	allocator := NewIDAllocator(db)
	for i := 0; i < 3; i++ {
		if _, err := allocator.Next(ctx); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	// Same file, fresh process view. Ids continue, never restart.
	reopened := openTestDB(t, cfg)
	got, err := NewIDAllocator(reopened).Next(ctx)
	if err != nil {
		t.Fatalf("Next after reopen failed: %v", err)
	}
	if got != 4 {
		t.Errorf("expected id 4 after reopen, got %d", got)
	}
}

func TestAllocatorSeedsFromExistingPhotos(t *testing.T) {
	db := openTestDB(t, testDBConfig(t))
	ctx := context.Background()

	// A gallery that predates the counter row keeps its id space.
	photos := NewPhotoRepository(db)
	existing := &domain.Photo{
		ID:       42,
		Filename: "legacy.jpg",
		Status:   domain.PhotoStatusIndexed,
	}
	if err := photos.Save(ctx, existing); err != nil {
		t.Fatalf("failed to save photo: %v", err)
	}

	got, err := NewIDAllocator(db).Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != 43 {
		t.Errorf("expected id 43, got %d", got)
	}
}

func TestAllocatorIdsNeverRepeat(t *testing.T) {
	db := openTestDB(t, testDBConfig(t))
	allocator := NewIDAllocator(db)
	ctx := context.Background()

	seen := make(map[uint64]bool)
	for i := 0; i < 50; i++ {
		id, err := allocator.Next(ctx)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("id %d allocated twice", id)
		}
		seen[id] = true
	}
}

func TestAllocatorRejectsCorruptedCounter(t *testing.T) {
	db := openTestDB(t, testDBConfig(t))
	ctx := context.Background()

	// A counter row damaged down to next_id = 0 must fail allocation
	// rather than hand out id 0.
	if err := db.Exec("INSERT INTO id_counters (name, next_id) VALUES (?, ?)", "photo_id", 0).Error; err != nil {
		t.Fatalf("failed to seed corrupted counter: %v", err)
	}

	_, err := NewIDAllocator(db).Next(ctx)
	if !apperr.IsKind(err, apperr.KindAllocation) {
		t.Fatalf("expected allocation error, got %v", err)
	}
}

func TestAllocatorPeekOnFreshDatabase(t *testing.T) {
	db := openTestDB(t, testDBConfig(t))

	next, err := NewIDAllocator(db).Peek(context.Background())
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if next != 0 {
		t.Errorf("expected 0 before first allocation, got %d", next)
	}
}
