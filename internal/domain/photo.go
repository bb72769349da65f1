package domain

import "time"

// PhotoStatus represents the processing status of a photo record.
// Values include PhotoStatusPending, PhotoStatusIndexed, and PhotoStatusFailed.
type PhotoStatus string

const (
	PhotoStatusPending PhotoStatus = "pending"
	PhotoStatusIndexed PhotoStatus = "indexed"
	PhotoStatusFailed  PhotoStatus = "failed"
)

// Photo represents one committed gallery image and its caption metadata.
// The integer ID doubles as the vector index point id; ids are allocated by
// the durable counter and never reused, even when processing fails.
type Photo struct {
	ID             uint64      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Filename       string      `gorm:"type:text;not null;uniqueIndex:idx_photos_filename" json:"filename"`
	GalleryPath    string      `gorm:"type:text;not null" json:"gallery_path"`
	Format         string      `gorm:"type:text" json:"format"`
	FileSize       int64       `json:"file_size"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
	Caption        string      `gorm:"type:text" json:"caption"`
	CaptionModel   string      `gorm:"type:text" json:"caption_model,omitempty"`
	EmbeddingModel string      `gorm:"type:text" json:"embedding_model,omitempty"`
	Status         PhotoStatus `gorm:"type:text;index:idx_photos_status;default:pending" json:"status"`
	LastError      string      `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Photo.
func (Photo) TableName() string {
	return "photos"
}

// IDCounter is the durable monotonic counter backing identity allocation.
// NextID is the next id to hand out; the row is seeded from max(photos.id)
// the first time an id is requested.
type IDCounter struct {
	Name   string `gorm:"type:text;primaryKey"`
	NextID uint64 `gorm:"not null"`
}

// TableName returns the database table name for IDCounter.
func (IDCounter) TableName() string {
	return "id_counters"
}
