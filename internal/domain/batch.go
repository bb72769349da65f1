package domain

import "time"

// BatchState represents the lifecycle state of an ingestion batch.
// Exactly one batch's outcome is visible at a time; a new batch overwrites
// the previous terminal state.
type BatchState string

const (
	BatchStateIdle       BatchState = "idle"
	BatchStateProcessing BatchState = "processing"
	BatchStateCompleted  BatchState = "completed"
	BatchStateError      BatchState = "error"
)

// BatchStatus is the process-wide, single-writer status of the last-started
// ingestion batch, as exposed by the status endpoint.
type BatchStatus struct {
	State   BatchState `json:"state"`
	Message string     `json:"message"`
	Error   string     `json:"error,omitempty"`
}

// IngestBatch is the persisted audit record of one ingestion run. Per-image
// failures do not fail the batch; they show up in FailedImages and ErrorLog.
type IngestBatch struct {
	ID             string     `gorm:"type:text;primaryKey" json:"id"`
	State          BatchState `gorm:"type:text;default:processing" json:"state"`
	TotalImages    int        `gorm:"default:0" json:"total_images"`
	IndexedImages  int        `gorm:"default:0" json:"indexed_images"`
	FailedImages   int        `gorm:"default:0" json:"failed_images"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ErrorLog       string     `gorm:"type:text" json:"error_log,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for IngestBatch.
func (IngestBatch) TableName() string {
	return "ingest_batches"
}
