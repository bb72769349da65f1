package service

import (
	"sync"

	"github.com/timmy/galleria/internal/apperr"
	"github.com/timmy/galleria/internal/domain"
)

// StatusManager owns the process-wide ingestion status. Only the active
// batch mutates it; readers get a copy. Admission is enforced here: Begin
// fails fast while a batch is processing, so the durable id counter never
// sees two concurrent batches.
type StatusManager struct {
	mu      sync.RWMutex
	status  domain.BatchStatus
	batchID string
}

// NewStatusManager creates a manager in the idle state.
func NewStatusManager() *StatusManager {
	return &StatusManager{
		status: domain.BatchStatus{State: domain.BatchStateIdle},
	}
}

// Begin admits a new batch. Returns an admission error if a batch is already
// processing; the in-flight batch is unaffected.
func (m *StatusManager) Begin(batchID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.State == domain.BatchStateProcessing {
		return apperr.Errorf(apperr.KindAdmission, "status.Begin", "ingestion batch %s already in progress", m.batchID)
	}

	m.batchID = batchID
	m.status = domain.BatchStatus{
		State:   domain.BatchStateProcessing,
		Message: message,
	}
	return nil
}

// Complete marks the current batch completed. Individual image failures do
// not prevent completion; they are reflected in the message.
func (m *StatusManager) Complete(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = domain.BatchStatus{
		State:   domain.BatchStateCompleted,
		Message: message,
	}
}

// Fail marks the current batch failed with a human-readable message and the
// underlying error.
func (m *StatusManager) Fail(message string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := domain.BatchStatus{
		State:   domain.BatchStateError,
		Message: message,
	}
	if err != nil {
		status.Error = err.Error()
	}
	m.status = status
}

// Status returns a copy of the current batch status. Never mutates state.
func (m *StatusManager) Status() domain.BatchStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// BatchID returns the id of the last admitted batch.
func (m *StatusManager) BatchID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.batchID
}
