package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntityType selects which schema an import or lifecycle operation targets.
type EntityType string

const (
	EntityTypeCompany EntityType = "company"
	EntityTypeContact EntityType = "contact"
	EntityTypeSegment EntityType = "segment"
)

// BatchStatus tracks the lifecycle of one upload run.
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// UploadBatch is one submitted file and the processing run it triggered.
// Mutated only by the import orchestrator; immutable once completed or failed.
type UploadBatch struct {
	ID            uuid.UUID   `json:"id"`
	EntityType    EntityType  `json:"entityType"`
	FileName      string      `json:"fileName"`
	FileSizeBytes int64       `json:"fileSizeBytes"`
	Status        BatchStatus `json:"status"`
	TotalRows     int         `json:"totalRows"`
	ValidRows     int         `json:"validRows"`
	InvalidRows   int         `json:"invalidRows"`
	FailureReason string      `json:"failureReason,omitempty"`
	SubmittedBy   uuid.UUID   `json:"submittedBy"`
	CreatedAt     time.Time   `json:"createdAt"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty"`
}

// NewUploadBatch creates a batch in processing state for an accepted file.
func NewUploadBatch(entityType EntityType, fileName string, size int64, submittedBy uuid.UUID) UploadBatch {
	return UploadBatch{
		ID:            uuid.New(),
		EntityType:    entityType,
		FileName:      fileName,
		FileSizeBytes: size,
		Status:        BatchStatusProcessing,
		SubmittedBy:   submittedBy,
		CreatedAt:     time.Now(),
	}
}

// Terminal reports whether the batch has reached completed or failed.
func (b UploadBatch) Terminal() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}

// UploadError is one per-cell validation failure recorded against a batch.
// Written only during validation of its batch and never mutated; deleted only
// by batch deletion.
type UploadError struct {
	ID           uuid.UUID `json:"id"`
	BatchID      uuid.UUID `json:"batchId"`
	RowNumber    int       `json:"rowNumber"`
	ColumnName   string    `json:"columnName"`
	Value        string    `json:"value"`
	ErrorMessage string    `json:"errorMessage"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UploadErrorFilter narrows ListErrors to one row and/or column.
type UploadErrorFilter struct {
	RowNumber  *int
	ColumnName string
	Limit      int
	Offset     int
}
