package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jmarlowe/leadpipe/internal/domain"
)

// BatchRepository owns upload batches, their staged payloads, counters, and
// per-cell errors. Row commits are atomic: an entity row and its batch
// counter move together, so a row is never counted valid without its entity
// existing.
type BatchRepository interface {
	Create(ctx context.Context, batch domain.UploadBatch) (domain.UploadBatch, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.UploadBatch, error)
	ListBySubmitter(ctx context.Context, submittedBy uuid.UUID, limit int) ([]domain.UploadBatch, error)

	// StagePayload stores the raw file bytes and operator overrides until the
	// worker picks the batch up.
	StagePayload(ctx context.Context, batchID uuid.UUID, data []byte, overrides map[string]string) error
	GetPayload(ctx context.Context, batchID uuid.UUID) ([]byte, map[string]string, error)
	DeletePayload(ctx context.Context, batchID uuid.UUID) error

	SetTotalRows(ctx context.Context, batchID uuid.UUID, totalRows int) error
	// ResetProgress zeroes valid_rows/invalid_rows and deletes the batch's
	// recorded errors. A redelivered processing batch calls this so a partial
	// earlier run cannot double-count.
	ResetProgress(ctx context.Context, batchID uuid.UUID) error
	MarkCompleted(ctx context.Context, batchID uuid.UUID) (domain.UploadBatch, error)
	MarkFailed(ctx context.Context, batchID uuid.UUID, reason string) error

	// CommitCompanyRow inserts the company and increments valid_rows in one
	// transaction. A row whose natural key was already inserted by an earlier
	// delivery of the same batch counts valid again and returns the existing
	// company; any other conflict returns domain.ErrDuplicateKey.
	CommitCompanyRow(ctx context.Context, batchID uuid.UUID, company domain.Company) (domain.Company, error)
	// CommitContactRow is the contact counterpart of CommitCompanyRow.
	CommitContactRow(ctx context.Context, batchID uuid.UUID, contact domain.Contact) (domain.Contact, error)
	// RecordInvalidRow stores one row's errors and increments invalid_rows in
	// one transaction.
	RecordInvalidRow(ctx context.Context, batchID uuid.UUID, rowErrors []domain.RowError) error

	ListErrors(ctx context.Context, batchID uuid.UUID, filter domain.UploadErrorFilter) ([]domain.UploadError, error)
}

// SegmentRepository serves segment reference data.
type SegmentRepository interface {
	Create(ctx context.Context, segment domain.Segment) (domain.Segment, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Segment, error)
	ListActive(ctx context.Context) ([]domain.Segment, error)
	Archive(ctx context.Context, id uuid.UUID) error
}

// CompanyRepository owns company rows. Status transitions are conditioned on
// the expected from-state and write their audit entry in the same
// transaction, so concurrent approve/reject calls cannot both succeed and a
// failed audit write rolls the transition back.
type CompanyRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Company, error)
	ListForReference(ctx context.Context) ([]domain.Company, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.CompanyStatus, rejectionReason string, audit domain.AuditEntry) (domain.Company, error)
}

// ContactRepository owns contact rows. AssignSDR performs the status advance,
// the assigned_sdr_id update, the assignment replacement, and the audit write
// in one transaction.
type ContactRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Contact, error)
	ListForReference(ctx context.Context) ([]domain.Contact, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.ContactStatus, audit domain.AuditEntry) (domain.Contact, error)
	AssignSDR(ctx context.Context, id uuid.UUID, assignment domain.Assignment, audit domain.AuditEntry) (domain.Contact, domain.Assignment, error)
}

// AssignmentRepository owns assignment records. Deactivation is logical so
// history is preserved.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment domain.Assignment) (domain.Assignment, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Assignment, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter domain.AssignmentFilter) ([]domain.Assignment, error)
}

// AuditRepository is the append-only audit sink.
type AuditRepository interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
	ListByEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit, offset int) ([]domain.AuditEntry, error)
}

// UserRepository resolves actors.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}
