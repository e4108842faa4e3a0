package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jmarlowe/leadpipe/internal/authz"
	"github.com/jmarlowe/leadpipe/internal/config"
	"github.com/jmarlowe/leadpipe/internal/domain"
	"github.com/jmarlowe/leadpipe/internal/mapping"
	"github.com/jmarlowe/leadpipe/internal/repository"
	"github.com/jmarlowe/leadpipe/internal/schema"
	"github.com/jmarlowe/leadpipe/internal/validation"
)

// Enqueuer hands an accepted batch to the background worker.
type Enqueuer interface {
	EnqueueProcessBatch(ctx context.Context, batchID uuid.UUID) error
}

// Notifier is called once per batch when processing reaches a terminal state.
type Notifier interface {
	BatchFinished(ctx context.Context, batch domain.UploadBatch)
}

// LogNotifier reports batch completion to the log. Stands in until a real
// notification channel is wired.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n LogNotifier) BatchFinished(_ context.Context, batch domain.UploadBatch) {
	logger := n.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"batch_id":     batch.ID,
		"status":       batch.Status,
		"total_rows":   batch.TotalRows,
		"valid_rows":   batch.ValidRows,
		"invalid_rows": batch.InvalidRows,
	}).Info("batch finished")
}

// Service is the import orchestrator. Submit accepts a file, creates the
// batch, and hands it to the worker; Process runs a staged batch to a
// terminal state. One batch is processed by exactly one worker invocation,
// rows strictly in file order.
type Service struct {
	batches   repository.BatchRepository
	segments  repository.SegmentRepository
	companies repository.CompanyRepository
	contacts  repository.ContactRepository
	mapper    *mapping.Mapper
	validator *validation.RowValidator
	enqueuer  Enqueuer
	notifier  Notifier
	guard     authz.Guard
	cfg       config.ImportConfig
	logger    *logrus.Entry
}

// NewService wires the import orchestrator.
func NewService(
	batches repository.BatchRepository,
	segments repository.SegmentRepository,
	companies repository.CompanyRepository,
	contacts repository.ContactRepository,
	registry *schema.Registry,
	enqueuer Enqueuer,
	notifier Notifier,
	guard authz.Guard,
	cfg config.ImportConfig,
	logger *logrus.Logger,
) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Service{
		batches:   batches,
		segments:  segments,
		companies: companies,
		contacts:  contacts,
		mapper:    mapping.NewMapper(registry),
		validator: validation.NewRowValidator(registry),
		enqueuer:  enqueuer,
		notifier:  notifier,
		guard:     guard,
		cfg:       cfg,
		logger:    logger.WithField("component", "importer"),
	}
}

// SubmitRequest describes one uploaded file.
type SubmitRequest struct {
	EntityType domain.EntityType
	FileName   string
	Data       io.Reader
	// Overrides maps source column headers to canonical field keys. The value
	// "-" excludes a column.
	Overrides map[string]string
}

// Submit validates the upload envelope, creates the batch in processing
// state, stages the payload, and enqueues background processing. Validation
// of file contents happens in the worker; Submit only refuses what can be
// refused cheaply.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, req SubmitRequest) (domain.UploadBatch, error) {
	if err := s.guard.Require(actor, authz.ObjectUpload, authz.ActionImport); err != nil {
		return domain.UploadBatch{}, err
	}
	if req.EntityType != domain.EntityTypeCompany && req.EntityType != domain.EntityTypeContact {
		return domain.UploadBatch{}, &domain.BatchError{Reason: fmt.Sprintf("entity type %s cannot be imported", req.EntityType)}
	}
	if strings.TrimSpace(req.FileName) == "" {
		return domain.UploadBatch{}, &domain.BatchError{Reason: "file name is required"}
	}
	if req.Data == nil {
		return domain.UploadBatch{}, &domain.BatchError{Reason: "file data is required"}
	}

	payload, err := io.ReadAll(io.LimitReader(req.Data, s.cfg.MaxFileSize+1))
	if err != nil {
		return domain.UploadBatch{}, &domain.BatchError{Reason: "failed to read upload", Cause: err}
	}
	if len(payload) == 0 {
		return domain.UploadBatch{}, &domain.BatchError{Reason: "file is empty"}
	}
	if int64(len(payload)) > s.cfg.MaxFileSize {
		return domain.UploadBatch{}, &domain.BatchError{Reason: fmt.Sprintf("file exceeds maximum size of %d bytes", s.cfg.MaxFileSize)}
	}
	ext := strings.ToLower(strings.TrimPrefix(fileExt(req.FileName), "."))
	if ext != "csv" && ext != "xlsx" {
		return domain.UploadBatch{}, &domain.BatchError{Reason: "unsupported file format", Cause: ErrUnsupportedFormat}
	}

	batch := domain.NewUploadBatch(req.EntityType, req.FileName, int64(len(payload)), actor.ID)
	created, err := s.batches.Create(ctx, batch)
	if err != nil {
		return domain.UploadBatch{}, err
	}
	if err := s.batches.StagePayload(ctx, created.ID, payload, req.Overrides); err != nil {
		return domain.UploadBatch{}, err
	}
	if err := s.enqueuer.EnqueueProcessBatch(ctx, created.ID); err != nil {
		reason := "failed to enqueue batch for processing"
		if markErr := s.batches.MarkFailed(ctx, created.ID, reason); markErr != nil {
			s.logger.WithError(markErr).WithField("batch_id", created.ID).Error("failed to mark batch failed")
		}
		return domain.UploadBatch{}, &domain.BatchError{Reason: reason, Cause: err}
	}

	s.logger.WithFields(logrus.Fields{
		"batch_id":    created.ID,
		"entity_type": created.EntityType,
		"file_name":   created.FileName,
		"file_size":   created.FileSizeBytes,
	}).Info("batch submitted")
	return created, nil
}

// Process runs one staged batch to completion. Row errors are recorded and
// skipped; batch-level failures (unmapped required columns, unreadable file,
// systemic storage failure, timeout) mark the batch failed with one reason.
// Re-delivery of a terminal batch is a no-op.
func (s *Service) Process(ctx context.Context, batchID uuid.UUID) error {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Terminal() {
		s.logger.WithField("batch_id", batchID).Info("batch already terminal, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	payload, overrides, err := s.batches.GetPayload(ctx, batchID)
	if err != nil {
		return s.fail(ctx, batchID, "staged payload unavailable", err)
	}

	table, err := parseTable(batch.FileName, payload)
	if err != nil {
		return s.fail(ctx, batchID, err.Error(), nil)
	}

	colMapping, err := s.mapper.Map(batch.EntityType, table.headers, overrides)
	if err != nil {
		return s.fail(ctx, batchID, err.Error(), nil)
	}
	if err := s.mapper.Validate(colMapping); err != nil {
		return s.fail(ctx, batchID, err.Error(), nil)
	}

	if err := s.batches.SetTotalRows(ctx, batchID, len(table.rows)); err != nil {
		return s.fail(ctx, batchID, "failed to record row count", err)
	}

	// A redelivered batch (worker died mid-run) replays every row, so its
	// accounting starts over. Rows the earlier delivery committed replay as
	// valid through the repository; everything else is recomputed.
	if err := s.batches.ResetProgress(ctx, batchID); err != nil {
		return s.fail(ctx, batchID, "failed to reset batch progress", err)
	}

	ref, err := s.loadRefData(ctx, batch)
	if err != nil {
		return s.fail(ctx, batchID, "failed to load reference data", err)
	}

	for idx, row := range table.rows {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return s.fail(ctx, batchID, "processing timed out", ctxErr)
		}

		rowNumber := table.rowNumbers[idx]
		values := colMapping.RowValues(row)

		var rowErr error
		switch batch.EntityType {
		case domain.EntityTypeCompany:
			rowErr = s.processCompanyRow(ctx, batch, rowNumber, values, ref)
		case domain.EntityTypeContact:
			rowErr = s.processContactRow(ctx, batch, rowNumber, values, ref)
		}
		if rowErr != nil {
			return s.fail(ctx, batchID, "storage failure during row processing", rowErr)
		}
	}

	completed, err := s.batches.MarkCompleted(ctx, batchID)
	if err != nil {
		return s.fail(ctx, batchID, "failed to complete batch", err)
	}
	if err := s.batches.DeletePayload(ctx, batchID); err != nil {
		s.logger.WithError(err).WithField("batch_id", batchID).Warn("failed to delete staged payload")
	}
	s.notifier.BatchFinished(ctx, completed)
	return nil
}

// processCompanyRow validates and persists one company row. Returns an error
// only for systemic failures that must abort the batch.
func (s *Service) processCompanyRow(ctx context.Context, batch domain.UploadBatch, rowNumber int, values map[string]string, ref *validation.RefData) error {
	payload, rowErrors := s.validator.ValidateCompanyRow(rowNumber, values, ref)
	if len(rowErrors) > 0 {
		return s.recordInvalid(ctx, batch.ID, rowErrors)
	}

	company := domain.NewCompany(payload.Name, payload.Segment.ID, batch.SubmittedBy)
	company.Website = payload.Website
	company.Industry = payload.Industry
	company.SubIndustry = payload.SubIndustry
	company.FoundedYear = payload.FoundedYear
	batchID := batch.ID
	company.BatchID = &batchID

	created, err := s.batches.CommitCompanyRow(ctx, batch.ID, company)
	switch {
	case err == nil:
		ref.AddCompany(validation.CompanyRef{
			ID:        created.ID,
			SegmentID: created.SegmentID,
			Status:    created.Status,
		}, created.Name)
		return nil
	case errors.Is(err, domain.ErrDuplicateKey):
		// The database is the final arbiter: a company created by a
		// concurrent batch after the snapshot was taken lands here.
		return s.recordInvalid(ctx, batch.ID, []domain.RowError{{
			RowNumber: rowNumber,
			Column:    schema.FieldCompanyName,
			Value:     payload.Name,
			Code:      domain.RowErrDuplicateCompany,
		}})
	case domain.IsSystemic(err):
		return err
	default:
		return s.recordInvalid(ctx, batch.ID, []domain.RowError{{
			RowNumber: rowNumber,
			Column:    schema.FieldCompanyName,
			Value:     payload.Name,
			Code:      domain.RowErrPersistenceFailure,
		}})
	}
}

// processContactRow is the contact counterpart of processCompanyRow.
func (s *Service) processContactRow(ctx context.Context, batch domain.UploadBatch, rowNumber int, values map[string]string, ref *validation.RefData) error {
	payload, rowErrors := s.validator.ValidateContactRow(rowNumber, values, ref)
	if len(rowErrors) > 0 {
		return s.recordInvalid(ctx, batch.ID, rowErrors)
	}

	contact := domain.NewContact(payload.FirstName, payload.LastName, payload.Email, payload.Company.ID, payload.Company.SegmentID, batch.SubmittedBy)
	contact.JobTitle = payload.JobTitle
	contact.LinkedInURL = payload.LinkedInURL
	batchID := batch.ID
	contact.BatchID = &batchID

	created, err := s.batches.CommitContactRow(ctx, batch.ID, contact)
	switch {
	case err == nil:
		ref.AddContactKey(created.CompanyID, created.Email)
		return nil
	case errors.Is(err, domain.ErrDuplicateKey):
		return s.recordInvalid(ctx, batch.ID, []domain.RowError{{
			RowNumber: rowNumber,
			Column:    schema.FieldEmail,
			Value:     payload.Email,
			Code:      domain.RowErrDuplicateContact,
		}})
	case domain.IsSystemic(err):
		return err
	default:
		return s.recordInvalid(ctx, batch.ID, []domain.RowError{{
			RowNumber: rowNumber,
			Column:    schema.FieldEmail,
			Value:     payload.Email,
			Code:      domain.RowErrPersistenceFailure,
		}})
	}
}

// recordInvalid stores one row's errors. A systemic failure propagates so the
// batch aborts; anything else is logged and the batch moves on.
func (s *Service) recordInvalid(ctx context.Context, batchID uuid.UUID, rowErrors []domain.RowError) error {
	err := s.batches.RecordInvalidRow(ctx, batchID, rowErrors)
	if err == nil {
		return nil
	}
	if domain.IsSystemic(err) {
		return err
	}
	s.logger.WithError(err).WithField("batch_id", batchID).Warn("failed to record row errors")
	return nil
}

// loadRefData snapshots the reference data one batch validates against.
// Contacts are loaded only for contact batches; company batches never consult
// contact keys.
func (s *Service) loadRefData(ctx context.Context, batch domain.UploadBatch) (*validation.RefData, error) {
	segments, err := s.segments.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	companies, err := s.companies.ListForReference(ctx)
	if err != nil {
		return nil, err
	}
	var contacts []domain.Contact
	if batch.EntityType == domain.EntityTypeContact {
		contacts, err = s.contacts.ListForReference(ctx)
		if err != nil {
			return nil, err
		}
	}
	return validation.NewRefData(batch.ID, segments, companies, contacts), nil
}

// fail marks the batch failed with one terminating reason. Terminal
// bookkeeping runs on a context detached from the batch deadline so a timeout
// can still be recorded.
func (s *Service) fail(ctx context.Context, batchID uuid.UUID, reason string, cause error) error {
	detached := context.WithoutCancel(ctx)
	if err := s.batches.MarkFailed(detached, batchID, reason); err != nil {
		s.logger.WithError(err).WithField("batch_id", batchID).Error("failed to mark batch failed")
		return err
	}
	if err := s.batches.DeletePayload(detached, batchID); err != nil {
		s.logger.WithError(err).WithField("batch_id", batchID).Warn("failed to delete staged payload")
	}
	if batch, err := s.batches.GetByID(detached, batchID); err == nil {
		s.notifier.BatchFinished(detached, batch)
	}
	s.logger.WithFields(logrus.Fields{"batch_id": batchID, "reason": reason}).WithError(cause).Warn("batch failed")
	return nil
}

// GetBatch returns one batch with its counters.
func (s *Service) GetBatch(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.UploadBatch, error) {
	if err := s.guard.Require(actor, authz.ObjectUpload, authz.ActionRead); err != nil {
		return domain.UploadBatch{}, err
	}
	return s.batches.GetByID(ctx, id)
}

// ListBatches returns the actor's own batches, newest first.
func (s *Service) ListBatches(ctx context.Context, actor domain.Actor, limit int) ([]domain.UploadBatch, error) {
	if err := s.guard.Require(actor, authz.ObjectUpload, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.batches.ListBySubmitter(ctx, actor.ID, limit)
}

// ListErrors returns a batch's validation errors, filtered and paginated.
func (s *Service) ListErrors(ctx context.Context, actor domain.Actor, batchID uuid.UUID, filter domain.UploadErrorFilter) ([]domain.UploadError, error) {
	if err := s.guard.Require(actor, authz.ObjectUpload, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.batches.ListErrors(ctx, batchID, filter)
}

func fileExt(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx:]
	}
	return ""
}
