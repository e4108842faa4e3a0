package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jmarlowe/leadpipe/internal/db"
	"github.com/jmarlowe/leadpipe/internal/domain"
)

type batchRepository struct {
	conn *db.Connection
}

// NewBatchRepository wires a batch repository backed by pgxpool.
func NewBatchRepository(conn *db.Connection) BatchRepository {
	return &batchRepository{conn: conn}
}

const batchColumns = `id, entity_type, file_name, file_size_bytes, status, total_rows, valid_rows, invalid_rows, failure_reason, submitted_by, created_at, completed_at`

func (r *batchRepository) Create(ctx context.Context, batch domain.UploadBatch) (domain.UploadBatch, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`INSERT INTO upload_batches (id, entity_type, file_name, file_size_bytes, status, total_rows, valid_rows, invalid_rows, submitted_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, 0, 0, 0, $6, $7)
		 RETURNING `+batchColumns,
		batch.ID, batch.EntityType, batch.FileName, batch.FileSizeBytes, batch.Status, batch.SubmittedBy, batch.CreatedAt,
	)
	created, err := scanBatch(row)
	if err != nil {
		return domain.UploadBatch{}, classify("create batch", err)
	}
	return created, nil
}

func (r *batchRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.UploadBatch, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM upload_batches WHERE id = $1`, id)
	batch, err := scanBatch(row)
	if err != nil {
		return domain.UploadBatch{}, classify("get batch", err)
	}
	return batch, nil
}

func (r *batchRepository) ListBySubmitter(ctx context.Context, submittedBy uuid.UUID, limit int) ([]domain.UploadBatch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+batchColumns+` FROM upload_batches
		 WHERE submitted_by = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		submittedBy, limit)
	if err != nil {
		return nil, classify("list batches", err)
	}
	defer rows.Close()

	batches := []domain.UploadBatch{}
	for rows.Next() {
		batch, scanErr := scanBatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", scanErr)
		}
		batches = append(batches, batch)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, classify("list batches", rowsErr)
	}
	return batches, nil
}

func (r *batchRepository) StagePayload(ctx context.Context, batchID uuid.UUID, data []byte, overrides map[string]string) error {
	overridesJSON, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("failed to marshal overrides: %w", err)
	}
	_, err = r.conn.Pool.Exec(ctx,
		`INSERT INTO upload_payloads (batch_id, data, overrides) VALUES ($1, $2, $3)`,
		batchID, data, overridesJSON)
	return classify("stage payload", err)
}

func (r *batchRepository) GetPayload(ctx context.Context, batchID uuid.UUID) ([]byte, map[string]string, error) {
	var (
		data          []byte
		overridesJSON []byte
	)
	err := r.conn.Pool.QueryRow(ctx,
		`SELECT data, overrides FROM upload_payloads WHERE batch_id = $1`, batchID).
		Scan(&data, &overridesJSON)
	if err != nil {
		return nil, nil, classify("get payload", err)
	}
	overrides := map[string]string{}
	if len(overridesJSON) > 0 {
		if err := json.Unmarshal(overridesJSON, &overrides); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal overrides: %w", err)
		}
	}
	return data, overrides, nil
}

func (r *batchRepository) DeletePayload(ctx context.Context, batchID uuid.UUID) error {
	_, err := r.conn.Pool.Exec(ctx, `DELETE FROM upload_payloads WHERE batch_id = $1`, batchID)
	return classify("delete payload", err)
}

func (r *batchRepository) SetTotalRows(ctx context.Context, batchID uuid.UUID, totalRows int) error {
	tag, err := r.conn.Pool.Exec(ctx,
		`UPDATE upload_batches SET total_rows = $2 WHERE id = $1 AND status = 'processing'`,
		batchID, totalRows)
	if err != nil {
		return classify("set total rows", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *batchRepository) ResetProgress(ctx context.Context, batchID uuid.UUID) error {
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM upload_errors WHERE batch_id = $1`, batchID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`UPDATE upload_batches SET valid_rows = 0, invalid_rows = 0 WHERE id = $1 AND status = 'processing'`,
			batchID)
		return err
	})
	return classify("reset batch progress", err)
}

func (r *batchRepository) MarkCompleted(ctx context.Context, batchID uuid.UUID) (domain.UploadBatch, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`UPDATE upload_batches
		 SET status = 'completed', completed_at = now()
		 WHERE id = $1 AND status = 'processing'
		 RETURNING `+batchColumns,
		batchID)
	batch, err := scanBatch(row)
	if err != nil {
		return domain.UploadBatch{}, classify("mark batch completed", err)
	}
	return batch, nil
}

func (r *batchRepository) MarkFailed(ctx context.Context, batchID uuid.UUID, reason string) error {
	_, err := r.conn.Pool.Exec(ctx,
		`UPDATE upload_batches
		 SET status = 'failed', failure_reason = $2, completed_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		batchID, reason)
	return classify("mark batch failed", err)
}

func (r *batchRepository) CommitCompanyRow(ctx context.Context, batchID uuid.UUID, company domain.Company) (domain.Company, error) {
	committed := company
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var insertedID uuid.UUID
		err := tx.QueryRow(ctx,
			`INSERT INTO companies (id, name, website, industry, sub_industry, founded_year, status, segment_id, batch_id, created_by, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT (segment_id, lower(name)) DO NOTHING
			 RETURNING id`,
			company.ID, company.Name, nullString(company.Website), nullString(company.Industry), nullString(company.SubIndustry),
			company.FoundedYear, company.Status, company.SegmentID, batchID, company.CreatedBy, company.CreatedAt, company.UpdatedAt,
		).Scan(&insertedID)
		if err == pgx.ErrNoRows {
			// Natural key taken. An earlier delivery of this batch may have
			// committed the row already; that replay still counts valid.
			row := tx.QueryRow(ctx,
				`SELECT `+companyColumns+` FROM companies WHERE segment_id = $1 AND lower(name) = lower($2)`,
				company.SegmentID, company.Name)
			existing, scanErr := scanCompany(row)
			if scanErr != nil {
				return scanErr
			}
			if existing.BatchID == nil || *existing.BatchID != batchID {
				return domain.ErrDuplicateKey
			}
			committed = existing
		} else if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE upload_batches SET valid_rows = valid_rows + 1 WHERE id = $1`, batchID)
		return err
	})
	if err != nil {
		return domain.Company{}, classify("commit company row", err)
	}
	committed.BatchID = &batchID
	return committed, nil
}

func (r *batchRepository) CommitContactRow(ctx context.Context, batchID uuid.UUID, contact domain.Contact) (domain.Contact, error) {
	committed := contact
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var insertedID uuid.UUID
		err := tx.QueryRow(ctx,
			`INSERT INTO contacts (id, first_name, last_name, email, job_title, linkedin_url, company_id, segment_id, status, batch_id, created_by, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (company_id, lower(email)) DO NOTHING
			 RETURNING id`,
			contact.ID, contact.FirstName, contact.LastName, contact.Email, nullString(contact.JobTitle), nullString(contact.LinkedInURL),
			contact.CompanyID, contact.SegmentID, contact.Status, batchID, contact.CreatedBy, contact.CreatedAt, contact.UpdatedAt,
		).Scan(&insertedID)
		if err == pgx.ErrNoRows {
			row := tx.QueryRow(ctx,
				`SELECT `+contactColumns+` FROM contacts WHERE company_id = $1 AND lower(email) = lower($2)`,
				contact.CompanyID, contact.Email)
			existing, scanErr := scanContact(row)
			if scanErr != nil {
				return scanErr
			}
			if existing.BatchID == nil || *existing.BatchID != batchID {
				return domain.ErrDuplicateKey
			}
			committed = existing
		} else if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE upload_batches SET valid_rows = valid_rows + 1 WHERE id = $1`, batchID)
		return err
	})
	if err != nil {
		return domain.Contact{}, classify("commit contact row", err)
	}
	committed.BatchID = &batchID
	return committed, nil
}

func (r *batchRepository) RecordInvalidRow(ctx context.Context, batchID uuid.UUID, rowErrors []domain.RowError) error {
	if len(rowErrors) == 0 {
		return nil
	}
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, rowErr := range rowErrors {
			if _, err := tx.Exec(ctx,
				`INSERT INTO upload_errors (id, batch_id, row_number, column_name, value, error_message)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.New(), batchID, rowErr.RowNumber, rowErr.Column, rowErr.Value, string(rowErr.Code),
			); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx,
			`UPDATE upload_batches SET invalid_rows = invalid_rows + 1 WHERE id = $1`, batchID)
		return err
	})
	return classify("record invalid row", err)
}

func (r *batchRepository) ListErrors(ctx context.Context, batchID uuid.UUID, filter domain.UploadErrorFilter) ([]domain.UploadError, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT id, batch_id, row_number, column_name, value, error_message, created_at
		 FROM upload_errors WHERE batch_id = $1`)
	args := []any{batchID}

	if filter.RowNumber != nil {
		args = append(args, *filter.RowNumber)
		fmt.Fprintf(&query, " AND row_number = $%d", len(args))
	}
	if filter.ColumnName != "" {
		args = append(args, filter.ColumnName)
		fmt.Fprintf(&query, " AND column_name = $%d", len(args))
	}
	query.WriteString(" ORDER BY row_number, column_name")

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)
	fmt.Fprintf(&query, " LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&query, " OFFSET $%d", len(args))
	}

	rows, err := r.conn.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, classify("list upload errors", err)
	}
	defer rows.Close()

	uploadErrors := []domain.UploadError{}
	for rows.Next() {
		var (
			entry domain.UploadError
			value pgtype.Text
		)
		if scanErr := rows.Scan(&entry.ID, &entry.BatchID, &entry.RowNumber, &entry.ColumnName, &value, &entry.ErrorMessage, &entry.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan upload error: %w", scanErr)
		}
		entry.Value = value.String
		uploadErrors = append(uploadErrors, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, classify("list upload errors", rowsErr)
	}
	return uploadErrors, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (domain.UploadBatch, error) {
	var (
		batch         domain.UploadBatch
		failureReason pgtype.Text
		completedAt   pgtype.Timestamptz
	)
	if err := row.Scan(
		&batch.ID, &batch.EntityType, &batch.FileName, &batch.FileSizeBytes, &batch.Status,
		&batch.TotalRows, &batch.ValidRows, &batch.InvalidRows, &failureReason, &batch.SubmittedBy,
		&batch.CreatedAt, &completedAt,
	); err != nil {
		return domain.UploadBatch{}, err
	}
	batch.FailureReason = failureReason.String
	if completedAt.Valid {
		t := completedAt.Time
		batch.CompletedAt = &t
	}
	return batch, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
