package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jmarlowe/leadpipe/internal/db"
	"github.com/jmarlowe/leadpipe/internal/domain"
)

type contactRepository struct {
	conn *db.Connection
}

// NewContactRepository wires a contact repository backed by pgxpool.
func NewContactRepository(conn *db.Connection) ContactRepository {
	return &contactRepository{conn: conn}
}

const contactColumns = `id, first_name, last_name, email, job_title, linkedin_url, company_id, segment_id, status, assigned_sdr_id, batch_id, created_by, created_at, updated_at`

func (r *contactRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Contact, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	contact, err := scanContact(row)
	if err != nil {
		return domain.Contact{}, classify("get contact", err)
	}
	return contact, nil
}

func (r *contactRepository) ListForReference(ctx context.Context) ([]domain.Contact, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts ORDER BY created_at`)
	if err != nil {
		return nil, classify("list contacts", err)
	}
	defer rows.Close()

	contacts := []domain.Contact{}
	for rows.Next() {
		contact, scanErr := scanContact(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", scanErr)
		}
		contacts = append(contacts, contact)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, classify("list contacts", rowsErr)
	}
	return contacts, nil
}

// TransitionStatus advances a contact one step, conditioned on the expected
// from-state, with the audit entry in the same transaction.
func (r *contactRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.ContactStatus, audit domain.AuditEntry) (domain.Contact, error) {
	var contact domain.Contact
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE contacts
			 SET status = $3, updated_at = now()
			 WHERE id = $1 AND status = $2
			 RETURNING `+contactColumns,
			id, from, to)
		updated, err := scanContact(row)
		if err != nil {
			if err == pgx.ErrNoRows {
				return r.transitionConflict(ctx, tx, id, from)
			}
			return err
		}
		contact = updated
		return insertAudit(ctx, tx, audit)
	})
	if err != nil {
		return domain.Contact{}, err
	}
	return contact, nil
}

// AssignSDR advances the contact to assigned_to_sdr, sets assigned_sdr_id,
// deactivates any previous SDR assignment, inserts the new one, and writes
// the audit entry in one transaction. SDR-on-contact is single valued,
// so the deactivate and insert are not separately failable steps.
func (r *contactRepository) AssignSDR(ctx context.Context, id uuid.UUID, assignment domain.Assignment, audit domain.AuditEntry) (domain.Contact, domain.Assignment, error) {
	var contact domain.Contact
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE contacts
			 SET status = $3, assigned_sdr_id = $4, updated_at = now()
			 WHERE id = $1 AND status = $2
			 RETURNING `+contactColumns,
			id, domain.ContactStatusApproved, domain.ContactStatusAssignedToSDR, assignment.AssignedTo)
		updated, err := scanContact(row)
		if err != nil {
			if err == pgx.ErrNoRows {
				return r.transitionConflict(ctx, tx, id, domain.ContactStatusApproved)
			}
			return err
		}
		contact = updated

		if _, err := tx.Exec(ctx,
			`UPDATE assignments SET is_active = false, updated_at = now()
			 WHERE entity_type = $1 AND entity_id = $2 AND is_active`,
			domain.EntityTypeContact, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO assignments (id, entity_type, entity_id, assigned_to, assigned_by, is_active, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			assignment.ID, assignment.EntityType, assignment.EntityID, assignment.AssignedTo,
			assignment.AssignedBy, assignment.IsActive, assignment.CreatedAt, assignment.UpdatedAt,
		); err != nil {
			return err
		}
		return insertAudit(ctx, tx, audit)
	})
	if err != nil {
		return domain.Contact{}, domain.Assignment{}, err
	}
	return contact, assignment, nil
}

func (r *contactRepository) transitionConflict(ctx context.Context, tx pgx.Tx, id uuid.UUID, expected domain.ContactStatus) error {
	var current domain.ContactStatus
	err := tx.QueryRow(ctx, `SELECT status FROM contacts WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.NewTransitionError(domain.TransitionNotFound, "contact %s not found", id)
		}
		return classify("get contact status", err)
	}
	return domain.NewTransitionError(domain.TransitionInvalid, "contact %s is %s, expected %s", id, current, expected)
}

func scanContact(row rowScanner) (domain.Contact, error) {
	var (
		contact     domain.Contact
		jobTitle    pgtype.Text
		linkedinURL pgtype.Text
		sdrID       *uuid.UUID
		batchID     *uuid.UUID
	)
	if err := row.Scan(
		&contact.ID, &contact.FirstName, &contact.LastName, &contact.Email, &jobTitle, &linkedinURL,
		&contact.CompanyID, &contact.SegmentID, &contact.Status, &sdrID, &batchID,
		&contact.CreatedBy, &contact.CreatedAt, &contact.UpdatedAt,
	); err != nil {
		return domain.Contact{}, err
	}
	contact.JobTitle = jobTitle.String
	contact.LinkedInURL = linkedinURL.String
	contact.AssignedSDRID = sdrID
	contact.BatchID = batchID
	return contact, nil
}
