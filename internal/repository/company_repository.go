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

type companyRepository struct {
	conn *db.Connection
}

// NewCompanyRepository wires a company repository backed by pgxpool.
func NewCompanyRepository(conn *db.Connection) CompanyRepository {
	return &companyRepository{conn: conn}
}

const companyColumns = `id, name, website, industry, sub_industry, founded_year, status, rejection_reason, segment_id, batch_id, created_by, created_at, updated_at`

func (r *companyRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	company, err := scanCompany(row)
	if err != nil {
		return domain.Company{}, classify("get company", err)
	}
	return company, nil
}

func (r *companyRepository) ListForReference(ctx context.Context) ([]domain.Company, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+companyColumns+` FROM companies ORDER BY created_at`)
	if err != nil {
		return nil, classify("list companies", err)
	}
	defer rows.Close()

	companies := []domain.Company{}
	for rows.Next() {
		company, scanErr := scanCompany(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan company: %w", scanErr)
		}
		companies = append(companies, company)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, classify("list companies", rowsErr)
	}
	return companies, nil
}

// TransitionStatus advances a company conditioned on its expected from-state.
// The conditional update serializes concurrent transition attempts: the loser
// matches zero rows and is rejected. The audit entry is written in the same
// transaction, so a failed audit write rolls the transition back.
func (r *companyRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.CompanyStatus, rejectionReason string, audit domain.AuditEntry) (domain.Company, error) {
	var company domain.Company
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE companies
			 SET status = $3, rejection_reason = $4, updated_at = now()
			 WHERE id = $1 AND status = $2
			 RETURNING `+companyColumns,
			id, from, to, nullString(rejectionReason))
		updated, err := scanCompany(row)
		if err != nil {
			if err == pgx.ErrNoRows {
				return r.transitionConflict(ctx, tx, id, from)
			}
			return err
		}
		company = updated
		return insertAudit(ctx, tx, audit)
	})
	if err != nil {
		return domain.Company{}, err
	}
	return company, nil
}

// transitionConflict distinguishes a missing company from one whose status
// moved under the caller.
func (r *companyRepository) transitionConflict(ctx context.Context, tx pgx.Tx, id uuid.UUID, expected domain.CompanyStatus) error {
	var current domain.CompanyStatus
	err := tx.QueryRow(ctx, `SELECT status FROM companies WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.NewTransitionError(domain.TransitionNotFound, "company %s not found", id)
		}
		return classify("get company status", err)
	}
	return domain.NewTransitionError(domain.TransitionInvalid, "company %s is %s, expected %s", id, current, expected)
}

func scanCompany(row rowScanner) (domain.Company, error) {
	var (
		company         domain.Company
		website         pgtype.Text
		industry        pgtype.Text
		subIndustry     pgtype.Text
		foundedYear     pgtype.Int4
		rejectionReason pgtype.Text
		batchID         *uuid.UUID
	)
	if err := row.Scan(
		&company.ID, &company.Name, &website, &industry, &subIndustry, &foundedYear,
		&company.Status, &rejectionReason, &company.SegmentID, &batchID,
		&company.CreatedBy, &company.CreatedAt, &company.UpdatedAt,
	); err != nil {
		return domain.Company{}, err
	}
	company.Website = website.String
	company.Industry = industry.String
	company.SubIndustry = subIndustry.String
	company.RejectionReason = rejectionReason.String
	company.BatchID = batchID
	if foundedYear.Valid {
		year := int(foundedYear.Int32)
		company.FoundedYear = &year
	}
	return company, nil
}
