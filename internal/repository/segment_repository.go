package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jmarlowe/leadpipe/internal/db"
	"github.com/jmarlowe/leadpipe/internal/domain"
)

type segmentRepository struct {
	conn *db.Connection
}

// NewSegmentRepository wires a segment repository backed by pgxpool.
func NewSegmentRepository(conn *db.Connection) SegmentRepository {
	return &segmentRepository{conn: conn}
}

func (r *segmentRepository) Create(ctx context.Context, segment domain.Segment) (domain.Segment, error) {
	_, err := r.conn.Pool.Exec(ctx,
		`INSERT INTO segments (id, name, description, status, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		segment.ID, segment.Name, nullString(segment.Description), segment.Status,
		segment.CreatedBy, segment.CreatedAt, segment.UpdatedAt)
	if err != nil {
		return domain.Segment{}, classify("create segment", err)
	}
	return segment, nil
}

func (r *segmentRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Segment, error) {
	var (
		segment     domain.Segment
		description pgtype.Text
	)
	err := r.conn.Pool.QueryRow(ctx,
		`SELECT id, name, description, status, created_by, created_at, updated_at
		 FROM segments WHERE id = $1`, id).
		Scan(&segment.ID, &segment.Name, &description, &segment.Status, &segment.CreatedBy, &segment.CreatedAt, &segment.UpdatedAt)
	if err != nil {
		return domain.Segment{}, classify("get segment", err)
	}
	segment.Description = description.String

	offerings, err := r.loadOfferings(ctx, id)
	if err != nil {
		return domain.Segment{}, err
	}
	segment.Offerings = offerings
	return segment, nil
}

func (r *segmentRepository) ListActive(ctx context.Context) ([]domain.Segment, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT id, name, description, status, created_by, created_at, updated_at
		 FROM segments WHERE status = 'active' ORDER BY name`)
	if err != nil {
		return nil, classify("list active segments", err)
	}
	defer rows.Close()

	segments := []domain.Segment{}
	for rows.Next() {
		var (
			segment     domain.Segment
			description pgtype.Text
		)
		if scanErr := rows.Scan(&segment.ID, &segment.Name, &description, &segment.Status, &segment.CreatedBy, &segment.CreatedAt, &segment.UpdatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", scanErr)
		}
		segment.Description = description.String
		segments = append(segments, segment)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, classify("list active segments", rowsErr)
	}
	return segments, nil
}

func (r *segmentRepository) Archive(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn.Pool.Exec(ctx,
		`UPDATE segments SET status = 'archived', updated_at = now() WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return classify("archive segment", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *segmentRepository) loadOfferings(ctx context.Context, segmentID uuid.UUID) ([]domain.Offering, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT o.id, o.name, o.description
		 FROM offerings o
		 JOIN segment_offerings so ON so.offering_id = o.id
		 WHERE so.segment_id = $1
		 ORDER BY o.name`, segmentID)
	if err != nil {
		return nil, classify("load offerings", err)
	}
	defer rows.Close()

	var offerings []domain.Offering
	for rows.Next() {
		var (
			offering    domain.Offering
			description pgtype.Text
		)
		if scanErr := rows.Scan(&offering.ID, &offering.Name, &description); scanErr != nil {
			return nil, fmt.Errorf("failed to scan offering: %w", scanErr)
		}
		offering.Description = description.String
		offerings = append(offerings, offering)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, classify("load offerings", rowsErr)
	}
	return offerings, nil
}
