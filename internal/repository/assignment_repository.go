package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jmarlowe/leadpipe/internal/db"
	"github.com/jmarlowe/leadpipe/internal/domain"
)

type assignmentRepository struct {
	conn *db.Connection
}

// NewAssignmentRepository wires an assignment repository backed by pgxpool.
func NewAssignmentRepository(conn *db.Connection) AssignmentRepository {
	return &assignmentRepository{conn: conn}
}

const assignmentColumns = `id, entity_type, entity_id, assigned_to, assigned_by, is_active, created_at, updated_at`

func (r *assignmentRepository) Create(ctx context.Context, assignment domain.Assignment) (domain.Assignment, error) {
	_, err := r.conn.Pool.Exec(ctx,
		`INSERT INTO assignments (`+assignmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		assignment.ID, assignment.EntityType, assignment.EntityID, assignment.AssignedTo,
		assignment.AssignedBy, assignment.IsActive, assignment.CreatedAt, assignment.UpdatedAt)
	if err != nil {
		return domain.Assignment{}, classify("create assignment", err)
	}
	return assignment, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Assignment, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	assignment, err := scanAssignment(row)
	if err != nil {
		return domain.Assignment{}, classify("get assignment", err)
	}
	return assignment, nil
}

func (r *assignmentRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn.Pool.Exec(ctx,
		`UPDATE assignments SET is_active = false, updated_at = now() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return classify("deactivate assignment", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *assignmentRepository) List(ctx context.Context, filter domain.AssignmentFilter) ([]domain.Assignment, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + assignmentColumns + ` FROM assignments WHERE 1=1`)
	args := []any{}

	if !filter.IncludeHistory {
		query.WriteString(" AND is_active")
	}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		fmt.Fprintf(&query, " AND entity_type = $%d", len(args))
	}
	if filter.EntityID != nil {
		args = append(args, *filter.EntityID)
		fmt.Fprintf(&query, " AND entity_id = $%d", len(args))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		fmt.Fprintf(&query, " AND assigned_to = $%d", len(args))
	}
	query.WriteString(" ORDER BY created_at DESC")

	rows, err := r.conn.Pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, classify("list assignments", err)
	}
	defer rows.Close()

	assignments := []domain.Assignment{}
	for rows.Next() {
		assignment, scanErr := scanAssignment(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", scanErr)
		}
		assignments = append(assignments, assignment)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, classify("list assignments", rowsErr)
	}
	return assignments, nil
}

func scanAssignment(row rowScanner) (domain.Assignment, error) {
	var assignment domain.Assignment
	if err := row.Scan(
		&assignment.ID, &assignment.EntityType, &assignment.EntityID, &assignment.AssignedTo,
		&assignment.AssignedBy, &assignment.IsActive, &assignment.CreatedAt, &assignment.UpdatedAt,
	); err != nil {
		return domain.Assignment{}, err
	}
	return assignment, nil
}
