package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jmarlowe/leadpipe/internal/db"
	"github.com/jmarlowe/leadpipe/internal/domain"
)

type auditRepository struct {
	conn *db.Connection
}

// NewAuditRepository wires the append-only audit sink.
func NewAuditRepository(conn *db.Connection) AuditRepository {
	return &auditRepository{conn: conn}
}

func (r *auditRepository) Record(ctx context.Context, entry domain.AuditEntry) error {
	return classify("record audit entry", insertAudit(ctx, r.conn.Pool, entry))
}

func (r *auditRepository) ListByEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit, offset int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT id, actor_id, action, entity_type, entity_id, from_state, to_state, details, created_at
		 FROM audit_logs
		 WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		entityType, entityID, limit, offset)
	if err != nil {
		return nil, classify("list audit entries", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			entry       domain.AuditEntry
			fromState   pgtype.Text
			toState     pgtype.Text
			detailsJSON []byte
		)
		if scanErr := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.EntityType, &entry.EntityID, &fromState, &toState, &detailsJSON, &entry.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", scanErr)
		}
		entry.FromState = fromState.String
		entry.ToState = toState.String
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, classify("list audit entries", rowsErr)
	}
	return entries, nil
}

// insertAudit writes one audit row on any DBTX, so lifecycle transitions can
// append their entry inside the transition transaction.
func insertAudit(ctx context.Context, q db.DBTX, entry domain.AuditEntry) error {
	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}
	_, err := q.Exec(ctx,
		`INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, from_state, to_state, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		nullString(entry.FromState), nullString(entry.ToState), detailsJSON, entry.CreatedAt)
	return err
}
