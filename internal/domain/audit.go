package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one append-only record of a state-changing action. Lifecycle
// transitions must write exactly one entry; if the write fails the whole
// transition is rolled back.
type AuditEntry struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    uuid.UUID      `json:"actorId"`
	Action     string         `json:"action"`
	EntityType EntityType     `json:"entityType"`
	EntityID   uuid.UUID      `json:"entityId"`
	FromState  string         `json:"fromState,omitempty"`
	ToState    string         `json:"toState,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// NewAuditEntry creates an audit record for an actor action.
func NewAuditEntry(actorID uuid.UUID, action string, entityType EntityType, entityID uuid.UUID) AuditEntry {
	return AuditEntry{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  time.Now(),
	}
}

// WithTransition records the from/to states of a lifecycle transition.
func (e AuditEntry) WithTransition(from, to string) AuditEntry {
	e.FromState = from
	e.ToState = to
	return e
}

// WithDetails attaches structured context to the entry.
func (e AuditEntry) WithDetails(details map[string]any) AuditEntry {
	e.Details = details
	return e
}
