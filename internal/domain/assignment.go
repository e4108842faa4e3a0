package domain

import (
	"time"

	"github.com/google/uuid"
)

// Assignment links a responsible user (researcher or SDR) to a segment,
// company, or contact. Assignments are deactivated rather than deleted so
// history is preserved.
type Assignment struct {
	ID         uuid.UUID  `json:"id"`
	EntityType EntityType `json:"entityType"`
	EntityID   uuid.UUID  `json:"entityId"`
	AssignedTo uuid.UUID  `json:"assignedTo"`
	AssignedBy uuid.UUID  `json:"assignedBy"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// NewAssignment creates an active assignment.
func NewAssignment(entityType EntityType, entityID, assignedTo, assignedBy uuid.UUID) Assignment {
	now := time.Now()
	return Assignment{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		AssignedTo: assignedTo,
		AssignedBy: assignedBy,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SingleValued reports whether only one active assignment may exist per
// entity of this type. SDR-on-contact is single-valued; assigning a new SDR
// deactivates the previous one. Segments and companies accept any number of
// active assignments.
func (t EntityType) SingleValued() bool {
	return t == EntityTypeContact
}

// AssignmentFilter narrows assignment listings.
type AssignmentFilter struct {
	EntityType     EntityType
	EntityID       *uuid.UUID
	AssignedTo     *uuid.UUID
	IncludeHistory bool
}
