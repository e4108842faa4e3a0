package domain

import (
	"time"

	"github.com/google/uuid"
)

// SegmentStatus marks whether a segment accepts new companies.
type SegmentStatus string

const (
	SegmentStatusActive   SegmentStatus = "active"
	SegmentStatusArchived SegmentStatus = "archived"
)

// Segment is a market segment companies are imported into. A segment must be
// active at import time for a company row to validate against it.
type Segment struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      SegmentStatus `json:"status"`
	Offerings   []Offering    `json:"offerings,omitempty"`
	CreatedBy   uuid.UUID     `json:"createdBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Offering is a product or service attached to one or more segments.
type Offering struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

// NewSegment creates an active segment.
func NewSegment(name, description string, createdBy uuid.UUID) Segment {
	now := time.Now()
	return Segment{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Status:      SegmentStatusActive,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
