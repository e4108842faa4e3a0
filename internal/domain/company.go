package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CompanyStatus is the lifecycle status of a company record. Rejected is
// terminal: no further transition is permitted.
type CompanyStatus string

const (
	CompanyStatusPending  CompanyStatus = "pending"
	CompanyStatusApproved CompanyStatus = "approved"
	CompanyStatusRejected CompanyStatus = "rejected"
)

// Company is a prospect company imported into a segment. Created in pending
// state by the import orchestrator; status mutated only by the lifecycle
// service.
type Company struct {
	ID              uuid.UUID     `json:"id"`
	Name            string        `json:"name"`
	Website         string        `json:"website,omitempty"`
	Industry        string        `json:"industry,omitempty"`
	SubIndustry     string        `json:"subIndustry,omitempty"`
	FoundedYear     *int          `json:"foundedYear,omitempty"`
	Status          CompanyStatus `json:"status"`
	RejectionReason string        `json:"rejectionReason,omitempty"`
	SegmentID       uuid.UUID     `json:"segmentId"`
	BatchID         *uuid.UUID    `json:"batchId,omitempty"`
	CreatedBy       uuid.UUID     `json:"createdBy"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// NewCompany creates a pending company owned by its segment.
func NewCompany(name string, segmentID, createdBy uuid.UUID) Company {
	now := time.Now()
	return Company{
		ID:        uuid.New(),
		Name:      name,
		Status:    CompanyStatusPending,
		SegmentID: segmentID,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NormalizeCompanyName trims and title-cases a company name so duplicate
// detection and display agree on one canonical spelling.
func NormalizeCompanyName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	words := strings.Fields(name)
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			words[i] = strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
		}
	}
	return strings.Join(words, " ")
}

// NormalizeURL lowercases a URL and defaults the scheme to https.
func NormalizeURL(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return raw
}

// CompanyKey is the natural key used for duplicate detection: normalized name
// within one segment.
func CompanyKey(segmentID uuid.UUID, name string) string {
	return segmentID.String() + "|" + strings.ToLower(strings.TrimSpace(name))
}
