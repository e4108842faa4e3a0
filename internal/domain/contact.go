package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContactStatus advances strictly forward along the fixed sequence
// uploaded -> approved -> assigned_to_sdr -> meeting_scheduled.
type ContactStatus string

const (
	ContactStatusUploaded         ContactStatus = "uploaded"
	ContactStatusApproved         ContactStatus = "approved"
	ContactStatusAssignedToSDR    ContactStatus = "assigned_to_sdr"
	ContactStatusMeetingScheduled ContactStatus = "meeting_scheduled"
)

var contactStatusRank = map[ContactStatus]int{
	ContactStatusUploaded:         0,
	ContactStatusApproved:         1,
	ContactStatusAssignedToSDR:    2,
	ContactStatusMeetingScheduled: 3,
}

// Rank returns the position of the status in the forward sequence, or -1 for
// an unknown status.
func (s ContactStatus) Rank() int {
	if r, ok := contactStatusRank[s]; ok {
		return r
	}
	return -1
}

// Contact is a person at a company. AssignedSDRID is set if and only if the
// status has reached assigned_to_sdr.
type Contact struct {
	ID            uuid.UUID     `json:"id"`
	FirstName     string        `json:"firstName"`
	LastName      string        `json:"lastName"`
	Email         string        `json:"email"`
	JobTitle      string        `json:"jobTitle,omitempty"`
	LinkedInURL   string        `json:"linkedinUrl,omitempty"`
	CompanyID     uuid.UUID     `json:"companyId"`
	SegmentID     uuid.UUID     `json:"segmentId"`
	Status        ContactStatus `json:"status"`
	AssignedSDRID *uuid.UUID    `json:"assignedSdrId,omitempty"`
	BatchID       *uuid.UUID    `json:"batchId,omitempty"`
	CreatedBy     uuid.UUID     `json:"createdBy"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// NewContact creates an uploaded contact attached to a company. The segment is
// inherited from the company.
func NewContact(firstName, lastName, email string, companyID, segmentID, createdBy uuid.UUID) Contact {
	now := time.Now()
	return Contact{
		ID:        uuid.New(),
		FirstName: firstName,
		LastName:  lastName,
		Email:     NormalizeEmail(email),
		CompanyID: companyID,
		SegmentID: segmentID,
		Status:    ContactStatusUploaded,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ContactKey is the natural key used for duplicate detection: normalized email
// within one company.
func ContactKey(companyID uuid.UUID, email string) string {
	return companyID.String() + "|" + NormalizeEmail(email)
}
