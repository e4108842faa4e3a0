package lifecycle

import (
	"github.com/jmarlowe/leadpipe/internal/domain"
)

// Action is an operator-initiated lifecycle transition.
type Action string

const (
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionAssignSDR       Action = "assign_sdr"
	ActionScheduleMeeting Action = "schedule_meeting"
)

// companyTransitions is the full company state machine: pending fans out to
// approved or rejected, and rejected is terminal.
var companyTransitions = map[Action]struct {
	from domain.CompanyStatus
	to   domain.CompanyStatus
}{
	ActionApprove: {domain.CompanyStatusPending, domain.CompanyStatusApproved},
	ActionReject:  {domain.CompanyStatusPending, domain.CompanyStatusRejected},
}

// contactTransitions runs strictly forward, one step at a time.
var contactTransitions = map[Action]struct {
	from domain.ContactStatus
	to   domain.ContactStatus
}{
	ActionApprove:         {domain.ContactStatusUploaded, domain.ContactStatusApproved},
	ActionAssignSDR:       {domain.ContactStatusApproved, domain.ContactStatusAssignedToSDR},
	ActionScheduleMeeting: {domain.ContactStatusAssignedToSDR, domain.ContactStatusMeetingScheduled},
}

// CompanyTransition resolves an action against the company state machine.
func CompanyTransition(action Action) (from, to domain.CompanyStatus, err error) {
	t, ok := companyTransitions[action]
	if !ok {
		return "", "", domain.NewTransitionError(domain.TransitionInvalid, "action %s is not defined for companies", action)
	}
	return t.from, t.to, nil
}

// ContactTransition resolves an action against the contact state machine.
func ContactTransition(action Action) (from, to domain.ContactStatus, err error) {
	t, ok := contactTransitions[action]
	if !ok {
		return "", "", domain.NewTransitionError(domain.TransitionInvalid, "action %s is not defined for contacts", action)
	}
	return t.from, t.to, nil
}
