package lifecycle

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jmarlowe/leadpipe/internal/authz"
	"github.com/jmarlowe/leadpipe/internal/domain"
	"github.com/jmarlowe/leadpipe/internal/repository"
)

// Service drives entity lifecycle transitions. Every mutation is guarded by
// role policy, conditioned on the entity's current status, and audited in the
// same transaction as the status change.
type Service struct {
	companies repository.CompanyRepository
	contacts  repository.ContactRepository
	guard     authz.Guard
	logger    *logrus.Entry
}

// NewService wires a lifecycle service.
func NewService(companies repository.CompanyRepository, contacts repository.ContactRepository, guard authz.Guard, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		companies: companies,
		contacts:  contacts,
		guard:     guard,
		logger:    logger.WithField("component", "lifecycle"),
	}
}

// ApproveCompany moves a pending company to approved.
func (s *Service) ApproveCompany(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Company, error) {
	if err := s.guard.Require(actor, authz.ObjectCompany, authz.ActionApprove); err != nil {
		return domain.Company{}, err
	}
	from, to, err := CompanyTransition(ActionApprove)
	if err != nil {
		return domain.Company{}, err
	}
	audit := domain.NewAuditEntry(actor.ID, string(ActionApprove), domain.EntityTypeCompany, id).
		WithTransition(string(from), string(to))
	company, err := s.companies.TransitionStatus(ctx, id, from, to, "", audit)
	if err != nil {
		return domain.Company{}, err
	}
	s.logger.WithFields(logrus.Fields{"company_id": id, "actor_id": actor.ID}).Info("company approved")
	return company, nil
}

// RejectCompany moves a pending company to rejected. A non-empty reason is
// required; rejected is terminal.
func (s *Service) RejectCompany(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (domain.Company, error) {
	if err := s.guard.Require(actor, authz.ObjectCompany, authz.ActionReject); err != nil {
		return domain.Company{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Company{}, domain.NewTransitionError(domain.TransitionInvalid, "rejection requires a reason")
	}
	from, to, err := CompanyTransition(ActionReject)
	if err != nil {
		return domain.Company{}, err
	}
	audit := domain.NewAuditEntry(actor.ID, string(ActionReject), domain.EntityTypeCompany, id).
		WithTransition(string(from), string(to)).
		WithDetails(map[string]any{"reason": reason})
	company, err := s.companies.TransitionStatus(ctx, id, from, to, reason, audit)
	if err != nil {
		return domain.Company{}, err
	}
	s.logger.WithFields(logrus.Fields{"company_id": id, "actor_id": actor.ID}).Info("company rejected")
	return company, nil
}

// ApproveContact moves an uploaded contact to approved.
func (s *Service) ApproveContact(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Contact, error) {
	if err := s.guard.Require(actor, authz.ObjectContact, authz.ActionApprove); err != nil {
		return domain.Contact{}, err
	}
	return s.advanceContact(ctx, actor, id, ActionApprove)
}

// ScheduleMeeting moves an SDR-assigned contact to meeting_scheduled, the
// final contact state.
func (s *Service) ScheduleMeeting(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Contact, error) {
	if err := s.guard.Require(actor, authz.ObjectContact, authz.ActionScheduleMeeting); err != nil {
		return domain.Contact{}, err
	}
	return s.advanceContact(ctx, actor, id, ActionScheduleMeeting)
}

func (s *Service) advanceContact(ctx context.Context, actor domain.Actor, id uuid.UUID, action Action) (domain.Contact, error) {
	from, to, err := ContactTransition(action)
	if err != nil {
		return domain.Contact{}, err
	}
	audit := domain.NewAuditEntry(actor.ID, string(action), domain.EntityTypeContact, id).
		WithTransition(string(from), string(to))
	contact, err := s.contacts.TransitionStatus(ctx, id, from, to, audit)
	if err != nil {
		return domain.Contact{}, err
	}
	s.logger.WithFields(logrus.Fields{"contact_id": id, "actor_id": actor.ID, "status": to}).Info("contact advanced")
	return contact, nil
}

// BulkResult reports the outcome of one entity in a bulk transition.
type BulkResult struct {
	ID      uuid.UUID       `json:"id"`
	Contact *domain.Contact `json:"contact,omitempty"`
	Err     error           `json:"-"`
	Error   string          `json:"error,omitempty"`
}

// BulkApproveContacts approves each contact independently. One invalid or
// missing contact never blocks the rest; per-id outcomes are returned in
// input order.
func (s *Service) BulkApproveContacts(ctx context.Context, actor domain.Actor, ids []uuid.UUID) ([]BulkResult, error) {
	if err := s.guard.Require(actor, authz.ObjectContact, authz.ActionApprove); err != nil {
		return nil, err
	}
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		contact, err := s.advanceContact(ctx, actor, id, ActionApprove)
		res := BulkResult{ID: id}
		if err != nil {
			res.Err = err
			res.Error = err.Error()
		} else {
			c := contact
			res.Contact = &c
		}
		results = append(results, res)
	}
	return results, nil
}

// GetCompany returns one company.
func (s *Service) GetCompany(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Company, error) {
	if err := s.guard.Require(actor, authz.ObjectCompany, authz.ActionRead); err != nil {
		return domain.Company{}, err
	}
	return s.companies.GetByID(ctx, id)
}

// GetContact returns one contact.
func (s *Service) GetContact(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Contact, error) {
	if err := s.guard.Require(actor, authz.ObjectContact, authz.ActionRead); err != nil {
		return domain.Contact{}, err
	}
	return s.contacts.GetByID(ctx, id)
}
