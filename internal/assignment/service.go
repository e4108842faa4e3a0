package assignment

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jmarlowe/leadpipe/internal/authz"
	"github.com/jmarlowe/leadpipe/internal/domain"
	"github.com/jmarlowe/leadpipe/internal/lifecycle"
	"github.com/jmarlowe/leadpipe/internal/repository"
)

// Service manages entity ownership. Assigning an SDR to a contact is the
// coupled case: it advances the contact's status and replaces any prior
// active assignment in one transaction.
type Service struct {
	assignments repository.AssignmentRepository
	contacts    repository.ContactRepository
	users       repository.UserRepository
	guard       authz.Guard
	logger      *logrus.Entry
}

// NewService wires an assignment service.
func NewService(assignments repository.AssignmentRepository, contacts repository.ContactRepository, users repository.UserRepository, guard authz.Guard, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		assignments: assignments,
		contacts:    contacts,
		users:       users,
		guard:       guard,
		logger:      logger.WithField("component", "assignment"),
	}
}

// AssignSDR assigns an approved contact to an SDR. The contact advances to
// assigned_to_sdr; an existing active assignment for the contact is
// deactivated, never deleted, so ownership history survives.
func (s *Service) AssignSDR(ctx context.Context, actor domain.Actor, contactID, sdrID uuid.UUID) (domain.Contact, domain.Assignment, error) {
	if err := s.guard.Require(actor, authz.ObjectContact, authz.ActionAssignSDR); err != nil {
		return domain.Contact{}, domain.Assignment{}, err
	}
	sdr, err := s.users.GetByID(ctx, sdrID)
	if err != nil {
		return domain.Contact{}, domain.Assignment{}, err
	}
	if sdr.Role != domain.RoleSDR {
		return domain.Contact{}, domain.Assignment{}, domain.NewTransitionError(domain.TransitionInvalid, "user %s is not an SDR", sdrID)
	}

	from, to, err := lifecycle.ContactTransition(lifecycle.ActionAssignSDR)
	if err != nil {
		return domain.Contact{}, domain.Assignment{}, err
	}
	assignment := domain.NewAssignment(domain.EntityTypeContact, contactID, sdrID, actor.ID)
	audit := domain.NewAuditEntry(actor.ID, string(lifecycle.ActionAssignSDR), domain.EntityTypeContact, contactID).
		WithTransition(string(from), string(to)).
		WithDetails(map[string]any{"assigned_to": sdrID.String()})
	contact, created, err := s.contacts.AssignSDR(ctx, contactID, assignment, audit)
	if err != nil {
		return domain.Contact{}, domain.Assignment{}, err
	}
	s.logger.WithFields(logrus.Fields{
		"contact_id":  contactID,
		"assigned_to": sdrID,
		"actor_id":    actor.ID,
	}).Info("contact assigned to sdr")
	return contact, created, nil
}

// Assign records ownership of a non-contact entity. Companies may accumulate
// several active assignments; no status change is involved.
func (s *Service) Assign(ctx context.Context, actor domain.Actor, entityType domain.EntityType, entityID, assigneeID uuid.UUID) (domain.Assignment, error) {
	if err := s.guard.Require(actor, authz.ObjectAssignment, authz.ActionAssign); err != nil {
		return domain.Assignment{}, err
	}
	if entityType.SingleValued() {
		return domain.Assignment{}, domain.NewTransitionError(domain.TransitionInvalid, "contact assignment goes through AssignSDR")
	}
	if _, err := s.users.GetByID(ctx, assigneeID); err != nil {
		return domain.Assignment{}, err
	}
	assignment := domain.NewAssignment(entityType, entityID, assigneeID, actor.ID)
	created, err := s.assignments.Create(ctx, assignment)
	if err != nil {
		return domain.Assignment{}, err
	}
	s.logger.WithFields(logrus.Fields{
		"entity_type": entityType,
		"entity_id":   entityID,
		"assigned_to": assigneeID,
	}).Info("entity assigned")
	return created, nil
}

// Unassign deactivates one assignment. The record survives for history.
func (s *Service) Unassign(ctx context.Context, actor domain.Actor, assignmentID uuid.UUID) error {
	if err := s.guard.Require(actor, authz.ObjectAssignment, authz.ActionUnassign); err != nil {
		return err
	}
	if err := s.assignments.Deactivate(ctx, assignmentID); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"assignment_id": assignmentID, "actor_id": actor.ID}).Info("assignment deactivated")
	return nil
}

// List returns assignments matching the filter. Active assignments only
// unless the filter asks for history.
func (s *Service) List(ctx context.Context, actor domain.Actor, filter domain.AssignmentFilter) ([]domain.Assignment, error) {
	if err := s.guard.Require(actor, authz.ObjectAssignment, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.assignments.List(ctx, filter)
}
