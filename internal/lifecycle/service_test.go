package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/jmarlowe/leadpipe/internal/domain"
	"github.com/jmarlowe/leadpipe/internal/repository"
)

func managerActor() domain.Actor {
	return domain.Actor{ID: uuid.New(), Role: domain.RoleManager}
}

func TestApproveCompany(t *testing.T) {
	companies := newStubCompanyRepo()
	id := companies.add(domain.CompanyStatusPending)
	svc := NewService(companies, newStubContactRepo(), allowAllGuard{}, nil)

	company, err := svc.ApproveCompany(context.Background(), managerActor(), id)
	if err != nil {
		t.Fatalf("approve returned error: %v", err)
	}
	if company.Status != domain.CompanyStatusApproved {
		t.Fatalf("status = %s, want approved", company.Status)
	}
	audit := companies.audits[0]
	if audit.FromState != "pending" || audit.ToState != "approved" || audit.Action != "approve" {
		t.Fatalf("unexpected audit entry: %+v", audit)
	}
}

func TestRejectCompanyRequiresReason(t *testing.T) {
	companies := newStubCompanyRepo()
	id := companies.add(domain.CompanyStatusPending)
	svc := NewService(companies, newStubContactRepo(), allowAllGuard{}, nil)

	_, err := svc.RejectCompany(context.Background(), managerActor(), id, "   ")
	if !domain.IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition for blank reason, got %v", err)
	}
	if companies.entities[id].Status != domain.CompanyStatusPending {
		t.Fatalf("company mutated by rejected call")
	}

	company, err := svc.RejectCompany(context.Background(), managerActor(), id, "no fit")
	if err != nil {
		t.Fatalf("reject returned error: %v", err)
	}
	if company.Status != domain.CompanyStatusRejected || company.RejectionReason != "no fit" {
		t.Fatalf("unexpected company: %+v", company)
	}
}

func TestRejectedCompanyIsTerminal(t *testing.T) {
	companies := newStubCompanyRepo()
	id := companies.add(domain.CompanyStatusRejected)
	svc := NewService(companies, newStubContactRepo(), allowAllGuard{}, nil)

	if _, err := svc.ApproveCompany(context.Background(), managerActor(), id); !domain.IsInvalidTransition(err) {
		t.Fatalf("approve of rejected company: %v", err)
	}
	if _, err := svc.RejectCompany(context.Background(), managerActor(), id, "again"); !domain.IsInvalidTransition(err) {
		t.Fatalf("double reject: %v", err)
	}
	if companies.entities[id].Status != domain.CompanyStatusRejected {
		t.Fatalf("terminal state mutated")
	}
}

func TestContactCannotSkipStates(t *testing.T) {
	contacts := newStubContactRepo()
	id := contacts.add(domain.ContactStatusUploaded)
	svc := NewService(newStubCompanyRepo(), contacts, allowAllGuard{}, nil)

	// schedule_meeting from uploaded would skip two states.
	if _, err := svc.ScheduleMeeting(context.Background(), managerActor(), id); !domain.IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if contacts.entities[id].Status != domain.ContactStatusUploaded {
		t.Fatalf("contact mutated by rejected call")
	}

	contact, err := svc.ApproveContact(context.Background(), managerActor(), id)
	if err != nil {
		t.Fatalf("approve returned error: %v", err)
	}
	if contact.Status != domain.ContactStatusApproved {
		t.Fatalf("status = %s", contact.Status)
	}
}

func TestTransitionUnknownEntity(t *testing.T) {
	svc := NewService(newStubCompanyRepo(), newStubContactRepo(), allowAllGuard{}, nil)

	_, err := svc.ApproveCompany(context.Background(), managerActor(), uuid.New())
	var te *domain.TransitionError
	if !errors.As(err, &te) || te.Code != domain.TransitionNotFound {
		t.Fatalf("expected NotFound transition error, got %v", err)
	}
}

func TestGuardDenialBlocksTransition(t *testing.T) {
	companies := newStubCompanyRepo()
	id := companies.add(domain.CompanyStatusPending)
	svc := NewService(companies, newStubContactRepo(), denyGuard{}, nil)

	_, err := svc.ApproveCompany(context.Background(), domain.Actor{ID: uuid.New(), Role: domain.RoleSDR}, id)
	if !domain.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if companies.entities[id].Status != domain.CompanyStatusPending {
		t.Fatalf("denied call mutated entity")
	}
	if len(companies.audits) != 0 {
		t.Fatalf("denied call wrote audit")
	}
}

func TestBulkApproveContactsIsolatesFailures(t *testing.T) {
	contacts := newStubContactRepo()
	good1 := contacts.add(domain.ContactStatusUploaded)
	bad := contacts.add(domain.ContactStatusMeetingScheduled)
	good2 := contacts.add(domain.ContactStatusUploaded)
	missing := uuid.New()
	svc := NewService(newStubCompanyRepo(), contacts, allowAllGuard{}, nil)

	results, err := svc.BulkApproveContacts(context.Background(), managerActor(), []uuid.UUID{good1, bad, missing, good2})
	if err != nil {
		t.Fatalf("bulk approve returned error: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	if results[0].Err != nil || results[0].Contact.Status != domain.ContactStatusApproved {
		t.Fatalf("first contact not approved: %+v", results[0])
	}
	if !domain.IsInvalidTransition(results[1].Err) {
		t.Fatalf("terminal contact should fail with invalid transition: %v", results[1].Err)
	}
	var te *domain.TransitionError
	if !errors.As(results[2].Err, &te) || te.Code != domain.TransitionNotFound {
		t.Fatalf("missing contact should fail with not found: %v", results[2].Err)
	}
	if results[3].Err != nil || results[3].Contact.Status != domain.ContactStatusApproved {
		t.Fatalf("failure of one id blocked another: %+v", results[3])
	}
}

// Stubs

type allowAllGuard struct{}

func (allowAllGuard) Require(domain.Actor, string, string) error { return nil }

type denyGuard struct{}

func (denyGuard) Require(actor domain.Actor, object, action string) error {
	return domain.NewTransitionError(domain.TransitionForbidden, "role %s may not %s %s", actor.Role, action, object)
}

type stubCompanyRepo struct {
	entities map[uuid.UUID]domain.Company
	audits   []domain.AuditEntry
}

func newStubCompanyRepo() *stubCompanyRepo {
	return &stubCompanyRepo{entities: make(map[uuid.UUID]domain.Company)}
}

func (s *stubCompanyRepo) add(status domain.CompanyStatus) uuid.UUID {
	company := domain.NewCompany("Globex", uuid.New(), uuid.New())
	company.Status = status
	s.entities[company.ID] = company
	return company.ID
}

func (s *stubCompanyRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Company, error) {
	company, ok := s.entities[id]
	if !ok {
		return domain.Company{}, domain.ErrNotFound
	}
	return company, nil
}

func (s *stubCompanyRepo) ListForReference(_ context.Context) ([]domain.Company, error) {
	var out []domain.Company
	for _, c := range s.entities {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubCompanyRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to domain.CompanyStatus, rejectionReason string, audit domain.AuditEntry) (domain.Company, error) {
	company, ok := s.entities[id]
	if !ok {
		return domain.Company{}, domain.NewTransitionError(domain.TransitionNotFound, "company %s not found", id)
	}
	if company.Status != from {
		return domain.Company{}, domain.NewTransitionError(domain.TransitionInvalid, "company %s is %s, expected %s", id, company.Status, from)
	}
	company.Status = to
	company.RejectionReason = rejectionReason
	s.entities[id] = company
	s.audits = append(s.audits, audit)
	return company, nil
}

type stubContactRepo struct {
	entities map[uuid.UUID]domain.Contact
	audits   []domain.AuditEntry
}

func newStubContactRepo() *stubContactRepo {
	return &stubContactRepo{entities: make(map[uuid.UUID]domain.Contact)}
}

func (s *stubContactRepo) add(status domain.ContactStatus) uuid.UUID {
	contact := domain.NewContact("Jane", "Doe", fmt.Sprintf("jane+%s@example.com", uuid.NewString()[:8]), uuid.New(), uuid.New(), uuid.New())
	contact.Status = status
	s.entities[contact.ID] = contact
	return contact.ID
}

func (s *stubContactRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Contact, error) {
	contact, ok := s.entities[id]
	if !ok {
		return domain.Contact{}, domain.ErrNotFound
	}
	return contact, nil
}

func (s *stubContactRepo) ListForReference(_ context.Context) ([]domain.Contact, error) {
	var out []domain.Contact
	for _, c := range s.entities {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubContactRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to domain.ContactStatus, audit domain.AuditEntry) (domain.Contact, error) {
	contact, ok := s.entities[id]
	if !ok {
		return domain.Contact{}, domain.NewTransitionError(domain.TransitionNotFound, "contact %s not found", id)
	}
	if contact.Status != from {
		return domain.Contact{}, domain.NewTransitionError(domain.TransitionInvalid, "contact %s is %s, expected %s", id, contact.Status, from)
	}
	contact.Status = to
	s.entities[id] = contact
	s.audits = append(s.audits, audit)
	return contact, nil
}

func (s *stubContactRepo) AssignSDR(_ context.Context, id uuid.UUID, assignment domain.Assignment, audit domain.AuditEntry) (domain.Contact, domain.Assignment, error) {
	contact, err := s.TransitionStatus(context.Background(), id, domain.ContactStatusApproved, domain.ContactStatusAssignedToSDR, audit)
	if err != nil {
		return domain.Contact{}, domain.Assignment{}, err
	}
	sdrID := assignment.AssignedTo
	contact.AssignedSDRID = &sdrID
	s.entities[id] = contact
	return contact, assignment, nil
}

var _ repository.CompanyRepository = (*stubCompanyRepo)(nil)
var _ repository.ContactRepository = (*stubContactRepo)(nil)
