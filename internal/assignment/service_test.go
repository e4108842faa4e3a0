package assignment

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/jmarlowe/leadpipe/internal/domain"
	"github.com/jmarlowe/leadpipe/internal/repository"
)

func managerActor() domain.Actor {
	return domain.Actor{ID: uuid.New(), Role: domain.RoleManager}
}

func newTestService(t *testing.T) (*Service, *stubAssignmentRepo, *stubContactRepo, *stubUserRepo) {
	t.Helper()
	assignments := &stubAssignmentRepo{records: map[uuid.UUID]domain.Assignment{}}
	contacts := &stubContactRepo{contacts: map[uuid.UUID]domain.Contact{}, assignments: assignments}
	users := &stubUserRepo{users: map[uuid.UUID]domain.User{}}
	svc := NewService(assignments, contacts, users, allowAllGuard{}, nil)
	return svc, assignments, contacts, users
}

func seedSDR(users *stubUserRepo) domain.User {
	sdr := domain.User{ID: uuid.New(), Email: "sdr@leadpipe.test", Role: domain.RoleSDR}
	users.users[sdr.ID] = sdr
	return sdr
}

func seedContact(contacts *stubContactRepo, status domain.ContactStatus) domain.Contact {
	contact := domain.Contact{ID: uuid.New(), Email: "lead@globex.example.com", Status: status}
	contacts.contacts[contact.ID] = contact
	return contact
}

func TestAssignSDRAdvancesContact(t *testing.T) {
	svc, assignments, contacts, users := newTestService(t)
	sdr := seedSDR(users)
	contact := seedContact(contacts, domain.ContactStatusApproved)
	actor := managerActor()

	updated, created, err := svc.AssignSDR(context.Background(), actor, contact.ID, sdr.ID)
	if err != nil {
		t.Fatalf("AssignSDR: %v", err)
	}
	if updated.Status != domain.ContactStatusAssignedToSDR {
		t.Fatalf("contact status = %s, want %s", updated.Status, domain.ContactStatusAssignedToSDR)
	}
	if updated.AssignedSDRID == nil || *updated.AssignedSDRID != sdr.ID {
		t.Fatalf("contact AssignedSDRID = %v, want %s", updated.AssignedSDRID, sdr.ID)
	}
	if !created.IsActive || created.AssignedTo != sdr.ID || created.AssignedBy != actor.ID {
		t.Fatalf("unexpected assignment: %+v", created)
	}
	stored, ok := assignments.records[created.ID]
	if !ok || !stored.IsActive {
		t.Fatalf("assignment not persisted active: %+v", stored)
	}
	if len(contacts.audits) != 1 {
		t.Fatalf("audits = %d, want 1", len(contacts.audits))
	}
	audit := contacts.audits[0]
	if audit.FromState != string(domain.ContactStatusApproved) || audit.ToState != string(domain.ContactStatusAssignedToSDR) {
		t.Fatalf("audit transition %s -> %s", audit.FromState, audit.ToState)
	}
	if audit.Details["assigned_to"] != sdr.ID.String() {
		t.Fatalf("audit details missing assigned_to: %v", audit.Details)
	}
}

func TestAssignSDRReplacesActiveAssignment(t *testing.T) {
	svc, assignments, contacts, users := newTestService(t)
	sdr := seedSDR(users)
	contact := seedContact(contacts, domain.ContactStatusApproved)
	actor := managerActor()

	prior := domain.NewAssignment(domain.EntityTypeContact, contact.ID, uuid.New(), actor.ID)
	assignments.records[prior.ID] = prior

	_, created, err := svc.AssignSDR(context.Background(), actor, contact.ID, sdr.ID)
	if err != nil {
		t.Fatalf("AssignSDR: %v", err)
	}
	if assignments.records[prior.ID].IsActive {
		t.Fatal("prior assignment still active after reassignment")
	}
	if _, ok := assignments.records[prior.ID]; !ok {
		t.Fatal("prior assignment deleted, want deactivated")
	}
	if !assignments.records[created.ID].IsActive {
		t.Fatal("new assignment not active")
	}
}

func TestAssignSDRRejectsNonSDRTarget(t *testing.T) {
	svc, _, contacts, users := newTestService(t)
	contact := seedContact(contacts, domain.ContactStatusApproved)
	researcher := domain.User{ID: uuid.New(), Email: "r@leadpipe.test", Role: domain.RoleResearcher}
	users.users[researcher.ID] = researcher

	_, _, err := svc.AssignSDR(context.Background(), managerActor(), contact.ID, researcher.ID)
	if !domain.IsInvalidTransition(err) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
	if contacts.contacts[contact.ID].Status != domain.ContactStatusApproved {
		t.Fatal("contact mutated despite rejected target")
	}
}

func TestAssignSDRRequiresApprovedContact(t *testing.T) {
	svc, _, contacts, users := newTestService(t)
	sdr := seedSDR(users)
	contact := seedContact(contacts, domain.ContactStatusUploaded)

	_, _, err := svc.AssignSDR(context.Background(), managerActor(), contact.ID, sdr.ID)
	if !domain.IsInvalidTransition(err) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
	if !strings.Contains(err.Error(), string(domain.ContactStatusUploaded)) {
		t.Fatalf("conflict message should name current state: %v", err)
	}
}

func TestAssignRejectsContactEntityType(t *testing.T) {
	svc, assignments, _, users := newTestService(t)
	sdr := seedSDR(users)

	_, err := svc.Assign(context.Background(), managerActor(), domain.EntityTypeContact, uuid.New(), sdr.ID)
	if !domain.IsInvalidTransition(err) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
	if len(assignments.records) != 0 {
		t.Fatal("assignment created for contact via generic path")
	}
}

func TestAssignCompanyAllowsMultipleActive(t *testing.T) {
	svc, assignments, _, users := newTestService(t)
	first := seedSDR(users)
	second := domain.User{ID: uuid.New(), Email: "m@leadpipe.test", Role: domain.RoleManager}
	users.users[second.ID] = second
	companyID := uuid.New()

	a1, err := svc.Assign(context.Background(), managerActor(), domain.EntityTypeCompany, companyID, first.ID)
	if err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	a2, err := svc.Assign(context.Background(), managerActor(), domain.EntityTypeCompany, companyID, second.ID)
	if err != nil {
		t.Fatalf("second Assign: %v", err)
	}
	if !assignments.records[a1.ID].IsActive || !assignments.records[a2.ID].IsActive {
		t.Fatal("company assignments should both stay active")
	}
}

func TestUnassignDeactivates(t *testing.T) {
	svc, assignments, _, users := newTestService(t)
	sdr := seedSDR(users)

	created, err := svc.Assign(context.Background(), managerActor(), domain.EntityTypeCompany, uuid.New(), sdr.ID)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := svc.Unassign(context.Background(), managerActor(), created.ID); err != nil {
		t.Fatalf("Unassign: %v", err)
	}
	stored, ok := assignments.records[created.ID]
	if !ok {
		t.Fatal("assignment deleted, want deactivated")
	}
	if stored.IsActive {
		t.Fatal("assignment still active after Unassign")
	}
}

func TestGuardDenialBlocksAssignment(t *testing.T) {
	assignments := &stubAssignmentRepo{records: map[uuid.UUID]domain.Assignment{}}
	contacts := &stubContactRepo{contacts: map[uuid.UUID]domain.Contact{}, assignments: assignments}
	users := &stubUserRepo{users: map[uuid.UUID]domain.User{}}
	svc := NewService(assignments, contacts, users, denyGuard{}, nil)
	sdr := seedSDR(users)
	contact := seedContact(contacts, domain.ContactStatusApproved)

	_, _, err := svc.AssignSDR(context.Background(), domain.Actor{ID: uuid.New(), Role: domain.RoleSDR}, contact.ID, sdr.ID)
	if !domain.IsForbidden(err) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	if contacts.contacts[contact.ID].Status != domain.ContactStatusApproved {
		t.Fatal("contact mutated despite denial")
	}
	if len(assignments.records) != 0 {
		t.Fatal("assignment created despite denial")
	}
}

func TestListHonorsHistoryFilter(t *testing.T) {
	svc, _, _, users := newTestService(t)
	sdr := seedSDR(users)
	companyID := uuid.New()

	created, err := svc.Assign(context.Background(), managerActor(), domain.EntityTypeCompany, companyID, sdr.ID)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := svc.Unassign(context.Background(), managerActor(), created.ID); err != nil {
		t.Fatalf("Unassign: %v", err)
	}

	active, err := svc.List(context.Background(), managerActor(), domain.AssignmentFilter{EntityType: domain.EntityTypeCompany})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active listing = %d records, want 0", len(active))
	}
	all, err := svc.List(context.Background(), managerActor(), domain.AssignmentFilter{EntityType: domain.EntityTypeCompany, IncludeHistory: true})
	if err != nil {
		t.Fatalf("List history: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("history listing = %d records, want 1", len(all))
	}
}

type allowAllGuard struct{}

func (allowAllGuard) Require(domain.Actor, string, string) error { return nil }

type denyGuard struct{}

func (denyGuard) Require(actor domain.Actor, object, action string) error {
	return domain.NewTransitionError(domain.TransitionForbidden, "role %s may not %s %s", actor.Role, action, object)
}

type stubAssignmentRepo struct {
	records map[uuid.UUID]domain.Assignment
}

func (s *stubAssignmentRepo) Create(_ context.Context, assignment domain.Assignment) (domain.Assignment, error) {
	s.records[assignment.ID] = assignment
	return assignment, nil
}

func (s *stubAssignmentRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Assignment, error) {
	a, ok := s.records[id]
	if !ok {
		return domain.Assignment{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *stubAssignmentRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	a, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.IsActive = false
	s.records[id] = a
	return nil
}

func (s *stubAssignmentRepo) List(_ context.Context, filter domain.AssignmentFilter) ([]domain.Assignment, error) {
	var out []domain.Assignment
	for _, a := range s.records {
		if filter.EntityType != "" && a.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != nil && a.EntityID != *filter.EntityID {
			continue
		}
		if filter.AssignedTo != nil && a.AssignedTo != *filter.AssignedTo {
			continue
		}
		if !filter.IncludeHistory && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// stubContactRepo mirrors the transactional coupling of the real repository:
// AssignSDR advances the contact, deactivates prior active assignments and
// records the new one in a single step.
type stubContactRepo struct {
	contacts    map[uuid.UUID]domain.Contact
	assignments *stubAssignmentRepo
	audits      []domain.AuditEntry
}

func (s *stubContactRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Contact, error) {
	c, ok := s.contacts[id]
	if !ok {
		return domain.Contact{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *stubContactRepo) ListForReference(_ context.Context) ([]domain.Contact, error) {
	var out []domain.Contact
	for _, c := range s.contacts {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubContactRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to domain.ContactStatus, audit domain.AuditEntry) (domain.Contact, error) {
	c, ok := s.contacts[id]
	if !ok {
		return domain.Contact{}, domain.NewTransitionError(domain.TransitionNotFound, "contact %s not found", id)
	}
	if c.Status != from {
		return domain.Contact{}, domain.NewTransitionError(domain.TransitionInvalid, "contact %s is %s, expected %s", id, c.Status, from)
	}
	c.Status = to
	s.contacts[id] = c
	s.audits = append(s.audits, audit)
	return c, nil
}

func (s *stubContactRepo) AssignSDR(_ context.Context, id uuid.UUID, assignment domain.Assignment, audit domain.AuditEntry) (domain.Contact, domain.Assignment, error) {
	c, ok := s.contacts[id]
	if !ok {
		return domain.Contact{}, domain.Assignment{}, domain.NewTransitionError(domain.TransitionNotFound, "contact %s not found", id)
	}
	if c.Status != domain.ContactStatusApproved {
		return domain.Contact{}, domain.Assignment{}, domain.NewTransitionError(domain.TransitionInvalid, "contact %s is %s, expected %s", id, c.Status, domain.ContactStatusApproved)
	}
	c.Status = domain.ContactStatusAssignedToSDR
	sdrID := assignment.AssignedTo
	c.AssignedSDRID = &sdrID
	s.contacts[id] = c

	for recID, rec := range s.assignments.records {
		if rec.EntityType == domain.EntityTypeContact && rec.EntityID == id && rec.IsActive {
			rec.IsActive = false
			s.assignments.records[recID] = rec
		}
	}
	s.assignments.records[assignment.ID] = assignment
	s.audits = append(s.audits, audit)
	return c, assignment, nil
}

type stubUserRepo struct {
	users map[uuid.UUID]domain.User
}

func (s *stubUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	s.users[user.ID] = user
	return user, nil
}

func (s *stubUserRepo) GetByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *stubUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

var (
	_ repository.AssignmentRepository = (*stubAssignmentRepo)(nil)
	_ repository.ContactRepository    = (*stubContactRepo)(nil)
	_ repository.UserRepository       = (*stubUserRepo)(nil)
)
