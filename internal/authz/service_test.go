package authz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/jmarlowe/leadpipe/internal/domain"
)

const testModel = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

const testPolicy = `p, admin, upload, import
p, admin, company, approve
p, admin, contact, schedule_meeting
p, admin, segment, manage
p, manager, company, approve
p, manager, company, reject
p, manager, contact, assign_sdr
p, researcher, upload, import
p, sdr, contact, schedule_meeting
`

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.conf")
	policyPath := filepath.Join(dir, "policy.csv")
	if err := os.WriteFile(modelPath, []byte(testModel), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}
	if err := os.WriteFile(policyPath, []byte(testPolicy), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	svc, err := NewService(Config{ModelPath: modelPath, PolicyPath: policyPath})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func actorWithRole(role domain.Role) domain.Actor {
	return domain.Actor{ID: uuid.New(), Role: role}
}

func TestCheckPerRole(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		role    domain.Role
		object  string
		action  string
		allowed bool
	}{
		{domain.RoleAdmin, ObjectUpload, ActionImport, true},
		{domain.RoleAdmin, ObjectCompany, ActionApprove, true},
		{domain.RoleAdmin, ObjectSegment, ActionManage, true},
		{domain.RoleManager, ObjectSegment, ActionManage, false},
		{domain.RoleManager, ObjectCompany, ActionReject, true},
		{domain.RoleManager, ObjectContact, ActionAssignSDR, true},
		{domain.RoleManager, ObjectUpload, ActionImport, false},
		{domain.RoleResearcher, ObjectUpload, ActionImport, true},
		{domain.RoleResearcher, ObjectCompany, ActionApprove, false},
		{domain.RoleSDR, ObjectContact, ActionScheduleMeeting, true},
		{domain.RoleSDR, ObjectCompany, ActionApprove, false},
	}
	for _, tc := range cases {
		allowed, err := svc.Check(actorWithRole(tc.role), tc.object, tc.action)
		if err != nil {
			t.Fatalf("Check(%s, %s, %s): %v", tc.role, tc.object, tc.action, err)
		}
		if allowed != tc.allowed {
			t.Errorf("Check(%s, %s, %s) = %v, want %v", tc.role, tc.object, tc.action, allowed, tc.allowed)
		}
	}
}

func TestRequireDenialIsForbidden(t *testing.T) {
	svc := newTestService(t)

	err := svc.Require(actorWithRole(domain.RoleSDR), ObjectCompany, ActionApprove)
	if !domain.IsForbidden(err) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestRequireAllowsPermittedAction(t *testing.T) {
	svc := newTestService(t)

	if err := svc.Require(actorWithRole(domain.RoleManager), ObjectCompany, ActionApprove); err != nil {
		t.Fatalf("Require: %v", err)
	}
}

func TestRequireRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t)

	err := svc.Require(domain.Actor{ID: uuid.New(), Role: domain.Role("intern")}, ObjectUpload, ActionImport)
	if !domain.IsForbidden(err) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestNewServiceMissingPolicyFile(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.conf")
	if err := os.WriteFile(modelPath, []byte(testModel), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}

	_, err := NewService(Config{ModelPath: modelPath, PolicyPath: filepath.Join(dir, "missing.csv")})
	if err == nil {
		t.Fatal("expected error for missing policy file")
	}
}

var _ Guard = (*Service)(nil)
