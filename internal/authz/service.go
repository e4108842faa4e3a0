package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/sirupsen/logrus"

	"github.com/jmarlowe/leadpipe/internal/domain"
)

// Objects and actions the RBAC policy speaks in. Every guarded operation
// names its object/action pair explicitly; nothing is inferred from ambient
// state.
const (
	ObjectUpload     = "upload"
	ObjectCompany    = "company"
	ObjectContact    = "contact"
	ObjectSegment    = "segment"
	ObjectAssignment = "assignment"
	ObjectAudit      = "audit"

	ActionImport          = "import"
	ActionRead            = "read"
	ActionManage          = "manage"
	ActionApprove         = "approve"
	ActionReject          = "reject"
	ActionAssignSDR       = "assign_sdr"
	ActionScheduleMeeting = "schedule_meeting"
	ActionAssign          = "assign"
	ActionUnassign        = "unassign"
)

// Guard is the role check used by guarded services. Satisfied by *Service;
// tests substitute stubs.
type Guard interface {
	Require(actor domain.Actor, object, action string) error
}

// Config locates the casbin model and policy files.
type Config struct {
	ModelPath  string
	PolicyPath string
	Logger     *logrus.Logger
}

// Service enforces role-based guards over a casbin policy.
type Service struct {
	enforcer *casbin.Enforcer
	logger   *logrus.Entry
}

// NewService loads the RBAC model and policy.
func NewService(cfg Config) (*Service, error) {
	logger := logrus.StandardLogger()
	if cfg.Logger != nil {
		logger = cfg.Logger
	}

	enf, err := casbin.NewEnforcer(cfg.ModelPath, fileadapter.NewAdapter(cfg.PolicyPath))
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}
	if err := enf.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("authz: failed to load policies: %w", err)
	}

	return &Service{
		enforcer: enf,
		logger:   logger.WithField("component", "authz"),
	}, nil
}

// Check evaluates a request without turning a denial into an error.
func (s *Service) Check(actor domain.Actor, object, action string) (bool, error) {
	allowed, err := s.enforcer.Enforce(string(actor.Role), object, action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce failed: %w", err)
	}
	return allowed, nil
}

// Require returns a Forbidden transition error when the actor's role does
// not permit the action. The guarded entity is left unchanged by callers.
func (s *Service) Require(actor domain.Actor, object, action string) error {
	allowed, err := s.Check(actor, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.logger.WithFields(logrus.Fields{
			"actor":  actor.ID,
			"role":   actor.Role,
			"object": object,
			"action": action,
		}).Warn("denied request")
		return domain.NewTransitionError(domain.TransitionForbidden, "role %s may not %s %s", actor.Role, action, object)
	}
	return nil
}
