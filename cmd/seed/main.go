// Command seed bootstraps a fresh database with the default market segments
// and one user per role. It is idempotent; rows that already exist are left
// alone, so it can run on every deploy.
package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jmarlowe/leadpipe/internal/config"
	"github.com/jmarlowe/leadpipe/internal/db"
	"github.com/jmarlowe/leadpipe/internal/domain"
	"github.com/jmarlowe/leadpipe/internal/repository"
)

var defaultSegments = []struct {
	name        string
	description string
}{
	{"Fintech", "Payments, banking, and financial infrastructure"},
	{"Healthcare", "Providers, payers, and health technology"},
	{"Logistics", "Freight, fulfillment, and supply chain"},
	{"SaaS", "Horizontal business software"},
}

var defaultUsers = []struct {
	email string
	name  string
	role  domain.Role
}{
	{"admin@leadpipe.local", "Default Admin", domain.RoleAdmin},
	{"manager@leadpipe.local", "Default Manager", domain.RoleManager},
	{"researcher@leadpipe.local", "Default Researcher", domain.RoleResearcher},
	{"sdr@leadpipe.local", "Default SDR", domain.RoleSDR},
}

func main() {
	ctx := context.Background()

	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(".")
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database.URL(), cfg.Import.MigrationsPath); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}

	users := repository.NewUserRepository(conn)
	segments := repository.NewSegmentRepository(conn)

	admin, err := seedUsers(ctx, users, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to seed users")
	}
	if err := seedSegments(ctx, segments, admin, logger); err != nil {
		logger.WithError(err).Fatal("failed to seed segments")
	}

	logger.Info("seed complete")
}

// seedUsers ensures one user per role exists and returns the admin, whose id
// owns the seeded segments.
func seedUsers(ctx context.Context, users repository.UserRepository, logger *logrus.Logger) (domain.User, error) {
	var admin domain.User
	for _, u := range defaultUsers {
		existing, err := users.GetByEmail(ctx, u.email)
		if err == nil {
			logger.WithField("email", u.email).Info("user already present")
			if existing.Role == domain.RoleAdmin {
				admin = existing
			}
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, err
		}
		created, err := users.Create(ctx, domain.User{
			ID:        uuid.New(),
			Email:     u.email,
			Name:      u.name,
			Role:      u.role,
			IsActive:  true,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return domain.User{}, err
		}
		logger.WithFields(logrus.Fields{"email": created.Email, "role": created.Role}).Info("user created")
		if created.Role == domain.RoleAdmin {
			admin = created
		}
	}
	return admin, nil
}

func seedSegments(ctx context.Context, segments repository.SegmentRepository, admin domain.User, logger *logrus.Logger) error {
	for _, s := range defaultSegments {
		_, err := segments.Create(ctx, domain.NewSegment(s.name, s.description, admin.ID))
		if errors.Is(err, domain.ErrDuplicateKey) {
			logger.WithField("segment", s.name).Info("segment already present")
			continue
		}
		if err != nil {
			return err
		}
		logger.WithField("segment", s.name).Info("segment created")
	}
	return nil
}
