package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jmarlowe/leadpipe/internal/db"
	"github.com/jmarlowe/leadpipe/internal/domain"
)

type userRepository struct {
	conn *db.Connection
}

// NewUserRepository wires a user repository backed by pgxpool.
func NewUserRepository(conn *db.Connection) UserRepository {
	return &userRepository{conn: conn}
}

const userColumns = `id, email, name, role, is_active, created_at`

func (r *userRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	_, err := r.conn.Pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.Name, user.Role, user.IsActive, user.CreatedAt)
	if err != nil {
		return domain.User{}, classify("create user", err)
	}
	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	var user domain.User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.IsActive, &user.CreatedAt); err != nil {
		return domain.User{}, classify("get user", err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	var user domain.User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.IsActive, &user.CreatedAt); err != nil {
		return domain.User{}, classify("get user by email", err)
	}
	return user, nil
}
