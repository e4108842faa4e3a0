package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role gates lifecycle transitions and assignment operations. Guard checks
// are explicit predicates taking an actor argument, never inferred from
// ambient state.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleResearcher Role = "researcher"
	RoleSDR        Role = "sdr"
)

// User is an operator of the system.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Actor is the caller of a guarded operation.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// ActorFromUser builds an Actor for a user.
func ActorFromUser(u User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
