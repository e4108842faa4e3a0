package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jmarlowe/leadpipe/internal/auth"
	"github.com/jmarlowe/leadpipe/internal/domain"
	"github.com/jmarlowe/leadpipe/internal/repository"
)

// ActorHeader names the header carrying the authenticated user id. Identity
// is established upstream; this middleware only resolves it to a role.
const ActorHeader = "X-User-ID"

// Actor resolves the request's user id to an actor and stores it on the
// request context. Requests without a resolvable actor are rejected before
// any handler runs.
func Actor(users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(ActorHeader)
			if raw == "" {
				http.Error(w, "missing "+ActorHeader+" header", http.StatusUnauthorized)
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, "invalid "+ActorHeader+" header", http.StatusUnauthorized)
				return
			}
			user, err := users.GetByID(r.Context(), id)
			if err != nil {
				http.Error(w, "unknown user", http.StatusUnauthorized)
				return
			}
			ctx := auth.ContextWithActor(r.Context(), domain.ActorFromUser(user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
