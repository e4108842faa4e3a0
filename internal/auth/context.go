package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/jmarlowe/leadpipe/internal/domain"
)

type contextKey string

const actorKey contextKey = "actor"

// ContextWithActor returns a new context carrying the authenticated actor.
func ContextWithActor(ctx context.Context, actor domain.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext retrieves the authenticated actor from the context, if any.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	if ctx == nil {
		return domain.Actor{}, false
	}
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	if !ok || actor.ID == uuid.Nil {
		return domain.Actor{}, false
	}
	return actor, true
}
