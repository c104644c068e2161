package users

import (
	"context"
)

var actorCtxKey = &contextKey{"actor"}

type contextKey struct {
	name string
}

// WithActor sets the acting ActorRef in the given context
func WithActor(ctx context.Context, actor ActorRef) context.Context {
	return context.WithValue(ctx, actorCtxKey, actor)
}

// ActorFromContext finds the actor in the context.
func ActorFromContext(ctx context.Context) (ActorRef, bool) {
	if ctx == nil {
		return ActorRef{}, false
	}
	raw, ok := ctx.Value(actorCtxKey).(ActorRef)
	return raw, ok
}

// actorFor returns actor, or the context actor when actor is empty.
func actorFor(ctx context.Context, actor ActorRef) ActorRef {
	if actor != (ActorRef{}) {
		return actor
	}
	if fromCtx, ok := ActorFromContext(ctx); ok {
		return fromCtx
	}
	return actor
}
