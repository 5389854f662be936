package auditcontext

import (
	"context"
	"strings"
)

// SystemActor is recorded when no caller identity is attached to the context.
const SystemActor = "system"

type actorKey struct{}
type requestIDKey struct{}

func WithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor attached to ctx or an empty string.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// ActorOrSystem returns the actor attached to ctx, falling back to SystemActor.
func ActorOrSystem(ctx context.Context) string {
	if actor := ActorFromContext(ctx); actor != "" {
		return actor
	}
	return SystemActor
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}
