package auditcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorFallsBackToSystem(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", ActorFromContext(ctx))
	assert.Equal(t, SystemActor, ActorOrSystem(ctx))

	ctx = WithActor(ctx, "  cashier ")
	assert.Equal(t, "cashier", ActorOrSystem(ctx))

	// blank actors never overwrite an existing one
	ctx = WithActor(ctx, " ")
	assert.Equal(t, "cashier", ActorFromContext(ctx))
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}
