package insurai

import (
	"context"

	"github.com/goliatone/go-router"
)

// IdentityLocalsKey is the Locals key protected routes store the caller
// identity under.
const IdentityLocalsKey = "identity"

var identityCtxKey = &contextKey{"identity"}

type contextKey struct {
	name string
}

// WithIdentity sets the caller identity in the given context
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the caller identity in the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey).(Identity)
	return identity, ok && !identity.IsZero()
}

// IdentityFromLocals returns the identity stored by a protected route.
func IdentityFromLocals(ctx router.Context) (Identity, bool) {
	identity, ok := ctx.Locals(IdentityLocalsKey).(Identity)
	return identity, ok && !identity.IsZero()
}

// requestContext carries the request context plus the caller identity.
func requestContext(ctx router.Context) context.Context {
	c := ctx.Context()
	if identity, ok := IdentityFromLocals(ctx); ok {
		c = WithIdentity(c, identity)
	}
	return c
}
