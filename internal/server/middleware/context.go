package middleware

import (
	"context"

	"compliance-portal/backend/internal/platform/rbac"
)

type contextKey struct{ name string }

var callerKey = contextKey{"caller"}

// WithCaller returns a context carrying the authenticated staff caller.
func WithCaller(ctx context.Context, c rbac.Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFrom returns the caller from context and true if set.
func CallerFrom(ctx context.Context) (rbac.Caller, bool) {
	c, ok := ctx.Value(callerKey).(rbac.Caller)
	return c, ok
}
