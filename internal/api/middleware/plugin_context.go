// Package middleware provides HTTP middleware components for the monitoring API.
package middleware

import (
	"context"
	"time"
)

// authContextKey is the context key for the authenticated-request marker.
type authContextKey struct{}

// AuthContext records that a request passed API key authentication.
type AuthContext struct {
	// AuthTime is when authentication occurred, for latency logging.
	AuthTime time.Time
}

// GetAuthContext extracts the auth context from the request context.
// Returns (context, true) if authenticated, (empty, false) if not found.
func GetAuthContext(ctx context.Context) (AuthContext, bool) {
	authCtx, ok := ctx.Value(authContextKey{}).(AuthContext)

	return authCtx, ok
}

// SetAuthContext adds the auth context to the request context.
func SetAuthContext(ctx context.Context, authCtx AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, authCtx)
}
