// Package auth provides principal context helpers.
//
// The identity provider is an external collaborator: requests arrive already
// authenticated, carrying an opaque principal id. This package is imported by
// both middleware and handler packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// principalContextKey is the key used to store the principal id in context.
	principalContextKey contextKey = "principal"
)

// GetPrincipal retrieves the authenticated principal id from the context.
// Returns uuid.Nil if no principal is set.
func GetPrincipal(ctx context.Context) uuid.UUID {
	id, ok := ctx.Value(principalContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

// GetPrincipalFromRequest retrieves the principal id from the request context.
func GetPrincipalFromRequest(r *http.Request) uuid.UUID {
	return GetPrincipal(r.Context())
}

// SetPrincipal stores a principal id in the context. Called by the principal
// middleware after reading the gateway-supplied identity.
func SetPrincipal(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, principalContextKey, id)
}
