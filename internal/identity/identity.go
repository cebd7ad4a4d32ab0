// Package identity carries the authenticated user through request
// handling and issues the signed session tokens that prove it.
package identity

import (
	"context"
	"errors"
)

// ErrUnauthenticated indicates the request carries no valid session.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the authenticated user attached to a request.
type Identity struct {
	// UserID is the stable account identifier.
	UserID string
	// Name is the display name used for vendor derivation.
	Name string
}

type contextKey struct{}

// NewContext returns a context carrying the identity.
func NewContext(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, ident)
}

// FromContext extracts the identity placed by NewContext. It returns
// ErrUnauthenticated when none is present.
func FromContext(ctx context.Context) (Identity, error) {
	ident, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || ident.UserID == "" {
		return Identity{}, ErrUnauthenticated
	}
	return ident, nil
}
