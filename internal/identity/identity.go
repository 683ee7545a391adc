// Package identity resolves the authenticated user the sync layer acts as.
// Credential issuance is out of scope; tokens come from an external issuer.
package identity

import (
	"context"

	"condosync/internal/permission"
)

// Identity is the (id, role) pair keying permission checks and membership
// sets.
type Identity struct {
	ID   string
	Role permission.Role
}

// Provider yields the current user, or ok=false when nobody is signed in.
type Provider interface {
	Current(ctx context.Context) (Identity, bool)
}

// Static always returns the same identity. Used by tests and by worker
// processes acting as a fixed service identity.
type Static struct {
	Identity Identity
}

func (s Static) Current(context.Context) (Identity, bool) {
	if s.Identity.ID == "" {
		return Identity{}, false
	}
	return s.Identity, true
}

type contextKeyIdentity struct{}

// WithIdentity stores id on the context for downstream handlers.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity{}, id)
}

// FromContext retrieves the identity placed by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKeyIdentity{}).(Identity)
	return id, ok && id.ID != ""
}

// ContextProvider reads the identity from the request context. It is the
// Provider the HTTP surface wires into stores.
type ContextProvider struct{}

func (ContextProvider) Current(ctx context.Context) (Identity, bool) {
	return FromContext(ctx)
}
