package auth

import "context"

type ctxKey string

const identityKey ctxKey = "diagnostic.identity"

// WithIdentity stores a verified identity in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext extracts a verified identity if present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok && identity.Email != ""
}
