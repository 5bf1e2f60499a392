package auth

import "context"

type identityKey struct{}

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID int64
	SID    string
	Role   string
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext reports false for a missing or zero identity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok && identity.UserID > 0
}
