package tenant

import "context"

// identityContextKey is an unexported type so no other package's
// context key can collide with it.
type identityContextKey struct{}

// WithIdentity stores identity in ctx. A nil identity returns ctx
// unchanged.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// FromContext retrieves the Identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok
}

// MustFromContext retrieves the Identity or panics. Reserved for code
// paths the Facade has already authenticated; never call this from a
// transport-facing handler that hasn't run the identity middleware.
func MustFromContext(ctx context.Context) *Identity {
	identity, ok := FromContext(ctx)
	if !ok {
		panic("tenant: no Identity in context")
	}
	return identity
}
