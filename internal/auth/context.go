package auth

import (
	"context"

	"github.com/cwinters/pocketmoney/internal/model"
)

type contextKey struct{}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID      int64
	Username    string
	DisplayName string
	Role        model.Role
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the caller identity, if the request was
// authenticated.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// IsAdmin reports whether the context carries an admin identity.
func IsAdmin(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	return ok && id.Role == model.RoleAdmin
}
