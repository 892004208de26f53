package auth

import (
	"context"

	"github.com/dukerupert/brightwork/internal/model"
)

type contextKey struct{}

// AuthContext describes the caller of an authenticated request. IdentityID is
// the users.id for admins and the clients.id for portal clients.
type AuthContext struct {
	Email      string
	Role       model.Role
	SessionID  int64
	IdentityID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func IdentityID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.IdentityID
}

func Email(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.Email
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleAdmin
}
