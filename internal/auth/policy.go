package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/brightwork/internal/model"
)

const (
	AdminCookieName  = "admin_session"
	ClientCookieName = "session_token"
)

// Policy is the session configuration for one role.
type Policy struct {
	Role       model.Role
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// DefaultPolicies returns the admin and client policies. secure should be
// true in production.
func DefaultPolicies(adminTTL, clientTTL time.Duration, secure bool) map[model.Role]Policy {
	return map[model.Role]Policy{
		model.RoleAdmin:  {Role: model.RoleAdmin, CookieName: AdminCookieName, TTL: adminTTL, Secure: secure},
		model.RoleClient: {Role: model.RoleClient, CookieName: ClientCookieName, TTL: clientTTL, Secure: secure},
	}
}

func (p Policy) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(p.TTL.Seconds()),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (p Policy) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest reads the session token from the role's cookie, falling
// back to an Authorization: Bearer header.
func (p Policy) TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(p.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
