package model

import "time"

// Role tags an identity, magic link, or session as belonging to the admin
// back-office or the client portal.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleClient
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"-"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// MagicLink is a single-use login token. Used and expired rows are kept;
// lookups must check Used and ExpiresAt rather than rely on deletion.
type MagicLink struct {
	ID        int64      `json:"id"`
	Token     string     `json:"-"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	ExpiresAt time.Time  `json:"expires_at"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}
