// Package auth implements passwordless sign-in: single-use magic links that
// are exchanged for role-scoped sessions.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"github.com/dukerupert/brightwork/internal/apperr"
	"github.com/dukerupert/brightwork/internal/email"
	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/token"
)

const MagicLinkTTL = 15 * time.Minute

type MagicLinkStore interface {
	Create(ctx context.Context, token, email string, role model.Role, expiresAt time.Time) (*model.MagicLink, error)
	GetByToken(ctx context.Context, token string) (*model.MagicLink, error)
	MarkUsed(ctx context.Context, id int64, at time.Time) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type SessionStore interface {
	Create(ctx context.Context, token, email string, role model.Role, expiresAt time.Time) (*model.Session, error)
	GetByToken(ctx context.Context, token string) (*model.Session, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type ClientLookup interface {
	GetByEmail(ctx context.Context, email string) (*model.Client, error)
}

type Mailer interface {
	Send(ctx context.Context, to string, kind email.Kind, payload map[string]any) email.Result
}

// Identity is a signed-in admin user or portal client.
type Identity struct {
	ID    int64
	Email string
	Name  string
	Role  model.Role
}

// IssueResult reports what happened to a magic link request. For unknown
// identities it is the zero value, so callers answer every request the same.
type IssueResult struct {
	DevMode bool
	DevURL  string
}

type Config struct {
	BaseURL  string
	Policies map[model.Role]Policy
	// MagicLinkRetention, when positive, purges links older than it during
	// Cleanup. Zero keeps them.
	MagicLinkRetention time.Duration
}

type Service struct {
	links    MagicLinkStore
	sessions SessionStore
	users    UserLookup
	clients  ClientLookup
	mailer   Mailer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(links MagicLinkStore, sessions SessionStore, users UserLookup, clients ClientLookup,
	mailer Mailer, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		links:    links,
		sessions: sessions,
		users:    users,
		clients:  clients,
		mailer:   mailer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Policy returns the session policy for role.
func (s *Service) Policy(role model.Role) (Policy, bool) {
	p, ok := s.cfg.Policies[role]
	return p, ok
}

func normalizeEmail(addr string) string {
	return strings.TrimSpace(addr)
}

// lookupIdentity returns nil when no active identity exists for email in role.
// Clients without portal access count as unknown.
func (s *Service) lookupIdentity(ctx context.Context, addr string, role model.Role) (*Identity, error) {
	switch role {
	case model.RoleAdmin:
		u, err := s.users.GetByEmail(ctx, addr)
		if err != nil || u == nil {
			return nil, err
		}
		return &Identity{ID: u.ID, Email: u.Email, Name: u.Name, Role: role}, nil
	case model.RoleClient:
		c, err := s.clients.GetByEmail(ctx, addr)
		if err != nil || c == nil || !c.PortalAccess {
			return nil, err
		}
		return &Identity{ID: c.ID, Email: c.Email, Name: c.Name, Role: role}, nil
	}
	return nil, nil
}

func (s *Service) verifyURL(role model.Role, tok string) string {
	return fmt.Sprintf("%s/auth/%s/verify?token=%s", strings.TrimRight(s.cfg.BaseURL, "/"), role, url.QueryEscape(tok))
}

// IssueMagicLink creates and emails a sign-in link. Unknown identities get a
// zero result and no error, so callers cannot tell them apart from real ones.
// Email delivery failures are logged, not returned.
func (s *Service) IssueMagicLink(ctx context.Context, addr string, role model.Role) (IssueResult, error) {
	addr = normalizeEmail(addr)
	if !role.Valid() {
		return IssueResult{}, fmt.Errorf("unknown role %q: %w", role, apperr.ErrValidation)
	}
	if addr == "" || !govalidator.IsEmail(addr) {
		v := apperr.NewValidation()
		v.Add("email", "must be a valid email address")
		return IssueResult{}, v
	}

	ident, err := s.lookupIdentity(ctx, addr, role)
	if err != nil {
		return IssueResult{}, fmt.Errorf("lookup identity: %w", err)
	}
	if ident == nil {
		s.logger.Info("magic link requested for unknown identity", "role", role)
		return IssueResult{}, nil
	}

	tok, err := token.New()
	if err != nil {
		return IssueResult{}, err
	}
	if _, err := s.links.Create(ctx, tok, ident.Email, role, s.now().Add(MagicLinkTTL)); err != nil {
		return IssueResult{}, err
	}

	link := s.verifyURL(role, tok)
	res := s.mailer.Send(ctx, ident.Email, email.KindMagicLink, map[string]any{
		"name":        ident.Name,
		"url":         link,
		"ttl_minutes": int(MagicLinkTTL.Minutes()),
	})
	if res.Err != nil {
		s.logger.Error("send magic link email", "role", role, "error", res.Err)
	}

	result := IssueResult{DevMode: res.DevMode}
	if res.DevMode {
		result.DevURL = link
	}
	return result, nil
}

// VerifyMagicLink consumes tok for expectedRole. Checks run in order: unknown
// token, expiry (even if already used), prior use, role. A role mismatch
// leaves the token unconsumed. Verification does not create a session.
func (s *Service) VerifyMagicLink(ctx context.Context, tok string, expectedRole model.Role) (Identity, error) {
	if tok == "" {
		return Identity{}, ErrTokenNotFound
	}
	ml, err := s.links.GetByToken(ctx, tok)
	if err != nil {
		return Identity{}, err
	}
	if ml == nil {
		return Identity{}, ErrTokenNotFound
	}

	now := s.now()
	if now.After(ml.ExpiresAt) {
		return Identity{}, ErrTokenExpired
	}
	if ml.Used {
		return Identity{}, ErrTokenUsed
	}
	if ml.Role != expectedRole {
		return Identity{}, ErrRoleMismatch
	}

	ok, err := s.links.MarkUsed(ctx, ml.ID, now)
	if err != nil {
		return Identity{}, err
	}
	if !ok {
		return Identity{}, ErrTokenUsed
	}

	ident, err := s.lookupIdentity(ctx, ml.Email, ml.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("lookup identity: %w", err)
	}
	if ident == nil {
		// Identity removed or portal access revoked after the link went out.
		return Identity{}, ErrTokenNotFound
	}
	return *ident, nil
}

func (s *Service) CreateSession(ctx context.Context, addr string, role model.Role) (*model.Session, error) {
	p, ok := s.Policy(role)
	if !ok {
		return nil, fmt.Errorf("no session policy for role %q: %w", role, apperr.ErrValidation)
	}
	tok, err := token.New()
	if err != nil {
		return nil, err
	}
	return s.sessions.Create(ctx, tok, addr, role, s.now().Add(p.TTL))
}

// ValidateSession looks the session up on every call.
func (s *Service) ValidateSession(ctx context.Context, tok string) (*model.Session, error) {
	if tok == "" {
		return nil, ErrNoToken
	}
	sess, err := s.sessions.GetByToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	if sess == nil || s.now().After(sess.ExpiresAt) {
		return nil, ErrInvalidSession
	}
	return sess, nil
}

// Authenticate validates tok and checks it belongs to role and to an active
// identity.
func (s *Service) Authenticate(ctx context.Context, tok string, role model.Role) (AuthContext, error) {
	sess, err := s.ValidateSession(ctx, tok)
	if err != nil {
		return AuthContext{}, err
	}
	if sess.Role != role {
		return AuthContext{}, ErrRoleMismatch
	}
	ident, err := s.lookupIdentity(ctx, sess.Email, sess.Role)
	if err != nil {
		return AuthContext{}, fmt.Errorf("lookup identity: %w", err)
	}
	if ident == nil {
		return AuthContext{}, ErrInvalidSession
	}
	return AuthContext{
		Email:      sess.Email,
		Role:       sess.Role,
		SessionID:  sess.ID,
		IdentityID: ident.ID,
	}, nil
}

// DestroySession succeeds whether or not the session exists.
func (s *Service) DestroySession(ctx context.Context, tok string) error {
	if tok == "" {
		return nil
	}
	return s.sessions.DeleteByToken(ctx, tok)
}

type CleanupResult struct {
	Sessions   int64
	MagicLinks int64
}

// Cleanup removes expired sessions and, when retention is configured, old
// magic links. Expiry is enforced at validation time regardless.
func (s *Service) Cleanup(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	now := s.now()

	n, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return res, err
	}
	res.Sessions = n

	if s.cfg.MagicLinkRetention > 0 {
		n, err := s.links.DeleteOlderThan(ctx, now.Add(-s.cfg.MagicLinkRetention))
		if err != nil {
			return res, err
		}
		res.MagicLinks = n
	}
	return res, nil
}
