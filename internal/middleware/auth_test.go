package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/brightwork/internal/auth"
	"github.com/dukerupert/brightwork/internal/database"
	"github.com/dukerupert/brightwork/internal/email"
	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/store"
)

type nopMailer struct{}

func (nopMailer) Send(context.Context, string, email.Kind, map[string]any) email.Result {
	return email.Result{Success: true, DevMode: true}
}

func setupAuthService(t *testing.T) (*auth.Service, map[model.Role]auth.Policy) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	clients := store.NewClientStore(db)
	ctx := context.Background()
	if _, err := users.Create(ctx, "admin@example.com", "Admin"); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if _, err := clients.Create(ctx, store.ClientInput{Email: "client@example.com", Name: "Client", PortalAccess: true}); err != nil {
		t.Fatalf("create client: %v", err)
	}

	policies := auth.DefaultPolicies(24*time.Hour, 30*24*time.Hour, false)
	svc := auth.NewService(store.NewMagicLinkStore(db), store.NewSessionStore(db), users, clients, nopMailer{},
		auth.Config{BaseURL: "http://localhost", Policies: policies}, discardLogger())
	return svc, policies
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func guarded(t *testing.T, svc *auth.Service, p auth.Policy) http.Handler {
	return RequireRole(svc, p, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Error("auth context missing")
		}
		w.Write([]byte(ac.Email))
	}))
}

func TestRequireRoleNoToken(t *testing.T) {
	svc, policies := setupAuthService(t)
	h := guarded(t, svc, policies[model.RoleAdmin])

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/admin/quotes", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected JSON error body")
	}
}

func TestRequireRoleInvalidToken(t *testing.T) {
	svc, policies := setupAuthService(t)
	p := policies[model.RoleAdmin]
	h := guarded(t, svc, p)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: p.CookieName, Value: "stale"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == p.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("stale cookie should be cleared")
	}
}

func TestRequireRoleValidSession(t *testing.T) {
	svc, policies := setupAuthService(t)
	p := policies[model.RoleAdmin]
	sess, err := svc.CreateSession(context.Background(), "admin@example.com", model.RoleAdmin)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: p.CookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	guarded(t, svc, p).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "admin@example.com" {
		t.Errorf("body = %q, want admin email", rec.Body.String())
	}
}

func TestRequireRoleBearerToken(t *testing.T) {
	svc, policies := setupAuthService(t)
	sess, err := svc.CreateSession(context.Background(), "client@example.com", model.RoleClient)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	guarded(t, svc, policies[model.RoleClient]).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireRoleWrongRole(t *testing.T) {
	svc, policies := setupAuthService(t)
	sess, err := svc.CreateSession(context.Background(), "client@example.com", model.RoleClient)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// client session presented on the admin track
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	guarded(t, svc, policies[model.RoleAdmin]).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
