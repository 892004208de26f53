package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/brightwork/internal/auth"
	"github.com/dukerupert/brightwork/internal/backup"
	"github.com/dukerupert/brightwork/internal/database"
	"github.com/dukerupert/brightwork/internal/email"
	"github.com/dukerupert/brightwork/internal/notify"
	"github.com/dukerupert/brightwork/internal/payment"
	"github.com/dukerupert/brightwork/internal/pricing"
	"github.com/dukerupert/brightwork/internal/push"
	"github.com/dukerupert/brightwork/internal/quote"
	"github.com/dukerupert/brightwork/internal/store"
	ws "github.com/dukerupert/brightwork/internal/websocket"
)

type fixedRates pricing.RateTable

func (f fixedRates) Fetch(ctx context.Context) (pricing.RateTable, error) {
	return pricing.RateTable(f), nil
}

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	users := store.NewUserStore(db)
	if _, err := users.EnsureAdmin(ctx, "admin@example.com", "Admin"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	renderer, err := email.NewRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	mailer := email.NewMailer(nil, renderer, map[string]any{"site_name": "Brightwork"}, logger)
	hub := ws.NewHub(logger)
	pushSvc := push.NewService(push.Config{})
	pushStore := store.NewPushStore(db)
	notifier := notify.New(hub, pushSvc, pushStore, logger)
	payments := payment.NewClient(payment.Config{})

	const baseURL = "http://brightwork.test"
	authSvc := auth.NewService(
		store.NewMagicLinkStore(db),
		store.NewSessionStore(db),
		users,
		store.NewClientStore(db),
		mailer,
		auth.Config{BaseURL: baseURL, Policies: auth.DefaultPolicies(time.Hour, 24*time.Hour, false)},
		logger,
	)
	quotes := quote.NewService(store.NewQuoteStore(db), payments, mailer, notifier,
		quote.Config{BaseURL: baseURL, Validity: 30 * 24 * time.Hour}, logger)
	provider := pricing.NewProvider(pricing.NewEngine(pricing.DefaultConfig()),
		fixedRates{"GBP": 1, "USD": 1.25, "EUR": 1.15}, pricing.NewRateCache(time.Hour), logger)
	backups := backup.NewManager(backup.Config{Hour: -1}, db, store.NewBackupStore(db), notifier, logger)

	srv := New(db, Services{
		Auth:     authSvc,
		Quotes:   quotes,
		Pricing:  provider,
		Payments: payments,
		Push:     pushSvc,
		Backups:  backups,
		Mailer:   mailer,
		Notifier: notifier,
		Hub:      hub,
	}, Config{BaseURL: baseURL}, logger)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func csrfToken(t *testing.T, c *http.Client, base string) string {
	t.Helper()
	resp, err := c.Get(base + "/api/csrf")
	if err != nil {
		t.Fatalf("get csrf token: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf token: %v", err)
	}
	if body.Token == "" {
		t.Fatal("expected a csrf token")
	}
	return body.Token
}

func postJSON(t *testing.T, c *http.Client, u, csrfTok, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, u, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if csrfTok != "" {
		req.Header.Set("X-CSRF-Token", csrfTok)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", u, err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	ts := setupServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestPostWithoutCSRFTokenRejected(t *testing.T) {
	ts := setupServer(t)
	c := newClient(t)
	resp := postJSON(t, c, ts.URL+"/api/contact", "", `{"name":"Jane","email":"jane@example.com","message":"hello"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestPostWithCSRFTokenAccepted(t *testing.T) {
	ts := setupServer(t)
	c := newClient(t)
	tok := csrfToken(t, c, ts.URL)
	resp := postJSON(t, c, ts.URL+"/api/contact", tok, `{"name":"Jane","email":"jane@example.com","message":"hello"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
}

func TestWebhookSkipsCSRF(t *testing.T) {
	ts := setupServer(t)
	resp := postJSON(t, newClient(t), ts.URL+"/webhooks/stripe", "", `{"id":"evt_1"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 from signature check", resp.StatusCode)
	}
}

func TestAdminRequiresSession(t *testing.T) {
	ts := setupServer(t)
	resp, err := newClient(t).Get(ts.URL + "/api/admin/clients")
	if err != nil {
		t.Fatalf("get clients: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestPublicPricing(t *testing.T) {
	ts := setupServer(t)
	resp, err := newClient(t).Get(ts.URL + "/api/pricing?currency=USD")
	if err != nil {
		t.Fatalf("get pricing: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Currency != "USD" {
		t.Errorf("currency = %q, want USD", body.Currency)
	}
}

func TestAdminMagicLinkLogin(t *testing.T) {
	ts := setupServer(t)
	c := newClient(t)
	tok := csrfToken(t, c, ts.URL)

	resp := postJSON(t, c, ts.URL+"/auth/admin/login", tok, `{"email":"admin@example.com"}`)
	var login struct {
		DevURL string `json:"dev_url"`
	}
	err := json.NewDecoder(resp.Body).Decode(&login)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	link, err := url.Parse(login.DevURL)
	if err != nil || link.Query().Get("token") == "" {
		t.Fatalf("dev_url = %q, want a verify link", login.DevURL)
	}

	resp, err = c.Get(ts.URL + link.RequestURI())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("verify status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/admin" {
		t.Errorf("redirect = %q, want /admin", loc)
	}

	resp, err = c.Get(ts.URL + "/api/admin/me")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d, want 200", resp.StatusCode)
	}
	var me struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Email != "admin@example.com" {
		t.Errorf("email = %q, want admin@example.com", me.Email)
	}

	// a staff session is not a portal session
	resp2, err := c.Get(ts.URL + "/api/portal/me")
	if err != nil {
		t.Fatalf("portal me: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Errorf("portal status = %d, want 401", resp2.StatusCode)
	}
}

func TestUnknownLoginAnswersGenerically(t *testing.T) {
	ts := setupServer(t)
	c := newClient(t)
	tok := csrfToken(t, c, ts.URL)

	resp := postJSON(t, c, ts.URL+"/auth/client/login", tok, `{"email":"nobody@example.com"}`)
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if _, ok := body["dev_url"]; ok {
		t.Error("unknown identity should not get a dev_url")
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	ts := setupServer(t)
	c := newClient(t)
	tok := csrfToken(t, c, ts.URL)

	resp := postJSON(t, c, ts.URL+"/auth/client/logout", tok, ``)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var cleared bool
	for _, ck := range resp.Cookies() {
		if ck.Name == auth.ClientCookieName && ck.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected the portal session cookie to be cleared")
	}
}
