package server

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/csrf"

	"github.com/dukerupert/brightwork/internal/auth"
	"github.com/dukerupert/brightwork/internal/backup"
	"github.com/dukerupert/brightwork/internal/handler"
	"github.com/dukerupert/brightwork/internal/middleware"
	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/payment"
	"github.com/dukerupert/brightwork/internal/pricing"
	"github.com/dukerupert/brightwork/internal/push"
	"github.com/dukerupert/brightwork/internal/quote"
	"github.com/dukerupert/brightwork/internal/store"
	ws "github.com/dukerupert/brightwork/internal/websocket"
)

type Config struct {
	BaseURL    string
	Production bool
	// CSRFKey is the 32-byte gorilla/csrf key. Empty generates one per process,
	// which invalidates outstanding tokens on restart.
	CSRFKey    []byte
	AdminEmail string
}

// Services are the long-lived collaborators built by the binary.
type Services struct {
	Auth     *auth.Service
	Quotes   *quote.Service
	Pricing  *pricing.Provider
	Payments *payment.Client
	Push     *push.Service
	Backups  *backup.Manager
	Mailer   handler.Mailer
	Notifier handler.Notifier
	Hub      *ws.Hub
}

type Server struct {
	cfg         Config
	svc         Services
	authH       *handler.AuthHandler
	quoteH      *handler.QuoteHandler
	pricingH    *handler.PricingHandler
	clientH     *handler.ClientHandler
	projectH    *handler.ProjectHandler
	invoiceH    *handler.InvoiceHandler
	contentH    *handler.ContentHandler
	contactH    *handler.ContactHandler
	portalH     *handler.PortalHandler
	webhookH    *handler.WebhookHandler
	pushH       *handler.PushHandler
	backupH     *handler.BackupHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, svc Services, cfg Config, logger *slog.Logger) *Server {
	clientStore := store.NewClientStore(db)
	projectStore := store.NewProjectStore(db)
	updateStore := store.NewProjectUpdateStore(db)
	invoiceStore := store.NewInvoiceStore(db)
	portfolioStore := store.NewPortfolioStore(db)
	blogStore := store.NewBlogStore(db)
	contactStore := store.NewContactStore(db)
	pushStore := store.NewPushStore(db)

	return &Server{
		cfg:         cfg,
		svc:         svc,
		authH:       handler.NewAuthHandler(svc.Auth, logger.With("component", "auth")),
		quoteH:      handler.NewQuoteHandler(svc.Quotes, logger.With("component", "quote")),
		pricingH:    handler.NewPricingHandler(svc.Pricing, cfg.Production, logger.With("component", "pricing")),
		clientH:     handler.NewClientHandler(clientStore, projectStore, invoiceStore, svc.Hub, logger.With("component", "client")),
		projectH:    handler.NewProjectHandler(projectStore, updateStore, clientStore, invoiceStore, svc.Hub, logger.With("component", "project")),
		invoiceH:    handler.NewInvoiceHandler(invoiceStore, projectStore, svc.Hub, logger.With("component", "invoice")),
		contentH:    handler.NewContentHandler(portfolioStore, blogStore, svc.Hub, logger.With("component", "content")),
		contactH:    handler.NewContactHandler(contactStore, clientStore, svc.Mailer, svc.Notifier, cfg.AdminEmail, svc.Hub, logger.With("component", "contact")),
		portalH:     handler.NewPortalHandler(clientStore, projectStore, updateStore, invoiceStore, svc.Quotes, logger.With("component", "portal")),
		webhookH:    handler.NewWebhookHandler(svc.Payments, svc.Quotes, logger.With("component", "webhook")),
		pushH:       handler.NewPushHandler(pushStore, svc.Push, logger.With("component", "push")),
		backupH:     handler.NewBackupHandler(svc.Backups, logger.With("component", "backup")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Outside CSRF: signed by the processor, or safe and unauthenticated.
	outerMux.HandleFunc("POST /webhooks/stripe", s.webhookH.Stripe)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	appMux := http.NewServeMux()
	s.registerPublicRoutes(appMux)

	adminMux := http.NewServeMux()
	s.registerAdminRoutes(adminMux)
	appMux.Handle("/api/admin/", s.requireRole(model.RoleAdmin)(adminMux))

	portalMux := http.NewServeMux()
	s.registerPortalRoutes(portalMux)
	appMux.Handle("/api/portal/", s.requireRole(model.RoleClient)(portalMux))

	outerMux.Handle("/", s.csrfProtect(appMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) requireRole(role model.Role) func(http.Handler) http.Handler {
	policy, _ := s.svc.Auth.Policy(role)
	return middleware.RequireRole(s.svc.Auth, policy, s.logger.With("component", "auth_guard"))
}

func (s *Server) csrfProtect(next http.Handler) http.Handler {
	key := s.cfg.CSRFKey
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("csrf key: " + err.Error())
		}
		s.logger.Warn("no csrf.key configured, using a per-process key")
	}

	opts := []csrf.Option{
		csrf.Secure(s.cfg.Production),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(s.csrfFailure)),
	}
	if u, err := url.Parse(s.cfg.BaseURL); err == nil && u.Host != "" {
		opts = append(opts, csrf.TrustedOrigins([]string{u.Host}))
	}
	protect := csrf.Protect(key, opts...)(next)

	if s.cfg.Production {
		return protect
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		protect.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

func (s *Server) csrfFailure(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn("csrf check failed", "path", r.URL.Path, "reason", csrf.FailureReason(r))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]string{"error": "invalid CSRF token"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// csrfTokenHandler hands a token to script clients, which echo it back in
// the X-CSRF-Token header.
func (s *Server) csrfTokenHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(map[string]string{"token": csrf.Token(r)})
}

func (s *Server) rateLimited(route string, limit int, window time.Duration, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.ByIP(route), limit, window)(h)
}

func (s *Server) registerPublicRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/csrf", s.csrfTokenHandler)

	// Magic-link auth, both roles
	mux.Handle("POST /auth/{role}/login", s.rateLimited("login", 5, 15*time.Minute, s.authH.Login))
	mux.HandleFunc("GET /auth/{role}/verify", s.authH.Verify)
	mux.HandleFunc("POST /auth/{role}/logout", s.authH.Logout)

	// Pricing and quotes
	mux.HandleFunc("GET /api/pricing", s.pricingH.Packages)
	mux.HandleFunc("GET /api/quote/options", s.quoteH.Options)
	mux.Handle("POST /api/quotes", s.rateLimited("quote", 5, time.Hour, s.quoteH.Create))
	mux.HandleFunc("GET /api/quotes/{token}", s.quoteH.View)
	mux.Handle("POST /api/quotes/{token}/accept", s.rateLimited("quote_action", 20, 15*time.Minute, s.quoteH.Accept))
	mux.Handle("POST /api/quotes/{token}/decline", s.rateLimited("quote_action", 20, 15*time.Minute, s.quoteH.Decline))
	mux.Handle("POST /api/quotes/{token}/confirm", s.rateLimited("quote_action", 20, 15*time.Minute, s.quoteH.Confirm))

	mux.Handle("POST /api/contact", s.rateLimited("contact", 5, time.Hour, s.contactH.Submit))

	// Published content
	mux.HandleFunc("GET /api/portfolio", s.contentH.PublicPortfolio)
	mux.HandleFunc("GET /api/portfolio/{slug}", s.contentH.PublicPortfolioItem)
	mux.HandleFunc("GET /api/blog", s.contentH.PublicPosts)
	mux.HandleFunc("GET /api/blog/{slug}", s.contentH.PublicPost)
}

func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/me", s.authH.Me)
	mux.Handle("GET /api/admin/ws", ws.Handler(s.svc.Hub, ws.OriginPatterns(s.cfg.BaseURL), s.logger.With("component", "websocket")))

	// Quotes
	mux.HandleFunc("GET /api/admin/quotes", s.quoteH.List)
	mux.HandleFunc("GET /api/admin/quotes/{id}", s.quoteH.Get)
	mux.HandleFunc("POST /api/admin/quotes/{id}/send", s.quoteH.Send)
	mux.HandleFunc("PUT /api/admin/quotes/{id}/status", s.quoteH.SetStatus)
	mux.HandleFunc("PUT /api/admin/quotes/{id}/meta", s.quoteH.UpdateMeta)
	mux.HandleFunc("DELETE /api/admin/quotes/{id}", s.quoteH.Delete)

	// Clients
	mux.HandleFunc("GET /api/admin/clients", s.clientH.List)
	mux.HandleFunc("POST /api/admin/clients", s.clientH.Create)
	mux.HandleFunc("GET /api/admin/clients/{id}", s.clientH.Get)
	mux.HandleFunc("PUT /api/admin/clients/{id}", s.clientH.Update)
	mux.HandleFunc("DELETE /api/admin/clients/{id}", s.clientH.Delete)
	mux.HandleFunc("GET /api/admin/clients/{id}/invoices", s.clientH.Invoices)

	// Projects and updates
	mux.HandleFunc("GET /api/admin/projects", s.projectH.List)
	mux.HandleFunc("POST /api/admin/projects", s.projectH.Create)
	mux.HandleFunc("GET /api/admin/projects/{id}", s.projectH.Get)
	mux.HandleFunc("PUT /api/admin/projects/{id}", s.projectH.Update)
	mux.HandleFunc("DELETE /api/admin/projects/{id}", s.projectH.Delete)
	mux.HandleFunc("POST /api/admin/projects/{id}/updates", s.projectH.CreateUpdate)
	mux.HandleFunc("DELETE /api/admin/project-updates/{id}", s.projectH.DeleteUpdate)
	mux.HandleFunc("GET /api/admin/projects/{id}/invoices", s.invoiceH.ListByProject)

	// Invoices
	mux.HandleFunc("POST /api/admin/invoices", s.invoiceH.Create)
	mux.HandleFunc("PUT /api/admin/invoices/{id}", s.invoiceH.Update)
	mux.HandleFunc("DELETE /api/admin/invoices/{id}", s.invoiceH.Delete)

	// Portfolio and blog
	mux.HandleFunc("GET /api/admin/portfolio", s.contentH.ListPortfolio)
	mux.HandleFunc("POST /api/admin/portfolio", s.contentH.CreatePortfolio)
	mux.HandleFunc("PUT /api/admin/portfolio/{id}", s.contentH.UpdatePortfolio)
	mux.HandleFunc("DELETE /api/admin/portfolio/{id}", s.contentH.DeletePortfolio)
	mux.HandleFunc("GET /api/admin/blog", s.contentH.ListPosts)
	mux.HandleFunc("POST /api/admin/blog", s.contentH.CreatePost)
	mux.HandleFunc("GET /api/admin/blog/{id}", s.contentH.GetPost)
	mux.HandleFunc("PUT /api/admin/blog/{id}", s.contentH.UpdatePost)
	mux.HandleFunc("DELETE /api/admin/blog/{id}", s.contentH.DeletePost)

	// Contact submissions
	mux.HandleFunc("GET /api/admin/contacts", s.contactH.List)
	mux.HandleFunc("GET /api/admin/contacts/{id}", s.contactH.Get)
	mux.HandleFunc("PUT /api/admin/contacts/{id}/read", s.contactH.MarkRead)
	mux.HandleFunc("POST /api/admin/contacts/{id}/convert", s.contactH.Convert)
	mux.HandleFunc("DELETE /api/admin/contacts/{id}", s.contactH.Delete)

	// Push notifications
	mux.HandleFunc("GET /api/admin/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("GET /api/admin/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("POST /api/admin/push/subscriptions", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/admin/push/subscriptions", s.pushH.Unsubscribe)
	mux.HandleFunc("POST /api/admin/push/test", s.pushH.TestNotification)

	// Backups
	mux.HandleFunc("GET /api/admin/backups", s.backupH.List)
	mux.HandleFunc("POST /api/admin/backups", s.backupH.Run)
	mux.HandleFunc("GET /api/admin/backups/status", s.backupH.Status)
	mux.HandleFunc("GET /api/admin/backups/{id}/download", s.backupH.Download)
}

func (s *Server) registerPortalRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/portal/me", s.portalH.Profile)
	mux.HandleFunc("GET /api/portal/projects", s.portalH.Projects)
	mux.HandleFunc("GET /api/portal/projects/{id}", s.portalH.Project)
	mux.HandleFunc("GET /api/portal/invoices", s.portalH.Invoices)
	mux.HandleFunc("GET /api/portal/quotes", s.portalH.Quotes)
}
