package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/brightwork/internal/auth"
	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/quote"
	"github.com/dukerupert/brightwork/internal/store"
)

// PortalHandler serves the signed-in client's own records. The client id
// comes from the session, never from the request.
type PortalHandler struct {
	clients  *store.ClientStore
	projects *store.ProjectStore
	updates  *store.ProjectUpdateStore
	invoices *store.InvoiceStore
	quotes   *quote.Service
	logger   *slog.Logger
}

func NewPortalHandler(cs *store.ClientStore, ps *store.ProjectStore, us *store.ProjectUpdateStore, is *store.InvoiceStore, qs *quote.Service, logger *slog.Logger) *PortalHandler {
	return &PortalHandler{clients: cs, projects: ps, updates: us, invoices: is, quotes: qs, logger: logger}
}

// Profile handles GET /api/portal/me
func (h *PortalHandler) Profile(w http.ResponseWriter, r *http.Request) {
	c, err := h.clients.GetByID(r.Context(), auth.IdentityID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "get portal client", err)
		return
	}
	if c == nil {
		writeMessage(w, http.StatusNotFound, "client not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    c.Name,
		"email":   c.Email,
		"company": c.Company,
		"phone":   c.Phone,
	})
}

// Projects handles GET /api/portal/projects
func (h *PortalHandler) Projects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListByClient(r.Context(), auth.IdentityID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "list portal projects", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(projects))
}

// Project handles GET /api/portal/projects/{id}. Another client's project is
// a 403; internal updates are left out.
func (h *PortalHandler) Project(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.projects.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get portal project", err)
		return
	}
	if p == nil {
		writeMessage(w, http.StatusNotFound, "project not found")
		return
	}
	if p.ClientID != auth.IdentityID(r.Context()) {
		writeMessage(w, http.StatusForbidden, "forbidden")
		return
	}

	updates, err := h.updates.ListByProject(r.Context(), p.ID, true)
	if err != nil {
		writeError(w, h.logger, "list portal project updates", err)
		return
	}
	invoices, err := h.invoices.ListByProject(r.Context(), p.ID)
	if err != nil {
		writeError(w, h.logger, "list portal project invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project":  p,
		"updates":  emptyIfNil(updates),
		"invoices": visibleInvoices(invoices),
	})
}

// visibleInvoices drops drafts, which the client has not been sent yet.
func visibleInvoices(invoices []model.Invoice) []model.Invoice {
	out := []model.Invoice{}
	for _, inv := range invoices {
		if inv.Status != model.InvoiceStatusDraft {
			out = append(out, inv)
		}
	}
	return out
}

// Invoices handles GET /api/portal/invoices
func (h *PortalHandler) Invoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.invoices.ListByClient(r.Context(), auth.IdentityID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "list portal invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, visibleInvoices(invoices))
}

// Quotes handles GET /api/portal/quotes, matched on the session email.
func (h *PortalHandler) Quotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.quotes.List(r.Context(), store.QuoteFilter{Email: auth.Email(r.Context())})
	if err != nil {
		writeError(w, h.logger, "list portal quotes", err)
		return
	}
	now := time.Now()
	out := make([]publicQuote, 0, len(quotes))
	for i := range quotes {
		out = append(out, toPublicQuote(&quotes[i], now))
	}
	writeJSON(w, http.StatusOK, out)
}
