package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/asaskevich/govalidator"

	"github.com/dukerupert/brightwork/internal/apperr"
	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/store"
)

type ClientHandler struct {
	clients  *store.ClientStore
	projects *store.ProjectStore
	invoices *store.InvoiceStore
	hub      Broadcaster
	logger   *slog.Logger
}

func NewClientHandler(cs *store.ClientStore, ps *store.ProjectStore, is *store.InvoiceStore, hub Broadcaster, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{clients: cs, projects: ps, invoices: is, hub: hub, logger: logger}
}

var validClientStatuses = map[model.ClientStatus]bool{
	model.ClientStatusLead:     true,
	model.ClientStatusActive:   true,
	model.ClientStatusInactive: true,
}

type clientRequest struct {
	Email        string             `json:"email"`
	Name         string             `json:"name"`
	Company      string             `json:"company"`
	Phone        string             `json:"phone"`
	Status       model.ClientStatus `json:"status"`
	PortalAccess bool               `json:"portal_access"`
	Notes        string             `json:"notes"`
}

func (req *clientRequest) input() (store.ClientInput, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	v := apperr.NewValidation()
	if req.Name == "" {
		v.Add("name", "is required")
	}
	if !govalidator.IsEmail(req.Email) {
		v.Add("email", "must be a valid email address")
	}
	if req.Status == "" {
		req.Status = model.ClientStatusLead
	}
	if !validClientStatuses[req.Status] {
		v.Add("status", "must be lead, active, or inactive")
	}
	return store.ClientInput{
		Email:        req.Email,
		Name:         req.Name,
		Company:      strings.TrimSpace(req.Company),
		Phone:        strings.TrimSpace(req.Phone),
		Status:       req.Status,
		PortalAccess: req.PortalAccess,
		Notes:        req.Notes,
	}, v.OrNil()
}

// List handles GET /api/admin/clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.List(r.Context())
	if err != nil {
		writeError(w, h.logger, "list clients", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(clients))
}

// Get handles GET /api/admin/clients/{id}, including the client's projects.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.clients.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get client", err)
		return
	}
	if c == nil {
		writeMessage(w, http.StatusNotFound, "client not found")
		return
	}
	projects, err := h.projects.ListByClient(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "list client projects", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"client":   c,
		"projects": emptyIfNil(projects),
	})
}

// Create handles POST /api/admin/clients
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, "validate client", err)
		return
	}
	c, err := h.clients.Create(r.Context(), in)
	if err != nil {
		storeError(w, h.logger, "create client", err, "a client with that email already exists")
		return
	}
	broadcast(h.hub, "client", "created", c.ID)
	writeJSON(w, http.StatusCreated, c)
}

// Update handles PUT /api/admin/clients/{id}
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := h.clients.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get client", err)
		return
	}
	if existing == nil {
		writeMessage(w, http.StatusNotFound, "client not found")
		return
	}

	var req clientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, "validate client", err)
		return
	}
	c, err := h.clients.Update(r.Context(), id, in)
	if err != nil {
		storeError(w, h.logger, "update client", err, "a client with that email already exists")
		return
	}
	broadcast(h.hub, "client", "updated", c.ID)
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/admin/clients/{id}. Clients with projects
// cannot be deleted.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := h.clients.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get client", err)
		return
	}
	if existing == nil {
		writeMessage(w, http.StatusNotFound, "client not found")
		return
	}
	if err := h.clients.Delete(r.Context(), id); err != nil {
		storeError(w, h.logger, "delete client", err, "client still has projects")
		return
	}
	broadcast(h.hub, "client", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// Invoices handles GET /api/admin/clients/{id}/invoices
func (h *ClientHandler) Invoices(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	invoices, err := h.invoices.ListByClient(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "list client invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(invoices))
}
