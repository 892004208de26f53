package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/brightwork/internal/apperr"
	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/store"
)

type ProjectHandler struct {
	projects *store.ProjectStore
	updates  *store.ProjectUpdateStore
	clients  *store.ClientStore
	invoices *store.InvoiceStore
	hub      Broadcaster
	logger   *slog.Logger
}

func NewProjectHandler(ps *store.ProjectStore, us *store.ProjectUpdateStore, cs *store.ClientStore, is *store.InvoiceStore, hub Broadcaster, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: ps, updates: us, clients: cs, invoices: is, hub: hub, logger: logger}
}

var validProjectStatuses = map[model.ProjectStatus]bool{
	model.ProjectStatusPlanning:   true,
	model.ProjectStatusInProgress: true,
	model.ProjectStatusReview:     true,
	model.ProjectStatusCompleted:  true,
	model.ProjectStatusOnHold:     true,
}

type projectRequest struct {
	ClientID    int64               `json:"client_id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Status      model.ProjectStatus `json:"status"`
	StartDate   *time.Time          `json:"start_date"`
	DueDate     *time.Time          `json:"due_date"`
	Budget      int64               `json:"budget"`
}

func (h *ProjectHandler) input(r *http.Request, req *projectRequest) (store.ProjectInput, error) {
	req.Name = strings.TrimSpace(req.Name)

	v := apperr.NewValidation()
	if req.Name == "" {
		v.Add("name", "is required")
	}
	if req.Status == "" {
		req.Status = model.ProjectStatusPlanning
	}
	if !validProjectStatuses[req.Status] {
		v.Add("status", "must be planning, in_progress, review, completed, or on_hold")
	}
	if req.Budget < 0 {
		v.Add("budget", "must not be negative")
	}
	if req.StartDate != nil && req.DueDate != nil && req.DueDate.Before(*req.StartDate) {
		v.Add("due_date", "must not be before start_date")
	}
	if req.ClientID <= 0 {
		v.Add("client_id", "is required")
	} else {
		c, err := h.clients.GetByID(r.Context(), req.ClientID)
		if err != nil {
			return store.ProjectInput{}, err
		}
		if c == nil {
			v.Add("client_id", "no such client")
		}
	}
	return store.ProjectInput{
		ClientID:    req.ClientID,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
		Budget:      req.Budget,
	}, v.OrNil()
}

// load fetches {id} and answers 404 when it does not exist.
func (h *ProjectHandler) load(w http.ResponseWriter, r *http.Request) (*model.Project, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	p, err := h.projects.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get project", err)
		return nil, false
	}
	if p == nil {
		writeMessage(w, http.StatusNotFound, "project not found")
		return nil, false
	}
	return p, true
}

// List handles GET /api/admin/projects?client_id=
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		projects []model.Project
		err      error
	)
	if cid := r.URL.Query().Get("client_id"); cid != "" {
		id, perr := strconv.ParseInt(cid, 10, 64)
		if perr != nil {
			writeMessage(w, http.StatusBadRequest, "invalid client_id")
			return
		}
		projects, err = h.projects.ListByClient(r.Context(), id)
	} else {
		projects, err = h.projects.List(r.Context())
	}
	if err != nil {
		writeError(w, h.logger, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(projects))
}

// Get handles GET /api/admin/projects/{id} with every update and invoice.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}
	updates, err := h.updates.ListByProject(r.Context(), p.ID, false)
	if err != nil {
		writeError(w, h.logger, "list project updates", err)
		return
	}
	invoices, err := h.invoices.ListByProject(r.Context(), p.ID)
	if err != nil {
		writeError(w, h.logger, "list project invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project":  p,
		"updates":  emptyIfNil(updates),
		"invoices": emptyIfNil(invoices),
	})
}

// Create handles POST /api/admin/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := h.input(r, &req)
	if err != nil {
		writeError(w, h.logger, "validate project", err)
		return
	}
	p, err := h.projects.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "create project", err)
		return
	}
	broadcast(h.hub, "project", "created", p.ID)
	writeJSON(w, http.StatusCreated, p)
}

// Update handles PUT /api/admin/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ClientID == 0 {
		req.ClientID = existing.ClientID
	}
	in, err := h.input(r, &req)
	if err != nil {
		writeError(w, h.logger, "validate project", err)
		return
	}
	p, err := h.projects.Update(r.Context(), existing.ID, in)
	if err != nil {
		writeError(w, h.logger, "update project", err)
		return
	}
	broadcast(h.hub, "project", "updated", p.ID)
	writeJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /api/admin/projects/{id}. Updates and invoices go
// with it.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.projects.Delete(r.Context(), p.ID); err != nil {
		writeError(w, h.logger, "delete project", err)
		return
	}
	broadcast(h.hub, "project", "deleted", p.ID)
	w.WriteHeader(http.StatusNoContent)
}

type projectUpdateRequest struct {
	Title           string `json:"title"`
	Body            string `json:"body"`
	VisibleToClient bool   `json:"visible_to_client"`
}

// CreateUpdate handles POST /api/admin/projects/{id}/updates
func (h *ProjectHandler) CreateUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}
	var req projectUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeMessage(w, http.StatusBadRequest, "title is required")
		return
	}
	u, err := h.updates.Create(r.Context(), p.ID, req.Title, req.Body, req.VisibleToClient)
	if err != nil {
		writeError(w, h.logger, "create project update", err)
		return
	}
	broadcast(h.hub, "project_update", "created", u.ID)
	writeJSON(w, http.StatusCreated, u)
}

// DeleteUpdate handles DELETE /api/admin/project-updates/{id}
func (h *ProjectHandler) DeleteUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := h.updates.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get project update", err)
		return
	}
	if u == nil {
		writeMessage(w, http.StatusNotFound, "update not found")
		return
	}
	if err := h.updates.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, "delete project update", err)
		return
	}
	broadcast(h.hub, "project_update", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}
