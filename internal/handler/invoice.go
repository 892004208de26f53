package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/brightwork/internal/apperr"
	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/store"
)

type InvoiceHandler struct {
	invoices *store.InvoiceStore
	projects *store.ProjectStore
	hub      Broadcaster
	logger   *slog.Logger
}

func NewInvoiceHandler(is *store.InvoiceStore, ps *store.ProjectStore, hub Broadcaster, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoices: is, projects: ps, hub: hub, logger: logger}
}

var validInvoiceStatuses = map[model.InvoiceStatus]bool{
	model.InvoiceStatusDraft: true,
	model.InvoiceStatusSent:  true,
	model.InvoiceStatusPaid:  true,
	model.InvoiceStatusVoid:  true,
}

type invoiceRequest struct {
	ProjectID int64               `json:"project_id"`
	Number    string              `json:"number"`
	Amount    int64               `json:"amount"`
	Status    model.InvoiceStatus `json:"status"`
	DueDate   *time.Time          `json:"due_date"`
}

func (req *invoiceRequest) validate() error {
	req.Number = strings.TrimSpace(req.Number)
	v := apperr.NewValidation()
	if req.Number == "" {
		v.Add("number", "is required")
	}
	if req.Amount < 0 {
		v.Add("amount", "must not be negative")
	}
	if req.Status != "" && !validInvoiceStatuses[req.Status] {
		v.Add("status", "must be draft, sent, paid, or void")
	}
	return v.OrNil()
}

func (req *invoiceRequest) input() store.InvoiceInput {
	return store.InvoiceInput{
		ProjectID: req.ProjectID,
		Number:    req.Number,
		Amount:    req.Amount,
		Status:    req.Status,
		DueDate:   req.DueDate,
	}
}

// ListByProject handles GET /api/admin/projects/{id}/invoices
func (h *InvoiceHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	invoices, err := h.invoices.ListByProject(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "list invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(invoices))
}

// Create handles POST /api/admin/invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, h.logger, "validate invoice", err)
		return
	}
	p, err := h.projects.GetByID(r.Context(), req.ProjectID)
	if err != nil {
		writeError(w, h.logger, "get project", err)
		return
	}
	if p == nil {
		writeMessage(w, http.StatusBadRequest, "project_id: no such project")
		return
	}

	inv, err := h.invoices.Create(r.Context(), req.input())
	if err != nil {
		storeError(w, h.logger, "create invoice", err, "invoice number already in use")
		return
	}
	broadcast(h.hub, "invoice", "created", inv.ID)
	writeJSON(w, http.StatusCreated, inv)
}

// Update handles PUT /api/admin/invoices/{id}. The project cannot change.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req invoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, h.logger, "validate invoice", err)
		return
	}

	inv, err := h.invoices.Update(r.Context(), id, req.input(), time.Now())
	if err != nil {
		storeError(w, h.logger, "update invoice", err, "invoice number already in use")
		return
	}
	if inv == nil {
		writeMessage(w, http.StatusNotFound, "invoice not found")
		return
	}
	broadcast(h.hub, "invoice", "updated", inv.ID)
	writeJSON(w, http.StatusOK, inv)
}

// Delete handles DELETE /api/admin/invoices/{id}
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.invoices.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get invoice", err)
		return
	}
	if inv == nil {
		writeMessage(w, http.StatusNotFound, "invoice not found")
		return
	}
	if err := h.invoices.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, "delete invoice", err)
		return
	}
	broadcast(h.hub, "invoice", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}
