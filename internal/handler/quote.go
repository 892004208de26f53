package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/pricing"
	"github.com/dukerupert/brightwork/internal/quote"
	"github.com/dukerupert/brightwork/internal/store"
)

type QuoteHandler struct {
	svc    *quote.Service
	logger *slog.Logger
}

func NewQuoteHandler(svc *quote.Service, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{svc: svc, logger: logger}
}

// publicQuote is what the holder of a quote link may see.
type publicQuote struct {
	Token         string            `json:"token"`
	Name          string            `json:"name"`
	Company       string            `json:"company,omitempty"`
	ProjectType   string            `json:"project_type"`
	Features      []string          `json:"features"`
	Timeline      string            `json:"timeline"`
	Amount        int64             `json:"amount"`
	AmountDisplay string            `json:"amount_display"`
	Status        model.QuoteStatus `json:"status"`
	ExpiresAt     time.Time         `json:"expires_at"`
	Expired       bool              `json:"expired"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toPublicQuote(q *model.Quote, now time.Time) publicQuote {
	amount := q.PayableAmount()
	return publicQuote{
		Token:         q.Token,
		Name:          q.Name,
		Company:       q.Company,
		ProjectType:   q.ProjectType,
		Features:      emptyIfNil(q.Features),
		Timeline:      q.Timeline,
		Amount:        amount,
		AmountDisplay: pricing.FormatMinor(amount, pricing.BaseCurrency),
		Status:        q.Status,
		ExpiresAt:     q.ExpiresAt,
		Expired:       now.After(q.ExpiresAt),
		CreatedAt:     q.CreatedAt,
	}
}

// Options handles GET /api/quote/options.
func (h *QuoteHandler) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"packages":  quote.Packages(),
		"features":  quote.Features(),
		"timelines": []string{"rush", "standard", "flexible"},
	})
}

// Create handles POST /api/quotes.
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req quote.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "create quote", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPublicQuote(q, time.Now()))
}

// View handles GET /api/quotes/{token}.
func (h *QuoteHandler) View(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.View(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, h.logger, "view quote", err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicQuote(q, time.Now()))
}

// Accept handles POST /api/quotes/{token}/accept.
func (h *QuoteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Accept(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, h.logger, "accept quote", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Decline handles POST /api/quotes/{token}/decline.
func (h *QuoteHandler) Decline(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Decline(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, h.logger, "decline quote", err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicQuote(q, time.Now()))
}

type confirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

// Confirm handles POST /api/quotes/{token}/confirm, called by the browser
// after the payment form completes. The body is optional.
func (h *QuoteHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.svc.ConfirmPayment(r.Context(), r.PathValue("token"), req.PaymentIntentID)
	if err != nil {
		writeError(w, h.logger, "confirm quote payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicQuote(q, time.Now()))
}

// List handles GET /api/admin/quotes?status=&email=&q=&limit=.
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	f := store.QuoteFilter{
		Status: model.QuoteStatus(qs.Get("status")),
		Email:  qs.Get("email"),
		Search: qs.Get("q"),
	}
	if l := qs.Get("limit"); l != "" {
		n, err := strconv.ParseUint(l, 10, 64)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}

	quotes, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, "list quotes", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(quotes))
}

// Get handles GET /api/admin/quotes/{id}.
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get quote", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Send handles POST /api/admin/quotes/{id}/send.
func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.SendToClient(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "send quote", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PUT /api/admin/quotes/{id}/status.
func (h *QuoteHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.svc.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, h.logger, "set quote status", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type metaRequest struct {
	AdminNotes  *string `json:"admin_notes"`
	FinalAmount *int64  `json:"final_amount"`
}

// UpdateMeta handles PUT /api/admin/quotes/{id}/meta. Omitted or null fields
// are cleared.
func (h *QuoteHandler) UpdateMeta(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req metaRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.svc.UpdateMeta(r.Context(), id, req.AdminNotes, req.FinalAmount)
	if err != nil {
		writeError(w, h.logger, "update quote meta", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Delete handles DELETE /api/admin/quotes/{id}.
func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, "delete quote", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
