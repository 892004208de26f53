package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	"github.com/dukerupert/brightwork/internal/apperr"
	"github.com/dukerupert/brightwork/internal/email"
	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/notify"
	"github.com/dukerupert/brightwork/internal/store"
)

const maxContactMessage = 5000

type Mailer interface {
	Send(ctx context.Context, to string, kind email.Kind, payload map[string]any) email.Result
}

type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

type ContactHandler struct {
	contacts   *store.ContactStore
	clients    *store.ClientStore
	mailer     Mailer
	notifier   Notifier
	adminEmail string
	hub        Broadcaster
	logger     *slog.Logger
}

func NewContactHandler(cs *store.ContactStore, cls *store.ClientStore, mailer Mailer, notifier Notifier, adminEmail string, hub Broadcaster, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		contacts:   cs,
		clients:    cls,
		mailer:     mailer,
		notifier:   notifier,
		adminEmail: adminEmail,
		hub:        hub,
		logger:     logger,
	}
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (req *contactRequest) input() (store.ContactInput, error) {
	in := store.ContactInput{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Company: strings.TrimSpace(req.Company),
		Phone:   strings.TrimSpace(req.Phone),
		Message: strings.TrimSpace(req.Message),
	}
	v := apperr.NewValidation()
	if in.Name == "" {
		v.Add("name", "is required")
	}
	if !govalidator.IsEmail(in.Email) {
		v.Add("email", "must be a valid email address")
	}
	switch n := utf8.RuneCountInString(in.Message); {
	case n == 0:
		v.Add("message", "is required")
	case n > maxContactMessage:
		v.Add("message", "must be at most "+strconv.Itoa(maxContactMessage)+" characters")
	}
	return in, v.OrNil()
}

// Submit handles POST /api/contact. The admin alert email is best effort.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, "validate contact", err)
		return
	}

	c, err := h.contacts.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "create contact submission", err)
		return
	}

	if h.adminEmail != "" {
		res := h.mailer.Send(r.Context(), h.adminEmail, email.KindContactAdminAlert, map[string]any{
			"name":    c.Name,
			"email":   c.Email,
			"phone":   c.Phone,
			"message": c.Message,
		})
		if res.Err != nil {
			h.logger.Error("send contact alert", "contact_id", c.ID, "error", res.Err)
		}
	}
	h.notifier.Notify(r.Context(), notify.Event{
		Entity: "contact",
		Action: "created",
		ID:     c.ID,
		Title:  "New contact message",
		Body:   c.Name + " sent a message",
		URL:    "/admin/contacts/" + strconv.FormatInt(c.ID, 10),
	})

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Thanks, we will be in touch soon."})
}

// List handles GET /api/admin/contacts?read=true|false&q=
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	var f store.ContactFilter
	if v := r.URL.Query().Get("read"); v != "" {
		read, err := strconv.ParseBool(v)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "read must be true or false")
			return
		}
		f.Read = &read
	}
	f.Search = r.URL.Query().Get("q")

	subs, err := h.contacts.List(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, "list contact submissions", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(subs))
}

func (h *ContactHandler) load(w http.ResponseWriter, r *http.Request) (*model.ContactSubmission, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	c, err := h.contacts.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get contact submission", err)
		return nil, false
	}
	if c == nil {
		writeMessage(w, http.StatusNotFound, "submission not found")
		return nil, false
	}
	return c, true
}

// Get handles GET /api/admin/contacts/{id}
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type markReadRequest struct {
	Read *bool `json:"read"`
}

// MarkRead handles PUT /api/admin/contacts/{id}/read. An empty body marks
// the submission read.
func (h *ContactHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	var req markReadRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	read := true
	if req.Read != nil {
		read = *req.Read
	}
	if err := h.contacts.MarkRead(r.Context(), c.ID, read); err != nil {
		writeError(w, h.logger, "mark contact read", err)
		return
	}
	c.IsRead = read
	broadcast(h.hub, "contact", "updated", c.ID)
	writeJSON(w, http.StatusOK, c)
}

// Convert handles POST /api/admin/contacts/{id}/convert. It creates a lead
// from the submission, or links the existing client with the same email.
func (h *ContactHandler) Convert(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	if c.ConvertedClientID != nil {
		writeMessage(w, http.StatusConflict, "submission already converted")
		return
	}

	client, err := h.clients.GetByEmail(r.Context(), c.Email)
	if err != nil {
		writeError(w, h.logger, "lookup client", err)
		return
	}
	status := http.StatusOK
	if client == nil {
		client, err = h.clients.Create(r.Context(), store.ClientInput{
			Email:   c.Email,
			Name:    c.Name,
			Company: c.Company,
			Phone:   c.Phone,
			Status:  model.ClientStatusLead,
			Notes:   c.Message,
		})
		if err != nil {
			storeError(w, h.logger, "create client from contact", err, "a client with that email already exists")
			return
		}
		status = http.StatusCreated
		broadcast(h.hub, "client", "created", client.ID)
	}

	if err := h.contacts.SetConverted(r.Context(), c.ID, client.ID); err != nil {
		writeError(w, h.logger, "mark contact converted", err)
		return
	}
	broadcast(h.hub, "contact", "updated", c.ID)
	writeJSON(w, status, client)
}

// Delete handles DELETE /api/admin/contacts/{id}
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.contacts.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, "delete contact submission", err)
		return
	}
	broadcast(h.hub, "contact", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}
