package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/brightwork/internal/auth"
	"github.com/dukerupert/brightwork/internal/push"
	"github.com/dukerupert/brightwork/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	service   *push.Service
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, service: svc, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/admin/push/subscriptions
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeMessage(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}

	sub, err := h.pushStore.Subscribe(r.Context(), auth.IdentityID(r.Context()), req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		writeError(w, h.logger, "create push subscription", err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe handles DELETE /api/admin/push/subscriptions. Only the owner
// can remove a subscription.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.pushStore.GetByEndpoint(r.Context(), req.Endpoint)
	if err != nil {
		writeError(w, h.logger, "get push subscription", err)
		return
	}
	if sub == nil || sub.UserID != auth.IdentityID(r.Context()) {
		writeMessage(w, http.StatusNotFound, "subscription not found")
		return
	}
	if err := h.pushStore.DeleteByEndpoint(r.Context(), req.Endpoint); err != nil {
		writeError(w, h.logger, "delete push subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/admin/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByUser(r.Context(), auth.IdentityID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "list push subscriptions", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(subs))
}

// GetVAPIDKey handles GET /api/admin/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"public_key": h.service.VAPIDPublicKey(),
		"enabled":    h.service.Configured(),
	})
}

// TestNotification handles POST /api/admin/push/test
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	if !h.service.Configured() {
		writeMessage(w, http.StatusConflict, "push notifications are not configured")
		return
	}
	subs, err := h.pushStore.ListByUser(r.Context(), auth.IdentityID(r.Context()))
	if err != nil {
		writeError(w, h.logger, "list push subscriptions", err)
		return
	}

	payload := push.Payload{
		Title: "Test notification",
		Body:  "Push notifications are working.",
		URL:   "/admin",
		Tag:   "test",
	}
	sent := 0
	for i := range subs {
		if err := h.service.Send(r.Context(), &subs[i], payload); err != nil {
			h.logger.Warn("test push send", "endpoint", subs[i].Endpoint, "error", err)
			continue
		}
		sent++
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
