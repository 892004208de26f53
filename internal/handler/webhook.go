package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/brightwork/internal/apperr"
	"github.com/dukerupert/brightwork/internal/payment"
)

const maxWebhookBytes = 64 << 10

type WebhookVerifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (payment.Event, error)
}

type IntentSucceededHandler interface {
	HandleIntentSucceeded(ctx context.Context, intent *payment.Intent) error
}

type WebhookHandler struct {
	verifier WebhookVerifier
	quotes   IntentSucceededHandler
	logger   *slog.Logger
}

func NewWebhookHandler(verifier WebhookVerifier, quotes IntentSucceededHandler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, quotes: quotes, logger: logger}
}

// Stripe handles POST /webhooks/stripe. Events that can never apply are
// acknowledged so the processor stops retrying; store failures answer 500
// so it retries.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeMessage(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	ev, err := h.verifier.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("rejected webhook", "error", err)
		writeMessage(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if ev.Type == payment.EventIntentSucceeded {
		err := h.quotes.HandleIntentSucceeded(r.Context(), ev.Intent)
		switch {
		case err == nil:
		case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrConflict):
			h.logger.Warn("payment webhook not applied", "event_id", ev.ID, "error", err)
		default:
			h.logger.Error("apply payment webhook", "event_id", ev.ID, "error", err)
			writeMessage(w, http.StatusInternalServerError, "internal error")
			return
		}
	} else {
		h.logger.Debug("ignored webhook event", "event_id", ev.ID, "type", ev.Type)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
