package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dukerupert/brightwork/internal/apperr"
)

func TestUnconfiguredClientIsUpstreamFailure(t *testing.T) {
	c := NewClient(Config{})
	if c.Configured() {
		t.Fatal("expected unconfigured client")
	}

	_, err := c.CreateIntent(context.Background(), IntentRequest{Amount: 100, Currency: "gbp"})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("create err = %v, want ErrUpstream", err)
	}
	_, err = c.RetrieveIntent(context.Background(), "pi_123")
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("retrieve err = %v, want ErrUpstream", err)
	}
}

func signedPayload(t *testing.T, secret, body string) ([]byte, string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func TestVerifyWebhookIntentSucceeded(t *testing.T) {
	c := NewClient(Config{WebhookSecret: "whsec_test"})
	body := fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_123", "object": "payment_intent", "status": "succeeded",
			"amount": 359900, "currency": "gbp", "metadata": {"quote_token": "tok-1"}}}
	}`, stripe.APIVersion)
	payload, sig := signedPayload(t, "whsec_test", body)

	ev, err := c.VerifyWebhook(payload, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ev.Type != EventIntentSucceeded {
		t.Errorf("type = %q", ev.Type)
	}
	if ev.Intent == nil {
		t.Fatal("expected intent")
	}
	if ev.Intent.ID != "pi_123" || ev.Intent.Status != StatusSucceeded {
		t.Errorf("intent = %+v", ev.Intent)
	}
	if ev.Intent.Metadata["quote_token"] != "tok-1" {
		t.Errorf("metadata = %v", ev.Intent.Metadata)
	}
}

func TestVerifyWebhookBadSignature(t *testing.T) {
	c := NewClient(Config{WebhookSecret: "whsec_test"})
	payload, sig := signedPayload(t, "whsec_other", `{"id":"evt_1","object":"event","type":"payment_intent.succeeded"}`)

	_, err := c.VerifyWebhook(payload, sig)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}
