// Package payment wraps the Stripe PaymentIntent API.
package payment

import (
	"context"
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dukerupert/brightwork/internal/apperr"
)

const (
	StatusSucceeded = "succeeded"
	StatusCanceled  = "canceled"

	EventIntentSucceeded = "payment_intent.succeeded"
)

type Config struct {
	SecretKey      string
	WebhookSecret  string
	PublishableKey string
}

// IntentRequest describes a payment to collect. Amount is in minor units.
type IntentRequest struct {
	Amount      int64
	Currency    string
	CustomerRef string
	Metadata    map[string]string
}

type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"-"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`
}

// Event is a verified webhook event. Intent is set for payment_intent.* types.
type Event struct {
	ID     string
	Type   string
	Intent *Intent
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

func (c *Client) Configured() bool {
	return c.cfg.SecretKey != ""
}

func (c *Client) PublishableKey() string {
	return c.cfg.PublishableKey
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("payments not configured: %w", apperr.ErrUpstream)
	}

	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(req.Amount),
		Currency:     stripe.String(req.Currency),
		ReceiptEmail: stripe.String(req.CustomerRef),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %v: %w", err, apperr.ErrUpstream)
	}
	return fromStripe(pi), nil
}

func (c *Client) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("payments not configured: %w", apperr.ErrUpstream)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent: %v: %w", err, apperr.ErrUpstream)
	}
	return fromStripe(pi), nil
}

// VerifyWebhook checks the Stripe-Signature header and decodes the event.
func (c *Client) VerifyWebhook(payload []byte, sigHeader string) (Event, error) {
	ev, err := webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("verify webhook: %v: %w", err, apperr.ErrValidation)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil && len(ev.Data.Raw) > 0 && string(ev.Type) == EventIntentSucceeded {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return Event{}, fmt.Errorf("decode payment intent: %v: %w", err, apperr.ErrValidation)
		}
		out.Intent = fromStripe(&pi)
	}
	return out, nil
}
