// Package email renders transactional messages and hands them to a delivery
// provider. With no provider configured the Mailer runs in dev mode and only
// logs what it would have sent.
package email

import (
	"context"
	"errors"
	"log/slog"
)

// Kind names a transactional message template.
type Kind string

const (
	KindMagicLink         Kind = "magic_link"
	KindQuoteReceived     Kind = "quote_received"
	KindQuoteAdminAlert   Kind = "quote_admin_alert"
	KindQuoteSent         Kind = "quote_sent"
	KindQuotePaid         Kind = "quote_paid"
	KindContactAdminAlert Kind = "contact_admin_alert"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a rendered message through one provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Configured() bool
}

// Result reports the outcome of Mailer.Send. Callers that must not fail on
// delivery problems log Err and carry on.
type Result struct {
	Success bool
	DevMode bool
	Err     error
}

var ErrUnknownKind = errors.New("unknown email kind")

type Mailer struct {
	sender   Sender
	renderer *Renderer
	defaults map[string]any
	logger   *slog.Logger
}

// NewMailer builds a Mailer. sender may be nil or unconfigured, which puts
// the Mailer in dev mode. defaults are merged into every payload.
func NewMailer(sender Sender, renderer *Renderer, defaults map[string]any, logger *slog.Logger) *Mailer {
	return &Mailer{
		sender:   sender,
		renderer: renderer,
		defaults: defaults,
		logger:   logger,
	}
}

// DevMode reports whether messages are logged instead of delivered.
func (m *Mailer) DevMode() bool {
	return m.sender == nil || !m.sender.Configured()
}

func (m *Mailer) Send(ctx context.Context, to string, kind Kind, payload map[string]any) Result {
	bindings := make(map[string]any, len(m.defaults)+len(payload))
	for k, v := range m.defaults {
		bindings[k] = v
	}
	for k, v := range payload {
		bindings[k] = v
	}

	msg, err := m.renderer.Render(kind, bindings)
	if err != nil {
		return Result{Err: err}
	}
	msg.To = to

	if m.DevMode() {
		m.logger.Info("email not sent (dev mode)",
			"to", to,
			"kind", kind,
			"subject", msg.Subject,
			"body", msg.TextBody,
		)
		return Result{Success: true, DevMode: true}
	}

	if err := m.sender.Send(ctx, msg); err != nil {
		return Result{Err: err}
	}
	m.logger.Debug("email sent", "to", to, "kind", kind)
	return Result{Success: true}
}
