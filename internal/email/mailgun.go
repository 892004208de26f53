package email

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunSender delivers through the Mailgun API.
type MailgunSender struct {
	mg   mailgun.Mailgun
	from string
}

// NewMailgunSender returns a sender for domain. apiBase overrides the API
// endpoint (for the EU region or tests) when non-empty.
func NewMailgunSender(domain, apiKey, from, apiBase string) *MailgunSender {
	if domain == "" || apiKey == "" {
		return &MailgunSender{from: from}
	}
	mg := mailgun.NewMailgun(domain, apiKey)
	if apiBase != "" {
		mg.SetAPIBase(apiBase)
	}
	return &MailgunSender{mg: mg, from: from}
}

func (s *MailgunSender) Configured() bool {
	return s.mg != nil && s.from != ""
}

func (s *MailgunSender) Send(ctx context.Context, m Message) error {
	if !s.Configured() {
		return fmt.Errorf("mailgun sender not configured")
	}

	message := mailgun.NewMessage(s.from, m.Subject, m.TextBody, m.To)
	if m.HTMLBody != "" {
		message.SetHtml(m.HTMLBody)
	}

	if _, _, err := s.mg.Send(ctx, message); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}
