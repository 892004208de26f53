package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const postmarkURL = "https://api.postmarkapp.com/email"

// PostmarkSender delivers through the Postmark HTTP API.
type PostmarkSender struct {
	serverToken string
	from        string
	httpClient  *http.Client
}

type Option func(*PostmarkSender)

func WithHTTPClient(c *http.Client) Option {
	return func(s *PostmarkSender) {
		s.httpClient = c
	}
}

func NewPostmarkSender(serverToken, from string, opts ...Option) *PostmarkSender {
	s := &PostmarkSender{
		serverToken: serverToken,
		from:        from,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured returns true if the server token is set.
func (s *PostmarkSender) Configured() bool {
	return s.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

func (s *PostmarkSender) Send(ctx context.Context, msg Message) error {
	if !s.Configured() {
		return fmt.Errorf("postmark sender not configured: missing server token")
	}

	body, err := json.Marshal(postmarkEmail{
		From:     s.from,
		To:       msg.To,
		Subject:  msg.Subject,
		HtmlBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", s.serverToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}
	return nil
}
