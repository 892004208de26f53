package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// rewriteTransport redirects all requests to a test server.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	target, _ := url.Parse(t.target)
	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host
	return t.base.RoundTrip(req)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSender struct {
	configured bool
	sent       []Message
	err        error
}

func (f *fakeSender) Configured() bool { return f.configured }

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	return r
}

func TestRenderMagicLink(t *testing.T) {
	r := newTestRenderer(t)

	msg, err := r.Render(KindMagicLink, map[string]any{
		"site_name":   "Brightwork",
		"url":         "https://example.test/auth/client/verify?token=abc",
		"ttl_minutes": 15,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg.Subject != "Your Brightwork sign-in link" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.TextBody, "https://example.test/auth/client/verify?token=abc") {
		t.Errorf("text body missing link: %q", msg.TextBody)
	}
	if !strings.Contains(msg.HTMLBody, `href="https://example.test/auth/client/verify?token=abc"`) {
		t.Errorf("html body missing link: %q", msg.HTMLBody)
	}
}

func TestRenderEveryKind(t *testing.T) {
	r := newTestRenderer(t)
	kinds := []Kind{
		KindMagicLink, KindQuoteReceived, KindQuoteAdminAlert,
		KindQuoteSent, KindQuotePaid, KindContactAdminAlert,
	}
	for _, k := range kinds {
		msg, err := r.Render(k, map[string]any{"name": "Alice", "features": []string{"cms"}})
		if err != nil {
			t.Errorf("render %s: %v", k, err)
			continue
		}
		if msg.Subject == "" {
			t.Errorf("render %s: empty subject", k)
		}
	}
}

func TestRenderEscapesVisitorInput(t *testing.T) {
	r := newTestRenderer(t)
	msg, err := r.Render(KindContactAdminAlert, map[string]any{
		"name":    "Mallory",
		"email":   "m@example.com",
		"phone":   "",
		"message": `<script>alert("hi")</script>`,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(msg.HTMLBody, "<script>") {
		t.Errorf("html body not escaped: %q", msg.HTMLBody)
	}
	if !strings.Contains(msg.TextBody, "<script>") {
		t.Errorf("text body should carry the message verbatim: %q", msg.TextBody)
	}
}

func TestRenderUnknownKind(t *testing.T) {
	r := newTestRenderer(t)
	_, err := r.Render(Kind("nope"), nil)
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestMailerDevMode(t *testing.T) {
	m := NewMailer(nil, newTestRenderer(t), map[string]any{"site_name": "Brightwork"}, discardLogger())

	res := m.Send(context.Background(), "alice@example.com", KindMagicLink, map[string]any{"url": "u"})
	if !res.Success || !res.DevMode || res.Err != nil {
		t.Errorf("result = %+v, want success in dev mode", res)
	}
}

func TestMailerUnconfiguredSenderIsDevMode(t *testing.T) {
	sender := &fakeSender{configured: false}
	m := NewMailer(sender, newTestRenderer(t), nil, discardLogger())

	res := m.Send(context.Background(), "alice@example.com", KindQuotePaid, nil)
	if !res.DevMode {
		t.Error("expected dev mode with unconfigured sender")
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent = %d, want 0", len(sender.sent))
	}
}

func TestMailerSendsThroughSender(t *testing.T) {
	sender := &fakeSender{configured: true}
	m := NewMailer(sender, newTestRenderer(t), map[string]any{"site_name": "Brightwork"}, discardLogger())

	res := m.Send(context.Background(), "alice@example.com", KindQuotePaid, map[string]any{"name": "Alice", "amount": "£3,599.00"})
	if !res.Success || res.DevMode {
		t.Errorf("result = %+v, want delivered", res)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sender.sent))
	}
	if sender.sent[0].To != "alice@example.com" {
		t.Errorf("to = %q", sender.sent[0].To)
	}
	if !strings.Contains(sender.sent[0].TextBody, "£3,599.00") {
		t.Errorf("body missing amount: %q", sender.sent[0].TextBody)
	}
}

func TestMailerSenderFailure(t *testing.T) {
	sender := &fakeSender{configured: true, err: errors.New("boom")}
	m := NewMailer(sender, newTestRenderer(t), nil, discardLogger())

	res := m.Send(context.Background(), "alice@example.com", KindQuotePaid, nil)
	if res.Success {
		t.Error("expected failure")
	}
	if res.Err == nil {
		t.Error("expected error in result")
	}
}

func TestPostmarkSend(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	s := NewPostmarkSender("test-token", "hello@example.com",
		WithHTTPClient(&http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}))

	err := s.Send(context.Background(), Message{To: "alice@example.com", Subject: "Hi", TextBody: "text", HTMLBody: "<p>html</p>"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", received.To, "alice@example.com")
	}
	if received.From != "hello@example.com" {
		t.Errorf("From = %q, want %q", received.From, "hello@example.com")
	}
	if received.HtmlBody != "<p>html</p>" {
		t.Errorf("HtmlBody = %q", received.HtmlBody)
	}
}

func TestPostmarkAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	s := NewPostmarkSender("test-token", "hello@example.com",
		WithHTTPClient(&http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}))

	if err := s.Send(context.Background(), Message{To: "alice@example.com"}); err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestSendersConfigured(t *testing.T) {
	if NewPostmarkSender("", "a@b.c").Configured() {
		t.Error("postmark without token should be unconfigured")
	}
	if !NewPostmarkSender("tok", "a@b.c").Configured() {
		t.Error("postmark with token should be configured")
	}
	if NewSMTPSender(SMTPConfig{From: "a@b.c"}).Configured() {
		t.Error("smtp without host should be unconfigured")
	}
	if !NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "a@b.c"}).Configured() {
		t.Error("smtp with host should be configured")
	}
	if NewMailgunSender("", "", "a@b.c", "").Configured() {
		t.Error("mailgun without key should be unconfigured")
	}
	if !NewMailgunSender("mg.example.com", "key", "a@b.c", "").Configured() {
		t.Error("mailgun with key should be configured")
	}
}

func TestSMTPBuildMsg(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "hello@example.com", FromName: "Brightwork"})
	if _, err := s.buildMsg(Message{To: "alice@example.com", Subject: "Hi", TextBody: "text"}); err != nil {
		t.Fatalf("build msg: %v", err)
	}
	if _, err := s.buildMsg(Message{To: "not an address", Subject: "Hi"}); err == nil {
		t.Error("expected error for malformed recipient")
	}
}
