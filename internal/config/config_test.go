package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Env != "development" || cfg.IsProduction() {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.AdminSessionTTL != 24*time.Hour {
		t.Errorf("AdminSessionTTL = %v, want 24h", cfg.AdminSessionTTL)
	}
	if cfg.ClientSessionTTL != 720*time.Hour {
		t.Errorf("ClientSessionTTL = %v, want 720h", cfg.ClientSessionTTL)
	}
	if cfg.QuoteValidity != 720*time.Hour {
		t.Errorf("QuoteValidity = %v, want 720h", cfg.QuoteValidity)
	}
	if cfg.Email.Provider != "" {
		t.Errorf("Email.Provider = %q, want empty (dev mode)", cfg.Email.Provider)
	}
	if cfg.Backup.Hour != 3 {
		t.Errorf("Backup.Hour = %d, want 3", cfg.Backup.Hour)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BRIGHTWORK_PORT", "9090")
	t.Setenv("BRIGHTWORK_BASE_URL", "https://studio.example.com/")
	t.Setenv("BRIGHTWORK_SESSION_ADMIN_TTL", "2h")
	t.Setenv("BRIGHTWORK_EMAIL_PROVIDER", "SMTP")
	t.Setenv("BRIGHTWORK_EMAIL_FROM", "hello@example.com")
	t.Setenv("BRIGHTWORK_EMAIL_SMTP_HOST", "smtp.example.com")
	t.Setenv("BRIGHTWORK_BACKUP_HOUR", "-1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.BaseURL != "https://studio.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if cfg.AdminSessionTTL != 2*time.Hour {
		t.Errorf("AdminSessionTTL = %v, want 2h", cfg.AdminSessionTTL)
	}
	if cfg.Email.Provider != "smtp" || cfg.Email.SMTP.Host != "smtp.example.com" {
		t.Errorf("Email = %+v, want smtp via smtp.example.com", cfg.Email)
	}
	if cfg.PushSubscriber != "mailto:hello@example.com" {
		t.Errorf("PushSubscriber = %q, want mailto fallback", cfg.PushSubscriber)
	}
	if cfg.Backup.Hour != -1 {
		t.Errorf("Backup.Hour = %d, want -1", cfg.Backup.Hour)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brightwork.yaml")
	body := "port: 7000\nsite_name: Acme Web\nemail:\n  provider: postmark\n  from: a@example.com\n  postmark_token: tok\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BRIGHTWORK_PORT", "7001")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 7001 {
		t.Errorf("Port = %d, want env to win over file", cfg.Port)
	}
	if cfg.SiteName != "Acme Web" {
		t.Errorf("SiteName = %q, want Acme Web", cfg.SiteName)
	}
	if cfg.Email.PostmarkToken != "tok" {
		t.Errorf("PostmarkToken = %q, want tok", cfg.Email.PostmarkToken)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"smtp without host", map[string]string{"BRIGHTWORK_EMAIL_PROVIDER": "smtp", "BRIGHTWORK_EMAIL_FROM": "a@b.c"}, "email.smtp.host"},
		{"unknown provider", map[string]string{"BRIGHTWORK_EMAIL_PROVIDER": "pigeon"}, "unknown email.provider"},
		{"bad csrf key", map[string]string{"BRIGHTWORK_CSRF_KEY": "zz"}, "csrf.key"},
		{"short csrf key", map[string]string{"BRIGHTWORK_CSRF_KEY": "abcd"}, "32 bytes"},
		{"production without csrf", map[string]string{"BRIGHTWORK_ENV": "production"}, "required in production"},
		{"bad env", map[string]string{"BRIGHTWORK_ENV": "staging"}, "env must be"},
		{"relative base url", map[string]string{"BRIGHTWORK_BASE_URL": "/site"}, "base_url"},
		{"stripe without webhook", map[string]string{"BRIGHTWORK_STRIPE_SECRET_KEY": "sk_test"}, "webhook_secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestCSRFKeyBytes(t *testing.T) {
	cfg := &Config{CSRFKey: strings.Repeat("ab", 32)}
	key, err := cfg.CSRFKeyBytes()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("len = %d, want 32", len(key))
	}

	empty := &Config{}
	if key, err := empty.CSRFKeyBytes(); err != nil || key != nil {
		t.Errorf("empty key = %v, %v; want nil, nil", key, err)
	}
}
