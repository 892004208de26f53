// Package config loads settings from defaults, an optional config file and
// BRIGHTWORK_* environment variables, in increasing precedence.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "BRIGHTWORK"

type EmailConfig struct {
	// Provider is postmark, smtp, mailgun, or empty for dev mode.
	Provider      string
	From          string
	FromName      string
	AdminNotify   string
	PostmarkToken string
	SMTP          struct {
		Host     string
		Port     int
		Username string
		Password string
	}
	Mailgun struct {
		Domain  string
		APIKey  string
		APIBase string
	}
}

type BackupConfig struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	Passphrase    string
	RetentionDays int
	Hour          int
}

type Config struct {
	Port     int
	DBPath   string
	BaseURL  string
	Env      string
	SiteName string

	LogLevel  string
	LogFormat string

	AdminSessionTTL  time.Duration
	ClientSessionTTL time.Duration

	Email EmailConfig

	StripeSecretKey      string
	StripeWebhookSecret  string
	StripePublishableKey string

	RatesURL      string
	RateCacheTTL  time.Duration
	QuoteValidity time.Duration

	CSRFKey string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string

	Backup BackupConfig

	MagicLinkRetentionDays int

	SeedAdminEmail string
	SeedAdminName  string
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// CSRFKeyBytes decodes csrf.key. An empty key yields nil.
func (c *Config) CSRFKeyBytes() ([]byte, error) {
	if c.CSRFKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.CSRFKey)
	if err != nil {
		return nil, fmt.Errorf("csrf.key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("csrf.key: want 32 bytes, got %d", len(key))
	}
	return key, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "brightwork.db")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("env", "development")
	v.SetDefault("site_name", "Brightwork")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("session.admin_ttl", 24*time.Hour)
	v.SetDefault("session.client_ttl", 30*24*time.Hour)

	v.SetDefault("email.provider", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.from_name", "")
	v.SetDefault("email.admin_notify", "")
	v.SetDefault("email.postmark_token", "")
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.mailgun.domain", "")
	v.SetDefault("email.mailgun.api_key", "")
	v.SetDefault("email.mailgun.api_base", "")

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.publishable_key", "")

	v.SetDefault("pricing.rates_url", "https://open.er-api.com/v6/latest/GBP")
	v.SetDefault("pricing.cache_ttl", 24*time.Hour)
	v.SetDefault("quote.validity", 30*24*time.Hour)

	v.SetDefault("csrf.key", "")

	v.SetDefault("push.vapid_public_key", "")
	v.SetDefault("push.vapid_private_key", "")
	v.SetDefault("push.subscriber", "")

	v.SetDefault("backup.endpoint", "")
	v.SetDefault("backup.bucket", "")
	v.SetDefault("backup.region", "auto")
	v.SetDefault("backup.access_key", "")
	v.SetDefault("backup.secret_key", "")
	v.SetDefault("backup.passphrase", "")
	v.SetDefault("backup.retention_days", 30)
	v.SetDefault("backup.hour", 3)

	v.SetDefault("retention.magic_link_days", 0)

	v.SetDefault("seed.admin_email", "")
	v.SetDefault("seed.admin_name", "Admin")
}

// Load reads configuration. When file is empty, config.{yaml,toml,json} is
// looked up in the working directory and /etc/brightwork; a missing file is
// not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/brightwork/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := fromViper(v)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Port:     v.GetInt("port"),
		DBPath:   v.GetString("db_path"),
		BaseURL:  strings.TrimRight(v.GetString("base_url"), "/"),
		Env:      strings.ToLower(v.GetString("env")),
		SiteName: v.GetString("site_name"),

		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),

		AdminSessionTTL:  v.GetDuration("session.admin_ttl"),
		ClientSessionTTL: v.GetDuration("session.client_ttl"),

		StripeSecretKey:      v.GetString("stripe.secret_key"),
		StripeWebhookSecret:  v.GetString("stripe.webhook_secret"),
		StripePublishableKey: v.GetString("stripe.publishable_key"),

		RatesURL:      v.GetString("pricing.rates_url"),
		RateCacheTTL:  v.GetDuration("pricing.cache_ttl"),
		QuoteValidity: v.GetDuration("quote.validity"),

		CSRFKey: v.GetString("csrf.key"),

		VAPIDPublicKey:  v.GetString("push.vapid_public_key"),
		VAPIDPrivateKey: v.GetString("push.vapid_private_key"),
		PushSubscriber:  v.GetString("push.subscriber"),

		Backup: BackupConfig{
			Endpoint:      v.GetString("backup.endpoint"),
			Bucket:        v.GetString("backup.bucket"),
			Region:        v.GetString("backup.region"),
			AccessKey:     v.GetString("backup.access_key"),
			SecretKey:     v.GetString("backup.secret_key"),
			Passphrase:    v.GetString("backup.passphrase"),
			RetentionDays: v.GetInt("backup.retention_days"),
			Hour:          v.GetInt("backup.hour"),
		},

		MagicLinkRetentionDays: v.GetInt("retention.magic_link_days"),

		SeedAdminEmail: v.GetString("seed.admin_email"),
		SeedAdminName:  v.GetString("seed.admin_name"),
	}

	cfg.Email.Provider = strings.ToLower(v.GetString("email.provider"))
	cfg.Email.From = v.GetString("email.from")
	cfg.Email.FromName = v.GetString("email.from_name")
	cfg.Email.AdminNotify = v.GetString("email.admin_notify")
	cfg.Email.PostmarkToken = v.GetString("email.postmark_token")
	cfg.Email.SMTP.Host = v.GetString("email.smtp.host")
	cfg.Email.SMTP.Port = v.GetInt("email.smtp.port")
	cfg.Email.SMTP.Username = v.GetString("email.smtp.username")
	cfg.Email.SMTP.Password = v.GetString("email.smtp.password")
	cfg.Email.Mailgun.Domain = v.GetString("email.mailgun.domain")
	cfg.Email.Mailgun.APIKey = v.GetString("email.mailgun.api_key")
	cfg.Email.Mailgun.APIBase = v.GetString("email.mailgun.api_base")

	if cfg.PushSubscriber == "" && cfg.Email.From != "" {
		cfg.PushSubscriber = "mailto:" + cfg.Email.From
	}
	return cfg
}

func (c *Config) validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Env != "development" && c.Env != "production" {
		errs = append(errs, fmt.Errorf("env must be development or production, got %q", c.Env))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL))
	}
	if c.AdminSessionTTL <= 0 || c.ClientSessionTTL <= 0 {
		errs = append(errs, errors.New("session TTLs must be positive"))
	}

	switch c.Email.Provider {
	case "":
	case "postmark":
		if c.Email.PostmarkToken == "" {
			errs = append(errs, errors.New("email.provider postmark requires email.postmark_token"))
		}
	case "smtp":
		if c.Email.SMTP.Host == "" {
			errs = append(errs, errors.New("email.provider smtp requires email.smtp.host"))
		}
	case "mailgun":
		if c.Email.Mailgun.Domain == "" || c.Email.Mailgun.APIKey == "" {
			errs = append(errs, errors.New("email.provider mailgun requires email.mailgun.domain and api_key"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown email.provider %q", c.Email.Provider))
	}
	if c.Email.Provider != "" && c.Email.From == "" {
		errs = append(errs, errors.New("email.from is required when an email provider is set"))
	}

	if _, err := c.CSRFKeyBytes(); err != nil {
		errs = append(errs, err)
	}
	if c.IsProduction() && c.CSRFKey == "" {
		errs = append(errs, errors.New("csrf.key is required in production"))
	}
	if c.StripeSecretKey != "" && c.StripeWebhookSecret == "" {
		errs = append(errs, errors.New("stripe.webhook_secret is required with stripe.secret_key"))
	}
	if c.Backup.Hour > 23 {
		errs = append(errs, fmt.Errorf("backup.hour %d out of range", c.Backup.Hour))
	}

	return errors.Join(errs...)
}
