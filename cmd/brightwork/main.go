package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/brightwork/internal/auth"
	"github.com/dukerupert/brightwork/internal/backup"
	"github.com/dukerupert/brightwork/internal/config"
	"github.com/dukerupert/brightwork/internal/database"
	"github.com/dukerupert/brightwork/internal/email"
	"github.com/dukerupert/brightwork/internal/logging"
	"github.com/dukerupert/brightwork/internal/notify"
	"github.com/dukerupert/brightwork/internal/payment"
	"github.com/dukerupert/brightwork/internal/pricing"
	"github.com/dukerupert/brightwork/internal/push"
	"github.com/dukerupert/brightwork/internal/quote"
	"github.com/dukerupert/brightwork/internal/server"
	"github.com/dukerupert/brightwork/internal/store"
	ws "github.com/dukerupert/brightwork/internal/websocket"
)

const usage = `usage: brightwork [-config file] [command]

commands:
  serve                 run the web server (default)
  restore <id> <path>   download and decrypt backup <id> into <path>
  vapid-keys            print a new VAPID key pair for web push
`

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.Arg(0) == "vapid-keys" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("BRIGHTWORK_PUSH_VAPID_PUBLIC_KEY=%s\nBRIGHTWORK_PUSH_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	switch cmd := flag.Arg(0); cmd {
	case "", "serve":
		err = serve(cfg, db, logger)
	case "restore":
		err = restore(cfg, db, logger, flag.Args()[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func newSender(cfg *config.Config) email.Sender {
	switch cfg.Email.Provider {
	case "postmark":
		return email.NewPostmarkSender(cfg.Email.PostmarkToken, cfg.Email.From)
	case "smtp":
		return email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		})
	case "mailgun":
		return email.NewMailgunSender(cfg.Email.Mailgun.Domain, cfg.Email.Mailgun.APIKey, cfg.Email.From, cfg.Email.Mailgun.APIBase)
	}
	return nil
}

func newBackupManager(cfg *config.Config, db *sql.DB, notifier backup.Notifier, logger *slog.Logger) *backup.Manager {
	return backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		Passphrase:    cfg.Backup.Passphrase,
		RetentionDays: cfg.Backup.RetentionDays,
		Hour:          cfg.Backup.Hour,
	}, db, store.NewBackupStore(db), notifier, logger.With("component", "backup"))
}

func serve(cfg *config.Config, db *sql.DB, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users := store.NewUserStore(db)
	if cfg.SeedAdminEmail != "" {
		if _, err := users.EnsureAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminName); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	renderer, err := email.NewRenderer()
	if err != nil {
		return fmt.Errorf("load email templates: %w", err)
	}
	mailer := email.NewMailer(newSender(cfg), renderer, map[string]any{
		"site_name": cfg.SiteName,
		"base_url":  cfg.BaseURL,
	}, logger.With("component", "email"))
	if mailer.DevMode() {
		logger.Warn("email delivery disabled, messages will be logged")
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	pushSvc := push.NewService(push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.PushSubscriber,
	})
	notifier := notify.New(hub, pushSvc, store.NewPushStore(db), logger.With("component", "notify"))

	payments := payment.NewClient(payment.Config{
		SecretKey:      cfg.StripeSecretKey,
		WebhookSecret:  cfg.StripeWebhookSecret,
		PublishableKey: cfg.StripePublishableKey,
	})
	if !payments.Configured() {
		logger.Warn("stripe not configured, quote payments disabled")
	}

	authSvc := auth.NewService(
		store.NewMagicLinkStore(db),
		store.NewSessionStore(db),
		users,
		store.NewClientStore(db),
		mailer,
		auth.Config{
			BaseURL:            cfg.BaseURL,
			Policies:           auth.DefaultPolicies(cfg.AdminSessionTTL, cfg.ClientSessionTTL, cfg.IsProduction()),
			MagicLinkRetention: time.Duration(cfg.MagicLinkRetentionDays) * 24 * time.Hour,
		},
		logger.With("component", "auth"),
	)

	quotes := quote.NewService(store.NewQuoteStore(db), payments, mailer, notifier, quote.Config{
		BaseURL:    cfg.BaseURL,
		Validity:   cfg.QuoteValidity,
		AdminEmail: cfg.Email.AdminNotify,
	}, logger.With("component", "quote"))

	rateCache := pricing.NewRateCache(cfg.RateCacheTTL)
	provider := pricing.NewProvider(
		pricing.NewEngine(pricing.DefaultConfig()),
		pricing.NewHTTPRateSource(cfg.RatesURL),
		rateCache,
		logger.With("component", "pricing"),
	)

	backups := newBackupManager(cfg, db, notifier, logger)
	if err := backups.Init(ctx); err != nil {
		logger.Warn("load backup status", "error", err)
	}

	csrfKey, err := cfg.CSRFKeyBytes()
	if err != nil {
		return err
	}

	srv := server.New(db, server.Services{
		Auth:     authSvc,
		Quotes:   quotes,
		Pricing:  provider,
		Payments: payments,
		Push:     pushSvc,
		Backups:  backups,
		Mailer:   mailer,
		Notifier: notifier,
		Hub:      hub,
	}, server.Config{
		BaseURL:    cfg.BaseURL,
		Production: cfg.IsProduction(),
		CSRFKey:    csrfKey,
		AdminEmail: cfg.Email.AdminNotify,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("brightwork running", "addr", httpServer.Addr, "base_url", cfg.BaseURL, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				res, err := authSvc.Cleanup(gctx)
				if err != nil {
					logger.Error("auth cleanup failed", "error", err)
				} else if res.Sessions > 0 || res.MagicLinks > 0 {
					logger.Info("auth cleanup", "sessions", res.Sessions, "magic_links", res.MagicLinks)
				}
				if n := rateCache.Sweep(); n > 0 {
					logger.Debug("rate cache swept", "entries", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	})

	g.Go(func() error {
		return backups.Run(gctx)
	})

	return g.Wait()
}

func restore(cfg *config.Config, db *sql.DB, logger *slog.Logger, args []string) error {
	if len(args) != 2 {
		flag.Usage()
		os.Exit(2)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid backup id %q", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := newBackupManager(cfg, db, nil, logger)
	if !m.Configured() {
		return errors.New("backups are not configured")
	}
	if err := m.Restore(ctx, id, args[1]); err != nil {
		return err
	}
	logger.Info("backup restored", "id", id, "path", args[1])
	fmt.Printf("Restored backup %d to %s. Stop the server and replace %s with it to finish.\n", id, args[1], cfg.DBPath)
	return nil
}
