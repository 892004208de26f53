// Package quote runs quote requests from intake through payment:
// pending_review, sent_to_client, accepted or declined, then paid.
package quote

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"

	"github.com/dukerupert/brightwork/internal/apperr"
	"github.com/dukerupert/brightwork/internal/email"
	"github.com/dukerupert/brightwork/internal/model"
	"github.com/dukerupert/brightwork/internal/notify"
	"github.com/dukerupert/brightwork/internal/payment"
	"github.com/dukerupert/brightwork/internal/pricing"
	"github.com/dukerupert/brightwork/internal/store"
)

const (
	DefaultValidity = 30 * 24 * time.Hour

	// PaymentCurrency is the Stripe currency quotes are charged in.
	PaymentCurrency = "gbp"

	MetaQuoteToken = "quote_token"
	MetaQuoteID    = "quote_id"
)

type Store interface {
	Create(ctx context.Context, nq store.NewQuote) (*model.Quote, error)
	GetByID(ctx context.Context, id int64) (*model.Quote, error)
	GetByToken(ctx context.Context, token string) (*model.Quote, error)
	List(ctx context.Context, f store.QuoteFilter) ([]model.Quote, error)
	UpdateStatus(ctx context.Context, id int64, status model.QuoteStatus) error
	Transition(ctx context.Context, id int64, status model.QuoteStatus, from ...model.QuoteStatus) (bool, error)
	MarkAccepted(ctx context.Context, id int64, intentID string) (bool, error)
	UpdateMeta(ctx context.Context, id int64, adminNotes *string, finalAmount *int64) error
	Delete(ctx context.Context, id int64) (bool, error)
}

type Payments interface {
	CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error)
}

type Mailer interface {
	Send(ctx context.Context, to string, kind email.Kind, payload map[string]any) email.Result
}

type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

type Config struct {
	BaseURL string
	// Validity is how long a quote can be accepted after creation.
	Validity time.Duration
	// AdminEmail receives new-quote alerts. Empty disables them.
	AdminEmail string
}

// Request is a visitor's quote request.
type Request struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Company      string   `json:"company"`
	Phone        string   `json:"phone"`
	ProjectType  string   `json:"project_type"`
	Features     []string `json:"features"`
	Timeline     string   `json:"timeline"`
	BudgetRange  string   `json:"budget_range"`
	Requirements string   `json:"requirements"`
}

// AcceptResult is what the browser needs to collect payment.
type AcceptResult struct {
	ClientSecret string `json:"client_secret"`
	IntentID     string `json:"intent_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// SendResult reports whether the client-facing email went out.
type SendResult struct {
	Quote   *model.Quote `json:"quote"`
	Emailed bool         `json:"emailed"`
	DevMode bool         `json:"dev_mode,omitempty"`
	URL     string       `json:"url,omitempty"`
}

type Service struct {
	store    Store
	payments Payments
	mailer   Mailer
	notifier Notifier
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(st Store, payments Payments, mailer Mailer, notifier Notifier, cfg Config, logger *slog.Logger) *Service {
	if cfg.Validity <= 0 {
		cfg.Validity = DefaultValidity
	}
	return &Service{
		store:    st,
		payments: payments,
		mailer:   mailer,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) quoteURL(tok string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/quote/" + tok
}

func (s *Service) validate(req *Request) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Timeline = strings.TrimSpace(req.Timeline)

	v := apperr.NewValidation()
	if req.Name == "" {
		v.Add("name", "is required")
	}
	if req.Email == "" {
		v.Add("email", "is required")
	} else if !govalidator.IsEmail(req.Email) {
		v.Add("email", "must be a valid email address")
	}
	if req.ProjectType == "" {
		v.Add("project_type", "is required")
	} else if _, ok := lookupPackage(req.ProjectType); !ok {
		v.Add("project_type", "is not offered")
	}
	if !ValidTimeline(req.Timeline) {
		v.Add("timeline", "must be rush, standard or flexible")
	}

	seen := make(map[string]bool, len(req.Features))
	deduped := req.Features[:0:0]
	for _, f := range req.Features {
		if _, ok := lookupFeature(f); !ok {
			v.Add("features", fmt.Sprintf("unknown feature %q", f))
			continue
		}
		if !seen[f] {
			seen[f] = true
			deduped = append(deduped, f)
		}
	}
	req.Features = deduped
	return v.OrNil()
}

// Create stores a new quote in pending_review. The amount is computed here
// and never recomputed.
func (s *Service) Create(ctx context.Context, req Request) (*model.Quote, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	q, err := s.store.Create(ctx, store.NewQuote{
		Token:        uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Company:      req.Company,
		Phone:        req.Phone,
		ProjectType:  req.ProjectType,
		Features:     req.Features,
		Timeline:     req.Timeline,
		BudgetRange:  req.BudgetRange,
		Requirements: req.Requirements,
		QuoteAmount:  Estimate(req.ProjectType, req.Features, req.Timeline),
		ExpiresAt:    s.now().Add(s.cfg.Validity),
	})
	if err != nil {
		return nil, err
	}

	amount := pricing.FormatMinor(q.QuoteAmount, pricing.BaseCurrency)
	if res := s.mailer.Send(ctx, q.Email, email.KindQuoteReceived, map[string]any{
		"name":         q.Name,
		"project_type": q.ProjectType,
		"amount":       amount,
	}); res.Err != nil {
		s.logger.Error("send quote receipt", "quote_id", q.ID, "error", res.Err)
	}
	if s.cfg.AdminEmail != "" {
		if res := s.mailer.Send(ctx, s.cfg.AdminEmail, email.KindQuoteAdminAlert, map[string]any{
			"name":         q.Name,
			"email":        q.Email,
			"company":      q.Company,
			"project_type": q.ProjectType,
			"amount":       amount,
			"features":     q.Features,
			"timeline":     q.Timeline,
			"requirements": q.Requirements,
		}); res.Err != nil {
			s.logger.Error("send quote admin alert", "quote_id", q.ID, "error", res.Err)
		}
	}

	s.notifier.Notify(ctx, notify.Event{
		Entity: "quote",
		Action: "created",
		ID:     q.ID,
		Title:  "New quote request",
		Body:   fmt.Sprintf("%s asked for a %s (%s)", q.Name, q.ProjectType, amount),
		URL:    "/admin/quotes/" + strconv.FormatInt(q.ID, 10),
	})

	s.logger.Info("quote created", "quote_id", q.ID, "project_type", q.ProjectType, "amount", q.QuoteAmount)
	return q, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Quote, error) {
	q, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, ErrNotFound
	}
	return q, nil
}

// View is the public read by token.
func (s *Service) View(ctx context.Context, tok string) (*model.Quote, error) {
	if tok == "" {
		return nil, ErrNotFound
	}
	q, err := s.store.GetByToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, ErrNotFound
	}
	return q, nil
}

func (s *Service) List(ctx context.Context, f store.QuoteFilter) ([]model.Quote, error) {
	return s.store.List(ctx, f)
}

// SendToClient moves a quote to sent_to_client and emails the client a link.
// Resending a quote that is already with the client is allowed.
func (s *Service) SendToClient(ctx context.Context, id int64) (*SendResult, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.Transition(ctx, q.ID, model.QuoteStatusSentToClient,
		model.QuoteStatusPendingReview, model.QuoteStatusSentToClient)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAvailable
	}
	q.Status = model.QuoteStatusSentToClient

	link := s.quoteURL(q.Token)
	res := s.mailer.Send(ctx, q.Email, email.KindQuoteSent, map[string]any{
		"name":       q.Name,
		"amount":     pricing.FormatMinor(q.PayableAmount(), pricing.BaseCurrency),
		"url":        link,
		"expires_at": q.ExpiresAt.Format("2 January 2006"),
	})
	if res.Err != nil {
		s.logger.Error("send quote to client", "quote_id", q.ID, "error", res.Err)
	}

	out := &SendResult{Quote: q, Emailed: res.Success, DevMode: res.DevMode}
	if res.DevMode {
		out.URL = link
	}
	return out, nil
}

// available loads the quote behind tok and checks it is waiting on the client.
func (s *Service) available(ctx context.Context, tok string) (*model.Quote, error) {
	q, err := s.View(ctx, tok)
	if err != nil {
		return nil, err
	}
	if q.Status != model.QuoteStatusSentToClient {
		return nil, ErrNotAvailable
	}
	return q, nil
}

// Accept opens a payment intent for the quote. The quote becomes paid only
// once the processor confirms the payment.
func (s *Service) Accept(ctx context.Context, tok string) (*AcceptResult, error) {
	q, err := s.available(ctx, tok)
	if err != nil {
		return nil, err
	}
	if s.now().After(q.ExpiresAt) {
		return nil, ErrExpired
	}

	amount := q.PayableAmount()
	intent, err := s.payments.CreateIntent(ctx, payment.IntentRequest{
		Amount:      amount,
		Currency:    PaymentCurrency,
		CustomerRef: q.Email,
		Metadata: map[string]string{
			MetaQuoteToken: q.Token,
			MetaQuoteID:    strconv.FormatInt(q.ID, 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("accept quote %d: %w", q.ID, err)
	}

	ok, err := s.store.MarkAccepted(ctx, q.ID, intent.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Declined or overridden while the intent was being created. The client
		// secret is never handed out, so the intent cannot be paid.
		s.logger.Warn("quote left sent_to_client during accept", "quote_id", q.ID, "intent_id", intent.ID)
		return nil, ErrNotAvailable
	}

	s.notifier.Notify(ctx, notify.Event{
		Entity: "quote",
		Action: "accepted",
		ID:     q.ID,
		Title:  "Quote accepted",
		Body:   fmt.Sprintf("%s accepted %s", q.Name, pricing.FormatMinor(amount, pricing.BaseCurrency)),
		URL:    "/admin/quotes/" + strconv.FormatInt(q.ID, 10),
	})

	return &AcceptResult{
		ClientSecret: intent.ClientSecret,
		IntentID:     intent.ID,
		Amount:       amount,
		Currency:     PaymentCurrency,
	}, nil
}

func (s *Service) Decline(ctx context.Context, tok string) (*model.Quote, error) {
	q, err := s.available(ctx, tok)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.Transition(ctx, q.ID, model.QuoteStatusDeclined, model.QuoteStatusSentToClient)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAvailable
	}
	q.Status = model.QuoteStatusDeclined

	s.notifier.Notify(ctx, notify.Event{
		Entity: "quote",
		Action: "declined",
		ID:     q.ID,
		Title:  "Quote declined",
		Body:   q.Name + " declined their quote",
		URL:    "/admin/quotes/" + strconv.FormatInt(q.ID, 10),
	})
	return q, nil
}

// ConfirmPayment asks the processor about intentID and marks the quote paid
// when it succeeded. An empty intentID uses the intent stored on acceptance.
func (s *Service) ConfirmPayment(ctx context.Context, tok, intentID string) (*model.Quote, error) {
	q, err := s.View(ctx, tok)
	if err != nil {
		return nil, err
	}
	if q.Status == model.QuoteStatusPaid {
		return q, nil
	}
	if intentID == "" && q.PaymentIntentID != nil {
		intentID = *q.PaymentIntentID
	}
	if intentID == "" {
		return nil, ErrPaymentNotCompleted
	}

	intent, err := s.payments.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("confirm payment for quote %d: %w", q.ID, err)
	}
	if err := s.markPaid(ctx, q, intent); err != nil {
		return nil, err
	}
	return q, nil
}

// HandleIntentSucceeded applies a verified payment_intent.succeeded webhook.
// Intents that carry no quote token belong to something else and are ignored.
func (s *Service) HandleIntentSucceeded(ctx context.Context, intent *payment.Intent) error {
	if intent == nil {
		return nil
	}
	tok := intent.Metadata[MetaQuoteToken]
	if tok == "" {
		s.logger.Debug("payment intent without quote token", "intent_id", intent.ID)
		return nil
	}
	q, err := s.View(ctx, tok)
	if err != nil {
		return err
	}
	if q.Status == model.QuoteStatusPaid {
		return nil
	}
	return s.markPaid(ctx, q, intent)
}

// markPaid sets q to paid if intent succeeded and carries q's token.
func (s *Service) markPaid(ctx context.Context, q *model.Quote, intent *payment.Intent) error {
	if intent.Metadata[MetaQuoteToken] != q.Token {
		return ErrPaymentMismatch
	}
	if intent.Status != payment.StatusSucceeded {
		return ErrPaymentNotCompleted
	}

	if err := s.store.UpdateStatus(ctx, q.ID, model.QuoteStatusPaid); err != nil {
		return err
	}
	q.Status = model.QuoteStatusPaid

	amount := pricing.FormatMinor(intent.Amount, strings.ToUpper(intent.Currency))
	if res := s.mailer.Send(ctx, q.Email, email.KindQuotePaid, map[string]any{
		"name":   q.Name,
		"amount": amount,
	}); res.Err != nil {
		s.logger.Error("send payment receipt", "quote_id", q.ID, "error", res.Err)
	}
	s.notifier.Notify(ctx, notify.Event{
		Entity: "quote",
		Action: "paid",
		ID:     q.ID,
		Title:  "Quote paid",
		Body:   fmt.Sprintf("%s paid %s", q.Name, amount),
		URL:    "/admin/quotes/" + strconv.FormatInt(q.ID, 10),
	})
	s.logger.Info("quote paid", "quote_id", q.ID, "intent_id", intent.ID)
	return nil
}

var allowedStatuses = map[model.QuoteStatus]bool{
	model.QuoteStatusPendingReview: true,
	model.QuoteStatusSentToClient:  true,
	model.QuoteStatusAccepted:      true,
	model.QuoteStatusDeclined:      true,
	model.QuoteStatusPaid:          true,
}

// SetStatus is the admin override: any allow-listed status, no guards.
func (s *Service) SetStatus(ctx context.Context, id int64, status string) (*model.Quote, error) {
	st := model.QuoteStatus(status)
	if !allowedStatuses[st] {
		return nil, ErrInvalidStatus
	}
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(ctx, id, st); err != nil {
		return nil, err
	}
	s.logger.Info("quote status overridden", "quote_id", id, "from", q.Status, "to", st)
	q.Status = st
	return q, nil
}

// UpdateMeta replaces admin notes and the final amount. Nil clears a field.
func (s *Service) UpdateMeta(ctx context.Context, id int64, adminNotes *string, finalAmount *int64) (*model.Quote, error) {
	if finalAmount != nil && *finalAmount < 0 {
		v := apperr.NewValidation()
		v.Add("final_amount", "must not be negative")
		return nil, v
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.UpdateMeta(ctx, id, adminNotes, finalAmount); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		s.logger.Error("delete quote", "quote_id", id, "error", err)
		return ErrDeleteFailed
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
