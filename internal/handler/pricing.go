package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/brightwork/internal/pricing"
	"github.com/dukerupert/brightwork/internal/quote"
	"github.com/dukerupert/brightwork/internal/token"
)

const (
	fxSessionCookie = "fx_session"
	currencyCookie  = "currency"
	fxSessionTTL    = 24 * time.Hour
	currencyTTL     = 365 * 24 * time.Hour
)

type PricingHandler struct {
	provider *pricing.Provider
	secure   bool
	logger   *slog.Logger
}

func NewPricingHandler(provider *pricing.Provider, secure bool, logger *slog.Logger) *PricingHandler {
	return &PricingHandler{provider: provider, secure: secure, logger: logger}
}

type displayPrice struct {
	Key     string        `json:"key"`
	Name    string        `json:"name"`
	Price   pricing.Price `json:"price"`
	Display string        `json:"display"`
}

func (h *PricingHandler) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// currency picks the display currency: an explicit ?currency= (remembered
// in a cookie), then the cookie, then Accept-Language.
func (h *PricingHandler) currency(w http.ResponseWriter, r *http.Request) string {
	engine := h.provider.Engine()
	if c := strings.ToUpper(r.URL.Query().Get("currency")); c != "" && engine.Supported(c) {
		h.setCookie(w, currencyCookie, c, currencyTTL)
		return c
	}
	if ck, err := r.Cookie(currencyCookie); err == nil && engine.Supported(ck.Value) {
		return ck.Value
	}
	return pricing.FromAcceptLanguage(r.Header.Get("Accept-Language"))
}

// fxKey returns the visitor's rate-cache key, issuing one when missing.
func (h *PricingHandler) fxKey(w http.ResponseWriter, r *http.Request) string {
	if ck, err := r.Cookie(fxSessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	key, err := token.New()
	if err != nil {
		h.logger.Warn("issue fx session key", "error", err)
		return ""
	}
	h.setCookie(w, fxSessionCookie, key, fxSessionTTL)
	return key
}

// Packages handles GET /api/pricing. Rates are resolved once per request so
// every price on the page comes from the same table.
func (h *PricingHandler) Packages(w http.ResponseWriter, r *http.Request) {
	cur := h.currency(w, r)
	pass := h.provider.Pass(r.Context(), h.fxKey(w, r))

	pkgs := quote.Packages()
	packages := make([]displayPrice, 0, len(pkgs))
	for _, p := range pkgs {
		price := pass.Price(p.BasePrice, cur)
		packages = append(packages, displayPrice{Key: p.Key, Name: p.Name, Price: price, Display: pricing.Format(price.Amount, price.Currency)})
	}
	feats := quote.Features()
	features := make([]displayPrice, 0, len(feats))
	for _, f := range feats {
		price := pass.Price(f.Price, cur)
		features = append(features, displayPrice{Key: f.Key, Name: f.Name, Price: price, Display: pricing.Format(price.Amount, price.Currency)})
	}

	resolved := cur
	if len(packages) > 0 {
		resolved = packages[0].Price.Currency
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"currency":   resolved,
		"currencies": h.provider.Engine().Currencies(),
		"live":       pass.Live(),
		"packages":   packages,
		"features":   features,
	})
}
