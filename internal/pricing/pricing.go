// Package pricing converts base-currency prices into display prices for a
// visitor's currency, with market adjustment and charm rounding.
package pricing

import "math"

const BaseCurrency = "GBP"

// RateTable maps currency codes to units per one unit of the base currency.
// A nil table means no live rates were available.
type RateTable map[string]float64

type Config struct {
	BaseCurrency     string
	FallbackRates    map[string]float64
	MarketAdjustment map[string]float64
	// Rounding is the remainder added after flooring to the nearest 100.
	Rounding map[string]int64
}

func DefaultConfig() Config {
	return Config{
		BaseCurrency: BaseCurrency,
		FallbackRates: map[string]float64{
			"USD": 1.30,
			"EUR": 1.17,
			"CAD": 1.72,
			"AUD": 1.95,
			"NZD": 2.12,
		},
		MarketAdjustment: map[string]float64{
			"GBP": 1.00,
			"USD": 1.10,
			"EUR": 1.05,
			"CAD": 1.05,
			"AUD": 1.10,
			"NZD": 1.10,
		},
		Rounding: map[string]int64{
			"GBP": 99,
			"USD": 99,
			"EUR": 99,
			"CAD": 99,
			"AUD": 99,
			"NZD": 99,
		},
	}
}

// Price is a whole-unit display price.
type Price struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	IsApproximate bool   `json:"is_approximate"`
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = BaseCurrency
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) BaseCurrency() string {
	return e.cfg.BaseCurrency
}

// Supported reports whether prices can be shown in currency.
func (e *Engine) Supported(currency string) bool {
	if currency == e.cfg.BaseCurrency {
		return true
	}
	_, ok := e.cfg.FallbackRates[currency]
	return ok
}

// Currencies lists the base currency followed by every convertible currency.
func (e *Engine) Currencies() []string {
	out := []string{e.cfg.BaseCurrency}
	for _, c := range []string{"USD", "EUR", "CAD", "AUD", "NZD"} {
		if c != e.cfg.BaseCurrency && e.Supported(c) {
			out = append(out, c)
		}
	}
	return out
}

// ComputeDisplayPrice converts base (whole units of the base currency) into
// target. The base currency ignores rates and is never approximate. Missing
// or non-positive table entries fall back to the configured rate and mark
// the price approximate, as does a nil table. Currencies without a fallback
// rate are priced in the base currency and are not approximate. Every
// positive result ends in the charm remainder; a non-positive base returns
// zero instead.
func (e *Engine) ComputeDisplayPrice(base int64, target string, rates RateTable) Price {
	if !e.Supported(target) {
		target = e.cfg.BaseCurrency
	}
	if base <= 0 {
		return Price{Amount: 0, Currency: target}
	}

	rate := 1.0
	approximate := false
	if target != e.cfg.BaseCurrency {
		r, ok := rates[target]
		if !ok || r <= 0 {
			r = e.cfg.FallbackRates[target]
			approximate = true
		}
		rate = r
	}

	adj, ok := e.cfg.MarketAdjustment[target]
	if !ok || adj <= 0 {
		adj = 1
	}

	raw := float64(base) * rate * adj
	amount := int64(math.Floor(raw/100))*100 + e.cfg.Rounding[target]

	return Price{Amount: amount, Currency: target, IsApproximate: approximate}
}
