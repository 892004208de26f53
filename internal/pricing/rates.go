package pricing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const DefaultCacheTTL = 24 * time.Hour

// RateSource fetches a live rate table relative to the base currency.
type RateSource interface {
	Fetch(ctx context.Context) (RateTable, error)
}

// HTTPRateSource reads {"rates": {"USD": 1.27, ...}} from an HTTP endpoint.
type HTTPRateSource struct {
	url    string
	client *http.Client
}

func NewHTTPRateSource(url string) *HTTPRateSource {
	return &HTTPRateSource{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *HTTPRateSource) Fetch(ctx context.Context) (RateTable, error) {
	if s.url == "" {
		return nil, fmt.Errorf("no rates url configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read rates: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("rates response is not valid JSON")
	}

	node := gjson.GetBytes(body, "rates")
	if !node.IsObject() {
		return nil, fmt.Errorf("rates response has no rates object")
	}

	rates := make(RateTable)
	node.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Number {
			rates[strings.ToUpper(key.String())] = value.Float()
		}
		return true
	})
	return rates, nil
}

type cacheEntry struct {
	rates     RateTable
	fetchedAt time.Time
}

// RateCache keeps one rate table per visitor browser session.
type RateCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewRateCache(ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RateCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *RateCache) Get(key string) (RateTable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.rates, true
}

func (c *RateCache) Set(key string, rates RateTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{rates: rates, fetchedAt: c.now()}
}

// Sweep drops expired entries and returns how many were removed.
func (c *RateCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if c.now().Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Provider resolves rates for a pricing pass, cache first.
type Provider struct {
	engine *Engine
	source RateSource
	cache  *RateCache
	logger *slog.Logger
}

func NewProvider(engine *Engine, source RateSource, cache *RateCache, logger *slog.Logger) *Provider {
	return &Provider{engine: engine, source: source, cache: cache, logger: logger}
}

func (p *Provider) Engine() *Engine {
	return p.engine
}

// Pass resolves rates once for one visitor. An empty key skips the cache. A
// failed fetch is logged and yields a pass with no rates, so every converted
// price in it is approximate.
func (p *Provider) Pass(ctx context.Context, key string) *Pass {
	if key != "" {
		if rates, ok := p.cache.Get(key); ok {
			return &Pass{engine: p.engine, rates: rates}
		}
	}

	rates, err := p.source.Fetch(ctx)
	if err != nil {
		p.logger.Warn("fx rate fetch failed, using fallback rates", "error", err)
		return &Pass{engine: p.engine}
	}
	if key != "" {
		p.cache.Set(key, rates)
	}
	return &Pass{engine: p.engine, rates: rates}
}

// Pass prices any number of amounts against one rate table.
type Pass struct {
	engine *Engine
	rates  RateTable
}

func (p *Pass) Price(base int64, currency string) Price {
	return p.engine.ComputeDisplayPrice(base, currency, p.rates)
}

// Live reports whether the pass has a fetched or cached rate table.
func (p *Pass) Live() bool {
	return p.rates != nil
}
