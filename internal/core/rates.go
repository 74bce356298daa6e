package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CanonicalCurrency is the single unit of account all stored amounts
// use. Rates map a currency to units-of-currency-per-one-canonical-unit.
const CanonicalCurrency = "USD"

const rateCacheTTL = time.Hour

// fallbackRates is served when no fetch has ever succeeded.
var fallbackRates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"COP": decimal.NewFromInt(4200),
	"VES": decimal.RequireFromString("36.5"),
}

// RateFetcher retrieves the current rate map from an external source.
type RateFetcher func(ctx context.Context) (map[string]decimal.Decimal, error)

// RateSource converts amounts to and from the canonical currency,
// backed by a process-wide cache of the last successful fetch. Fetch
// failures never surface to conversion callers: a stale cache is
// served if one exists, the hardcoded fallback otherwise. The refresh
// is single-flighted and runs outside the lock, so conversions never
// block behind a slow fetch; staleness is the only risk here, not
// corruption.
type RateSource struct {
	mu         sync.Mutex
	rates      map[string]decimal.Decimal
	fetchedAt  time.Time
	refreshing bool

	now   func() time.Time
	fetch RateFetcher
	ttl   time.Duration
}

// NewRateSource builds a RateSource around fetch. A nil fetch keeps the
// source pinned to the fallback map.
func NewRateSource(fetch RateFetcher) *RateSource {
	return &RateSource{now: time.Now, fetch: fetch, ttl: rateCacheTTL}
}

// NewRateSourceForTest exposes the clock and fetcher for tests.
func NewRateSourceForTest(now func() time.Time, fetch RateFetcher, ttl time.Duration) *RateSource {
	return &RateSource{now: now, fetch: fetch, ttl: ttl}
}

// Rates returns the current rate map, refreshing the cache when it is
// absent or older than the freshness window. Only one caller refreshes
// at a time; the rest get the cached map (stale included) immediately.
func (s *RateSource) Rates(ctx context.Context) map[string]decimal.Decimal {
	s.mu.Lock()
	cached := s.rates
	if cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		s.mu.Unlock()
		return cached
	}
	if s.refreshing || s.fetch == nil {
		s.mu.Unlock()
		if cached != nil {
			return cached // stale beats nothing
		}
		return fallbackRates
	}
	s.refreshing = true
	s.mu.Unlock()

	fresh, err := s.fetch(ctx)

	s.mu.Lock()
	s.refreshing = false
	if err == nil && len(fresh) > 0 {
		s.rates = fresh
		s.fetchedAt = s.now()
	}
	current := s.rates
	s.mu.Unlock()
	if current != nil {
		return current
	}
	return fallbackRates
}

// ToCanonical converts amount from currency into the canonical
// currency. Unsupported currencies pass through unchanged; the web
// layer validates currency codes before they reach here.
func (s *RateSource) ToCanonical(ctx context.Context, amount decimal.Decimal, currency string) decimal.Decimal {
	if currency == "" || currency == CanonicalCurrency {
		return amount
	}
	rate, ok := s.Rates(ctx)[currency]
	if !ok || rate.IsZero() {
		return amount
	}
	return amount.Div(rate)
}

// FromCanonical converts a canonical amount into currency.
func (s *RateSource) FromCanonical(ctx context.Context, amount decimal.Decimal, currency string) decimal.Decimal {
	if currency == "" || currency == CanonicalCurrency {
		return amount
	}
	rate, ok := s.Rates(ctx)[currency]
	if !ok {
		return amount
	}
	return amount.Mul(rate)
}

// NewHTTPRateFetcher returns the default fetcher against an
// open.er-api.com style endpoint (latest rates against USD).
func NewHTTPRateFetcher(url string) RateFetcher {
	client := &http.Client{Timeout: 10 * time.Second}
	return func(ctx context.Context) (map[string]decimal.Decimal, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("rate fetch: unexpected status %d", resp.StatusCode)
		}

		var body struct {
			Result string                     `json:"result"`
			Rates  map[string]decimal.Decimal `json:"rates"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("rate fetch: decode: %w", err)
		}
		if body.Result != "success" {
			return nil, fmt.Errorf("rate fetch: result %q", body.Result)
		}

		rates := map[string]decimal.Decimal{CanonicalCurrency: decimal.NewFromInt(1)}
		for _, cur := range []string{"COP", "VES"} {
			if r, ok := body.Rates[cur]; ok {
				rates[cur] = r
			}
		}
		return rates, nil
	}
}
