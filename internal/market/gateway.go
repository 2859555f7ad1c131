package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-advisor/internal/budget"
)

// Cache TTLs per data kind. Intraday candles go stale much faster than daily
// history, and quotes sit in between because the budget windows are hourly.
const (
	quoteTTL       = 1 * time.Hour
	dailyCandleTTL = 24 * time.Hour
	intradayTTL    = 30 * time.Minute
)

// SecondaryCache is an optional shared cache tier behind the in-process one.
// Implementations must be safe for concurrent use; a nil SecondaryCache
// disables the tier.
type SecondaryCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type cacheEntry struct {
	value     any
	fetchedAt time.Time
	ttl       time.Duration
}

func (e cacheEntry) fresh(now time.Time) bool {
	return now.Sub(e.fetchedAt) < e.ttl
}

// Gateway is the single entry point for market data. Every read goes through
// the same policy: serve fresh cache without touching quotas, fall back to
// stale cache when quotas are exhausted, and only then call upstream.
type Gateway struct {
	providers []MarketDataProvider
	budget    *budget.Tracker
	l2        SecondaryCache
	logger    zerolog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time
}

// NewGateway creates a gateway that tries providers in order. l2 may be nil.
func NewGateway(providers []MarketDataProvider, tracker *budget.Tracker, l2 SecondaryCache, logger zerolog.Logger) *Gateway {
	return &Gateway{
		providers: providers,
		budget:    tracker,
		l2:        l2,
		logger:    logger.With().Str("component", "MarketGateway").Logger(),
		cache:     make(map[string]cacheEntry),
		now:       time.Now,
	}
}

func candleTTL(interval Interval) time.Duration {
	if interval.IsIntraday() {
		return intradayTTL
	}
	return dailyCandleTTL
}

// Quote returns the latest quote for symbol.
func (g *Gateway) Quote(ctx context.Context, symbol string) (Quote, error) {
	key := "quote:" + symbol

	if cached, ok := g.lookup(key); ok {
		return cached.(Quote), nil
	}
	if q, ok := lookupL2[Quote](ctx, g, key); ok {
		g.store(key, q, quoteTTL)
		return q, nil
	}

	value, err := g.fetch(ctx, key, quoteTTL, func(p MarketDataProvider) (any, error) {
		quotes, err := p.Quotes(ctx, []string{symbol})
		if err != nil {
			return nil, err
		}
		if len(quotes) == 0 {
			return nil, ErrNoData
		}
		return quotes[0], nil
	})
	if err != nil {
		return Quote{}, err
	}
	return value.(Quote), nil
}

// Quotes returns quotes for several symbols. Each symbol resolves through the
// full cache and budget policy independently, so one exhausted symbol does not
// block the rest of the batch.
func (g *Gateway) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	quotes := make([]Quote, 0, len(symbols))
	var firstErr error
	for _, symbol := range symbols {
		q, err := g.Quote(ctx, symbol)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("quote %s: %w", symbol, err)
			}
			continue
		}
		quotes = append(quotes, q)
	}
	if len(quotes) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return quotes, nil
}

// Candles returns historical candles for symbol at the given interval, sorted
// by time ascending with no duplicates.
func (g *Gateway) Candles(ctx context.Context, symbol string, interval Interval) ([]Candle, error) {
	key := fmt.Sprintf("candles:%s:%s", symbol, interval)
	ttl := candleTTL(interval)

	if cached, ok := g.lookup(key); ok {
		return cached.([]Candle), nil
	}
	if candles, ok := lookupL2[[]Candle](ctx, g, key); ok {
		g.store(key, candles, ttl)
		return candles, nil
	}

	value, err := g.fetch(ctx, key, ttl, func(p MarketDataProvider) (any, error) {
		candles, err := p.Candles(ctx, symbol, interval)
		if err != nil {
			return nil, err
		}
		if len(candles) == 0 {
			return nil, ErrNoData
		}
		return SortCandles(candles), nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]Candle), nil
}

// fetch applies the gateway policy for a key that missed the fresh cache:
// skip providers without quota, record usage for every upstream call made,
// and fall back to a stale entry when nothing succeeds.
func (g *Gateway) fetch(ctx context.Context, key string, ttl time.Duration, call func(MarketDataProvider) (any, error)) (any, error) {
	var lastErr error
	anyBudget := false

	for _, p := range g.providers {
		if !g.budget.CanUse(p.Name()) {
			continue
		}
		anyBudget = true

		value, err := call(p)
		g.budget.Record(p.Name())
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", p.Name(), err)
			g.logger.Warn().
				Str("provider", p.Name()).
				Str("key", key).
				Err(err).
				Msg("upstream fetch failed, trying next provider")
			continue
		}

		g.store(key, value, ttl)
		g.storeL2(ctx, key, value, ttl)
		return value, nil
	}

	if stale, ok := g.lookupStale(key); ok {
		g.logger.Info().
			Str("key", key).
			Bool("budget_available", anyBudget).
			Msg("serving stale cache entry")
		return stale, nil
	}

	if !anyBudget {
		return nil, fmt.Errorf("%s: all provider budgets exhausted: %w", key, ErrNoData)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%s: no providers configured: %w", key, ErrNoData)
}

func (g *Gateway) lookup(key string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.cache[key]
	if !ok || !entry.fresh(g.now()) {
		return nil, false
	}
	return entry.value, true
}

// lookupStale returns a cached value regardless of age.
func (g *Gateway) lookupStale(key string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.cache[key]
	if !ok {
		return nil, false
	}
	return entry.value, true
}

func (g *Gateway) store(key string, value any, ttl time.Duration) {
	g.mu.Lock()
	g.cache[key] = cacheEntry{value: value, fetchedAt: g.now(), ttl: ttl}
	g.mu.Unlock()
}

// lookupL2 reads a typed value from the shared tier. Freshness is enforced by
// the tier's own expiry, so a hit never touches the budget.
func lookupL2[T any](ctx context.Context, g *Gateway, key string) (T, bool) {
	var zero T
	if g.l2 == nil {
		return zero, false
	}
	data, ok := g.l2.Get(ctx, key)
	if !ok {
		return zero, false
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		g.logger.Warn().Str("key", key).Err(err).Msg("discarding undecodable shared cache entry")
		return zero, false
	}
	return value, true
}

func (g *Gateway) storeL2(ctx context.Context, key string, value any, ttl time.Duration) {
	if g.l2 == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	g.l2.Set(ctx, key, data, ttl)
}

// IsNoData reports whether err means no data could be produced, as opposed to
// a transient upstream failure.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}
