package market

import (
	"context"
	"errors"
	"strings"
)

// ErrNoData is returned when a provider (or the gateway after exhausting its
// fallbacks) has nothing to return for the requested key. Callers treat it as
// an absent result, not a failure of the analysis.
var ErrNoData = errors.New("market: no data available")

// ErrMalformedResponse marks an upstream body that could not be parsed as the
// expected payload: HTML error pages, empty bodies, rate-limit notices served
// with a 200 status. The gateway falls back to cache on this error.
var ErrMalformedResponse = errors.New("market: malformed upstream response")

// MarketDataProvider is the closed interface every upstream adapter implements.
// Adapters self-throttle against their native limits before issuing a request;
// the budget tracker enforces the cross-process quota above them.
type MarketDataProvider interface {
	// Name returns the provider identifier used for budget accounting and
	// cache keys.
	Name() string

	// Quotes fetches current snapshots for the given symbols.
	Quotes(ctx context.Context, symbols []string) ([]Quote, error)

	// Candles fetches an ascending OHLCV series for one symbol.
	Candles(ctx context.Context, symbol string, interval Interval) ([]Candle, error)
}

// looksLikeHTML detects an HTML error page returned where JSON was expected.
// Several free-tier APIs serve their rate-limit page with a 200 status.
func looksLikeHTML(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return true
	}
	lower := strings.ToLower(trimmed)
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}

// looksLikeRateLimitNote detects the JSON "Note"/"Information" bodies Alpha
// Vantage substitutes for data once the daily quota is spent.
func looksLikeRateLimitNote(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "call frequency") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "premium plan")
}
