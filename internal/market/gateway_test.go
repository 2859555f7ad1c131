package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-advisor/internal/budget"
)

type stubProvider struct {
	name    string
	quote   Quote
	candles []Candle
	err     error
	calls   int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Quotes(_ context.Context, symbols []string) ([]Quote, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	quotes := make([]Quote, 0, len(symbols))
	for range symbols {
		quotes = append(quotes, s.quote)
	}
	return quotes, nil
}

func (s *stubProvider) Candles(_ context.Context, _ string, _ Interval) ([]Candle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.candles, nil
}

func newGatewayForTest(providers []MarketDataProvider, limits []budget.ProviderLimit) (*Gateway, *budget.Tracker) {
	tracker := budget.NewTracker(limits, nil, zerolog.Nop())
	return NewGateway(providers, tracker, nil, zerolog.Nop()), tracker
}

// TestFreshCacheSkipsBudget tests that a cached quote is served without
// consuming provider quota
func TestFreshCacheSkipsBudget(t *testing.T) {
	provider := &stubProvider{name: "stub", quote: Quote{Symbol: "AAPL", Price: 232.50}}
	gw, tracker := newGatewayForTest(
		[]MarketDataProvider{provider},
		[]budget.ProviderLimit{{Name: "stub", Limit: 5, Window: budget.WindowHour}},
	)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		q, err := gw.Quote(ctx, "AAPL")
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if q.Price != 232.50 {
			t.Fatalf("unexpected price %v", q.Price)
		}
	}

	if provider.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", provider.calls)
	}
	if used := tracker.Status("stub").Used; used != 1 {
		t.Errorf("expected 1 budget unit used, got %d", used)
	}
}

// TestStaleFallbackOnExhaustedBudget tests that an expired cache entry is
// still served once every provider's quota is gone
func TestStaleFallbackOnExhaustedBudget(t *testing.T) {
	provider := &stubProvider{name: "stub", quote: Quote{Symbol: "MSFT", Price: 428.00}}
	gw, _ := newGatewayForTest(
		[]MarketDataProvider{provider},
		[]budget.ProviderLimit{{Name: "stub", Limit: 1, Window: budget.WindowHour}},
	)

	ctx := context.Background()
	if _, err := gw.Quote(ctx, "MSFT"); err != nil {
		t.Fatalf("first quote: %v", err)
	}

	// Age the entry past its TTL. The budget is now exhausted, so the only
	// legal answer is the stale value.
	gw.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	q, err := gw.Quote(ctx, "MSFT")
	if err != nil {
		t.Fatalf("stale quote: %v", err)
	}
	if q.Price != 428.00 {
		t.Errorf("expected stale price 428.00, got %v", q.Price)
	}
	if provider.calls != 1 {
		t.Errorf("exhausted budget must not reach upstream, got %d calls", provider.calls)
	}
}

// TestNoDataWhenExhaustedAndCold tests the explicit no-data result when
// budgets are gone and nothing was ever cached
func TestNoDataWhenExhaustedAndCold(t *testing.T) {
	provider := &stubProvider{name: "stub", quote: Quote{Symbol: "NVDA", Price: 130}}
	gw, tracker := newGatewayForTest(
		[]MarketDataProvider{provider},
		[]budget.ProviderLimit{{Name: "stub", Limit: 1, Window: budget.WindowHour}},
	)

	tracker.Record("stub")

	_, err := gw.Quote(context.Background(), "NVDA")
	if !IsNoData(err) {
		t.Errorf("expected no-data error, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("upstream must not be called, got %d calls", provider.calls)
	}
}

// TestProviderFallbackOrder tests that a failing primary falls through to the
// secondary and both calls are counted
func TestProviderFallbackOrder(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("upstream 502")}
	secondary := &stubProvider{name: "secondary", quote: Quote{Symbol: "SPY", Price: 595.00}}
	gw, tracker := newGatewayForTest(
		[]MarketDataProvider{primary, secondary},
		[]budget.ProviderLimit{
			{Name: "primary", Limit: 10, Window: budget.WindowHour},
			{Name: "secondary", Limit: 10, Window: budget.WindowHour},
		},
	)

	q, err := gw.Quote(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Price != 595.00 {
		t.Errorf("expected secondary's price, got %v", q.Price)
	}
	if tracker.Status("primary").Used != 1 || tracker.Status("secondary").Used != 1 {
		t.Error("each upstream attempt should consume one budget unit")
	}
}

// TestCandlesSortedAndDeduped tests normalization of out-of-order upstream data
func TestCandlesSortedAndDeduped(t *testing.T) {
	provider := &stubProvider{name: "stub", candles: []Candle{
		{Time: 300, Close: 3},
		{Time: 100, Close: 1},
		{Time: 200, Close: 2},
		{Time: 200, Close: 2.5},
	}}
	gw, _ := newGatewayForTest(
		[]MarketDataProvider{provider},
		[]budget.ProviderLimit{{Name: "stub", Limit: 5, Window: budget.WindowHour}},
	)

	candles, err := gw.Candles(context.Background(), "AAPL", IntervalDaily)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles after dedupe, got %d", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].Time <= candles[i-1].Time {
			t.Errorf("candles not strictly increasing at %d", i)
		}
	}
}

// TestEmptyCandlesIsNoData tests that an empty upstream series maps to the
// no-data sentinel rather than an empty slice
func TestEmptyCandlesIsNoData(t *testing.T) {
	provider := &stubProvider{name: "stub"}
	gw, _ := newGatewayForTest(
		[]MarketDataProvider{provider},
		[]budget.ProviderLimit{{Name: "stub", Limit: 5, Window: budget.WindowHour}},
	)

	_, err := gw.Candles(context.Background(), "AAPL", IntervalDaily)
	if !IsNoData(err) {
		t.Errorf("expected no-data error, got %v", err)
	}
}
