package market

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockProvider provides simulated market data for development/testing.
// It is the only component permitted to fabricate data.
type MockProvider struct {
	prices     map[string]float64
	lastUpdate time.Time
	mu         sync.RWMutex
}

// NewMockProvider creates a mock provider seeded with realistic base prices.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		prices: map[string]float64{
			"AAPL":  232.00,
			"MSFT":  428.00,
			"GOOGL": 176.00,
			"AMZN":  205.00,
			"NVDA":  138.00,
			"META":  585.00,
			"TSLA":  340.00,
			"SPY":   595.00,
			"QQQ":   512.00,
		},
		lastUpdate: time.Now(),
	}
}

// Name implements MarketDataProvider.
func (mp *MockProvider) Name() string { return "mock" }

// updatePrices adds small random variations to simulate market movement.
func (mp *MockProvider) updatePrices() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if time.Since(mp.lastUpdate) < time.Second {
		return
	}

	for symbol, price := range mp.prices {
		change := (rand.Float64() - 0.5) * 0.01
		mp.prices[symbol] = price * (1 + change)
	}
	mp.lastUpdate = time.Now()
}

func (mp *MockProvider) basePrice(symbol string) float64 {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	if price, ok := mp.prices[symbol]; ok {
		return price
	}
	return 100.0
}

// Quotes implements MarketDataProvider with simulated snapshots.
func (mp *MockProvider) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	mp.updatePrices()

	quotes := make([]Quote, 0, len(symbols))
	for _, symbol := range symbols {
		price := mp.basePrice(symbol)
		prevClose := price * (1 - (rand.Float64()-0.5)*0.02)
		quotes = append(quotes, Quote{
			Symbol:        symbol,
			Price:         price,
			Change:        price - prevClose,
			ChangePercent: (price - prevClose) / prevClose * 100,
			Volume:        float64(10_000_000 + rand.Intn(40_000_000)),
			High:          price * 1.008,
			Low:           price * 0.992,
			Open:          prevClose * 1.001,
			PreviousClose: prevClose,
			Timestamp:     time.Now(),
		})
	}
	return quotes, nil
}

// Candles implements MarketDataProvider with a deterministic-per-symbol
// random walk so repeated calls within a run stay consistent.
func (mp *MockProvider) Candles(ctx context.Context, symbol string, interval Interval) ([]Candle, error) {
	mp.updatePrices()

	limit := 250
	step := int64(24 * 3600)
	switch interval {
	case IntervalWeekly:
		limit = 150
		step = 7 * 24 * 3600
	case IntervalHourly:
		limit = 200
		step = 3600
	case Interval15Min:
		limit = 200
		step = 15 * 60
	}

	// Seed from the symbol so the walk is stable across calls.
	var seed int64
	for _, r := range symbol {
		seed = seed*31 + int64(r)
	}
	rng := rand.New(rand.NewSource(seed))

	endPrice := mp.basePrice(symbol)
	now := time.Now().Unix()
	start := now - int64(limit)*step

	// Walk forward from a back-computed starting price.
	price := endPrice * math.Pow(0.9998, float64(limit))
	candles := make([]Candle, limit)
	for i := 0; i < limit; i++ {
		drift := 1 + (rng.Float64()-0.48)*0.02
		open := price
		close := price * drift
		high := math.Max(open, close) * (1 + rng.Float64()*0.006)
		low := math.Min(open, close) * (1 - rng.Float64()*0.006)

		candles[i] = Candle{
			Time:   start + int64(i)*step,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: float64(5_000_000 + rng.Intn(20_000_000)),
		}
		price = close
	}
	return candles, nil
}
