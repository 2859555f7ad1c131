package regime

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"stock-advisor/internal/market"
)

// returnWindow is how many trailing daily returns feed the volatility proxy.
const returnWindow = 30

// annualizationFactor converts daily return stdev to an annualized percent
// figure comparable to an implied-volatility index reading.
var annualizationFactor = math.Sqrt(252)

// Service derives the current market regime from a benchmark symbol's daily
// candles: realized volatility as the proxy, and the 50-day average for the
// directional split.
type Service struct {
	gateway    *market.Gateway
	benchmark  string
	thresholds Thresholds
	logger     zerolog.Logger
}

// NewService creates a regime service. benchmark is typically a broad index
// proxy such as SPY.
func NewService(gateway *market.Gateway, benchmark string, thresholds Thresholds, logger zerolog.Logger) *Service {
	return &Service{
		gateway:    gateway,
		benchmark:  benchmark,
		thresholds: thresholds,
		logger:     logger.With().Str("component", "RegimeService").Logger(),
	}
}

// Benchmark returns the symbol the service classifies against.
func (s *Service) Benchmark() string { return s.benchmark }

// Assess fetches benchmark candles and classifies the current regime. A
// benchmark with no data at all is an error; insufficient history for the
// 50-day average degrades to NEUTRAL instead.
func (s *Service) Assess(ctx context.Context) (Assessment, error) {
	candles, err := s.gateway.Candles(ctx, s.benchmark, market.IntervalDaily)
	if err != nil {
		return Assessment{}, fmt.Errorf("benchmark candles for %s: %w", s.benchmark, err)
	}

	return s.AssessFromCandles(candles), nil
}

// AssessFromCandles classifies from an already-fetched benchmark series.
// Used by the live path above and by backtests feeding historical windows.
func (s *Service) AssessFromCandles(candles []market.Candle) Assessment {
	closes := market.Closes(candles)
	price := 0.0
	if len(closes) > 0 {
		price = closes[len(closes)-1]
	}

	ma50 := 0.0
	if len(closes) >= 50 {
		sum := 0.0
		for i := len(closes) - 50; i < len(closes); i++ {
			sum += closes[i]
		}
		ma50 = sum / 50
	}

	vol := RealizedVolatility(closes)
	assessment := Classify(vol, price, ma50, s.thresholds)

	s.logger.Debug().
		Str("benchmark", s.benchmark).
		Str("regime", string(assessment.Regime)).
		Float64("volatility", vol).
		Float64("ma50", ma50).
		Msg("classified market regime")

	return assessment
}

// RealizedVolatility is the annualized standard deviation of trailing daily
// log returns, in percent. Too little history reads as zero, which the
// classifier treats as the calmest tier.
func RealizedVolatility(closes []float64) float64 {
	start := len(closes) - returnWindow - 1
	if start < 0 {
		start = 0
	}
	window := closes[start:]
	if len(window) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		if window[i-1] <= 0 {
			continue
		}
		returns = append(returns, math.Log(window[i]/window[i-1]))
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance) * annualizationFactor * 100
}
