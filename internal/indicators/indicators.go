package indicators

import (
	"math"

	"stock-advisor/internal/market"
)

// TechnicalIndicators is the full indicator snapshot for one symbol. Pointer
// fields are nil when the candle history is too short to compute them; callers
// must treat nil as "unknown", never as zero.
type TechnicalIndicators struct {
	RSI14     *float64        `json:"rsi14,omitempty"`
	MACD      *MACDResult     `json:"macd,omitempty"`
	MA20      *float64        `json:"ma20,omitempty"`
	MA50      *float64        `json:"ma50,omitempty"`
	MA200     *float64        `json:"ma200,omitempty"`
	Bollinger *BollingerBands `json:"bollinger,omitempty"`
	ATR14     *float64        `json:"atr14,omitempty"`
	Trend     Trend           `json:"trend"`
	Momentum  Momentum        `json:"momentum"`
}

// MACDResult holds the MACD line, its signal line, and the histogram.
type MACDResult struct {
	Value     float64 `json:"value"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// BollingerBands holds the three Bollinger band levels.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Trend classifies the moving-average relationship.
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// Momentum classifies how far the RSI sits from its midpoint.
type Momentum string

const (
	MomentumStrong   Momentum = "strong"
	MomentumModerate Momentum = "moderate"
	MomentumWeak     Momentum = "weak"
)

// Compute derives every indicator the candle history supports. Candles must be
// sorted by time ascending.
func Compute(candles []market.Candle) TechnicalIndicators {
	closes := market.Closes(candles)

	ind := TechnicalIndicators{
		RSI14:     RSI(closes, 14),
		MACD:      MACD(closes, 12, 26, 9),
		MA20:      SMA(closes, 20),
		MA50:      SMA(closes, 50),
		MA200:     SMA(closes, 200),
		Bollinger: Bands(closes, 20, 2.0),
		ATR14:     ATR(candles, 14),
	}
	ind.Trend = classifyTrend(ind.MA20, ind.MA50, closes)
	ind.Momentum = classifyMomentum(ind.RSI14)

	return ind
}

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA returns the simple moving average of the last period closes, or nil
// when there are fewer than period closes.
func SMA(closes []float64, period int) *float64 {
	if len(closes) < period || period <= 0 {
		return nil
	}

	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}

	avg := sum / float64(period)
	return &avg
}

// emaSeries returns the running EMA for each index >= period-1, seeded with
// the SMA of the first period values. Indices before the seed are zero.
func emaSeries(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}

	series := make([]float64, len(values))
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	series[period-1] = sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		series[i] = (values[i] * multiplier) + (series[i-1] * (1 - multiplier))
	}

	return series
}

// EMA returns the exponential moving average of the closes, or nil when there
// are fewer than period closes.
func EMA(closes []float64, period int) *float64 {
	series := emaSeries(closes, period)
	if series == nil {
		return nil
	}
	last := series[len(series)-1]
	return &last
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// RSI returns the Wilder-smoothed relative strength index, or nil when there
// are fewer than period+1 closes. A window with zero average loss reads 100.
func RSI(closes []float64, period int) *float64 {
	if len(closes) < period+1 || period <= 0 {
		return nil
	}

	gains := 0.0
	losses := 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	// Wilder smoothing over the remaining closes.
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		rsi := 100.0
		return &rsi
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	return &rsi
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACD returns the MACD line with a proper rolling signal line: the signal is
// the signalPeriod EMA of the MACD series itself, not an approximation of the
// latest value. Returns nil when the history cannot cover the slow EMA plus
// the signal seed.
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	if len(closes) < slowPeriod+signalPeriod-1 {
		return nil
	}

	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)

	// MACD values exist from the first index where the slow EMA is seeded.
	macd := make([]float64, 0, len(closes)-slowPeriod+1)
	for i := slowPeriod - 1; i < len(closes); i++ {
		macd = append(macd, fast[i]-slow[i])
	}

	signal := emaSeries(macd, signalPeriod)
	value := macd[len(macd)-1]
	signalValue := signal[len(signal)-1]

	return &MACDResult{
		Value:     value,
		Signal:    signalValue,
		Histogram: value - signalValue,
	}
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// Bands returns the Bollinger bands over the last period closes, or nil when
// there are fewer than period closes.
func Bands(closes []float64, period int, stdDevMultiplier float64) *BollingerBands {
	middle := SMA(closes, period)
	if middle == nil {
		return nil
	}

	variance := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		diff := closes[i] - *middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return &BollingerBands{
		Upper:  *middle + (stdDev * stdDevMultiplier),
		Middle: *middle,
		Lower:  *middle - (stdDev * stdDevMultiplier),
	}
}

// ============================================================================
// ATR (Average True Range)
// ============================================================================

// ATR returns the average true range over the last period candles, or nil
// when there are fewer than period+1 candles.
func ATR(candles []market.Candle, period int) *float64 {
	if len(candles) < period+1 || period <= 0 {
		return nil
	}

	trSum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr := math.Max(
			high-low,
			math.Max(
				math.Abs(high-prevClose),
				math.Abs(low-prevClose),
			),
		)
		trSum += tr
	}

	atr := trSum / float64(period)
	return &atr
}

// ============================================================================
// CLASSIFICATION
// ============================================================================

// classifyTrend compares MA20 against MA50. When the averages sit within 0.5%
// of each other the trend is neutral. With no MA50 the last close against
// MA20 decides instead; with no MA20 at all the trend is unknown.
func classifyTrend(ma20, ma50 *float64, closes []float64) Trend {
	if ma20 == nil {
		return TrendNeutral
	}

	if ma50 == nil {
		last := closes[len(closes)-1]
		if last > *ma20 {
			return TrendBullish
		}
		if last < *ma20 {
			return TrendBearish
		}
		return TrendNeutral
	}

	if *ma50 != 0 && math.Abs(*ma20-*ma50)/(*ma50)*100 < 0.5 {
		return TrendNeutral
	}
	if *ma20 > *ma50 {
		return TrendBullish
	}
	return TrendBearish
}

// classifyMomentum buckets the RSI: past the 70/30 extremes is strong, the
// 60-70 and 30-40 shoulders are moderate, the middle band is weak.
func classifyMomentum(rsi *float64) Momentum {
	if rsi == nil {
		return MomentumWeak
	}

	switch {
	case *rsi >= 70 || *rsi <= 30:
		return MomentumStrong
	case *rsi >= 60 || *rsi <= 40:
		return MomentumModerate
	default:
		return MomentumWeak
	}
}
