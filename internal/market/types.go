package market

import "time"

// Quote is an immutable price snapshot for a single symbol.
// It is replaced wholesale on every fetch, never mutated.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        float64   `json:"volume"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	PreviousClose float64   `json:"previous_close"`
	Timestamp     time.Time `json:"timestamp"`
}

// Candle is a single OHLCV bar. Time is epoch seconds of the bar open.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Interval identifies a candle resolution accepted by the gateway.
type Interval string

const (
	IntervalDaily   Interval = "1d"
	IntervalWeekly  Interval = "1wk"
	IntervalHourly  Interval = "1h"
	Interval15Min   Interval = "15m"
)

// IsIntraday reports whether the interval is shorter than one day.
// Intraday candles get a shorter cache TTL.
func (i Interval) IsIntraday() bool {
	return i == IntervalHourly || i == Interval15Min
}

// SortCandles enforces the strictly-increasing-time invariant on a series,
// dropping duplicate timestamps. Providers occasionally return bars out of
// order or repeat the open bar.
func SortCandles(candles []Candle) []Candle {
	if len(candles) < 2 {
		return candles
	}

	// Insertion sort keeps already-ordered provider output cheap.
	for i := 1; i < len(candles); i++ {
		for j := i; j > 0 && candles[j].Time < candles[j-1].Time; j-- {
			candles[j], candles[j-1] = candles[j-1], candles[j]
		}
	}

	out := candles[:1]
	for _, c := range candles[1:] {
		if c.Time > out[len(out)-1].Time {
			out = append(out, c)
		}
	}
	return out
}

// Closes extracts the close series from candles.
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
