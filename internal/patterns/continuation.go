package patterns

import (
	"stock-advisor/internal/indicators"
	"stock-advisor/internal/market"
)

// Continuation formations: flags need a 10-candle pole followed by a 5-candle
// consolidation, triangles need a 10-candle formation window.

const (
	poleLength     = 10
	flagLength     = 5
	triangleLength = 10
)

// detectContinuation scans for flags and triangles. Only the most recent
// occurrence of each shape is reported; older occurrences of a continuation
// shape carry no extra signal once a newer one exists.
func (d *Detector) detectContinuation(candles []market.Candle, trend indicators.Trend) []Pattern {
	var found []Pattern
	if len(candles) < poleLength+flagLength {
		return found
	}

	latest := make(map[string]Pattern)

	for i := poleLength; i+flagLength <= len(candles); i++ {
		if d.isBullishFlag(candles, i) {
			latest[BullishFlag] = d.score(BullishFlag, Bullish, candles, i+flagLength-1, trend)
		}
		if d.isBearishFlag(candles, i) {
			latest[BearishFlag] = d.score(BearishFlag, Bearish, candles, i+flagLength-1, trend)
		}
	}

	for i := 0; i+triangleLength <= len(candles); i++ {
		if d.isAscendingTriangle(candles, i) {
			latest[AscendingTriangle] = d.score(AscendingTriangle, Bullish, candles, i+triangleLength-1, trend)
		}
		if d.isDescendingTriangle(candles, i) {
			latest[DescendingTriangle] = d.score(DescendingTriangle, Bearish, candles, i+triangleLength-1, trend)
		}
	}

	for _, p := range latest {
		found = append(found, p)
	}
	return found
}

// isBullishFlag checks a strong upward pole followed by a small sideways or
// slightly falling consolidation starting at startIdx.
func (d *Detector) isBullishFlag(candles []market.Candle, startIdx int) bool {
	if startIdx < poleLength || startIdx+flagLength > len(candles) {
		return false
	}

	pole := candles[startIdx-poleLength : startIdx]
	flag := candles[startIdx : startIdx+flagLength]

	poleHeight := pole[len(pole)-1].Close - pole[0].Open
	if poleHeight <= 0 {
		return false
	}

	bullish := 0
	for _, c := range pole {
		if c.Close > c.Open {
			bullish++
		}
	}
	if float64(bullish)/float64(len(pole)) < 0.6 {
		return false
	}

	flagStart := flag[0].High
	flagEnd := flag[len(flag)-1].Low
	if flagEnd > flagStart {
		return false
	}
	return flagStart-flagEnd <= poleHeight*0.5
}

// isBearishFlag is the mirror: a strong downward pole followed by a small
// upward-drifting consolidation.
func (d *Detector) isBearishFlag(candles []market.Candle, startIdx int) bool {
	if startIdx < poleLength || startIdx+flagLength > len(candles) {
		return false
	}

	pole := candles[startIdx-poleLength : startIdx]
	flag := candles[startIdx : startIdx+flagLength]

	poleHeight := pole[0].Open - pole[len(pole)-1].Close
	if poleHeight <= 0 {
		return false
	}

	bearish := 0
	for _, c := range pole {
		if c.Close < c.Open {
			bearish++
		}
	}
	if float64(bearish)/float64(len(pole)) < 0.6 {
		return false
	}

	flagStart := flag[0].Low
	flagEnd := flag[len(flag)-1].High
	if flagEnd < flagStart {
		return false
	}
	return flagEnd-flagStart <= poleHeight*0.5
}

// isAscendingTriangle checks for flat highs (resistance) against rising lows.
func (d *Detector) isAscendingTriangle(candles []market.Candle, startIdx int) bool {
	if startIdx+triangleLength > len(candles) {
		return false
	}

	window := candles[startIdx : startIdx+triangleLength]
	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	for i, c := range window {
		highs[i] = c.High
		lows[i] = c.Low
	}

	if variance(highs) > average(highs)*0.02 {
		return false
	}
	return isRising(lows)
}

// isDescendingTriangle checks for flat lows (support) against falling highs.
func (d *Detector) isDescendingTriangle(candles []market.Candle, startIdx int) bool {
	if startIdx+triangleLength > len(candles) {
		return false
	}

	window := candles[startIdx : startIdx+triangleLength]
	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	for i, c := range window {
		highs[i] = c.High
		lows[i] = c.Low
	}

	if variance(lows) > average(lows)*0.02 {
		return false
	}
	return isDescending(highs)
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	avg := average(values)
	sum := 0.0
	for _, v := range values {
		diff := v - avg
		sum += diff * diff
	}
	return sum / float64(len(values))
}

// isRising compares the average of the back half against the front half.
func isRising(values []float64) bool {
	if len(values) < 2 {
		return false
	}
	return average(values[len(values)/2:]) > average(values[:len(values)/2])
}

func isDescending(values []float64) bool {
	if len(values) < 2 {
		return false
	}
	return average(values[len(values)/2:]) < average(values[:len(values)/2])
}
