package patterns

import (
	"math"
	"sort"
	"time"

	"stock-advisor/internal/indicators"
	"stock-advisor/internal/market"
)

// Polarity is the direction a pattern argues for.
type Polarity string

const (
	Bullish Polarity = "bullish"
	Bearish Polarity = "bearish"
)

// Reliability buckets the 0-100 score for display.
type Reliability string

const (
	ReliabilityLow    Reliability = "low"
	ReliabilityMedium Reliability = "medium"
	ReliabilityHigh   Reliability = "high"
)

// Pattern names.
const (
	MorningStar        = "morning_star"
	EveningStar        = "evening_star"
	ShootingStar       = "shooting_star"
	Hammer             = "hammer"
	HangingMan         = "hanging_man"
	BullishEngulfing   = "bullish_engulfing"
	BearishEngulfing   = "bearish_engulfing"
	Doji               = "doji"
	DragonflyDoji      = "dragonfly_doji"
	GravestoneDoji     = "gravestone_doji"
	BullishHarami      = "bullish_harami"
	BearishHarami      = "bearish_harami"
	BullishFlag        = "bullish_flag"
	BearishFlag        = "bearish_flag"
	AscendingTriangle  = "ascending_triangle"
	DescendingTriangle = "descending_triangle"
)

// baseAccuracy is the historical hit rate each shape starts from, before
// volume and trend context adjust it.
var baseAccuracy = map[string]int{
	MorningStar:        65,
	EveningStar:        65,
	ShootingStar:       55,
	Hammer:             55,
	HangingMan:         54,
	BullishEngulfing:   62,
	BearishEngulfing:   62,
	Doji:               40,
	DragonflyDoji:      50,
	GravestoneDoji:     50,
	BullishHarami:      52,
	BearishHarami:      52,
	BullishFlag:        58,
	BearishFlag:        58,
	AscendingTriangle:  60,
	DescendingTriangle: 60,
}

// Pattern is one detected formation. Score runs 0-100; downstream consumers
// treat >= 50 as significant.
type Pattern struct {
	Name        string      `json:"name"`
	Polarity    Polarity    `json:"polarity"`
	Reliability Reliability `json:"reliability"`
	Score       int         `json:"score"`
	Index       int         `json:"index"`
	Time        time.Time   `json:"time"`
}

// SignificanceThreshold separates patterns worth mentioning from noise.
const SignificanceThreshold = 50

// trailingWindow bounds how far back candle-shape patterns are scanned.
// Continuation patterns look further back because they need a pole.
const trailingWindow = 20

// Detector scans candle series for named formations.
type Detector struct {
	minBodyPct float64
}

// NewDetector creates a detector. minBodyPct is the minimum candle body as a
// percent of price for a candle to count as "long"; zero picks a default.
func NewDetector(minBodyPct float64) *Detector {
	if minBodyPct <= 0 {
		minBodyPct = 0.5
	}
	return &Detector{minBodyPct: minBodyPct}
}

// Detect scans the trailing window of candles for every catalogued pattern.
// trend is the prevailing direction used for alignment scoring; patterns that
// argue with the trend score higher, counter-trend patterns lower. The result
// is ordered by candle index ascending.
func (d *Detector) Detect(candles []market.Candle, trend indicators.Trend) []Pattern {
	var found []Pattern
	if len(candles) < 2 {
		return found
	}

	start := len(candles) - trailingWindow
	if start < 0 {
		start = 0
	}

	// Three-candle shapes.
	for i := maxInt(start, 2); i < len(candles); i++ {
		c1, c2, c3 := candles[i-2], candles[i-1], candles[i]
		if d.isMorningStar(c1, c2, c3) {
			found = append(found, d.score(MorningStar, Bullish, candles, i, trend))
		}
		if d.isEveningStar(c1, c2, c3) {
			found = append(found, d.score(EveningStar, Bearish, candles, i, trend))
		}
	}

	// Two-candle shapes.
	for i := maxInt(start, 1); i < len(candles); i++ {
		c1, c2 := candles[i-1], candles[i]
		if d.isBullishEngulfing(c1, c2) {
			found = append(found, d.score(BullishEngulfing, Bullish, candles, i, trend))
		}
		if d.isBearishEngulfing(c1, c2) {
			found = append(found, d.score(BearishEngulfing, Bearish, candles, i, trend))
		}
		if d.isBullishHarami(c1, c2) {
			found = append(found, d.score(BullishHarami, Bullish, candles, i, trend))
		}
		if d.isBearishHarami(c1, c2) {
			found = append(found, d.score(BearishHarami, Bearish, candles, i, trend))
		}
	}

	// Single-candle shapes.
	for i := start; i < len(candles); i++ {
		c := candles[i]
		var prev *market.Candle
		if i > 0 {
			prev = &candles[i-1]
		}

		if d.isShootingStar(c, prev) {
			found = append(found, d.score(ShootingStar, Bearish, candles, i, trend))
		}
		if d.isHammer(c, prev) {
			found = append(found, d.score(Hammer, Bullish, candles, i, trend))
		}
		if d.isHangingMan(c, prev) {
			found = append(found, d.score(HangingMan, Bearish, candles, i, trend))
		}
		if d.isDragonflyDoji(c) {
			found = append(found, d.score(DragonflyDoji, Bullish, candles, i, trend))
		} else if d.isGravestoneDoji(c) {
			found = append(found, d.score(GravestoneDoji, Bearish, candles, i, trend))
		} else if d.isDoji(c) && prev != nil {
			// A plain doji argues against the preceding candle's direction.
			polarity := Bullish
			if prev.Close > prev.Open {
				polarity = Bearish
			}
			found = append(found, d.score(Doji, polarity, candles, i, trend))
		}
	}

	found = append(found, d.detectContinuation(candles, trend)...)

	sort.SliceStable(found, func(i, j int) bool { return found[i].Index < found[j].Index })
	return found
}

// Significant filters to patterns at or above the significance threshold.
func Significant(patterns []Pattern) []Pattern {
	var out []Pattern
	for _, p := range patterns {
		if p.Score >= SignificanceThreshold {
			out = append(out, p)
		}
	}
	return out
}

// MostRecent returns up to n patterns with the highest candle indices,
// preserving index order.
func MostRecent(patterns []Pattern, n int) []Pattern {
	if len(patterns) <= n {
		return patterns
	}
	return patterns[len(patterns)-n:]
}

// score builds a Pattern with its reliability score: base accuracy for the
// shape, plus a volume-confirmation bonus, plus or minus a trend-alignment
// adjustment, clamped to [0, 100].
func (d *Detector) score(name string, polarity Polarity, candles []market.Candle, index int, trend indicators.Trend) Pattern {
	score := baseAccuracy[name]

	if volumeConfirms(candles, index) {
		score += 10
	}

	switch {
	case trend == indicators.TrendBullish && polarity == Bullish,
		trend == indicators.TrendBearish && polarity == Bearish:
		score += 10
	case trend == indicators.TrendBullish && polarity == Bearish,
		trend == indicators.TrendBearish && polarity == Bullish:
		score -= 10
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return Pattern{
		Name:        name,
		Polarity:    polarity,
		Reliability: reliabilityFor(score),
		Score:       score,
		Index:       index,
		Time:        time.Unix(candles[index].Time, 0).UTC(),
	}
}

func reliabilityFor(score int) Reliability {
	switch {
	case score >= 70:
		return ReliabilityHigh
	case score >= SignificanceThreshold:
		return ReliabilityMedium
	default:
		return ReliabilityLow
	}
}

// volumeConfirms reports whether the pattern candle traded at least 1.5x the
// average volume of the preceding candles (up to ten).
func volumeConfirms(candles []market.Candle, index int) bool {
	if index == 0 {
		return false
	}
	start := index - 10
	if start < 0 {
		start = 0
	}

	sum := 0.0
	for i := start; i < index; i++ {
		sum += candles[i].Volume
	}
	avg := sum / float64(index-start)
	if avg == 0 {
		return false
	}

	return candles[index].Volume >= avg*1.5
}

func body(c market.Candle) float64 {
	return math.Abs(c.Close - c.Open)
}

func upperWick(c market.Candle) float64 {
	return c.High - math.Max(c.Open, c.Close)
}

func lowerWick(c market.Candle) float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
