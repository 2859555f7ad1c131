package memory

import (
	"stock-advisor/internal/indicators"
	"stock-advisor/internal/patterns"
	"stock-advisor/internal/regime"
)

// Signature is the quantized fingerprint of a market setup. It is an
// approximate key: similarity lookup compares components, it never requires
// an exact match.
type Signature struct {
	RSIBucket int             `json:"rsiBucket"` // rsi / 10, -1 when unknown
	MACDSign  int             `json:"macdSign"`  // sign of the histogram
	Trend     indicators.Trend `json:"trend"`
	Patterns  []string        `json:"patterns"`
	Regime    regime.Regime   `json:"regime"`
}

// BuildSignature quantizes the current analysis context. Only significant
// patterns contribute to the fingerprint.
func BuildSignature(ind indicators.TechnicalIndicators, detected []patterns.Pattern, r regime.Regime) Signature {
	sig := Signature{
		RSIBucket: -1,
		Trend:     ind.Trend,
		Regime:    r,
	}

	if ind.RSI14 != nil {
		sig.RSIBucket = int(*ind.RSI14) / 10
	}
	if ind.MACD != nil {
		switch {
		case ind.MACD.Histogram > 0:
			sig.MACDSign = 1
		case ind.MACD.Histogram < 0:
			sig.MACDSign = -1
		}
	}

	for _, p := range patterns.Significant(detected) {
		sig.Patterns = append(sig.Patterns, p.Name)
	}

	return sig
}

// similarity scores two signatures in [0, 1]: RSI bucket closeness 30%, MACD
// sign 20%, trend 20%, pattern overlap 20%, regime 10%.
func similarity(a, b Signature) float64 {
	score := 0.0

	if a.RSIBucket >= 0 && b.RSIBucket >= 0 {
		diff := a.RSIBucket - b.RSIBucket
		if diff < 0 {
			diff = -diff
		}
		closeness := 1 - float64(diff)/10
		if closeness < 0 {
			closeness = 0
		}
		score += 0.3 * closeness
	}

	if a.MACDSign == b.MACDSign {
		score += 0.2
	}
	if a.Trend == b.Trend {
		score += 0.2
	}
	score += 0.2 * jaccard(a.Patterns, b.Patterns)
	if a.Regime == b.Regime {
		score += 0.1
	}

	return score
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}

	intersection := 0
	union := len(set)
	for _, s := range b {
		if set[s] {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}
