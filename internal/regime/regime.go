package regime

import "math"

// Regime is one of the eight discrete market states.
type Regime string

const (
	LowVolBullish      Regime = "LOW_VOL_BULLISH"
	LowVolBearish      Regime = "LOW_VOL_BEARISH"
	ElevatedVolBullish Regime = "ELEVATED_VOL_BULLISH"
	ElevatedVolBearish Regime = "ELEVATED_VOL_BEARISH"
	HighVolBullish     Regime = "HIGH_VOL_BULLISH"
	HighVolBearish     Regime = "HIGH_VOL_BEARISH"
	Choppy             Regime = "CHOPPY"
	Neutral            Regime = "NEUTRAL"
)

// RiskTier grades how aggressively downstream sizing should behave.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskModerate RiskTier = "moderate"
	RiskHigh     RiskTier = "high"
	RiskExtreme  RiskTier = "extreme"
)

// Thresholds configure the classifier. Zero values pick the defaults.
type Thresholds struct {
	VolatilityLow  float64 // below this is the low tier
	VolatilityHigh float64 // above this is the high tier
	SidewaysPct    float64 // band around MA50, in percent
}

// DefaultThresholds are the standard classification boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		VolatilityLow:  15,
		VolatilityHigh: 25,
		SidewaysPct:    0.5,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.VolatilityLow <= 0 {
		t.VolatilityLow = d.VolatilityLow
	}
	if t.VolatilityHigh <= 0 {
		t.VolatilityHigh = d.VolatilityHigh
	}
	if t.SidewaysPct <= 0 {
		t.SidewaysPct = d.SidewaysPct
	}
	return t
}

// profile carries the fixed text attached to each regime.
type profile struct {
	description string
	guidance    string
	risk        RiskTier
}

var profiles = map[Regime]profile{
	LowVolBullish: {
		description: "Calm market trending above its long-term average.",
		guidance:    "Favorable conditions for new long positions at normal size.",
		risk:        RiskLow,
	},
	LowVolBearish: {
		description: "Calm market drifting below its long-term average.",
		guidance:    "Be selective with longs; weak drift can persist quietly.",
		risk:        RiskModerate,
	},
	ElevatedVolBullish: {
		description: "Uptrend with above-normal volatility.",
		guidance:    "Favor established names and keep stops wider than usual.",
		risk:        RiskModerate,
	},
	ElevatedVolBearish: {
		description: "Downtrend with above-normal volatility.",
		guidance:    "Reduce exposure; rallies are suspect until volatility cools.",
		risk:        RiskHigh,
	},
	HighVolBullish: {
		description: "Strong upside moves in a highly volatile tape.",
		guidance:    "Halve position sizes; violent reversals are common here.",
		risk:        RiskHigh,
	},
	HighVolBearish: {
		description: "High-volatility decline.",
		guidance:    "Capital preservation first; halve sizes and prefer HOLD.",
		risk:        RiskExtreme,
	},
	Choppy: {
		description: "High volatility with no directional bias. Dangerous conditions.",
		guidance:    "No clear direction; strongly favor HOLD and minimal size.",
		risk:        RiskExtreme,
	},
	Neutral: {
		description: "Not enough benchmark history to classify the market.",
		guidance:    "Treat conditions as unknown; default to conservative sizing.",
		risk:        RiskModerate,
	},
}

// Assessment is the classifier output plus the inputs that produced it.
type Assessment struct {
	Regime      Regime   `json:"regime"`
	Description string   `json:"description"`
	Guidance    string   `json:"guidance"`
	Risk        RiskTier `json:"risk"`
	Volatility  float64  `json:"volatility"`
	Benchmark   float64  `json:"benchmarkPrice"`
	MA50        float64  `json:"benchmarkMa50"`
}

// HalvesPositionSize reports whether downstream sizing should cut in half
// under this regime.
func (a Assessment) HalvesPositionSize() bool {
	return a.Regime == HighVolBullish || a.Regime == HighVolBearish || a.Regime == Choppy
}

// Classify maps a volatility proxy and the benchmark's position relative to
// its 50-period average onto a regime. The sideways-and-volatile CHOPPY check
// runs before the directional split. A non-positive ma50 means the average
// could not be computed and yields NEUTRAL regardless of the other inputs.
func Classify(volatility, price, ma50 float64, t Thresholds) Assessment {
	t = t.withDefaults()

	r := classify(volatility, price, ma50, t)
	p := profiles[r]

	return Assessment{
		Regime:      r,
		Description: p.description,
		Guidance:    p.guidance,
		Risk:        p.risk,
		Volatility:  volatility,
		Benchmark:   price,
		MA50:        ma50,
	}
}

func classify(volatility, price, ma50 float64, t Thresholds) Regime {
	if ma50 <= 0 {
		return Neutral
	}

	distancePct := math.Abs(price-ma50) / ma50 * 100
	if distancePct <= t.SidewaysPct && volatility > t.VolatilityHigh {
		return Choppy
	}

	bullish := price > ma50
	switch {
	case volatility < t.VolatilityLow:
		if bullish {
			return LowVolBullish
		}
		return LowVolBearish
	case volatility > t.VolatilityHigh:
		if bullish {
			return HighVolBullish
		}
		return HighVolBearish
	default:
		if bullish {
			return ElevatedVolBullish
		}
		return ElevatedVolBearish
	}
}
