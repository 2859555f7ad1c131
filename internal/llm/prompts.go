package llm

import (
	"fmt"
	"strings"

	"stock-advisor/internal/indicators"
	"stock-advisor/internal/market"
	"stock-advisor/internal/patterns"
	"stock-advisor/internal/regime"
)

// Persona selects the reasoning style baked into the system prompt.
type Persona string

const (
	PersonaBalanced     Persona = "balanced"
	PersonaConservative Persona = "conservative"
	PersonaAggressive   Persona = "aggressive"
)

// RiskParams are the user's sizing constraints embedded into the prompt.
type RiskParams struct {
	DailyBudget    float64 `json:"daily_budget"`
	MaxPositionPct float64 `json:"max_position_pct"`
	LossLimitPct   float64 `json:"loss_limit_pct"`
}

// systemPromptBase instructs the backend on the structured-output contract.
// Everything after this is persona flavor.
const systemPromptBase = `You are an expert equity trading analyst. Analyze the provided market context and give one clear trading recommendation.

Your response must contain exactly one valid JSON object with this structure:
{
  "action": "BUY" | "SELL" | "HOLD",
  "confidence": 0-100,
  "rationale": "brief explanation referencing the evidence you used",
  "priceTarget": number or null,
  "stopLoss": number or null,
  "shares": number or null,
  "dollarAmount": number or null
}

Be conservative with confidence scores. Only report high confidence (above 70) when multiple independent signals align.
Reference the market regime and any named candlestick patterns in your rationale.
For HOLD recommendations, leave shares and dollarAmount null.`

var personaStyles = map[Persona]string{
	PersonaBalanced:     "Weigh upside and downside evenly.",
	PersonaConservative: "Prioritize capital preservation. Prefer HOLD unless the evidence is strong, and size positions below the allowed maximum.",
	PersonaAggressive:   "Favor acting on momentum early, but never exceed the stated risk limits.",
}

// BuildSystemPrompt returns the system prompt for the given persona. Unknown
// personas fall back to balanced.
func BuildSystemPrompt(persona Persona) string {
	style, ok := personaStyles[persona]
	if !ok {
		style = personaStyles[PersonaBalanced]
	}
	return systemPromptBase + "\n\n" + style
}

// PromptData is everything the analysis prompt embeds. Headlines and
// MemoryContext must be pre-sanitized by the caller; this builder does not
// re-sanitize.
type PromptData struct {
	Quote            market.Quote
	Indicators       indicators.TechnicalIndicators
	Regime           regime.Assessment
	Patterns         []patterns.Pattern
	RelativeStrength string
	Headlines        []string
	MemoryContext    string
	Risk             *RiskParams
}

// BuildAnalysisPrompt renders the user prompt for one symbol. Absent
// indicators render as N/A rather than being dropped, so the backend sees
// what the pipeline could not compute.
func BuildAnalysisPrompt(d PromptData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze %s for a trading decision.\n\n", d.Quote.Symbol)

	fmt.Fprintf(&b, "QUOTE\nPrice: %.2f (%+.2f%%)\nDay range: %.2f - %.2f\nVolume: %.0f\n\n",
		d.Quote.Price, d.Quote.ChangePercent, d.Quote.Low, d.Quote.High, d.Quote.Volume)

	b.WriteString("TECHNICALS\n")
	fmt.Fprintf(&b, "RSI(14): %s\n", formatFloat(d.Indicators.RSI14))
	if d.Indicators.MACD != nil {
		fmt.Fprintf(&b, "MACD: %.4f signal %.4f histogram %.4f\n",
			d.Indicators.MACD.Value, d.Indicators.MACD.Signal, d.Indicators.MACD.Histogram)
	} else {
		b.WriteString("MACD: N/A\n")
	}
	fmt.Fprintf(&b, "MA20: %s  MA50: %s  MA200: %s\n",
		formatFloat(d.Indicators.MA20), formatFloat(d.Indicators.MA50), formatFloat(d.Indicators.MA200))
	fmt.Fprintf(&b, "Trend: %s  Momentum: %s\n\n", d.Indicators.Trend, d.Indicators.Momentum)

	fmt.Fprintf(&b, "MARKET REGIME: %s\n%s\nGuidance: %s\nRisk tier: %s\n\n",
		d.Regime.Regime, d.Regime.Description, d.Regime.Guidance, d.Regime.Risk)

	b.WriteString("CANDLESTICK PATTERNS\n")
	if len(d.Patterns) == 0 {
		b.WriteString("None detected.\n")
	}
	for _, p := range d.Patterns {
		fmt.Fprintf(&b, "- %s (%s, reliability %s, score %d)\n", p.Name, p.Polarity, p.Reliability, p.Score)
	}
	b.WriteString("\n")

	if d.RelativeStrength != "" {
		fmt.Fprintf(&b, "RELATIVE STRENGTH vs benchmark: %s\n\n", d.RelativeStrength)
	}

	if len(d.Headlines) > 0 {
		b.WriteString("RECENT HEADLINES\n")
		for _, h := range d.Headlines {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		b.WriteString("\n")
	}

	if d.MemoryContext != "" {
		b.WriteString("HISTORICAL CONTEXT\n")
		b.WriteString(d.MemoryContext)
		b.WriteString("\n")
	}

	if d.Risk != nil {
		fmt.Fprintf(&b, "RISK PARAMETERS\nDaily budget: $%.2f\nMax position: %.1f%% of budget\nLoss limit: %.1f%%\n",
			d.Risk.DailyBudget, d.Risk.MaxPositionPct, d.Risk.LossLimitPct)
		b.WriteString("Compute a suggested share count and dollar amount within these limits.\n")
		if d.Regime.HalvesPositionSize() {
			b.WriteString("Current regime is high volatility: halve the position size you would otherwise suggest.\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Respond with the JSON object only.")
	return b.String()
}

func formatFloat(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}
