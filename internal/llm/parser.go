package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the recommended trade direction.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Parsed is the validated recommendation extracted from backend output.
// PriceTarget and StopLoss are always populated for BUY/SELL (from the
// backend or from defaults); sizing fields stay nil unless the backend
// supplied them, and are always nil for HOLD.
type Parsed struct {
	Action       Action
	Confidence   int
	Rationale    string
	PriceTarget  *float64
	StopLoss     *float64
	Shares       *float64
	DollarAmount *float64
}

// Default target/stop multipliers applied when the backend omits levels.
const (
	buyTargetMult  = 1.05
	buyStopMult    = 0.97
	sellTargetMult = 0.95
	sellStopMult   = 1.03
)

type rawRecommendation struct {
	Action       string   `json:"action"`
	Confidence   *float64 `json:"confidence"`
	Rationale    string   `json:"rationale"`
	PriceTarget  *float64 `json:"priceTarget"`
	StopLoss     *float64 `json:"stopLoss"`
	Shares       *float64 `json:"shares"`
	DollarAmount *float64 `json:"dollarAmount"`
}

// ParseRecommendation extracts and validates the recommendation JSON from
// free-form backend text. price is the current quote used to fill default
// target and stop levels. The backend may surround the JSON with prose or
// markdown fences; only the first balanced object is considered.
func ParseRecommendation(text string, price float64) (*Parsed, error) {
	candidate := extractJSONObject(stripMarkdownCodeBlock(text))
	if candidate == "" {
		return nil, fmt.Errorf("no JSON object in backend response")
	}

	var raw rawRecommendation
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil, fmt.Errorf("invalid recommendation JSON: %w", err)
	}

	action := Action(strings.ToUpper(strings.TrimSpace(raw.Action)))
	switch action {
	case ActionBuy, ActionSell, ActionHold:
	default:
		return nil, fmt.Errorf("invalid action %q", raw.Action)
	}

	if raw.Confidence == nil {
		return nil, fmt.Errorf("missing confidence")
	}
	confidence := int(*raw.Confidence)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	rationale := strings.TrimSpace(raw.Rationale)
	if rationale == "" {
		return nil, fmt.Errorf("missing rationale")
	}

	p := &Parsed{
		Action:     action,
		Confidence: confidence,
		Rationale:  rationale,
	}

	switch action {
	case ActionBuy:
		p.PriceTarget = orDefault(raw.PriceTarget, price*buyTargetMult)
		p.StopLoss = orDefault(raw.StopLoss, price*buyStopMult)
	case ActionSell:
		p.PriceTarget = orDefault(raw.PriceTarget, price*sellTargetMult)
		p.StopLoss = orDefault(raw.StopLoss, price*sellStopMult)
	case ActionHold:
		// HOLD carries no levels and no sizing.
		return p, nil
	}

	p.Shares = raw.Shares
	p.DollarAmount = raw.DollarAmount
	return p, nil
}

func orDefault(v *float64, fallback float64) *float64 {
	if v != nil && *v > 0 {
		return v
	}
	return &fallback
}

// extractJSONObject returns the first balanced {...} span, respecting string
// literals and escapes, or "" if none closes.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

// stripMarkdownCodeBlock removes markdown code fences around a response.
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		if idx := strings.Index(response, "\n"); idx >= 0 {
			response = response[idx+1:]
		}
		if idx := strings.LastIndex(response, "```"); idx >= 0 {
			response = response[:idx]
		}
	}

	return strings.TrimSpace(response)
}
