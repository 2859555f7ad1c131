package advisor

import (
	"time"

	"stock-advisor/internal/llm"
	"stock-advisor/internal/regime"
)

// Recommendation is the final product of one analysis run. Immutable once
// returned.
type Recommendation struct {
	ID           string        `json:"id"`
	Symbol       string        `json:"symbol"`
	Action       llm.Action    `json:"action"`
	Confidence   int           `json:"confidence"`
	Rationale    string        `json:"rationale"`
	PriceTarget  *float64      `json:"priceTarget,omitempty"`
	StopLoss     *float64      `json:"stopLoss,omitempty"`
	Shares       *float64      `json:"suggestedShares,omitempty"`
	DollarAmount *float64      `json:"suggestedDollarAmount,omitempty"`
	Regime       regime.Regime `json:"regime"`
	Patterns     []string      `json:"patterns,omitempty"`
	Sources      []string      `json:"sources,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Status says how an analysis run ended. Skips are expected conditions, not
// errors; Failed carries a reason.
type Status string

const (
	StatusSuccess                Status = "success"
	StatusSkippedNoCredentials   Status = "skipped_no_credentials"
	StatusSkippedBudgetExhausted Status = "skipped_budget_exhausted"
	StatusSkippedLowConfidence   Status = "skipped_low_confidence"
	StatusFailed                 Status = "failed"
)

// Outcome is the result of Analyze. Recommendation is non-nil only when
// Status is StatusSuccess.
type Outcome struct {
	Status         Status          `json:"status"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Reason         string          `json:"reason,omitempty"`
}

func success(rec *Recommendation) Outcome {
	return Outcome{Status: StatusSuccess, Recommendation: rec}
}

func skipped(status Status, reason string) Outcome {
	return Outcome{Status: status, Reason: reason}
}

func failed(reason string) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason}
}

// Phase identifies one step of the analysis pipeline. Callers may subscribe
// via AnalyzeOpts.OnPhase to drive progress displays.
type Phase string

const (
	PhaseRegime     Phase = "regime"
	PhasePrice      Phase = "price"
	PhaseTechnicals Phase = "technicals"
	PhasePatterns   Phase = "patterns"
	PhaseNews       Phase = "news"
	PhaseReasoning  Phase = "reasoning"
)
