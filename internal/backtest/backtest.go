// Package backtest replays the analysis pipeline over historical candles.
// It consumes caller-supplied windows instead of live fetches so every
// emitted recommendation is point-in-time honest: the price is the last
// close, the timestamp is the last candle's time, and nothing later in the
// series can leak into the prompt.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stock-advisor/internal/advisor"
	"stock-advisor/internal/indicators"
	"stock-advisor/internal/llm"
	"stock-advisor/internal/market"
	"stock-advisor/internal/memory"
	"stock-advisor/internal/patterns"
	"stock-advisor/internal/regime"
)

// Runner drives point-in-time analyses. It deliberately has no gateway and
// no budget tracker: candles come from the caller and simulation runs do not
// consume provider quotas.
type Runner struct {
	detector  *patterns.Detector
	memory    *memory.Store
	completer llm.Completer
	persona   llm.Persona
	risk      *llm.RiskParams
	logger    zerolog.Logger
}

type RunnerConfig struct {
	Detector  *patterns.Detector
	Memory    *memory.Store
	Completer llm.Completer
	Persona   llm.Persona
	Risk      *llm.RiskParams
	Logger    zerolog.Logger
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Detector == nil {
		cfg.Detector = patterns.NewDetector(0)
	}
	if cfg.Persona == "" {
		cfg.Persona = llm.PersonaBalanced
	}
	return &Runner{
		detector:  cfg.Detector,
		memory:    cfg.Memory,
		completer: cfg.Completer,
		persona:   cfg.Persona,
		risk:      cfg.Risk,
		logger:    cfg.Logger.With().Str("component", "Backtest").Logger(),
	}
}

// AnalyzeAtOpts tunes one point-in-time analysis.
type AnalyzeAtOpts struct {
	// ConfidenceThreshold discards recommendations below it. Zero means the
	// advisor default.
	ConfidenceThreshold int

	// Regime overrides classification so a historical run does not pick up
	// today's market conditions. Nil means NEUTRAL.
	Regime *regime.Assessment
}

func (o AnalyzeAtOpts) threshold() int {
	if o.ConfidenceThreshold <= 0 {
		return advisor.DefaultConfidenceThreshold
	}
	return o.ConfidenceThreshold
}

// AnalyzeAt analyzes the supplied candle window as if the last candle had
// just closed. The window must be time-ordered and non-empty.
func (r *Runner) AnalyzeAt(ctx context.Context, symbol string, candles []market.Candle, opts AnalyzeAtOpts) advisor.Outcome {
	if r.completer == nil || !r.completer.IsConfigured() {
		return advisor.Outcome{Status: advisor.StatusSkippedNoCredentials,
			Reason: "reasoning backend credential not configured"}
	}
	if len(candles) == 0 {
		return advisor.Outcome{Status: advisor.StatusFailed, Reason: "empty candle window"}
	}

	last := candles[len(candles)-1]
	quote := quoteFromCandle(symbol, candles)

	assessment := regime.Classify(0, 0, 0, regime.DefaultThresholds())
	if opts.Regime != nil {
		assessment = *opts.Regime
	}

	ind := indicators.Compute(candles)
	detected := r.detector.Detect(candles, ind.Trend)
	significant := patterns.MostRecent(patterns.Significant(detected), 3)

	sig := memory.BuildSignature(ind, detected, assessment.Regime)
	var memoryContext string
	if r.memory != nil {
		memoryContext = memory.RenderContext(r.memory.FindSimilar(sig, 5), assessment.Regime)
	}

	prompt := llm.BuildAnalysisPrompt(llm.PromptData{
		Quote:         quote,
		Indicators:    ind,
		Regime:        assessment,
		Patterns:      significant,
		MemoryContext: memoryContext,
		Risk:          r.risk,
	})

	text, err := r.completer.Complete(ctx, llm.BuildSystemPrompt(r.persona), prompt)
	if err != nil {
		return advisor.Outcome{Status: advisor.StatusFailed, Reason: fmt.Sprintf("reasoning backend: %v", err)}
	}
	parsed, err := llm.ParseRecommendation(text, quote.Price)
	if err != nil {
		return advisor.Outcome{Status: advisor.StatusFailed, Reason: fmt.Sprintf("unparseable response: %v", err)}
	}
	if parsed.Confidence < opts.threshold() {
		return advisor.Outcome{Status: advisor.StatusSkippedLowConfidence,
			Reason: fmt.Sprintf("confidence %d below threshold %d", parsed.Confidence, opts.threshold())}
	}

	names := make([]string, 0, len(significant))
	for _, p := range significant {
		names = append(names, p.Name)
	}

	rec := &advisor.Recommendation{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		Action:       parsed.Action,
		Confidence:   parsed.Confidence,
		Rationale:    parsed.Rationale,
		PriceTarget:  parsed.PriceTarget,
		StopLoss:     parsed.StopLoss,
		Shares:       parsed.Shares,
		DollarAmount: parsed.DollarAmount,
		Regime:       assessment.Regime,
		Patterns:     names,
		Sources:      []string{"backtest"},
		// point-in-time: the candle's close time, never wall clock
		Timestamp: time.Unix(last.Time, 0).UTC(),
	}

	if r.memory != nil {
		r.memory.Record(memory.Scenario{
			ID:         rec.ID,
			Symbol:     symbol,
			Signature:  sig,
			Action:     string(rec.Action),
			Confidence: rec.Confidence,
			Price:      quote.Price,
			Timestamp:  rec.Timestamp,
		})
	}

	return advisor.Outcome{Status: advisor.StatusSuccess, Recommendation: rec}
}

// quoteFromCandle synthesizes the quote the live pipeline would have seen at
// the last candle's close.
func quoteFromCandle(symbol string, candles []market.Candle) market.Quote {
	last := candles[len(candles)-1]
	q := market.Quote{
		Symbol:    symbol,
		Price:     last.Close,
		High:      last.High,
		Low:       last.Low,
		Open:      last.Open,
		Volume:    last.Volume,
		Timestamp: time.Unix(last.Time, 0).UTC(),
	}
	if len(candles) > 1 {
		prev := candles[len(candles)-2]
		q.PreviousClose = prev.Close
		q.Change = last.Close - prev.Close
		if prev.Close != 0 {
			q.ChangePercent = q.Change / prev.Close * 100
		}
	}
	return q
}
