package backtest

import (
	"context"

	"stock-advisor/internal/advisor"
	"stock-advisor/internal/llm"
	"stock-advisor/internal/market"
	"stock-advisor/internal/memory"
)

const (
	// defaultWarmup is how many candles a replay needs before the first
	// analysis so long indicators have history.
	defaultWarmup = 60

	// defaultHorizon is how many candles forward an emitted recommendation
	// is evaluated against.
	defaultHorizon = 5

	// outcomeMovePct is the forward move that resolves a recommendation as
	// a win or a loss. Smaller moves are neutral.
	outcomeMovePct = 2.0
)

// ReplayOpts tunes a replay run. Zero values fall back to defaults.
type ReplayOpts struct {
	AnalyzeAtOpts

	// Warmup is the minimum window length before the first analysis.
	Warmup int

	// Step is how many candles advance between analyses. Zero means 1.
	Step int

	// Horizon is the forward evaluation distance in candles.
	Horizon int
}

func (o ReplayOpts) warmup() int {
	if o.Warmup <= 0 {
		return defaultWarmup
	}
	return o.Warmup
}

func (o ReplayOpts) step() int {
	if o.Step <= 0 {
		return 1
	}
	return o.Step
}

func (o ReplayOpts) horizon() int {
	if o.Horizon <= 0 {
		return defaultHorizon
	}
	return o.Horizon
}

// ReplayPoint is one evaluated recommendation from a replay.
type ReplayPoint struct {
	Recommendation *advisor.Recommendation `json:"recommendation"`
	EntryPrice     float64                 `json:"entryPrice"`
	ExitPrice      float64                 `json:"exitPrice"`
	Outcome        memory.Outcome          `json:"outcome"`
}

// ReplayStats aggregates a replay run.
type ReplayStats struct {
	Analyses int     `json:"analyses"`
	Emitted  int     `json:"emitted"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	Neutral  int     `json:"neutral"`
	HitRate  float64 `json:"hitRate"`
}

// ReplayResult is the full output of Replay.
type ReplayResult struct {
	Symbol string        `json:"symbol"`
	Points []ReplayPoint `json:"points"`
	Stats  ReplayStats   `json:"stats"`
}

// Replay walks the candle history, emits point-in-time recommendations and
// resolves each against the close Horizon candles later. Resolved outcomes
// feed the memory store, so a replay doubles as memory seeding.
func (r *Runner) Replay(ctx context.Context, symbol string, candles []market.Candle, opts ReplayOpts) (*ReplayResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &ReplayResult{Symbol: symbol}
	horizon := opts.horizon()

	for i := opts.warmup(); i+horizon < len(candles); i += opts.step() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		window := candles[:i+1]
		out := r.AnalyzeAt(ctx, symbol, window, opts.AnalyzeAtOpts)
		result.Stats.Analyses++
		if out.Status != advisor.StatusSuccess {
			continue
		}
		rec := out.Recommendation
		result.Stats.Emitted++

		entry := candles[i].Close
		exit := candles[i+horizon].Close
		outcome := resolve(rec.Action, entry, exit)

		switch outcome {
		case memory.OutcomeWin:
			result.Stats.Wins++
		case memory.OutcomeLoss:
			result.Stats.Losses++
		default:
			result.Stats.Neutral++
		}

		if r.memory != nil {
			r.memory.RecordOutcome(rec.ID, outcome)
		}

		result.Points = append(result.Points, ReplayPoint{
			Recommendation: rec,
			EntryPrice:     entry,
			ExitPrice:      exit,
			Outcome:        outcome,
		})
	}

	if decided := result.Stats.Wins + result.Stats.Losses; decided > 0 {
		result.Stats.HitRate = float64(result.Stats.Wins) / float64(decided) * 100
	}

	r.logger.Info().Str("symbol", symbol).
		Int("analyses", result.Stats.Analyses).
		Int("emitted", result.Stats.Emitted).
		Float64("hitRate", result.Stats.HitRate).
		Msg("Replay finished")
	return result, nil
}

// resolve grades one recommendation against the forward close.
func resolve(action llm.Action, entry, exit float64) memory.Outcome {
	if entry == 0 {
		return memory.OutcomeNeutral
	}
	movePct := (exit - entry) / entry * 100
	switch action {
	case llm.ActionBuy:
		if movePct >= outcomeMovePct {
			return memory.OutcomeWin
		}
		if movePct <= -outcomeMovePct {
			return memory.OutcomeLoss
		}
	case llm.ActionSell:
		if movePct <= -outcomeMovePct {
			return memory.OutcomeWin
		}
		if movePct >= outcomeMovePct {
			return memory.OutcomeLoss
		}
	}
	return memory.OutcomeNeutral
}
