package advisor

import (
	"context"
	"time"
)

// DefaultBriefingDelay spaces consecutive symbol analyses to stay under
// upstream burst limits.
const DefaultBriefingDelay = 3 * time.Second

// SymbolOutcome pairs a watchlist symbol with its analysis outcome.
type SymbolOutcome struct {
	Symbol  string  `json:"symbol"`
	Outcome Outcome `json:"outcome"`
}

// BriefingOpts tunes a batch run. Zero values fall back to defaults.
type BriefingOpts struct {
	AnalyzeOpts
	// Delay between consecutive symbols. Zero means DefaultBriefingDelay;
	// negative disables the delay.
	Delay time.Duration
}

func (o BriefingOpts) delay() time.Duration {
	if o.Delay == 0 {
		return DefaultBriefingDelay
	}
	if o.Delay < 0 {
		return 0
	}
	return o.Delay
}

// Briefing analyzes a whole watchlist sequentially. A skipped or failed
// symbol does not stop the batch; the per-symbol outcomes say what happened.
// Cancellation stops before the next symbol, returning what finished so far.
func (e *Engine) Briefing(ctx context.Context, symbols []string, opts BriefingOpts) []SymbolOutcome {
	results := make([]SymbolOutcome, 0, len(symbols))
	for i, symbol := range symbols {
		if i > 0 && opts.delay() > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(opts.delay()):
			}
		}
		if ctx.Err() != nil {
			return results
		}
		results = append(results, SymbolOutcome{
			Symbol:  symbol,
			Outcome: e.Analyze(ctx, symbol, opts.AnalyzeOpts),
		})
	}
	return results
}
