package backtest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-advisor/internal/advisor"
	"stock-advisor/internal/llm"
	"stock-advisor/internal/market"
	"stock-advisor/internal/memory"
	"stock-advisor/internal/regime"
)

type scriptedCompleter struct {
	response string
	lastUser string
	calls    int
}

func (s *scriptedCompleter) Complete(_ context.Context, _, user string) (string, error) {
	s.calls++
	s.lastUser = user
	return s.response, nil
}

func (s *scriptedCompleter) CompleteConversation(ctx context.Context, system string, history []llm.Message) (string, error) {
	return s.Complete(ctx, system, history[len(history)-1].Content)
}

func (s *scriptedCompleter) IsConfigured() bool { return true }

const day = int64(86400)

func risingCandles(n int, base, step float64) []market.Candle {
	candles := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		close := base + step*float64(i)
		candles[i] = market.Candle{
			Time:   int64(i+1) * day,
			Open:   close - step,
			High:   close + 0.1,
			Low:    close - step - 0.1,
			Close:  close,
			Volume: 1_000_000,
		}
	}
	return candles
}

func TestAnalyzeAtPointInTime(t *testing.T) {
	completer := &scriptedCompleter{
		response: `{"action":"BUY","confidence":75,"rationale":"uptrend intact"}`,
	}
	runner := NewRunner(RunnerConfig{Completer: completer, Logger: zerolog.Nop()})

	candles := risingCandles(80, 100, 0.5)
	window := candles[:70]
	out := runner.AnalyzeAt(context.Background(), "AAPL", window, AnalyzeAtOpts{})

	if out.Status != advisor.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", out.Status, out.Reason)
	}
	rec := out.Recommendation

	lastInWindow := window[len(window)-1]
	wantTime := time.Unix(lastInWindow.Time, 0).UTC()
	if !rec.Timestamp.Equal(wantTime) {
		t.Errorf("timestamp should be the candle time %v, got %v", wantTime, rec.Timestamp)
	}

	// levels derive from the window's last close, not any later price
	wantTarget := lastInWindow.Close * 1.05
	if rec.PriceTarget == nil || *rec.PriceTarget != wantTarget {
		t.Errorf("price target should derive from the window close: want %v, got %v", wantTarget, rec.PriceTarget)
	}

	// nothing after the window leaks into the prompt
	futureClose := fmt.Sprintf("%.2f", candles[79].Close)
	if strings.Contains(completer.lastUser, futureClose) {
		t.Error("prompt must not contain prices from beyond the window")
	}
}

func TestAnalyzeAtRegimeOverride(t *testing.T) {
	completer := &scriptedCompleter{
		response: `{"action":"HOLD","confidence":70,"rationale":"wait"}`,
	}
	runner := NewRunner(RunnerConfig{Completer: completer, Logger: zerolog.Nop()})

	override := regime.Classify(30, 100.2, 100, regime.DefaultThresholds())
	out := runner.AnalyzeAt(context.Background(), "AAPL", risingCandles(70, 100, 0.5), AnalyzeAtOpts{
		Regime: &override,
	})
	if out.Status != advisor.StatusSuccess {
		t.Fatalf("expected success, got %s", out.Status)
	}
	if out.Recommendation.Regime != regime.Choppy {
		t.Errorf("override regime should flow through, got %s", out.Recommendation.Regime)
	}
	if !strings.Contains(completer.lastUser, string(regime.Choppy)) {
		t.Error("prompt should embed the overridden regime")
	}
}

func TestAnalyzeAtEmptyWindow(t *testing.T) {
	runner := NewRunner(RunnerConfig{
		Completer: &scriptedCompleter{response: `{}`}, Logger: zerolog.Nop(),
	})
	out := runner.AnalyzeAt(context.Background(), "AAPL", nil, AnalyzeAtOpts{})
	if out.Status != advisor.StatusFailed {
		t.Errorf("empty window should fail, got %s", out.Status)
	}
}

func TestReplayWinOnRisingSeries(t *testing.T) {
	completer := &scriptedCompleter{
		response: `{"action":"BUY","confidence":80,"rationale":"trend up"}`,
	}
	store := memory.NewStore(1000, nil, zerolog.Nop())
	runner := NewRunner(RunnerConfig{Completer: completer, Memory: store, Logger: zerolog.Nop()})

	// 3% per candle: every 5-candle horizon clears the +2% win bar
	candles := risingCandles(100, 100, 3)
	result, err := runner.Replay(context.Background(), "AAPL", candles, ReplayOpts{
		Warmup: 60, Step: 5, Horizon: 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Stats.Emitted == 0 {
		t.Fatal("expected emitted recommendations")
	}
	if result.Stats.Wins != result.Stats.Emitted {
		t.Errorf("every BUY should win on a steep rise: %+v", result.Stats)
	}
	if result.Stats.HitRate != 100 {
		t.Errorf("expected 100%% hit rate, got %v", result.Stats.HitRate)
	}
	if store.Len() != result.Stats.Emitted {
		t.Errorf("each emitted recommendation should be recorded: store %d, emitted %d",
			store.Len(), result.Stats.Emitted)
	}
}

func TestResolveOutcomes(t *testing.T) {
	if got := resolve(llm.ActionBuy, 100, 97); got != memory.OutcomeLoss {
		t.Errorf("BUY into a -3%% move should lose, got %s", got)
	}
	if got := resolve(llm.ActionSell, 100, 97); got != memory.OutcomeWin {
		t.Errorf("SELL into a -3%% move should win, got %s", got)
	}
	if got := resolve(llm.ActionBuy, 100, 101); got != memory.OutcomeNeutral {
		t.Errorf("+1%% move should be neutral, got %s", got)
	}
	if got := resolve(llm.ActionHold, 100, 150); got != memory.OutcomeNeutral {
		t.Errorf("HOLD is always neutral, got %s", got)
	}
}
