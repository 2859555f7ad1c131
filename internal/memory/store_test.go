package memory

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-advisor/internal/indicators"
	"stock-advisor/internal/patterns"
	"stock-advisor/internal/regime"
)

func floatPtr(v float64) *float64 { return &v }

// TestBuildSignature tests quantization of the analysis context
func TestBuildSignature(t *testing.T) {
	ind := indicators.TechnicalIndicators{
		RSI14: floatPtr(58),
		MACD:  &indicators.MACDResult{Histogram: 0.4},
		Trend: indicators.TrendBullish,
	}
	detected := []patterns.Pattern{
		{Name: patterns.BullishEngulfing, Score: 72},
		{Name: patterns.Doji, Score: 30},
	}

	sig := BuildSignature(ind, detected, regime.LowVolBullish)

	if sig.RSIBucket != 5 {
		t.Errorf("RSI 58 should land in bucket 5, got %d", sig.RSIBucket)
	}
	if sig.MACDSign != 1 {
		t.Errorf("positive histogram should give sign 1, got %d", sig.MACDSign)
	}
	if len(sig.Patterns) != 1 || sig.Patterns[0] != patterns.BullishEngulfing {
		t.Errorf("only significant patterns should enter the signature, got %v", sig.Patterns)
	}
}

// TestBuildSignatureUnknownRSI tests the absent-indicator sentinel
func TestBuildSignatureUnknownRSI(t *testing.T) {
	sig := BuildSignature(indicators.TechnicalIndicators{}, nil, regime.Neutral)
	if sig.RSIBucket != -1 {
		t.Errorf("missing RSI should use bucket -1, got %d", sig.RSIBucket)
	}
	if sig.MACDSign != 0 {
		t.Errorf("missing MACD should use sign 0, got %d", sig.MACDSign)
	}
}

// TestFindSimilarRanksByCloseness tests that a near-identical signature
// outranks a distant one
func TestFindSimilarRanksByCloseness(t *testing.T) {
	store := NewStore(100, nil, zerolog.Nop())

	query := Signature{RSIBucket: 5, MACDSign: 1, Trend: indicators.TrendBullish, Regime: regime.LowVolBullish}

	store.Record(Scenario{
		Symbol:    "AAPL",
		Signature: Signature{RSIBucket: 5, MACDSign: 1, Trend: indicators.TrendBullish, Regime: regime.LowVolBullish},
		Action:    "BUY",
		Price:     230,
		Outcome:   OutcomeWin,
	})
	store.Record(Scenario{
		Symbol:    "XOM",
		Signature: Signature{RSIBucket: 2, MACDSign: -1, Trend: indicators.TrendBearish, Regime: regime.LowVolBullish},
		Action:    "SELL",
		Price:     90,
		Outcome:   OutcomeLoss,
	})

	matches := store.FindSimilar(query, 5)
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].Scenario.Symbol != "AAPL" {
		t.Errorf("closest signature should rank first, got %s", matches[0].Scenario.Symbol)
	}
}

// TestFindSimilarRegimeDownWeight tests that a cross-regime precedent is
// down-weighted but not excluded
func TestFindSimilarRegimeDownWeight(t *testing.T) {
	store := NewStore(100, nil, zerolog.Nop())

	sameSetup := Signature{RSIBucket: 5, MACDSign: 1, Trend: indicators.TrendBullish}

	bullSig := sameSetup
	bullSig.Regime = regime.LowVolBullish
	bearSig := sameSetup
	bearSig.Regime = regime.HighVolBearish

	store.Record(Scenario{Symbol: "SAME", Signature: bullSig, Outcome: OutcomeWin})
	store.Record(Scenario{Symbol: "OTHER", Signature: bearSig, Outcome: OutcomeWin})

	query := bullSig
	matches := store.FindSimilar(query, 5)
	if len(matches) != 2 {
		t.Fatalf("cross-regime scenario must not be excluded, got %d matches", len(matches))
	}

	var same, other Match
	for _, m := range matches {
		if m.Scenario.Symbol == "SAME" {
			same = m
		} else {
			other = m
		}
	}
	if other.Weight >= same.Weight {
		t.Errorf("cross-regime weight (%v) should be below same-regime weight (%v)", other.Weight, same.Weight)
	}
	if other.Weight <= 0 {
		t.Error("down-weighted match should keep a positive weight")
	}
}

// TestFindSimilarRecency tests that newer scenarios outrank equally similar
// old ones
func TestFindSimilarRecency(t *testing.T) {
	store := NewStore(100, nil, zerolog.Nop())
	sig := Signature{RSIBucket: 5, MACDSign: 1, Trend: indicators.TrendBullish, Regime: regime.LowVolBullish}

	store.Record(Scenario{Symbol: "OLD", Signature: sig, Timestamp: time.Now().Add(-180 * 24 * time.Hour)})
	store.Record(Scenario{Symbol: "NEW", Signature: sig, Timestamp: time.Now().Add(-24 * time.Hour)})

	matches := store.FindSimilar(sig, 2)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Scenario.Symbol != "NEW" {
		t.Errorf("newer scenario should rank first, got %s", matches[0].Scenario.Symbol)
	}
}

// TestRecordOutcome tests resolving a pending scenario
func TestRecordOutcome(t *testing.T) {
	store := NewStore(100, nil, zerolog.Nop())
	sig := Signature{RSIBucket: 5, Regime: regime.Neutral}

	id := store.Record(Scenario{Symbol: "AAPL", Signature: sig})
	store.RecordOutcome(id, OutcomeWin)

	matches := store.FindSimilar(sig, 1)
	if len(matches) != 1 {
		t.Fatal("expected the recorded scenario back")
	}
	if matches[0].Scenario.Outcome != OutcomeWin {
		t.Errorf("outcome should be resolved to win, got %s", matches[0].Scenario.Outcome)
	}
}

// TestCapacityBound tests that the oldest scenarios roll off
func TestCapacityBound(t *testing.T) {
	store := NewStore(10, nil, zerolog.Nop())
	for i := 0; i < 25; i++ {
		store.Record(Scenario{Symbol: "AAPL", Signature: Signature{RSIBucket: 5}})
	}
	if store.Len() != 10 {
		t.Errorf("store should cap at 10 scenarios, got %d", store.Len())
	}
}

// TestRenderContext tests the prompt block formatting
func TestRenderContext(t *testing.T) {
	matches := []Match{
		{Scenario: Scenario{
			Symbol: "AAPL", Action: "BUY", Price: 230,
			Timestamp: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			Outcome:   OutcomeWin,
			Signature: Signature{Regime: regime.LowVolBullish},
		}},
		{Scenario: Scenario{
			Symbol: "MSFT", Action: "SELL", Price: 400,
			Timestamp: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			Outcome:   OutcomeLoss,
			Signature: Signature{Regime: regime.HighVolBearish},
		}},
	}

	text := RenderContext(matches, regime.LowVolBullish)
	if !strings.Contains(text, "BUY AAPL") || !strings.Contains(text, "win") {
		t.Errorf("context should describe the matched scenario: %q", text)
	}
	if !strings.Contains(text, "different regime") {
		t.Errorf("cross-regime precedent should be labeled: %q", text)
	}

	if RenderContext(nil, regime.Neutral) == "" {
		t.Error("empty match list should still render a placeholder line")
	}
}
