package patterns

import (
	"testing"

	"stock-advisor/internal/indicators"
	"stock-advisor/internal/market"
)

// TestBullishEngulfing tests Bullish Engulfing detection
func TestBullishEngulfing(t *testing.T) {
	d := NewDetector(0.5)

	c1 := market.Candle{Open: 100, High: 102, Low: 98, Close: 99, Time: 1000}
	c2 := market.Candle{Open: 98, High: 105, Low: 97, Close: 104, Time: 2000}

	if !d.isBullishEngulfing(c1, c2) {
		t.Error("should detect valid Bullish Engulfing")
	}

	c1NotBearish := market.Candle{Open: 99, High: 102, Low: 98, Close: 100, Time: 1000}
	if d.isBullishEngulfing(c1NotBearish, c2) {
		t.Error("should NOT detect when first candle is not bearish")
	}

	c2TooSmall := market.Candle{Open: 99, High: 101, Low: 98, Close: 100, Time: 2000}
	if d.isBullishEngulfing(c1, c2TooSmall) {
		t.Error("should NOT detect when second candle does not engulf the first")
	}
}

// TestBearishEngulfing tests Bearish Engulfing detection
func TestBearishEngulfing(t *testing.T) {
	d := NewDetector(0.5)

	c1 := market.Candle{Open: 99, High: 102, Low: 98, Close: 100, Time: 1000}
	c2 := market.Candle{Open: 101, High: 103, Low: 95, Close: 96, Time: 2000}

	if !d.isBearishEngulfing(c1, c2) {
		t.Error("should detect valid Bearish Engulfing")
	}
}

// TestDoji tests Doji detection
func TestDoji(t *testing.T) {
	d := NewDetector(0.5)

	doji := market.Candle{Open: 100, High: 102, Low: 98, Close: 100.2, Time: 1000}
	if !d.isDoji(doji) {
		t.Error("should detect valid Doji")
	}

	notDoji := market.Candle{Open: 100, High: 110, Low: 98, Close: 108, Time: 1000}
	if d.isDoji(notDoji) {
		t.Error("should NOT detect Doji with a large body")
	}
}

// TestDragonflyDoji tests Dragonfly Doji detection
func TestDragonflyDoji(t *testing.T) {
	d := NewDetector(0.5)

	dragonfly := market.Candle{Open: 100, High: 100.12, Low: 92, Close: 100.1, Time: 1000}
	if !d.isDragonflyDoji(dragonfly) {
		t.Error("should detect valid Dragonfly Doji")
	}

	withUpperWick := market.Candle{Open: 100, High: 105, Low: 92, Close: 100.1, Time: 1000}
	if d.isDragonflyDoji(withUpperWick) {
		t.Error("should NOT detect Dragonfly with an upper wick")
	}
}

// TestGravestoneDoji tests Gravestone Doji detection
func TestGravestoneDoji(t *testing.T) {
	d := NewDetector(0.5)

	gravestone := market.Candle{Open: 100, High: 108, Low: 99.98, Close: 100.1, Time: 1000}
	if !d.isGravestoneDoji(gravestone) {
		t.Error("should detect valid Gravestone Doji")
	}
}

// TestBullishHarami tests Bullish Harami detection
func TestBullishHarami(t *testing.T) {
	d := NewDetector(0.5)

	c1 := market.Candle{Open: 105, High: 106, Low: 95, Close: 96, Time: 1000}
	c2 := market.Candle{Open: 98, High: 100, Low: 97, Close: 99, Time: 2000}

	if !d.isBullishHarami(c1, c2) {
		t.Error("should detect valid Bullish Harami")
	}

	c2TooLarge := market.Candle{Open: 96, High: 104, Low: 95, Close: 103, Time: 2000}
	if d.isBullishHarami(c1, c2TooLarge) {
		t.Error("should NOT detect Harami when second candle is too large")
	}
}

// TestBearishHarami tests Bearish Harami detection
func TestBearishHarami(t *testing.T) {
	d := NewDetector(0.5)

	c1 := market.Candle{Open: 96, High: 106, Low: 95, Close: 105, Time: 1000}
	c2 := market.Candle{Open: 103, High: 104, Low: 101, Close: 102, Time: 2000}

	if !d.isBearishHarami(c1, c2) {
		t.Error("should detect valid Bearish Harami")
	}
}

// TestHammerAndHangingMan tests that the same shape flips meaning with the
// preceding candle's direction
func TestHammerAndHangingMan(t *testing.T) {
	d := NewDetector(0.5)

	shape := market.Candle{Open: 100, High: 100.6, Low: 92, Close: 100.5, Time: 2000}

	afterDown := market.Candle{Open: 100, High: 101, Low: 95, Close: 96, Time: 1000}
	if !d.isHammer(shape, &afterDown) {
		t.Error("should detect Hammer after a down candle")
	}
	if d.isHangingMan(shape, &afterDown) {
		t.Error("should NOT detect Hanging Man after a down candle")
	}

	afterUp := market.Candle{Open: 95, High: 100, Low: 94, Close: 99, Time: 1000}
	if !d.isHangingMan(shape, &afterUp) {
		t.Error("should detect Hanging Man after an up candle")
	}
	if d.isHammer(shape, &afterUp) {
		t.Error("should NOT detect Hammer after an up candle")
	}
}

// TestMorningStar tests the three-candle Morning Star shape
func TestMorningStar(t *testing.T) {
	d := NewDetector(0.5)

	c1 := market.Candle{Open: 110, High: 111, Low: 99, Close: 100, Time: 1000}
	c2 := market.Candle{Open: 99, High: 100.5, Low: 98, Close: 99.5, Time: 2000}
	c3 := market.Candle{Open: 100, High: 111, Low: 99.5, Close: 110, Time: 3000}

	if !d.isMorningStar(c1, c2, c3) {
		t.Error("should detect valid Morning Star")
	}

	// Third candle closing below the first candle's midpoint invalidates it.
	c3Weak := market.Candle{Open: 100, High: 104, Low: 99.5, Close: 103, Time: 3000}
	if d.isMorningStar(c1, c2, c3Weak) {
		t.Error("should NOT detect Morning Star when recovery stops below the midpoint")
	}
}

// TestDetectFindsEngulfing tests the full scan path with scoring
func TestDetectFindsEngulfing(t *testing.T) {
	d := NewDetector(0.5)

	candles := []market.Candle{
		{Open: 100, High: 105, Low: 99, Close: 104, Time: 1000, Volume: 1000},
		{Open: 104, High: 106, Low: 98, Close: 99, Time: 2000, Volume: 1000},
		{Open: 98, High: 106, Low: 97, Close: 105, Time: 3000, Volume: 1000},
	}

	patterns := d.Detect(candles, indicators.TrendNeutral)

	found := false
	for _, p := range patterns {
		if p.Name == BullishEngulfing {
			found = true
			if p.Polarity != Bullish {
				t.Error("Bullish Engulfing should be bullish")
			}
			if p.Score < 0 || p.Score > 100 {
				t.Errorf("score out of range: %d", p.Score)
			}
			if p.Index != 2 {
				t.Errorf("expected index 2, got %d", p.Index)
			}
		}
	}
	if !found {
		t.Error("should detect Bullish Engulfing in test candles")
	}
}
