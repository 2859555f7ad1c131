package patterns

import "stock-advisor/internal/market"

// Reversal shape predicates. Each takes candles in time order and reports
// whether the shape is present at the last candle given.

// isMorningStar checks for a Morning Star (bullish reversal): a long bearish
// candle, a small indecision candle, then a long bullish candle closing above
// the first candle's midpoint.
func (d *Detector) isMorningStar(c1, c2, c3 market.Candle) bool {
	if c1.Close >= c1.Open {
		return false
	}
	body1 := c1.Open - c1.Close
	range1 := c1.High - c1.Low
	if body1 < range1*0.6 {
		return false
	}

	if body(c2) > body1*0.4 {
		return false
	}

	if c3.Close <= c3.Open {
		return false
	}
	body3 := c3.Close - c3.Open
	range3 := c3.High - c3.Low
	if body3 < range3*0.6 {
		return false
	}

	midpoint := (c1.Open + c1.Close) / 2
	return c3.Close >= midpoint
}

// isEveningStar checks for an Evening Star (bearish reversal), the mirror of
// the Morning Star.
func (d *Detector) isEveningStar(c1, c2, c3 market.Candle) bool {
	if c1.Close <= c1.Open {
		return false
	}
	body1 := c1.Close - c1.Open
	range1 := c1.High - c1.Low
	if body1 < range1*0.6 {
		return false
	}

	if body(c2) > body1*0.4 {
		return false
	}

	if c3.Close >= c3.Open {
		return false
	}
	body3 := c3.Open - c3.Close
	range3 := c3.High - c3.Low
	if body3 < range3*0.6 {
		return false
	}

	midpoint := (c1.Open + c1.Close) / 2
	return c3.Close <= midpoint
}

// isShootingStar checks for a Shooting Star (bearish): long upper wick, small
// lower wick, after an up candle.
func (d *Detector) isShootingStar(c market.Candle, prev *market.Candle) bool {
	b := body(c)
	if upperWick(c) < b*2 {
		return false
	}
	if lowerWick(c) > b*0.3 {
		return false
	}
	if prev != nil && prev.Close <= prev.Open {
		return false
	}
	return true
}

// isHammer checks for a Hammer (bullish): long lower wick, small upper wick,
// after a down candle.
func (d *Detector) isHammer(c market.Candle, prev *market.Candle) bool {
	b := body(c)
	if lowerWick(c) < b*2 {
		return false
	}
	if upperWick(c) > b*0.3 {
		return false
	}
	if prev != nil && prev.Close >= prev.Open {
		return false
	}
	return true
}

// isHangingMan checks for a Hanging Man (bearish): same shape as a hammer but
// appearing after an up candle.
func (d *Detector) isHangingMan(c market.Candle, prev *market.Candle) bool {
	b := body(c)
	if lowerWick(c) < b*2 {
		return false
	}
	if upperWick(c) > b*0.3 {
		return false
	}
	if prev == nil || prev.Close <= prev.Open {
		return false
	}
	return true
}

// isBullishEngulfing checks that a bullish candle's body completely covers
// the prior bearish candle's body.
func (d *Detector) isBullishEngulfing(c1, c2 market.Candle) bool {
	if c1.Close >= c1.Open {
		return false
	}
	if c2.Close <= c2.Open {
		return false
	}
	return c2.Open <= c1.Close && c2.Close >= c1.Open
}

// isBearishEngulfing is the mirror: a bearish body covering the prior bullish
// body.
func (d *Detector) isBearishEngulfing(c1, c2 market.Candle) bool {
	if c1.Close <= c1.Open {
		return false
	}
	if c2.Close >= c2.Open {
		return false
	}
	return c2.Open >= c1.Close && c2.Close <= c1.Open
}

// isDoji checks for a body under 10% of the candle's range.
func (d *Detector) isDoji(c market.Candle) bool {
	rng := c.High - c.Low
	if rng == 0 {
		return false
	}
	return body(c)/rng < 0.10
}

// isDragonflyDoji checks for a doji with a long lower wick and almost no
// upper wick.
func (d *Detector) isDragonflyDoji(c market.Candle) bool {
	if !d.isDoji(c) {
		return false
	}
	b := body(c)
	return lowerWick(c) > b*3 && upperWick(c) < b*0.3
}

// isGravestoneDoji checks for a doji with a long upper wick and almost no
// lower wick.
func (d *Detector) isGravestoneDoji(c market.Candle) bool {
	if !d.isDoji(c) {
		return false
	}
	b := body(c)
	return upperWick(c) > b*3 && lowerWick(c) < b*0.3
}

// isBullishHarami checks for a small bullish candle contained inside a large
// prior bearish body.
func (d *Detector) isBullishHarami(c1, c2 market.Candle) bool {
	if c1.Close >= c1.Open {
		return false
	}
	body1 := c1.Open - c1.Close
	range1 := c1.High - c1.Low
	if body1 < range1*0.6 {
		return false
	}

	if c2.Close <= c2.Open {
		return false
	}
	if c2.Open < c1.Close || c2.Close > c1.Open {
		return false
	}
	return c2.Close-c2.Open <= body1*0.5
}

// isBearishHarami is the mirror: a small bearish candle inside a large prior
// bullish body.
func (d *Detector) isBearishHarami(c1, c2 market.Candle) bool {
	if c1.Close <= c1.Open {
		return false
	}
	body1 := c1.Close - c1.Open
	range1 := c1.High - c1.Low
	if body1 < range1*0.6 {
		return false
	}

	if c2.Close >= c2.Open {
		return false
	}
	if c2.Open > c1.Close || c2.Close < c1.Open {
		return false
	}
	return c2.Open-c2.Close <= body1*0.5
}
