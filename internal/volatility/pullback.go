package volatility

import (
	"math"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/trend"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/zone"
)

// Confirmation points for a finished pullback.
const (
	rejectionCandlePoints = 30
	rejectionWickPoints   = 25
	zonePoints            = 20
	candlePatternPoints   = 15
	continuationPoints    = 10
	reversalPenalty       = 30
)

// pullback looks for a retrace of at least Retrace over the last 5 bars
// inside a move of at least TrendMove over the last 10, in the direction of
// a trend verdict with enough confidence.
func (a *Analyzer) pullback(s model.Series, v trend.Verdict, zr zone.Result) Pullback {
	var p Pullback
	n := s.Len()
	if n < 11 || !v.Direction.Directional() || v.Confidence < a.cfg.MinTrend {
		return p
	}
	cur := s.At(n - 1).Close
	ago5, ago10 := s.At(n-6).Close, s.At(n-11).Close
	if ago5 <= 0 || ago10 <= 0 {
		return p
	}
	move := (cur - ago10) / ago10
	recent := (cur - ago5) / ago5

	bullish := v.Direction == model.Bullish
	if bullish && !(move > a.cfg.TrendMove && recent < -a.cfg.Retrace) {
		return p
	}
	if !bullish && !(move < -a.cfg.TrendMove && recent > a.cfg.Retrace) {
		return p
	}
	p.Detected = true
	p.Direction = v.Direction
	p.Strength = math.Abs(recent) * 100

	last, prev := s.At(n-1), s.At(n-2)
	points := 0.0
	confirm := func(name string, pts float64) {
		p.Confirmations = append(p.Confirmations, name)
		points += pts
	}
	if rejectionCandle(last, bullish) {
		confirm("rejection_candle", rejectionCandlePoints)
	}
	if rejectionWick(last, bullish) {
		confirm("rejection_wick", rejectionWickPoints)
	}
	if a.atZone(cur, zr, bullish) {
		confirm("zone", zonePoints)
	}
	if name, ok := pullbackCandle(last, bullish); ok {
		confirm(name, candlePatternPoints)
	}
	if continuation(last, prev, bullish) {
		confirm("continuation_candle", continuationPoints)
	}

	p.PossibleReversal = math.Abs(recent) > a.cfg.ReversalMove ||
		v.Confidence < a.cfg.SolidTrend ||
		againstTrend(s.Tail(3).Candles, bullish)
	if p.PossibleReversal {
		points -= reversalPenalty
	}

	score := a.cfg.PullbackBase + points + math.Min(p.Strength*5, 10)
	if len(p.Confirmations) < 2 {
		score = math.Min(score, a.cfg.PullbackCap)
	}
	p.Score = math.Max(0, math.Min(100, score))
	return p
}

// rejectionCandle is a full-bodied candle in the trend direction.
func rejectionCandle(c model.Candle, bullish bool) bool {
	rg := c.High - c.Low
	if rg == 0 || body(c)/rg <= 0.5 {
		return false
	}
	if bullish {
		return c.Close > c.Open
	}
	return c.Close < c.Open
}

// rejectionWick is a long wick on the side the pullback came from.
func rejectionWick(c model.Candle, bullish bool) bool {
	b := body(c)
	if c.High == c.Low || b == 0 {
		return false
	}
	if bullish {
		return lower(c) > b*1.5 && lower(c) > upper(c)
	}
	return upper(c) > b*1.5 && upper(c) > lower(c)
}

func (a *Analyzer) atZone(price float64, zr zone.Result, bullish bool) bool {
	zs := zr.Resistances
	if bullish {
		zs = zr.Supports
	}
	for _, z := range zs {
		if price > 0 && math.Abs(price-z.Price)/price <= a.cfg.ZoneTolerance {
			return true
		}
	}
	return false
}

// pullbackCandle recognizes the hammer and pin bar shapes that usually end
// a pullback.
func pullbackCandle(c model.Candle, bullish bool) (string, bool) {
	rg := c.High - c.Low
	if rg == 0 {
		return "", false
	}
	b := body(c)
	tail, nose := lower(c), upper(c)
	if !bullish {
		tail, nose = nose, tail
	}
	switch {
	case b/rg <= 0.3 && tail >= 2*b && nose <= b:
		if bullish {
			return "hammer", true
		}
		return "shooting_star", true
	case tail > 2*b:
		return "pin_bar", true
	}
	return "", false
}

func continuation(last, prev model.Candle, bullish bool) bool {
	if bullish {
		return last.Close > last.Open && last.Close > prev.Close
	}
	return last.Close < last.Open && last.Close < prev.Close
}

// againstTrend reports whether every candle closed against the trend.
func againstTrend(cs []model.Candle, bullish bool) bool {
	if len(cs) < 3 {
		return false
	}
	for _, c := range cs {
		if bullish && c.Close >= c.Open {
			return false
		}
		if !bullish && c.Close <= c.Open {
			return false
		}
	}
	return true
}
