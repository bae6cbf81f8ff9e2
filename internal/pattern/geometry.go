package pattern

import (
	"math"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// Candle geometry. Every ratio helper returns false on a zero denominator
// so a flat candle never matches.

func body(c model.Candle) float64 { return math.Abs(c.Close - c.Open) }

func rng(c model.Candle) float64 { return c.High - c.Low }

func upper(c model.Candle) float64 { return c.High - math.Max(c.Open, c.Close) }

func lower(c model.Candle) float64 { return math.Min(c.Open, c.Close) - c.Low }

func top(c model.Candle) float64 { return math.Max(c.Open, c.Close) }

func bottom(c model.Candle) float64 { return math.Min(c.Open, c.Close) }

func mid(c model.Candle) float64 { return (c.Open + c.Close) / 2 }

func bull(c model.Candle) bool { return c.Close > c.Open }

func bear(c model.Candle) bool { return c.Close < c.Open }

// bodyRatio is body/range.
func bodyRatio(c model.Candle) (float64, bool) {
	r := rng(c)
	if r <= 0 {
		return 0, false
	}
	return body(c) / r, true
}

// bodyAtLeast reports body >= f·range on a candle with a range.
func bodyAtLeast(c model.Candle, f float64) bool {
	r, ok := bodyRatio(c)
	return ok && r >= f
}

// bodyBelow reports body < f·range on a candle with a range.
func bodyBelow(c model.Candle, f float64) bool {
	r, ok := bodyRatio(c)
	return ok && r < f
}

// near reports |a-b| <= tol·|b| for a non-zero reference b.
func near(a, b, tol float64) bool {
	if b == 0 {
		return false
	}
	return math.Abs(a-b) <= tol*math.Abs(b)
}

// inside reports c's range strictly within p's.
func inside(c, p model.Candle) bool { return c.High < p.High && c.Low > p.Low }

// engulfs reports c's range strictly covering p's.
func engulfs(c, p model.Candle) bool { return c.High > p.High && c.Low < p.Low }

// priorMove is the close change over the n bars before the last one.
func priorMove(w Window, n int) float64 {
	return w.At(1).Close - w.At(n).Close
}

func avgBody(cs []model.Candle) float64 {
	return avg(cs, body)
}

func avgRange(cs []model.Candle) float64 {
	return avg(cs, rng)
}

func avgVolume(cs []model.Candle) float64 {
	return avg(cs, func(c model.Candle) float64 { return c.Volume })
}

func avg(cs []model.Candle, f func(model.Candle) float64) float64 {
	if len(cs) == 0 {
		return 0
	}
	var s float64
	for _, c := range cs {
		s += f(c)
	}
	return s / float64(len(cs))
}

func highest(cs []model.Candle) float64 {
	h := math.Inf(-1)
	for _, c := range cs {
		h = math.Max(h, c.High)
	}
	return h
}

func lowest(cs []model.Candle) float64 {
	l := math.Inf(1)
	for _, c := range cs {
		l = math.Min(l, c.Low)
	}
	return l
}
