package pattern

import (
	"math"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

func init() {
	register(
		Rule{Name: "closing_marubozu", Category: Special, MinCandles: 1, Match: closingMarubozu},
		Rule{Name: "concealing_baby_swallow", Category: Special, MinCandles: 4, Match: concealingBabySwallow},
		Rule{Name: "heikin_ashi_change", Category: Special, MinCandles: 3, Match: heikinAshiChange},
		Rule{Name: "in_neck", Category: Special, MinCandles: 2, Match: inNeck},
		Rule{Name: "kicking", Category: Special, MinCandles: 2, Match: kicking},
		Rule{Name: "marubozu", Category: Special, MinCandles: 1, Match: marubozu},
		Rule{Name: "on_neck", Category: Special, MinCandles: 2, Match: onNeck},
		Rule{Name: "opening_marubozu", Category: Special, MinCandles: 1, Match: openingMarubozu},
		Rule{Name: "railway_tracks", Category: Special, MinCandles: 7, Match: railwayTracks},
		Rule{Name: "three_bar_star", Category: Special, MinCandles: 3, Match: threeBarStar},
	)
}

// closingMarubozu: no wick on the closing side.
func closingMarubozu(w Window) (model.Direction, float64, bool) {
	c := w.At(0)
	if !bodyAtLeast(c, 0.5) {
		return miss()
	}
	tol := 0.001 * rng(c)
	return either(bull(c) && upper(c) <= tol, bear(c) && lower(c) <= tol, 0.7)
}

// concealingBabySwallow: two black marubozu, a black bar gapping down with
// a wick into the prior body, then a black bar swallowing it whole. Selling
// is exhausted.
func concealingBabySwallow(w Window) (model.Direction, float64, bool) {
	a, b, x, c := w.At(3), w.At(2), w.At(1), w.At(0)
	if !(bear(a) && bear(b) && bear(x) && bear(c)) {
		return miss()
	}
	if bodyAtLeast(a, 0.9) && bodyAtLeast(b, 0.9) && x.Open < b.Close && x.High > b.Close && engulfs(c, x) {
		return up(0.75)
	}
	return miss()
}

type haBar struct{ open, high, low, close float64 }

// heikinAshi computes smoothed bars over the last n candles of w.
func heikinAshi(w Window, n int) []haBar {
	cs := w.Before(0, n)
	out := make([]haBar, len(cs))
	for i, c := range cs {
		hc := (c.Open + c.High + c.Low + c.Close) / 4
		ho := (c.Open + c.Close) / 2
		if i > 0 {
			ho = (out[i-1].open + out[i-1].close) / 2
		}
		out[i] = haBar{
			open:  ho,
			close: hc,
			high:  math.Max(c.High, math.Max(ho, hc)),
			low:   math.Min(c.Low, math.Min(ho, hc)),
		}
	}
	return out
}

// heikinAshiChange: smoothed color flips and the new bar has no wick
// against it.
func heikinAshiChange(w Window) (model.Direction, float64, bool) {
	ha := heikinAshi(w, 20)
	p, c := ha[len(ha)-2], ha[len(ha)-1]
	r := c.high - c.low
	if r <= 0 {
		return miss()
	}
	eps := 1e-9 * r
	isBull := p.close < p.open && c.close > c.open && math.Min(c.open, c.close)-c.low <= eps
	isBear := p.close > p.open && c.close < c.open && c.high-math.Max(c.open, c.close) <= eps
	return either(isBull, isBear, 0.65)
}

// inNeck: weak bounce after a gap down that closes just into the prior body.
func inNeck(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if bear(p) && bodyAtLeast(p, 0.5) && bull(c) && c.Open < p.Low &&
		c.Close >= p.Close && c.Close <= p.Close+0.1*body(p) {
		return down(0.6)
	}
	return miss()
}

// kicking: opposite marubozu separated by a gap.
func kicking(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if !bodyAtLeast(p, 0.9) || !bodyAtLeast(c, 0.9) {
		return miss()
	}
	isBull := bear(p) && bull(c) && c.Low > p.High
	isBear := bull(p) && bear(c) && c.High < p.Low
	return either(isBull, isBear, 0.85)
}

func marubozu(w Window) (model.Direction, float64, bool) {
	c := w.At(0)
	if !bodyAtLeast(c, 0.9) {
		return miss()
	}
	return either(bull(c), bear(c), 0.7)
}

// onNeck: long black bar, gap down, close back at the prior low.
func onNeck(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if bear(p) && bodyAtLeast(p, 0.7) && bull(c) && c.Open < p.Low &&
		c.Close < p.Close && near(c.Close, p.Low, 0.02) {
		return down(0.6)
	}
	return miss()
}

// openingMarubozu: no wick on the opening side.
func openingMarubozu(w Window) (model.Direction, float64, bool) {
	c := w.At(0)
	b := body(c)
	if b == 0 || !bodyAtLeast(c, 0.5) {
		return miss()
	}
	return either(bull(c) && lower(c) <= 0.02*b, bear(c) && upper(c) <= 0.02*b, 0.65)
}

// railwayTracks: two large opposite bars of nearly equal body.
func railwayTracks(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	ar := avgRange(w.Before(2, 10))
	if ar <= 0 || body(p) <= 0.6*ar || body(c) <= 0.6*ar {
		return miss()
	}
	ratio := body(c) / body(p)
	if ratio < 0.8 || ratio > 1.2 {
		return miss()
	}
	return either(bear(p) && bull(c), bull(p) && bear(c), 0.7)
}

// threeBarStar: long bar, a small body beyond it, then a bar of the other
// color. Looser than the morning and evening star.
func threeBarStar(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	if body(a) == 0 || body(b) >= 0.5*body(a) {
		return miss()
	}
	isBull := bear(a) && top(b) < a.Close && bull(c)
	isBear := bull(a) && bottom(b) > a.Close && bear(c)
	return either(isBull, isBear, 0.65)
}
