package pattern

import "github.com/Ijroy10/cubaYDsignal-sub001/internal/model"

func init() {
	register(
		Rule{Name: "abandoned_baby", Category: Reversal, MinCandles: 3, Match: abandonedBaby},
		Rule{Name: "belt_hold", Category: Reversal, MinCandles: 2, Match: beltHold},
		Rule{Name: "combo_engulfing", Category: Reversal, MinCandles: 2, Match: comboEngulfing},
		Rule{Name: "counterattack", Category: Reversal, MinCandles: 2, Match: counterattack},
		Rule{Name: "dark_cloud_cover", Category: Reversal, MinCandles: 2, Match: darkCloudCover},
		Rule{Name: "doji_confirmation", Category: Reversal, MinCandles: 2, Match: dojiConfirmation},
		Rule{Name: "engulfing", Category: Reversal, MinCandles: 2, Match: engulfing},
		Rule{Name: "evening_star", Category: Reversal, MinCandles: 3, Match: eveningStar},
		Rule{Name: "fake_breakout", Category: Reversal, MinCandles: 21, Match: fakeBreakout},
		Rule{Name: "gap", Category: Reversal, MinCandles: 2, Match: gap},
		Rule{Name: "hammer", Category: Reversal, MinCandles: 4, Match: hammer},
		Rule{Name: "hanging_man", Category: Reversal, MinCandles: 4, Match: hangingMan},
		Rule{Name: "harami", Category: Reversal, MinCandles: 2, Match: harami},
		Rule{Name: "inside_outside_inside", Category: Reversal, MinCandles: 5, Match: insideOutsideInside},
		Rule{Name: "inverted_hammer", Category: Reversal, MinCandles: 4, Match: invertedHammer},
		Rule{Name: "kicker", Category: Reversal, MinCandles: 2, Match: kicker},
		Rule{Name: "meeting_lines", Category: Reversal, MinCandles: 2, Match: meetingLines},
		Rule{Name: "morning_star", Category: Reversal, MinCandles: 3, Match: morningStar},
		Rule{Name: "piercing_line", Category: Reversal, MinCandles: 2, Match: piercingLine},
		Rule{Name: "pin_bar", Category: Reversal, MinCandles: 1, Match: pinBar},
		Rule{Name: "separating_reversal", Category: Reversal, MinCandles: 2, Match: separatingReversal},
		Rule{Name: "shooting_star", Category: Reversal, MinCandles: 4, Match: shootingStar},
		Rule{Name: "three_inside", Category: Reversal, MinCandles: 3, Match: threeInside},
		Rule{Name: "thrusting", Category: Reversal, MinCandles: 2, Match: thrusting},
		Rule{Name: "tweezer", Category: Reversal, MinCandles: 2, Match: tweezer},
		Rule{Name: "volume_trap", Category: Reversal, MinCandles: 21, Match: volumeTrap},
	)
}

// abandonedBaby: strong bar, doji gapped away on both sides, strong bar back.
func abandonedBaby(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	if !bodyAtLeast(a, 0.5) || !bodyAtLeast(c, 0.5) || rng(b) <= 0 || body(b) > 0.1*rng(b) {
		return miss()
	}
	isBull := bear(a) && bull(c) && b.High < a.Low && c.Low > b.High
	isBear := bull(a) && bear(c) && b.Low > a.High && c.High < b.Low
	return either(isBull, isBear, 0.85)
}

// beltHold opens on a gap and never trades back through the open.
func beltHold(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	b := body(c)
	if b == 0 {
		return miss()
	}
	isBull := bull(c) && c.Open < p.Close && lower(c) <= 0.1*b
	isBear := bear(c) && c.Open > p.Close && upper(c) <= 0.1*b
	return either(isBull, isBear, 0.7)
}

// comboEngulfing: a long-wick rejection bar engulfed by a larger body.
func comboEngulfing(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if rng(p) <= 0 || body(c) <= body(p) {
		return miss()
	}
	isBull := lower(p) > 2*body(p) && bull(c) && c.Open < bottom(p) && c.Close > top(p)
	isBear := upper(p) > 2*body(p) && bear(c) && c.Open > top(p) && c.Close < bottom(p)
	return either(isBull, isBear, 0.75)
}

// counterattack: opposite colors closing at the same price.
func counterattack(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if !bodyAtLeast(p, 0.5) || !near(c.Close, p.Close, 0.002) {
		return miss()
	}
	isBull := bear(p) && bull(c) && c.Open < p.Close
	isBear := bull(p) && bear(c) && c.Open > p.Close
	return either(isBull, isBear, 0.65)
}

func darkCloudCover(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if bull(p) && bear(c) && c.Open > p.High && c.Close < mid(p) && c.Close > p.Open {
		return down(0.75)
	}
	return miss()
}

// dojiConfirmation: a doji followed by a bar with a clearly larger body.
func dojiConfirmation(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if !bodyBelow(p, 0.1) || body(c) <= 2*body(p) {
		return miss()
	}
	return either(bull(c), bear(c), 0.75)
}

func engulfing(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if body(c) <= body(p) {
		return miss()
	}
	isBull := bear(p) && bull(c) && c.Open <= p.Close && c.Close >= p.Open
	isBear := bull(p) && bear(c) && c.Open >= p.Close && c.Close <= p.Open
	return either(isBull, isBear, 0.8)
}

func morningStar(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	if bear(a) && body(b) < 0.3*body(a) && bull(c) && c.Close > mid(a) {
		return up(0.8)
	}
	return miss()
}

func eveningStar(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	if bull(a) && body(b) < 0.3*body(a) && bear(c) && c.Close < mid(a) {
		return down(0.8)
	}
	return miss()
}

// fakeBreakout pierces the 20-bar extreme but closes back inside.
func fakeBreakout(w Window) (model.Direction, float64, bool) {
	c := w.At(0)
	prev := w.Before(1, 20)
	hi, lo := highest(prev), lowest(prev)
	isBear := c.High > hi && c.Close < hi
	isBull := c.Low < lo && c.Close > lo
	if isBull && isBear {
		return miss()
	}
	return either(isBull, isBear, 0.7)
}

func gap(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	return either(c.Low > p.High, c.High < p.Low, 0.75)
}

// hammerShape: long lower wick, small upper wick, real body.
func hammerShape(c model.Candle) bool {
	b := body(c)
	return b > 0 && lower(c) > 2*b && upper(c) < 0.3*b
}

// starShape is the inverted hammer / shooting star silhouette.
func starShape(c model.Candle) bool {
	b := body(c)
	return b > 0 && upper(c) > 2*b && lower(c) < 0.3*b
}

func hammer(w Window) (model.Direction, float64, bool) {
	if hammerShape(w.At(0)) && priorMove(w, 3) < 0 {
		return up(0.75)
	}
	return miss()
}

func hangingMan(w Window) (model.Direction, float64, bool) {
	if hammerShape(w.At(0)) && priorMove(w, 3) > 0 {
		return down(0.7)
	}
	return miss()
}

func invertedHammer(w Window) (model.Direction, float64, bool) {
	if starShape(w.At(0)) && priorMove(w, 3) < 0 {
		return up(0.7)
	}
	return miss()
}

func shootingStar(w Window) (model.Direction, float64, bool) {
	if starShape(w.At(0)) && priorMove(w, 3) > 0 {
		return down(0.75)
	}
	return miss()
}

// harami: body contained in the previous, opposite color.
func harami(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	isBull := bear(p) && bull(c) && c.Open > p.Close && c.Close < p.Open
	isBear := bull(p) && bear(c) && c.Open < p.Close && c.Close > p.Open
	return either(isBull, isBear, 0.65)
}

// insideOutsideInside resolves an inside, outside, inside sequence by the
// side the last bar closes beyond the outside bar.
func insideOutsideInside(w Window) (model.Direction, float64, bool) {
	m, i1, o, i2, c := w.At(4), w.At(3), w.At(2), w.At(1), w.At(0)
	if !inside(i1, m) || !engulfs(o, i1) || !inside(i2, o) {
		return miss()
	}
	return either(c.Close > o.High, c.Close < o.Low, 0.7)
}

// kicker: color flip with the open jumping past the previous open.
func kicker(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	isBull := bear(p) && bull(c) && c.Open > p.Open
	isBear := bull(p) && bear(c) && c.Open < p.Open
	return either(isBull, isBear, 0.85)
}

func meetingLines(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if !bodyAtLeast(p, 0.5) || !near(c.Close, p.Close, 0.0001) {
		return miss()
	}
	isBull := bear(p) && bull(c) && c.Open < p.Close
	isBear := bull(p) && bear(c) && c.Open > p.Close
	return either(isBull, isBear, 0.65)
}

func piercingLine(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if bear(p) && bull(c) && c.Open < p.Low && c.Close > mid(p) && c.Close < p.Open {
		return up(0.75)
	}
	return miss()
}

// pinBar: one wick over twice the body, the other shorter than the body.
func pinBar(w Window) (model.Direction, float64, bool) {
	c := w.At(0)
	b := body(c)
	if rng(c) <= 0 {
		return miss()
	}
	isBull := lower(c) > 2*b && upper(c) < b
	isBear := upper(c) > 2*b && lower(c) < b
	return either(isBull, isBear, 0.7)
}

// separatingReversal: same open, opposite color, close still inside the
// previous range.
func separatingReversal(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if !near(c.Open, p.Open, 0.002) || c.Close > p.High || c.Close < p.Low {
		return miss()
	}
	return either(bear(p) && bull(c), bull(p) && bear(c), 0.7)
}

func threeInside(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	isBull := bear(a) && b.Open > a.Close && b.Close < a.Open && bull(b) && bull(c) && c.Close > b.Close
	isBear := bull(a) && b.Open < a.Close && b.Close > a.Open && bear(b) && bear(c) && c.Close < b.Close
	return either(isBull, isBear, 0.75)
}

// thrusting: a weak bounce that fails to reach the prior midpoint.
func thrusting(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if bear(p) && bodyAtLeast(p, 0.5) && bull(c) && c.Open < p.Low && c.Close > p.Close && c.Close < mid(p) {
		return down(0.65)
	}
	return miss()
}

func tweezer(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	isBull := bear(p) && bull(c) && near(c.Low, p.Low, 0.001)
	isBear := bull(p) && bear(c) && near(c.High, p.High, 0.001)
	return either(isBull, isBear, 0.7)
}

// volumeTrap: heavy volume on a small body. The longer wick shows which
// side got trapped.
func volumeTrap(w Window) (model.Direction, float64, bool) {
	c := w.At(0)
	if !c.HasVolume {
		return miss()
	}
	prev := w.Before(1, 20)
	v, b := avgVolume(prev), avgBody(prev)
	if v <= 0 || b <= 0 || c.Volume <= 1.5*v || body(c) >= 0.5*b {
		return miss()
	}
	lw, uw := lower(c), upper(c)
	return either(lw > uw, uw > lw, 0.65)
}
