package pattern

import "github.com/Ijroy10/cubaYDsignal-sub001/internal/model"

func init() {
	register(
		Rule{Name: "advance_block", Category: Continuation, MinCandles: 3, Match: advanceBlock},
		Rule{Name: "deliberation", Category: Continuation, MinCandles: 8, Match: deliberation},
		Rule{Name: "downside_gap_three_methods", Category: Continuation, MinCandles: 3, Match: downsideGapThreeMethods},
		Rule{Name: "falling_three_methods", Category: Continuation, MinCandles: 5, Match: fallingThreeMethods},
		Rule{Name: "mat_hold", Category: Continuation, MinCandles: 5, Match: matHold},
		Rule{Name: "rising_three_methods", Category: Continuation, MinCandles: 5, Match: risingThreeMethods},
		Rule{Name: "separating_lines", Category: Continuation, MinCandles: 2, Match: separatingLines},
		Rule{Name: "stalled", Category: Continuation, MinCandles: 3, Match: stalled},
		Rule{Name: "tasuki_gap", Category: Continuation, MinCandles: 3, Match: tasukiGap},
		Rule{Name: "three_black_crows", Category: Continuation, MinCandles: 3, Match: threeBlackCrows},
		Rule{Name: "three_line_strike", Category: Continuation, MinCandles: 4, Match: threeLineStrike},
		Rule{Name: "three_white_soldiers", Category: Continuation, MinCandles: 3, Match: threeWhiteSoldiers},
		Rule{Name: "upside_gap_three_methods", Category: Continuation, MinCandles: 3, Match: upsideGapThreeMethods},
		Rule{Name: "upside_gap_two_crows", Category: Continuation, MinCandles: 3, Match: upsideGapTwoCrows},
	)
}

// advanceBlock: three rising white bars with shrinking bodies and growing
// upper wicks. Buyers are running out.
func advanceBlock(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	if !(bull(a) && bull(b) && bull(c)) || !(c.Close > b.Close && b.Close > a.Close) {
		return miss()
	}
	if body(b) < body(a) && body(c) < body(b) && upper(c) > upper(b) && upper(b) > upper(a) {
		return down(0.6)
	}
	return miss()
}

// deliberation: two long bodies then a small one gapping in the same
// direction, measured against the average body of the bars before.
func deliberation(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	ab := avgBody(w.Before(3, 20))
	if ab <= 0 || body(a) <= ab || body(b) <= ab || body(c) >= 0.7*ab {
		return miss()
	}
	isBear := bull(a) && bull(b) && b.Close > a.Close && c.Open > b.Close
	isBull := bear(a) && bear(b) && b.Close < a.Close && c.Open < b.Close
	return either(isBull, isBear, 0.6)
}

// downsideGapThreeMethods: two black bars with a gap, then a white bar
// that fills the gap. The decline is expected to resume.
func downsideGapThreeMethods(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	if bear(a) && bear(b) && b.High < a.Low && bull(c) &&
		c.Open < b.Open && c.Open > b.Close && c.Close > a.Close && c.Close < a.Open {
		return down(0.65)
	}
	return miss()
}

func upsideGapThreeMethods(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	if bull(a) && bull(b) && b.Low > a.High && bear(c) &&
		c.Open > b.Open && c.Open < b.Close && c.Close < a.Close && c.Close > a.Open {
		return up(0.65)
	}
	return miss()
}

// threeMethods checks a long first bar, three pullback bars held inside its
// range and a last bar closing beyond the first close.
func threeMethods(w Window, rising bool) bool {
	first, last := w.At(4), w.At(0)
	if !bodyAtLeast(first, 0.5) {
		return false
	}
	for k := 1; k <= 3; k++ {
		m := w.At(k)
		if m.High > first.High || m.Low < first.Low {
			return false
		}
	}
	if rising {
		return bull(first) && bull(last) && last.Close > first.Close
	}
	return bear(first) && bear(last) && last.Close < first.Close
}

func risingThreeMethods(w Window) (model.Direction, float64, bool) {
	if threeMethods(w, true) {
		return up(0.75)
	}
	return miss()
}

func fallingThreeMethods(w Window) (model.Direction, float64, bool) {
	if threeMethods(w, false) {
		return down(0.75)
	}
	return miss()
}

// matHold: long bar, a gapped small bar, two more small bars that hold
// above the first low (below the first high when bearish), and a last bar
// that breaks the pause.
func matHold(w Window) (model.Direction, float64, bool) {
	first, last := w.At(4), w.At(0)
	fb := body(first)
	if fb == 0 || !bodyAtLeast(first, 0.5) {
		return miss()
	}
	pause := []model.Candle{w.At(3), w.At(2), w.At(1)}
	for _, m := range pause {
		if body(m) >= 0.5*fb {
			return miss()
		}
	}
	if bull(first) && pause[0].Open > first.Close && lowest(pause) > first.Low &&
		bull(last) && last.Close > highest(pause) && last.Close > first.High {
		return up(0.75)
	}
	if bear(first) && pause[0].Open < first.Close && highest(pause) < first.High &&
		bear(last) && last.Close < lowest(pause) && last.Close < first.Low {
		return down(0.75)
	}
	return miss()
}

// separatingLines: same open, opposite color, close beyond the previous
// extreme in the prior direction of travel.
func separatingLines(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if !near(c.Open, p.Open, 0.002) {
		return miss()
	}
	isBull := bear(p) && bull(c) && c.Close > p.High
	isBear := bull(p) && bear(c) && c.Close < p.Low
	return either(isBull, isBear, 0.65)
}

// stalled: three rising white bars where the last body shrinks sharply.
func stalled(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	if bull(a) && bull(b) && bull(c) && b.Close > a.Close && c.Close > b.Close && body(c) < 0.6*body(b) {
		return down(0.6)
	}
	return miss()
}

// tasukiGap: a gap in the trend direction, then a counter bar that closes
// inside the gap without filling it.
func tasukiGap(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	isBull := bull(a) && bull(b) && b.Low > a.High && bear(c) &&
		c.Open > b.Open && c.Open < b.Close && c.Close > a.High && c.Close < b.Low
	isBear := bear(a) && bear(b) && b.High < a.Low && bull(c) &&
		c.Open < b.Open && c.Open > b.Close && c.Close < a.Low && c.Close > b.High
	return either(isBull, isBear, 0.65)
}

// soldiers reports three same-color bars with real bodies, each closing
// further and opening inside the previous body.
func soldiers(a, b, c model.Candle, white bool) bool {
	for _, x := range []model.Candle{a, b, c} {
		if !bodyAtLeast(x, 0.5) || bull(x) != white {
			return false
		}
	}
	if white {
		return b.Close > a.Close && c.Close > b.Close &&
			b.Open > a.Open && b.Open < a.Close && c.Open > b.Open && c.Open < b.Close
	}
	return b.Close < a.Close && c.Close < b.Close &&
		b.Open < a.Open && b.Open > a.Close && c.Open < b.Open && c.Open > b.Close
}

func threeWhiteSoldiers(w Window) (model.Direction, float64, bool) {
	if soldiers(w.At(2), w.At(1), w.At(0), true) {
		return up(0.8)
	}
	return miss()
}

func threeBlackCrows(w Window) (model.Direction, float64, bool) {
	if soldiers(w.At(2), w.At(1), w.At(0), false) {
		return down(0.8)
	}
	return miss()
}

// threeLineStrike: three bars in one direction, then a single bar that
// opens beyond the third close and wipes out the whole run.
func threeLineStrike(w Window) (model.Direction, float64, bool) {
	a, b, x, c := w.At(3), w.At(2), w.At(1), w.At(0)
	isBull := bull(a) && bull(b) && bull(x) && b.Close > a.Close && x.Close > b.Close &&
		bear(c) && c.Open >= x.Close && c.Close <= a.Open
	isBear := bear(a) && bear(b) && bear(x) && b.Close < a.Close && x.Close < b.Close &&
		bull(c) && c.Open <= x.Close && c.Close >= a.Open
	return either(isBull, isBear, 0.7)
}

// upsideGapTwoCrows: a gap up stalls into two black bars, the second
// engulfing the first but still above the white bar.
func upsideGapTwoCrows(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	if bull(a) && bodyAtLeast(a, 0.5) && bear(b) && b.Close > a.Close &&
		bear(c) && c.Open > b.Open && c.Close < b.Close && c.Close > a.Close {
		return down(0.65)
	}
	return miss()
}
