package pattern

import "github.com/Ijroy10/cubaYDsignal-sub001/internal/model"

func init() {
	register(
		Rule{Name: "breakout_bar", Category: Breakout, MinCandles: 6, Match: breakoutBar},
		Rule{Name: "hikkake", Category: Breakout, MinCandles: 4, Match: hikkake},
		Rule{Name: "inside_bar", Category: Breakout, MinCandles: 2, Match: insideBar},
		Rule{Name: "outside_close", Category: Breakout, MinCandles: 2, Match: outsideClose},
		Rule{Name: "trap_bar", Category: Breakout, MinCandles: 3, Match: trapBar},
	)
}

// breakoutBar opens inside the previous 5-bar range and closes beyond it.
func breakoutBar(w Window) (model.Direction, float64, bool) {
	c := w.At(0)
	prev := w.Before(1, 5)
	hi, lo := highest(prev), lowest(prev)
	if c.Open > hi || c.Open < lo {
		return miss()
	}
	return either(c.Close > hi, c.Close < lo, 0.75)
}

// hikkake: an inside bar, a false break of one side, then a close beyond
// the other side.
func hikkake(w Window) (model.Direction, float64, bool) {
	m, in, f, c := w.At(3), w.At(2), w.At(1), w.At(0)
	if !inside(in, m) {
		return miss()
	}
	isBull := f.Low < in.Low && f.High <= in.High && c.Close > in.High
	isBear := f.High > in.High && f.Low >= in.Low && c.Close < in.Low
	return either(isBull, isBear, 0.7)
}

// insideBar leans with the mother bar's color.
func insideBar(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if !inside(c, p) {
		return miss()
	}
	if bull(p) || bear(p) {
		return either(bull(p), bear(p), 0.6)
	}
	return flat(0.6)
}

// outsideClose: outside bar closing beyond the previous range.
func outsideClose(w Window) (model.Direction, float64, bool) {
	p, c := w.At(1), w.At(0)
	if !engulfs(c, p) {
		return miss()
	}
	return either(c.Close > p.High, c.Close < p.Low, 0.75)
}

// trapBar: a new extreme that the following bar gives back past the old one.
func trapBar(w Window) (model.Direction, float64, bool) {
	a, b, c := w.At(2), w.At(1), w.At(0)
	isBear := b.High > a.High && c.Close < a.High
	isBull := b.Low < a.Low && c.Close > a.Low
	if isBull && isBear {
		return miss()
	}
	return either(isBull, isBear, 0.7)
}
