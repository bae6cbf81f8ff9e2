package pattern

import (
	"math"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

func init() {
	register(
		Rule{Name: "doji", Category: Indecision, MinCandles: 1, Match: doji},
		Rule{Name: "dragonfly_doji", Category: Indecision, MinCandles: 1, Match: dragonflyDoji},
		Rule{Name: "gravestone_doji", Category: Indecision, MinCandles: 1, Match: gravestoneDoji},
		Rule{Name: "long_legged_doji", Category: Indecision, MinCandles: 1, Match: longLeggedDoji},
		Rule{Name: "spinning_top", Category: Indecision, MinCandles: 1, Match: spinningTop},
	)
}

func doji(w Window) (model.Direction, float64, bool) {
	if bodyBelow(w.At(0), 0.1) {
		return flat(0.5)
	}
	return miss()
}

// dragonflyDoji: doji opening and closing at the top of a long lower wick.
// A body-free doji has no body to compare against, so the upper wick is
// also allowed up to 5% of the range.
func dragonflyDoji(w Window) (model.Direction, float64, bool) {
	c := w.At(0)
	b := body(c)
	if bodyBelow(c, 0.1) && lower(c) > 2*b && upper(c) <= math.Max(0.5*b, 0.05*rng(c)) {
		return up(0.65)
	}
	return miss()
}

func gravestoneDoji(w Window) (model.Direction, float64, bool) {
	c := w.At(0)
	b := body(c)
	if bodyBelow(c, 0.1) && upper(c) > 2*b && lower(c) <= math.Max(0.5*b, 0.05*rng(c)) {
		return down(0.65)
	}
	return miss()
}

// longLeggedDoji: tiny body with two comparable wicks.
func longLeggedDoji(w Window) (model.Direction, float64, bool) {
	c := w.At(0)
	r, ok := bodyRatio(c)
	uw, lw := upper(c), lower(c)
	if !ok || r > 0.05 || uw <= 0 || lw <= 0 {
		return miss()
	}
	if math.Min(uw, lw)/math.Max(uw, lw) >= 0.4 {
		return flat(0.55)
	}
	return miss()
}

// spinningTop: small body with both wicks at least 30% of the range.
func spinningTop(w Window) (model.Direction, float64, bool) {
	c := w.At(0)
	r, ok := bodyRatio(c)
	if !ok || r > 0.4 || body(c) == 0 {
		return miss()
	}
	if upper(c) >= 0.3*rng(c) && lower(c) >= 0.3*rng(c) {
		return flat(0.5)
	}
	return miss()
}
