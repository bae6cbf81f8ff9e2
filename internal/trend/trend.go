// Package trend blends three moving-average timeframes into a single
// directional verdict with a confidence percentage.
package trend

import (
	"math"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/indicator"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/ta"
)

// Level is the analysis of one moving-average timeframe.
type Level struct {
	Name      string          `json:"name"`
	Period    int             `json:"period"`
	Weight    float64         `json:"weight"`
	Available bool            `json:"available"`
	Direction model.Direction `json:"direction"` // neutral means lateral
	MA        float64         `json:"ma"`
	SlopePct  float64         `json:"slope_pct"` // percent of price per bar
	Angle     float64         `json:"angle"`     // degrees

	AnglePoints       float64 `json:"angle_points"`
	ConsistencyPoints float64 `json:"consistency_points"`
	DistancePoints    float64 `json:"distance_points"`
	Confirmed         bool    `json:"confirmed"`
	Strength          float64 `json:"strength"`
}

// Verdict is the blended trend opinion.
type Verdict struct {
	Direction  model.Direction `json:"direction"`
	Confidence float64         `json:"confidence"`
	Base       float64         `json:"base"`
	Alignment  float64         `json:"alignment"`
	Aligned    int             `json:"aligned"`
	Conflict   bool            `json:"conflict"`
	Lateral    bool            `json:"lateral"`
	Reason     string          `json:"reason,omitempty"`
	ADX        float64         `json:"adx"`
	Levels     []Level         `json:"levels"`
}

// Available reports whether the verdict carries an opinion worth weighting.
func (v Verdict) Available() bool { return v.Confidence > 0 }

// Neutral is the no-opinion verdict returned on insufficient data.
func Neutral(reason string) Verdict {
	return Verdict{Direction: model.Neutral, Reason: reason}
}

// Analyzer computes trend verdicts. It holds only configuration and is safe
// for concurrent use.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer returns an analyzer using cfg with defaults filled in.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg.withDefaults()}
}

// Analyze evaluates s. Series shorter than the slowest moving average yield
// a neutral verdict with zero confidence.
func (a *Analyzer) Analyze(s model.Series) Verdict {
	if s.Len() < a.cfg.slowest() {
		return Neutral("insufficient data")
	}

	v := Verdict{Levels: make([]Level, 0, len(a.cfg.Levels)), ADX: math.NaN()}
	var wsum, ssum float64
	for _, lc := range a.cfg.Levels {
		lv := a.level(s, lc)
		v.Levels = append(v.Levels, lv)
		if lv.Available {
			wsum += lc.Weight
			ssum += lc.Weight * lv.Strength
		}
	}
	if wsum == 0 {
		return Neutral("no level available")
	}
	v.Base = ssum / wsum

	v.Direction, v.Aligned, v.Conflict = predominant(v.Levels)
	v.Alignment = a.cfg.Alignment[min(v.Aligned, 3)]
	switch {
	case v.Aligned == 0:
		v.Direction = model.Neutral
		v.Reason = "timeframes conflict"
	case v.Direction == model.Neutral:
		v.Lateral = true
		v.Reason = "levels lateral"
	}
	v.Confidence = clamp(v.Base+v.Alignment, 0, 100)

	if adx, ok := ta.ADX(s.Highs(), s.Lows(), s.Closes(), a.cfg.ADXPeriod); ok {
		v.ADX = ta.Last(adx)
	}
	if v.Direction.Directional() {
		if ta.Finite(v.ADX) && v.ADX < a.cfg.MinADX {
			v.Direction, v.Lateral, v.Reason = model.Neutral, true, "adx below minimum"
		} else if rangePct(s.Tail(a.cfg.RangeBars)) < a.cfg.MinRangePct {
			v.Direction, v.Lateral, v.Reason = model.Neutral, true, "range too narrow"
		}
	}
	return v
}

// predominant weighs each available level's direction (lateral included) by
// its blend weight. The heaviest direction wins and aligned counts the
// levels behind it; a tie for the lead returns aligned 0. conflict reports
// that bullish and bearish levels coexist.
func predominant(levels []Level) (dir model.Direction, aligned int, conflict bool) {
	const eps = 1e-9
	weight := map[model.Direction]float64{}
	count := map[model.Direction]int{}
	for _, lv := range levels {
		if !lv.Available {
			continue
		}
		weight[lv.Direction] += lv.Weight
		count[lv.Direction]++
	}
	conflict = count[model.Bullish] > 0 && count[model.Bearish] > 0

	dir, best, tie := model.Neutral, -1.0, false
	for _, d := range []model.Direction{model.Bullish, model.Bearish, model.Neutral} {
		if count[d] == 0 {
			continue
		}
		switch w := weight[d]; {
		case w > best+eps:
			dir, best, tie = d, w, false
		case w > best-eps:
			tie = true
		}
	}
	if tie || best < 0 {
		return model.Neutral, 0, conflict
	}
	return dir, count[dir], conflict
}

func (a *Analyzer) level(s model.Series, lc LevelConfig) Level {
	lv := Level{Name: lc.Name, Period: lc.Period, Weight: lc.Weight, Direction: model.Neutral}
	ind, err := indicator.New(a.cfg.MAKind, lc.Period)
	if err != nil {
		return lv
	}
	ma := indicator.Series(ind, s.Candles)
	if len(ma) < 2 {
		return lv
	}
	lv.Available = true
	lv.MA = ma[len(ma)-1]
	price := s.Last().Close

	window := ma[max(0, len(ma)-a.cfg.SlopeBars):]
	if m := mean(window); m > 0 {
		lv.SlopePct = regressionSlope(window) / m * 100
	}
	lv.Angle = math.Atan(lv.SlopePct*a.cfg.AngleScale) * 180 / math.Pi
	switch {
	case lv.Angle > a.cfg.DirectionAngle:
		lv.Direction = model.Bullish
	case lv.Angle < -a.cfg.DirectionAngle:
		lv.Direction = model.Bearish
	}
	lv.AnglePoints = anglePoints(math.Abs(lv.Angle))

	changes := ma[max(0, len(ma)-a.cfg.ConsistencyBars-1):]
	lv.ConsistencyPoints = consistencyPoints(consistency(changes))

	if lv.MA > 0 {
		lv.DistancePoints = distancePoints(math.Abs(price-lv.MA) / lv.MA * 100)
	}

	strength := lv.AnglePoints + lv.ConsistencyPoints + lv.DistancePoints
	if lv.Direction.Directional() && confirms(s.Tail(lc.Period).Candles, lv.Direction, a.cfg.ConfirmPct) {
		lv.Confirmed = true
		strength += a.cfg.ConfirmBonus
	}
	lv.Strength = clamp(strength, 0, 100)
	return lv
}

// anglePoints maps the absolute MA angle in degrees to slope points.
func anglePoints(deg float64) float64 {
	switch {
	case deg >= 60:
		return 40
	case deg >= 45:
		return 35
	case deg >= 25:
		return 25
	case deg >= 20:
		return 22
	case deg >= 15:
		return 20
	case deg >= 10:
		return 10
	case deg >= 5:
		return 7
	}
	return 5
}

func consistencyPoints(ratio float64) float64 {
	switch {
	case ratio >= 0.9:
		return 30
	case ratio >= 0.7:
		return 20
	case ratio >= 0.5:
		return 10
	}
	return 0
}

// distancePoints rewards price hugging the MA; distPct is in percent.
func distancePoints(distPct float64) float64 {
	switch {
	case distPct < 0.1:
		return 30
	case distPct < 0.3:
		return 25
	case distPct < 0.5:
		return 20
	case distPct < 1:
		return 10
	}
	return 5
}

// consistency returns the share of consecutive changes that move in the
// dominant direction. Flat steps count for neither side.
func consistency(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var up, down int
	for i := 1; i < len(vals); i++ {
		switch {
		case vals[i] > vals[i-1]:
			up++
		case vals[i] < vals[i-1]:
			down++
		}
	}
	return float64(max(up, down)) / float64(len(vals)-1)
}

// confirms checks that the second half of the window made higher highs and
// higher lows (bullish) or lower ones (bearish) than the first half.
func confirms(cs []model.Candle, dir model.Direction, pct float64) bool {
	if len(cs) < 4 {
		return false
	}
	half := len(cs) / 2
	h1, l1 := extremes(cs[:half])
	h2, l2 := extremes(cs[half:])
	k := pct / 100
	if dir == model.Bullish {
		return h2 > h1*(1+k) && l2 > l1*(1+k)
	}
	return h2 < h1*(1-k) && l2 < l1*(1-k)
}

func extremes(cs []model.Candle) (hi, lo float64) {
	hi, lo = cs[0].High, cs[0].Low
	for _, c := range cs[1:] {
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
	}
	return hi, lo
}

// rangePct is the high-low span of s relative to its last close, in percent.
func rangePct(s model.Series) float64 {
	if s.Len() == 0 || s.Last().Close <= 0 {
		return 0
	}
	hi, lo := extremes(s.Candles)
	return (hi - lo) / s.Last().Close * 100
}

// regressionSlope is the least-squares slope of vals against their index.
func regressionSlope(vals []float64) float64 {
	n := float64(len(vals))
	if n < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, y := range vals {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
