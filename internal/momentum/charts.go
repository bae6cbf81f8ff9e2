package momentum

import (
	"math"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// ChartConfig tunes the geometric chart pattern search.
type ChartConfig struct {
	DoubleTolerance   float64 `yaml:"double_tolerance"`   // relative gap between the two tops or bottoms
	HeadMargin        float64 `yaml:"head_margin"`        // head beyond both shoulders by this fraction
	ShoulderTolerance float64 `yaml:"shoulder_tolerance"` // relative gap between shoulders
	TriangleBars      int     `yaml:"triangle_bars"`
	TriangleOrder     int     `yaml:"triangle_order"`
	FlatSlope         float64 `yaml:"flat_slope"` // per-bar slope over price below which a side is flat
	FlagBars          int     `yaml:"flag_bars"`
	PoleBars          int     `yaml:"pole_bars"`
	PoleMove          float64 `yaml:"pole_move"`
	FlagRange         float64 `yaml:"flag_range"`

	DoubleConfidence   float64 `yaml:"double_confidence"`
	HeadConfidence     float64 `yaml:"head_confidence"`
	TriangleConfidence float64 `yaml:"triangle_confidence"`
	FlagConfidence     float64 `yaml:"flag_confidence"`
}

// DefaultChartConfig returns the calibrated chart settings.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		DoubleTolerance:   0.02,
		HeadMargin:        0.02,
		ShoulderTolerance: 0.03,
		TriangleBars:      20,
		TriangleOrder:     2,
		FlatSlope:         0.0001,
		FlagBars:          15,
		PoleBars:          5,
		PoleMove:          0.02,
		FlagRange:         0.015,

		DoubleConfidence:   75,
		HeadConfidence:     70,
		TriangleConfidence: 60,
		FlagConfidence:     65,
	}
}

// ChartPattern is a multi-bar geometric formation.
type ChartPattern struct {
	Name       string          `json:"name"`
	Direction  model.Direction `json:"direction"`
	Confidence float64         `json:"confidence"`
	Support    float64         `json:"support,omitempty"`
	Resistance float64         `json:"resistance,omitempty"`
	Bars       int             `json:"bars,omitempty"`
}

// charts runs every chart detector; each contributes at most one pattern.
func (a *Analyzer) charts(s model.Series) []ChartPattern {
	var out []ChartPattern
	for _, detect := range []func(model.Series) (ChartPattern, bool){
		a.headAndShoulders,
		a.double,
		a.triangle,
		a.flag,
	} {
		if p, ok := detect(s); ok {
			out = append(out, p)
		}
	}
	return out
}

// headAndShoulders checks the last three swing highs, then the last three
// swing lows for the inverse formation.
func (a *Analyzer) headAndShoulders(s model.Series) (ChartPattern, bool) {
	c := a.cfg.Charts
	highs, lows := s.Highs(), s.Lows()

	if mx := extrema(highs, a.cfg.Order, 0, greater); len(mx) >= 3 {
		l, h, r := mx[len(mx)-3], mx[len(mx)-2], mx[len(mx)-1]
		if highs[h] > highs[l]*(1+c.HeadMargin) && highs[h] > highs[r]*(1+c.HeadMargin) &&
			math.Abs(highs[l]-highs[r])/highs[l] < c.ShoulderTolerance {
			return ChartPattern{
				Name:       "head_and_shoulders",
				Direction:  model.Bearish,
				Confidence: c.HeadConfidence,
				Resistance: highs[h],
				Support:    minOf(lows[l : r+1]),
				Bars:       r - l + 1,
			}, true
		}
	}
	if mn := extrema(lows, a.cfg.Order, 0, less); len(mn) >= 3 {
		l, h, r := mn[len(mn)-3], mn[len(mn)-2], mn[len(mn)-1]
		if lows[h] < lows[l]*(1-c.HeadMargin) && lows[h] < lows[r]*(1-c.HeadMargin) &&
			math.Abs(lows[l]-lows[r])/lows[l] < c.ShoulderTolerance {
			return ChartPattern{
				Name:       "inverse_head_and_shoulders",
				Direction:  model.Bullish,
				Confidence: c.HeadConfidence,
				Support:    lows[h],
				Resistance: maxOf(highs[l : r+1]),
				Bars:       r - l + 1,
			}, true
		}
	}
	return ChartPattern{}, false
}

// double looks for two matching swing highs, then two matching swing lows.
// Confidence drops 5 points per percent of mismatch.
func (a *Analyzer) double(s model.Series) (ChartPattern, bool) {
	c := a.cfg.Charts
	highs, lows := s.Highs(), s.Lows()

	if mx := extrema(highs, a.cfg.Order, 0, greater); len(mx) >= 2 {
		i, j := mx[len(mx)-2], mx[len(mx)-1]
		if diff := math.Abs(highs[i]-highs[j]) / highs[i]; diff < c.DoubleTolerance {
			return ChartPattern{
				Name:       "double_top",
				Direction:  model.Bearish,
				Confidence: c.DoubleConfidence - diff*100*5,
				Resistance: math.Max(highs[i], highs[j]),
				Support:    minOf(lows[i : j+1]),
				Bars:       j - i + 1,
			}, true
		}
	}
	if mn := extrema(lows, a.cfg.Order, 0, less); len(mn) >= 2 {
		i, j := mn[len(mn)-2], mn[len(mn)-1]
		if diff := math.Abs(lows[i]-lows[j]) / lows[i]; diff < c.DoubleTolerance {
			return ChartPattern{
				Name:       "double_bottom",
				Direction:  model.Bullish,
				Confidence: c.DoubleConfidence - diff*100*5,
				Support:    math.Min(lows[i], lows[j]),
				Resistance: maxOf(highs[i : j+1]),
				Bars:       j - i + 1,
			}, true
		}
	}
	return ChartPattern{}, false
}

// triangle fits a line through the recent swing highs and another through
// the swing lows. A flat top over rising lows is ascending, a flat bottom
// under falling highs is descending, converging sides are symmetrical.
func (a *Analyzer) triangle(s model.Series) (ChartPattern, bool) {
	c := a.cfg.Charts
	if s.Len() < c.TriangleBars {
		return ChartPattern{}, false
	}
	w := s.Tail(c.TriangleBars)
	highs, lows := w.Highs(), w.Lows()
	mx := extrema(highs, c.TriangleOrder, 0, greater)
	mn := extrema(lows, c.TriangleOrder, 0, less)
	if len(mx) < 2 || len(mn) < 2 {
		return ChartPattern{}, false
	}
	ref := mean(w.Closes())
	if ref <= 0 {
		return ChartPattern{}, false
	}
	top := fit(mx, highs) / ref
	bot := fit(mn, lows) / ref

	p := ChartPattern{
		Name:       "symmetrical_triangle",
		Direction:  model.Neutral,
		Confidence: c.TriangleConfidence,
		Resistance: highs[mx[len(mx)-1]],
		Support:    lows[mn[len(mn)-1]],
		Bars:       c.TriangleBars,
	}
	switch {
	case math.Abs(top) < c.FlatSlope && bot > c.FlatSlope:
		p.Name, p.Direction = "ascending_triangle", model.Bullish
	case math.Abs(bot) < c.FlatSlope && top < -c.FlatSlope:
		p.Name, p.Direction = "descending_triangle", model.Bearish
	case top < 0 && bot > 0:
		// converging
	default:
		return ChartPattern{}, false
	}
	return p, true
}

// flag is a strong pole followed by a tight consolidation.
func (a *Analyzer) flag(s model.Series) (ChartPattern, bool) {
	c := a.cfg.Charts
	if s.Len() < c.FlagBars || c.PoleBars >= c.FlagBars {
		return ChartPattern{}, false
	}
	w := s.Tail(c.FlagBars).Candles
	pole := w[:c.PoleBars]
	start := pole[0].Close
	if start <= 0 {
		return ChartPattern{}, false
	}
	move := (pole[len(pole)-1].Close - start) / start
	if math.Abs(move) < c.PoleMove {
		return ChartPattern{}, false
	}
	body := model.NewSeries(s.Instrument, s.Timeframe, w[c.PoleBars:])
	hi, lo := maxOf(body.Highs()), minOf(body.Lows())
	if m := mean(body.Closes()); m <= 0 || (hi-lo)/m >= c.FlagRange {
		return ChartPattern{}, false
	}
	p := ChartPattern{Name: "bull_flag", Direction: model.Bullish, Confidence: c.FlagConfidence,
		Support: lo, Resistance: hi, Bars: c.FlagBars}
	if move < 0 {
		p.Name, p.Direction = "bear_flag", model.Bearish
	}
	return p, true
}

// fit is the least-squares slope of ys sampled at xs.
func fit(xs []int, ys []float64) float64 {
	n := float64(len(xs))
	var sx, sy, sxx, sxy float64
	for _, i := range xs {
		x, y := float64(i), ys[i]
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
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
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func minOf(vals []float64) float64 {
	m := math.Inf(1)
	for _, v := range vals {
		m = math.Min(m, v)
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := math.Inf(-1)
	for _, v := range vals {
		m = math.Max(m, v)
	}
	return m
}
