// Package momentum measures trend strength and looks for signs that the
// move is running out: oscillator divergences, exhaustion candles and
// geometric chart patterns.
package momentum

import (
	"math"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/ta"
)

// Config tunes the momentum analysis.
type Config struct {
	MACDFast    int     `yaml:"macd_fast"`
	MACDSlow    int     `yaml:"macd_slow"`
	MACDSignal  int     `yaml:"macd_signal"`
	HistEpsilon float64 `yaml:"hist_epsilon"` // histogram within this fraction of price is flat
	ADXPeriod   int     `yaml:"adx_period"`
	StrongADX   float64 `yaml:"strong_adx"`
	RSIPeriod   int     `yaml:"rsi_period"`

	Order          int     `yaml:"order"`     // bars on each side of a local extreme
	Proximity      int     `yaml:"proximity"` // max index gap between price and oscillator extremes
	DivergenceBars int     `yaml:"divergence_bars"`
	VolumeBars     int     `yaml:"volume_bars"`
	VolumeFactor   float64 `yaml:"volume_factor"`
	DojiRatio      float64 `yaml:"doji_ratio"`
	WickFactor     float64 `yaml:"wick_factor"`
	DojiStrength   float64 `yaml:"doji_strength"`
	WickStrength   float64 `yaml:"wick_strength"`
	VolumeStrength float64 `yaml:"volume_strength"`

	Charts ChartConfig `yaml:"charts"`
}

// DefaultConfig returns the calibrated settings.
func DefaultConfig() Config {
	return Config{
		MACDFast:    12,
		MACDSlow:    26,
		MACDSignal:  9,
		HistEpsilon: 1e-7,
		ADXPeriod:   14,
		StrongADX:   25,
		RSIPeriod:   14,

		Order:          5,
		Proximity:      3,
		DivergenceBars: 30,
		VolumeBars:     10,
		VolumeFactor:   0.7,
		DojiRatio:      0.1,
		WickFactor:     2,
		DojiStrength:   65,
		WickStrength:   70,
		VolumeStrength: 70,

		Charts: DefaultChartConfig(),
	}
}

// Divergence is a disagreement between price extremes and an oscillator.
type Divergence struct {
	Detected  bool            `json:"detected"`
	Direction model.Direction `json:"direction,omitempty"` // the reversal it warns of
	Indicator string          `json:"indicator,omitempty"`
	Strength  float64         `json:"strength"`
}

// ExhaustionSignal is one sign that the current move is tiring.
type ExhaustionSignal struct {
	Kind     string  `json:"kind"`
	Strength float64 `json:"strength"`
}

// Exhaustion collects the exhaustion signals; Strength is their mean.
type Exhaustion struct {
	Detected bool               `json:"detected"`
	Signals  []ExhaustionSignal `json:"signals,omitempty"`
	Strength float64            `json:"strength"`
}

// Result is the momentum opinion.
type Result struct {
	Available  bool            `json:"available"`
	Reason     string          `json:"reason,omitempty"`
	ADX        float64         `json:"adx"`
	Strong     bool            `json:"strong"`
	MACD       float64         `json:"macd"`
	MACDSignal float64         `json:"macd_signal"`
	MACDHist   float64         `json:"macd_hist"`
	Cross      model.Direction `json:"macd_cross"`
	RSI        float64         `json:"rsi"`
	Divergence Divergence      `json:"divergence"`
	Exhaustion Exhaustion      `json:"exhaustion"`
	Charts     []ChartPattern  `json:"charts,omitempty"`
}

// Analyzer computes momentum results.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer returns an analyzer; a zero Config means DefaultConfig.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if cfg.Charts == (ChartConfig{}) {
		cfg.Charts = DefaultChartConfig()
	}
	return &Analyzer{cfg: cfg}
}

// MinBars is the shortest series Analyze will accept.
func (a *Analyzer) MinBars() int {
	return max(a.cfg.ADXPeriod, a.cfg.MACDSlow) + 10
}

// Analyze evaluates s. Short series come back unavailable with a neutral
// cross and no signals.
func (a *Analyzer) Analyze(s model.Series) Result {
	r := Result{Cross: model.Neutral}
	if s.Len() < a.MinBars() {
		r.Reason = "insufficient data"
		return r
	}
	highs, lows, closes := s.Highs(), s.Lows(), s.Closes()

	adx, ok := ta.ADX(highs, lows, closes, a.cfg.ADXPeriod)
	if !ok {
		r.Reason = "adx failed"
		return r
	}
	macd, sig, hist, ok := ta.MACD(closes, a.cfg.MACDFast, a.cfg.MACDSlow, a.cfg.MACDSignal)
	if !ok {
		r.Reason = "macd failed"
		return r
	}
	r.Available = true
	r.ADX = finite(ta.Last(adx))
	r.Strong = r.ADX > a.cfg.StrongADX
	r.MACD, r.MACDSignal, r.MACDHist = finite(ta.Last(macd)), finite(ta.Last(sig)), finite(ta.Last(hist))
	r.Cross = a.cross(r, ta.Last(closes))

	var rsi []float64
	if rsi, ok = ta.RSI(closes, a.cfg.RSIPeriod); ok {
		r.RSI = finite(ta.Last(rsi))
	}

	if s.Len() >= a.cfg.DivergenceBars {
		var found []Divergence
		if rsi != nil {
			found = append(found, a.divergence(highs, lows, rsi, a.cfg.RSIPeriod, "rsi"))
		}
		found = append(found, a.divergence(highs, lows, macd, a.cfg.MACDSlow+a.cfg.MACDSignal-2, "macd"))
		for _, d := range found {
			if d.Detected && d.Strength > r.Divergence.Strength {
				r.Divergence = d
			}
		}
	}
	r.Exhaustion = a.exhaustion(s, r.Divergence)
	r.Charts = a.charts(s)
	return r
}

// cross reads the MACD state: line above signal with a positive histogram
// is bullish, the mirror is bearish, anything within HistEpsilon is flat.
func (a *Analyzer) cross(r Result, price float64) model.Direction {
	if math.Abs(r.MACDHist) <= a.cfg.HistEpsilon*math.Abs(price) {
		return model.Neutral
	}
	switch {
	case r.MACD > r.MACDSignal && r.MACDHist > 0:
		return model.Bullish
	case r.MACD < r.MACDSignal && r.MACDHist < 0:
		return model.Bearish
	}
	return model.Neutral
}

// divergence compares the last two price extremes with the last two
// oscillator extremes. Indicator values before from are warm-up and ignored.
func (a *Analyzer) divergence(highs, lows, ind []float64, from int, name string) Divergence {
	k, gap := a.cfg.Order, a.cfg.Proximity

	pl, il := extrema(lows, k, 0, less), extrema(ind, k, from, less)
	if len(pl) >= 2 && len(il) >= 2 {
		p1, p2 := pl[len(pl)-2], pl[len(pl)-1]
		i1, i2 := il[len(il)-2], il[len(il)-1]
		if abs(p1-i1) <= gap && abs(p2-i2) <= gap && lows[p2] < lows[p1] && ind[i2] > ind[i1] {
			return Divergence{Detected: true, Direction: model.Bullish, Indicator: name,
				Strength: divergenceStrength(lows[p1], lows[p2], ind[i1], ind[i2])}
		}
	}

	ph, ih := extrema(highs, k, 0, greater), extrema(ind, k, from, greater)
	if len(ph) >= 2 && len(ih) >= 2 {
		p1, p2 := ph[len(ph)-2], ph[len(ph)-1]
		i1, i2 := ih[len(ih)-2], ih[len(ih)-1]
		if abs(p1-i1) <= gap && abs(p2-i2) <= gap && highs[p2] > highs[p1] && ind[i2] < ind[i1] {
			return Divergence{Detected: true, Direction: model.Bearish, Indicator: name,
				Strength: divergenceStrength(highs[p1], highs[p2], ind[i1], ind[i2])}
		}
	}
	return Divergence{}
}

// divergenceStrength averages the percent change of price and indicator,
// with a bonus when both moved more than 5%.
func divergenceStrength(p1, p2, i1, i2 float64) float64 {
	if p1 == 0 {
		return 50
	}
	dp := math.Abs((p2-p1)/p1) * 100
	di := 0.0
	if i1 != 0 {
		di = math.Abs((i2-i1)/math.Abs(i1)) * 100
	}
	s := math.Min((dp+di)/2, 100)
	if dp > 5 && di > 5 {
		s = math.Min(s+20, 100)
	}
	return s
}

// exhaustion gathers divergence, fading volume at the recent high and
// indecisive or rejected last candles.
func (a *Analyzer) exhaustion(s model.Series, d Divergence) Exhaustion {
	var e Exhaustion
	if d.Detected {
		e.Signals = append(e.Signals, ExhaustionSignal{Kind: d.Indicator + "_divergence", Strength: d.Strength})
	}
	if s.HasVolume() && s.Len() >= a.cfg.VolumeBars {
		tail := s.Tail(a.cfg.VolumeBars).Candles
		top, vol := 0, 0.0
		for i, c := range tail {
			vol += c.Volume
			if c.High > tail[top].High {
				top = i
			}
		}
		if tail[top].Volume < vol/float64(len(tail))*a.cfg.VolumeFactor {
			e.Signals = append(e.Signals, ExhaustionSignal{Kind: "fading_volume", Strength: a.cfg.VolumeStrength})
		}
	}
	c := s.Last()
	b, rg := math.Abs(c.Close-c.Open), c.High-c.Low
	hiWick := c.High - math.Max(c.Open, c.Close)
	loWick := math.Min(c.Open, c.Close) - c.Low
	switch {
	case rg > 0 && b/rg < a.cfg.DojiRatio:
		e.Signals = append(e.Signals, ExhaustionSignal{Kind: "doji", Strength: a.cfg.DojiStrength})
	case hiWick > b*a.cfg.WickFactor || loWick > b*a.cfg.WickFactor:
		e.Signals = append(e.Signals, ExhaustionSignal{Kind: "wick_rejection", Strength: a.cfg.WickStrength})
	}

	if len(e.Signals) == 0 {
		return e
	}
	e.Detected = true
	for _, sg := range e.Signals {
		e.Strength += sg.Strength
	}
	e.Strength /= float64(len(e.Signals))
	return e
}

func less(a, b float64) bool    { return a < b }
func greater(a, b float64) bool { return a > b }

// extrema returns the indices i >= from whose value beats every value up to
// k bars on either side. The first and last k bars are never extremes.
func extrema(vals []float64, k, from int, beats func(a, b float64) bool) []int {
	var out []int
	for i := max(k, from+k); i < len(vals)-k; i++ {
		ok := true
		for j := i - k; j <= i+k && ok; j++ {
			if j != i && !beats(vals[i], vals[j]) {
				ok = false
			}
		}
		if ok {
			out = append(out, i)
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func finite(v float64) float64 {
	if ta.Finite(v) {
		return v
	}
	return 0
}
