// Package volatility grades how tradable the recent candles are and looks
// for pullbacks inside an established trend.
package volatility

import (
	"math"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/ta"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/trend"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/zone"
)

// Class is the candle-body volatility classification.
type Class string

const (
	Unknown Class = "unknown"
	Weak    Class = "weak"    // small bodies, many dojis
	Noisy   Class = "noisy"   // erratic ranges or wick-heavy candles
	Healthy Class = "healthy" // average bodies, few wicks
)

// Health is the price-action state of the last few candles.
type Health string

const (
	HealthUnknown     Health = "unknown"
	HealthVeryHealthy Health = "very_healthy"
	HealthHealthy     Health = "healthy"
	HealthNormal      Health = "normal"
	HealthWeak        Health = "weak"
)

// Config tunes the volatility analysis.
type Config struct {
	ClassBars     int     `yaml:"class_bars"`
	DojiRatio     float64 `yaml:"doji_ratio"` // body/range below this counts as bodiless
	WeakRatio     float64 `yaml:"weak_ratio"` // mean body/range below this is weak
	WeakDojiShare float64 `yaml:"weak_doji_share"`
	NoisySpread   float64 `yaml:"noisy_spread"` // stddev/mean of ranges
	NoisyWick     float64 `yaml:"noisy_wick"`   // mean wick over mean body
	WeakScore     float64 `yaml:"weak_score"`
	NoisyScore    float64 `yaml:"noisy_score"`
	HealthyScore  float64 `yaml:"healthy_score"`

	ActionBars  int     `yaml:"action_bars"`
	RangeBars   int     `yaml:"range_bars"`
	LargeFactor float64 `yaml:"large_factor"`
	SmallFactor float64 `yaml:"small_factor"`

	ATRPeriod int     `yaml:"atr_period"`
	ATRBars   int     `yaml:"atr_bars"`
	BandDev   float64 `yaml:"band_dev"`

	MinTrend      float64 `yaml:"min_trend"`     // trend confidence needed to look for a pullback
	SolidTrend    float64 `yaml:"solid_trend"`   // below this a pullback may be a reversal
	TrendMove     float64 `yaml:"trend_move"`    // relative move over 10 bars
	Retrace       float64 `yaml:"retrace"`       // relative move against it over 5 bars
	ReversalMove  float64 `yaml:"reversal_move"` // retrace beyond this looks like a reversal
	PullbackBase  float64 `yaml:"pullback_base"`
	PullbackCap   float64 `yaml:"pullback_cap"` // score cap with fewer than two confirmations
	ZoneTolerance float64 `yaml:"zone_tolerance"`

	VolatilityWeight float64 `yaml:"volatility_weight"`
	ActionWeight     float64 `yaml:"action_weight"`
	PullbackWeight   float64 `yaml:"pullback_weight"`
}

// DefaultConfig returns the calibrated settings.
func DefaultConfig() Config {
	return Config{
		ClassBars:     10,
		DojiRatio:     0.1,
		WeakRatio:     0.3,
		WeakDojiShare: 0.4,
		NoisySpread:   0.5,
		NoisyWick:     1.5,
		WeakScore:     35,
		NoisyScore:    45,
		HealthyScore:  85,

		ActionBars:  5,
		RangeBars:   20,
		LargeFactor: 1.5,
		SmallFactor: 0.5,

		ATRPeriod: 20,
		ATRBars:   10,
		BandDev:   2,

		MinTrend:      60,
		SolidTrend:    65,
		TrendMove:     0.01,
		Retrace:       0.003,
		ReversalMove:  0.03,
		PullbackBase:  40,
		PullbackCap:   60,
		ZoneTolerance: 0.005,

		VolatilityWeight: 0.4,
		ActionWeight:     0.4,
		PullbackWeight:   0.2,
	}
}

// Pullback describes a retrace against the prevailing trend.
type Pullback struct {
	Detected         bool            `json:"detected"`
	Direction        model.Direction `json:"direction,omitempty"` // trend the pullback belongs to
	Strength         float64         `json:"strength"`            // retrace in percent
	Confirmations    []string        `json:"confirmations,omitempty"`
	PossibleReversal bool            `json:"possible_reversal"`
	Score            float64         `json:"score"`
}

// Confirmed reports whether the pullback has at least two confirmations.
func (p Pullback) Confirmed() bool { return p.Detected && len(p.Confirmations) >= 2 }

// Result is the volatility opinion.
type Result struct {
	Available     bool            `json:"available"`
	Effectiveness float64         `json:"effectiveness"`
	Direction     model.Direction `json:"direction"`

	Class       Class   `json:"class"`
	ClassScore  float64 `json:"class_score"`
	Health      Health  `json:"health"`
	HealthScore float64 `json:"health_score"`

	ATR      float64 `json:"atr"`
	ATRMean  float64 `json:"atr_mean"`
	ATRState string  `json:"atr_state"`
	Band     string  `json:"band"`

	Pullback Pullback `json:"pullback"`
	Reason   string   `json:"reason,omitempty"`
}

// Weak reports whether the market is too quiet to trade.
func (r Result) Weak() bool { return r.Class == Weak }

// Analyzer computes volatility results.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer returns an analyzer; a zero Config means DefaultConfig.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Analyzer{cfg: cfg}
}

// Analyze grades s. The trend verdict and zones are used only for pullback
// detection and may be zero values.
func (a *Analyzer) Analyze(s model.Series, v trend.Verdict, zr zone.Result) Result {
	r := Result{
		Direction: model.Neutral,
		Class:     Unknown,
		Health:    HealthUnknown,
		ATRState:  "unknown",
		Band:      "unknown",
	}
	if s.Len() < a.cfg.ClassBars {
		r.Reason = "insufficient data"
		return r
	}
	r.Available = true
	r.Class, r.ClassScore = a.classify(s.Tail(a.cfg.ClassBars).Candles)
	r.Health, r.HealthScore = a.health(s)
	a.bands(s, &r)
	r.Pullback = a.pullback(s, v, zr)

	r.Effectiveness = math.Min(100,
		r.ClassScore*a.cfg.VolatilityWeight+
			r.HealthScore*a.cfg.ActionWeight+
			r.Pullback.Score*a.cfg.PullbackWeight)

	switch {
	case r.Pullback.Confirmed():
		r.Direction = r.Pullback.Direction
	case r.Class == Healthy && (r.Health == HealthHealthy || r.Health == HealthVeryHealthy) && v.Direction.Directional():
		r.Direction = v.Direction
	}
	return r
}

func (a *Analyzer) classify(cs []model.Candle) (Class, float64) {
	n := float64(len(cs))
	var bodies, ranges, wicks, ratios float64
	var dojis int
	rs := make([]float64, len(cs))
	for i, c := range cs {
		b, rg := body(c), c.High-c.Low
		rs[i] = rg
		bodies += b
		ranges += rg
		wicks += upper(c) + lower(c)
		if rg > 0 {
			ratios += b / rg
			if b/rg < a.cfg.DojiRatio {
				dojis++
			}
		}
	}
	meanBody, meanRange := bodies/n, ranges/n
	meanWick := wicks / (2 * n)
	spread := 0.0
	if meanRange > 0 {
		spread = stddev(rs, meanRange) / meanRange
	}

	switch {
	case ratios/n < a.cfg.WeakRatio || float64(dojis) >= n*a.cfg.WeakDojiShare:
		return Weak, a.cfg.WeakScore
	case spread > a.cfg.NoisySpread || meanWick > meanBody*a.cfg.NoisyWick:
		return Noisy, a.cfg.NoisyScore
	}
	return Healthy, a.cfg.HealthyScore
}

// health sizes each of the last candles against the mean range.
func (a *Analyzer) health(s model.Series) (Health, float64) {
	if s.Len() < a.cfg.ActionBars {
		return HealthUnknown, 0
	}
	ref := 0.0
	for _, c := range s.Tail(a.cfg.RangeBars).Candles {
		ref += c.High - c.Low
	}
	ref /= float64(min(s.Len(), a.cfg.RangeBars))

	var force, sized, strong, weak int
	for _, c := range s.Tail(a.cfg.ActionBars).Candles {
		rg := c.High - c.Low
		if rg == 0 {
			continue
		}
		f := 2
		switch {
		case rg > ref*a.cfg.LargeFactor:
			f = 3
		case rg < ref*a.cfg.SmallFactor:
			f = 1
		}
		force += f
		sized++
		if f >= 2 {
			strong++
		} else {
			weak++
		}
	}
	if sized == 0 {
		return HealthWeak, 0
	}
	mean := float64(force) / float64(sized)
	switch {
	case mean >= 2.5 && strong >= 3:
		return HealthVeryHealthy, 90
	case mean >= 2 && strong >= 2:
		return HealthHealthy, 75
	case weak >= 3:
		return HealthWeak, 30
	}
	return HealthNormal, 60
}

// bands fills the ATR state and the Bollinger position.
func (a *Analyzer) bands(s model.Series, r *Result) {
	closes := s.Closes()
	if atr, ok := ta.ATR(s.Highs(), s.Lows(), closes, a.cfg.ATRPeriod); ok && len(atr)-a.cfg.ATRPeriod >= a.cfg.ATRBars {
		r.ATR = ta.Last(atr)
		tail := atr[len(atr)-a.cfg.ATRBars:]
		for _, x := range tail {
			r.ATRMean += x
		}
		r.ATRMean /= float64(len(tail))
		switch {
		case r.ATR > r.ATRMean*1.5:
			r.ATRState = "very_high"
		case r.ATR > r.ATRMean*1.2:
			r.ATRState = "high"
		case r.ATR < r.ATRMean*0.8:
			r.ATRState = "low"
		default:
			r.ATRState = "normal"
		}
	}
	if up, mid, lo, ok := ta.BBands(closes, a.cfg.ATRPeriod, a.cfg.BandDev); ok {
		price := ta.Last(closes)
		switch {
		case price > ta.Last(up):
			r.Band = "above_upper"
		case price < ta.Last(lo):
			r.Band = "below_lower"
		case price > ta.Last(mid):
			r.Band = "upper_half"
		default:
			r.Band = "lower_half"
		}
	}
}

func body(c model.Candle) float64  { return math.Abs(c.Close - c.Open) }
func upper(c model.Candle) float64 { return c.High - math.Max(c.Open, c.Close) }
func lower(c model.Candle) float64 { return math.Min(c.Open, c.Close) - c.Low }

func stddev(vals []float64, mean float64) float64 {
	var ss float64
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(vals)))
}
