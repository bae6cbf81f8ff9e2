// Package volume confirms direction with on-balance volume.
package volume

import (
	"math"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/ta"
)

// Config tunes the OBV analysis.
type Config struct {
	MAPeriod       int     `yaml:"ma_period"`      // OBV moving average
	Lookback       int     `yaml:"lookback"`       // bars compared for price/OBV agreement
	Base           float64 `yaml:"base"`           // effectiveness when OBV leaves its average
	Flat           float64 `yaml:"flat"`           // effectiveness when OBV sits on its average
	AgreeBonus     float64 `yaml:"agree_bonus"`
	DivergePenalty float64 `yaml:"diverge_penalty"`
}

// DefaultConfig returns the calibrated settings.
func DefaultConfig() Config {
	return Config{MAPeriod: 10, Lookback: 10, Base: 60, Flat: 50, AgreeBonus: 15, DivergePenalty: 10}
}

// Result is the volume opinion. When Available is false the caller must
// give it zero weight.
type Result struct {
	Available     bool            `json:"available"`
	Effectiveness float64         `json:"effectiveness"`
	Direction     model.Direction `json:"direction"`
	OBV           float64         `json:"obv"`
	OBVMA         float64         `json:"obv_ma"`
	Trend         model.Direction `json:"obv_trend"`
	Divergence    bool            `json:"divergence"`
	Reason        string          `json:"reason,omitempty"`
}

func unavailable(reason string) Result {
	return Result{Effectiveness: 50, Direction: model.Neutral, Trend: model.Neutral, Reason: reason}
}

// Analyzer computes volume results.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer returns an analyzer with defaults filled in.
func NewAnalyzer(cfg Config) *Analyzer {
	d := DefaultConfig()
	if cfg.MAPeriod < 2 {
		cfg.MAPeriod = d.MAPeriod
	}
	if cfg.Lookback < 1 {
		cfg.Lookback = d.Lookback
	}
	if cfg.Base == 0 && cfg.Flat == 0 {
		cfg.Base, cfg.Flat = d.Base, d.Flat
	}
	if cfg.AgreeBonus == 0 && cfg.DivergePenalty == 0 {
		cfg.AgreeBonus, cfg.DivergePenalty = d.AgreeBonus, d.DivergePenalty
	}
	return &Analyzer{cfg: cfg}
}

// Analyze computes OBV over s. Series without volume on every bar, or
// shorter than the moving average plus lookback, are unavailable.
func (a *Analyzer) Analyze(s model.Series) Result {
	if !s.HasVolume() {
		return unavailable("no volume")
	}
	need := max(a.cfg.MAPeriod, a.cfg.Lookback+1)
	if s.Len() < need {
		return unavailable("insufficient data")
	}
	closes := s.Closes()
	obv, ok := ta.OBV(closes, s.Volumes())
	if !ok {
		return unavailable("obv failed")
	}
	ma, ok := ta.SMA(obv, a.cfg.MAPeriod)
	if !ok {
		return unavailable("insufficient data")
	}

	r := Result{Available: true, OBV: ta.Last(obv), OBVMA: ta.Last(ma)}
	if !ta.Finite(r.OBV) || !ta.Finite(r.OBVMA) {
		return unavailable("obv not finite")
	}
	switch {
	case r.OBV > r.OBVMA:
		r.Direction, r.Effectiveness = model.Bullish, a.cfg.Base
	case r.OBV < r.OBVMA:
		r.Direction, r.Effectiveness = model.Bearish, a.cfg.Base
	default:
		r.Direction, r.Effectiveness = model.Neutral, a.cfg.Flat
	}

	priceMove := ta.Last(closes) - ta.Back(closes, a.cfg.Lookback)
	obvMove := r.OBV - ta.Back(obv, a.cfg.Lookback)
	r.Trend = sign(obvMove)
	if sign(priceMove) == r.Trend && r.Trend != model.Neutral {
		r.Effectiveness += a.cfg.AgreeBonus
	} else {
		r.Divergence = true
		r.Effectiveness -= a.cfg.DivergePenalty
	}
	r.Effectiveness = math.Max(0, math.Min(100, r.Effectiveness))
	return r
}

func sign(v float64) model.Direction {
	switch {
	case v > 0:
		return model.Bullish
	case v < 0:
		return model.Bearish
	}
	return model.Neutral
}
