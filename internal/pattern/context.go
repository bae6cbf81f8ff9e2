package pattern

import (
	"math"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/trend"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/zone"
)

// ContextConfig tunes how detected patterns are re-weighted.
type ContextConfig struct {
	BaseScale     float64 `yaml:"base_scale"` // strength multiplier
	TrendBonus    float64 `yaml:"trend_bonus"`
	TrendPenalty  float64 `yaml:"trend_penalty"`
	ZoneTolerance float64 `yaml:"zone_tolerance"` // relative distance to a zone level
	ZoneBonus     float64 `yaml:"zone_bonus"`
	KeyZoneBonus  float64 `yaml:"key_zone_bonus"`

	MinAggregate float64 `yaml:"min_aggregate"` // patterns at or below are left out of the mean
	MinVote      float64 `yaml:"min_vote"`
	VoteMargin   float64 `yaml:"vote_margin"`
}

// DefaultContextConfig returns the calibrated context weights.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		BaseScale:     60,
		TrendBonus:    20,
		TrendPenalty:  10,
		ZoneTolerance: 0.005,
		ZoneBonus:     10,
		KeyZoneBonus:  15,
		MinAggregate:  50,
		MinVote:       60,
		VoteMargin:    1.2,
	}
}

// Score returns a copy of signals with Effectiveness filled from trend
// agreement and zone proximity. The input slice is not modified.
func Score(signals []Signal, s model.Series, v trend.Verdict, zr zone.Result, cfg ContextConfig) []Signal {
	out := make([]Signal, len(signals))
	for i, sig := range signals {
		eff := sig.Strength * cfg.BaseScale

		if sig.Direction.Directional() && v.Direction.Directional() {
			if sig.Direction == v.Direction {
				eff += cfg.TrendBonus
			} else {
				eff -= cfg.TrendPenalty
			}
		}

		if sig.Index >= 0 && sig.Index < s.Len() {
			eff += zoneBonus(s.Candles[sig.Index].Close, zr, cfg)
		}

		sig.Effectiveness = math.Max(0, math.Min(100, eff))
		out[i] = sig
	}
	return out
}

// zoneBonus checks supports first, then resistances, and returns the bonus
// of the first zone within tolerance.
func zoneBonus(price float64, zr zone.Result, cfg ContextConfig) float64 {
	for _, z := range zr.All() {
		if z.Price <= 0 || math.Abs(price-z.Price)/z.Price > cfg.ZoneTolerance {
			continue
		}
		if z.KeyLevel {
			return cfg.KeyZoneBonus
		}
		return cfg.ZoneBonus
	}
	return 0
}

// Aggregate is the strength-weighted mean effectiveness of the signals
// above floor. ok is false when none qualify.
func Aggregate(signals []Signal, floor float64) (eff float64, ok bool) {
	var wsum, sum float64
	for _, s := range signals {
		if s.Effectiveness <= floor || s.Strength <= 0 {
			continue
		}
		wsum += s.Strength
		sum += s.Strength * s.Effectiveness
	}
	if wsum == 0 {
		return 0, false
	}
	return sum / wsum, true
}

// Vote sums the effectiveness of directional signals above floor per side.
// The leader needs margin times the other side, otherwise the result is
// indefinite. No qualifying signal gives neutral.
func Vote(signals []Signal, floor, margin float64) model.Direction {
	var bulls, bears float64
	for _, s := range signals {
		if s.Effectiveness <= floor {
			continue
		}
		switch s.Direction {
		case model.Bullish:
			bulls += s.Effectiveness
		case model.Bearish:
			bears += s.Effectiveness
		}
	}
	return Lead(bulls, bears, margin)
}

// Lead resolves two opposing weights with a relative margin.
func Lead(bulls, bears, margin float64) model.Direction {
	switch {
	case bulls == 0 && bears == 0:
		return model.Neutral
	case bulls > bears*margin:
		return model.Bullish
	case bears > bulls*margin:
		return model.Bearish
	}
	return model.Indefinite
}
