package trend

import "github.com/Ijroy10/cubaYDsignal-sub001/internal/indicator"

// LevelConfig describes one moving-average timeframe of the trend blend.
type LevelConfig struct {
	Name   string  `yaml:"name"`
	Period int     `yaml:"period"`
	Weight float64 `yaml:"weight"`
}

// Config holds the trend analyzer tunables. Zero values are replaced by
// DefaultConfig values in NewAnalyzer.
type Config struct {
	Levels []LevelConfig   `yaml:"levels"`
	MAKind indicator.Kind `yaml:"ma_kind"`

	SlopeBars       int     `yaml:"slope_bars"`       // MA values used for the regression slope
	AngleScale      float64 `yaml:"angle_scale"`      // multiplies percent-per-bar before atan
	DirectionAngle  float64 `yaml:"direction_angle"`  // degrees beyond which a level is directional
	ConsistencyBars int     `yaml:"consistency_bars"` // MA changes inspected for consistency
	ConfirmBonus    float64 `yaml:"confirm_bonus"`    // highs/lows agreement bonus
	ConfirmPct      float64 `yaml:"confirm_pct"`      // minimum half-over-half move (percent)

	// Alignment adjustments by number of levels behind the predominant
	// direction (0..3); index 0 is a tie between directions.
	Alignment [4]float64 `yaml:"alignment"`

	ADXPeriod   int     `yaml:"adx_period"`
	MinADX      float64 `yaml:"min_adx"`
	RangeBars   int     `yaml:"range_bars"`
	MinRangePct float64 `yaml:"min_range_pct"`
}

// DefaultConfig returns the secondary/tertiary/immediate setup (MA 50/20/9,
// weights 0.5/0.3/0.2) with the calibrated point tables.
func DefaultConfig() Config {
	return Config{
		Levels: []LevelConfig{
			{Name: "secondary", Period: 50, Weight: 0.50},
			{Name: "tertiary", Period: 20, Weight: 0.30},
			{Name: "immediate", Period: 9, Weight: 0.20},
		},
		MAKind:          indicator.KindSMA,
		SlopeBars:       5,
		AngleScale:      20,
		DirectionAngle:  15,
		ConsistencyBars: 5,
		ConfirmBonus:    10,
		ConfirmPct:      0.1,
		Alignment:       [4]float64{-15, -10, 10, 20},
		ADXPeriod:       14,
		MinADX:          20,
		RangeBars:       20,
		MinRangePct:     0.2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	// A config without levels is treated as unset.
	if len(c.Levels) == 0 {
		return d
	}
	if c.MAKind == "" {
		c.MAKind = d.MAKind
	}
	if c.SlopeBars < 2 {
		c.SlopeBars = d.SlopeBars
	}
	if c.AngleScale <= 0 {
		c.AngleScale = d.AngleScale
	}
	if c.DirectionAngle <= 0 {
		c.DirectionAngle = d.DirectionAngle
	}
	if c.ConsistencyBars < 1 {
		c.ConsistencyBars = d.ConsistencyBars
	}
	if c.ConfirmPct <= 0 {
		c.ConfirmPct = d.ConfirmPct
	}
	if c.Alignment == ([4]float64{}) {
		c.Alignment = d.Alignment
	}
	if c.ADXPeriod < 2 {
		c.ADXPeriod = d.ADXPeriod
	}
	if c.RangeBars < 2 {
		c.RangeBars = d.RangeBars
	}
	return c
}

// slowest returns the longest configured MA period.
func (c Config) slowest() int {
	n := 0
	for _, l := range c.Levels {
		if l.Period > n {
			n = l.Period
		}
	}
	return n
}
