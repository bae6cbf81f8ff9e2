package zone

// Config holds the zone detector tunables. Tolerances are relative
// (0.005 = 0.5% of price).
type Config struct {
	Window     int     `yaml:"window"`      // bars on each side for a local extreme
	Tolerance  float64 `yaml:"tolerance"`   // cluster merge distance
	MinTouches int     `yaml:"min_touches"` // clusters below this are discarded
	KeyTouches int     `yaml:"key_touches"` // touches that make a key level

	TouchPoints     float64 `yaml:"touch_points"`
	TouchCap        float64 `yaml:"touch_cap"`
	KeyBonus        float64 `yaml:"key_bonus"`
	RecencyDecay    float64 `yaml:"recency_decay"` // points lost per bar since last touch
	RecencyWeight   float64 `yaml:"recency_weight"`
	ProximityScale  float64 `yaml:"proximity_scale"` // points lost per unit of relative distance
	ProximityWeight float64 `yaml:"proximity_weight"`

	SideWeight   float64 `yaml:"side_weight"` // weight of best support and best resistance
	BothBonus    float64 `yaml:"both_bonus"`
	FlipBonus    float64 `yaml:"flip_bonus"`
	FlipCap      float64 `yaml:"flip_cap"`
	DirectionMin float64 `yaml:"direction_min"` // nearest zone effectiveness needed to vote

	RetestTolerance float64 `yaml:"retest_tolerance"`

	SwingBars      int     `yaml:"swing_bars"`     // bars on each side of a line pivot
	LineTolerance  float64 `yaml:"line_tolerance"` // extra touch distance from a line
	BreakTolerance float64 `yaml:"break_tolerance"`
	LineBonus      float64 `yaml:"line_bonus"`
}

// DefaultConfig returns the calibrated zone settings.
func DefaultConfig() Config {
	return Config{
		Window:          3,
		Tolerance:       0.005,
		MinTouches:      2,
		KeyTouches:      3,
		TouchPoints:     20,
		TouchCap:        60,
		KeyBonus:        20,
		RecencyDecay:    2,
		RecencyWeight:   0.15,
		ProximityScale:  1000,
		ProximityWeight: 0.25,
		SideWeight:      0.4,
		BothBonus:       10,
		FlipBonus:       15,
		FlipCap:         30,
		DirectionMin:    70,
		RetestTolerance: 0.005,
		SwingBars:       1,
		LineTolerance:   0.01,
		BreakTolerance:  0.001,
		LineBonus:       10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c == (Config{}) {
		return d
	}
	if c.Window < 1 {
		c.Window = d.Window
	}
	if c.Tolerance <= 0 {
		c.Tolerance = d.Tolerance
	}
	if c.MinTouches < 2 {
		c.MinTouches = d.MinTouches
	}
	if c.KeyTouches < c.MinTouches {
		c.KeyTouches = max(d.KeyTouches, c.MinTouches)
	}
	if c.TouchPoints <= 0 {
		c.TouchPoints = d.TouchPoints
	}
	if c.TouchCap <= 0 {
		c.TouchCap = d.TouchCap
	}
	if c.ProximityScale <= 0 {
		c.ProximityScale = d.ProximityScale
	}
	if c.SideWeight <= 0 {
		c.SideWeight = d.SideWeight
	}
	if c.DirectionMin <= 0 {
		c.DirectionMin = d.DirectionMin
	}
	if c.RetestTolerance <= 0 {
		c.RetestTolerance = d.RetestTolerance
	}
	if c.SwingBars < 1 {
		c.SwingBars = d.SwingBars
	}
	if c.LineTolerance <= 0 {
		c.LineTolerance = d.LineTolerance
	}
	if c.BreakTolerance <= 0 {
		c.BreakTolerance = d.BreakTolerance
	}
	return c
}
