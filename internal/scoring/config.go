package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/momentum"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/pattern"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/trend"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/volatility"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/volume"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/zone"
)

// DefaultThreshold is the effectiveness a direction needs before it becomes
// a CALL or PUT.
const DefaultThreshold = 80.0

// Adjustments are the bonuses and penalties applied to the trend confidence.
type Adjustments struct {
	ChartBonus        float64 `yaml:"chart_bonus"` // per chart pattern not against the direction
	ADXBonus          float64 `yaml:"adx_bonus"`
	MACDBonus         float64 `yaml:"macd_bonus"`
	MACDPenalty       float64 `yaml:"macd_penalty"`
	DivergencePenalty float64 `yaml:"divergence_penalty"`
	ExhaustionPenalty float64 `yaml:"exhaustion_penalty"`
	ExhaustionMin     float64 `yaml:"exhaustion_min"` // exhaustion strength that triggers the penalty

	WeakVolatilityPenalty float64 `yaml:"weak_volatility_penalty"` // quiet market, candle bodies classed weak
}

// DefaultAdjustments returns the calibrated adjustments.
func DefaultAdjustments() Adjustments {
	return Adjustments{
		ChartBonus:        5,
		ADXBonus:          8,
		MACDBonus:         5,
		MACDPenalty:       10,
		DivergencePenalty: 12,
		ExhaustionPenalty: 8,
		ExhaustionMin:     60,

		WeakVolatilityPenalty: 10,
	}
}

// Config bundles every tunable of the evaluation pipeline.
type Config struct {
	Threshold  float64 `yaml:"threshold"`
	VoteMargin float64 `yaml:"vote_margin"` // leader over the opposite vote

	Trend      trend.Config          `yaml:"trend"`
	Zones      zone.Config           `yaml:"zones"`
	Patterns   pattern.ContextConfig `yaml:"patterns"`
	Disabled   []string              `yaml:"disabled_patterns"`
	Volume     volume.Config         `yaml:"volume"`
	Volatility volatility.Config     `yaml:"volatility"`
	Momentum   momentum.Config       `yaml:"momentum"`

	Adjustments Adjustments `yaml:"adjustments"`
}

// DefaultConfig returns the calibrated pipeline settings.
func DefaultConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		VoteMargin:  1.2,
		Trend:       trend.DefaultConfig(),
		Zones:       zone.DefaultConfig(),
		Patterns:    pattern.DefaultContextConfig(),
		Volume:      volume.DefaultConfig(),
		Volatility:  volatility.DefaultConfig(),
		Momentum:    momentum.DefaultConfig(),
		Adjustments: DefaultAdjustments(),
	}
}

// LoadConfig reads a YAML file over DefaultConfig, so a file only needs the
// keys it changes. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("scoring: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("scoring: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the evaluator cannot work with.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("scoring: threshold %.1f outside [0,100]", c.Threshold)
	}
	if c.VoteMargin < 1 {
		return fmt.Errorf("scoring: vote margin %.2f below 1", c.VoteMargin)
	}
	if _, err := pattern.NewDetector(c.Disabled); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	return nil
}
