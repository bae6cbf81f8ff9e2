// Package scoring runs every analyzer over a candle window and folds their
// opinions into one effectiveness figure, a direction and a CALL/PUT call.
//
// The evaluator is pure: it holds only configuration, never logs and never
// returns an error for bad data, so one instance can be shared by every
// scanner worker.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/momentum"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/pattern"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/trend"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/volatility"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/volume"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/zone"
)

// Component names used in the breakdown.
const (
	TrendComponent      = "trend"
	ZonesComponent      = "zones"
	PatternsComponent   = "patterns"
	VolumeComponent     = "volume"
	VolatilityComponent = "volatility"
	MomentumComponent   = "momentum"
)

// Evaluator scores candle windows. It is safe for concurrent use.
type Evaluator struct {
	cfg        Config
	trend      *trend.Analyzer
	zones      *zone.Detector
	patterns   *pattern.Detector
	volume     *volume.Analyzer
	volatility *volatility.Analyzer
	momentum   *momentum.Analyzer
}

// New builds an evaluator. It fails only on invalid configuration, such as
// an unknown pattern name in the disabled list.
func New(cfg Config) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pd, err := pattern.NewDetector(cfg.Disabled)
	if err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}
	return &Evaluator{
		cfg:        cfg,
		trend:      trend.NewAnalyzer(cfg.Trend),
		zones:      zone.NewDetector(cfg.Zones),
		patterns:   pd,
		volume:     volume.NewAnalyzer(cfg.Volume),
		volatility: volatility.NewAnalyzer(cfg.Volatility),
		momentum:   momentum.NewAnalyzer(cfg.Momentum),
	}, nil
}

// Threshold returns the configured decision threshold.
func (e *Evaluator) Threshold() float64 { return e.cfg.Threshold }

// Evaluate scores s with the configured threshold. id names the instrument
// in the result; an empty id keeps the series' own name.
func (e *Evaluator) Evaluate(s model.Series, id string) model.Evaluation {
	return e.EvaluateWithThreshold(s, id, e.cfg.Threshold)
}

// EvaluateWithThreshold scores s and makes a call only when the
// effectiveness reaches threshold. The input series is not modified.
func (e *Evaluator) EvaluateWithThreshold(s model.Series, id string, threshold float64) model.Evaluation {
	if id == "" {
		id = s.Instrument
	}
	clean, dropped := s.Clean()
	ev := model.Evaluation{
		Instrument: id,
		Timeframe:  s.Timeframe,
		Direction:  model.Indefinite,
		Decision:   model.DecisionNone,
		Threshold:  threshold,
	}
	ev.Breakdown.Dropped = dropped
	if clean.Len() > 0 {
		last := clean.Last()
		ev.TS, ev.Price = last.TS, last.Close
	}

	a := e.analyze(clean)
	ev.Breakdown.Components = a.components()
	ev.Breakdown.Patterns = make([]model.PatternHit, 0, len(a.signals))
	for _, sig := range a.signals {
		ev.Breakdown.Patterns = append(ev.Breakdown.Patterns, sig.Hit())
	}

	cand := a.trend.Direction
	ev.Breakdown.Adjustments = e.adjust(cand, a.momentum, a.volatility)
	eff := a.trend.Confidence
	for _, adj := range ev.Breakdown.Adjustments {
		eff += adj.Delta
	}
	ev.Effectiveness = clamp(eff)

	ev.Breakdown.BullVotes, ev.Breakdown.BearVotes = votes(a)
	if cand.Directional() {
		ev.Direction = pattern.Lead(ev.Breakdown.BullVotes, ev.Breakdown.BearVotes, e.cfg.VoteMargin)
		if !ev.Direction.Directional() {
			ev.Direction = model.Indefinite
		}
	}

	if ev.Direction.Directional() && ev.Effectiveness >= threshold {
		ev.Decision = model.DecisionFor(ev.Direction)
	}
	return ev
}

// analysis is the raw output of every analyzer for one window.
type analysis struct {
	trend      trend.Verdict
	zones      zone.Result
	signals    []pattern.Signal
	patternEff float64
	patternOK  bool
	patternDir model.Direction
	volume     volume.Result
	volatility volatility.Result
	momentum   momentum.Result
	failures   map[string]string
}

func (e *Evaluator) analyze(s model.Series) analysis {
	a := analysis{failures: map[string]string{}}
	a.trend = safely(&a, TrendComponent, trend.Neutral("analyzer failed"), func() trend.Verdict {
		return e.trend.Analyze(s)
	})
	a.zones = safely(&a, ZonesComponent, zone.Result{Direction: model.Neutral}, func() zone.Result {
		return e.zones.Detect(s)
	})
	a.signals = safely(&a, PatternsComponent, []pattern.Signal(nil), func() []pattern.Signal {
		return pattern.Score(e.patterns.Detect(s), s, a.trend, a.zones, e.cfg.Patterns)
	})
	a.patternEff, a.patternOK = pattern.Aggregate(a.signals, e.cfg.Patterns.MinAggregate)
	a.patternDir = pattern.Vote(a.signals, e.cfg.Patterns.MinVote, e.cfg.Patterns.VoteMargin)
	a.volume = safely(&a, VolumeComponent, volume.Result{Direction: model.Neutral}, func() volume.Result {
		return e.volume.Analyze(s)
	})
	a.volatility = safely(&a, VolatilityComponent, volatility.Result{Direction: model.Neutral}, func() volatility.Result {
		return e.volatility.Analyze(s, a.trend, a.zones)
	})
	a.momentum = safely(&a, MomentumComponent, momentum.Result{Cross: model.Neutral}, func() momentum.Result {
		return e.momentum.Analyze(s)
	})
	return a
}

// safely runs f and returns fallback if it panics, recording the failure
// under name.
func safely[T any](a *analysis, name string, fallback T, f func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			a.failures[name] = fmt.Sprintf("analyzer failed: %v", r)
			out = fallback
		}
	}()
	return f()
}

// adjust lists the bonuses and penalties for the candidate direction. A
// non-directional candidate gets none.
func (e *Evaluator) adjust(cand model.Direction, m momentum.Result, vl volatility.Result) []model.Adjustment {
	if !cand.Directional() {
		return nil
	}
	c := e.cfg.Adjustments
	var out []model.Adjustment
	if vl.Available && vl.Weak() && c.WeakVolatilityPenalty > 0 {
		out = append(out, model.Adjustment{Reason: "weak_volatility", Delta: -c.WeakVolatilityPenalty})
	}
	if !m.Available {
		return out
	}
	against := cand.Opposite()
	for _, p := range m.Charts {
		if p.Direction != against {
			out = append(out, model.Adjustment{Reason: "chart:" + p.Name, Delta: c.ChartBonus})
		}
	}
	if m.Strong {
		out = append(out, model.Adjustment{Reason: "adx_strong", Delta: c.ADXBonus})
	}
	switch m.Cross {
	case cand:
		out = append(out, model.Adjustment{Reason: "macd_agrees", Delta: c.MACDBonus})
	case against:
		out = append(out, model.Adjustment{Reason: "macd_contradicts", Delta: -c.MACDPenalty})
	}
	if d := m.Divergence; d.Detected && d.Direction == against {
		out = append(out, model.Adjustment{Reason: d.Indicator + "_divergence", Delta: -c.DivergencePenalty})
	}
	if x := m.Exhaustion; x.Detected && x.Strength > c.ExhaustionMin {
		out = append(out, model.Adjustment{Reason: "exhaustion", Delta: -c.ExhaustionPenalty})
	}
	return out
}

// votes weighs each directional opinion by its own score.
func votes(a analysis) (bulls, bears float64) {
	add := func(d model.Direction, w float64) {
		if w <= 0 || math.IsNaN(w) {
			return
		}
		switch d {
		case model.Bullish:
			bulls += w
		case model.Bearish:
			bears += w
		}
	}
	add(a.trend.Direction, a.trend.Confidence)
	add(a.zones.Direction, a.zones.Effectiveness)
	if a.patternOK {
		add(a.patternDir, a.patternEff)
	}
	if a.volume.Available {
		add(a.volume.Direction, a.volume.Effectiveness)
	}
	if a.volatility.Available {
		add(a.volatility.Direction, a.volatility.Effectiveness)
	}
	return bulls, bears
}

func (a analysis) components() []model.Component {
	v, zr, vol, vl, m := a.trend, a.zones, a.volume, a.volatility, a.momentum

	pc := model.Component{Name: PatternsComponent, Available: a.patternOK, Direction: model.Neutral}
	if a.patternOK {
		pc.Effectiveness, pc.Direction = a.patternEff, a.patternDir
	}
	if len(a.signals) > 0 {
		pc.Notes = append(pc.Notes, fmt.Sprintf("%d patterns matched", len(a.signals)))
	}

	mc := model.Component{Name: MomentumComponent, Available: m.Available, Direction: m.Cross, Notes: reason(m.Reason)}
	if m.Available {
		mc.Notes = append(mc.Notes, fmt.Sprintf("adx=%.1f rsi=%.1f", m.ADX, m.RSI))
		if m.Divergence.Detected {
			mc.Notes = append(mc.Notes, fmt.Sprintf("%s %s divergence", m.Divergence.Direction, m.Divergence.Indicator))
		}
		if m.Exhaustion.Detected {
			kinds := make([]string, len(m.Exhaustion.Signals))
			for i, sg := range m.Exhaustion.Signals {
				kinds[i] = sg.Kind
			}
			mc.Notes = append(mc.Notes, "exhaustion: "+strings.Join(kinds, ","))
		}
		for _, p := range m.Charts {
			mc.Notes = append(mc.Notes, "chart: "+p.Name)
		}
	}

	vc := model.Component{Name: VolatilityComponent, Available: vl.Available, Effectiveness: vl.Effectiveness,
		Direction: vl.Direction, Notes: reason(vl.Reason)}
	if vl.Available {
		vc.Notes = append(vc.Notes, fmt.Sprintf("class=%s health=%s", vl.Class, vl.Health))
		if vl.Pullback.Detected {
			vc.Notes = append(vc.Notes, "pullback: "+strings.Join(vl.Pullback.Confirmations, ","))
		}
	}

	out := []model.Component{
		{Name: TrendComponent, Available: v.Available(), Effectiveness: v.Confidence, Direction: v.Direction, Notes: reason(v.Reason)},
		{Name: ZonesComponent, Available: zr.Available(), Effectiveness: zr.Effectiveness, Direction: zr.Direction},
		pc,
		{Name: VolumeComponent, Available: vol.Available, Effectiveness: vol.Effectiveness, Direction: vol.Direction, Notes: reason(vol.Reason)},
		vc,
		mc,
	}
	for i := range out {
		if msg, ok := a.failures[out[i].Name]; ok {
			out[i].Available = false
			out[i].Notes = append(out[i].Notes, msg)
		}
	}
	return out
}

func reason(r string) []string {
	if r == "" {
		return nil
	}
	return []string{r}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
