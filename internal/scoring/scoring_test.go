package scoring

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/momentum"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/trend"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/volatility"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/volume"
)

// ────────────────────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────────────────────

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// fromCloses builds candles whose open is the previous close, with a fixed
// wick on both sides.
func fromCloses(closes []float64, wick float64) []model.Candle {
	cs := make([]model.Candle, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		cs[i] = model.Candle{
			TS:    t0.Add(time.Duration(i) * time.Minute),
			Open:  open,
			High:  math.Max(open, c) + wick,
			Low:   math.Min(open, c) - wick,
			Close: c,
		}
	}
	return cs
}

func ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i+1)
	}
	return out
}

// bullishSetup is a steady 60-bar climb of 0.0003 a bar. Bars 47 and 53
// dip to the same low and form a support just under the price, and the
// window ends with a gap-up bearish bar engulfed by a bullish one.
func bullishSetup() model.Series {
	const inc = 0.0003
	cs := fromCloses(ramp(1.08, inc, 60), 0.0002)
	cs[58].Open = cs[58].Close + 0.5*inc
	cs[58].High = cs[58].Open + 0.0002
	cs[59].Open = cs[58].Close - 0.2*inc
	cs[59].Low = cs[59].Open - 0.0002

	cs[47].Low = 1.0929
	cs[53].Low = 1.0929
	return model.NewSeries("EURUSD", 60, cs)
}

// conflicting falls for 60 bars and then rallies hard for 8: the fast
// averages turn up while the slow one keeps falling.
func conflicting() model.Series {
	closes := ramp(1.2, -0.001, 60)
	last := closes[59]
	for i := 1; i <= 8; i++ {
		closes = append(closes, last+0.003*float64(i))
	}
	return model.NewSeries("EURUSD", 60, fromCloses(closes, 0.0004))
}

func flat(n int) model.Series {
	cs := make([]model.Candle, n)
	for i := range cs {
		cs[i] = model.Candle{TS: t0.Add(time.Duration(i) * time.Minute), Open: 1.1, High: 1.1, Low: 1.1, Close: 1.1}
	}
	return model.NewSeries("EURUSD", 60, cs)
}

// randomWalk is a reproducible noisy series with volume.
func randomWalk(seed int64, n int) model.Series {
	r := rand.New(rand.NewSource(seed))
	cs := make([]model.Candle, n)
	price := 1.10
	for i := range cs {
		open := price
		price += (r.Float64() - 0.5) * 0.002
		cs[i] = model.Candle{
			TS:        t0.Add(time.Duration(i) * time.Minute),
			Open:      open,
			High:      math.Max(open, price) + r.Float64()*0.0008,
			Low:       math.Min(open, price) - r.Float64()*0.0008,
			Close:     price,
			Volume:    100 + r.Float64()*900,
			HasVolume: true,
		}
	}
	return model.NewSeries("EURUSD", 60, cs)
}

func verdict(d model.Direction, conf float64) trend.Verdict {
	return trend.Verdict{Direction: d, Confidence: conf}
}

func volumeResult(ok bool, d model.Direction, eff float64) volume.Result {
	return volume.Result{Available: ok, Direction: d, Effectiveness: eff}
}

// momentumResult carries one of every adjustment trigger.
func momentumResult() momentum.Result {
	return momentum.Result{
		Available: true,
		Strong:    true,
		Cross:     model.Bearish,
		Divergence: momentum.Divergence{
			Detected: true, Direction: model.Bearish, Indicator: "rsi", Strength: 40,
		},
		Exhaustion: momentum.Exhaustion{Detected: true, Strength: 67.5},
		Charts: []momentum.ChartPattern{
			{Name: "double_bottom", Direction: model.Bullish},
			{Name: "symmetrical_triangle", Direction: model.Neutral},
			{Name: "head_and_shoulders", Direction: model.Bearish},
		},
	}
}

func checkInvariants(t *testing.T, ev model.Evaluation) {
	t.Helper()
	if ev.Effectiveness < 0 || ev.Effectiveness > 100 || math.IsNaN(ev.Effectiveness) {
		t.Errorf("effectiveness %.2f out of range", ev.Effectiveness)
	}
	if ev.HasDecision() {
		if ev.Effectiveness < ev.Threshold {
			t.Errorf("decision %s with effectiveness %.2f below threshold %.2f", ev.Decision, ev.Effectiveness, ev.Threshold)
		}
		if ev.Decision != model.DecisionFor(ev.Direction) {
			t.Errorf("decision %s does not match direction %s", ev.Decision, ev.Direction)
		}
	}
	if len(ev.Breakdown.Components) != 6 {
		t.Errorf("got %d components, want 6", len(ev.Breakdown.Components))
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Scenarios
// ────────────────────────────────────────────────────────────────────────────

func TestEvaluate_StrongBullishSetup(t *testing.T) {
	e := newEvaluator(t)
	ev := e.Evaluate(bullishSetup(), "EURUSD-OTC")
	checkInvariants(t, ev)

	if ev.Instrument != "EURUSD-OTC" {
		t.Errorf("instrument = %s, want the caller's id", ev.Instrument)
	}
	if ev.Direction != model.Bullish {
		t.Fatalf("direction = %s, want bullish (bull=%.1f bear=%.1f)", ev.Direction, ev.Breakdown.BullVotes, ev.Breakdown.BearVotes)
	}
	if ev.Effectiveness < DefaultThreshold {
		t.Fatalf("effectiveness = %.1f, want >= %.0f; adjustments %+v", ev.Effectiveness, DefaultThreshold, ev.Breakdown.Adjustments)
	}
	if ev.Decision != model.DecisionCall {
		t.Errorf("decision = %q, want CALL", ev.Decision)
	}

	found := false
	for _, p := range ev.Breakdown.Patterns {
		if p.Name == "engulfing" && p.Direction == model.Bullish {
			found = true
		}
	}
	if !found {
		t.Errorf("bullish engulfing missing from %+v", ev.Breakdown.Patterns)
	}

	adx := false
	for _, a := range ev.Breakdown.Adjustments {
		if a.Reason == "adx_strong" {
			adx = true
		}
	}
	if !adx {
		t.Errorf("adx bonus missing from %+v", ev.Breakdown.Adjustments)
	}

	if c, ok := ev.Breakdown.Component(ZonesComponent); !ok || c.Direction != model.Bullish {
		t.Errorf("zones component = %+v, want a bullish vote from the support", c)
	}
	if c, _ := ev.Breakdown.Component(VolumeComponent); c.Available {
		t.Error("volume available on a series without volume")
	}
	if !ev.TS.Equal(t0.Add(59 * time.Minute)) {
		t.Errorf("ts = %v, want the last bar", ev.TS)
	}
}

func TestEvaluate_ThresholdGating(t *testing.T) {
	e := newEvaluator(t)
	s := bullishSetup()

	ev := e.EvaluateWithThreshold(s, "", 101)
	checkInvariants(t, ev)
	if ev.HasDecision() {
		t.Errorf("decision %s above an unreachable threshold", ev.Decision)
	}
	if ev.Direction != model.Bullish {
		t.Errorf("direction = %s, want bullish regardless of threshold", ev.Direction)
	}
	if ev.Instrument != "EURUSD" {
		t.Errorf("instrument = %s, want series name for empty id", ev.Instrument)
	}

	low := e.EvaluateWithThreshold(s, "", 0)
	if low.Effectiveness != ev.Effectiveness {
		t.Errorf("threshold changed effectiveness: %.2f vs %.2f", low.Effectiveness, ev.Effectiveness)
	}
	if low.Decision != model.DecisionCall {
		t.Errorf("decision = %q at threshold 0, want CALL", low.Decision)
	}
}

func TestEvaluate_ConflictingTrend(t *testing.T) {
	e := newEvaluator(t)
	for _, th := range []float64{0, 50, 80} {
		ev := e.EvaluateWithThreshold(conflicting(), "", th)
		checkInvariants(t, ev)
		if ev.HasDecision() {
			t.Errorf("threshold %.0f: decision %s on conflicting timeframes", th, ev.Decision)
		}
		if ev.Direction != model.Indefinite {
			t.Errorf("threshold %.0f: direction = %s, want indefinite", th, ev.Direction)
		}
	}
}

func TestEvaluate_FlatSeries(t *testing.T) {
	ev := newEvaluator(t).EvaluateWithThreshold(flat(60), "", 0)
	checkInvariants(t, ev)
	if ev.HasDecision() {
		t.Errorf("decision %s on a flat series", ev.Decision)
	}
	if ev.Direction != model.Indefinite {
		t.Errorf("direction = %s, want indefinite on a lateral market", ev.Direction)
	}
}

func TestEvaluate_ShortInput(t *testing.T) {
	e := newEvaluator(t)
	for _, n := range []int{0, 1, 2, 10} {
		ev := e.Evaluate(randomWalk(1, n), "")
		checkInvariants(t, ev)
		if ev.HasDecision() {
			t.Errorf("len %d: decision %s", n, ev.Decision)
		}
		if ev.Direction != model.Indefinite {
			t.Errorf("len %d: direction = %s, want indefinite", n, ev.Direction)
		}
	}
}

func TestEvaluate_DropsMalformedBars(t *testing.T) {
	s := bullishSetup()
	cs := append([]model.Candle(nil), s.Candles...)
	cs[10].High = cs[10].Low - 0.001
	cs[20].Close = math.NaN()

	ev := newEvaluator(t).Evaluate(model.NewSeries("EURUSD", 60, cs), "")
	checkInvariants(t, ev)
	if ev.Breakdown.Dropped != 2 {
		t.Errorf("dropped = %d, want 2", ev.Breakdown.Dropped)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Properties
// ────────────────────────────────────────────────────────────────────────────

func TestEvaluate_Deterministic(t *testing.T) {
	e := newEvaluator(t)
	s := randomWalk(7, 120)
	a, b := e.Evaluate(s, ""), e.Evaluate(s, "")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("two runs differ:\n%+v\n%+v", a, b)
	}
}

func TestEvaluate_DoesNotMutateInput(t *testing.T) {
	s := randomWalk(3, 80)
	before := append([]model.Candle(nil), s.Candles...)
	newEvaluator(t).Evaluate(s, "")
	if !reflect.DeepEqual(before, s.Candles) {
		t.Error("evaluate modified the input series")
	}
}

func TestEvaluate_BoundedOnRandomWalks(t *testing.T) {
	e := newEvaluator(t)
	for seed := int64(1); seed <= 25; seed++ {
		ev := e.EvaluateWithThreshold(randomWalk(seed, 100), "", 50)
		checkInvariants(t, ev)
		if ev.Direction == model.Neutral {
			t.Errorf("seed %d: neutral direction, want bullish/bearish/indefinite", seed)
		}
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Internals
// ────────────────────────────────────────────────────────────────────────────

func TestSafely_RecoversPanic(t *testing.T) {
	a := analysis{failures: map[string]string{}}
	got := safely(&a, VolumeComponent, 42, func() int { panic("boom") })
	if got != 42 {
		t.Errorf("got %d, want fallback 42", got)
	}
	if msg := a.failures[VolumeComponent]; msg == "" {
		t.Error("failure not recorded")
	}

	cs := a.components()
	for _, c := range cs {
		if c.Name == VolumeComponent && c.Available {
			t.Error("failed component still marked available")
		}
	}
}

func TestVotes(t *testing.T) {
	tests := []struct {
		name       string
		a          analysis
		bull, bear float64
	}{
		{"empty", analysis{}, 0, 0},
		{"trend only", analysis{trend: verdict(model.Bullish, 90)}, 90, 0},
		{
			"unavailable volume ignored",
			analysis{trend: verdict(model.Bearish, 70), volume: volumeResult(false, model.Bullish, 80)},
			0, 70,
		},
		{
			"patterns need an aggregate",
			analysis{trend: verdict(model.Bullish, 60), patternDir: model.Bearish, patternEff: 75},
			60, 0,
		},
		{
			"patterns with aggregate",
			analysis{trend: verdict(model.Bullish, 60), patternDir: model.Bearish, patternEff: 75, patternOK: true},
			60, 75,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bull, bear := votes(tt.a)
			if bull != tt.bull || bear != tt.bear {
				t.Errorf("votes = %.0f/%.0f, want %.0f/%.0f", bull, bear, tt.bull, tt.bear)
			}
		})
	}
}

func TestAdjust(t *testing.T) {
	e := newEvaluator(t)
	m := momentumResult()

	got := map[string]float64{}
	for _, a := range e.adjust(model.Bullish, m, volatility.Result{}) {
		got[a.Reason] += a.Delta
	}
	want := map[string]float64{
		"chart:double_bottom":        5,
		"chart:symmetrical_triangle": 5,
		"adx_strong":                 8,
		"macd_contradicts":           -10,
		"rsi_divergence":             -12,
		"exhaustion":                 -8,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("adjust(bullish) = %v, want %v", got, want)
	}

	if adj := e.adjust(model.Neutral, m, volatility.Result{}); adj != nil {
		t.Errorf("adjust(neutral) = %v, want none", adj)
	}
}

func TestAdjust_WeakVolatility(t *testing.T) {
	weak := volatility.Result{Available: true, Class: volatility.Weak}
	healthy := volatility.Result{Available: true, Class: volatility.Healthy}

	adj := newEvaluator(t).adjust(model.Bearish, momentum.Result{}, weak)
	if len(adj) != 1 || adj[0].Reason != "weak_volatility" || adj[0].Delta != -10 {
		t.Errorf("weak market: adjust = %v, want one -10 weak_volatility penalty", adj)
	}
	if adj := newEvaluator(t).adjust(model.Bearish, momentum.Result{}, healthy); len(adj) != 0 {
		t.Errorf("healthy market: adjust = %v, want none", adj)
	}
	if adj := newEvaluator(t).adjust(model.Neutral, momentum.Result{}, weak); adj != nil {
		t.Errorf("neutral candidate: adjust = %v, want none", adj)
	}

	cfg := DefaultConfig()
	cfg.Adjustments.WeakVolatilityPenalty = 0
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if adj := e.adjust(model.Bullish, momentum.Result{}, weak); len(adj) != 0 {
		t.Errorf("penalty disabled: adjust = %v, want none", adj)
	}
}

func TestEvaluate_ThresholdIsOnlyGate(t *testing.T) {
	e := newEvaluator(t)
	series := []model.Series{bullishSetup(), conflicting(), flat(60)}
	for seed := int64(1); seed <= 30; seed++ {
		series = append(series, randomWalk(seed, 120))
	}
	for i, s := range series {
		for _, th := range []float64{0, 40, 60, 80} {
			ev := e.EvaluateWithThreshold(s, "", th)
			want := ev.Direction.Directional() && ev.Effectiveness >= th
			if ev.HasDecision() != want {
				t.Errorf("series %d threshold %.0f: decision=%q dir=%s eff=%.2f", i, th, ev.Decision, ev.Direction, ev.Effectiveness)
			}
		}
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Config
// ────────────────────────────────────────────────────────────────────────────

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scoring.yaml")
	body := "threshold: 85\nadjustments:\n  adx_bonus: 10\ndisabled_patterns: [doji]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Threshold != 85 || cfg.Adjustments.ADXBonus != 10 {
		t.Errorf("threshold=%.0f adx_bonus=%.0f, want 85/10", cfg.Threshold, cfg.Adjustments.ADXBonus)
	}
	if cfg.Adjustments.MACDPenalty != 10 || cfg.VoteMargin != 1.2 {
		t.Error("keys absent from the file lost their defaults")
	}
	if len(cfg.Trend.Levels) != 3 {
		t.Errorf("trend levels = %d, want defaults", len(cfg.Trend.Levels))
	}

	if cfg, err := LoadConfig(""); err != nil || cfg.Threshold != DefaultThreshold {
		t.Errorf("empty path: cfg.Threshold=%.0f err=%v", cfg.Threshold, err)
	}
	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"threshold above 100", func(c *Config) { c.Threshold = 120 }, false},
		{"margin below 1", func(c *Config) { c.VoteMargin = 0.9 }, false},
		{"unknown pattern", func(c *Config) { c.Disabled = []string{"no_such_rule"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			if (err == nil) != tt.ok {
				t.Errorf("New err = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
