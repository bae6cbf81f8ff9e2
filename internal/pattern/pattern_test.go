package pattern

import (
	"math"
	"sort"
	"testing"
	"time"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/trend"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/zone"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func bar(o, h, l, c float64) model.Candle {
	return model.Candle{Open: o, High: h, Low: l, Close: c}
}

func series(cs ...model.Candle) model.Series {
	t0 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	for i := range cs {
		cs[i].TS = t0.Add(time.Duration(i) * time.Minute)
	}
	return model.NewSeries("EURUSD", 60, cs)
}

func scaled(s model.Series, k float64) model.Series {
	cs := make([]model.Candle, s.Len())
	for i, c := range s.Candles {
		cs[i] = model.Candle{TS: c.TS, Open: c.Open * k, High: c.High * k, Low: c.Low * k, Close: c.Close * k}
	}
	return model.NewSeries(s.Instrument, s.Timeframe, cs)
}

func detector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func names(sigs []Signal) []string {
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = s.Name
	}
	sort.Strings(out)
	return out
}

func find(sigs []Signal, name string) (Signal, bool) {
	for _, s := range sigs {
		if s.Name == name {
			return s, true
		}
	}
	return Signal{}, false
}

// Three falling bars then a hammer at 1.08.
func hammerSeries() model.Series {
	return series(
		bar(1.0850, 1.0852, 1.0838, 1.0840),
		bar(1.0840, 1.0842, 1.0828, 1.0830),
		bar(1.0830, 1.0832, 1.0818, 1.0820),
		bar(1.0810, 1.0816, 1.0795, 1.0815),
	)
}

// ────────────────────────────────────────────────────────────
// Catalogue
// ────────────────────────────────────────────────────────────

func TestCatalogue(t *testing.T) {
	rules := Catalogue()
	if len(rules) < 50 {
		t.Errorf("catalogue has %d rules, want at least 50", len(rules))
	}
	valid := map[Category]bool{Reversal: true, Continuation: true, Indecision: true, Special: true, Breakout: true}
	seen := map[string]bool{}
	perCategory := map[Category]int{}
	for _, r := range rules {
		if seen[r.Name] {
			t.Errorf("duplicate rule %q", r.Name)
		}
		seen[r.Name] = true
		if !valid[r.Category] {
			t.Errorf("rule %q has unknown category %q", r.Name, r.Category)
		}
		perCategory[r.Category]++
	}
	for c := range valid {
		if perCategory[c] == 0 {
			t.Errorf("category %s has no rules", c)
		}
	}
}

func TestNewDetector_Disabled(t *testing.T) {
	d, err := NewDetector([]string{"doji", "hammer"})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if got, want := len(d.Rules()), len(Catalogue())-2; got != want {
		t.Errorf("rules = %d, want %d", got, want)
	}
	if _, ok := find(d.Detect(hammerSeries()), "hammer"); ok {
		t.Error("disabled rule fired")
	}

	if _, err := NewDetector([]string{"no_such_rule"}); err == nil {
		t.Error("expected error for unknown rule name")
	}
}

// ────────────────────────────────────────────────────────────
// Rules
// ────────────────────────────────────────────────────────────

func TestDetect_Rules(t *testing.T) {
	tests := []struct {
		name string
		s    model.Series
		rule string
		dir  model.Direction
	}{
		{"hammer after decline", hammerSeries(), "hammer", model.Bullish},
		{
			"hanging man after advance",
			series(
				bar(1.0800, 1.0812, 1.0798, 1.0810),
				bar(1.0810, 1.0822, 1.0808, 1.0820),
				bar(1.0820, 1.0832, 1.0818, 1.0830),
				bar(1.0835, 1.0841, 1.0820, 1.0840),
			),
			"hanging_man", model.Bearish,
		},
		{
			"bullish engulfing",
			series(bar(1.0830, 1.0832, 1.0818, 1.0820), bar(1.0818, 1.0836, 1.0816, 1.0834)),
			"engulfing", model.Bullish,
		},
		{
			"bearish engulfing",
			series(bar(1.0820, 1.0832, 1.0818, 1.0830), bar(1.0832, 1.0834, 1.0814, 1.0816)),
			"engulfing", model.Bearish,
		},
		{
			"morning star",
			series(
				bar(1.0850, 1.0852, 1.0818, 1.0820),
				bar(1.0815, 1.0818, 1.0810, 1.0814),
				bar(1.0816, 1.0848, 1.0814, 1.0845),
			),
			"morning_star", model.Bullish,
		},
		{
			"evening star",
			series(
				bar(1.0820, 1.0852, 1.0818, 1.0850),
				bar(1.0855, 1.0860, 1.0852, 1.0856),
				bar(1.0854, 1.0856, 1.0822, 1.0825),
			),
			"evening_star", model.Bearish,
		},
		{"doji", series(bar(1.0800, 1.0810, 1.0790, 1.0801)), "doji", model.Neutral},
		{"long legged doji", series(bar(1.0800, 1.0810, 1.0790, 1.08005)), "long_legged_doji", model.Neutral},
		{"dragonfly doji", series(bar(1.0810, 1.0810, 1.0790, 1.0810)), "dragonfly_doji", model.Bullish},
		{"gravestone doji", series(bar(1.0790, 1.0810, 1.0790, 1.0790)), "gravestone_doji", model.Bearish},
		{"spinning top", series(bar(1.0800, 1.0810, 1.0790, 1.0803)), "spinning_top", model.Neutral},
		{"bullish marubozu", series(bar(1.0800, 1.0820, 1.0800, 1.0820)), "marubozu", model.Bullish},
		{
			"three white soldiers",
			series(
				bar(1.0800, 1.0812, 1.0799, 1.0810),
				bar(1.0805, 1.0822, 1.0804, 1.0820),
				bar(1.0815, 1.0832, 1.0814, 1.0830),
			),
			"three_white_soldiers", model.Bullish,
		},
		{
			"rising three methods",
			series(
				bar(1.0800, 1.0832, 1.0798, 1.0830),
				bar(1.0828, 1.0829, 1.0818, 1.0820),
				bar(1.0820, 1.0824, 1.0815, 1.0817),
				bar(1.0817, 1.0822, 1.0812, 1.0815),
				bar(1.0816, 1.0845, 1.0815, 1.0842),
			),
			"rising_three_methods", model.Bullish,
		},
		{"gap up", series(bar(1.0800, 1.0810, 1.0795, 1.0805), bar(1.0815, 1.0825, 1.0812, 1.0820)), "gap", model.Bullish},
		{"inside bar", series(bar(1.0800, 1.0830, 1.0790, 1.0825), bar(1.0810, 1.0820, 1.0800, 1.0815)), "inside_bar", model.Bullish},
		{"outside close", series(bar(1.0810, 1.0820, 1.0800, 1.0815), bar(1.0805, 1.0830, 1.0795, 1.0828)), "outside_close", model.Bullish},
		{
			"piercing line",
			series(bar(1.0840, 1.0842, 1.0818, 1.0820), bar(1.0815, 1.0836, 1.0813, 1.0834)),
			"piercing_line", model.Bullish,
		},
		{
			"tweezer bottom",
			series(bar(1.0830, 1.0832, 1.0800, 1.0810), bar(1.0810, 1.0835, 1.08005, 1.0830)),
			"tweezer", model.Bullish,
		},
	}

	d := detector(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sigs := d.Detect(tt.s)
			sig, ok := find(sigs, tt.rule)
			if !ok {
				t.Fatalf("%s did not fire; got %v", tt.rule, names(sigs))
			}
			if sig.Direction != tt.dir {
				t.Errorf("%s direction = %s, want %s", tt.rule, sig.Direction, tt.dir)
			}
			if sig.Strength <= 0 || sig.Strength > 1 {
				t.Errorf("%s strength %.2f out of (0,1]", tt.rule, sig.Strength)
			}
			if sig.Index != tt.s.Len()-1 {
				t.Errorf("index = %d, want %d", sig.Index, tt.s.Len()-1)
			}
		})
	}
}

func TestDetect_HammerNotHangingMan(t *testing.T) {
	sigs := detector(t).Detect(hammerSeries())
	if _, ok := find(sigs, "hanging_man"); ok {
		t.Error("hanging_man fired after a decline")
	}
}

// ────────────────────────────────────────────────────────────
// Edge cases
// ────────────────────────────────────────────────────────────

func TestDetect_FlatCandlesNeverMatch(t *testing.T) {
	cs := make([]model.Candle, 30)
	for i := range cs {
		cs[i] = bar(1.1, 1.1, 1.1, 1.1)
	}
	if sigs := detector(t).Detect(series(cs...)); len(sigs) != 0 {
		t.Errorf("flat series fired %v", names(sigs))
	}
}

func TestDetect_ZeroPriceCandlesNeverPanic(t *testing.T) {
	cs := make([]model.Candle, 25)
	if sigs := detector(t).Detect(series(cs...)); len(sigs) != 0 {
		t.Errorf("zero candles fired %v", names(sigs))
	}
}

func TestDetect_ScaleInvariant(t *testing.T) {
	inputs := []model.Series{
		hammerSeries(),
		series(bar(1.0830, 1.0832, 1.0818, 1.0820), bar(1.0818, 1.0836, 1.0816, 1.0834)),
		series(
			bar(1.0850, 1.0852, 1.0818, 1.0820),
			bar(1.0815, 1.0818, 1.0810, 1.0814),
			bar(1.0816, 1.0848, 1.0814, 1.0845),
		),
		series(bar(1.0800, 1.0810, 1.0790, 1.08005)),
	}
	d := detector(t)
	for i, s := range inputs {
		base := names(d.Detect(s))
		if len(base) == 0 {
			t.Fatalf("input %d: nothing fired", i)
		}
		for _, k := range []float64{100, 1000} {
			got := names(d.Detect(scaled(s, k)))
			if len(got) != len(base) {
				t.Errorf("input %d ×%g: fired %v, want %v", i, k, got, base)
				continue
			}
			for j := range got {
				if got[j] != base[j] {
					t.Errorf("input %d ×%g: fired %v, want %v", i, k, got, base)
					break
				}
			}
		}
	}
}

func TestDetect_DoesNotMutateInput(t *testing.T) {
	s := hammerSeries()
	before := append([]model.Candle(nil), s.Candles...)
	detector(t).Detect(s)
	for i := range before {
		if before[i] != s.Candles[i] {
			t.Fatalf("candle %d mutated", i)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Context scoring
// ────────────────────────────────────────────────────────────

func TestScore(t *testing.T) {
	s := series(bar(1.1000, 1.1010, 1.0990, 1.1000))
	cfg := DefaultContextConfig()
	bull := trend.Verdict{Direction: model.Bullish, Confidence: 90}
	none := zone.Result{Direction: model.Neutral}
	keySupport := zone.Result{Supports: []zone.Zone{{Kind: zone.Support, Price: 1.0980, KeyLevel: true}}}
	plainRes := zone.Result{Resistances: []zone.Zone{{Kind: zone.Resistance, Price: 1.1030}}}
	farZone := zone.Result{Supports: []zone.Zone{{Kind: zone.Support, Price: 1.0500, KeyLevel: true}}}

	tests := []struct {
		name string
		sig  Signal
		v    trend.Verdict
		zr   zone.Result
		want float64
	}{
		{"with trend", Signal{Direction: model.Bullish, Strength: 0.8}, bull, none, 68},
		{"against trend", Signal{Direction: model.Bearish, Strength: 0.8}, bull, none, 38},
		{"neutral trend", Signal{Direction: model.Bearish, Strength: 0.8}, trend.Neutral("x"), none, 48},
		{"neutral pattern", Signal{Direction: model.Neutral, Strength: 0.5}, bull, none, 30},
		{"key support", Signal{Direction: model.Bullish, Strength: 0.8}, bull, keySupport, 83},
		{"plain resistance", Signal{Direction: model.Bullish, Strength: 0.8}, bull, plainRes, 78},
		{"zone too far", Signal{Direction: model.Bullish, Strength: 0.8}, bull, farZone, 68},
		{"clamped", Signal{Direction: model.Bullish, Strength: 1.5}, bull, keySupport, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := []Signal{tt.sig}
			got := Score(in, s, tt.v, tt.zr, cfg)
			if math.Abs(got[0].Effectiveness-tt.want) > 1e-9 {
				t.Errorf("effectiveness = %.2f, want %.2f", got[0].Effectiveness, tt.want)
			}
			if in[0].Effectiveness != 0 {
				t.Error("Score modified its input")
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	sigs := []Signal{
		{Strength: 0.8, Effectiveness: 80},
		{Strength: 0.5, Effectiveness: 60},
		{Strength: 0.9, Effectiveness: 50}, // at the floor: excluded
		{Strength: 0.7, Effectiveness: 20},
	}
	got, ok := Aggregate(sigs, 50)
	if !ok {
		t.Fatal("expected qualifying signals")
	}
	want := (0.8*80 + 0.5*60) / 1.3
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("aggregate = %.4f, want %.4f", got, want)
	}

	if _, ok := Aggregate([]Signal{{Strength: 0.9, Effectiveness: 40}}, 50); ok {
		t.Error("weak signals should not aggregate")
	}
}

func TestVote(t *testing.T) {
	tests := []struct {
		name string
		sigs []Signal
		want model.Direction
	}{
		{"none", nil, model.Neutral},
		{"bullish only", []Signal{{Direction: model.Bullish, Effectiveness: 70}}, model.Bullish},
		{"below floor", []Signal{{Direction: model.Bullish, Effectiveness: 55}}, model.Neutral},
		{"clear bearish", []Signal{
			{Direction: model.Bearish, Effectiveness: 90},
			{Direction: model.Bullish, Effectiveness: 70},
		}, model.Bearish},
		{"too close", []Signal{
			{Direction: model.Bearish, Effectiveness: 80},
			{Direction: model.Bullish, Effectiveness: 75},
		}, model.Indefinite},
		{"neutral ignored", []Signal{
			{Direction: model.Neutral, Effectiveness: 90},
			{Direction: model.Bullish, Effectiveness: 65},
		}, model.Bullish},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Vote(tt.sigs, 60, 1.2); got != tt.want {
				t.Errorf("Vote = %s, want %s", got, tt.want)
			}
		})
	}
}
