package momentum

import (
	"math"
	"testing"
	"time"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// ────────────────────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────────────────────

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

// chain builds candles whose open is the previous close.
func chain(open, wick float64, closes ...float64) model.Series {
	cs := make([]model.Candle, len(closes))
	for i, c := range closes {
		cs[i] = model.Candle{
			TS:    t0.Add(time.Duration(i) * time.Minute),
			Open:  open,
			High:  math.Max(open, c) + wick,
			Low:   math.Min(open, c) - wick,
			Close: c,
		}
		open = c
	}
	return model.NewSeries("EURUSD", 60, cs)
}

// ranged builds candles from explicit highs and lows, opening and closing
// at the midpoint.
func ranged(highs, lows []float64) model.Series {
	cs := make([]model.Candle, len(highs))
	for i := range highs {
		m := (highs[i] + lows[i]) / 2
		cs[i] = model.Candle{
			TS:   t0.Add(time.Duration(i) * time.Minute),
			Open: m, High: highs[i], Low: lows[i], Close: m,
		}
	}
	return model.NewSeries("EURUSD", 60, cs)
}

// peaks returns n highs at base with the given overrides, and lows 0.004 below.
func peaks(n int, base float64, at map[int]float64) (highs, lows []float64) {
	highs, lows = make([]float64, n), make([]float64, n)
	for i := range highs {
		highs[i] = base
		if v, ok := at[i]; ok {
			highs[i] = v
		}
		lows[i] = highs[i] - 0.004
	}
	return highs, lows
}

// accelerating chops sideways for 40 bars, then moves step per bar for 10.
func accelerating(step float64) model.Series {
	var closes []float64
	for i := 0; i < 40; i++ {
		closes = append(closes, 1.1000+0.0005*float64(i%2))
	}
	p := closes[len(closes)-1]
	for i := 1; i <= 10; i++ {
		closes = append(closes, p+step*float64(i))
	}
	return chain(1.1, 0.0003, closes...)
}

// ────────────────────────────────────────────────────────────────────────────
// Analyze
// ────────────────────────────────────────────────────────────────────────────

func TestAnalyze_Short(t *testing.T) {
	a := NewAnalyzer(Config{})
	r := a.Analyze(accelerating(0.002).Tail(a.MinBars() - 1))
	if r.Available {
		t.Fatal("short series reported available")
	}
	if r.Cross != model.Neutral || r.Exhaustion.Detected || len(r.Charts) != 0 {
		t.Errorf("short series carried signals: %+v", r)
	}
}

func TestAnalyze_MACDCross(t *testing.T) {
	tests := []struct {
		name string
		step float64
		want model.Direction
	}{
		{"rally", 0.002, model.Bullish},
		{"selloff", -0.002, model.Bearish},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewAnalyzer(DefaultConfig()).Analyze(accelerating(tt.step))
			if !r.Available {
				t.Fatalf("unavailable: %s", r.Reason)
			}
			if r.Cross != tt.want {
				t.Errorf("cross = %s (macd %.6f signal %.6f), want %s", r.Cross, r.MACD, r.MACDSignal, tt.want)
			}
		})
	}
}

func TestAnalyze_StrongTrendADX(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 1.08 + 0.001*float64(i+1)
	}
	r := NewAnalyzer(DefaultConfig()).Analyze(chain(1.08, 0.0004, closes...))
	if !r.Strong {
		t.Errorf("adx = %.1f, want strong (> 25)", r.ADX)
	}
	if r.RSI <= 70 {
		t.Errorf("rsi = %.1f, want overbought on a one-way series", r.RSI)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Divergence
// ────────────────────────────────────────────────────────────────────────────

func TestDivergence(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	flat := func(n int, v float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = v
		}
		return out
	}

	t.Run("bullish", func(t *testing.T) {
		lows := flat(30, 1.10)
		lows[8], lows[20] = 1.090, 1.085
		highs := flat(30, 1.102)
		ind := flat(30, 50)
		ind[9], ind[21] = 30, 35
		d := a.divergence(highs, lows, ind, 0, "rsi")
		if !d.Detected || d.Direction != model.Bullish || d.Indicator != "rsi" {
			t.Fatalf("got %+v, want bullish rsi divergence", d)
		}
		if want := divergenceStrength(1.090, 1.085, 30, 35); d.Strength != want {
			t.Errorf("strength = %.3f, want %.3f", d.Strength, want)
		}
	})

	t.Run("bearish", func(t *testing.T) {
		highs := flat(30, 1.10)
		highs[8], highs[20] = 1.110, 1.115
		lows := flat(30, 1.098)
		ind := flat(30, 50)
		ind[7], ind[19] = 70, 65
		d := a.divergence(highs, lows, ind, 0, "macd")
		if !d.Detected || d.Direction != model.Bearish {
			t.Fatalf("got %+v, want bearish divergence", d)
		}
	})

	t.Run("extremes too far apart", func(t *testing.T) {
		lows := flat(30, 1.10)
		lows[8], lows[20] = 1.090, 1.085
		highs := flat(30, 1.102)
		ind := flat(30, 50)
		ind[12], ind[24] = 30, 35
		if d := a.divergence(highs, lows, ind, 0, "rsi"); d.Detected {
			t.Errorf("unexpected divergence %+v", d)
		}
	})

	t.Run("warm-up ignored", func(t *testing.T) {
		lows := flat(30, 1.10)
		lows[8], lows[20] = 1.090, 1.085
		highs := flat(30, 1.102)
		ind := flat(30, 50)
		ind[9], ind[21] = 30, 35
		if d := a.divergence(highs, lows, ind, 10, "rsi"); d.Detected {
			t.Errorf("divergence used warm-up values: %+v", d)
		}
	})
}

func TestDivergenceStrength(t *testing.T) {
	tests := []struct {
		p1, p2, i1, i2 float64
		want           float64
	}{
		{1.0, 1.01, 50, 49, 1.5},
		{1.0, 1.1, 50, 40, 35}, // both beyond 5%: mean 15 plus 20
		{0, 1, 50, 40, 50},
	}
	for _, tt := range tests {
		if got := divergenceStrength(tt.p1, tt.p2, tt.i1, tt.i2); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("divergenceStrength(%v, %v, %v, %v) = %.3f, want %.3f", tt.p1, tt.p2, tt.i1, tt.i2, got, tt.want)
		}
	}
}

func TestExtrema(t *testing.T) {
	vals := []float64{5, 4, 3, 4, 5, 6, 5, 4, 4, 5}
	if got := extrema(vals, 2, 0, less); len(got) != 1 || got[0] != 2 {
		t.Errorf("minima = %v, want [2]", got)
	}
	if got := extrema(vals, 2, 0, greater); len(got) != 1 || got[0] != 5 {
		t.Errorf("maxima = %v, want [5]", got)
	}
	// plateaus are not strict extremes
	if got := extrema(vals, 1, 0, less); len(got) != 1 {
		t.Errorf("minima with order 1 = %v, want only index 2", got)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Exhaustion
// ────────────────────────────────────────────────────────────────────────────

func TestExhaustion(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	solid := model.Candle{Open: 1.1000, High: 1.1011, Low: 1.0999, Close: 1.1010}
	doji := model.Candle{Open: 1.1000, High: 1.1010, Low: 1.0990, Close: 1.1000}
	wick := model.Candle{Open: 1.1000, High: 1.1012, Low: 1.0999, Close: 1.1003}

	series := func(last model.Candle) model.Series {
		return model.NewSeries("EURUSD", 60, []model.Candle{solid, solid, last})
	}

	tests := []struct {
		name     string
		s        model.Series
		div      Divergence
		kinds    []string
		strength float64
	}{
		{"calm", series(solid), Divergence{}, nil, 0},
		{"doji", series(doji), Divergence{}, []string{"doji"}, 65},
		{"wick", series(wick), Divergence{}, []string{"wick_rejection"}, 70},
		{"divergence and doji", series(doji), Divergence{Detected: true, Indicator: "rsi", Strength: 40},
			[]string{"rsi_divergence", "doji"}, 52.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := a.exhaustion(tt.s, tt.div)
			if e.Detected != (len(tt.kinds) > 0) {
				t.Fatalf("detected = %v, want %v", e.Detected, len(tt.kinds) > 0)
			}
			if len(e.Signals) != len(tt.kinds) {
				t.Fatalf("signals = %+v, want %v", e.Signals, tt.kinds)
			}
			for i, k := range tt.kinds {
				if e.Signals[i].Kind != k {
					t.Errorf("signal[%d] = %s, want %s", i, e.Signals[i].Kind, k)
				}
			}
			if math.Abs(e.Strength-tt.strength) > 1e-9 {
				t.Errorf("strength = %.2f, want %.2f", e.Strength, tt.strength)
			}
		})
	}
}

func TestExhaustion_FadingVolume(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	cs := make([]model.Candle, 10)
	for i := range cs {
		cs[i] = model.Candle{Open: 1.1000, High: 1.1011, Low: 1.0999, Close: 1.1010, Volume: 100, HasVolume: true}
	}
	cs[5].High, cs[5].Volume = 1.1030, 10

	e := a.exhaustion(model.NewSeries("EURUSD", 60, cs), Divergence{})
	if !e.Detected || len(e.Signals) != 1 || e.Signals[0].Kind != "fading_volume" {
		t.Fatalf("got %+v, want a single fading_volume signal", e)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Chart patterns
// ────────────────────────────────────────────────────────────────────────────

func TestCharts_DoubleTop(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	highs, lows := peaks(30, 1.10, map[int]float64{8: 1.120, 20: 1.121})
	got := a.charts(ranged(highs, lows))
	if len(got) != 1 || got[0].Name != "double_top" {
		t.Fatalf("charts = %+v, want a single double_top", got)
	}
	p := got[0]
	if p.Direction != model.Bearish {
		t.Errorf("direction = %s, want bearish", p.Direction)
	}
	wantConf := 75 - math.Abs(1.120-1.121)/1.120*100*5
	if math.Abs(p.Confidence-wantConf) > 1e-9 {
		t.Errorf("confidence = %.3f, want %.3f", p.Confidence, wantConf)
	}
	if p.Resistance != 1.121 || p.Bars != 13 {
		t.Errorf("resistance=%.4f bars=%d, want 1.121/13", p.Resistance, p.Bars)
	}
}

func TestCharts_HeadAndShoulders(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	highs, lows := peaks(32, 1.10, map[int]float64{8: 1.120, 16: 1.150, 24: 1.121})
	got := a.charts(ranged(highs, lows))
	if len(got) != 1 || got[0].Name != "head_and_shoulders" {
		t.Fatalf("charts = %+v, want a single head_and_shoulders", got)
	}
	if got[0].Direction != model.Bearish || got[0].Resistance != 1.150 {
		t.Errorf("got %+v", got[0])
	}
}

func TestCharts_BullFlag(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	closes := []float64{1.000, 1.000, 1.000, 1.000, 1.000, 1.000, 1.008, 1.016, 1.024, 1.032}
	for i := 0; i < 10; i++ {
		closes = append(closes, 1.030+0.002*float64(i%2))
	}
	got := a.charts(chain(1.0, 0.0005, closes...))
	if len(got) != 1 || got[0].Name != "bull_flag" || got[0].Direction != model.Bullish {
		t.Fatalf("charts = %+v, want a single bull_flag", got)
	}
}

func TestTriangle_Ascending(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	highs, lows := make([]float64, 20), make([]float64, 20)
	for i := range highs {
		switch i % 4 {
		case 2:
			highs[i] = 1.110
		case 0:
			highs[i] = 1.108
		default:
			highs[i] = 1.109
		}
		lows[i] = 1.100 + 0.0003*float64(i)
		if i%4 == 0 {
			lows[i] = 1.097 + 0.0003*float64(i)
		}
	}
	p, ok := a.triangle(ranged(highs, lows))
	if !ok {
		t.Fatal("triangle not detected")
	}
	if p.Name != "ascending_triangle" || p.Direction != model.Bullish {
		t.Errorf("got %s/%s, want ascending_triangle/bullish", p.Name, p.Direction)
	}
}
