package indicator

import (
	"math"
	"testing"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

func candle(close float64) model.Candle {
	return model.Candle{Open: close, High: close + 0.5, Low: close - 0.5, Close: close}
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// SMA after candle 3: (100+102+104)/3 = 102
	// SMA after candle 4: (102+104+103)/3 = 103
	// SMA after candle 5: (104+103+105)/3 = 104
	sma := NewSMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Update(candle(p))
		if sma.Ready() != ready[i] {
			t.Errorf("candle %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value(), expected[i], 1e-9)
		}
	}
}

func TestSMA_Peek_DoesNotMutate(t *testing.T) {
	sma := NewSMA(3)
	for _, p := range []float64{100, 102, 104} {
		sma.Update(candle(p))
	}
	before := sma.Value()

	peek := sma.Peek(110)
	assertClose(t, "peek", peek, (102+104+110)/3.0, 1e-9)
	if sma.Value() != before {
		t.Errorf("Peek mutated state: before=%f after=%f", before, sma.Value())
	}
}

// ────────────────────────────────────────────────────────────
// EMA
// ────────────────────────────────────────────────────────────

func TestEMA_SeedAndUpdate(t *testing.T) {
	ema := NewEMA(3)
	for _, p := range []float64{10, 11, 12} {
		ema.Update(candle(p))
	}
	if !ema.Ready() {
		t.Fatal("EMA(3) should be ready after 3 candles")
	}
	assertClose(t, "seed", ema.Value(), 11.0, 1e-9)

	ema.Update(candle(13))
	// multiplier 0.5: 13*0.5 + 11*0.5 = 12
	assertClose(t, "update", ema.Value(), 12.0, 1e-9)
}

// ────────────────────────────────────────────────────────────
// Series / New
// ────────────────────────────────────────────────────────────

func TestSeries_AlignsWithLastCandle(t *testing.T) {
	candles := make([]model.Candle, 10)
	for i := range candles {
		candles[i] = candle(float64(i + 1))
	}

	vals := Series(NewSMA(4), candles)
	if len(vals) != 7 {
		t.Fatalf("len = %d, want 7", len(vals))
	}
	assertClose(t, "first", vals[0], 2.5, 1e-9)
	assertClose(t, "last", vals[len(vals)-1], 8.5, 1e-9)
}

func TestSeries_ShortInput(t *testing.T) {
	vals := Series(NewEMA(20), []model.Candle{candle(1), candle(2)})
	if len(vals) != 0 {
		t.Errorf("expected no values for short input, got %d", len(vals))
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		kind    Kind
		period  int
		name    string
		wantErr bool
	}{
		{KindSMA, 9, "SMA_9", false},
		{KindEMA, 50, "EMA_50", false},
		{"", 20, "SMA_20", false},
		{"wma", 20, "", true},
		{KindSMA, 0, "", true},
	}
	for _, tt := range tests {
		ind, err := New(tt.kind, tt.period)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q, %d): expected error", tt.kind, tt.period)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%q, %d): %v", tt.kind, tt.period, err)
		}
		if ind.Name() != tt.name {
			t.Errorf("Name() = %q, want %q", ind.Name(), tt.name)
		}
	}
}
