package model

import (
	"encoding/json"
	"math"
	"time"
)

// Candle is one closed OHLC bar for a single instrument.
// Volume is optional: brokers that only stream prices leave HasVolume false.
type Candle struct {
	TS        time.Time `json:"ts"` // bar open time (UTC)
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume,omitempty"`
	HasVolume bool      `json:"has_volume,omitempty"`
}

// Valid reports whether the candle satisfies the OHLC invariant
// (high >= max(open, close), low <= min(open, close)) with finite, positive prices.
func (c Candle) Valid() bool {
	for _, p := range [4]float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return false
		}
	}
	return c.High >= math.Max(c.Open, c.Close) && c.Low <= math.Min(c.Open, c.Close)
}

// Bullish reports close > open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports close < open.
func (c Candle) Bearish() bool { return c.Close < c.Open }

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Series is a chronological (oldest first) window of candles for one instrument.
// Analyzers treat a Series as read-only.
type Series struct {
	Instrument string   `json:"instrument"`
	Timeframe  int      `json:"timeframe"` // seconds per bar
	Candles    []Candle `json:"candles"`
}

// NewSeries wraps candles for an instrument.
func NewSeries(instrument string, timeframe int, candles []Candle) Series {
	return Series{Instrument: instrument, Timeframe: timeframe, Candles: candles}
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Candles) }

// Last returns the most recent bar. Callers must check Len first.
func (s Series) Last() Candle { return s.Candles[len(s.Candles)-1] }

// At returns the bar at index i.
func (s Series) At(i int) Candle { return s.Candles[i] }

// Tail returns a series holding at most the last n bars. The backing
// array is shared, so the result must not be mutated either.
func (s Series) Tail(n int) Series {
	if n >= len(s.Candles) {
		return s
	}
	if n < 0 {
		n = 0
	}
	return Series{Instrument: s.Instrument, Timeframe: s.Timeframe, Candles: s.Candles[len(s.Candles)-n:]}
}

// Clean returns a copy without malformed bars, preserving order.
// The second value is the number of bars dropped.
func (s Series) Clean() (Series, int) {
	out := make([]Candle, 0, len(s.Candles))
	for _, c := range s.Candles {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return Series{Instrument: s.Instrument, Timeframe: s.Timeframe, Candles: out}, len(s.Candles) - len(out)
}

// HasVolume is true only when every bar carries a volume figure.
func (s Series) HasVolume() bool {
	if len(s.Candles) == 0 {
		return false
	}
	for _, c := range s.Candles {
		if !c.HasVolume {
			return false
		}
	}
	return true
}

// Opens returns the open prices as a fresh slice.
func (s Series) Opens() []float64 { return s.column(func(c Candle) float64 { return c.Open }) }

// Highs returns the high prices as a fresh slice.
func (s Series) Highs() []float64 { return s.column(func(c Candle) float64 { return c.High }) }

// Lows returns the low prices as a fresh slice.
func (s Series) Lows() []float64 { return s.column(func(c Candle) float64 { return c.Low }) }

// Closes returns the close prices as a fresh slice.
func (s Series) Closes() []float64 { return s.column(func(c Candle) float64 { return c.Close }) }

// Volumes returns the volumes as a fresh slice.
func (s Series) Volumes() []float64 { return s.column(func(c Candle) float64 { return c.Volume }) }

func (s Series) column(f func(Candle) float64) []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = f(c)
	}
	return out
}
