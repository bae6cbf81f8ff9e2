// Package ta wraps go-talib with length guards. talib indexes its input
// without checking the lookback, so every call here verifies the series is
// long enough first and reports ok=false instead of panicking.
package ta

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// SMA returns the simple moving average series.
func SMA(in []float64, period int) ([]float64, bool) {
	if period < 1 || len(in) < period {
		return nil, false
	}
	return talib.Sma(in, period), true
}

// RSI returns the Wilder RSI series.
func RSI(closes []float64, period int) ([]float64, bool) {
	if period < 2 || len(closes) <= period {
		return nil, false
	}
	return talib.Rsi(closes, period), true
}

// MACD returns the MACD line, signal line and histogram.
func MACD(closes []float64, fast, slow, signal int) (macd, sig, hist []float64, ok bool) {
	if fast < 2 || slow <= fast || signal < 1 || len(closes) < slow+signal {
		return nil, nil, nil, false
	}
	macd, sig, hist = talib.Macd(closes, fast, slow, signal)
	return macd, sig, hist, true
}

// ADX returns the average directional index series.
func ADX(highs, lows, closes []float64, period int) ([]float64, bool) {
	if period < 2 || len(closes) < 2*period+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, false
	}
	return talib.Adx(highs, lows, closes, period), true
}

// ATR returns the average true range series.
func ATR(highs, lows, closes []float64, period int) ([]float64, bool) {
	if period < 1 || len(closes) <= period || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, false
	}
	return talib.Atr(highs, lows, closes, period), true
}

// BBands returns the upper, middle and lower Bollinger bands (SMA based).
func BBands(closes []float64, period int, dev float64) (upper, middle, lower []float64, ok bool) {
	if period < 2 || len(closes) < period {
		return nil, nil, nil, false
	}
	upper, middle, lower = talib.BBands(closes, period, dev, dev, talib.SMA)
	return upper, middle, lower, true
}

// OBV returns the on-balance volume series.
func OBV(closes, volumes []float64) ([]float64, bool) {
	if len(closes) == 0 || len(closes) != len(volumes) {
		return nil, false
	}
	return talib.Obv(closes, volumes), true
}

// Last returns the final element, or NaN for an empty slice.
func Last(s []float64) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

// Back returns the element n positions before the last, or NaN when out of range.
func Back(s []float64, n int) float64 {
	i := len(s) - 1 - n
	if i < 0 || i >= len(s) {
		return math.NaN()
	}
	return s[i]
}

// Finite reports whether v is a usable number.
func Finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
