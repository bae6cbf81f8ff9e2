// Package indicator provides streaming moving averages over candle closes.
//
// All indicators implement the Indicator interface, receiving candles one at
// a time and producing float64 values. The trend analyzer builds its moving
// average series by replaying a window through one of these.
package indicator

import (
	"fmt"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// Indicator is the interface for all streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_20", "EMA_9").
	Name() string

	// Update feeds a new candle and recalculates.
	Update(candle model.Candle)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Peek computes what Value() would be if a candle with this close
	// were added next, WITHOUT mutating internal state.
	Peek(close float64) float64
}

// Kind selects a moving average implementation.
type Kind string

const (
	KindSMA Kind = "sma"
	KindEMA Kind = "ema"
)

// New builds a moving average of the given kind and period.
func New(kind Kind, period int) (Indicator, error) {
	if period <= 0 {
		return nil, fmt.Errorf("indicator: period must be positive, got %d", period)
	}
	switch kind {
	case KindSMA, "":
		return NewSMA(period), nil
	case KindEMA:
		return NewEMA(period), nil
	}
	return nil, fmt.Errorf("indicator: unknown kind %q", kind)
}

// Series replays candles through ind and returns the values produced once
// the indicator became ready. The last element lines up with the last candle.
func Series(ind Indicator, candles []model.Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		ind.Update(c)
		if ind.Ready() {
			out = append(out, ind.Value())
		}
	}
	return out
}
