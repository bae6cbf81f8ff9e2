package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// Resolve settles every pending signal whose expiry has passed. The exit
// price is the close of the bar that ends at the expiry; signals whose
// exit bar is not available yet stay pending. Once the feed has moved past
// the exit bar without a usable candle for it, the signal is voided. It
// returns how many signals were settled, voided ones included.
func (s *Scanner) Resolve(ctx context.Context) (int, error) {
	if s.deps.Journal == nil {
		return 0, nil
	}
	pending, err := s.deps.Journal.Pending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("scanner: pending signals: %w", err)
	}

	// One fetch per instrument serves all of its pending signals.
	windows := make(map[string]model.Series)
	settled := 0
	var errs []error
	for _, sig := range pending {
		series, ok := windows[sig.Instrument]
		if !ok {
			series, err = s.deps.Source.FetchRecentCandles(ctx, sig.Instrument, s.cfg.CandleCount, sig.Timeframe)
			if err != nil {
				errs = append(errs, fmt.Errorf("scanner: fetch %s: %w", sig.Instrument, err))
				continue
			}
			windows[sig.Instrument] = series
		}

		var out model.Signal
		switch exit, state := exitClose(series, sig); state {
		case exitWaiting:
			slog.Debug("[scanner] exit bar not available yet", "signal", sig.ID, "expiry", sig.ExpiryTS)
			continue
		case exitLost:
			slog.Warn("[scanner] exit bar missing or malformed, voiding signal",
				"signal", sig.ID, "instrument", sig.Instrument, "expiry", sig.ExpiryTS)
			out = sig.Void()
		default:
			out = sig.Settle(exit)
		}
		err := s.deps.Journal.Settle(ctx, out)
		if s.deps.Metrics != nil {
			s.deps.Metrics.JournalWrite("settle", err)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		settled++
		if s.deps.Metrics != nil {
			s.deps.Metrics.Outcomes.WithLabelValues(string(out.Outcome)).Inc()
		}
		slog.Info("[scanner] signal settled",
			"signal", out.ID,
			"instrument", out.Instrument,
			"decision", out.Decision,
			"entry", out.EntryPrice,
			"exit", out.ExitPrice,
			"outcome", out.Outcome)
	}
	return settled, errors.Join(errs...)
}

type exitState int

const (
	exitWaiting exitState = iota
	exitFound
	exitLost
)

// exitClose finds the bar that closes at the signal's expiry. The exit is
// lost when that bar is malformed, or when the window already holds later
// bars but not that one.
func exitClose(s model.Series, sig model.Signal) (float64, exitState) {
	open := sig.ExpiryTS.Add(-time.Duration(sig.Timeframe) * time.Second)
	for i := s.Len() - 1; i >= 0; i-- {
		c := s.At(i)
		if c.TS.Equal(open) {
			if !c.Valid() {
				return 0, exitLost
			}
			return c.Close, exitFound
		}
		if c.TS.Before(open) {
			break
		}
	}
	if s.Len() > 0 && s.Last().TS.After(open) {
		return 0, exitLost
	}
	return 0, exitWaiting
}
