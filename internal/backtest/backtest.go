// Package backtest replays a candle history through the evaluator in a
// sliding window and settles every CALL/PUT against the following bar.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// Evaluator scores a candle window. *scoring.Evaluator satisfies it.
type Evaluator interface {
	Evaluate(s model.Series, id string) model.Evaluation
}

// Report summarizes one replay.
type Report struct {
	Instrument string
	Bars       int
	Evaluated  int
	Unresolved int // signals whose exit bar is missing from the history

	Total model.InstrumentStats
	Days  []DayStats // oldest first
	Calls int
	Puts  int

	Signals []model.Signal
}

// DayStats is the settled result of one UTC day.
type DayStats struct {
	Date string // YYYY-MM-DD
	model.InstrumentStats
}

// Run evaluates every window of size window ending at bar i and settles a
// signal on bar i against the close of bar i+1. The last bar only serves
// as an exit. It stops early when ctx is cancelled.
func Run(ctx context.Context, s model.Series, ev Evaluator, window int) (Report, error) {
	rep := Report{Instrument: s.Instrument, Bars: s.Len()}
	rep.Total.Instrument = s.Instrument
	if window <= 0 {
		return rep, fmt.Errorf("backtest: window must be positive, got %d", window)
	}
	if s.Timeframe <= 0 {
		return rep, fmt.Errorf("backtest: timeframe must be positive, got %d", s.Timeframe)
	}
	tf := time.Duration(s.Timeframe) * time.Second

	days := map[string]*DayStats{}
	var effSum float64
	for i := window - 1; i < s.Len()-1; i++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		w := model.NewSeries(s.Instrument, s.Timeframe, s.Candles[i-window+1:i+1])
		e := ev.Evaluate(w, s.Instrument)
		rep.Evaluated++
		if !e.HasDecision() {
			continue
		}

		sig := model.SignalFromEvaluation(fmt.Sprintf("bt-%d", i), e)
		next := s.At(i + 1)
		if !next.TS.Equal(sig.ExpiryTS.Add(-tf)) || !next.Valid() {
			rep.Unresolved++
			continue
		}
		sig = sig.Settle(next.Close)
		rep.Signals = append(rep.Signals, sig)
		if sig.Decision == model.DecisionCall {
			rep.Calls++
		} else {
			rep.Puts++
		}
		effSum += sig.Effectiveness

		day := sig.EntryTS.UTC().Format("2006-01-02")
		d, ok := days[day]
		if !ok {
			d = &DayStats{Date: day}
			d.Instrument = s.Instrument
			days[day] = d
		}
		count(&rep.Total, sig.Outcome)
		count(&d.InstrumentStats, sig.Outcome)
	}
	if rep.Total.Total > 0 {
		rep.Total.AvgEffectiveness = effSum / float64(rep.Total.Total)
	}

	for _, d := range days {
		rep.Days = append(rep.Days, *d)
	}
	sort.Slice(rep.Days, func(i, j int) bool { return rep.Days[i].Date < rep.Days[j].Date })
	return rep, nil
}

func count(st *model.InstrumentStats, o model.Outcome) {
	st.Total++
	switch o {
	case model.OutcomeWon:
		st.Won++
	case model.OutcomeLost:
		st.Lost++
	case model.OutcomeDraw:
		st.Draw++
	case model.OutcomeVoid:
		st.Void++
	}
}
