package model

import "time"

// Outcome is the settled result of a journaled signal.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeWon     Outcome = "won"
	OutcomeLost    Outcome = "lost"
	OutcomeDraw    Outcome = "draw"
	// OutcomeVoid marks a signal whose exit bar never became usable.
	OutcomeVoid Outcome = "void"
)

// Signal is a CALL/PUT evaluation that passed the threshold and was sent out.
// Entry is the close of the evaluated bar; the signal expires one timeframe later.
type Signal struct {
	ID            string    `json:"id"`
	Instrument    string    `json:"instrument"`
	Timeframe     int       `json:"timeframe"`
	Decision      Decision  `json:"decision"`
	Effectiveness float64   `json:"effectiveness"`
	EntryPrice    float64   `json:"entry_price"`
	EntryTS       time.Time `json:"entry_ts"`
	ExpiryTS      time.Time `json:"expiry_ts"`
	Outcome       Outcome   `json:"outcome"`
	ExitPrice     float64   `json:"exit_price,omitempty"`
	Patterns      []string  `json:"patterns,omitempty"`
}

// SignalFromEvaluation builds a pending signal from an evaluation with a decision.
func SignalFromEvaluation(id string, ev Evaluation) Signal {
	names := make([]string, 0, len(ev.Breakdown.Patterns))
	for _, p := range ev.Breakdown.Patterns {
		names = append(names, p.Name)
	}
	tf := time.Duration(ev.Timeframe) * time.Second
	return Signal{
		ID:            id,
		Instrument:    ev.Instrument,
		Timeframe:     ev.Timeframe,
		Decision:      ev.Decision,
		Effectiveness: ev.Effectiveness,
		EntryPrice:    ev.Price,
		EntryTS:       ev.TS,
		// The evaluated bar is already closed, so the trade spans the next bar.
		ExpiryTS: ev.TS.Add(2 * tf),
		Outcome:  OutcomePending,
		Patterns: names,
	}
}

// Settle resolves the signal against the close observed at expiry.
func (s Signal) Settle(exit float64) Signal {
	s.ExitPrice = exit
	switch {
	case exit == s.EntryPrice:
		s.Outcome = OutcomeDraw
	case (s.Decision == DecisionCall) == (exit > s.EntryPrice):
		s.Outcome = OutcomeWon
	default:
		s.Outcome = OutcomeLost
	}
	return s
}

// Void closes the signal without a result.
func (s Signal) Void() Signal {
	s.ExitPrice = 0
	s.Outcome = OutcomeVoid
	return s
}

// InstrumentStats aggregates settled signals for one instrument.
type InstrumentStats struct {
	Instrument       string  `json:"instrument"`
	Total            int     `json:"total"`
	Won              int     `json:"won"`
	Lost             int     `json:"lost"`
	Draw             int     `json:"draw"`
	Pending          int     `json:"pending"`
	Void             int     `json:"void"`
	AvgEffectiveness float64 `json:"avg_effectiveness"`
}

// WinRate returns won / (won + lost) as a percentage, or 0 when nothing settled.
func (s InstrumentStats) WinRate() float64 {
	settled := s.Won + s.Lost
	if settled == 0 {
		return 0
	}
	return float64(s.Won) / float64(settled) * 100
}
