package model

import (
	"encoding/json"
	"time"
)

// Direction is the directional opinion of an analyzer or of the whole evaluation.
type Direction string

const (
	Bullish    Direction = "bullish"
	Bearish    Direction = "bearish"
	Neutral    Direction = "neutral"
	Indefinite Direction = "indefinite" // votes without a clear leader
)

// Opposite returns the contrary side; neutral and indefinite map to themselves.
func (d Direction) Opposite() Direction {
	switch d {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	}
	return d
}

// Directional reports whether d is bullish or bearish.
func (d Direction) Directional() bool { return d == Bullish || d == Bearish }

// Decision is the trade call emitted by an evaluation.
type Decision string

const (
	DecisionNone Decision = ""
	DecisionCall Decision = "CALL"
	DecisionPut  Decision = "PUT"
)

// DecisionFor maps a direction to the matching call. Non-directional input yields DecisionNone.
func DecisionFor(d Direction) Decision {
	switch d {
	case Bullish:
		return DecisionCall
	case Bearish:
		return DecisionPut
	}
	return DecisionNone
}

// Component summarizes one analyzer's contribution to an evaluation.
type Component struct {
	Name          string    `json:"name"`
	Available     bool      `json:"available"`
	Effectiveness float64   `json:"effectiveness"`
	Direction     Direction `json:"direction"`
	Notes         []string  `json:"notes,omitempty"`
}

// PatternHit is a candlestick pattern that fired on the evaluated window.
type PatternHit struct {
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Direction     Direction `json:"direction"`
	Strength      float64   `json:"strength"`
	Effectiveness float64   `json:"effectiveness"`
	Index         int       `json:"index"`
}

// Adjustment is one bonus or penalty applied to the trend base effectiveness.
type Adjustment struct {
	Reason string  `json:"reason"`
	Delta  float64 `json:"delta"`
}

// Breakdown lists everything that contributed to an evaluation.
type Breakdown struct {
	Components  []Component  `json:"components"`
	Patterns    []PatternHit `json:"patterns,omitempty"`
	Adjustments []Adjustment `json:"adjustments,omitempty"`
	BullVotes   float64      `json:"bull_votes"`
	BearVotes   float64      `json:"bear_votes"`
	Dropped     int          `json:"dropped_bars,omitempty"`
}

// Component returns the named component summary, if present.
func (b Breakdown) Component(name string) (Component, bool) {
	for _, c := range b.Components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// Evaluation is the single output of the scoring pipeline for one instrument.
// It is always fully populated; Decision is DecisionNone when no call is made.
type Evaluation struct {
	Instrument    string    `json:"instrument"`
	Timeframe     int       `json:"timeframe"`
	TS            time.Time `json:"ts"` // open time of the last evaluated bar
	Price         float64   `json:"price"`
	Effectiveness float64   `json:"effectiveness"`
	Direction     Direction `json:"direction"`
	Decision      Decision  `json:"decision"`
	Threshold     float64   `json:"threshold"`
	Breakdown     Breakdown `json:"breakdown"`
}

// HasDecision reports whether the evaluation produced a CALL or PUT.
func (e Evaluation) HasDecision() bool { return e.Decision != DecisionNone }

// JSON returns the JSON-encoded evaluation (ignoring errors for hot-path usage).
func (e Evaluation) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
