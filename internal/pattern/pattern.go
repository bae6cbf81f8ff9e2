// Package pattern recognizes candlestick patterns on the last bar of a
// series and scores them against trend and zone context.
//
// Patterns are plain Rule values registered from the per-category files at
// init time. A rule is a pure predicate over the tail of the window; the
// detector runs every enabled rule and reports all that match, so several
// rules may fire on the same bar.
package pattern

import (
	"fmt"
	"sort"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// Category groups rules by what they usually signal.
type Category string

const (
	Reversal     Category = "reversal"
	Continuation Category = "continuation"
	Indecision   Category = "indecision"
	Special      Category = "special"
	Breakout     Category = "breakout"
)

// Window is the candle slice a rule inspects, oldest first.
type Window []model.Candle

// At returns the candle k bars back from the last one (At(0) is the last).
func (w Window) At(k int) model.Candle { return w[len(w)-1-k] }

// Before returns up to n candles preceding the last skip candles.
func (w Window) Before(skip, n int) []model.Candle {
	end := len(w) - skip
	if end < 0 {
		return nil
	}
	return w[max(0, end-n):end]
}

// MatchFunc inspects a window and reports the direction and intrinsic
// strength of a match.
type MatchFunc func(w Window) (dir model.Direction, strength float64, ok bool)

// Rule describes one catalogue entry.
type Rule struct {
	Name       string
	Category   Category
	MinCandles int
	Match      MatchFunc
}

// Signal is a rule that fired. Effectiveness is zero until Score runs.
type Signal struct {
	Name          string          `json:"name"`
	Category      Category        `json:"category"`
	Direction     model.Direction `json:"direction"`
	Strength      float64         `json:"strength"` // 0..1, fixed per rule
	Index         int             `json:"index"`
	Effectiveness float64         `json:"effectiveness"`
}

// Hit converts the signal to the evaluation breakdown shape.
func (s Signal) Hit() model.PatternHit {
	return model.PatternHit{
		Name:          s.Name,
		Category:      string(s.Category),
		Direction:     s.Direction,
		Strength:      s.Strength,
		Effectiveness: s.Effectiveness,
		Index:         s.Index,
	}
}

var catalogue []Rule

func register(rules ...Rule) {
	for _, r := range rules {
		if r.Name == "" || r.Match == nil || r.MinCandles < 1 {
			panic(fmt.Sprintf("pattern: invalid rule %q", r.Name))
		}
		for _, have := range catalogue {
			if have.Name == r.Name {
				panic(fmt.Sprintf("pattern: duplicate rule %q", r.Name))
			}
		}
		catalogue = append(catalogue, r)
	}
}

// Catalogue returns every registered rule sorted by category and name.
func Catalogue() []Rule {
	out := append([]Rule(nil), catalogue...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Detector runs the enabled rules against a series.
type Detector struct {
	rules []Rule
}

// NewDetector builds a detector over the catalogue minus the disabled rule
// names. Unknown names are reported so a typo in configuration is caught.
func NewDetector(disabled []string) (*Detector, error) {
	skip := make(map[string]bool, len(disabled))
	for _, n := range disabled {
		skip[n] = true
	}
	d := &Detector{}
	for _, r := range Catalogue() {
		if skip[r.Name] {
			delete(skip, r.Name)
			continue
		}
		d.rules = append(d.rules, r)
	}
	for n := range skip {
		return nil, fmt.Errorf("pattern: unknown rule %q", n)
	}
	return d, nil
}

// Rules returns the rules this detector runs.
func (d *Detector) Rules() []Rule { return append([]Rule(nil), d.rules...) }

// Detect evaluates every rule on the last bar of s.
func (d *Detector) Detect(s model.Series) []Signal {
	w := Window(s.Candles)
	var out []Signal
	for _, r := range d.rules {
		if len(w) < r.MinCandles {
			continue
		}
		dir, strength, ok := r.Match(w)
		if !ok {
			continue
		}
		out = append(out, Signal{
			Name:      r.Name,
			Category:  r.Category,
			Direction: dir,
			Strength:  strength,
			Index:     len(w) - 1,
		})
	}
	return out
}

// Result helpers for rule bodies.

func up(s float64) (model.Direction, float64, bool)   { return model.Bullish, s, true }
func down(s float64) (model.Direction, float64, bool) { return model.Bearish, s, true }
func flat(s float64) (model.Direction, float64, bool) { return model.Neutral, s, true }
func miss() (model.Direction, float64, bool)          { return "", 0, false }

// either returns the bullish match first, then the bearish one.
func either(isBull, isBear bool, s float64) (model.Direction, float64, bool) {
	switch {
	case isBull:
		return up(s)
	case isBear:
		return down(s)
	}
	return miss()
}
