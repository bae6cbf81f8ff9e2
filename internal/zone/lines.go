package zone

import (
	"math"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// DynamicLine is a sloped support (rising swing lows) or resistance
// (falling swing highs). A line is good for one test: once any close after
// its second anchor breaks through, Broken is set and it never becomes
// Active again.
type DynamicLine struct {
	Kind      Kind    `json:"kind"`
	Anchors   [2]int  `json:"anchors"`
	Origin    float64 `json:"origin"` // price at the first anchor
	Slope     float64 `json:"slope"` // price per bar
	Touches   int     `json:"touches"`
	Confirmed bool    `json:"confirmed"`
	Broken    bool    `json:"broken"`
	Active    bool    `json:"active"` // confirmed, unbroken and tested by the last bar
	Price     float64 `json:"price"`  // projection at the last bar
}

// At projects the line to bar index i.
func (l DynamicLine) At(i int) float64 {
	return l.Origin + l.Slope*float64(i-l.Anchors[0])
}

func (d *Detector) lines(s model.Series) []DynamicLine {
	var out []DynamicLine
	if l, ok := d.line(s, Support); ok {
		out = append(out, l)
	}
	if l, ok := d.line(s, Resistance); ok {
		out = append(out, l)
	}
	return out
}

// line builds a line through the last two swing pivots of kind k, provided
// they slope the right way (rising lows, falling highs).
func (d *Detector) line(s model.Series, k Kind) (DynamicLine, bool) {
	piv := swings(s, k, d.cfg.SwingBars)
	if len(piv) < 2 {
		return DynamicLine{}, false
	}
	p1, p2 := piv[len(piv)-2], piv[len(piv)-1]
	if (k == Support && p2.price <= p1.price) || (k == Resistance && p2.price >= p1.price) {
		return DynamicLine{}, false
	}
	l := DynamicLine{
		Kind:    k,
		Anchors: [2]int{p1.idx, p2.idx},
		Slope:   (p2.price - p1.price) / float64(p2.idx-p1.idx),
		Origin:  p1.price,
		Touches: 2,
	}

	for _, p := range piv[:len(piv)-2] {
		if p.idx >= p1.idx {
			continue
		}
		proj := l.At(p.idx)
		if proj > 0 && math.Abs(p.price-proj)/proj <= d.cfg.LineTolerance {
			l.Touches++
		}
	}
	l.Confirmed = l.Touches >= 2

	last := s.Len() - 1
	for i := p2.idx + 1; i <= last; i++ {
		proj := l.At(i)
		c := s.Candles[i].Close
		if (k == Support && c < proj*(1-d.cfg.BreakTolerance)) || (k == Resistance && c > proj*(1+d.cfg.BreakTolerance)) {
			l.Broken = true
			break
		}
	}

	l.Price = l.At(last)
	if l.Confirmed && !l.Broken && last > p2.idx && l.Price > 0 {
		e := edge(s.Candles[last], k)
		l.Active = math.Abs(e-l.Price)/l.Price <= d.cfg.RetestTolerance
	}
	return l, true
}
