// Package zone finds horizontal support/resistance zones, polarity flips and
// sloped trend lines in a candle window.
package zone

import (
	"math"
	"sort"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// Kind is the role a price level plays.
type Kind string

const (
	Support    Kind = "support"
	Resistance Kind = "resistance"
)

// Opposite returns the other role.
func (k Kind) Opposite() Kind {
	if k == Support {
		return Resistance
	}
	return Support
}

// Tier grades a zone by its touches. Single-touch ("weak") clusters never
// leave the detector.
type Tier string

const (
	TierNormal Tier = "normal"
	TierStrong Tier = "strong"
)

// Zone is a clustered horizontal level.
type Zone struct {
	Kind          Kind    `json:"kind"`
	Price         float64 `json:"price"`
	Touches       int     `json:"touches"`
	FirstTouch    int     `json:"first_touch"`
	LastTouch     int     `json:"last_touch"`
	Tier          Tier    `json:"tier"`
	KeyLevel      bool    `json:"key_level"`
	IsFlip        bool    `json:"is_flip"`
	Recency       float64 `json:"recency"`
	Proximity     float64 `json:"proximity"`
	Effectiveness float64 `json:"effectiveness"`
}

// Flip records a broken level that was retested from the other side.
type Flip struct {
	Price       float64 `json:"price"`
	From        Kind    `json:"from"`
	To          Kind    `json:"to"`
	BreakIndex  int     `json:"break_index"`
	RetestIndex int     `json:"retest_index"`
}

// Result is everything the detector found in one window.
type Result struct {
	Supports      []Zone          `json:"supports"`
	Resistances   []Zone          `json:"resistances"`
	Flips         []Flip          `json:"flips"`
	Lines         []DynamicLine   `json:"lines"`
	Effectiveness float64         `json:"effectiveness"`
	Direction     model.Direction `json:"direction"`
}

// Available reports whether any zone or line was found.
func (r Result) Available() bool {
	return len(r.Supports)+len(r.Resistances)+len(r.Lines) > 0
}

// All returns supports followed by resistances.
func (r Result) All() []Zone {
	out := make([]Zone, 0, len(r.Supports)+len(r.Resistances))
	out = append(out, r.Supports...)
	return append(out, r.Resistances...)
}

// Best returns the highest scoring zone of kind k.
func (r Result) Best(k Kind) (Zone, bool) {
	zs := r.Supports
	if k == Resistance {
		zs = r.Resistances
	}
	var best Zone
	found := false
	for _, z := range zs {
		if !found || z.Effectiveness > best.Effectiveness {
			best, found = z, true
		}
	}
	return best, found
}

// Detector builds zone results. It holds only configuration.
type Detector struct {
	cfg Config
}

// NewDetector returns a detector using cfg with defaults filled in.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Detect analyzes s. Windows shorter than twice the extreme window give an
// empty neutral result.
func (d *Detector) Detect(s model.Series) Result {
	res := Result{Direction: model.Neutral}
	n := s.Len()
	if n < 2*d.cfg.Window || n == 0 {
		return res
	}
	price := s.Last().Close

	var zones []Zone
	for _, k := range []Kind{Support, Resistance} {
		for _, c := range d.cluster(swings(s, k, d.cfg.Window)) {
			if c.touches < d.cfg.MinTouches {
				continue
			}
			z := Zone{
				Kind:       k,
				Price:      c.mean,
				Touches:    c.touches,
				FirstTouch: c.first,
				LastTouch:  c.last,
				Tier:       TierNormal,
			}
			if c.touches >= d.cfg.KeyTouches {
				z.Tier, z.KeyLevel = TierStrong, true
			}
			if f, ok := d.flip(s, z); ok {
				res.Flips = append(res.Flips, f)
				z.Kind = f.To
				z.IsFlip, z.KeyLevel, z.Tier = true, true, TierStrong
				z.LastTouch = max(z.LastTouch, f.RetestIndex)
			}
			zones = append(zones, d.score(z, n, price))
		}
	}

	for _, z := range zones {
		if z.Kind == Support {
			res.Supports = append(res.Supports, z)
		} else {
			res.Resistances = append(res.Resistances, z)
		}
	}
	byEffectiveness(res.Supports)
	byEffectiveness(res.Resistances)

	res.Lines = d.lines(s)
	res.Effectiveness = d.total(res)
	res.Direction = d.direction(res, price)
	return res
}

// score fills recency, proximity and effectiveness of z.
func (d *Detector) score(z Zone, n int, price float64) Zone {
	since := float64(n - 1 - z.LastTouch)
	z.Recency = math.Max(0, 100-d.cfg.RecencyDecay*since)
	if price > 0 {
		z.Proximity = math.Max(0, 100-math.Abs(price-z.Price)/price*d.cfg.ProximityScale)
	}
	eff := math.Min(float64(z.Touches)*d.cfg.TouchPoints, d.cfg.TouchCap)
	if z.KeyLevel {
		eff += d.cfg.KeyBonus
	}
	eff += d.cfg.RecencyWeight*z.Recency + d.cfg.ProximityWeight*z.Proximity
	z.Effectiveness = math.Min(eff, 100)
	return z
}

func (d *Detector) total(r Result) float64 {
	var total float64
	bs, hasS := r.Best(Support)
	br, hasR := r.Best(Resistance)
	if hasS {
		total += d.cfg.SideWeight * bs.Effectiveness
	}
	if hasR {
		total += d.cfg.SideWeight * br.Effectiveness
	}
	if hasS && hasR {
		total += d.cfg.BothBonus
	}
	total += math.Min(d.cfg.FlipBonus*float64(len(r.Flips)), d.cfg.FlipCap)
	for _, l := range r.Lines {
		if l.Active {
			total += d.cfg.LineBonus
		}
	}
	return math.Min(total, 100)
}

// direction lets the nearest zone decide when it is strong enough. An
// active dynamic line decides when no zone does.
func (d *Detector) direction(r Result, price float64) model.Direction {
	var nearest *Zone
	all := r.All()
	for i := range all {
		if nearest == nil || math.Abs(all[i].Price-price) < math.Abs(nearest.Price-price) {
			nearest = &all[i]
		}
	}
	if nearest != nil && nearest.Effectiveness > d.cfg.DirectionMin {
		if nearest.Kind == Support {
			return model.Bullish
		}
		return model.Bearish
	}
	for _, l := range r.Lines {
		if l.Active {
			if l.Kind == Support {
				return model.Bullish
			}
			return model.Bearish
		}
	}
	return model.Neutral
}

type point struct {
	idx   int
	price float64
}

// swings returns the local lows (support) or highs (resistance) within
// ±w bars. Earlier bars must be strictly less extreme, so a plateau
// contributes a single touch.
func swings(s model.Series, k Kind, w int) []point {
	var out []point
	for i := w; i < s.Len()-w; i++ {
		c := s.Candles[i]
		ok := true
		for j := i - w; j <= i+w && ok; j++ {
			if j != i {
				ok = beyond(s.Candles[j], c, k, j < i)
			}
		}
		if ok {
			out = append(out, point{idx: i, price: edge(c, k)})
		}
	}
	return out
}

// beyond reports whether c is at least as extreme as other for kind k,
// strictly so when strict is set.
func beyond(other, c model.Candle, k Kind, strict bool) bool {
	o, p := edge(other, k), edge(c, k)
	if k == Resistance {
		o, p = -o, -p
	}
	if strict {
		return p < o
	}
	return p <= o
}

// edge is the low for supports and the high for resistances.
func edge(c model.Candle, k Kind) float64 {
	if k == Resistance {
		return c.High
	}
	return c.Low
}

type cluster struct {
	mean    float64
	sum     float64
	touches int
	first   int
	last    int
}

// cluster merges points within the relative tolerance of a running mean.
func (d *Detector) cluster(pts []point) []cluster {
	var cs []cluster
	for _, p := range pts {
		merged := false
		for i := range cs {
			c := &cs[i]
			if c.mean > 0 && math.Abs(p.price-c.mean)/c.mean <= d.cfg.Tolerance {
				c.sum += p.price
				c.touches++
				c.mean = c.sum / float64(c.touches)
				c.last = p.idx
				merged = true
				break
			}
		}
		if !merged {
			cs = append(cs, cluster{mean: p.price, sum: p.price, touches: 1, first: p.idx, last: p.idx})
		}
	}
	return cs
}

// flip looks for a close beyond z after its first touch followed by a later
// bar that comes back to the level from the new side and holds.
func (d *Detector) flip(s model.Series, z Zone) (Flip, bool) {
	tol := d.cfg.RetestTolerance
	L := z.Price
	brk := -1
	for i := z.FirstTouch + 1; i < s.Len(); i++ {
		c := s.Candles[i]
		if brk < 0 {
			if (z.Kind == Resistance && c.Close > L*(1+tol)) || (z.Kind == Support && c.Close < L*(1-tol)) {
				brk = i
			}
			continue
		}
		if z.Kind == Resistance && c.Low <= L*(1+tol) && c.Close >= L {
			return Flip{Price: L, From: Resistance, To: Support, BreakIndex: brk, RetestIndex: i}, true
		}
		if z.Kind == Support && c.High >= L*(1-tol) && c.Close <= L {
			return Flip{Price: L, From: Support, To: Resistance, BreakIndex: brk, RetestIndex: i}, true
		}
	}
	return Flip{}, false
}

func byEffectiveness(zs []Zone) {
	sort.SliceStable(zs, func(i, j int) bool { return zs[i].Effectiveness > zs[j].Effectiveness })
}
