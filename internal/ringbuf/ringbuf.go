// Package ringbuf keeps the most recent candles of one instrument in a
// fixed-size ring. The feed writes closed candles while scanner workers
// read windows, so every method is safe for concurrent use.
package ringbuf

import (
	"sync"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// Ring is a bounded candle history that overwrites its oldest bar when full.
// Capacity is a power of two for bitwise modulo.
type Ring struct {
	mu   sync.RWMutex
	buf  []model.Candle
	mask uint64
	head uint64 // total pushes

	evicted uint64
}

// New creates a ring. capacity is rounded up to the next power of two;
// the minimum is 2.
func New(capacity int) *Ring {
	n := nextPow2(capacity)
	if n < 2 {
		n = 2
	}
	return &Ring{
		buf:  make([]model.Candle, n),
		mask: uint64(n - 1),
	}
}

// Push appends a closed candle. A candle with the same open time as the
// newest one replaces it; an older one is ignored and Push returns false.
func (r *Ring) Push(c model.Candle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.head > 0 {
		last := &r.buf[(r.head-1)&r.mask]
		switch {
		case c.TS.Equal(last.TS):
			*last = c
			return true
		case c.TS.Before(last.TS):
			return false
		}
	}
	if r.head >= uint64(len(r.buf)) {
		r.evicted++
	}
	r.buf[r.head&r.mask] = c
	r.head++
	return true
}

// Last returns up to n of the newest candles, oldest first, as a copy.
func (r *Ring) Last(n int) []model.Candle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.size()
	if n > size || n < 0 {
		n = size
	}
	out := make([]model.Candle, n)
	start := r.head - uint64(n)
	for i := range out {
		out[i] = r.buf[(start+uint64(i))&r.mask]
	}
	return out
}

// Newest returns the most recent candle.
func (r *Ring) Newest() (model.Candle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.head == 0 {
		return model.Candle{}, false
	}
	return r.buf[(r.head-1)&r.mask], true
}

// Len returns the number of stored candles.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size()
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Evicted returns how many candles were overwritten.
func (r *Ring) Evicted() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.evicted
}

func (r *Ring) size() int {
	return int(min(r.head, uint64(len(r.buf))))
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
