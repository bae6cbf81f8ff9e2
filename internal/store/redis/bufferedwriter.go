package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// BufferedPublisher wraps a publisher with a circuit breaker. While the
// circuit is open, evaluations are held locally and replayed once the
// circuit closes again.
type BufferedPublisher struct {
	inner model.ResultPublisher
	cb    *CircuitBreaker
	ctx   context.Context

	mu     sync.Mutex
	buffer []model.Evaluation
	maxBuf int // oldest evaluations are dropped past this

	// Callbacks
	OnBuffer func()          // called when an evaluation is buffered (for metrics)
	OnFlush  func(count int) // called after replaying buffered evaluations
}

// NewBufferedPublisher wraps inner. ctx bounds the replay after recovery.
func NewBufferedPublisher(ctx context.Context, inner model.ResultPublisher, cb *CircuitBreaker, maxBufferSize int) *BufferedPublisher {
	if maxBufferSize <= 0 {
		maxBufferSize = 1000
	}
	bp := &BufferedPublisher{
		inner:  inner,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]model.Evaluation, 0, 64),
		maxBuf: maxBufferSize,
	}

	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bp.flush()
		}
	}
	return bp
}

// Publish sends ev through the circuit breaker. An open circuit buffers
// the evaluation and reports success; other failures are returned.
func (bp *BufferedPublisher) Publish(ctx context.Context, ev model.Evaluation) error {
	err := bp.cb.Execute(func() error {
		return bp.inner.Publish(ctx, ev)
	})
	if errors.Is(err, ErrCircuitOpen) {
		bp.bufferEvaluation(ev)
		return nil
	}
	return err
}

func (bp *BufferedPublisher) bufferEvaluation(ev model.Evaluation) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if len(bp.buffer) >= bp.maxBuf {
		bp.buffer = bp.buffer[1:]
	}
	bp.buffer = append(bp.buffer, ev)

	if bp.OnBuffer != nil {
		bp.OnBuffer()
	}
}

// flush replays buffered evaluations in arrival order.
func (bp *BufferedPublisher) flush() {
	bp.mu.Lock()
	if len(bp.buffer) == 0 {
		bp.mu.Unlock()
		return
	}
	toFlush := bp.buffer
	bp.buffer = make([]model.Evaluation, 0, 64)
	bp.mu.Unlock()

	flushed := 0
	for _, ev := range toFlush {
		if err := bp.inner.Publish(bp.ctx, ev); err != nil {
			slog.Warn("[buffered-publisher] replay failed", "instrument", ev.Instrument, "error", err)
			continue
		}
		flushed++
	}

	slog.Info("[buffered-publisher] flushed buffered evaluations", "count", flushed, "buffered", len(toFlush))
	if bp.OnFlush != nil {
		bp.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered evaluations.
func (bp *BufferedPublisher) PendingCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.buffer)
}
