package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// EvaluationSubscriber streams evaluations published by another process.
type EvaluationSubscriber interface {
	SubscribeEvaluations(ctx context.Context, out chan<- model.Evaluation) error
}

// PubSubRouter feeds evaluations from a subscriber into the hub, so a
// gateway process can serve clients for a scanner running elsewhere.
type PubSubRouter struct {
	hub *Hub
	sub EvaluationSubscriber

	// RetryDelay is the pause before resubscribing after an error.
	RetryDelay time.Duration
}

// NewPubSubRouter creates a PubSubRouter backed by the given Hub.
func NewPubSubRouter(hub *Hub, sub EvaluationSubscriber) *PubSubRouter {
	return &PubSubRouter{hub: hub, sub: sub, RetryDelay: 2 * time.Second}
}

// Run subscribes and broadcasts until ctx is cancelled, resubscribing
// after errors.
func (r *PubSubRouter) Run(ctx context.Context) {
	evCh := make(chan model.Evaluation, 256)
	go r.hub.Run(ctx, evCh)

	for {
		err := r.sub.SubscribeEvaluations(ctx, evCh)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("[gateway] subscription ended, retrying", "error", err, "delay", r.RetryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.RetryDelay):
		}
	}
}
