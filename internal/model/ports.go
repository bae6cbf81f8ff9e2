package model

import (
	"context"
	"time"
)

// ── Port Interfaces ──
// These interfaces decouple the scanner from concrete transports and storage
// (websocket feed, Redis, SQLite). Each implementation satisfies one or more of them.

// CandleSource returns the most recent closed candles for an instrument,
// oldest first. Implementations may return fewer than count candles.
type CandleSource interface {
	FetchRecentCandles(ctx context.Context, instrument string, count, timeframe int) (Series, error)
}

// ResultPublisher makes an evaluation visible to other processes
// (latest-value cache plus a pub/sub fan-out).
type ResultPublisher interface {
	Publish(ctx context.Context, ev Evaluation) error
}

// SignalJournal persists emitted signals and their outcomes.
type SignalJournal interface {
	// Record stores a new pending signal.
	Record(ctx context.Context, sig Signal) error

	// Pending returns unsettled signals whose expiry is at or before now.
	Pending(ctx context.Context, now time.Time) ([]Signal, error)

	// Settle stores the outcome of a previously recorded signal.
	Settle(ctx context.Context, sig Signal) error
}

// SignalReader serves journal queries for reporting.
type SignalReader interface {
	Recent(ctx context.Context, instrument string, limit int) ([]Signal, error)
	Stats(ctx context.Context, since time.Time) ([]InstrumentStats, error)
}

// Broadcaster pushes evaluations to connected live clients.
type Broadcaster interface {
	BroadcastEvaluation(ev Evaluation)
}
