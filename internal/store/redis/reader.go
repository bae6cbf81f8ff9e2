package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// ErrNotFound is returned when no evaluation is cached for an instrument.
var ErrNotFound = errors.New("redis: no cached evaluation")

// Reader serves candle windows and cached evaluations. It implements
// model.CandleSource.
type Reader struct {
	client *goredis.Client
}

// NewReader connects a Reader and pings the server.
func NewReader(ctx context.Context, cfg Config) (*Reader, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("[redis-reader] connected", "addr", cfg.Addr)
	return &Reader{client: client}, nil
}

// FetchRecentCandles returns the last count candles of the instrument's
// list, oldest first. Entries that do not decode are skipped, and a bar
// pushed again with the same open time replaces the earlier copy.
func (r *Reader) FetchRecentCandles(ctx context.Context, instrument string, count, timeframe int) (model.Series, error) {
	s := model.NewSeries(instrument, timeframe, nil)
	if count <= 0 {
		return s, nil
	}
	key := CandleKey(timeframe, instrument)
	raw, err := r.client.LRange(ctx, key, int64(-count), -1).Result()
	if err != nil {
		return s, fmt.Errorf("redis: lrange %s: %w", key, err)
	}
	s.Candles = decodeCandles(raw)
	return s, nil
}

func decodeCandles(raw []string) []model.Candle {
	out := make([]model.Candle, 0, len(raw))
	for _, data := range raw {
		var c model.Candle
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			slog.Warn("[redis-reader] skipping undecodable candle", "error", err)
			continue
		}
		if n := len(out); n > 0 && !c.TS.After(out[n-1].TS) {
			if c.TS.Equal(out[n-1].TS) {
				out[n-1] = c
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// Latest returns the cached evaluation of an instrument.
func (r *Reader) Latest(ctx context.Context, instrument string) (model.Evaluation, error) {
	data, err := r.client.Get(ctx, LatestKey(instrument)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return model.Evaluation{}, ErrNotFound
	}
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("redis: get latest %s: %w", instrument, err)
	}
	var ev model.Evaluation
	if err := json.Unmarshal(data, &ev); err != nil {
		return model.Evaluation{}, fmt.Errorf("redis: decode latest %s: %w", instrument, err)
	}
	return ev, nil
}

// SubscribeEvaluations forwards every evaluation published on the signal
// channels to out. Blocks until ctx is cancelled.
func (r *Reader) SubscribeEvaluations(ctx context.Context, out chan<- model.Evaluation) error {
	pubsub := r.client.PSubscribe(ctx, SignalPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: psubscribe %s: %w", SignalPattern, err)
	}
	slog.Info("[redis-reader] subscribed", "pattern", SignalPattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev model.Evaluation
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("[redis-reader] bad evaluation payload", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Ping checks the connection.
func (r *Reader) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
