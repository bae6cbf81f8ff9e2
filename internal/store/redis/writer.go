// Package redis publishes evaluations to Redis and serves candle windows
// that another process appends to Redis lists.
//
// Key layout:
//
//	candles:{tf}s:{instrument}       list of candle JSON, oldest first
//	pub:candle:{tf}s:{instrument}    pubsub, one message per appended candle
//	signal:latest:{instrument}       latest evaluation JSON (TTL)
//	eval:{tf}s:{instrument}          stream of evaluations (trimmed)
//	pub:signal:{instrument}          pubsub, one message per evaluation
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unsafe"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

const (
	defaultLatestTTL = 30 * time.Minute
	evalStreamMaxLen = 500
	// DefaultCandleCap bounds each candle list.
	DefaultCandleCap = 1000
)

// CandleKey returns the list holding candles of one instrument and timeframe.
func CandleKey(timeframe int, instrument string) string {
	return "candles:" + strconv.Itoa(timeframe) + "s:" + instrument
}

// CandleChannel returns the pubsub channel announcing appended candles.
func CandleChannel(timeframe int, instrument string) string {
	return "pub:candle:" + strconv.Itoa(timeframe) + "s:" + instrument
}

// LatestKey returns the key caching the newest evaluation of an instrument.
func LatestKey(instrument string) string { return "signal:latest:" + instrument }

// EvalStreamKey returns the stream keeping recent evaluations.
func EvalStreamKey(timeframe int, instrument string) string {
	return "eval:" + strconv.Itoa(timeframe) + "s:" + instrument
}

// SignalChannel returns the pubsub channel for evaluations of an instrument.
func SignalChannel(instrument string) string { return "pub:signal:" + instrument }

// SignalPattern matches every SignalChannel.
const SignalPattern = "pub:signal:*"

// Config configures the Redis client.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

func newClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Writer publishes evaluations and appends candles. It implements
// model.ResultPublisher.
type Writer struct {
	client    *goredis.Client
	candleCap int64
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New connects a Writer and pings the server.
func New(ctx context.Context, cfg Config) (*Writer, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("[redis] writer connected", "addr", cfg.Addr)
	return &Writer{client: client, candleCap: DefaultCandleCap}, nil
}

// Publish caches ev as the latest result of its instrument, appends it to
// the evaluation stream and announces it on the signal channel, all in one
// pipeline.
func (w *Writer) Publish(ctx context.Context, ev model.Evaluation) error {
	jsonBytes := ev.JSON()
	// Zero-copy []byte→string (safe: jsonBytes is not mutated after this)
	jsonData := *(*string)(unsafe.Pointer(&jsonBytes))

	pipe := w.client.Pipeline()
	pipe.Set(ctx, LatestKey(ev.Instrument), jsonData, defaultLatestTTL)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: EvalStreamKey(ev.Timeframe, ev.Instrument),
		MaxLen: evalStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, SignalChannel(ev.Instrument), jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish %s: %w", ev.Instrument, err)
	}
	return nil
}

// AppendCandle pushes a closed candle onto its list, trims the list to the
// configured cap and announces it.
func (w *Writer) AppendCandle(ctx context.Context, instrument string, timeframe int, c model.Candle) error {
	key := CandleKey(timeframe, instrument)
	jsonData := string(c.JSON())

	pipe := w.client.Pipeline()
	pipe.RPush(ctx, key, jsonData)
	pipe.LTrim(ctx, key, -w.candleCap, -1)
	pipe.Publish(ctx, CandleChannel(timeframe, instrument), jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: append candle %s: %w", key, err)
	}
	return nil
}

// Run appends candles from ch until ctx is cancelled or ch is closed.
func (w *Writer) Run(ctx context.Context, timeframe int, ch <-chan model.Series) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			for _, c := range s.Candles {
				if err := w.AppendCandle(ctx, s.Instrument, timeframe, c); err != nil {
					slog.Error("[redis] append failed", "instrument", s.Instrument, "error", err)
				}
			}
		}
	}
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
