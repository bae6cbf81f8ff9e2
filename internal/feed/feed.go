// Package feed is a websocket client for a JSON candle feed. It keeps the
// newest closed candles of every subscribed instrument in memory and serves
// them as a model.CandleSource.
//
// Wire format. After connecting, the client sends
//
//	{"action":"subscribe","instruments":["EURUSD"],"timeframe":300}
//
// and the server answers with messages carrying one or more closed bars:
//
//	{"type":"candles","instrument":"EURUSD","timeframe":300,"candles":[{...}]}
//
// The first message per instrument may be a history backfill; later ones
// usually hold a single bar. A message of type "error" is logged.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/ringbuf"
)

// ErrNoCandles is returned when no candle of an instrument has arrived yet.
var ErrNoCandles = errors.New("feed: no candles received")

// Message types.
const (
	TypeCandles = "candles"
	TypeError   = "error"
)

// Subscribe is the request sent after every (re)connect.
type Subscribe struct {
	Action      string   `json:"action"`
	Instruments []string `json:"instruments"`
	Timeframe   int      `json:"timeframe"`
}

// Message is one server frame.
type Message struct {
	Type       string         `json:"type"`
	Instrument string         `json:"instrument,omitempty"`
	Timeframe  int            `json:"timeframe,omitempty"`
	Candles    []model.Candle `json:"candles,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Config holds configuration for the feed client.
type Config struct {
	// URL of the candle server, e.g. "ws://localhost:8765/candles"
	URL         string
	Instruments []string
	Timeframe   int // seconds per bar

	// Capacity is the number of candles kept per instrument. Defaults to 512.
	Capacity int

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.Capacity <= 0 {
		c.Capacity = 512
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Feed streams closed candles into per-instrument rings.
type Feed struct {
	cfg       Config
	mu        sync.RWMutex
	rings     map[string]*ringbuf.Ring
	connected atomic.Bool

	// Optional hooks
	OnReconnect func()
	OnConnected func(bool)
	OnCandle    func(instrument string, c model.Candle)
}

// New validates cfg and creates a Feed. It does not connect.
func New(cfg Config) (*Feed, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("feed: parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed: url %q is not a websocket url", cfg.URL)
	}
	if len(cfg.Instruments) == 0 {
		return nil, fmt.Errorf("feed: no instruments")
	}
	if cfg.Timeframe <= 0 {
		return nil, fmt.Errorf("feed: timeframe must be positive, got %d", cfg.Timeframe)
	}
	f := &Feed{cfg: cfg, rings: make(map[string]*ringbuf.Ring, len(cfg.Instruments))}
	for _, inst := range cfg.Instruments {
		f.rings[inst] = ringbuf.New(cfg.Capacity)
	}
	return f, nil
}

// Connected reports whether a connection is currently up.
func (f *Feed) Connected() bool { return f.connected.Load() }

// Start connects and streams candles. It reconnects with exponential
// backoff and blocks until ctx is cancelled.
func (f *Feed) Start(ctx context.Context) error {
	delay := f.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		received, err := f.runOnce(ctx)
		if err == nil {
			return nil
		}
		if received {
			delay = f.cfg.ReconnectDelay
		}

		slog.Warn("[feed] disconnected, reconnecting", "error", err, "delay", delay)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancel. received reports whether any candle arrived, which resets
// the backoff.
func (f *Feed) runOnce(ctx context.Context) (received bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	f.setConnected(true)
	defer f.setConnected(false)
	slog.Info("[feed] connected", "url", f.cfg.URL, "instruments", len(f.cfg.Instruments))

	sub := Subscribe{Action: "subscribe", Instruments: f.cfg.Instruments, Timeframe: f.cfg.Timeframe}
	if err := conn.WriteJSON(sub); err != nil {
		return false, fmt.Errorf("feed: subscribe: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return received, nil
			}
			return received, err
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("[feed] parse error", "error", err)
			continue
		}
		if f.handle(msg) > 0 {
			received = true
		}
	}
}

// handle stores the candles of msg and returns how many were accepted.
func (f *Feed) handle(msg Message) int {
	switch msg.Type {
	case TypeError:
		slog.Warn("[feed] server error", "instrument", msg.Instrument, "error", msg.Error)
		return 0
	case TypeCandles:
	default:
		slog.Debug("[feed] ignoring message", "type", msg.Type)
		return 0
	}
	if msg.Timeframe != 0 && msg.Timeframe != f.cfg.Timeframe {
		slog.Warn("[feed] timeframe mismatch", "instrument", msg.Instrument, "got", msg.Timeframe, "want", f.cfg.Timeframe)
		return 0
	}

	f.mu.RLock()
	r, ok := f.rings[msg.Instrument]
	f.mu.RUnlock()
	if !ok {
		slog.Debug("[feed] candle for unsubscribed instrument", "instrument", msg.Instrument)
		return 0
	}

	accepted := 0
	for _, c := range msg.Candles {
		if !r.Push(c) {
			continue
		}
		accepted++
		if f.OnCandle != nil {
			f.OnCandle(msg.Instrument, c)
		}
	}
	return accepted
}

func (f *Feed) setConnected(v bool) {
	f.connected.Store(v)
	if f.OnConnected != nil {
		f.OnConnected(v)
	}
}

// FetchRecentCandles returns up to count of the newest candles, oldest first.
func (f *Feed) FetchRecentCandles(ctx context.Context, instrument string, count, timeframe int) (model.Series, error) {
	s := model.NewSeries(instrument, timeframe, nil)
	if err := ctx.Err(); err != nil {
		return s, err
	}
	if timeframe != f.cfg.Timeframe {
		return s, fmt.Errorf("feed: timeframe %d not subscribed (have %d)", timeframe, f.cfg.Timeframe)
	}

	f.mu.RLock()
	r, ok := f.rings[instrument]
	f.mu.RUnlock()
	if !ok || r.Len() == 0 {
		return s, fmt.Errorf("feed: %s: %w", instrument, ErrNoCandles)
	}
	s.Candles = r.Last(count)
	return s, nil
}

// Series returns every candle stored for instrument, oldest first.
func (f *Feed) Series(instrument string) model.Series {
	f.mu.RLock()
	r, ok := f.rings[instrument]
	f.mu.RUnlock()
	s := model.NewSeries(instrument, f.cfg.Timeframe, nil)
	if ok {
		s.Candles = r.Last(r.Len())
	}
	return s
}
