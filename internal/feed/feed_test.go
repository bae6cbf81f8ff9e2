package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func bars(n int, from time.Time) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		p := 1.1 + float64(i)*0.001
		out[i] = model.Candle{TS: from.Add(time.Duration(i) * 5 * time.Minute), Open: p, High: p + 0.002, Low: p - 0.001, Close: p + 0.001}
	}
	return out
}

// candleServer upgrades every request, records the subscription and runs
// serve on the connection.
func candleServer(t *testing.T, serve func(conn *websocket.Conn, sub Subscribe)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var subs atomic.Int32
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub Subscribe
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subs.Add(1)
		serve(conn, sub)
	}))
	t.Cleanup(srv.Close)
	return srv, &subs
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ────────────────────────────────────────────────────────────────────────────
// Configuration
// ────────────────────────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"http scheme", Config{URL: "http://x", Instruments: []string{"EURUSD"}, Timeframe: 300}},
		{"no instruments", Config{URL: "ws://x", Timeframe: 300}},
		{"zero timeframe", Config{URL: "ws://x", Instruments: []string{"EURUSD"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Streaming
// ────────────────────────────────────────────────────────────────────────────

func TestFeed_StreamsCandles(t *testing.T) {
	history := bars(5, t0)
	srv, _ := candleServer(t, func(conn *websocket.Conn, sub Subscribe) {
		if sub.Action != "subscribe" || sub.Timeframe != 300 || len(sub.Instruments) != 1 {
			conn.WriteJSON(Message{Type: TypeError, Error: "bad subscribe"})
			return
		}
		conn.WriteJSON(Message{Type: TypeCandles, Instrument: "EURUSD", Timeframe: 300, Candles: history})
		conn.WriteJSON(Message{Type: TypeCandles, Instrument: "XAUUSD", Timeframe: 300, Candles: bars(1, t0)})
		conn.WriteJSON(Message{Type: TypeCandles, Instrument: "EURUSD", Timeframe: 60, Candles: bars(1, t0)})
		conn.WriteJSON(Message{Type: TypeCandles, Instrument: "EURUSD", Timeframe: 300, Candles: bars(1, t0.Add(25*time.Minute))})
		time.Sleep(time.Second)
	})

	f, err := New(Config{URL: wsURL(srv), Instruments: []string{"EURUSD"}, Timeframe: 300})
	if err != nil {
		t.Fatal(err)
	}
	var seen atomic.Int32
	f.OnCandle = func(string, model.Candle) { seen.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Start(ctx)

	waitFor(t, "six candles", func() bool { return seen.Load() == 6 })
	if !f.Connected() {
		t.Error("expected Connected while streaming")
	}

	s, err := f.FetchRecentCandles(ctx, "EURUSD", 3, 300)
	if err != nil {
		t.Fatalf("FetchRecentCandles: %v", err)
	}
	if s.Len() != 3 || !s.Last().TS.Equal(t0.Add(25*time.Minute)) {
		t.Errorf("window = %d bars ending %v", s.Len(), s.Last().TS)
	}
	if all := f.Series("EURUSD"); all.Len() != 6 {
		t.Errorf("stored = %d, want 6", all.Len())
	}
}

func TestFeed_FetchErrors(t *testing.T) {
	f, err := New(Config{URL: "ws://localhost:1", Instruments: []string{"EURUSD"}, Timeframe: 300})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := f.FetchRecentCandles(ctx, "EURUSD", 10, 300); !errors.Is(err, ErrNoCandles) {
		t.Errorf("empty ring err = %v, want ErrNoCandles", err)
	}
	if _, err := f.FetchRecentCandles(ctx, "GBPUSD", 10, 300); !errors.Is(err, ErrNoCandles) {
		t.Errorf("unknown instrument err = %v, want ErrNoCandles", err)
	}
	if _, err := f.FetchRecentCandles(ctx, "EURUSD", 10, 60); err == nil {
		t.Error("expected timeframe error")
	}
}

func TestFeed_Reconnects(t *testing.T) {
	var conns atomic.Int32
	srv, subs := candleServer(t, func(conn *websocket.Conn, sub Subscribe) {
		n := conns.Add(1)
		conn.WriteJSON(Message{Type: TypeCandles, Instrument: "EURUSD", Timeframe: 300,
			Candles: bars(1, t0.Add(time.Duration(n)*5*time.Minute))})
		// Drop the first connection right away.
		if n > 1 {
			time.Sleep(time.Second)
		}
	})

	f, _ := New(Config{URL: wsURL(srv), Instruments: []string{"EURUSD"}, Timeframe: 300,
		ReconnectDelay: 10 * time.Millisecond})
	var reconnects atomic.Int32
	f.OnReconnect = func() { reconnects.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Start(ctx)
		close(done)
	}()

	waitFor(t, "second subscription", func() bool { return subs.Load() >= 2 })
	waitFor(t, "two candles", func() bool { return f.Series("EURUSD").Len() >= 2 })
	if reconnects.Load() < 1 {
		t.Error("OnReconnect not called")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if f.Connected() {
		t.Error("still connected after shutdown")
	}
}
