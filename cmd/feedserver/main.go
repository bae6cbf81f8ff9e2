// cmd/feedserver is a demo candle feed. It speaks the websocket protocol of
// internal/feed with simulated random-walk bars, so the scanner can run
// without a broker connection.
//
// Config (env vars):
//
//	FEED_SERVER_ADDR  listen address (default ":8765")
//	INSTRUMENTS       comma-separated instruments (default "EURUSD,GBPUSD,USDJPY,AUDUSD")
//	TIMEFRAME         seconds per bar (default 300)
//	BAR_INTERVAL_MS   wall-clock pause between simulated bars (default 2000)
//	BACKFILL          bars sent to a new subscriber (default 200)
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/feed"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/logger"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/ringbuf"
)

// ─── Simulation ───────────────────────────────────────────────────────────────

// instrument holds per-symbol simulation state.
type instrument struct {
	name    string
	price   float64
	history *ringbuf.Ring
}

type market struct {
	mu          sync.Mutex
	timeframe   int
	instruments map[string]*instrument
	rng         *rand.Rand
}

func newMarket(names []string, timeframe, history int) *market {
	m := &market{
		timeframe:   timeframe,
		instruments: make(map[string]*instrument, len(names)),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	tf := time.Duration(timeframe) * time.Second
	start := time.Now().UTC().Truncate(tf).Add(-time.Duration(history) * tf)
	for _, n := range names {
		inst := &instrument{name: n, price: startPrice(n), history: ringbuf.New(history * 2)}
		for i := 0; i < history; i++ {
			inst.history.Push(m.nextBar(inst, start.Add(time.Duration(i)*tf)))
		}
		m.instruments[n] = inst
	}
	return m
}

// nextBar walks the price through four random steps to build one bar.
func (m *market) nextBar(inst *instrument, ts time.Time) model.Candle {
	c := model.Candle{TS: ts, Open: inst.price, High: inst.price, Low: inst.price}
	p := inst.price
	for i := 0; i < 4; i++ {
		p *= 1 + (m.rng.Float64()*2-1)*0.0008
		c.High = math.Max(c.High, p)
		c.Low = math.Min(c.Low, p)
	}
	c.Close = p
	c.Volume = float64(100 + m.rng.Intn(900))
	c.HasVolume = true
	inst.price = p
	return c
}

// advance appends one bar to every instrument and returns the new bars.
func (m *market) advance() map[string]model.Candle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.Candle, len(m.instruments))
	tf := time.Duration(m.timeframe) * time.Second
	for name, inst := range m.instruments {
		last, _ := inst.history.Newest()
		c := m.nextBar(inst, last.TS.Add(tf))
		inst.history.Push(c)
		out[name] = c
	}
	return out
}

func (m *market) backfill(name string, n int) ([]model.Candle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instruments[name]
	if !ok {
		return nil, false
	}
	return inst.history.Last(n), true
}

func startPrice(name string) float64 {
	switch {
	case strings.HasSuffix(name, "JPY"):
		return 150
	case strings.HasPrefix(name, "XAU"):
		return 2300
	}
	return 1.10
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

type subscriber struct {
	send        chan []byte
	instruments map[string]bool
}

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*subscriber
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]*subscriber)}
}

func (h *hub) register(conn *websocket.Conn, instruments []string) *subscriber {
	s := &subscriber{send: make(chan []byte, 256), instruments: make(map[string]bool, len(instruments))}
	for _, i := range instruments {
		s.instruments[i] = true
	}
	h.mu.Lock()
	h.clients[conn] = s
	h.mu.Unlock()
	return s
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if s, ok := h.clients[conn]; ok {
		close(s.send)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(instrument string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.clients {
		if !s.instruments[instrument] {
			continue
		}
		select {
		case s.send <- msg:
		default: // slow client, drop the bar
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub, m *market, backfill int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("[feedserver] upgrade error", "error", err)
			return
		}
		defer conn.Close()

		var sub feed.Subscribe
		conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		if err := conn.ReadJSON(&sub); err != nil || sub.Action != "subscribe" {
			conn.WriteJSON(feed.Message{Type: feed.TypeError, Error: "expected a subscribe message"})
			return
		}
		conn.SetReadDeadline(time.Time{})
		if sub.Timeframe != m.timeframe {
			conn.WriteJSON(feed.Message{Type: feed.TypeError, Error: fmt.Sprintf("timeframe %d not served, use %d", sub.Timeframe, m.timeframe)})
			return
		}
		slog.Info("[feedserver] client subscribed", "remote", r.RemoteAddr, "instruments", sub.Instruments)

		s := h.register(conn, sub.Instruments)
		defer func() {
			h.unregister(conn)
			slog.Info("[feedserver] client disconnected", "remote", r.RemoteAddr)
		}()

		for _, name := range sub.Instruments {
			bars, ok := m.backfill(name, backfill)
			if !ok {
				conn.WriteJSON(feed.Message{Type: feed.TypeError, Instrument: name, Error: "unknown instrument"})
				continue
			}
			if err := conn.WriteJSON(feed.Message{Type: feed.TypeCandles, Instrument: name, Timeframe: m.timeframe, Candles: bars}); err != nil {
				return
			}
		}

		// Drain reads so close frames are processed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.unregister(conn)
					return
				}
			}
		}()

		for msg := range s.send {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Generator ────────────────────────────────────────────────────────────────

func runGenerator(h *hub, m *market, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		for name, c := range m.advance() {
			b, err := json.Marshal(feed.Message{Type: feed.TypeCandles, Instrument: name, Timeframe: m.timeframe, Candles: []model.Candle{c}})
			if err != nil {
				continue
			}
			h.broadcast(name, b)
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	logger.Init("feedserver", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	addr := envOrDefault("FEED_SERVER_ADDR", ":8765")
	names := strings.Split(envOrDefault("INSTRUMENTS", "EURUSD,GBPUSD,USDJPY,AUDUSD"), ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	timeframe := envIntOrDefault("TIMEFRAME", 300)
	interval := time.Duration(envIntOrDefault("BAR_INTERVAL_MS", 2000)) * time.Millisecond
	backfill := envIntOrDefault("BACKFILL", 200)

	m := newMarket(names, timeframe, backfill)
	h := newHub()
	go runGenerator(h, m, interval)

	http.HandleFunc("/candles", wsHandler(h, m, backfill))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"feedserver"}`)
	})

	slog.Info("[feedserver] listening", "addr", addr, "instruments", names, "timeframe", timeframe, "bar_interval", interval)
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("[feedserver] server error", "error", err)
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
