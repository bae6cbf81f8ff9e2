// Package gateway streams evaluations to websocket clients and serves the
// REST views over the latest results and the signal journal.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/markethours"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// Hub manages websocket clients and fans evaluations out to them.
// It implements model.Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry // by instrument
	seq     int64

	replay *ReplayBuffer

	// Latency from bar close to broadcast.
	Latency *LatencyTracker

	Broadcaster *Broadcaster

	// OnClientCount is called with the client count after every change.
	OnClientCount func(n int)
}

type latestEntry struct {
	Eval model.Evaluation
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

// NewHub creates an empty hub. replaySize bounds the envelopes kept for
// reconnecting clients.
func NewHub(replaySize int) *Hub {
	h := &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
		replay:  NewReplayBuffer(replaySize),
		Latency: NewLatencyTracker(10000),
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// BroadcastEvaluation sends ev to every client interested in its instrument.
func (h *Hub) BroadcastEvaluation(ev model.Evaluation) {
	h.Broadcaster.Broadcast(ev)
}

// Run broadcasts evaluations from evCh until ctx is cancelled or evCh is closed.
func (h *Hub) Run(ctx context.Context, evCh <-chan model.Evaluation) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evCh:
			if !ok {
				return
			}
			h.BroadcastEvaluation(ev)
		}
	}
}

// HandleWSRequest registers an upgraded connection. A positive lastSeq
// replays the buffered envelopes after it; otherwise the client receives
// the latest evaluation of every instrument.
func (h *Hub) HandleWSRequest(conn *websocket.Conn, lastSeq int64) {
	client := newClient(conn, h)
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.clientCountChanged(count)

	slog.Info("[gateway] ws client connected", "clients", count)

	go client.sendInitialState(lastSeq)
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()
	h.clientCountChanged(count)
}

func (h *Hub) clientCountChanged(n int) {
	if h.OnClientCount != nil {
		h.OnClientCount(n)
	}
}

// Latest returns the newest broadcast evaluation of an instrument.
func (h *Hub) Latest(instrument string) (model.Evaluation, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.latest[instrument]
	return e.Eval, ok
}

// LatestAll returns the newest evaluation of every instrument seen.
func (h *Hub) LatestAll() map[string]model.Evaluation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]model.Evaluation, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Eval
	}
	return cp
}

// ReplayRange returns buffered envelopes with seq in [fromSeq, toSeq].
func (h *Hub) ReplayRange(fromSeq, toSeq int64) [][]byte {
	entries := h.replay.Range(fromSeq, toSeq)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// Seq returns the sequence number of the last broadcast.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Status is the periodic status frame sent to every client.
type Status struct {
	Type          string  `json:"type"`
	SessionOpen   bool    `json:"session_open"`
	SessionStatus string  `json:"session_status"`
	Clients       int     `json:"clients"`
	Seq           int64   `json:"seq"`
	LatencyP50    float64 `json:"latency_p50_ms"`
	LatencyP95    float64 `json:"latency_p95_ms"`
	LatencyP99    float64 `json:"latency_p99_ms"`
	TS            string  `json:"ts"`
}

// StatusAt builds the status frame for now.
func (h *Hub) StatusAt(session *markethours.Session, now time.Time) Status {
	st := Status{
		Type:    "status",
		Clients: h.ClientCount(),
		Seq:     h.Seq(),
		TS:      now.UTC().Format(time.RFC3339Nano),
	}
	if session != nil {
		st.SessionOpen = session.IsOpen(now)
		st.SessionStatus = session.StatusString(now)
	}
	if h.Latency != nil {
		l := h.Latency.Summary()
		st.LatencyP50, st.LatencyP95, st.LatencyP99 = l.P50, l.P95, l.P99
	}
	return st
}

// StartStatusBroadcast sends a status frame to all clients every interval.
func (h *Hub) StartStatusBroadcast(ctx context.Context, session *markethours.Session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			frame, _ := json.Marshal(h.StatusAt(session, now))
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}
