package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Subscription filter. No instruments means every instrument.
	subMu         sync.RWMutex
	instruments   map[string]bool
	decisionsOnly bool
}

func newClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		conn:        conn,
		send:        make(chan []byte, 256),
		hub:         hub,
		instruments: make(map[string]bool),
	}
}

// wants reports whether an evaluation of instrument passes the filter.
func (c *Client) wants(instrument string, decision bool) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if c.decisionsOnly && !decision {
		return false
	}
	return len(c.instruments) == 0 || c.instruments[instrument]
}

// sendInitialState replays what the client missed after lastSeq, or sends
// the latest evaluation per instrument when lastSeq is zero or too old.
func (c *Client) sendInitialState(lastSeq int64) {
	if lastSeq > 0 {
		entries, gapless := c.hub.replay.After(lastSeq)
		if gapless {
			for _, e := range entries {
				if c.wants(e.Instrument, e.Decision) {
					c.enqueue(e.Data)
				}
			}
			return
		}
	}

	c.hub.mu.RLock()
	snapshot := make([]latestEntry, 0, len(c.hub.latest))
	for _, e := range c.hub.latest {
		snapshot = append(snapshot, e)
	}
	c.hub.mu.RUnlock()

	for _, e := range snapshot {
		if !c.wants(e.Eval.Instrument, e.Eval.HasDecision()) {
			continue
		}
		c.enqueue(buildEnvelope(ChannelPrefix+e.Eval.Instrument, e.Data, e.TS, e.Seq, true))
	}
}

// enqueue queues a frame unless the client is gone or its buffer is full.
func (c *Client) enqueue(frame []byte) bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		slog.Debug("[gateway] client send buffer full, dropping frame")
		return false
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		slog.Info("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var base struct {
			Type string `json:"type"`
			Ping int64  `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil {
			SendError(c, "", "invalid JSON")
			continue
		}

		switch base.Type {
		case TypeSubscribe:
			var sub SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				SendError(c, "", "invalid SUBSCRIBE: "+err.Error())
				continue
			}
			c.handleSubscribe(sub)

		case TypeUnsubscribe:
			var unsub UnsubscribeMsg
			if err := json.Unmarshal(msg, &unsub); err != nil {
				SendError(c, "", "invalid UNSUBSCRIBE: "+err.Error())
				continue
			}
			c.handleUnsubscribe(unsub)

		default:
			if base.Ping > 0 {
				SendJSON(c, Pong{Type: "pong", Ping: base.Ping, ServerTS: time.Now().UnixMilli()})
				continue
			}
			SendError(c, "", "unknown message type "+base.Type)
		}
	}
}

func (c *Client) handleSubscribe(msg SubscribeMsg) {
	c.subMu.Lock()
	for _, inst := range msg.Instruments {
		if inst != "" {
			c.instruments[inst] = true
		}
	}
	c.decisionsOnly = msg.DecisionsOnly
	c.subMu.Unlock()

	slog.Info("[gateway] client subscribed", "instruments", msg.Instruments, "decisions_only", msg.DecisionsOnly)
	SendJSON(c, Ack{Type: "SUBSCRIBED", ReqID: msg.ReqID, Instruments: c.subscriptions()})
}

func (c *Client) handleUnsubscribe(msg UnsubscribeMsg) {
	c.subMu.Lock()
	for _, inst := range msg.Instruments {
		delete(c.instruments, inst)
	}
	c.subMu.Unlock()

	SendJSON(c, Ack{Type: "UNSUBSCRIBED", ReqID: msg.ReqID, Instruments: c.subscriptions()})
}

func (c *Client) subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	out := make([]string, 0, len(c.instruments))
	for inst := range c.instruments {
		out = append(out, inst)
	}
	return out
}
