package gateway

import (
	"strconv"
	"time"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// ChannelPrefix prefixes the per-instrument channel named in envelopes.
const ChannelPrefix = "signal:"

// Broadcaster constructs envelope JSON and sends filtered messages to clients.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// Broadcast wraps ev in an envelope and sends it to every matching client.
// Clients with a full send buffer miss the message; they can catch up
// through the replay buffer.
func (b *Broadcaster) Broadcast(ev model.Evaluation) {
	now := time.Now().UTC()
	data := ev.JSON()
	channel := ChannelPrefix + ev.Instrument

	if b.hub.Latency != nil && !ev.TS.IsZero() {
		closed := ev.TS.Add(time.Duration(ev.Timeframe) * time.Second)
		if ms := float64(now.Sub(closed).Microseconds()) / 1000.0; ms >= 0 {
			b.hub.Latency.Record(ms)
		}
	}

	b.hub.mu.Lock()
	b.hub.seq++
	seq := b.hub.seq
	b.hub.latest[ev.Instrument] = latestEntry{Eval: ev, Data: data, TS: now, Seq: seq}
	b.hub.mu.Unlock()

	buf := buildEnvelope(channel, data, now, seq, false)
	b.hub.replay.Push(seq, ev.Instrument, ev.HasDecision(), buf)

	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	for client := range b.hub.clients {
		if !client.wants(ev.Instrument, ev.HasDecision()) {
			continue
		}
		select {
		case client.send <- buf:
		default:
		}
	}
}

// buildEnvelope hand-crafts
//
//	{"type":"evaluation","channel":"...","data":{...},"ts":"...","seq":N}
//
// data must already be valid JSON.
func buildEnvelope(channel string, data []byte, now time.Time, seq int64, initial bool) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+160)
	buf = append(buf, `{"type":"evaluation","channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	if initial {
		buf = append(buf, `,"initial":true`...)
	}
	buf = append(buf, '}')
	return buf
}
