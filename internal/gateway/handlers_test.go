package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

type fakeLatest map[string]model.Evaluation

func (f fakeLatest) Latest(_ context.Context, inst string) (model.Evaluation, error) {
	if ev, ok := f[inst]; ok {
		return ev, nil
	}
	return model.Evaluation{}, errors.New("not cached")
}

type fakeSignals struct {
	signals  []model.Signal
	stats    []model.InstrumentStats
	gotInst  string
	gotLimit int
	gotSince time.Time
}

func (f *fakeSignals) Recent(_ context.Context, inst string, limit int) ([]model.Signal, error) {
	f.gotInst, f.gotLimit = inst, limit
	return f.signals, nil
}

func (f *fakeSignals) Stats(_ context.Context, since time.Time) ([]model.InstrumentStats, error) {
	f.gotSince = since
	return f.stats, nil
}

func newTestServer(t *testing.T, hub *Hub, deps Deps) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	RegisterRoutes(mux, hub, deps)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// ────────────────────────────────────────────────────────────────────────────
// REST
// ────────────────────────────────────────────────────────────────────────────

func TestLatestRoute(t *testing.T) {
	hub := NewHub(10)
	hub.BroadcastEvaluation(evaluation("GBPUSD", model.DecisionNone))
	srv := newTestServer(t, hub, Deps{Latest: fakeLatest{"EURUSD": evaluation("EURUSD", model.DecisionCall)}})

	tests := []struct {
		path     string
		wantCode int
		wantInst string
	}{
		{"/api/latest/EURUSD", 200, "EURUSD"}, // from the store
		{"/api/latest/GBPUSD", 200, "GBPUSD"}, // hub fallback
		{"/api/latest/XAUUSD", 404, ""},
		{"/api/latest/", 400, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var ev model.Evaluation
			code := getJSON(t, srv.URL+tt.path, &ev)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if tt.wantInst != "" && ev.Instrument != tt.wantInst {
				t.Errorf("instrument = %q", ev.Instrument)
			}
		})
	}

	var all map[string]model.Evaluation
	if getJSON(t, srv.URL+"/api/latest", &all); len(all) != 1 {
		t.Errorf("/api/latest = %v", all)
	}
}

func TestSignalsAndStatsRoutes(t *testing.T) {
	fs := &fakeSignals{
		signals: []model.Signal{{ID: "a", Instrument: "EURUSD", Decision: model.DecisionCall}},
		stats:   []model.InstrumentStats{{Instrument: "EURUSD", Total: 4, Won: 3, Lost: 1}},
	}
	srv := newTestServer(t, NewHub(10), Deps{Signals: fs})

	var sigs SignalsOut
	if code := getJSON(t, srv.URL+"/api/signals?instrument=EURUSD&limit=5000", &sigs); code != 200 {
		t.Fatalf("signals code = %d", code)
	}
	if sigs.Count != 1 || fs.gotInst != "EURUSD" || fs.gotLimit != 50 {
		t.Errorf("signals = %+v inst=%q limit=%d", sigs, fs.gotInst, fs.gotLimit)
	}

	var stats []StatsOut
	before := time.Now()
	if code := getJSON(t, srv.URL+"/api/stats?since=2h", &stats); code != 200 {
		t.Fatalf("stats code = %d", code)
	}
	if len(stats) != 1 || stats[0].WinRate != 75 || stats[0].Won != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if d := before.Sub(fs.gotSince); d < 2*time.Hour-time.Second || d > 2*time.Hour+time.Second {
		t.Errorf("since = %v before now", d)
	}

	if code := getJSON(t, srv.URL+"/api/stats?since=yesterday", nil); code != 400 {
		t.Errorf("bad since code = %d", code)
	}
}

func TestRoutes_WithoutJournal(t *testing.T) {
	srv := newTestServer(t, NewHub(10), Deps{})
	for _, path := range []string{"/api/signals", "/api/stats"} {
		if code := getJSON(t, srv.URL+path, nil); code != http.StatusServiceUnavailable {
			t.Errorf("%s code = %d", path, code)
		}
	}
}

func TestMissedRoute(t *testing.T) {
	hub := NewHub(10)
	for i := 0; i < 4; i++ {
		hub.BroadcastEvaluation(evaluation("EURUSD", model.DecisionNone))
	}
	srv := newTestServer(t, hub, Deps{})

	var out MissedOut
	if code := getJSON(t, srv.URL+"/api/missed?from=2&to=3", &out); code != 200 {
		t.Fatalf("code = %d", code)
	}
	if len(out.Envelopes) != 2 {
		t.Fatalf("envelopes = %d", len(out.Envelopes))
	}
	var env envelope
	json.Unmarshal(out.Envelopes[0], &env)
	if env.Seq != 2 {
		t.Errorf("first seq = %d", env.Seq)
	}
	if code := getJSON(t, srv.URL+"/api/missed?from=3&to=2", nil); code != 400 {
		t.Errorf("inverted range code = %d", code)
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", now.Add(-24 * time.Hour), false},
		{"30m", now.Add(-30 * time.Minute), false},
		{"2024-03-01T00:00:00Z", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"-1h", time.Time{}, true},
		{"soon", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseSince(tt.in, now)
		if (err != nil) != tt.wantErr || !got.Equal(tt.want) {
			t.Errorf("parseSince(%q) = %v, %v", tt.in, got, err)
		}
	}
}

// ────────────────────────────────────────────────────────────────────────────
// WebSocket
// ────────────────────────────────────────────────────────────────────────────

func readFrame(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestWebSocket_SubscribeAndStream(t *testing.T) {
	hub := NewHub(10)
	srv := newTestServer(t, hub, Deps{})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(SubscribeMsg{Type: TypeSubscribe, ReqID: "1", Instruments: []string{"EURUSD"}}); err != nil {
		t.Fatal(err)
	}
	var ack Ack
	readFrame(t, conn, &ack)
	if ack.Type != "SUBSCRIBED" || ack.ReqID != "1" || len(ack.Instruments) != 1 {
		t.Fatalf("ack = %+v", ack)
	}

	hub.BroadcastEvaluation(evaluation("GBPUSD", model.DecisionCall))
	hub.BroadcastEvaluation(evaluation("EURUSD", model.DecisionPut))

	var env envelope
	readFrame(t, conn, &env)
	if env.Data.Instrument != "EURUSD" || env.Data.Decision != model.DecisionPut || env.Seq != 2 {
		t.Errorf("envelope = %+v", env)
	}

	conn.WriteJSON(map[string]int64{"ping": 7})
	var pong Pong
	readFrame(t, conn, &pong)
	if pong.Type != "pong" || pong.Ping != 7 {
		t.Errorf("pong = %+v", pong)
	}

	conn.WriteJSON(map[string]string{"type": "BOGUS"})
	var e ErrorResponse
	readFrame(t, conn, &e)
	if e.Type != "ERROR" {
		t.Errorf("error frame = %+v", e)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("clients = %d", hub.ClientCount())
	}
}

func TestWebSocket_ResumesFromLastSeq(t *testing.T) {
	hub := NewHub(10)
	for _, inst := range []string{"A", "B", "C"} {
		hub.BroadcastEvaluation(evaluation(inst, model.DecisionNone))
	}
	srv := newTestServer(t, hub, Deps{})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?last_seq=1", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	for _, want := range []int64{2, 3} {
		var env envelope
		readFrame(t, conn, &env)
		if env.Seq != want {
			t.Errorf("seq = %d, want %d", env.Seq, want)
		}
	}
}

// ────────────────────────────────────────────────────────────────────────────
// PubSub relay
// ────────────────────────────────────────────────────────────────────────────

type fakeSubscriber struct {
	calls int
	evs   []model.Evaluation
}

func (f *fakeSubscriber) SubscribeEvaluations(ctx context.Context, out chan<- model.Evaluation) error {
	f.calls++
	if f.calls == 1 {
		return errors.New("connection reset")
	}
	for _, ev := range f.evs {
		out <- ev
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestPubSubRouter_RetriesAndBroadcasts(t *testing.T) {
	hub := NewHub(10)
	sub := &fakeSubscriber{evs: []model.Evaluation{evaluation("EURUSD", model.DecisionCall)}}
	r := NewPubSubRouter(hub, sub)
	r.RetryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for hub.Seq() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := hub.Latest("EURUSD"); !ok {
		t.Error("evaluation was not relayed to the hub")
	}
	cancel()
	<-done
	if sub.calls != 2 {
		t.Errorf("subscribe calls = %d, want 2", sub.calls)
	}
}
