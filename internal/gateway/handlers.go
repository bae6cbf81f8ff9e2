package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/markethours"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// LatestStore serves the cached latest evaluation of an instrument.
type LatestStore interface {
	Latest(ctx context.Context, instrument string) (model.Evaluation, error)
}

// Deps are the read sides the REST routes query. Nil fields disable the
// routes that need them, except Latest which falls back to the hub.
type Deps struct {
	Latest  LatestStore
	Signals model.SignalReader
	Session *markethours.Session
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, deps Deps) {
	// WebSocket endpoint; ?last_seq=N resumes after a reconnect.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("[gateway] ws upgrade error", "error", err)
			return
		}
		lastSeq, _ := strconv.ParseInt(r.URL.Query().Get("last_seq"), 10, 64)
		hub.HandleWSRequest(conn, lastSeq)
	})

	// REST: latest evaluation of every instrument seen by this process
	mux.HandleFunc("/api/latest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hub.LatestAll())
	})

	// REST: latest evaluation of one instrument
	mux.HandleFunc("/api/latest/", func(w http.ResponseWriter, r *http.Request) {
		instrument := strings.TrimPrefix(r.URL.Path, "/api/latest/")
		if instrument == "" || strings.Contains(instrument, "/") {
			writeError(w, http.StatusBadRequest, "instrument required")
			return
		}
		if deps.Latest != nil {
			ev, err := deps.Latest.Latest(r.Context(), instrument)
			if err == nil {
				writeJSON(w, http.StatusOK, ev)
				return
			}
			slog.Debug("[gateway] latest store miss", "instrument", instrument, "error", err)
		}
		if ev, ok := hub.Latest(instrument); ok {
			writeJSON(w, http.StatusOK, ev)
			return
		}
		writeError(w, http.StatusNotFound, "no evaluation for "+instrument)
	})

	// REST: recent journaled signals, ?instrument=&limit=
	mux.HandleFunc("/api/signals", func(w http.ResponseWriter, r *http.Request) {
		if deps.Signals == nil {
			writeError(w, http.StatusServiceUnavailable, "journal not configured")
			return
		}
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		sigs, err := deps.Signals.Recent(r.Context(), q.Get("instrument"), limit)
		if err != nil {
			slog.Error("[gateway] recent signals", "error", err)
			writeError(w, http.StatusInternalServerError, "journal query failed")
			return
		}
		if sigs == nil {
			sigs = []model.Signal{}
		}
		writeJSON(w, http.StatusOK, SignalsOut{Count: len(sigs), Signals: sigs})
	})

	// REST: win rates per instrument, ?since=24h (duration) or RFC3339
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		if deps.Signals == nil {
			writeError(w, http.StatusServiceUnavailable, "journal not configured")
			return
		}
		since, err := parseSince(r.URL.Query().Get("since"), time.Now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		stats, err := deps.Signals.Stats(r.Context(), since)
		if err != nil {
			slog.Error("[gateway] stats", "error", err)
			writeError(w, http.StatusInternalServerError, "journal query failed")
			return
		}
		out := make([]StatsOut, len(stats))
		for i, s := range stats {
			out[i] = StatsOut{InstrumentStats: s, WinRate: s.WinRate()}
		}
		writeJSON(w, http.StatusOK, out)
	})

	// REST: envelopes a client missed, ?from=&to=
	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, err1 := strconv.ParseInt(q.Get("from"), 10, 64)
		to, err2 := strconv.ParseInt(q.Get("to"), 10, 64)
		if err1 != nil || err2 != nil || from > to {
			writeError(w, http.StatusBadRequest, "from and to are required, from <= to")
			return
		}
		raw := hub.ReplayRange(from, to)
		out := MissedOut{From: from, To: to, Envelopes: make([]json.RawMessage, len(raw))}
		for i, b := range raw {
			out.Envelopes[i] = b
		}
		writeJSON(w, http.StatusOK, out)
	})

	// REST: session, clients and latency
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hub.StatusAt(deps.Session, time.Now()))
	})
}

// parseSince accepts a look-back duration ("24h") or an RFC3339 time. An
// empty value means the last 24 hours.
func parseSince(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return now.Add(-24 * time.Hour), nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		if d < 0 {
			return time.Time{}, errors.New("since must be a positive duration")
		}
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errors.New("since must be a duration like 24h or an RFC3339 time")
	}
	return t, nil
}
