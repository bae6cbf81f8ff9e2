// Package metrics exposes the scanner's Prometheus metrics and its
// /healthz endpoint.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	// Evaluation
	EvaluationsTotal *prometheus.CounterVec // labels: decision=call|put|none
	EvalDuration     prometheus.Histogram
	Effectiveness    prometheus.Histogram
	EvalTimeouts     prometheus.Counter
	DroppedBars      prometheus.Counter
	CycleDuration    prometheus.Histogram

	// Candle source
	CandleFetchErrors *prometheus.CounterVec // labels: instrument
	FeedReconnects    prometheus.Counter
	FeedCandles       prometheus.Counter

	// Outputs
	AlertsTotal        *prometheus.CounterVec // labels: result=sent|failed|cooldown
	JournalWrites      *prometheus.CounterVec // labels: op=record|settle, result=ok|error
	Outcomes           *prometheus.CounterVec // labels: outcome=won|lost|draw|void
	RedisPublishErrors prometheus.Counter

	// Pipeline
	FanoutDrops       *prometheus.CounterVec // labels: consumer
	ChannelSaturation *prometheus.GaugeVec   // labels: channel

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedWrites      prometheus.Counter

	// Gateway
	WSClients prometheus.Gauge

	// Session
	SessionOpen prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics registers and returns all metrics on reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_evaluations_total",
			Help: "Evaluations completed, by decision",
		}, []string{"decision"}),
		EvalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_evaluation_duration_seconds",
			Help:    "Fetch plus scoring latency per instrument",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Effectiveness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_effectiveness",
			Help:    "Distribution of evaluation effectiveness",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		EvalTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_evaluation_timeouts_total",
			Help: "Evaluations skipped because the cycle deadline passed",
		}),
		DroppedBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_dropped_bars_total",
			Help: "Malformed bars removed before scoring",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_cycle_duration_seconds",
			Help:    "Wall time of one scan over every instrument",
			Buckets: prometheus.DefBuckets,
		}),

		CandleFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_candle_fetch_errors_total",
			Help: "Candle source failures, by instrument",
		}, []string{"instrument"}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_feed_reconnects_total",
			Help: "Candle feed reconnection attempts",
		}),
		FeedCandles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_feed_candles_total",
			Help: "Closed candles received from the feed",
		}),

		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_alerts_total",
			Help: "Signal alerts, by result",
		}, []string{"result"}),
		JournalWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_journal_writes_total",
			Help: "Signal journal writes, by operation and result",
		}, []string{"op", "result"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_signal_outcomes_total",
			Help: "Settled signals, by outcome",
		}, []string{"outcome"}),
		RedisPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_redis_publish_errors_total",
			Help: "Evaluations that failed to reach Redis",
		}),

		FanoutDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_fanout_drops_total",
			Help: "Values dropped for a full consumer channel, by consumer",
		}, []string{"consumer"}),
		ChannelSaturation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scanner_channel_saturation_pct",
			Help: "Fill level of pipeline channels in percent",
		}, []string{"channel"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_redis_buffered_writes_total",
			Help: "Evaluations buffered while the Redis circuit was open",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_ws_clients",
			Help: "Connected websocket clients",
		}),

		SessionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_session_open",
			Help: "Trading session state (0=closed, 1=open)",
		}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.EvalDuration,
		m.Effectiveness,
		m.EvalTimeouts,
		m.DroppedBars,
		m.CycleDuration,
		m.CandleFetchErrors,
		m.FeedReconnects,
		m.FeedCandles,
		m.AlertsTotal,
		m.JournalWrites,
		m.Outcomes,
		m.RedisPublishErrors,
		m.FanoutDrops,
		m.ChannelSaturation,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedWrites,
		m.WSClients,
		m.SessionOpen,
	)
	return m
}

// ObserveEvaluation records one finished evaluation.
func (m *Metrics) ObserveEvaluation(ev model.Evaluation, took time.Duration) {
	decision := strings.ToLower(string(ev.Decision))
	if decision == "" {
		decision = "none"
	}
	m.EvaluationsTotal.WithLabelValues(decision).Inc()
	m.EvalDuration.Observe(took.Seconds())
	m.Effectiveness.Observe(ev.Effectiveness)
	if ev.Breakdown.Dropped > 0 {
		m.DroppedBars.Add(float64(ev.Breakdown.Dropped))
	}
}

// JournalWrite counts a journal operation.
func (m *Metrics) JournalWrite(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JournalWrites.WithLabelValues(op, result).Inc()
}

// HealthStatus represents the scanner's health. Components that are not
// configured do not count against it.
type HealthStatus struct {
	mu sync.RWMutex

	FeedEnabled     bool
	FeedConnected   bool
	LastCandleTime  time.Time
	RedisEnabled    bool
	RedisConnected  bool
	SQLiteOK        bool
	SessionOpen     bool
	LastCycleAt     time.Time
	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a health status tracking the given components.
func NewHealthStatus(feed, redis bool) *HealthStatus {
	return &HealthStatus{
		FeedEnabled:  feed,
		RedisEnabled: redis,
		StartedAt:    time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCandleTime(t time.Time) {
	h.mu.Lock()
	h.LastCandleTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetSessionOpen(v bool) {
	h.mu.Lock()
	h.SessionOpen = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCycle(t time.Time) {
	h.mu.Lock()
	h.LastCycleAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the journal and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs the dependency checks now and then every interval.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	check := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	go func() {
		check()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}

// status derives the overall state: "healthy", "degraded" when an enabled
// collaborator is down, "unhealthy" when the journal is down too.
func (h *HealthStatus) status() string {
	feedOK := !h.FeedEnabled || h.FeedConnected
	redisOK := !h.RedisEnabled || h.RedisConnected
	switch {
	case !h.SQLiteOK && (!feedOK || !redisOK):
		return "unhealthy"
	case !h.SQLiteOK || !feedOK || !redisOK:
		return "degraded"
	}
	return "healthy"
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := h.status()
	httpCode := http.StatusOK
	if overallStatus != "healthy" {
		httpCode = http.StatusServiceUnavailable
	}

	candleAge := ""
	if !h.LastCandleTime.IsZero() {
		candleAge = time.Since(h.LastCandleTime).Round(time.Second).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedConnected   bool    `json:"feed_connected"`
		CandleAge       string  `json:"candle_age,omitempty"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		SessionOpen     bool    `json:"session_open"`
		LastCycleAt     string  `json:"last_cycle_at,omitempty"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		CandleAge:       candleAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		SessionOpen:     h.SessionOpen,
	}
	if !h.LastCycleAt.IsZero() {
		status.LastCycleAt = h.LastCycleAt.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server. gatherer defaults to the
// global registry when nil.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("[metrics] server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[metrics] server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
