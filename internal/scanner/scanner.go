// Package scanner drives the evaluation loop: every poll interval it scores
// each instrument on a bounded worker pool and hands the results to the
// publisher, journal, broadcaster and notifier.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/logger"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/markethours"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/metrics"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/notification"
)

// Evaluator scores a candle window. *scoring.Evaluator satisfies it.
type Evaluator interface {
	Evaluate(s model.Series, id string) model.Evaluation
}

// Config holds the loop settings.
type Config struct {
	Instruments  []string
	Timeframe    int // seconds per bar
	CandleCount  int
	PollInterval time.Duration
	Workers      int
	EvalDeadline time.Duration // budget for one cycle over every instrument
	Cooldown     time.Duration // minimum gap between alerts of one instrument

	// DispatchTimeout bounds the hand-off of one evaluation. It starts when
	// the evaluation finishes and ignores the cycle deadline.
	DispatchTimeout time.Duration
}

func (c *Config) defaults() {
	if c.CandleCount <= 0 {
		c.CandleCount = 120
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.EvalDeadline <= 0 {
		c.EvalDeadline = 10 * time.Second
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 15 * time.Second
	}
}

// Deps are the scanner's collaborators. Source and Evaluator are required;
// a nil optional dependency switches its step off, and a nil Session means
// the market is always open.
type Deps struct {
	Source    model.CandleSource
	Evaluator Evaluator

	Publisher   model.ResultPublisher
	Journal     model.SignalJournal
	Broadcaster model.Broadcaster
	Notifier    notification.Notifier
	Session     *markethours.Session

	// Evaluations receives every result for batched persistence. Sends
	// never block; a full channel drops the result.
	Evaluations chan<- model.Evaluation

	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus

	// NewID names journaled signals. Defaults to a time-based ID.
	NewID func() string
}

// Scanner runs the evaluation loop.
type Scanner struct {
	cfg  Config
	deps Deps
	now  func() time.Time

	mu         sync.Mutex
	lastAlert  map[string]alertMark
	wasOpen    bool
	seenStatus bool
}

type alertMark struct {
	bar time.Time // open time of the bar that produced the alert
	at  time.Time
}

// New validates the configuration and creates a Scanner.
func New(cfg Config, deps Deps) (*Scanner, error) {
	cfg.defaults()
	if len(cfg.Instruments) == 0 {
		return nil, errors.New("scanner: no instruments")
	}
	if cfg.Timeframe <= 0 {
		return nil, fmt.Errorf("scanner: timeframe must be positive, got %d", cfg.Timeframe)
	}
	if deps.Source == nil || deps.Evaluator == nil {
		return nil, errors.New("scanner: candle source and evaluator are required")
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return fmt.Sprintf("sig-%d", time.Now().UnixNano()) }
	}
	return &Scanner{
		cfg:       cfg,
		deps:      deps,
		now:       time.Now,
		lastAlert: make(map[string]alertMark),
	}, nil
}

// Run scans once immediately and then every poll interval until ctx is
// cancelled. Outside the trading session it only resolves outcomes.
func (s *Scanner) Run(ctx context.Context) error {
	slog.Info("[scanner] starting",
		"instruments", len(s.cfg.Instruments),
		"timeframe", s.cfg.Timeframe,
		"workers", s.cfg.Workers,
		"poll", s.cfg.PollInterval)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			slog.Info("[scanner] stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scanner) tick(ctx context.Context) {
	if s.sessionOpen() {
		s.ScanOnce(ctx)
	}
	if s.deps.Journal != nil {
		if _, err := s.Resolve(ctx); err != nil && ctx.Err() == nil {
			slog.Error("[scanner] resolve outcomes", "error", err)
		}
	}
}

// sessionOpen checks the session gate and logs transitions.
func (s *Scanner) sessionOpen() bool {
	if s.deps.Session == nil {
		return true
	}
	now := s.now()
	open := s.deps.Session.IsOpen(now)

	s.mu.Lock()
	changed := !s.seenStatus || open != s.wasOpen
	s.wasOpen, s.seenStatus = open, true
	s.mu.Unlock()

	if changed {
		slog.Info("[scanner] session", "open", open, "status", s.deps.Session.StatusString(now))
		if s.deps.Metrics != nil {
			v := 0.0
			if open {
				v = 1
			}
			s.deps.Metrics.SessionOpen.Set(v)
		}
		if s.deps.Health != nil {
			s.deps.Health.SetSessionOpen(open)
		}
	}
	return open
}

// ScanOnce evaluates every instrument within the cycle deadline and
// returns the finished evaluations in completion order.
func (s *Scanner) ScanOnce(ctx context.Context) []model.Evaluation {
	start := s.now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EvalDeadline)
	defer cancel()

	jobs := make(chan string)
	results := make(chan model.Evaluation, len(s.cfg.Instruments))

	var wg sync.WaitGroup
	for w := 0; w < min(s.cfg.Workers, len(s.cfg.Instruments)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inst := range jobs {
				if ev, ok := s.evaluate(ctx, inst); ok {
					results <- ev
				}
			}
		}()
	}

feed:
	for _, inst := range s.cfg.Instruments {
		select {
		case jobs <- inst:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]model.Evaluation, 0, len(s.cfg.Instruments))
	for ev := range results {
		out = append(out, ev)
	}

	took := s.now().Sub(start)
	if s.deps.Metrics != nil {
		s.deps.Metrics.CycleDuration.Observe(took.Seconds())
	}
	if s.deps.Health != nil {
		s.deps.Health.SetLastCycle(s.now())
	}
	slog.Debug("[scanner] cycle done", "evaluated", len(out), "instruments", len(s.cfg.Instruments), "took", took)
	return out
}

// evaluate fetches and scores one instrument, then dispatches the result.
// It reports false when the instrument was skipped.
func (s *Scanner) evaluate(ctx context.Context, instrument string) (model.Evaluation, bool) {
	start := s.now()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(instrument, start))

	series, err := s.deps.Source.FetchRecentCandles(ctx, instrument, s.cfg.CandleCount, s.cfg.Timeframe)
	if err != nil {
		s.skip(ctx, instrument, err)
		return model.Evaluation{}, false
	}

	// Scoring is pure but may be slow on long windows; the cycle deadline
	// wins over a late result.
	done := make(chan model.Evaluation, 1)
	go func() { done <- s.deps.Evaluator.Evaluate(series, instrument) }()

	var ev model.Evaluation
	select {
	case ev = <-done:
	case <-ctx.Done():
		s.skip(ctx, instrument, ctx.Err())
		return model.Evaluation{}, false
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveEvaluation(ev, s.now().Sub(start))
	}
	slog.Info("[scanner] evaluated", append(logger.Evaluation(ev), logger.LogWithTrace(ctx)...)...)

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.DispatchTimeout)
	defer cancel()
	s.dispatch(dctx, ev)
	return ev, true
}

func (s *Scanner) skip(ctx context.Context, instrument string, err error) {
	attrs := append([]any{"instrument", instrument, "error", err}, logger.LogWithTrace(ctx)...)
	if errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("[scanner] evaluation skipped, cycle deadline passed", attrs...)
		if s.deps.Metrics != nil {
			s.deps.Metrics.EvalTimeouts.Inc()
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	slog.Warn("[scanner] candle fetch failed", attrs...)
	if s.deps.Metrics != nil {
		s.deps.Metrics.CandleFetchErrors.WithLabelValues(instrument).Inc()
	}
}

// dispatch publishes, persists and broadcasts ev, and turns a CALL/PUT
// into a journaled signal and an alert.
func (s *Scanner) dispatch(ctx context.Context, ev model.Evaluation) {
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.Publish(ctx, ev); err != nil {
			slog.Warn("[scanner] publish failed", append([]any{"instrument", ev.Instrument, "error", err}, logger.LogWithTrace(ctx)...)...)
			if s.deps.Metrics != nil {
				s.deps.Metrics.RedisPublishErrors.Inc()
			}
		}
	}
	if s.deps.Evaluations != nil {
		select {
		case s.deps.Evaluations <- ev:
		default:
			slog.Warn("[scanner] evaluation channel full, dropping", "instrument", ev.Instrument)
		}
	}
	if s.deps.Broadcaster != nil {
		s.deps.Broadcaster.BroadcastEvaluation(ev)
	}

	if !ev.HasDecision() {
		return
	}
	if !s.claimAlert(ev) {
		slog.Debug("[scanner] signal in cooldown", "instrument", ev.Instrument, "bar", ev.TS)
		if s.deps.Metrics != nil {
			s.deps.Metrics.AlertsTotal.WithLabelValues("cooldown").Inc()
		}
		return
	}

	sig := model.SignalFromEvaluation(s.deps.NewID(), ev)
	if s.deps.Journal != nil {
		err := s.deps.Journal.Record(ctx, sig)
		if s.deps.Metrics != nil {
			s.deps.Metrics.JournalWrite("record", err)
		}
		if err != nil {
			slog.Error("[scanner] journal record failed", "signal", sig.ID, "error", err)
		}
	}
	if s.deps.Notifier != nil {
		result := "sent"
		if err := s.deps.Notifier.Send(ctx, notification.SignalAlert(sig, ev)); err != nil {
			result = "failed"
			slog.Error("[scanner] alert failed", "signal", sig.ID, "error", err)
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.AlertsTotal.WithLabelValues(result).Inc()
		}
	}
}

// claimAlert records an alert for ev's instrument unless one was already
// sent for the same bar or within the cooldown.
func (s *Scanner) claimAlert(ev model.Evaluation) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastAlert[ev.Instrument]; ok {
		if last.bar.Equal(ev.TS) || now.Sub(last.at) < s.cfg.Cooldown {
			return false
		}
	}
	s.lastAlert[ev.Instrument] = alertMark{bar: ev.TS, at: now}
	return true
}
