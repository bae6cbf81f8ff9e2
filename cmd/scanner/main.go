// cmd/scanner runs the signal scanner: it pulls candles from the websocket
// feed (or Redis), scores every instrument each poll interval, and sends
// CALL/PUT signals to Redis, the SQLite journal, websocket clients and the
// configured alert channels.
//
// Usage:
//
//	go run ./cmd/scanner --log-level=debug
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ijroy10/cubaYDsignal-sub001/config"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/bus"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/feed"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/gateway"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/logger"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/markethours"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/metrics"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/notification"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/scanner"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/scoring"
	redisstore "github.com/Ijroy10/cubaYDsignal-sub001/internal/store/redis"
	sqlitestore "github.com/Ijroy10/cubaYDsignal-sub001/internal/store/sqlite"
)

func main() {
	logLevel := flag.String("log-level", os.Getenv("LOG_LEVEL"), "debug|info|warn|error")
	scoringFile := flag.String("scoring", "", "YAML file with scoring constants (overrides SCORING_FILE)")
	flag.Parse()

	logger.Init("scanner", logger.ParseLevel(*logLevel))

	cfg := config.Load()
	if *scoringFile != "" {
		cfg.ScoringFile = *scoringFile
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid config", err)
	}

	scoringCfg, err := scoring.LoadConfig(cfg.ScoringFile)
	if err != nil {
		fatal("scoring config", err)
	}
	scoringCfg.Threshold = cfg.Threshold
	evaluator, err := scoring.New(scoringCfg)
	if err != nil {
		fatal("scoring init", err)
	}

	session, err := markethours.Parse(cfg.SessionTZ, cfg.SessionHours, cfg.SessionDays)
	if err != nil {
		slog.Warn("[scanner] bad session config, using default", "error", err)
		session = markethours.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	reg := prometheus.NewRegistry()
	prom := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus(cfg.CandleSource == "feed", true)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, reg)
	metricsSrv.Start()

	// ---- SQLite journal ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	journal, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		fatal("sqlite init", err)
	}
	defer journal.Close()

	// Every evaluation is persisted in batches and streamed to websocket
	// clients through one fan-out.
	evCh := make(chan model.Evaluation, 1024)
	fan := bus.New[model.Evaluation](1024)
	fan.OnDrop = func(name string) { prom.FanoutDrops.WithLabelValues(name).Inc() }
	journalCh := fan.Subscribe("journal")
	hubCh := fan.Subscribe("hub")
	go fan.Run(ctx, evCh)
	go fan.ReportSaturation(ctx, 5*time.Second, func(name string, pct float64) {
		prom.ChannelSaturation.WithLabelValues("fanout_" + name).Set(pct)
	})
	go journal.Run(ctx, journalCh)

	// ---- Redis (publisher, optional candle source) ----
	var publisher model.ResultPublisher
	var redisReader *redisstore.Reader
	redisCfg := redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	redisWriter, err := redisstore.New(ctx, redisCfg)
	if err != nil {
		slog.Warn("[scanner] redis unavailable, continuing without it", "error", err)
	} else {
		defer redisWriter.Close()
		cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
		cb.OnStateChange = func(_, to redisstore.State) {
			prom.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				prom.RedisCircuitBreakerTrips.Inc()
			}
		}
		bp := redisstore.NewBufferedPublisher(ctx, redisWriter, cb, 1000)
		bp.OnBuffer = prom.RedisBufferedWrites.Inc
		publisher = bp
	}
	health.StartLivenessChecker(ctx, redisClient(redisWriter), journal.DB(), 10*time.Second)

	if redisWriter != nil || cfg.CandleSource == "redis" {
		redisReader, err = redisstore.NewReader(ctx, redisCfg)
		if err != nil && cfg.CandleSource == "redis" {
			fatal("redis candle source", err)
		}
		if redisReader != nil {
			defer redisReader.Close()
		}
	}

	// ---- Candle source ----
	var source model.CandleSource
	switch cfg.CandleSource {
	case "redis":
		source = redisReader
	default:
		f, err := feed.New(feed.Config{URL: cfg.FeedURL, Instruments: cfg.Instruments, Timeframe: cfg.Timeframe})
		if err != nil {
			fatal("feed init", err)
		}
		f.OnReconnect = prom.FeedReconnects.Inc
		f.OnConnected = health.SetFeedConnected
		f.OnCandle = func(_ string, c model.Candle) {
			prom.FeedCandles.Inc()
			health.SetLastCandleTime(c.TS)
		}
		go func() {
			if err := f.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("[scanner] feed stopped", "error", err)
			}
		}()
		source = f
	}

	// ---- Gateway ----
	hub := gateway.NewHub(2048)
	hub.OnClientCount = func(n int) { prom.WSClients.Set(float64(n)) }
	go hub.Run(ctx, hubCh)
	go hub.StartStatusBroadcast(ctx, session, 30*time.Second)
	mux := http.NewServeMux()
	deps := gateway.Deps{Signals: journal, Session: session}
	if redisReader != nil {
		deps.Latest = redisReader
	}
	gateway.RegisterRoutes(mux, hub, deps)
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("[scanner] gateway listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[scanner] gateway error", "error", err)
		}
	}()

	// ---- Scanner ----
	sc, err := scanner.New(scanner.Config{
		Instruments:     cfg.Instruments,
		Timeframe:       cfg.Timeframe,
		CandleCount:     cfg.CandleCount,
		PollInterval:    cfg.PollInterval,
		Workers:         cfg.Workers,
		EvalDeadline:    cfg.EvalDeadline,
		Cooldown:        cfg.Cooldown,
		DispatchTimeout: cfg.DispatchTimeout,
	}, scanner.Deps{
		Source:      source,
		Evaluator:   evaluator,
		Publisher:   publisher,
		Journal:     journal,
		Notifier:    buildNotifier(cfg),
		Session:     session,
		Evaluations: evCh,
		Metrics:     prom,
		Health:      health,
		NewID:       sqlitestore.NewID,
	})
	if err != nil {
		fatal("scanner init", err)
	}
	go sc.Run(ctx)

	slog.Info("[scanner] ready",
		"instruments", cfg.Instruments,
		"timeframe", cfg.Timeframe,
		"threshold", evaluator.Threshold(),
		"source", cfg.CandleSource,
		"session", session.StatusString(time.Now()))

	<-sigCh
	slog.Info("[scanner] shutting down")
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
}

// buildNotifier always logs alerts and adds Telegram and the webhook when
// they are configured.
func buildNotifier(cfg *config.Config) notification.Notifier {
	n := notification.Multi{notification.NewLogNotifier()}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		n = append(n, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID))
		slog.Info("[scanner] telegram alerts enabled")
	}
	if cfg.WebhookURL != "" {
		n = append(n, notification.NewWebhookNotifier(cfg.WebhookURL))
		slog.Info("[scanner] webhook alerts enabled")
	}
	return n
}

func redisClient(w *redisstore.Writer) *goredis.Client {
	if w == nil {
		return nil
	}
	return w.Client()
}

func fatal(msg string, err error) {
	slog.Error("[scanner] "+msg, "error", err)
	os.Exit(1)
}
