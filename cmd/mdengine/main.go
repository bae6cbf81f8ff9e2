// cmd/mdengine is the market-data engine: it subscribes to the websocket
// candle feed and appends every closed bar to the Redis candle lists
// (candles:{tf}s:{instrument}), announcing it on pub:candle. Scanners
// started with CANDLE_SOURCE=redis read their windows from those lists.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ijroy10/cubaYDsignal-sub001/config"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/feed"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/logger"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/markethours"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/metrics"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	redisstore "github.com/Ijroy10/cubaYDsignal-sub001/internal/store/redis"
)

func main() {
	logger.Init("mdengine", logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	slog.Info("[mdengine] starting...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("[mdengine] invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	reg := prometheus.NewRegistry()
	prom := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus(true, true)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, reg)
	metricsSrv.Start()

	// ---- Redis writer ----
	writer, err := redisstore.New(ctx, redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		slog.Error("[mdengine] redis init failed", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	defer writer.Close()
	health.StartLivenessChecker(ctx, writer.Client(), nil, 10*time.Second)

	// Bars go through a channel so a slow Redis never stalls the feed reader.
	barCh := make(chan model.Series, 5000)
	go writer.Run(ctx, cfg.Timeframe, barCh)

	// ---- Feed ----
	f, err := feed.New(feed.Config{URL: cfg.FeedURL, Instruments: cfg.Instruments, Timeframe: cfg.Timeframe, Capacity: cfg.CandleCount})
	if err != nil {
		slog.Error("[mdengine] feed init failed", "error", err)
		os.Exit(1)
	}
	f.OnReconnect = prom.FeedReconnects.Inc
	f.OnConnected = health.SetFeedConnected
	f.OnCandle = func(instrument string, c model.Candle) {
		prom.FeedCandles.Inc()
		health.SetLastCandleTime(c.TS)
		select {
		case barCh <- model.NewSeries(instrument, cfg.Timeframe, []model.Candle{c}):
		default:
			prom.FanoutDrops.WithLabelValues("redis").Inc()
			slog.Warn("[mdengine] redis queue full, dropping bar", "instrument", instrument, "ts", c.TS)
		}
	}
	go func() {
		if err := f.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("[mdengine] feed stopped", "error", err)
		}
	}()

	// The feed runs around the clock; the session only drives the health flag.
	session, err := markethours.Parse(cfg.SessionTZ, cfg.SessionHours, cfg.SessionDays)
	if err != nil {
		session = markethours.Default()
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			health.SetSessionOpen(session.IsOpen(time.Now()))
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	slog.Info("[mdengine] pipeline ready",
		"feed", cfg.FeedURL,
		"instruments", cfg.Instruments,
		"timeframe", cfg.Timeframe,
		"redis", cfg.RedisAddr)

	<-sigCh
	slog.Info("[mdengine] shutting down")
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	metricsSrv.Stop(shutdownCtx)
}
