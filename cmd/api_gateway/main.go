// cmd/api_gateway serves the websocket signal stream and the REST API for a
// scanner running in another process. Evaluations arrive over Redis
// pub/sub; signal history and win rates come from the scanner's SQLite
// journal.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ijroy10/cubaYDsignal-sub001/config"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/gateway"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/logger"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/markethours"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/metrics"
	redisstore "github.com/Ijroy10/cubaYDsignal-sub001/internal/store/redis"
	sqlitestore "github.com/Ijroy10/cubaYDsignal-sub001/internal/store/sqlite"
)

func main() {
	listenAddr := flag.String("addr", getEnv("GATEWAY_ADDR", ":8081"), "HTTP listen address")
	replaySize := flag.Int("replay", 2048, "envelopes kept for reconnecting clients")
	flag.Parse()

	logger.Init("api_gateway", logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	slog.Info("[api_gateway] starting...")

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	reader, err := redisstore.NewReader(ctx, redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		slog.Error("[api_gateway] redis connection failed", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	defer reader.Close()

	deps := gateway.Deps{Latest: reader}
	if journal, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath}); err != nil {
		slog.Warn("[api_gateway] journal unavailable, signal routes disabled", "path", cfg.SQLitePath, "error", err)
	} else {
		defer journal.Close()
		deps.Signals = journal
	}
	session, err := markethours.Parse(cfg.SessionTZ, cfg.SessionHours, cfg.SessionDays)
	if err != nil {
		session = markethours.Default()
	}
	deps.Session = session

	reg := prometheus.NewRegistry()
	prom := metrics.NewMetrics(reg)

	hub := gateway.NewHub(*replaySize)
	hub.OnClientCount = func(n int) { prom.WSClients.Set(float64(n)) }
	go gateway.NewPubSubRouter(hub, reader).Run(ctx)
	go hub.StartStatusBroadcast(ctx, session, 30*time.Second)

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, deps)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: *listenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("[api_gateway] listening", "addr", *listenAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[api_gateway] server error", "error", err)
			cancel()
		}
	}()

	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("[api_gateway] shutting down")
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	srv.Shutdown(shutdownCtx)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
