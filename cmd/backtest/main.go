// cmd/backtest replays historical candles through the evaluator to measure
// how often its CALL/PUT signals would have won, without live market data.
// Candles come from a CSV file or from the Redis candle list of one
// instrument.
//
// Usage:
//
//	go run ./cmd/backtest --csv=data/EURUSD_5m.csv --instrument=EURUSD --tf=300
//	go run ./cmd/backtest --redis=localhost:6379 --instrument=EURUSD --bars=1000
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/backtest"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/logger"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
	"github.com/Ijroy10/cubaYDsignal-sub001/internal/scoring"
	redisstore "github.com/Ijroy10/cubaYDsignal-sub001/internal/store/redis"
)

func main() {
	csvPath := flag.String("csv", "", "CSV file with time,open,high,low,close[,volume]")
	redisAddr := flag.String("redis", "", "read candles from this Redis instead of a CSV file")
	instrument := flag.String("instrument", "EURUSD", "instrument name")
	tf := flag.Int("tf", 300, "timeframe in seconds")
	bars := flag.Int("bars", 1000, "candles to read from Redis")
	window := flag.Int("window", 120, "candles per evaluation")
	scoringFile := flag.String("scoring", "", "YAML file with scoring constants")
	threshold := flag.Float64("threshold", -1, "override the decision threshold (0-100)")
	verbose := flag.Bool("v", false, "print every signal")
	flag.Parse()

	logger.Init("backtest", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	cfg, err := scoring.LoadConfig(*scoringFile)
	if err != nil {
		fatal("scoring config", err)
	}
	if *threshold >= 0 {
		cfg.Threshold = *threshold
	}
	ev, err := scoring.New(cfg)
	if err != nil {
		fatal("scoring init", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	series, err := load(ctx, *csvPath, *redisAddr, *instrument, *tf, *bars)
	if err != nil {
		fatal("load candles", err)
	}
	slog.Info("[backtest] replaying", "instrument", *instrument, "bars", series.Len(), "window", *window, "threshold", ev.Threshold())

	rep, err := backtest.Run(ctx, series, ev, *window)
	if err != nil {
		fatal("replay", err)
	}

	if *verbose {
		for _, s := range rep.Signals {
			fmt.Printf("  [%s] %-4s eff=%5.1f entry=%.5f exit=%.5f %s\n",
				s.EntryTS.Format("2006-01-02 15:04"), s.Decision, s.Effectiveness, s.EntryPrice, s.ExitPrice, s.Outcome)
		}
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Instrument:        %-16s ║\n", rep.Instrument)
	fmt.Printf("║  Candles:           %-16d ║\n", rep.Bars)
	fmt.Printf("║  Evaluations:       %-16d ║\n", rep.Evaluated)
	fmt.Printf("║  Signals:           %-16s ║\n", fmt.Sprintf("%d (%d CALL, %d PUT)", rep.Total.Total, rep.Calls, rep.Puts))
	fmt.Printf("║  Won / Lost / Draw: %-16s ║\n", fmt.Sprintf("%d / %d / %d", rep.Total.Won, rep.Total.Lost, rep.Total.Draw))
	fmt.Printf("║  Win rate:          %-16s ║\n", fmt.Sprintf("%.1f%%", rep.Total.WinRate()))
	fmt.Printf("║  Unresolved:        %-16d ║\n", rep.Unresolved)
	fmt.Println("╚══════════════════════════════════════╝")

	if len(rep.Days) > 0 {
		fmt.Println("\nPer day:")
		for _, d := range rep.Days {
			fmt.Printf("  %s: %3d signals, %5.1f%% win rate\n", d.Date, d.Total, d.WinRate())
		}
	}
}

func load(ctx context.Context, csvPath, redisAddr, instrument string, tf, bars int) (model.Series, error) {
	if redisAddr != "" {
		r, err := redisstore.NewReader(ctx, redisstore.Config{Addr: redisAddr, Password: os.Getenv("REDIS_PASSWORD")})
		if err != nil {
			return model.Series{}, err
		}
		defer r.Close()
		return r.FetchRecentCandles(ctx, instrument, bars, tf)
	}
	if csvPath == "" {
		return model.Series{}, fmt.Errorf("one of --csv or --redis is required")
	}
	f, err := os.Open(csvPath)
	if err != nil {
		return model.Series{}, err
	}
	defer f.Close()
	return backtest.LoadCSV(f, instrument, tf)
}

func fatal(msg string, err error) {
	slog.Error("[backtest] "+msg, "error", err)
	os.Exit(1)
}
