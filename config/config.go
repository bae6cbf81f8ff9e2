package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Scanner
	Instruments  []string
	Timeframe    int // seconds per candle
	CandleCount  int
	PollInterval time.Duration
	Workers      int
	Threshold    float64
	EvalDeadline time.Duration
	Cooldown     time.Duration
	ScoringFile  string // optional YAML with scoring constants

	// DispatchTimeout bounds the hand-off of one result to its sinks.
	DispatchTimeout time.Duration

	// Candle source: "feed" (websocket) or "redis"
	CandleSource string
	FeedURL      string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	HTTPAddr      string

	// Alerts
	TelegramToken  string
	TelegramChatID string
	WebhookURL     string

	// Session window, e.g. "07:50-20:00" on days "1-6" (Mon..Sat)
	SessionTZ    string
	SessionHours string
	SessionDays  string
}

// Load reads an optional .env file and then the environment, with defaults.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("[config] loaded .env")
	}
	return &Config{
		Instruments:  splitList(getEnv("INSTRUMENTS", "EURUSD,GBPUSD,USDJPY,AUDUSD")),
		Timeframe:    getInt("TIMEFRAME", 300),
		CandleCount:  getInt("CANDLE_COUNT", 120),
		PollInterval: getDuration("POLL_INTERVAL", 30*time.Second),
		Workers:      getInt("WORKERS", 4),
		Threshold:    getFloat("THRESHOLD", 80),
		EvalDeadline: getDuration("EVAL_DEADLINE", 10*time.Second),
		Cooldown:     getDuration("ALERT_COOLDOWN", 5*time.Minute),
		ScoringFile:  getEnv("SCORING_FILE", ""),

		DispatchTimeout: getDuration("DISPATCH_TIMEOUT", 15*time.Second),

		CandleSource: getEnv("CANDLE_SOURCE", "feed"),
		FeedURL:      getEnv("FEED_URL", "ws://localhost:8765/candles"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/signals.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),

		TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID: getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:     getEnv("WEBHOOK_URL", ""),

		SessionTZ:    getEnv("SESSION_TZ", "America/Havana"),
		SessionHours: getEnv("SESSION_HOURS", "07:50-20:00"),
		SessionDays:  getEnv("SESSION_DAYS", "1-6"),
	}
}

// Validate checks the values the scanner cannot start without.
func (c *Config) Validate() error {
	if len(c.Instruments) == 0 {
		return fmt.Errorf("config: no instruments")
	}
	if c.Timeframe <= 0 {
		return fmt.Errorf("config: timeframe must be positive, got %d", c.Timeframe)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("config: threshold %.1f outside [0,100]", c.Threshold)
	}
	switch c.CandleSource {
	case "feed", "redis":
	default:
		return fmt.Errorf("config: unknown candle source %q", c.CandleSource)
	}
	return nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("[config] invalid int, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("[config] invalid float, using default", "key", key, "value", v)
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("[config] invalid duration, using default", "key", key, "value", v)
		return fallback
	}
	return d
}
