package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingToken is returned by Load when BOT_TOKEN is not set.
var ErrMissingToken = errors.New("config: BOT_TOKEN is required")

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Telegram
	BotToken       string
	TelegramAPIURL string
	BotPolling     bool
	SendTimeout    time.Duration
	DryRun         bool // log messages instead of sending them

	// HTTP
	Port         string
	Secret       string
	SecretHeader string

	// Storage
	SQLitePath    string
	RedisAddr     string // empty disables Redis
	RedisPassword string
	RedisDB       int

	// Pricing
	DexScreenerURL string
	PriceTimeout   time.Duration
	PriceCacheTTL  time.Duration

	// Pipeline
	QueueSize           int
	QueueWait           time.Duration
	Workers             int
	DispatchConcurrency int

	// Configuration flow
	SessionTTL time.Duration

	// Alert feeds
	FeedReplay      int
	KafkaBrokers    string // empty disables Kafka
	KafkaTopic      string
	AlertWebhookURL string // empty disables the HTTP sink

	LogLevel string
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, seeds variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: .env not loaded", "err", err)
	}

	cfg := &Config{
		BotToken:       os.Getenv("BOT_TOKEN"),
		TelegramAPIURL: getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		BotPolling:     getBool("BOT_POLLING", true),
		SendTimeout:    getDuration("SEND_TIMEOUT", 10*time.Second),
		DryRun:         getBool("DRY_RUN", false),

		Port:         getEnv("PORT", "3000"),
		Secret:       getEnv("WEBHOOK_SECRET", os.Getenv("HELIUS_SECRET")),
		SecretHeader: getEnv("WEBHOOK_SECRET_HEADER", "X-Helius-Secret"),

		SQLitePath:    getEnv("SQLITE_PATH", "buybot.db"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		DexScreenerURL: getEnv("DEXSCREENER_URL", "https://api.dexscreener.com"),
		PriceTimeout:   getDuration("PRICE_TIMEOUT", 7*time.Second),
		PriceCacheTTL:  getDuration("PRICE_CACHE_TTL", 10*time.Second),

		QueueSize:           getInt("QUEUE_SIZE", 1024),
		QueueWait:           getDuration("QUEUE_WAIT", time.Second),
		Workers:             getInt("WORKERS", 4),
		DispatchConcurrency: getInt("DISPATCH_CONCURRENCY", 8),

		SessionTTL: getDuration("SESSION_TTL", 5*time.Minute),

		FeedReplay:      getInt("FEED_REPLAY", 100),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "buy-alerts"),
		AlertWebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.BotToken == "" && !cfg.DryRun {
		return nil, ErrMissingToken
	}
	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// getInt returns a positive integer, or fallback with a warning.
func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		slog.Warn("config: invalid integer, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		slog.Warn("config: invalid duration, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("config: invalid boolean, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return b
}
