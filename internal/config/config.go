package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         int
	NatsURL      string
	NatsToken    string
	DatabaseURL  string
	LogLevel     string
	GeminiAPIKey string
	GeminiModel  string
	APIToken     string

	PollInterval     time.Duration
	PollAttempts     int
	FetchTimeout     time.Duration
	MaxFileBytes     int64
	BlockConcurrency int
	RequestTimeout   time.Duration
	SniffMIME        bool

	QueueGroup  string
	TurnWorkers int
}

func Load() Config {
	return Config{
		Port:         envInt("COURIER_PORT", 8760),
		NatsURL:      envStr("NATS_URL", ""),
		NatsToken:    envStr("NATS_TOKEN", ""),
		DatabaseURL:  envStr("DATABASE_URL", ""),
		LogLevel:     envStr("LOG_LEVEL", "info"),
		GeminiAPIKey: envStr("GEMINI_API_KEY", envStr("GOOGLE_API_KEY", "")),
		GeminiModel:  envStr("COURIER_MODEL", "gemini-1.5-flash"),
		APIToken:     envStr("COURIER_API_TOKEN", ""),

		PollInterval:     envDuration("COURIER_POLL_INTERVAL", 2*time.Second),
		PollAttempts:     envInt("COURIER_POLL_ATTEMPTS", 20),
		FetchTimeout:     envDuration("COURIER_FETCH_TIMEOUT", 60*time.Second),
		MaxFileBytes:     envInt64("COURIER_MAX_FILE_BYTES", 100<<20),
		BlockConcurrency: envInt("COURIER_BLOCK_CONCURRENCY", 4),
		RequestTimeout:   envDuration("COURIER_REQUEST_TIMEOUT", 5*time.Minute),
		SniffMIME:        envBool("COURIER_SNIFF_MIME", false),

		QueueGroup:  envStr("COURIER_QUEUE_GROUP", "courier"),
		TurnWorkers: envInt("COURIER_TURN_WORKERS", 4),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
