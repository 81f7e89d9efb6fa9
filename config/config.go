package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingQRSecret = errors.New("config: QR_SECRET_KEY is required")

type Config struct {
	// Server configuration
	Environment string
	LogLevel    string

	// Redis configuration
	RedisURL string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Boarding token
	QRSecretKey      string
	BoardingTokenTTL time.Duration

	// Ledger
	LedgerDriver string
	LedgerDSN    string

	// Folio generation
	FolioPrefix      string
	FolioStrategy    string
	FolioMaxAttempts int

	// Operator scans allowed per minute
	ScanRateLimit int

	BroadcastTimeout time.Duration
	ReaperInterval   time.Duration

	// IANA zone that defines an operator's working day
	TimeZone string

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

// LoadConfig reads an optional .env file and then the process environment.
// A missing QR_SECRET_KEY is a startup error.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "shuttle-ticket"),

		QRSecretKey:      getEnv("QR_SECRET_KEY", ""),
		BoardingTokenTTL: getEnvAsDuration("BOARDING_TOKEN_TTL", "60s"),

		LedgerDriver: getEnv("LEDGER_DRIVER", "sqlite"),
		LedgerDSN:    getEnv("LEDGER_DSN", "pb_data/ledger.db"),

		FolioPrefix:      getEnv("FOLIO_PREFIX", "OMA"),
		FolioStrategy:    getEnv("FOLIO_STRATEGY", "random"),
		FolioMaxAttempts: getEnvAsInt("FOLIO_MAX_ATTEMPTS", 5),

		ScanRateLimit: getEnvAsInt("SCAN_RATE_LIMIT", 30),

		BroadcastTimeout: getEnvAsDuration("BROADCAST_TIMEOUT", "3s"),
		ReaperInterval:   getEnvAsDuration("REAPER_INTERVAL", "0s"),

		TimeZone: getEnv("TIMEZONE", "America/Mexico_City"),

		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}

	if cfg.QRSecretKey == "" {
		return nil, ErrMissingQRSecret
	}
	if cfg.FolioMaxAttempts < 1 {
		cfg.FolioMaxAttempts = 1
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
