// Package config reads shadowlock settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Receipt store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds runtime configuration.
type Config struct {
	LogLevel  string
	LogFormat string

	ReceiptStore  string
	DatabaseURL   string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTelEnabled  bool
	OTelEndpoint string
	OTelInsecure bool

	SigningKeySeed string
	SignerID       string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		LogLevel:  getenv("LOG_LEVEL", "INFO"),
		LogFormat: getenv("LOG_FORMAT", "text"),

		ReceiptStore:  strings.ToLower(getenv("RECEIPT_STORE", StoreMemory)),
		DatabaseURL:   getenv("DATABASE_URL", "postgres://shadowlock@localhost:5432/shadowlock?sslmode=disable"),
		SQLitePath:    getenv("SQLITE_PATH", "data/receipts.db"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       atoi(os.Getenv("REDIS_DB")),

		OTelEnabled:  os.Getenv("OTEL_ENABLED") == "true",
		OTelEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelInsecure: os.Getenv("OTEL_INSECURE") != "false",

		SigningKeySeed: os.Getenv("SIGNING_KEY_SEED"),
		SignerID:       getenv("SIGNER_ID", "shadowlock-local"),
	}
}

// SlogLevel maps LogLevel onto slog. Unknown values fall back to Info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
