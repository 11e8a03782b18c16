package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application's configuration values.
type Config struct {
	Host           string
	Port           int
	DatabaseURL    string
	RedisURL       string
	MaxBodyBytes   int64
	RetentionLimit int
	ShutdownGrace  time.Duration
	LogLevel       slog.Level
}

// NewConfig loads configuration from a .env file (if present) overlaid by
// environment variables. Unset values fall back to defaults; set but
// unparseable values are an error.
func NewConfig() (*Config, error) {
	// A missing .env file is fine; real deployments configure via env vars.
	_ = godotenv.Load()

	cfg := &Config{
		Host:        getEnv("HOST", "0.0.0.0"),
		DatabaseURL: getEnv("DATABASE_URL", "inspector.db"),
		RedisURL:    getEnv("REDIS_URL", ""),
	}

	var err error
	if cfg.Port, err = getEnvInt("PORT", 8080); err != nil {
		return nil, err
	}
	maxBody, err := getEnvInt("MAX_BODY_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxBodyBytes = int64(maxBody)
	if cfg.RetentionLimit, err = getEnvInt("RETENTION_LIMIT", 100); err != nil {
		return nil, err
	}
	if cfg.RetentionLimit <= 0 {
		return nil, fmt.Errorf("RETENTION_LIMIT must be positive, got %d", cfg.RetentionLimit)
	}
	if cfg.ShutdownGrace, err = getEnvDuration("SHUTDOWN_GRACE", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = getEnvLevel("LOG_LEVEL", slog.LevelInfo); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return value, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return value, nil
}

func getEnvLevel(key string, fallback slog.Level) (slog.Level, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(valueStr)); err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return level, nil
}
