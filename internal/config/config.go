// Package config loads pipeline and API settings from the environment.
// Components receive the resulting Config explicitly; nothing reads
// environment variables after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings.
type Config struct {
	// Storage
	DatabaseURL   string // Postgres DSN (checkpoints, unified records)
	ClickhouseDSN string // ClickHouse DSN (raw archive)

	// Sources
	CoinPaprikaBaseURL string
	CoinPaprikaAPIKey  string
	CoinGeckoBaseURL   string
	CSVFilePath        string
	FetchLimit         int // records per fetch batch

	// Retry and rate limiting
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	RateLimitDelay    time.Duration
	FetchTimeout      time.Duration

	// Read API
	APIHost         string
	APIPort         int
	DefaultPageSize int
	MaxPageSize     int

	// Scheduler
	ScheduleInterval time.Duration
}

// Load reads configuration from the environment, applying defaults.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		ClickhouseDSN:      os.Getenv("CLICKHOUSE_DSN"),
		CoinPaprikaBaseURL: envString("COINPAPRIKA_BASE_URL", "https://api.coinpaprika.com/v1"),
		CoinPaprikaAPIKey:  os.Getenv("COINPAPRIKA_API_KEY"),
		CoinGeckoBaseURL:   envString("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
		CSVFilePath:        envString("CSV_FILE_PATH", "data/sample.csv"),
		APIHost:            envString("API_HOST", "0.0.0.0"),
	}

	var err error
	if cfg.FetchLimit, err = envInt("FETCH_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = envInt("MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.InitialRetryDelay, err = envDuration("INITIAL_RETRY_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxRetryDelay, err = envDuration("MAX_RETRY_DELAY", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimitDelay, err = envDuration("RATE_LIMIT_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = envDuration("FETCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.APIPort, err = envInt("API_PORT", 8000); err != nil {
		return nil, err
	}
	if cfg.DefaultPageSize, err = envInt("DEFAULT_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.MaxPageSize, err = envInt("MAX_PAGE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.ScheduleInterval, err = envDuration("SCHEDULE_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

// envDuration accepts Go duration strings ("500ms", "1m") and, for
// compatibility with older deployments, bare numbers meaning seconds.
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
