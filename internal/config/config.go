package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Dataset  DatasetConfig
	Forecast ForecastConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds PostgreSQL connection parameters. An empty URL runs
// the service without run history persistence.
type DatabaseConfig struct {
	URL           string
	MigrationsDir string
}

// DatasetConfig holds dataset acquisition parameters.
type DatasetConfig struct {
	URL          string
	FetchTimeout time.Duration
	CacheSize    int
	CacheMaxAge  time.Duration
}

// ForecastConfig holds forecasting engine switches. The disable flags let
// operators turn off the heavier strategies without a redeploy, exercising
// the same fallback path used when a strategy fails at runtime.
type ForecastConfig struct {
	DisableSeasonalARIMA bool
	DisableAutoARIMA     bool
	RefreshInterval      time.Duration
	RetentionDays        int
	TrackedCountries     []string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultDatasetURL      = "https://covid.ourworldindata.org/data/owid-covid-data.csv"
	defaultFetchTimeout    = 120 * time.Second
	defaultCacheSize       = 128
	defaultCacheMaxAge     = 6 * time.Hour
	defaultRefreshInterval = 6 * time.Hour
	defaultRetentionDays   = 90
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
		},
		Dataset: DatasetConfig{
			URL:          getEnv("DATASET_URL", defaultDatasetURL),
			FetchTimeout: defaultFetchTimeout,
			CacheSize:    defaultCacheSize,
			CacheMaxAge:  defaultCacheMaxAge,
		},
		Forecast: ForecastConfig{
			DisableSeasonalARIMA: getEnvBool("FORECAST_DISABLE_SARIMA"),
			DisableAutoARIMA:     getEnvBool("FORECAST_DISABLE_AUTOARIMA"),
			RefreshInterval:      defaultRefreshInterval,
			RetentionDays:        defaultRetentionDays,
			TrackedCountries:     splitList(os.Getenv("FORECAST_TRACKED_COUNTRIES")),
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("DATASET_FETCH_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATASET_FETCH_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Dataset.FetchTimeout = d
	}

	if v := os.Getenv("DATASET_CACHE_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			return Config{}, fmt.Errorf("invalid DATASET_CACHE_SIZE: must be a positive integer")
		}
		cfg.Dataset.CacheSize = size
	}

	if v := os.Getenv("DATASET_CACHE_MAX_AGE_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATASET_CACHE_MAX_AGE_SECONDS: %w", err)
		}
		cfg.Dataset.CacheMaxAge = d
	}

	if v := os.Getenv("FORECAST_REFRESH_INTERVAL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FORECAST_REFRESH_INTERVAL_SECONDS: %w", err)
		}
		cfg.Forecast.RefreshInterval = d
	}

	if v := os.Getenv("FORECAST_RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			return Config{}, fmt.Errorf("invalid FORECAST_RETENTION_DAYS: must be a non-negative integer")
		}
		cfg.Forecast.RetentionDays = days
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "yes":
		return true
	}
	return false
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
