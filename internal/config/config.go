package config

import (
	"os"
	"strconv"
	"time"

	"demandcast/internal/errors"
)

// Config represents the process configuration read from the environment
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
	Backtest BacktestConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds database connection settings. URL is only required for SQL sources.
type DatabaseConfig struct {
	URL    string
	Driver string
}

// RedisConfig enables the feature cache when URL is set.
type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type BacktestConfig struct {
	// FoldParallelism bounds concurrently evaluated folds.
	FoldParallelism int
}

// MetricsConfig serves prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:    getEnvOrDefault("DATABASE_URL", ""),
			Driver: getEnvOrDefault("DATABASE_DRIVER", "postgres"),
		},
		Redis: RedisConfig{
			URL:      getEnvOrDefault("REDIS_URL", ""),
			CacheTTL: getEnvDurationOrDefault("FEATURE_CACHE_TTL", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "INFO"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
		Backtest: BacktestConfig{
			FoldParallelism: getEnvIntOrDefault("FOLD_PARALLELISM", 1),
		},
		Metrics: MetricsConfig{
			Addr: getEnvOrDefault("METRICS_ADDR", ""),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Backtest.FoldParallelism < 1 {
		return errors.ConfigInvalid("FOLD_PARALLELISM must be at least 1")
	}
	if config.Redis.CacheTTL < 0 {
		return errors.ConfigInvalid("FEATURE_CACHE_TTL cannot be negative")
	}
	switch config.Database.Driver {
	case "postgres", "sqlite":
	default:
		return errors.ConfigInvalid("DATABASE_DRIVER must be postgres or sqlite")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
