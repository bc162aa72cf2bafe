package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by LoadEnvConfig.
const (
	EnvRegistry    = "REGMAN_REGISTRY"
	EnvTimeout     = "REGMAN_TIMEOUT"
	EnvConcurrency = "REGMAN_CONCURRENCY"
	EnvHistoryDB   = "REGMAN_HISTORY_DB"
	EnvLogLevel    = "LOG_LEVEL"
	EnvLogFormat   = "LOG_FORMAT"
)

// LoadEnvConfig loads envFile into the process environment (without
// overriding variables already set) and reads the REGMAN_* variables.
// A missing envFile is not an error.
func LoadEnvConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		Registry:  os.Getenv(EnvRegistry),
		HistoryDB: os.Getenv(EnvHistoryDB),
		LogLevel:  os.Getenv(EnvLogLevel),
		LogFormat: os.Getenv(EnvLogFormat),
	}

	if val := os.Getenv(EnvTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvTimeout, val, err)
		}
		if err := checkExplicit(&timeout, nil); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = timeout
	}

	if val := os.Getenv(EnvConcurrency); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvConcurrency, val, err)
		}
		if err := checkExplicit(nil, &n); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvConcurrency, err)
		}
		cfg.Concurrency = n
	}

	return cfg, nil
}
