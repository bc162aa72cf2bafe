package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chis/regman/internal/registry"
)

const appName = "regman"

// Config represents the application configuration.
// Values are layered: defaults, then the YAML file, then environment
// variables (including a .env file), then command-line flags.
// A loaded Config is treated as read-only.
type Config struct {
	// Registry is the registry base URL, e.g. https://registry.example.com:5000
	Registry string `yaml:"registry" json:"registry"`

	// Timeout bounds each registry HTTP request
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout"`

	// Concurrency bounds parallel deletes when deleting all tags
	Concurrency int `yaml:"concurrency,omitempty" json:"concurrency"`

	// HistoryDB is the sqlite file recording deletions; "off" disables it
	HistoryDB string `yaml:"history_db" json:"history_db"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`
}

// HistoryDisabled is the HistoryDB value that turns deletion history off.
const HistoryDisabled = "off"

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Timeout:     registry.DefaultHTTPTimeout,
		Concurrency: registry.DefaultConcurrency,
		HistoryDB:   DefaultHistoryPath(),
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// DefaultPath returns the default YAML config location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", appName+".yaml")
	}
	return filepath.Join(dir, appName, "config.yaml")
}

// DefaultHistoryPath returns the default deletion history database location.
func DefaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", appName+".db")
	}
	return filepath.Join(dir, appName, "history.db")
}

// Load builds the configuration from defaults, the YAML file at yamlPath and
// the environment (after loading envFile, if it exists).
// A missing YAML or env file is not an error.
func Load(yamlPath, envFile string) (Config, error) {
	yamlConfig, err := LoadYAMLConfig(yamlPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load YAML config: %w", err)
	}

	envConfig, err := LoadEnvConfig(envFile)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load environment config: %w", err)
	}

	return MergeConfigs(MergeConfigs(Default(), yamlConfig), envConfig), nil
}

// MergeConfigs returns base with every non-zero field of override applied.
// Loaders reject explicit non-positive numbers, so zero here means unset.
func MergeConfigs(base, override Config) Config {
	merged := base

	if override.Registry != "" {
		merged.Registry = override.Registry
	}
	if override.Timeout > 0 {
		merged.Timeout = override.Timeout
	}
	if override.Concurrency > 0 {
		merged.Concurrency = override.Concurrency
	}
	if override.HistoryDB != "" {
		merged.HistoryDB = override.HistoryDB
	}
	if override.LogLevel != "" {
		merged.LogLevel = override.LogLevel
	}
	if override.LogFormat != "" {
		merged.LogFormat = override.LogFormat
	}

	return merged
}

// HistoryEnabled reports whether deletions should be recorded.
func (c Config) HistoryEnabled() bool {
	return c.HistoryDB != "" && c.HistoryDB != HistoryDisabled
}

// RegistryConfig returns the immutable client configuration.
func (c Config) RegistryConfig() registry.RegistryConfig {
	return registry.RegistryConfig{
		Endpoint:    c.Registry,
		Timeout:     c.Timeout,
		Concurrency: c.Concurrency,
	}
}
