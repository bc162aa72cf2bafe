package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadYAMLConfig loads configuration from a YAML file.
// Returns an empty config if path is empty or the file doesn't exist.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadYAMLConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read YAML config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
	}

	// An explicit "timeout: 0" decodes like an absent key; look again.
	var explicit struct {
		Timeout     *time.Duration `yaml:"timeout"`
		Concurrency *int           `yaml:"concurrency"`
	}
	if err := yaml.Unmarshal(data, &explicit); err == nil {
		if err := checkExplicit(explicit.Timeout, explicit.Concurrency); err != nil {
			return Config{}, fmt.Errorf("invalid YAML config %s: %w", path, err)
		}
	}

	return cfg, nil
}

// WriteYAMLConfig writes cfg to path, creating parent directories.
func WriteYAMLConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode YAML config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write YAML config: %w", err)
	}
	return nil
}
