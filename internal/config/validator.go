package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/chis/regman/internal/registry"
)

// Soft limits above which validation only warns.
const (
	maxRecommendedConcurrency = 16
	maxRecommendedTimeout     = 5 * time.Minute
)

// ValidationResult contains the results of configuration validation.
// Separates errors (blocking issues) from warnings (non-blocking issues).
type ValidationResult struct {
	// Errors contains validation failures that should block operations
	Errors []string

	// Warnings contains validation issues that should be logged but not block operations
	Warnings []string
}

// IsValid returns true if there are no validation errors.
// Warnings do not affect validity.
func (vr *ValidationResult) IsValid() bool {
	return len(vr.Errors) == 0
}

// HasWarnings returns true if there are any validation warnings.
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// AddError adds an error message to the validation result.
func (vr *ValidationResult) AddError(msg string) {
	vr.Errors = append(vr.Errors, msg)
}

// AddWarning adds a warning message to the validation result.
func (vr *ValidationResult) AddWarning(msg string) {
	vr.Warnings = append(vr.Warnings, msg)
}

// Err returns nil if valid, otherwise one error listing every failure.
func (vr *ValidationResult) Err() error {
	if vr.IsValid() {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(vr.Errors, "; "))
}

// checkExplicit rejects numeric settings a source set explicitly but that
// MergeConfigs would otherwise treat as unset. Nil means not set.
func checkExplicit(timeout *time.Duration, concurrency *int) error {
	if timeout != nil && *timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", *timeout)
	}
	if concurrency != nil && *concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", *concurrency)
	}
	return nil
}

// Validate checks the configuration before any client is built.
func (c Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	if strings.TrimSpace(c.Registry) == "" {
		result.AddError("registry endpoint is not set (use --registry, REGMAN_REGISTRY or the config file)")
	} else if endpoint, err := registry.ParseEndpoint(c.Registry); err != nil {
		result.AddError(err.Error())
	} else if strings.HasPrefix(endpoint.String(), "http://") {
		result.AddWarning(fmt.Sprintf("registry %s uses plain HTTP", endpoint))
	}

	if c.Timeout <= 0 {
		result.AddError(fmt.Sprintf("timeout must be positive, got %s", c.Timeout))
	} else if c.Timeout > maxRecommendedTimeout {
		result.AddWarning(fmt.Sprintf("timeout %s is unusually long", c.Timeout))
	}

	if c.Concurrency < 1 {
		result.AddError(fmt.Sprintf("concurrency must be at least 1, got %d", c.Concurrency))
	} else if c.Concurrency > maxRecommendedConcurrency {
		result.AddWarning(fmt.Sprintf("concurrency %d may overload the registry", c.Concurrency))
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		result.AddWarning(fmt.Sprintf("unknown log level %q, using info", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		result.AddWarning(fmt.Sprintf("unknown log format %q, using text", c.LogFormat))
	}

	return result
}
