package bootstrap

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/chis/regman/internal/config"
	"github.com/chis/regman/internal/logging"
	"github.com/chis/regman/internal/registry"
	"github.com/chis/regman/internal/storage"
)

// ServiceDependencies holds all initialized service dependencies for CLI commands.
type ServiceDependencies struct {
	Config config.Config
	Logger *log.Logger
	// LogOutput is where every logger writes; Redirect it to move all log
	// output at once (e.g. into the TUI).
	LogOutput *logging.RedirectWriter
	Registry  *registry.HTTPClient
	// Storage is nil when history is disabled or could not be opened.
	Storage  storage.Storage
	Recorder *storage.Recorder
}

// InitOptions configures service initialization behavior.
type InitOptions struct {
	// LogOutput overrides where logs go (stderr by default)
	LogOutput io.Writer
	// RequireStorage makes a storage initialization failure fatal
	RequireStorage bool
	// SkipStorage never opens the history database
	SkipStorage bool
}

// InitializeServices validates cfg and builds the logger, the registry client
// and the optional deletion history.
// Returns ServiceDependencies and a cleanup function that should be deferred.
func InitializeServices(cfg config.Config, opts InitOptions) (*ServiceDependencies, func(), error) {
	target := opts.LogOutput
	if target == nil {
		target = os.Stderr
	}
	logOutput := logging.NewRedirectWriter(target)
	logger := logging.NewWithOptions(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: logOutput,
	})
	logging.SetDefault(logger)

	result := cfg.Validate()
	for _, warning := range result.Warnings {
		logger.Warn(warning)
	}
	if err := result.Err(); err != nil {
		return nil, nil, err
	}

	deps := &ServiceDependencies{Config: cfg, Logger: logger, LogOutput: logOutput}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	client, err := registry.NewHTTPClient(cfg.RegistryConfig(), registry.WithLogger(logger.With("component", "registry")))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create registry client: %w", err)
	}
	deps.Registry = client
	logger.Debug("registry client initialized", "endpoint", client.Endpoint(), "timeout", cfg.Timeout, "concurrency", cfg.Concurrency)

	// Storage is optional: degrade gracefully unless required
	if !opts.SkipStorage && cfg.HistoryEnabled() {
		store, err := storage.NewSQLiteStorage(cfg.HistoryDB)
		if err != nil {
			if opts.RequireStorage {
				cleanup()
				return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
			}
			logger.Warn("failed to initialize deletion history, continuing without it", "path", cfg.HistoryDB, "error", err)
		} else {
			deps.Storage = store
			cleanups = append(cleanups, func() { store.Close() })
		}
	} else if opts.RequireStorage {
		return nil, nil, fmt.Errorf("deletion history is disabled (history_db: %s)", config.HistoryDisabled)
	}

	deps.Recorder = storage.NewRecorder(deps.Storage, client.Endpoint().String())

	return deps, cleanup, nil
}
