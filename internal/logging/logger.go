// Package logging configures the structured logger shared by the CLI, the
// TUI and the registry client, and carries correlation IDs through contexts
// so every registry request of one user action can be traced together.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Format selects the log line encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseLevel parses a log level string. Unknown values fall back to info.
func ParseLevel(s string) log.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return log.DebugLevel
	case "INFO", "":
		return log.InfoLevel
	case "WARN", "WARNING":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ParseFormat parses a log format string. Unknown values fall back to text.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

// Options configures a logger.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// contextKey is used for storing values in context.
type contextKey string

const correlationIDKey contextKey = "correlation_id"

var (
	mu            sync.RWMutex
	defaultLogger = New()
)

// New creates a logger configured from LOG_LEVEL and LOG_FORMAT, writing to stderr.
func New() *log.Logger {
	return NewWithOptions(Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

// NewWithOptions creates a logger from explicit options.
func NewWithOptions(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	formatter := log.TextFormatter
	if ParseFormat(opts.Format) == FormatJSON {
		formatter = log.JSONFormatter
	}

	return log.NewWithOptions(out, log.Options{
		Level:           ParseLevel(opts.Level),
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
}

// Default returns the process-wide logger.
func Default() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *log.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// NewCorrelationID returns a fresh ID for one user action.
func NewCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a new context with the correlation ID set.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// GetCorrelationID retrieves the correlation ID from context.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// Annotate returns l with the context's correlation ID attached, if any.
func Annotate(ctx context.Context, l *log.Logger) *log.Logger {
	if id := GetCorrelationID(ctx); id != "" {
		return l.With("correlation_id", id)
	}
	return l
}
