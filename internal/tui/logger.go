package tui

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// LogMsg is sent when a log line is captured
type LogMsg struct {
	Timestamp time.Time
	Message   string
}

// LogWriter is an io.Writer that forwards log lines into the TUI so they
// never draw over the alternate screen.
type LogWriter struct {
	send func(tea.Msg)
	mu   sync.Mutex
}

// NewLogWriter creates a log writer that sends log messages to program.
func NewLogWriter(program *tea.Program) *LogWriter {
	return &LogWriter{send: program.Send}
}

// Write implements io.Writer. One write may carry several lines.
func (w *LogWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.send == nil {
		return len(p), nil
	}
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.send(LogMsg{Timestamp: time.Now(), Message: line})
		}
	}
	return len(p), nil
}
