package logging

import (
	"io"
	"sync"
)

// RedirectWriter is an io.Writer whose target can be swapped after loggers
// have been derived from it. Child loggers copy their writer, so the swap
// has to happen below them.
type RedirectWriter struct {
	mu sync.RWMutex
	w  io.Writer
}

// NewRedirectWriter returns a RedirectWriter writing to w.
func NewRedirectWriter(w io.Writer) *RedirectWriter {
	return &RedirectWriter{w: w}
}

// Write implements io.Writer.
func (r *RedirectWriter) Write(p []byte) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.w == nil {
		return len(p), nil
	}
	return r.w.Write(p)
}

// Redirect sends subsequent writes to w and returns the previous target.
func (r *RedirectWriter) Redirect(w io.Writer) io.Writer {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.w
	r.w = w
	return prev
}
