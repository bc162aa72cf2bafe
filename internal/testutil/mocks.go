// Package testutil provides shared testing utilities for the regman test suite.
// This package contains fixtures, test data factories, and fakes.
package testutil

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chis/regman/internal/storage"
)

// Common test errors for use in mocks
var (
	ErrMockDatabase = errors.New("database error")
	ErrMockClosed   = errors.New("storage closed")
)

// NewDeletionEntry creates a DeletionEntry for testing
func NewDeletionEntry(repository, tag string, success bool) storage.DeletionEntry {
	entry := storage.DeletionEntry{
		Operation:  storage.OperationDeleteTag,
		Registry:   "https://registry.test",
		Repository: repository,
		Tag:        tag,
		Digest:     "sha256:" + strings.Repeat("a", 64),
		Success:    success,
		Timestamp:  time.Now().UTC(),
	}
	if !success {
		entry.ErrorKind = "DeleteRejected"
		entry.Error = "delete rejected"
	}
	return entry
}

// MemoryHistory is an in-memory storage.Storage for tests that exercise
// history recording without SQLite.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []storage.DeletionEntry
	nextID  int64
	closed  bool

	// FailWrites makes every Log call return ErrMockDatabase.
	FailWrites bool
}

var _ storage.Storage = (*MemoryHistory)(nil)

// NewMemoryHistory returns an empty MemoryHistory.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (m *MemoryHistory) LogDeletion(ctx context.Context, entry storage.DeletionEntry) error {
	return m.LogDeletionBatch(ctx, []storage.DeletionEntry{entry})
}

func (m *MemoryHistory) LogDeletionBatch(_ context.Context, entries []storage.DeletionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMockClosed
	}
	if m.FailWrites {
		return ErrMockDatabase
	}
	for _, e := range entries {
		m.nextID++
		e.ID = m.nextID
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now().UTC()
		}
		m.entries = append(m.entries, e)
	}
	return nil
}

func (m *MemoryHistory) GetDeletionLog(_ context.Context, repository string, limit int) ([]storage.DeletionEntry, error) {
	return m.query(func(e storage.DeletionEntry) bool { return e.Repository == repository }, limit)
}

func (m *MemoryHistory) GetAllDeletionLog(_ context.Context, limit int) ([]storage.DeletionEntry, error) {
	return m.query(func(storage.DeletionEntry) bool { return true }, limit)
}

func (m *MemoryHistory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Entries returns every recorded entry in insertion order.
func (m *MemoryHistory) Entries() []storage.DeletionEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.DeletionEntry(nil), m.entries...)
}

func (m *MemoryHistory) query(match func(storage.DeletionEntry) bool, limit int) ([]storage.DeletionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrMockClosed
	}

	out := make([]storage.DeletionEntry, 0)
	for _, e := range m.entries {
		if match(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
