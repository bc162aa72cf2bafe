package storage

import (
	"context"
	"time"
)

// Storage defines the interface for the deletion history.
// The history belongs to the presentation layer; the registry client never
// touches it.
type Storage interface {
	// LogDeletion records one deletion attempt (append-only).
	LogDeletion(ctx context.Context, entry DeletionEntry) error

	// LogDeletionBatch records several attempts atomically, e.g. one bulk delete.
	LogDeletionBatch(ctx context.Context, entries []DeletionEntry) error

	// GetDeletionLog returns attempts for one repository, most recent first.
	// A limit of 0 returns everything.
	GetDeletionLog(ctx context.Context, repository string, limit int) ([]DeletionEntry, error)

	// GetAllDeletionLog returns attempts for all repositories, most recent first.
	GetAllDeletionLog(ctx context.Context, limit int) ([]DeletionEntry, error)

	// Close releases the database.
	Close() error
}

// DeletionEntry is one recorded deletion attempt.
type DeletionEntry struct {
	ID            int64     `json:"id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Operation     string    `json:"operation"`
	Registry      string    `json:"registry,omitempty"`
	Repository    string    `json:"repository"`
	Tag           string    `json:"tag,omitempty"`
	Digest        string    `json:"digest,omitempty"`
	Success       bool      `json:"success"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
