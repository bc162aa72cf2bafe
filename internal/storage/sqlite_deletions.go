package storage

import (
	"context"
	"fmt"
	"time"
)

const insertDeletion = `
	INSERT INTO deletion_log
	(correlation_id, operation, registry, repository, tag, digest, success, error_kind, error, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectDeletions = `
	SELECT id, correlation_id, operation, registry, repository, tag, digest, success, error_kind, error, timestamp
	FROM deletion_log
`

// LogDeletion implements Storage.LogDeletion.
func (s *SQLiteStorage) LogDeletion(ctx context.Context, entry DeletionEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	return s.retryWithBackoff(ctx, func() error {
		_, err := s.db.ExecContext(ctx, insertDeletion, deletionArgs(entry)...)
		if err != nil {
			return fmt.Errorf("failed to log deletion: %w", err)
		}
		s.logger.Debug("logged deletion", "repo", entry.Repository, "tag", entry.Tag, "success", entry.Success)
		return nil
	})
}

// LogDeletionBatch implements Storage.LogDeletionBatch.
// Uses a transaction so a bulk delete is recorded completely or not at all.
func (s *SQLiteStorage) LogDeletionBatch(ctx context.Context, entries []DeletionEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range entries {
		if err := validateEntry(entries[i]); err != nil {
			return err
		}
		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = now
		}
	}

	return s.retryWithBackoff(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, insertDeletion)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, entry := range entries {
			if _, err := stmt.ExecContext(ctx, deletionArgs(entry)...); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert deletion entry: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		s.logger.Debug("logged deletion batch", "entries", len(entries))
		return nil
	})
}

// GetDeletionLog implements Storage.GetDeletionLog.
func (s *SQLiteStorage) GetDeletionLog(ctx context.Context, repository string, limit int) ([]DeletionEntry, error) {
	query, args := withLimit(selectDeletions+" WHERE repository = ? ORDER BY timestamp DESC, id DESC", []interface{}{repository}, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deletion log: %w", err)
	}
	defer rows.Close()

	return scanDeletionRows(rows)
}

// GetAllDeletionLog implements Storage.GetAllDeletionLog.
func (s *SQLiteStorage) GetAllDeletionLog(ctx context.Context, limit int) ([]DeletionEntry, error) {
	query, args := withLimit(selectDeletions+" ORDER BY timestamp DESC, id DESC", nil, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deletion log: %w", err)
	}
	defer rows.Close()

	return scanDeletionRows(rows)
}

func validateEntry(entry DeletionEntry) error {
	if !validOperations[entry.Operation] {
		return fmt.Errorf("invalid operation: %s (must be one of: %s, %s, %s)",
			entry.Operation, OperationDeleteTag, OperationDeleteDigest, OperationDeleteAll)
	}
	if entry.Repository == "" {
		return fmt.Errorf("deletion entry has no repository")
	}
	return nil
}

func deletionArgs(entry DeletionEntry) []interface{} {
	var errorMsg interface{}
	if entry.Error != "" {
		errorMsg = entry.Error
	}
	return []interface{}{
		entry.CorrelationID, entry.Operation, entry.Registry, entry.Repository,
		entry.Tag, entry.Digest, entry.Success, entry.ErrorKind, errorMsg, entry.Timestamp,
	}
}
