package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	storage, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

// TestDatabaseInitialization tests that database connection succeeds with valid path
func TestDatabaseInitialization(t *testing.T) {
	storage := newTestStorage(t)

	if storage.db == nil {
		t.Fatal("Expected database connection to be non-nil")
	}
}

// TestMigrationSystemRuns tests that the deletion_log table exists after startup
func TestMigrationSystemRuns(t *testing.T) {
	storage := newTestStorage(t)

	var count int
	err := storage.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='deletion_log'").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query database schema: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected deletion_log table, got %d matches", count)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	first, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("First open failed: %v", err)
	}
	if err := first.LogDeletion(context.Background(), DeletionEntry{
		Operation: OperationDeleteTag, Repository: "app", Tag: "v1", Success: true,
	}); err != nil {
		t.Fatalf("LogDeletion failed: %v", err)
	}
	first.Close()

	second, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer second.Close()

	entries, err := second.GetAllDeletionLog(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetAllDeletionLog failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected history to survive reopen, got %d entries", len(entries))
	}
}

// TestGracefulFallbackWhenDatabaseUnavailable tests that an unusable path returns an error
func TestGracefulFallbackWhenDatabaseUnavailable(t *testing.T) {
	// A regular file where the parent directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	storage, err := NewSQLiteStorage(filepath.Join(blocker, "history.db"))
	if storage != nil {
		storage.Close()
		t.Error("Expected nil storage for invalid path")
	}
	if err == nil {
		t.Error("Expected error for invalid database path")
	}
}

func TestLogDeletionRoundTrip(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	entry := DeletionEntry{
		CorrelationID: "c-1",
		Operation:     OperationDeleteTag,
		Registry:      "https://registry.example.com",
		Repository:    "app",
		Tag:           "v1",
		Digest:        "sha256:aaaa",
		Success:       true,
	}
	if err := storage.LogDeletion(ctx, entry); err != nil {
		t.Fatalf("LogDeletion failed: %v", err)
	}

	entries, err := storage.GetDeletionLog(ctx, "app", 10)
	if err != nil {
		t.Fatalf("GetDeletionLog failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	got := entries[0]
	if got.ID == 0 {
		t.Error("Expected ID to be assigned")
	}
	if got.Tag != "v1" || got.Digest != "sha256:aaaa" || !got.Success {
		t.Errorf("Unexpected entry: %+v", got)
	}
	if got.CorrelationID != "c-1" || got.Registry != "https://registry.example.com" {
		t.Errorf("Unexpected metadata: %+v", got)
	}
	if got.Error != "" {
		t.Errorf("Expected empty error, got %q", got.Error)
	}
	if got.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestLogDeletionRecordsFailure(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	err := storage.LogDeletion(ctx, DeletionEntry{
		Operation:  OperationDeleteTag,
		Repository: "app",
		Tag:        "v3",
		Success:    false,
		ErrorKind:  "DeleteRejected",
		Error:      "delete rejected (403 DENIED)",
	})
	if err != nil {
		t.Fatalf("LogDeletion failed: %v", err)
	}

	entries, err := storage.GetDeletionLog(ctx, "app", 0)
	if err != nil {
		t.Fatalf("GetDeletionLog failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Success {
		t.Error("Expected failed entry")
	}
	if entries[0].ErrorKind != "DeleteRejected" {
		t.Errorf("Expected DeleteRejected, got %q", entries[0].ErrorKind)
	}
	if entries[0].Error != "delete rejected (403 DENIED)" {
		t.Errorf("Unexpected error text %q", entries[0].Error)
	}
}

func TestLogDeletionRejectsInvalidEntries(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry DeletionEntry
	}{
		{"unknown operation", DeletionEntry{Operation: "purge", Repository: "app"}},
		{"missing repository", DeletionEntry{Operation: OperationDeleteTag}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := storage.LogDeletion(ctx, tt.entry); err == nil {
				t.Error("Expected validation error")
			}
		})
	}

	entries, err := storage.GetAllDeletionLog(ctx, 0)
	if err != nil {
		t.Fatalf("GetAllDeletionLog failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected nothing written, got %d entries", len(entries))
	}
}

func TestLogDeletionBatch(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	batch := []DeletionEntry{
		{CorrelationID: "bulk", Operation: OperationDeleteAll, Repository: "app", Tag: "v1", Success: true},
		{CorrelationID: "bulk", Operation: OperationDeleteAll, Repository: "app", Tag: "v2", Success: true},
		{CorrelationID: "bulk", Operation: OperationDeleteAll, Repository: "app", Tag: "v3", ErrorKind: "DigestMissing", Error: "digest missing"},
	}
	if err := storage.LogDeletionBatch(ctx, batch); err != nil {
		t.Fatalf("LogDeletionBatch failed: %v", err)
	}

	entries, err := storage.GetDeletionLog(ctx, "app", 0)
	if err != nil {
		t.Fatalf("GetDeletionLog failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	failed := 0
	for _, e := range entries {
		if e.CorrelationID != "bulk" {
			t.Errorf("Expected correlation id bulk, got %q", e.CorrelationID)
		}
		if !e.Success {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("Expected 1 failed entry, got %d", failed)
	}
}

func TestLogDeletionBatchIsAtomic(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	batch := []DeletionEntry{
		{Operation: OperationDeleteAll, Repository: "app", Tag: "v1", Success: true},
		{Operation: "bogus", Repository: "app", Tag: "v2"},
	}
	if err := storage.LogDeletionBatch(ctx, batch); err == nil {
		t.Fatal("Expected error for invalid entry in batch")
	}

	entries, err := storage.GetAllDeletionLog(ctx, 0)
	if err != nil {
		t.Fatalf("GetAllDeletionLog failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no partial batch, got %d entries", len(entries))
	}
}

func TestLogDeletionBatchEmpty(t *testing.T) {
	storage := newTestStorage(t)
	if err := storage.LogDeletionBatch(context.Background(), nil); err != nil {
		t.Errorf("Expected nil error for empty batch, got %v", err)
	}
}

func TestDeletionLogOrderingAndLimit(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, tag := range []string{"v1", "v2", "v3"} {
		err := storage.LogDeletion(ctx, DeletionEntry{
			Operation:  OperationDeleteTag,
			Repository: "app",
			Tag:        tag,
			Success:    true,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("LogDeletion failed: %v", err)
		}
	}
	if err := storage.LogDeletion(ctx, DeletionEntry{
		Operation: OperationDeleteTag, Repository: "other", Tag: "x", Success: true,
		Timestamp: base.Add(time.Hour),
	}); err != nil {
		t.Fatalf("LogDeletion failed: %v", err)
	}

	entries, err := storage.GetDeletionLog(ctx, "app", 2)
	if err != nil {
		t.Fatalf("GetDeletionLog failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Tag != "v3" || entries[1].Tag != "v2" {
		t.Errorf("Expected most recent first, got %s, %s", entries[0].Tag, entries[1].Tag)
	}

	all, err := storage.GetAllDeletionLog(ctx, 0)
	if err != nil {
		t.Fatalf("GetAllDeletionLog failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(all))
	}
	if all[0].Repository != "other" {
		t.Errorf("Expected newest entry first, got %s", all[0].Repository)
	}
}

func TestGetDeletionLogUnknownRepository(t *testing.T) {
	storage := newTestStorage(t)

	entries, err := storage.GetDeletionLog(context.Background(), "missing", 0)
	if err != nil {
		t.Fatalf("GetDeletionLog failed: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", entries)
	}
}

func TestRetryWithBackoffStopsOnOtherErrors(t *testing.T) {
	storage := newTestStorage(t)

	calls := 0
	err := storage.retryWithBackoff(context.Background(), func() error {
		calls++
		return os.ErrPermission
	})
	if err != os.ErrPermission {
		t.Errorf("Expected permission error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}
