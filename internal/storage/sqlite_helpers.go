package storage

import (
	"database/sql"
	"fmt"
)

// scanDeletionRows scans deletion log rows, handling the nullable error column.
func scanDeletionRows(rows *sql.Rows) ([]DeletionEntry, error) {
	entries := make([]DeletionEntry, 0)
	for rows.Next() {
		var entry DeletionEntry
		var errorMsg sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.CorrelationID,
			&entry.Operation,
			&entry.Registry,
			&entry.Repository,
			&entry.Tag,
			&entry.Digest,
			&entry.Success,
			&entry.ErrorKind,
			&errorMsg,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deletion entry: %w", err)
		}

		if errorMsg.Valid {
			entry.Error = errorMsg.String
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deletion rows: %w", err)
	}
	return entries, nil
}

// withLimit appends a LIMIT clause when limit > 0.
func withLimit(query string, args []interface{}, limit int) (string, []interface{}) {
	if limit > 0 {
		return query + " LIMIT ?", append(args, limit)
	}
	return query, args
}
