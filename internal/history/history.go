// Package history keeps a SQLite audit log of mutating operations the
// daemon performed against the Vercel API. It is an audit trail, not a
// cache: reads never consult it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// History manages the operations audit log.
type History struct {
	db *sql.DB
}

// New opens (or creates) the audit database.
func New(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}
	if err := h.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return h, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			method TEXT NOT NULL,
			resource TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT,
			duration_ms REAL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_operations_created
		ON operations(created_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Record inserts one operation into the audit log.
func (h *History) Record(ctx context.Context, record *OperationRecord) (int64, error) {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO operations
		(method, resource, status, error_message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		record.Method,
		record.Resource,
		record.Status,
		record.ErrorMessage,
		record.DurationMS,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert operation record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// Recent returns the most recent operations, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]OperationRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, method, resource, status, error_message, duration_ms, created_at
		FROM operations
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var records []OperationRecord
	for rows.Next() {
		record, err := scanOperationRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOperationRecord(s scanner) (*OperationRecord, error) {
	var record OperationRecord
	var createdAtStr string

	err := s.Scan(
		&record.ID,
		&record.Method,
		&record.Resource,
		&record.Status,
		&record.ErrorMessage,
		&record.DurationMS,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
	}
	record.CreatedAt = createdAt

	return &record, nil
}
