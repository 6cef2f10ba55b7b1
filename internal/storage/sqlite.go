// Package storage provides SQLite-backed persistence for transactions,
// categories, classification results, receipts, and the audit chain.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/service"
)

// SQLiteStorage implements service.Storage on top of a single SQLite file.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ service.Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (or creates) the database at dbPath.
func NewSQLiteStorage(dbPath string, logger *slog.Logger) (*SQLiteStorage, error) {
	if dbPath == "" {
		return nil, &common.ValidationError{Field: "dbPath", Reason: "cannot be empty"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &common.DatabaseError{Op: "open database", Err: err}
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent appends.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &common.DatabaseError{Op: "ping database", Err: err}
	}

	return &SQLiteStorage{db: db, logger: logger}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStorage) execContext(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &common.DatabaseError{Op: op, Err: err}
	}
	return res, nil
}
