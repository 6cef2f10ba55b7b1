package storage

import (
	"context"

	"github.com/opencpa/ledgerpilot/internal/common"
)

// migrations are applied in order; schema_version records the last applied
// index so upgrades run only the tail.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id            TEXT NOT NULL,
		tenant_id     TEXT NOT NULL,
		description   TEXT NOT NULL,
		vendor        TEXT NOT NULL DEFAULT '',
		account_label TEXT NOT NULL DEFAULT '',
		amount        TEXT NOT NULL,
		date          DATETIME NOT NULL,
		content_hash  TEXT NOT NULL,
		created_at    DATETIME NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_content_hash
		ON transactions(tenant_id, content_hash);
	CREATE INDEX IF NOT EXISTS idx_transactions_date
		ON transactions(tenant_id, date);`,

	`CREATE TABLE IF NOT EXISTS categories (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id   TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_active   INTEGER NOT NULL DEFAULT 1,
		created_at  DATETIME NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_active_name
		ON categories(tenant_id, name) WHERE is_active = 1;`,

	`CREATE TABLE IF NOT EXISTS classification_results (
		tenant_id          TEXT NOT NULL,
		transaction_id     TEXT NOT NULL,
		suggested_category TEXT NOT NULL,
		category_id        INTEGER,
		confidence_score   REAL NOT NULL,
		confidence_tier    TEXT NOT NULL,
		reasoning          TEXT NOT NULL DEFAULT '',
		alternatives       TEXT NOT NULL DEFAULT '[]',
		classified_at      DATETIME NOT NULL,
		PRIMARY KEY (tenant_id, transaction_id)
	);`,

	`CREATE TABLE IF NOT EXISTS receipts (
		id                     TEXT NOT NULL,
		tenant_id              TEXT NOT NULL,
		file_name              TEXT NOT NULL DEFAULT '',
		mime_type              TEXT NOT NULL DEFAULT '',
		vendor_name            TEXT NOT NULL DEFAULT '',
		amount                 TEXT,
		tax_amount             TEXT,
		transaction_date       DATETIME,
		ocr_confidence         REAL NOT NULL DEFAULT 0,
		match_status           TEXT NOT NULL,
		matched_transaction_id TEXT NOT NULL DEFAULT '',
		match_score            REAL NOT NULL DEFAULT 0,
		uploaded_at            DATETIME NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);`,

	`CREATE TABLE IF NOT EXISTS audit_entries (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id       TEXT NOT NULL,
		event_type      TEXT NOT NULL,
		event_category  TEXT NOT NULL DEFAULT '',
		actor_id        TEXT NOT NULL DEFAULT '',
		actor_type      TEXT NOT NULL DEFAULT '',
		entity_type     TEXT NOT NULL,
		entity_id       TEXT NOT NULL,
		action          TEXT NOT NULL,
		old_values      TEXT,
		new_values      TEXT,
		change_summary  TEXT NOT NULL DEFAULT '',
		risk_level      TEXT NOT NULL,
		data_hash       TEXT NOT NULL,
		previous_hash   TEXT NOT NULL DEFAULT '',
		review          TEXT NOT NULL,
		reviewed_by     TEXT NOT NULL DEFAULT '',
		created_millis  INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_audit_chain_link
		ON audit_entries(tenant_id, previous_hash);
	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_entries(tenant_id, entity_type, entity_id);`,
}

// Migrate brings the schema up to the current version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return &common.DatabaseError{Op: "create schema_version", Err: err}
	}

	var version int
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&version); err != nil {
		return &common.DatabaseError{Op: "read schema version", Err: err}
	}

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return &common.DatabaseError{Op: "begin migration", Err: err}
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback()
			return &common.DatabaseError{Op: "apply migration", Err: err}
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM schema_version`); err != nil {
			tx.Rollback()
			return &common.DatabaseError{Op: "update schema version", Err: err}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			tx.Rollback()
			return &common.DatabaseError{Op: "update schema version", Err: err}
		}
		if err := tx.Commit(); err != nil {
			return &common.DatabaseError{Op: "commit migration", Err: err}
		}
		s.logger.Debug("applied migration", "version", i+1)
	}
	return nil
}
