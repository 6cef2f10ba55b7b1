package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
	"github.com/opencpa/ledgerpilot/internal/service"
)

// SaveTransactions upserts a batch of transactions. Re-importing the same
// file is a no-op: rows conflict on (tenant_id, id) and are overwritten with
// identical values.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.TransactionRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(transactions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &common.DatabaseError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (id, tenant_id, description, vendor, account_label, amount, date, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			description = excluded.description,
			vendor = excluded.vendor,
			account_label = excluded.account_label,
			amount = excluded.amount,
			date = excluded.date,
			content_hash = excluded.content_hash`)
	if err != nil {
		return &common.DatabaseError{Op: "prepare transaction insert", Err: err}
	}
	defer stmt.Close()

	for i := range transactions {
		t := &transactions[i]
		if err := validateString(t.ID, "transaction id"); err != nil {
			return err
		}
		if err := validateString(t.TenantID, "tenant id"); err != nil {
			return err
		}
		createdAt := t.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.TenantID, t.Description, t.Vendor, t.AccountLabel,
			t.Amount.String(), t.Date.UTC(), t.ContentHash(), createdAt,
		); err != nil {
			if isUniqueViolation(err) {
				// Same content imported under a different id; skip the dupe.
				s.logger.Debug("skipping duplicate transaction",
					"transaction_id", t.ID,
					"content_hash", t.ContentHash())
				continue
			}
			return &common.DatabaseError{Op: "insert transaction", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &common.DatabaseError{Op: "commit transactions", Err: err}
	}
	return nil
}

// GetTransactionByID fetches a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, tenantID, id string) (*model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenant id"); err != nil {
		return nil, err
	}
	if err := validateString(id, "transaction id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, description, vendor, account_label, amount, date, created_at
		FROM transactions WHERE tenant_id = ? AND id = ?`, tenantID, id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, &common.DatabaseError{Op: "query transaction", Err: err}
	}
	return t, nil
}

// GetTransactionsByIDs fetches transactions by id, preserving input order.
// Missing ids are simply absent from the result.
func (s *SQLiteStorage) GetTransactionsByIDs(ctx context.Context, tenantID string, ids []string) ([]model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenant id"); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, tenantID)
	for _, id := range ids {
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, description, vendor, account_label, amount, date, created_at
		FROM transactions WHERE tenant_id = ? AND id IN (%s)`, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &common.DatabaseError{Op: "query transactions by ids", Err: err}
	}
	defer rows.Close()

	byID := make(map[string]model.TransactionRecord, len(ids))
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, &common.DatabaseError{Op: "scan transaction", Err: err}
		}
		byID[t.ID] = *t
	}
	if err := rows.Err(); err != nil {
		return nil, &common.DatabaseError{Op: "iterate transactions", Err: err}
	}

	result := make([]model.TransactionRecord, 0, len(byID))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			result = append(result, t)
		}
	}
	return result, nil
}

// GetTransactions returns transactions matching the filter, newest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(filter.TenantID, "tenant id"); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT id, tenant_id, description, vendor, account_label, amount, date, created_at
		FROM transactions WHERE tenant_id = ?`)
	args := []any{filter.TenantID}

	if filter.StartDate != nil {
		sb.WriteString(" AND date >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		sb.WriteString(" AND date <= ?")
		args = append(args, filter.EndDate.UTC())
	}
	sb.WriteString(" ORDER BY date DESC, id ASC")
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			sb.WriteString(" OFFSET ?")
			args = append(args, filter.Offset)
		}
	}

	return s.queryTransactions(ctx, sb.String(), args...)
}

// GetTransactionsInWindow returns transactions dated within [start, end],
// ordered by date ascending for candidate scoring.
func (s *SQLiteStorage) GetTransactionsInWindow(ctx context.Context, tenantID string, start, end time.Time) ([]model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenant id"); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, &common.ValidationError{Field: "window", Reason: "end precedes start"}
	}

	return s.queryTransactions(ctx, `
		SELECT id, tenant_id, description, vendor, account_label, amount, date, created_at
		FROM transactions WHERE tenant_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, id ASC`, tenantID, start.UTC(), end.UTC())
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &common.DatabaseError{Op: "query transactions", Err: err}
	}
	defer rows.Close()

	var result []model.TransactionRecord
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, &common.DatabaseError{Op: "scan transaction", Err: err}
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.DatabaseError{Op: "iterate transactions", Err: err}
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.TransactionRecord, error) {
	var t model.TransactionRecord
	var amount string
	if err := row.Scan(&t.ID, &t.TenantID, &t.Description, &t.Vendor,
		&t.AccountLabel, &amount, &t.Date, &t.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	t.Amount = parsed
	return &t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
