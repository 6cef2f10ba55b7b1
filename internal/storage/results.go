package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
)

// SaveClassificationResults upserts one result per transaction. Re-running
// categorization replaces the previous suggestion.
func (s *SQLiteStorage) SaveClassificationResults(ctx context.Context, tenantID string, results []model.ClassificationResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenant id"); err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &common.DatabaseError{Op: "begin results", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO classification_results
			(tenant_id, transaction_id, suggested_category, category_id,
			 confidence_score, confidence_tier, reasoning, alternatives, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, transaction_id) DO UPDATE SET
			suggested_category = excluded.suggested_category,
			category_id = excluded.category_id,
			confidence_score = excluded.confidence_score,
			confidence_tier = excluded.confidence_tier,
			reasoning = excluded.reasoning,
			alternatives = excluded.alternatives,
			classified_at = excluded.classified_at`)
	if err != nil {
		return &common.DatabaseError{Op: "prepare result insert", Err: err}
	}
	defer stmt.Close()

	for i := range results {
		r := &results[i]
		if err := validateString(r.TransactionID, "transaction id"); err != nil {
			return err
		}
		alternatives, err := json.Marshal(r.Alternatives)
		if err != nil {
			return &common.DatabaseError{Op: "encode alternatives", Err: err}
		}
		var categoryID any
		if r.CategoryID != nil {
			categoryID = *r.CategoryID
		}
		if _, err := stmt.ExecContext(ctx,
			tenantID, r.TransactionID, r.SuggestedCategory, categoryID,
			r.ConfidenceScore, string(r.ConfidenceTier), r.Reasoning,
			string(alternatives), r.ClassifiedAt.UTC(),
		); err != nil {
			return &common.DatabaseError{Op: "insert result", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &common.DatabaseError{Op: "commit results", Err: err}
	}
	return nil
}

// GetClassificationResult fetches the latest stored result for a transaction.
func (s *SQLiteStorage) GetClassificationResult(ctx context.Context, tenantID, transactionID string) (*model.ClassificationResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenant id"); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transaction id"); err != nil {
		return nil, err
	}

	var r model.ClassificationResult
	var tier, alternatives string
	var categoryID sql.NullInt64
	row := s.db.QueryRowContext(ctx, `
		SELECT transaction_id, suggested_category, category_id, confidence_score,
		       confidence_tier, reasoning, alternatives, classified_at
		FROM classification_results
		WHERE tenant_id = ? AND transaction_id = ?`, tenantID, transactionID)
	err := row.Scan(&r.TransactionID, &r.SuggestedCategory, &categoryID,
		&r.ConfidenceScore, &tier, &r.Reasoning, &alternatives, &r.ClassifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("classification for %s: %w", transactionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, &common.DatabaseError{Op: "query result", Err: err}
	}

	r.ConfidenceTier = model.ConfidenceTier(tier)
	if categoryID.Valid {
		id := categoryID.Int64
		r.CategoryID = &id
	}
	if err := json.Unmarshal([]byte(alternatives), &r.Alternatives); err != nil {
		return nil, &common.DatabaseError{Op: "decode alternatives", Err: err}
	}
	return &r, nil
}
