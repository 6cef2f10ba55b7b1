package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
)

// SaveReceipt upserts a receipt with its extraction and matching state.
func (s *SQLiteStorage) SaveReceipt(ctx context.Context, receipt *model.Receipt) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if receipt == nil {
		return &common.ValidationError{Field: "receipt", Reason: "cannot be nil"}
	}
	if err := validateString(receipt.ID, "receipt id"); err != nil {
		return err
	}
	if err := validateString(receipt.TenantID, "tenant id"); err != nil {
		return err
	}
	if receipt.MatchStatus == "" {
		return &common.ValidationError{Field: "match status", Reason: "cannot be empty"}
	}

	var amount, taxAmount any
	if receipt.Extraction.Amount != nil {
		amount = receipt.Extraction.Amount.String()
	}
	if receipt.Extraction.TaxAmount != nil {
		taxAmount = receipt.Extraction.TaxAmount.String()
	}
	var txnDate any
	if receipt.Extraction.TransactionDate != nil {
		txnDate = receipt.Extraction.TransactionDate.UTC()
	}
	uploadedAt := receipt.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}

	_, err := s.execContext(ctx, "save receipt", `
		INSERT INTO receipts
			(id, tenant_id, file_name, mime_type, vendor_name, amount, tax_amount,
			 transaction_date, ocr_confidence, match_status, matched_transaction_id,
			 match_score, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			match_status = excluded.match_status,
			matched_transaction_id = excluded.matched_transaction_id,
			match_score = excluded.match_score`,
		receipt.ID, receipt.TenantID, receipt.FileName, receipt.MimeType,
		receipt.Extraction.VendorName, amount, taxAmount, txnDate,
		receipt.Extraction.Confidence, string(receipt.MatchStatus),
		receipt.MatchedTransactionID, receipt.MatchScore, uploadedAt)
	return err
}

// GetReceiptByID fetches a receipt.
func (s *SQLiteStorage) GetReceiptByID(ctx context.Context, tenantID, id string) (*model.Receipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenant id"); err != nil {
		return nil, err
	}
	if err := validateString(id, "receipt id"); err != nil {
		return nil, err
	}

	var r model.Receipt
	var status string
	var amount, taxAmount sql.NullString
	var txnDate sql.NullTime
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, file_name, mime_type, vendor_name, amount, tax_amount,
		       transaction_date, ocr_confidence, match_status, matched_transaction_id,
		       match_score, uploaded_at
		FROM receipts WHERE tenant_id = ? AND id = ?`, tenantID, id)
	err := row.Scan(&r.ID, &r.TenantID, &r.FileName, &r.MimeType,
		&r.Extraction.VendorName, &amount, &taxAmount, &txnDate,
		&r.Extraction.Confidence, &status, &r.MatchedTransactionID,
		&r.MatchScore, &r.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("receipt %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, &common.DatabaseError{Op: "query receipt", Err: err}
	}

	r.MatchStatus = model.MatchStatus(status)
	if amount.Valid {
		parsed, err := decimal.NewFromString(amount.String)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", amount.String, err)
		}
		r.Extraction.Amount = &parsed
	}
	if taxAmount.Valid {
		parsed, err := decimal.NewFromString(taxAmount.String)
		if err != nil {
			return nil, fmt.Errorf("parse stored tax amount %q: %w", taxAmount.String, err)
		}
		r.Extraction.TaxAmount = &parsed
	}
	if txnDate.Valid {
		d := txnDate.Time
		r.Extraction.TransactionDate = &d
	}
	return &r, nil
}
