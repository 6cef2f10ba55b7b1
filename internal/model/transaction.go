// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is an immutable snapshot of a financial transaction,
// created by ledger sync or manual entry. The categorization pipeline never
// mutates it; derived fields (category id, tier, reasoning) are attached via
// persistence.
type TransactionRecord struct {
	Date         time.Time
	CreatedAt    time.Time
	ID           string
	TenantID     string
	Description  string // Raw transaction description
	Vendor       string // Cleaned merchant/vendor name, may be empty
	AccountLabel string // Source account label, may be empty
	Amount       decimal.Decimal
}

// ContentHash creates a deterministic hash for duplicate detection during
// import. Two records with the same date, amount, vendor, and account are
// the same transaction regardless of source file.
func (t *TransactionRecord) ContentHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s",
		t.TenantID,
		t.Date.Format("2006-01-02"),
		t.Amount.String(),
		t.Vendor,
		t.AccountLabel)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// DisplayName prefers the cleaned vendor name over the raw description.
func (t *TransactionRecord) DisplayName() string {
	if t.Vendor != "" {
		return t.Vendor
	}
	return t.Description
}
