package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptExtraction holds the OCR collaborator's output for one uploaded
// receipt. Every field except Confidence is optional; OCR routinely returns
// partial results on poor scans.
type ReceiptExtraction struct {
	VendorName      string           `json:"vendorName"`
	Amount          *decimal.Decimal `json:"amount"`
	TaxAmount       *decimal.Decimal `json:"taxAmount,omitempty"`
	TransactionDate *time.Time       `json:"transactionDate"`
	Confidence      float64          `json:"confidence"` // overall OCR confidence in [0,1]
}

// MatchStatus describes where a receipt sits in the matching workflow.
type MatchStatus string

// Match status constants.
const (
	MatchStatusUnmatched   MatchStatus = "unmatched"
	MatchStatusAutoLinked  MatchStatus = "auto_linked"
	MatchStatusNeedsReview MatchStatus = "needs_review"
	MatchStatusConfirmed   MatchStatus = "confirmed"
)

// Receipt is an uploaded receipt with its extraction and matching state.
type Receipt struct {
	UploadedAt           time.Time         `json:"uploadedAt"`
	ID                   string            `json:"id"`
	TenantID             string            `json:"tenantId"`
	FileName             string            `json:"fileName"`
	MimeType             string            `json:"mimeType"`
	MatchedTransactionID string            `json:"matchedTransactionId,omitempty"`
	Extraction           ReceiptExtraction `json:"extraction"`
	MatchStatus          MatchStatus       `json:"matchStatus"`
	MatchScore           float64           `json:"matchScore"`
}
