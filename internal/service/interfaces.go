// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/opencpa/ledgerpilot/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	TenantID  string
	Limit     int
	Offset    int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations. Upserts are idempotent by id.
	SaveTransactions(ctx context.Context, transactions []model.TransactionRecord) error
	GetTransactionByID(ctx context.Context, tenantID, id string) (*model.TransactionRecord, error)
	GetTransactionsByIDs(ctx context.Context, tenantID string, ids []string) ([]model.TransactionRecord, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.TransactionRecord, error)
	GetTransactionsInWindow(ctx context.Context, tenantID string, start, end time.Time) ([]model.TransactionRecord, error)

	// Classification results, written idempotently per transaction.
	SaveClassificationResults(ctx context.Context, tenantID string, results []model.ClassificationResult) error
	GetClassificationResult(ctx context.Context, tenantID, transactionID string) (*model.ClassificationResult, error)

	// Category operations.
	GetCategories(ctx context.Context, tenantID string) (model.Catalog, error)
	GetCategoryByName(ctx context.Context, tenantID, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, tenantID, name, description string) (*model.Category, error)
	DeactivateCategory(ctx context.Context, tenantID string, id int64) error

	// Receipt operations.
	SaveReceipt(ctx context.Context, receipt *model.Receipt) error
	GetReceiptByID(ctx context.Context, tenantID, id string) (*model.Receipt, error)

	// Audit chain operations. AppendAuditEntry must fail with
	// common.ErrChainConflict when expectedPrevious no longer matches the
	// stored latest hash.
	LatestAuditHash(ctx context.Context, tenantID string) (string, error)
	AppendAuditEntry(ctx context.Context, entry *model.AuditEntry, expectedPrevious string) (int64, error)
	GetAuditEntries(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error)
	ReviewAuditEntry(ctx context.Context, tenantID string, id int64, decision model.ReviewDecision, reviewedBy string) error

	// Database management.
	Migrate(ctx context.Context) error
	Close() error
}

// Classifier defines the contract for the external classification service.
// Both methods guarantee one result per request, in request order.
type Classifier interface {
	Classify(ctx context.Context, request model.ClassificationRequest) (model.ClassificationResult, error)
	ClassifyBatch(ctx context.Context, requests []model.ClassificationRequest) ([]model.ClassificationResult, error)
}

// OCRClient defines the contract for the receipt extraction service.
type OCRClient interface {
	Extract(ctx context.Context, fileBytes []byte, mimeType string) (model.ReceiptExtraction, error)
}

// LedgerSync pushes approved category assignments back to the accounting
// system. Fire-and-forget: failures are logged by implementations, never
// retried synchronously.
type LedgerSync interface {
	PushCategoryAssignment(ctx context.Context, tenantID, transactionID string, categoryID int64) error
}

// AuditRecorder is the single append path for audit records. No other
// component writes audit entries directly.
type AuditRecorder interface {
	Append(ctx context.Context, req AuditRequest) (*model.AuditEntry, error)
}

// AuditRequest carries the caller-supplied fields of one audit entry.
type AuditRequest struct {
	TenantID      string
	EventType     string
	EventCategory string
	ActorID       string
	ActorType     string
	EntityType    string
	EntityID      string
	Action        string
	OldValues     map[string]any
	NewValues     map[string]any
	RiskLevel     model.RiskLevel
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
