package classify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
	"github.com/opencpa/ledgerpilot/internal/service"
)

// recordingAuditor captures audit requests for assertions.
type recordingAuditor struct {
	requests []service.AuditRequest
	err      error
	mu       sync.Mutex
}

func (r *recordingAuditor) Append(_ context.Context, req service.AuditRequest) (*model.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.requests = append(r.requests, req)
	return &model.AuditEntry{TenantID: req.TenantID, EventType: req.EventType}, nil
}

func testTransactions(ids ...string) []model.TransactionRecord {
	txns := make([]model.TransactionRecord, len(ids))
	for i, id := range ids {
		txns[i] = testTransaction(id)
	}
	return txns
}

func TestCategorizeIndividual(t *testing.T) {
	ctx := context.Background()

	t.Run("one result per transaction in input order", func(t *testing.T) {
		mock := NewMockClassifier()
		mock.SetResponse("txn-1", "Office Supplies", 0.95)
		mock.SetResponse("txn-2", "Travel", 0.80)
		mock.SetResponse("txn-3", "Office Supplies", 0.91)

		auditor := &recordingAuditor{}
		orch := NewOrchestrator(mock, auditor, Config{}, nil)

		results, summary, err := orch.Categorize(ctx, "tenant-1", testTransactions("txn-1", "txn-2", "txn-3"), testCatalog(), ModeIndividual)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "txn-1", results[0].TransactionID)
		assert.Equal(t, "txn-2", results[1].TransactionID)
		assert.Equal(t, "txn-3", results[2].TransactionID)
		assert.Equal(t, model.TierHigh, results[0].ConfidenceTier)
		assert.Equal(t, model.TierMedium, results[1].ConfidenceTier)
		assert.Equal(t, 3, summary.Total)
		assert.Equal(t, 2, summary.HighConfidence)
	})

	t.Run("per-item failure is isolated", func(t *testing.T) {
		mock := NewMockClassifier()
		mock.SetResponse("txn-1", "Office Supplies", 0.95)
		mock.FailTransaction("txn-2", errors.New("classifier exploded"))
		mock.SetResponse("txn-3", "Travel", 0.80)

		orch := NewOrchestrator(mock, &recordingAuditor{}, Config{}, nil)

		results, _, err := orch.Categorize(ctx, "tenant-1", testTransactions("txn-1", "txn-2", "txn-3"), testCatalog(), ModeIndividual)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, model.UncategorizedName, results[1].SuggestedCategory)
		assert.Equal(t, model.TierLow, results[1].ConfidenceTier)
		assert.Zero(t, results[1].ConfidenceScore)
		assert.Equal(t, "classification unavailable", results[1].Reasoning)
		assert.Nil(t, results[1].CategoryID)

		// Siblings are unaffected.
		assert.Equal(t, "Office Supplies", results[0].SuggestedCategory)
		require.NotNil(t, results[0].CategoryID)
		assert.Equal(t, int64(1), *results[0].CategoryID)
		assert.Equal(t, "Travel", results[2].SuggestedCategory)
	})

	t.Run("cancelled context discards results as a unit", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		mock := NewMockClassifier()
		orch := NewOrchestrator(mock, &recordingAuditor{}, Config{}, nil)

		results, _, err := orch.Categorize(cancelled, "tenant-1", testTransactions("txn-1", "txn-2"), testCatalog(), ModeIndividual)
		require.Error(t, err)
		assert.Nil(t, results)
	})
}

func TestCategorizeBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("batch mode issues one call", func(t *testing.T) {
		mock := NewMockClassifier()
		mock.SetResponse("txn-1", "Office Supplies", 0.95)
		mock.SetResponse("txn-2", "Travel", 0.80)

		orch := NewOrchestrator(mock, &recordingAuditor{}, Config{}, nil)

		results, _, err := orch.Categorize(ctx, "tenant-1", testTransactions("txn-1", "txn-2"), testCatalog(), ModeBatch)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 1, mock.BatchCalls())
		assert.Equal(t, 0, mock.ClassifyCalls())
	})

	t.Run("batch failure falls back to individual calls", func(t *testing.T) {
		mock := NewMockClassifier()
		mock.FailBatch(errors.New("batch endpoint down"))
		mock.SetResponse("txn-1", "Office Supplies", 0.95)
		mock.SetResponse("txn-2", "Travel", 0.80)

		orch := NewOrchestrator(mock, &recordingAuditor{}, Config{}, nil)

		results, _, err := orch.Categorize(ctx, "tenant-1", testTransactions("txn-1", "txn-2"), testCatalog(), ModeBatch)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "Office Supplies", results[0].SuggestedCategory)
		assert.Equal(t, "Travel", results[1].SuggestedCategory)
		assert.Equal(t, 1, mock.BatchCalls())
		assert.Equal(t, 2, mock.ClassifyCalls())
	})

	t.Run("single transaction skips batch call", func(t *testing.T) {
		mock := NewMockClassifier()
		mock.SetResponse("txn-1", "Travel", 0.85)

		orch := NewOrchestrator(mock, &recordingAuditor{}, Config{}, nil)

		results, _, err := orch.Categorize(ctx, "tenant-1", testTransactions("txn-1"), testCatalog(), ModeBatch)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 0, mock.BatchCalls())
		assert.Equal(t, 1, mock.ClassifyCalls())
	})

	t.Run("mixed tier summary", func(t *testing.T) {
		mock := NewMockClassifier()
		mock.SetResponse("txn-1", "Office Supplies", 0.95)
		mock.SetResponse("txn-2", "Travel", 0.80)
		mock.SetResponse("txn-3", "Bad", 0.30)

		orch := NewOrchestrator(mock, &recordingAuditor{}, Config{}, nil)

		results, summary, err := orch.Categorize(ctx, "tenant-1", testTransactions("txn-1", "txn-2", "txn-3"), testCatalog(), ModeBatch)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.HighConfidence)
		assert.Equal(t, 1, summary.MediumConfidence)
		assert.Equal(t, 1, summary.LowConfidence)
		assert.Nil(t, results[2].CategoryID, "unknown name must resolve to Uncategorized")
	})
}

func TestCategorizeValidation(t *testing.T) {
	ctx := context.Background()
	orch := NewOrchestrator(NewMockClassifier(), &recordingAuditor{}, Config{}, nil)

	t.Run("empty transaction list", func(t *testing.T) {
		_, _, err := orch.Categorize(ctx, "tenant-1", nil, testCatalog(), ModeIndividual)
		assert.True(t, common.IsValidation(err))
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, _, err := orch.Categorize(ctx, "", testTransactions("txn-1"), testCatalog(), ModeIndividual)
		assert.True(t, common.IsValidation(err))
	})

	t.Run("empty catalog", func(t *testing.T) {
		_, _, err := orch.Categorize(ctx, "tenant-1", testTransactions("txn-1"), model.Catalog{}, ModeIndividual)
		assert.True(t, common.IsValidation(err))
	})

	t.Run("malformed transaction fails whole call", func(t *testing.T) {
		txns := testTransactions("txn-1", "txn-2")
		txns[1].Description = ""
		_, _, err := orch.Categorize(ctx, "tenant-1", txns, testCatalog(), ModeIndividual)
		assert.True(t, common.IsValidation(err))
	})
}

func TestCategorizeAudit(t *testing.T) {
	ctx := context.Background()

	t.Run("one entry per transaction", func(t *testing.T) {
		mock := NewMockClassifier()
		mock.SetResponse("txn-1", "Office Supplies", 0.95)
		mock.SetResponse("txn-2", "Travel", 0.80)

		auditor := &recordingAuditor{}
		orch := NewOrchestrator(mock, auditor, Config{}, nil)

		_, _, err := orch.Categorize(ctx, "tenant-1", testTransactions("txn-1", "txn-2"), testCatalog(), ModeIndividual)
		require.NoError(t, err)
		require.Len(t, auditor.requests, 2)
		assert.Equal(t, "ai_categorize", auditor.requests[0].EventType)
		assert.Equal(t, "txn-1", auditor.requests[0].EntityID)
		assert.Equal(t, "txn-2", auditor.requests[1].EntityID)
	})

	t.Run("audit failure surfaces as database error", func(t *testing.T) {
		mock := NewMockClassifier()
		mock.SetResponse("txn-1", "Travel", 0.85)

		auditor := &recordingAuditor{err: errors.New("disk full")}
		orch := NewOrchestrator(mock, auditor, Config{}, nil)

		_, _, err := orch.Categorize(ctx, "tenant-1", testTransactions("txn-1"), testCatalog(), ModeIndividual)
		require.Error(t, err)
		var dbErr *common.DatabaseError
		assert.ErrorAs(t, err, &dbErr)
	})
}
