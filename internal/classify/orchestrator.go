package classify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
	"github.com/opencpa/ledgerpilot/internal/service"
)

// Mode selects how the orchestrator calls the classifier.
type Mode string

// Orchestration modes.
const (
	ModeBatch      Mode = "batch"
	ModeIndividual Mode = "individual"
)

// Config holds configuration options for the orchestrator.
type Config struct {
	// Concurrency caps concurrent individual classifier calls.
	Concurrency int
	// PerCallTimeout bounds each individual classifier call.
	PerCallTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:    10,
		PerCallTimeout: 30 * time.Second,
	}
}

// Orchestrator coordinates classification calls for a set of transactions.
// It guarantees one result per input transaction, in input order, regardless
// of per-item classifier failures.
type Orchestrator struct {
	classifier service.Classifier
	audit      service.AuditRecorder
	logger     *slog.Logger
	cfg        Config
}

// NewOrchestrator creates an orchestrator with the given dependencies.
func NewOrchestrator(classifier service.Classifier, audit service.AuditRecorder, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.PerCallTimeout <= 0 {
		cfg.PerCallTimeout = DefaultConfig().PerCallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		classifier: classifier,
		audit:      audit,
		cfg:        cfg,
		logger:     logger,
	}
}

// Categorize classifies the given transactions against the tenant's catalog.
// Batch mode issues one classifier call for all transactions and falls back
// to individual calls if that call fails outright. Individual mode fans out
// bounded concurrent calls, isolating per-item failures as synthetic
// Uncategorized results. Structurally invalid input fails the whole call.
func (o *Orchestrator) Categorize(ctx context.Context, tenantID string, txns []model.TransactionRecord, catalog model.Catalog, mode Mode) ([]model.ClassificationResult, model.CategorizeSummary, error) {
	if tenantID == "" {
		return nil, model.CategorizeSummary{}, common.NewValidationError("tenantId", "tenant id is required")
	}
	if len(txns) == 0 {
		return nil, model.CategorizeSummary{}, common.NewValidationError("transactions", "at least one transaction is required")
	}
	active := catalog.Active()
	if len(active) == 0 {
		return nil, model.CategorizeSummary{}, common.NewValidationError("catalog", "tenant has no active categories")
	}

	names := active.Names()
	requests := make([]model.ClassificationRequest, len(txns))
	for i, txn := range txns {
		req, err := BuildRequest(txn, names)
		if err != nil {
			return nil, model.CategorizeSummary{}, err
		}
		requests[i] = req
	}

	var results []model.ClassificationResult

	// Batch mode needs at least two transactions to be worth one call.
	if mode == ModeBatch && len(requests) >= 2 {
		batch, err := o.classifier.ClassifyBatch(ctx, requests)
		switch {
		case err != nil:
			o.logger.Warn("batch classification failed, falling back to individual calls",
				"tenant_id", tenantID,
				"count", len(requests),
				"error", err)
		case len(batch) != len(requests):
			o.logger.Warn("batch classification returned wrong result count, falling back",
				"tenant_id", tenantID,
				"want", len(requests),
				"got", len(batch))
		default:
			results = batch
		}
	}

	if results == nil {
		individual, err := o.classifyIndividually(ctx, requests)
		if err != nil {
			// Cancellation discards completed results as a unit.
			return nil, model.CategorizeSummary{}, err
		}
		results = individual
	}

	now := time.Now().UTC()
	for i := range results {
		results[i].TransactionID = txns[i].ID
		results[i].ConfidenceScore = model.ClampScore(results[i].ConfidenceScore)
		results[i].ConfidenceTier = model.TierForScore(results[i].ConfidenceScore)
		results[i].CategoryID = ResolveCategoryID(results[i].SuggestedCategory, active)
		results[i].ClassifiedAt = now
	}

	if err := o.recordAudit(ctx, tenantID, txns, results); err != nil {
		return nil, model.CategorizeSummary{}, err
	}

	return results, model.SummarizeResults(results), nil
}

// classifyIndividually fans out one classifier call per request, bounded by
// the concurrency cap, and collects results in input order. A failed call
// yields a synthetic fallback result; sibling calls are unaffected.
func (o *Orchestrator) classifyIndividually(ctx context.Context, requests []model.ClassificationRequest) ([]model.ClassificationResult, error) {
	results := make([]model.ClassificationResult, len(requests))

	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, req := range requests {
		wg.Add(1)
		go func(idx int, request model.ClassificationRequest) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = fallbackResult(request.TransactionID)
				return
			}

			callCtx, cancel := context.WithTimeout(ctx, o.cfg.PerCallTimeout)
			defer cancel()

			result, err := o.classifier.Classify(callCtx, request)
			if err != nil {
				o.logger.Warn("classification failed for transaction",
					"transaction_id", request.TransactionID,
					"error", err)
				results[idx] = fallbackResult(request.TransactionID)
				return
			}
			results[idx] = result
		}(i, req)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// fallbackResult is the synthetic record emitted when classification is
// unavailable for one transaction.
func fallbackResult(transactionID string) model.ClassificationResult {
	return model.ClassificationResult{
		TransactionID:     transactionID,
		SuggestedCategory: model.UncategorizedName,
		ConfidenceScore:   0,
		ConfidenceTier:    model.TierLow,
		Reasoning:         "classification unavailable",
	}
}

// recordAudit emits one ai_categorize entry per transaction through the
// single audit append path.
func (o *Orchestrator) recordAudit(ctx context.Context, tenantID string, txns []model.TransactionRecord, results []model.ClassificationResult) error {
	if o.audit == nil {
		return nil
	}

	for i, result := range results {
		newValues := map[string]any{
			"suggested_category": result.SuggestedCategory,
			"confidence_score":   result.ConfidenceScore,
			"confidence_tier":    string(result.ConfidenceTier),
		}
		if result.CategoryID != nil {
			newValues["category_id"] = *result.CategoryID
		}

		_, err := o.audit.Append(ctx, service.AuditRequest{
			TenantID:      tenantID,
			EventType:     "ai_categorize",
			EventCategory: "categorization",
			ActorID:       "system",
			ActorType:     "system",
			EntityType:    "transaction",
			EntityID:      txns[i].ID,
			Action:        "update",
			NewValues:     newValues,
			RiskLevel:     model.RiskLow,
		})
		if err != nil {
			return common.NewDatabaseError("audit append", err)
		}
	}
	return nil
}
