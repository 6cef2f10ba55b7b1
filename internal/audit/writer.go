package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
	"github.com/opencpa/ledgerpilot/internal/service"
)

// maxAppendRetries bounds how often a conflicting append re-reads the latest
// hash before giving up.
const maxAppendRetries = 3

// Store is the slice of persistence the writer needs. AppendAuditEntry must
// reject the write with common.ErrChainConflict when expectedPrevious no
// longer matches the stored chain head.
type Store interface {
	LatestAuditHash(ctx context.Context, tenantID string) (string, error)
	AppendAuditEntry(ctx context.Context, entry *model.AuditEntry, expectedPrevious string) (int64, error)
}

// ConflictCounter counts chain append conflicts that triggered a retry.
// *metrics.Metrics satisfies it.
type ConflictCounter interface {
	RecordAuditConflict()
}

// Writer is the single append path for audit records. Appends are
// serialized per tenant: the read of the latest hash and the conditional
// insert are not atomic on their own, and two concurrent appends reading
// the same head would fork the chain.
type Writer struct {
	store     Store
	logger    *slog.Logger
	clock     func() time.Time
	conflicts ConflictCounter

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	lastMu     sync.Mutex
	lastMillis map[string]int64
}

// NewWriter creates an audit chain writer over the given store.
func NewWriter(store Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		store:      store,
		logger:     logger,
		clock:      time.Now,
		locks:      make(map[string]*sync.Mutex),
		lastMillis: make(map[string]int64),
	}
}

// SetConflictCounter attaches an optional counter incremented on every chain
// append conflict.
func (w *Writer) SetConflictCounter(c ConflictCounter) {
	w.conflicts = c
}

// Append builds and persists one chained audit entry. The previous hash is
// re-read and the entry rebuilt on a write conflict, a bounded number of
// times; chain forks are a correctness bug, not a performance tradeoff.
func (w *Writer) Append(ctx context.Context, req service.AuditRequest) (*model.AuditEntry, error) {
	if req.TenantID == "" {
		return nil, common.NewValidationError("tenantId", "tenant id is required")
	}
	if req.EventType == "" {
		return nil, common.NewValidationError("eventType", "event type is required")
	}
	if req.EntityType == "" {
		return nil, common.NewValidationError("entityType", "entity type is required")
	}
	if req.Action == "" {
		return nil, common.NewValidationError("action", "action is required")
	}
	if req.RiskLevel == "" {
		req.RiskLevel = model.RiskLow
	}

	lock := w.tenantLock(req.TenantID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt <= maxAppendRetries; attempt++ {
		previous, err := w.store.LatestAuditHash(ctx, req.TenantID)
		if err != nil {
			return nil, common.NewDatabaseError("read latest audit hash", err)
		}

		entry := w.buildEntry(req, previous)

		id, err := w.store.AppendAuditEntry(ctx, entry, previous)
		if err == nil {
			entry.ID = id
			return entry, nil
		}
		if !errors.Is(err, common.ErrChainConflict) {
			return nil, common.NewDatabaseError("append audit entry", err)
		}

		lastErr = err
		if w.conflicts != nil {
			w.conflicts.RecordAuditConflict()
		}
		w.logger.Warn("audit chain conflict, re-reading latest hash",
			"tenant_id", req.TenantID,
			"attempt", attempt+1)
	}

	return nil, fmt.Errorf("%w: gave up after %d attempts: %v", common.ErrChainConflict, maxAppendRetries+1, lastErr)
}

// buildEntry assembles the entry and computes its hash. The timestamp is
// forced strictly monotonic per tenant so the digest input never repeats.
func (w *Writer) buildEntry(req service.AuditRequest, previousHash string) *model.AuditEntry {
	millis := w.clock().UTC().UnixMilli()

	w.lastMu.Lock()
	if last := w.lastMillis[req.TenantID]; millis <= last {
		millis = last + 1
	}
	w.lastMillis[req.TenantID] = millis
	w.lastMu.Unlock()

	entry := &model.AuditEntry{
		TenantID:      req.TenantID,
		EventType:     req.EventType,
		EventCategory: req.EventCategory,
		ActorID:       req.ActorID,
		ActorType:     req.ActorType,
		EntityType:    req.EntityType,
		EntityID:      req.EntityID,
		Action:        req.Action,
		OldValues:     req.OldValues,
		NewValues:     req.NewValues,
		RiskLevel:     req.RiskLevel,
		PreviousHash:  previousHash,
		Review:        model.ReviewPending,
		CreatedAt:     time.UnixMilli(millis).UTC(),
	}
	entry.ChangeSummary = ChangeSummary(req.Action, req.EntityType, req.EntityID, req.OldValues, req.NewValues)
	entry.DataHash = ComputeDataHash(entry)
	return entry
}

func (w *Writer) tenantLock(tenantID string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	lock, ok := w.locks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[tenantID] = lock
	}
	return lock
}
