package ledger

import (
	"context"
	"sync"

	"github.com/opencpa/ledgerpilot/internal/service"
)

// MockLedgerSync records pushed assignments for tests.
type MockLedgerSync struct {
	mu      sync.Mutex
	pushes  []MockPush
	failAll error
}

// MockPush is one recorded PushCategoryAssignment call.
type MockPush struct {
	TenantID      string
	TransactionID string
	CategoryID    int64
}

var _ service.LedgerSync = (*MockLedgerSync)(nil)

// NewMockLedgerSync creates a recording mock.
func NewMockLedgerSync() *MockLedgerSync {
	return &MockLedgerSync{}
}

// FailWith makes every push return err.
func (m *MockLedgerSync) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
}

// PushCategoryAssignment implements service.LedgerSync.
func (m *MockLedgerSync) PushCategoryAssignment(_ context.Context, tenantID, transactionID string, categoryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	m.pushes = append(m.pushes, MockPush{
		TenantID:      tenantID,
		TransactionID: transactionID,
		CategoryID:    categoryID,
	})
	return nil
}

// Pushes returns a copy of the recorded calls.
func (m *MockLedgerSync) Pushes() []MockPush {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockPush, len(m.pushes))
	copy(out, m.pushes)
	return out
}
