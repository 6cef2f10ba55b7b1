package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencpa/ledgerpilot/internal/common"
)

func TestNewPublisherRequiresURL(t *testing.T) {
	_, err := NewPublisher(Config{}, nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "ledgerpilot.assignments", cfg.Subject)
	assert.Positive(t, cfg.ConnectTimeout)
	assert.Positive(t, cfg.MaxReconnects)
}

func TestPushCategoryAssignmentCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &Publisher{}
	err := p.PushCategoryAssignment(ctx, "tenant-a", "txn-1", 7)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockLedgerSyncRecordsPushes(t *testing.T) {
	mock := NewMockLedgerSync()
	require.NoError(t, mock.PushCategoryAssignment(context.Background(), "tenant-a", "txn-1", 7))

	pushes := mock.Pushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, int64(7), pushes[0].CategoryID)
}
