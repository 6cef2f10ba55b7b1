package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/opencpa/ledgerpilot/internal/model"
	"github.com/opencpa/ledgerpilot/internal/service"
)

// stubClient returns canned completions in order.
type stubClient struct {
	responses []string
	err       error
	calls     int
}

func (s *stubClient) Complete(_ context.Context, _, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", errors.New("stub exhausted")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func newTestClassifier(client Client) *Classifier {
	return &Classifier{
		client:  client,
		cache:   newResultCache(time.Minute),
		logger:  slog.Default(),
		limiter: rate.NewLimiter(rate.Inf, 1),
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{Name: "test"}),
		retryOpts: service.RetryOptions{
			MaxAttempts:  1,
			InitialDelay: time.Millisecond,
		},
	}
}

func classificationRequest(id, description string) model.ClassificationRequest {
	return model.ClassificationRequest{
		TransactionID: id,
		Description:   description,
		Amount:        "89.99",
		Date:          time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		CategoryNames: []string{"Office Supplies", "Travel"},
	}
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	t.Run("maps payload to result", func(t *testing.T) {
		client := &stubClient{responses: []string{
			`{"category": "Office Supplies", "confidence": 0.95, "reasoning": "stationery", "alternatives": ["Software"]}`,
		}}
		c := newTestClassifier(client)
		defer c.Close()

		result, err := c.Classify(ctx, classificationRequest("txn-1", "STAPLES"))
		require.NoError(t, err)
		assert.Equal(t, "txn-1", result.TransactionID)
		assert.Equal(t, "Office Supplies", result.SuggestedCategory)
		assert.Equal(t, model.TierHigh, result.ConfidenceTier)
		assert.Equal(t, []string{"Software"}, result.Alternatives)
	})

	t.Run("identical requests hit the cache", func(t *testing.T) {
		client := &stubClient{responses: []string{
			`{"category": "Travel", "confidence": 0.8}`,
		}}
		c := newTestClassifier(client)
		defer c.Close()

		first, err := c.Classify(ctx, classificationRequest("txn-1", "DELTA AIR"))
		require.NoError(t, err)

		second, err := c.Classify(ctx, classificationRequest("txn-2", "DELTA AIR"))
		require.NoError(t, err)

		assert.Equal(t, 1, client.calls)
		assert.Equal(t, first.SuggestedCategory, second.SuggestedCategory)
		assert.Equal(t, "txn-2", second.TransactionID, "cached result must carry the caller's transaction id")
	})

	t.Run("provider failure surfaces as external service error", func(t *testing.T) {
		client := &stubClient{err: errors.New("upstream down")}
		c := newTestClassifier(client)
		defer c.Close()

		_, err := c.Classify(ctx, classificationRequest("txn-1", "STAPLES"))
		require.Error(t, err)
	})
}

func TestClassifyBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("one result per request in order", func(t *testing.T) {
		client := &stubClient{responses: []string{
			`[{"category": "Office Supplies", "confidence": 0.95}, {"category": "Travel", "confidence": 0.8}]`,
		}}
		c := newTestClassifier(client)
		defer c.Close()

		results, err := c.ClassifyBatch(ctx, []model.ClassificationRequest{
			classificationRequest("txn-1", "STAPLES"),
			classificationRequest("txn-2", "DELTA AIR"),
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "txn-1", results[0].TransactionID)
		assert.Equal(t, "txn-2", results[1].TransactionID)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("length mismatch is an error", func(t *testing.T) {
		client := &stubClient{responses: []string{
			`[{"category": "Office Supplies", "confidence": 0.95}]`,
		}}
		c := newTestClassifier(client)
		defer c.Close()

		_, err := c.ClassifyBatch(ctx, []model.ClassificationRequest{
			classificationRequest("txn-1", "STAPLES"),
			classificationRequest("txn-2", "DELTA AIR"),
		})
		require.Error(t, err)
	})

	t.Run("empty batch is a validation error", func(t *testing.T) {
		c := newTestClassifier(&stubClient{})
		defer c.Close()

		_, err := c.ClassifyBatch(ctx, nil)
		require.Error(t, err)
	})
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{err: errors.New("upstream down")}

	c := newTestClassifier(client)
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name: "test",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})
	defer c.Close()

	for i := 0; i < 3; i++ {
		_, err := c.Classify(ctx, classificationRequest(fmt.Sprintf("txn-%d", i), fmt.Sprintf("VENDOR %d", i)))
		require.Error(t, err)
	}

	// Breaker is now open: the provider is no longer reached.
	callsBefore := client.calls
	_, err := c.Classify(ctx, classificationRequest("txn-x", "VENDOR X"))
	require.Error(t, err)
	assert.Equal(t, callsBefore, client.calls)
}
