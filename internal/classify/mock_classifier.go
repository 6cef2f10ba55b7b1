package classify

import (
	"context"
	"sync"

	"github.com/opencpa/ledgerpilot/internal/model"
)

// MockClassifier is a test implementation of the service.Classifier
// interface. Responses are keyed by transaction id; unknown ids get a
// default low-confidence suggestion. Failures can be injected per id or for
// whole batch calls.
type MockClassifier struct {
	responses    map[string]model.ClassificationResult
	failIDs      map[string]error
	batchErr     error
	defaultScore float64
	mu           sync.Mutex

	classifyCalls int
	batchCalls    int
}

// NewMockClassifier creates a mock classifier with no canned responses.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{
		responses:    make(map[string]model.ClassificationResult),
		failIDs:      make(map[string]error),
		defaultScore: 0.50,
	}
}

// SetResponse registers a canned result for a transaction id.
func (m *MockClassifier) SetResponse(transactionID, category string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[transactionID] = model.ClassificationResult{
		TransactionID:     transactionID,
		SuggestedCategory: category,
		ConfidenceScore:   score,
		Reasoning:         "mock suggestion",
	}
}

// FailTransaction makes individual calls for the given id return err.
func (m *MockClassifier) FailTransaction(transactionID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failIDs[transactionID] = err
}

// FailBatch makes ClassifyBatch return err.
func (m *MockClassifier) FailBatch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchErr = err
}

// Classify returns the canned result for the request's transaction.
func (m *MockClassifier) Classify(ctx context.Context, request model.ClassificationRequest) (model.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return model.ClassificationResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.classifyCalls++

	if err, ok := m.failIDs[request.TransactionID]; ok {
		return model.ClassificationResult{}, err
	}
	if resp, ok := m.responses[request.TransactionID]; ok {
		return resp, nil
	}
	return model.ClassificationResult{
		TransactionID:     request.TransactionID,
		SuggestedCategory: model.UncategorizedName,
		ConfidenceScore:   m.defaultScore,
		Reasoning:         "mock default",
	}, nil
}

// ClassifyBatch returns canned results for all requests in order, or the
// injected batch error.
func (m *MockClassifier) ClassifyBatch(ctx context.Context, requests []model.ClassificationRequest) ([]model.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	batchErr := m.batchErr
	m.batchCalls++
	m.mu.Unlock()

	if batchErr != nil {
		return nil, batchErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]model.ClassificationResult, len(requests))
	for i, req := range requests {
		if resp, ok := m.responses[req.TransactionID]; ok {
			results[i] = resp
			continue
		}
		results[i] = model.ClassificationResult{
			TransactionID:     req.TransactionID,
			SuggestedCategory: model.UncategorizedName,
			ConfidenceScore:   m.defaultScore,
			Reasoning:         "mock default",
		}
	}
	return results, nil
}

// ClassifyCalls returns how many individual calls were made.
func (m *MockClassifier) ClassifyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classifyCalls
}

// BatchCalls returns how many batch calls were made.
func (m *MockClassifier) BatchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}
