package llm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
	"github.com/opencpa/ledgerpilot/internal/service"
)

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	BaseURL           string
	MaxRetries        int
	RetryDelay        time.Duration
	CacheTTL          time.Duration
	RequestsPerMinute int
	Temperature       float64
	MaxTokens         int
}

// Classifier implements the service.Classifier interface over an LLM
// provider, with caching, rate limiting, and a circuit breaker so a flapping
// provider fails fast instead of queueing requests.
type Classifier struct {
	client    Client
	cache     *resultCache
	logger    *slog.Logger
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[string]
	retryOpts service.RetryOptions
}

// NewClassifier creates a new LLM-based classifier.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		client, err = newOpenAIClient(cfg)
	case "anthropic":
		client, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Classifier{
		client:    client,
		cache:     newResultCache(cfg.CacheTTL),
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		breaker:   breaker,
		retryOpts: retryOpts,
	}, nil
}

// Classify suggests a category for a single transaction.
func (c *Classifier) Classify(ctx context.Context, request model.ClassificationRequest) (model.ClassificationResult, error) {
	key := cacheKey(request)
	if result, found := c.cache.get(key); found {
		c.logger.Debug("cache hit for classification",
			"transaction_id", request.TransactionID)
		result.TransactionID = request.TransactionID
		return result, nil
	}

	content, err := c.complete(ctx, systemPrompt, buildPrompt(request))
	if err != nil {
		return model.ClassificationResult{}, common.NewExternalServiceError("classifier", err)
	}

	payload, err := parseSuggestion(content)
	if err != nil {
		return model.ClassificationResult{}, common.NewExternalServiceError("classifier", err)
	}

	result := resultFromPayload(request.TransactionID, payload)
	c.cache.set(key, result)

	c.logger.Info("transaction classified",
		"transaction_id", request.TransactionID,
		"category", result.SuggestedCategory,
		"confidence", result.ConfidenceScore)

	return result, nil
}

// ClassifyBatch classifies all requests in one provider call. The provider
// must return one suggestion per request, in order; anything else is an
// error so the orchestrator can fall back to individual calls.
func (c *Classifier) ClassifyBatch(ctx context.Context, requests []model.ClassificationRequest) ([]model.ClassificationResult, error) {
	if len(requests) == 0 {
		return nil, common.NewValidationError("requests", "batch cannot be empty")
	}

	content, err := c.complete(ctx, systemPrompt, buildBatchPrompt(requests))
	if err != nil {
		return nil, common.NewExternalServiceError("classifier", err)
	}

	payloads, err := parseSuggestionList(content, len(requests))
	if err != nil {
		return nil, common.NewExternalServiceError("classifier", err)
	}

	results := make([]model.ClassificationResult, len(requests))
	for i, payload := range payloads {
		results[i] = resultFromPayload(requests[i].TransactionID, payload)
		c.cache.set(cacheKey(requests[i]), results[i])
	}

	c.logger.Info("batch classified", "count", len(results))
	return results, nil
}

// Close releases the cache's background goroutine.
func (c *Classifier) Close() {
	c.cache.Close()
}

// complete runs one provider call behind the rate limiter, circuit breaker,
// and retry policy.
func (c *Classifier) complete(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var content string
	err := common.WithRetry(ctx, func() error {
		result, err := c.breaker.Execute(func() (string, error) {
			return c.client.Complete(ctx, system, user)
		})
		if err != nil {
			return err
		}
		content = result
		return nil
	}, c.retryOpts)

	return content, err
}

func resultFromPayload(transactionID string, payload suggestionPayload) model.ClassificationResult {
	score := model.ClampScore(payload.Confidence)
	return model.ClassificationResult{
		TransactionID:     transactionID,
		SuggestedCategory: payload.Category,
		ConfidenceScore:   score,
		ConfidenceTier:    model.TierForScore(score),
		Reasoning:         payload.Reasoning,
		Alternatives:      payload.Alternatives,
	}
}

// cacheKey hashes the classification-relevant request fields. The
// transaction id is deliberately excluded: identical transactions from the
// same vendor should share one classification.
func cacheKey(req model.ClassificationRequest) string {
	data := fmt.Sprintf("%s|%s|%s|%s",
		req.Description,
		req.Vendor,
		req.Amount,
		strings.Join(req.CategoryNames, ","))
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}
