// Package llm implements the external classification service client: LLM
// provider transports, prompt construction, response parsing, and the
// resilience wrapping (rate limit, circuit breaker, retry) around them.
package llm

import "context"

// Client defines the transport contract for an LLM provider.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
