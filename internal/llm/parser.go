package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opencpa/ledgerpilot/internal/common"
)

// suggestionPayload is the JSON shape the prompts ask the model for.
type suggestionPayload struct {
	Category     string   `json:"category"`
	Reasoning    string   `json:"reasoning"`
	Alternatives []string `json:"alternatives"`
	Confidence   float64  `json:"confidence"`
}

// parseSuggestion extracts one suggestion from raw model output.
func parseSuggestion(content string) (suggestionPayload, error) {
	cleaned := extractJSON(content, '{', '}')
	if cleaned == "" {
		return suggestionPayload{}, fmt.Errorf("%w: no JSON object in response: %q", common.ErrClassificationFailed, truncate(content))
	}

	var payload suggestionPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return suggestionPayload{}, fmt.Errorf("%w: parse suggestion: %v", common.ErrClassificationFailed, err)
	}
	if payload.Category == "" {
		return suggestionPayload{}, fmt.Errorf("%w: suggestion missing category: %q", common.ErrClassificationFailed, truncate(content))
	}
	return payload, nil
}

// parseSuggestionList extracts a batch response and enforces the same-order,
// same-length contract.
func parseSuggestionList(content string, want int) ([]suggestionPayload, error) {
	cleaned := extractJSON(content, '[', ']')
	if cleaned == "" {
		return nil, fmt.Errorf("%w: no JSON array in response: %q", common.ErrClassificationFailed, truncate(content))
	}

	var payloads []suggestionPayload
	if err := json.Unmarshal([]byte(cleaned), &payloads); err != nil {
		return nil, fmt.Errorf("%w: parse suggestion list: %v", common.ErrClassificationFailed, err)
	}
	if len(payloads) != want {
		return nil, fmt.Errorf("%w: batch response length mismatch: want %d, got %d", common.ErrClassificationFailed, want, len(payloads))
	}
	return payloads, nil
}

// extractJSON slices the first balanced-looking JSON value out of model
// output, tolerating markdown fences and surrounding prose.
func extractJSON(content string, open, closing byte) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.IndexByte(content, open)
	end := strings.LastIndexByte(content, closing)
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func truncate(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
