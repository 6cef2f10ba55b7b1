package model

import "time"

// UncategorizedName is the safe-fallback category name used when the
// classifier fails or suggests a name absent from the catalog.
const UncategorizedName = "Uncategorized"

// ClassificationRequest is the bounded, normalized input for one external
// classification call.
type ClassificationRequest struct {
	Date          time.Time
	TransactionID string
	Description   string
	Vendor        string
	AccountLabel  string
	Amount        string // decimal string, minor-unit precise
	CategoryNames []string
}

// ClassificationResult is the outcome of one classification attempt for one
// transaction. It is never mutated once produced.
type ClassificationResult struct {
	TransactionID     string         `json:"transactionId"`
	SuggestedCategory string         `json:"suggestedCategory"`
	Reasoning         string         `json:"reasoning"`
	Alternatives      []string       `json:"alternatives,omitempty"`
	CategoryID        *int64         `json:"categoryId"` // nil means Uncategorized
	ConfidenceScore   float64        `json:"confidenceScore"`
	ConfidenceTier    ConfidenceTier `json:"confidenceTier"`
	ClassifiedAt      time.Time      `json:"classifiedAt"`
}

// NeedsReview reports whether the result falls below the auto-approve bar.
func (r *ClassificationResult) NeedsReview() bool {
	return r.ConfidenceTier != TierHigh || r.CategoryID == nil
}

// CategorizeSummary aggregates one categorization run. It is always derived
// from the result list, never stored independently.
type CategorizeSummary struct {
	Total            int     `json:"total"`
	HighConfidence   int     `json:"highConfidence"`
	MediumConfidence int     `json:"mediumConfidence"`
	LowConfidence    int     `json:"lowConfidence"`
	MeanScore        float64 `json:"meanScore"`
}

// SummarizeResults recomputes the summary from a result list.
func SummarizeResults(results []ClassificationResult) CategorizeSummary {
	summary := CategorizeSummary{Total: len(results)}
	if len(results) == 0 {
		return summary
	}

	var sum float64
	for _, r := range results {
		sum += ClampScore(r.ConfidenceScore)
		switch r.ConfidenceTier {
		case TierHigh:
			summary.HighConfidence++
		case TierMedium:
			summary.MediumConfidence++
		default:
			summary.LowConfidence++
		}
	}
	summary.MeanScore = sum / float64(len(results))
	return summary
}
