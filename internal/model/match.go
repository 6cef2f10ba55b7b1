package model

// MatchCandidate scores one transaction against one receipt extraction.
// Candidates are not persisted individually; only the best match and the
// surfaced candidate list are retained for manual review.
type MatchCandidate struct {
	TransactionID string         `json:"transactionId"`
	Score         float64        `json:"matchScore"`
	Tier          ConfidenceTier `json:"confidenceTier"`
	DateDistance  int            `json:"dateDistanceDays"`
}

// MatchResult is the matcher's decision for one receipt.
type MatchResult struct {
	Best       MatchCandidate   `json:"bestMatch"`
	AllMatches []MatchCandidate `json:"allMatches"`
}

// AutoLink reports whether policy allows linking the receipt without human
// confirmation.
func (r *MatchResult) AutoLink() bool {
	return r.Best.Tier == TierHigh
}

// Status maps the best match tier onto a receipt's match status.
func (r *MatchResult) Status() MatchStatus {
	switch r.Best.Tier {
	case TierHigh:
		return MatchStatusAutoLinked
	case TierMedium, TierLow:
		return MatchStatusNeedsReview
	default:
		return MatchStatusUnmatched
	}
}
