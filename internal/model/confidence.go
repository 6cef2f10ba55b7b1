package model

// ConfidenceTier is the discrete bucket derived from a continuous
// classifier or match score. It drives auto-approval policy.
type ConfidenceTier string

// Confidence tier constants.
const (
	TierNone   ConfidenceTier = "none"
	TierLow    ConfidenceTier = "low"
	TierMedium ConfidenceTier = "medium"
	TierHigh   ConfidenceTier = "high"
)

// Canonical confidence thresholds. Every call site that needs to bucket a
// score goes through TierForScore or MatchTierForScore; the raw constants
// exist only for display and documentation.
const (
	// HighConfidenceThreshold marks the floor of the high tier.
	HighConfidenceThreshold = 0.90
	// MediumConfidenceThreshold marks the floor of the medium tier.
	MediumConfidenceThreshold = 0.70
	// MatchFloorThreshold is the receipt-matching floor below which a
	// candidate is not surfaced at all.
	MatchFloorThreshold = 0.40
)

// TierForScore buckets a classifier score into low, medium, or high.
// Scores outside [0,1] are clamped rather than rejected: upstream
// classifiers occasionally emit out-of-range floats.
func TierForScore(score float64) ConfidenceTier {
	score = ClampScore(score)
	switch {
	case score >= HighConfidenceThreshold:
		return TierHigh
	case score >= MediumConfidenceThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// MatchTierForScore buckets a receipt match score. Unlike classifier
// scores, match scores below the floor map to TierNone, meaning the
// candidate should not be surfaced.
func MatchTierForScore(score float64) ConfidenceTier {
	score = ClampScore(score)
	if score < MatchFloorThreshold {
		return TierNone
	}
	return TierForScore(score)
}

// ClampScore forces a score into [0,1].
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
