package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierForScore(t *testing.T) {
	tests := []struct {
		name  string
		want  ConfidenceTier
		score float64
	}{
		{name: "zero is low", score: 0.0, want: TierLow},
		{name: "just below medium", score: 0.699, want: TierLow},
		{name: "medium boundary inclusive", score: 0.70, want: TierMedium},
		{name: "mid medium", score: 0.80, want: TierMedium},
		{name: "just below high", score: 0.899, want: TierMedium},
		{name: "high boundary inclusive", score: 0.90, want: TierHigh},
		{name: "perfect", score: 1.0, want: TierHigh},
		{name: "negative clamps to low", score: -0.5, want: TierLow},
		{name: "above one clamps to high", score: 1.7, want: TierHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TierForScore(tt.score))
		})
	}
}

func TestTierForScoreMonotonic(t *testing.T) {
	rank := map[ConfidenceTier]int{TierLow: 0, TierMedium: 1, TierHigh: 2}

	prev := TierLow
	for s := 0.0; s <= 1.0; s += 0.01 {
		tier := TierForScore(s)
		assert.GreaterOrEqual(t, rank[tier], rank[prev], "tier regressed at score %f", s)
		prev = tier
	}
}

func TestMatchTierForScore(t *testing.T) {
	assert.Equal(t, TierNone, MatchTierForScore(0.39))
	assert.Equal(t, TierLow, MatchTierForScore(0.40))
	assert.Equal(t, TierMedium, MatchTierForScore(0.75))
	assert.Equal(t, TierHigh, MatchTierForScore(0.95))
	assert.Equal(t, TierNone, MatchTierForScore(-1))
}

func TestSummarizeResults(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		summary := SummarizeResults(nil)
		assert.Equal(t, 0, summary.Total)
		assert.Zero(t, summary.MeanScore)
	})

	t.Run("one per tier", func(t *testing.T) {
		results := []ClassificationResult{
			{ConfidenceScore: 0.95, ConfidenceTier: TierHigh},
			{ConfidenceScore: 0.80, ConfidenceTier: TierMedium},
			{ConfidenceScore: 0.30, ConfidenceTier: TierLow},
		}
		summary := SummarizeResults(results)
		assert.Equal(t, 3, summary.Total)
		assert.Equal(t, 1, summary.HighConfidence)
		assert.Equal(t, 1, summary.MediumConfidence)
		assert.Equal(t, 1, summary.LowConfidence)
		assert.InDelta(t, (0.95+0.80+0.30)/3, summary.MeanScore, 1e-9)
	})
}
