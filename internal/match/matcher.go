package match

import (
	"log/slog"
	"sort"

	"github.com/opencpa/ledgerpilot/internal/model"
)

// scoreEpsilon is the tolerance under which two match scores are considered
// tied and the deterministic tie-break kicks in.
const scoreEpsilon = 1e-9

// Matcher scores candidate transactions against a receipt extraction.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher creates a matcher.
func NewMatcher(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{logger: logger}
}

// Match computes match candidates for the extraction against the given
// transactions, already filtered by tenant. Candidates outside the window or
// below the surfacing floor are excluded from AllMatches. An empty candidate
// list is not an error: the result simply carries tier none.
func (m *Matcher) Match(extraction model.ReceiptExtraction, candidates []model.TransactionRecord, window DateWindow) model.MatchResult {
	scored := make([]model.MatchCandidate, 0, len(candidates))

	for _, txn := range candidates {
		if !window.Contains(txn.Date) {
			continue
		}

		candidate := m.scoreCandidate(extraction, txn, window)
		if candidate.Tier == model.TierNone {
			continue
		}
		scored = append(scored, candidate)
	}

	// Deterministic order: score, then closest date, then lowest id.
	sort.Slice(scored, func(i, j int) bool {
		if diff := scored[i].Score - scored[j].Score; diff > scoreEpsilon || diff < -scoreEpsilon {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].DateDistance != scored[j].DateDistance {
			return scored[i].DateDistance < scored[j].DateDistance
		}
		return scored[i].TransactionID < scored[j].TransactionID
	})

	result := model.MatchResult{
		Best:       model.MatchCandidate{Tier: model.TierNone},
		AllMatches: scored,
	}
	if len(scored) > 0 {
		result.Best = scored[0]
	}

	m.logger.Debug("receipt match computed",
		"candidates", len(candidates),
		"surfaced", len(scored),
		"best_score", result.Best.Score,
		"best_tier", result.Best.Tier)

	return result
}

// scoreCandidate computes the weighted composite score for one transaction.
// Weights for fields the OCR did not extract are dropped and the remaining
// components renormalized, so a receipt with no readable vendor can still
// auto-link on a perfect amount and date.
func (m *Matcher) scoreCandidate(extraction model.ReceiptExtraction, txn model.TransactionRecord, window DateWindow) model.MatchCandidate {
	var weighted, totalWeight float64

	if extraction.Amount != nil {
		weighted += AmountWeight * amountSimilarity(*extraction.Amount, txn.Amount)
		totalWeight += AmountWeight
	}
	if extraction.TransactionDate != nil {
		weighted += DateWeight * dateProximity(*extraction.TransactionDate, txn.Date, window)
		totalWeight += DateWeight
	}
	if extraction.VendorName != "" {
		weighted += VendorWeight * vendorSimilarity(extraction.VendorName, txn.Vendor, txn.Description)
		totalWeight += VendorWeight
	}

	var score float64
	if totalWeight > 0 {
		score = weighted / totalWeight
	}
	score = model.ClampScore(score)

	dateDistance := 0
	if extraction.TransactionDate != nil {
		dateDistance = daysBetween(*extraction.TransactionDate, txn.Date)
	}

	return model.MatchCandidate{
		TransactionID: txn.ID,
		Score:         score,
		Tier:          model.MatchTierForScore(score),
		DateDistance:  dateDistance,
	}
}
