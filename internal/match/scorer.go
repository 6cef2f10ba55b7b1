package match

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// Scoring weights. These are policy: amount agreement dominates, date
// proximity matters, vendor text is a tiebreaker-grade signal.
const (
	AmountWeight = 0.5
	DateWeight   = 0.3
	VendorWeight = 0.2
)

// amountTolerance is the fixed cents tolerance inside which two amounts are
// treated as an exact match.
var amountTolerance = decimal.New(1, -2) // $0.01

// amountSimilarity scores how closely a candidate transaction's amount
// matches the extracted amount. 1.0 within the cents tolerance, decaying
// symmetrically with relative difference.
func amountSimilarity(extracted, candidate decimal.Decimal) float64 {
	a := extracted.Abs()
	b := candidate.Abs()

	diff := a.Sub(b).Abs()
	if diff.Cmp(amountTolerance) <= 0 {
		return 1.0
	}

	reference := a
	if reference.IsZero() {
		reference = b
	}
	if reference.IsZero() {
		return 0
	}

	score := 1.0 - diff.Div(reference).InexactFloat64()
	if score < 0 {
		return 0
	}
	return score
}

// dateProximity scores a candidate date against a reference date: 1.0 for
// the same day, linearly decaying to 0 at the relevant edge of the window.
// The window is asymmetric, so the decay slope differs by direction.
func dateProximity(reference, candidate time.Time, window DateWindow) float64 {
	dist := daysBetween(reference, candidate)
	if dist == 0 {
		return 1.0
	}

	var span int
	if truncateDay(candidate).Before(truncateDay(reference)) {
		span = daysBetween(reference, window.Start)
	} else {
		span = daysBetween(reference, window.End)
	}
	if span == 0 {
		return 0
	}

	score := 1.0 - float64(dist)/float64(span)
	if score < 0 {
		return 0
	}
	return score
}

// vendorSimilarity computes normalized token overlap between the extracted
// vendor name and a transaction's vendor or description.
func vendorSimilarity(extractedVendor, txnVendor, txnDescription string) float64 {
	extracted := tokenize(extractedVendor)
	if len(extracted) == 0 {
		return 0
	}

	best := tokenOverlap(extracted, tokenize(txnVendor))
	if desc := tokenOverlap(extracted, tokenize(txnDescription)); desc > best {
		best = desc
	}
	return best
}

// tokenOverlap is the Sorensen-Dice coefficient over token sets, with a
// containment shortcut: if every extracted token appears in the candidate,
// the vendor is considered fully matched even when the candidate string
// carries extra noise (store numbers, city names).
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	bSet := make(map[string]struct{}, len(b))
	for _, tok := range b {
		bSet[tok] = struct{}{}
	}

	shared := 0
	for _, tok := range a {
		if _, ok := bSet[tok]; ok {
			shared++
		}
	}

	if shared == len(a) {
		return 1.0
	}
	return 2.0 * float64(shared) / float64(len(a)+len(b))
}

// tokenize lowercases and splits a vendor string into alphanumeric tokens.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		// Single characters and bare store numbers are noise.
		if len(f) < 2 {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
