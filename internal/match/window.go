// Package match scores candidate receipt-to-transaction matches using fuzzy
// amount, date, and vendor heuristics, and applies the tiered auto-linking
// policy.
package match

import "time"

// Window policy constants.
const (
	// WindowDaysBefore is how far before the receipt date candidates are
	// considered.
	WindowDaysBefore = 7
	// WindowDaysAfter is how far after the receipt date candidates are
	// considered.
	WindowDaysAfter = 3
	// FallbackWindowDays is the trailing window used when the receipt has
	// no extracted date.
	FallbackWindowDays = 30
)

// DateWindow bounds the candidate transactions considered for a receipt.
// Both ends are inclusive, at day granularity.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the given date falls inside the window.
func (w DateWindow) Contains(date time.Time) bool {
	d := truncateDay(date)
	return !d.Before(truncateDay(w.Start)) && !d.After(truncateDay(w.End))
}

// DefaultWindow computes the matching window for a receipt. With an
// extracted date: [date-7d, date+3d], clamped to not exceed today. Without
// one: the trailing 30 days from today.
func DefaultWindow(receiptDate *time.Time, now time.Time) DateWindow {
	today := truncateDay(now)
	if receiptDate == nil {
		return DateWindow{
			Start: today.AddDate(0, 0, -FallbackWindowDays),
			End:   today,
		}
	}

	d := truncateDay(*receiptDate)
	end := d.AddDate(0, 0, WindowDaysAfter)
	if end.After(today) {
		end = today
	}
	return DateWindow{
		Start: d.AddDate(0, 0, -WindowDaysBefore),
		End:   end,
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the absolute distance in calendar days.
func daysBetween(a, b time.Time) int {
	diff := int(truncateDay(a).Sub(truncateDay(b)).Hours() / 24)
	if diff < 0 {
		return -diff
	}
	return diff
}
