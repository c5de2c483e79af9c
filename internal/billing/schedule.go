package billing

import (
	"errors"
	"fmt"
	"time"
)

// Frequency enumerates recurring billing intervals.
type Frequency string

const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// ErrUnknownFrequency indicates an unsupported interval.
var ErrUnknownFrequency = errors.New("billing: unknown frequency")

// NextDate computes the next scheduled date after current. Monthly and
// yearly steps advance the month/year field and clamp the day to the
// last valid day of the target month, so Jan 31 steps to Feb 28 (or
// Feb 29 in leap years) and a Feb 29 base steps to Feb 28 in non-leap
// target years. A clamped date does not remember the original day on
// subsequent steps.
func NextDate(current time.Time, freq Frequency) (time.Time, error) {
	switch freq {
	case FrequencyWeekly:
		return current.AddDate(0, 0, 7), nil
	case FrequencyMonthly:
		return stepMonths(current, 1), nil
	case FrequencyYearly:
		return stepMonths(current, 12), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, freq)
	}
}

func stepMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	// Anchor on the first of the target month; time.Date normalizes
	// month overflow for us.
	anchor := time.Date(year, month+time.Month(months), 1, hour, min, sec, t.Nanosecond(), t.Location())
	if last := daysInMonth(anchor.Year(), anchor.Month()); day > last {
		day = last
	}
	return time.Date(anchor.Year(), anchor.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

// daysInMonth relies on day zero normalizing to the last day of the
// previous month.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
