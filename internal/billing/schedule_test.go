package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextDateWeekly(t *testing.T) {
	got, err := NextDate(day(2024, time.March, 25), FrequencyWeekly)
	require.NoError(t, err)
	require.Equal(t, day(2024, time.April, 1), got)
}

func TestNextDateMonthly(t *testing.T) {
	got, err := NextDate(day(2024, time.March, 15), FrequencyMonthly)
	require.NoError(t, err)
	require.Equal(t, day(2024, time.April, 15), got)
}

func TestNextDateMonthlyClampsToEndOfMonth(t *testing.T) {
	// Leap year February keeps the 29th.
	got, err := NextDate(day(2024, time.January, 31), FrequencyMonthly)
	require.NoError(t, err)
	require.Equal(t, day(2024, time.February, 29), got)

	// Non-leap February clamps to the 28th.
	got, err = NextDate(day(2025, time.January, 31), FrequencyMonthly)
	require.NoError(t, err)
	require.Equal(t, day(2025, time.February, 28), got)

	// A clamped date does not remember the original day.
	got, err = NextDate(got, FrequencyMonthly)
	require.NoError(t, err)
	require.Equal(t, day(2025, time.March, 28), got)
}

func TestNextDateMonthlyDecemberWraps(t *testing.T) {
	got, err := NextDate(day(2024, time.December, 31), FrequencyMonthly)
	require.NoError(t, err)
	require.Equal(t, day(2025, time.January, 31), got)
}

func TestNextDateYearly(t *testing.T) {
	got, err := NextDate(day(2024, time.June, 1), FrequencyYearly)
	require.NoError(t, err)
	require.Equal(t, day(2025, time.June, 1), got)
}

func TestNextDateYearlyLeapDayClamps(t *testing.T) {
	got, err := NextDate(day(2024, time.February, 29), FrequencyYearly)
	require.NoError(t, err)
	require.Equal(t, day(2025, time.February, 28), got)
}

func TestNextDateUnknownFrequency(t *testing.T) {
	_, err := NextDate(day(2024, time.January, 1), Frequency("daily"))
	require.ErrorIs(t, err, ErrUnknownFrequency)
}

func TestNextDatePreservesClockAndLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	base := time.Date(2024, time.January, 31, 9, 30, 0, 0, loc)
	got, err := NextDate(base, FrequencyMonthly)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.February, 29, 9, 30, 0, 0, loc), got)
}
