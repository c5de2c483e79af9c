// Package money is the single precision chokepoint for monetary values.
// All amounts are shopspring decimals; rounding happens here and nowhere
// else, so recomputing the same inputs always persists identical bytes.
package money

import (
	"github.com/shopspring/decimal"
)

const (
	// FiatPlaces is the minor-unit precision for fiat currencies.
	FiatPlaces int32 = 2
	// MaxPlaces is the highest precision accepted for quantities and
	// rates (sub-cent and crypto denominated lines).
	MaxPlaces int32 = 8
)

// Round rounds to the default fiat minor-unit precision using
// round-half-up semantics.
func Round(d decimal.Decimal) decimal.Decimal {
	return RoundTo(d, FiatPlaces)
}

// RoundTo rounds to the given number of decimal places, half away from
// zero. Amounts in this system are clamped non-negative before rounding,
// so this matches round-half-up.
func RoundTo(d decimal.Decimal, places int32) decimal.Decimal {
	if places < 0 {
		places = 0
	}
	if places > MaxPlaces {
		places = MaxPlaces
	}
	return d.Round(places)
}

// FromFloat converts a float to a decimal. Only boundary code (request
// DTOs) should need this; internal math stays decimal end to end.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
