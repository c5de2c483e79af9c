// Package billing holds the pure invoice calculation core: line item
// totals, discount and tax application, total composition, and
// recurring schedule date stepping. Everything here is deterministic
// and side-effect free; persistence and delivery live elsewhere.
package billing

import (
	"github.com/shopspring/decimal"

	"github.com/facturo/facturo/internal/money"
)

// DiscountType enumerates supported discount kinds.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// LineItem is one billable row. Amount is always derived from
// Quantity * Rate, never stored authoritatively.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	SortOrder   int
}

// Amount returns quantity * rate rounded to the given minor-unit
// precision.
func (li LineItem) Amount(places int32) decimal.Decimal {
	return money.RoundTo(li.Quantity.Mul(li.Rate), places)
}

// DiscountSpec describes an invoice-level discount.
type DiscountSpec struct {
	Type  DiscountType
	Value decimal.Decimal
}

// RecipientTaxStatus carries the tax attributes of the billed party.
type RecipientTaxStatus struct {
	VATNumber string
	TaxExempt bool
}

// ReverseCharge reports whether EU reverse-charge applies. Both a VAT
// number and the exemption flag are required; either alone is not
// sufficient.
func (r RecipientTaxStatus) ReverseCharge() bool {
	return r.VATNumber != "" && r.TaxExempt
}

// Totals is the derived financial state of an invoice. It is a pure
// function of its inputs and is recomputed wholesale on every change.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	AmountDue      decimal.Decimal
	ReverseCharge  bool
	Overpaid       bool
}
