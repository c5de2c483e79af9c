package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/facturo/facturo/internal/money"
)

// Input-contract violations. Negative values are caller errors, never
// silently coerced to zero.
var (
	ErrNegativeQuantity    = errors.New("billing: negative quantity")
	ErrNegativeRate        = errors.New("billing: negative rate")
	ErrNegativeDiscount    = errors.New("billing: negative discount value")
	ErrNegativeTaxRate     = errors.New("billing: negative tax rate")
	ErrNegativeAmountPaid  = errors.New("billing: negative amount paid")
	ErrUnknownDiscountType = errors.New("billing: unknown discount type")
)

// Subtotal sums quantity * rate across all line items. The sum is
// order independent and an empty list yields zero.
func Subtotal(items []LineItem, places int32) (decimal.Decimal, error) {
	sum := decimal.Zero
	for i, li := range items {
		if li.Quantity.IsNegative() {
			return decimal.Zero, fmt.Errorf("line %d: %w", i, ErrNegativeQuantity)
		}
		if li.Rate.IsNegative() {
			return decimal.Zero, fmt.Errorf("line %d: %w", i, ErrNegativeRate)
		}
		sum = sum.Add(li.Amount(places))
	}
	return money.RoundTo(sum, places), nil
}

// DiscountAmount applies the spec to the subtotal. The result is
// clamped to [0, subtotal]; a zero subtotal always yields zero.
func DiscountAmount(subtotal decimal.Decimal, spec DiscountSpec, places int32) (decimal.Decimal, error) {
	if spec.Value.IsNegative() {
		return decimal.Zero, ErrNegativeDiscount
	}
	var discount decimal.Decimal
	switch spec.Type {
	case DiscountPercentage:
		discount = subtotal.Mul(spec.Value).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		discount = spec.Value
	case "":
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownDiscountType, spec.Type)
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return money.RoundTo(discount, places), nil
}

// TaxAmount applies the rate to the post-discount amount. Recipients
// qualifying for reverse charge are taxed at zero; the caller surfaces
// the reverse-charge notation downstream.
func TaxAmount(afterDiscount, rate decimal.Decimal, recipient RecipientTaxStatus, places int32) (decimal.Decimal, error) {
	if rate.IsNegative() {
		return decimal.Zero, ErrNegativeTaxRate
	}
	if recipient.ReverseCharge() {
		return decimal.Zero, nil
	}
	tax := afterDiscount.Mul(rate).Div(decimal.NewFromInt(100))
	return money.RoundTo(tax, places), nil
}

// ComposeInput collects everything Compose needs. Places defaults to
// the fiat minor-unit precision when zero.
type ComposeInput struct {
	Items      []LineItem
	Discount   DiscountSpec
	TaxRate    decimal.Decimal
	Recipient  RecipientTaxStatus
	AmountPaid decimal.Decimal
	Places     int32
}

// Compose derives the full invoice totals. It is pure: calling it
// twice with identical inputs returns identical totals, which is what
// lets create and update both recompute from scratch instead of
// patching deltas.
func Compose(in ComposeInput) (Totals, error) {
	places := in.Places
	if places == 0 {
		places = money.FiatPlaces
	}
	if in.AmountPaid.IsNegative() {
		return Totals{}, ErrNegativeAmountPaid
	}

	subtotal, err := Subtotal(in.Items, places)
	if err != nil {
		return Totals{}, err
	}
	discount, err := DiscountAmount(subtotal, in.Discount, places)
	if err != nil {
		return Totals{}, err
	}
	afterDiscount := subtotal.Sub(discount)
	tax, err := TaxAmount(afterDiscount, in.TaxRate, in.Recipient, places)
	if err != nil {
		return Totals{}, err
	}
	total := money.RoundTo(afterDiscount.Add(tax), places)
	amountDue := money.RoundTo(total.Sub(in.AmountPaid), places)

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		Total:          total,
		AmountDue:      amountDue,
		ReverseCharge:  in.Recipient.ReverseCharge(),
		Overpaid:       amountDue.IsNegative(),
	}, nil
}
