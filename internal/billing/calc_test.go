package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleItems() []LineItem {
	return []LineItem{
		{Description: "Consulting", Quantity: dec("2"), Rate: dec("100"), SortOrder: 1},
		{Description: "Support", Quantity: dec("1.5"), Rate: dec("50"), SortOrder: 2},
	}
}

func TestSubtotal(t *testing.T) {
	got, err := Subtotal(sampleItems(), 2)
	require.NoError(t, err)
	require.True(t, got.Equal(dec("275")), "got %s", got)
}

func TestSubtotalEmptyIsZero(t *testing.T) {
	got, err := Subtotal(nil, 2)
	require.NoError(t, err)
	require.True(t, got.IsZero())
}

func TestSubtotalOrderIndependent(t *testing.T) {
	items := sampleItems()
	reversed := []LineItem{items[1], items[0]}

	a, err := Subtotal(items, 2)
	require.NoError(t, err)
	b, err := Subtotal(reversed, 2)
	require.NoError(t, err)
	require.True(t, a.Equal(b))
}

func TestSubtotalRejectsNegatives(t *testing.T) {
	_, err := Subtotal([]LineItem{{Quantity: dec("-1"), Rate: dec("10")}}, 2)
	require.ErrorIs(t, err, ErrNegativeQuantity)

	_, err = Subtotal([]LineItem{{Quantity: dec("1"), Rate: dec("-10")}}, 2)
	require.ErrorIs(t, err, ErrNegativeRate)
}

func TestSubtotalCryptoPrecision(t *testing.T) {
	items := []LineItem{{Quantity: dec("0.00000001"), Rate: dec("3")}}
	got, err := Subtotal(items, 8)
	require.NoError(t, err)
	require.True(t, got.Equal(dec("0.00000003")), "got %s", got)
}

func TestDiscountPercentage(t *testing.T) {
	got, err := DiscountAmount(dec("275"), DiscountSpec{Type: DiscountPercentage, Value: dec("15")}, 2)
	require.NoError(t, err)
	require.True(t, got.Equal(dec("41.25")), "got %s", got)
}

func TestDiscountFixedClampsToSubtotal(t *testing.T) {
	got, err := DiscountAmount(dec("1000"), DiscountSpec{Type: DiscountFixed, Value: dec("1500")}, 2)
	require.NoError(t, err)
	require.True(t, got.Equal(dec("1000")))
}

func TestDiscountZeroSubtotal(t *testing.T) {
	for _, spec := range []DiscountSpec{
		{Type: DiscountPercentage, Value: dec("50")},
		{Type: DiscountFixed, Value: dec("200")},
	} {
		got, err := DiscountAmount(decimal.Zero, spec, 2)
		require.NoError(t, err)
		require.True(t, got.IsZero())
	}
}

func TestDiscountRejectsNegativeValue(t *testing.T) {
	_, err := DiscountAmount(dec("100"), DiscountSpec{Type: DiscountFixed, Value: dec("-5")}, 2)
	require.ErrorIs(t, err, ErrNegativeDiscount)
}

func TestDiscountUnknownType(t *testing.T) {
	_, err := DiscountAmount(dec("100"), DiscountSpec{Type: "loyalty", Value: dec("5")}, 2)
	require.ErrorIs(t, err, ErrUnknownDiscountType)
}

func TestTaxAmount(t *testing.T) {
	got, err := TaxAmount(dec("233.75"), dec("19"), RecipientTaxStatus{}, 2)
	require.NoError(t, err)
	require.True(t, got.Equal(dec("44.41")), "got %s", got)
}

func TestTaxReverseCharge(t *testing.T) {
	cases := []struct {
		name      string
		recipient RecipientTaxStatus
		wantZero  bool
	}{
		{"vat number and exemption", RecipientTaxStatus{VATNumber: "FR123", TaxExempt: true}, true},
		{"vat number only", RecipientTaxStatus{VATNumber: "FR123"}, false},
		{"exemption only", RecipientTaxStatus{TaxExempt: true}, false},
		{"neither", RecipientTaxStatus{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := TaxAmount(dec("500"), dec("20"), tc.recipient, 2)
			require.NoError(t, err)
			if tc.wantZero {
				require.True(t, got.IsZero())
			} else {
				require.True(t, got.Equal(dec("100")), "got %s", got)
			}
		})
	}
}

func TestTaxRejectsNegativeRate(t *testing.T) {
	_, err := TaxAmount(dec("100"), dec("-1"), RecipientTaxStatus{}, 2)
	require.ErrorIs(t, err, ErrNegativeTaxRate)
}

func TestComposeScenarioA(t *testing.T) {
	totals, err := Compose(ComposeInput{
		Items:    sampleItems(),
		Discount: DiscountSpec{Type: DiscountPercentage, Value: dec("15")},
		TaxRate:  dec("19"),
	})
	require.NoError(t, err)
	require.True(t, totals.Subtotal.Equal(dec("275")), "subtotal %s", totals.Subtotal)
	require.True(t, totals.DiscountAmount.Equal(dec("41.25")), "discount %s", totals.DiscountAmount)
	require.True(t, totals.TaxAmount.Equal(dec("44.41")), "tax %s", totals.TaxAmount)
	require.True(t, totals.Total.Equal(dec("278.16")), "total %s", totals.Total)
	require.True(t, totals.AmountDue.Equal(dec("278.16")))
	require.False(t, totals.ReverseCharge)
	require.False(t, totals.Overpaid)
}

func TestComposeScenarioBOversizedFixedDiscount(t *testing.T) {
	totals, err := Compose(ComposeInput{
		Items:    []LineItem{{Quantity: dec("1"), Rate: dec("1000")}},
		Discount: DiscountSpec{Type: DiscountFixed, Value: dec("1500")},
		TaxRate:  dec("25"),
	})
	require.NoError(t, err)
	require.True(t, totals.DiscountAmount.Equal(dec("1000")))
	require.True(t, totals.TaxAmount.IsZero())
	require.True(t, totals.Total.IsZero())
}

func TestComposeScenarioCReverseCharge(t *testing.T) {
	totals, err := Compose(ComposeInput{
		Items:     []LineItem{{Quantity: dec("1"), Rate: dec("500")}},
		TaxRate:   dec("20"),
		Recipient: RecipientTaxStatus{VATNumber: "FR123", TaxExempt: true},
	})
	require.NoError(t, err)
	require.True(t, totals.TaxAmount.IsZero())
	require.True(t, totals.Total.Equal(totals.Subtotal.Sub(totals.DiscountAmount)))
	require.True(t, totals.ReverseCharge)
}

func TestComposeDeterministic(t *testing.T) {
	in := ComposeInput{
		Items:      sampleItems(),
		Discount:   DiscountSpec{Type: DiscountPercentage, Value: dec("15")},
		TaxRate:    dec("19"),
		AmountPaid: dec("100"),
	}
	first, err := Compose(in)
	require.NoError(t, err)
	second, err := Compose(in)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestComposeOverpaymentFlagged(t *testing.T) {
	totals, err := Compose(ComposeInput{
		Items:      []LineItem{{Quantity: dec("1"), Rate: dec("100")}},
		AmountPaid: dec("150"),
	})
	require.NoError(t, err)
	require.True(t, totals.Overpaid)
	require.True(t, totals.AmountDue.Equal(dec("-50")))
}

func TestComposeRejectsNegativeAmountPaid(t *testing.T) {
	_, err := Compose(ComposeInput{
		Items:      []LineItem{{Quantity: dec("1"), Rate: dec("100")}},
		AmountPaid: dec("-1"),
	})
	require.ErrorIs(t, err, ErrNegativeAmountPaid)
}
