package invoices

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineInput struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	Rate        decimal.Decimal `json:"rate" validate:"required"`
}

type CreateInvoiceRequest struct {
	ClientID      int64           `json:"client_id" validate:"required,gt=0"`
	Lines         []LineInput     `json:"lines" validate:"required,min=1,dive"`
	DiscountType  string          `json:"discount_type,omitempty" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	IssueDate     *time.Time      `json:"issue_date,omitempty"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
}

type UpdateInvoiceRequest struct {
	Lines         []LineInput      `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
	DiscountType  *string          `json:"discount_type,omitempty" validate:"omitempty,oneof=percentage fixed none"`
	DiscountValue *decimal.Decimal `json:"discount_value,omitempty"`
	TaxRate       *decimal.Decimal `json:"tax_rate,omitempty"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
}

type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Method string          `json:"method" validate:"required,oneof=bank_transfer card cash crypto other"`
	Note   *string         `json:"note,omitempty"`
	PaidAt *time.Time      `json:"paid_at,omitempty"`
}

// PaymentResult reports the invoice state after a payment. Overpaid is
// surfaced to the caller but never rejected.
type PaymentResult struct {
	Invoice  *Invoice `json:"invoice"`
	Payment  *Payment `json:"payment"`
	Overpaid bool     `json:"overpaid"`
}

type ListInvoicesRequest struct {
	OwnerID  int64
	ClientID *int64
	Status   *Status
	Overdue  *bool
	Limit    int `validate:"gte=0,lte=1000"`
	Offset   int `validate:"gte=0"`
}
