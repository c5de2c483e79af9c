package invoices

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturo/facturo/internal/billing"
)

// Status enumerates invoice lifecycle states. Overdue is derived at
// read time from the due date, never stored.
type Status string

const (
	StatusDraft Status = "draft"
	StatusSent  Status = "sent"
	StatusPaid  Status = "paid"
	StatusVoid  Status = "void"
)

var (
	// ErrNotFound indicates the invoice does not exist for the owner.
	ErrNotFound = errors.New("invoices: not found")
	// ErrInvalidStatus indicates the operation is not allowed in the
	// invoice's current state.
	ErrInvalidStatus = errors.New("invoices: invalid status for operation")
	// ErrNoLines indicates an invoice without any line items.
	ErrNoLines = errors.New("invoices: at least one line item required")
	// ErrInvalidAmount indicates a non-positive payment amount.
	ErrInvalidAmount = errors.New("invoices: payment amount must be positive")
)

// Invoice is the persisted aggregate root. All monetary columns are
// derived via billing.Compose and rewritten wholesale on every change.
type Invoice struct {
	ID       int64  `json:"id"`
	OwnerID  int64  `json:"owner_id"`
	ClientID int64  `json:"client_id"`
	Number   string `json:"number"`
	Currency string `json:"currency"`
	Status   Status `json:"status"`

	IssueDate time.Time `json:"issue_date"`
	DueDate   time.Time `json:"due_date"`

	DiscountType  billing.DiscountType `json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal      `json:"discount_value"`
	TaxRate       decimal.Decimal      `json:"tax_rate"`
	ReverseCharge bool                 `json:"reverse_charge"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	AmountDue      decimal.Decimal `json:"amount_due"`

	Notes          *string    `json:"notes,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	VoidedAt       *time.Time `json:"voided_at,omitempty"`
	LastReminderAt *time.Time `json:"last_reminder_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsOverdue reports whether the invoice is past due and still unpaid.
func (i Invoice) IsOverdue(now time.Time) bool {
	return i.Status == StatusSent && i.DueDate.Before(now)
}

// Line is one persisted line item. Amount is quantity * rate,
// recomputed whenever quantity or rate changes.
type Line struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	SortOrder   int             `json:"sort_order"`
}

// Payment is one recorded payment against an invoice.
type Payment struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Note      *string         `json:"note,omitempty"`
	PaidAt    time.Time       `json:"paid_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// InvoiceWithDetails bundles the aggregate for detail views and
// delivery rendering.
type InvoiceWithDetails struct {
	Invoice
	Lines    []Line    `json:"lines"`
	Payments []Payment `json:"payments"`
	Overdue  bool      `json:"overdue"`
}

// billingLines maps persisted lines onto the calculation core's shape.
func billingLines(lines []Line) []billing.LineItem {
	out := make([]billing.LineItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, billing.LineItem{
			Description: l.Description,
			Quantity:    l.Quantity,
			Rate:        l.Rate,
			SortOrder:   l.SortOrder,
		})
	}
	return out
}
