package recurring

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/facturo/facturo/internal/billing"
)

var (
	// ErrNotFound indicates the schedule does not exist for the owner.
	ErrNotFound = errors.New("recurring: schedule not found")
	// ErrNoTemplateLines indicates a schedule without any template lines.
	ErrNoTemplateLines = errors.New("recurring: at least one template line required")
)

// Schedule is a recurring invoice template's timing and spec. Template
// lines live in their own table and are copied onto each generated
// invoice.
type Schedule struct {
	ID        int64             `json:"id"`
	OwnerID   int64             `json:"owner_id"`
	ClientID  int64             `json:"client_id"`
	Frequency billing.Frequency `json:"frequency"`

	NextDate time.Time  `json:"next_date"`
	EndDate  *time.Time `json:"end_date,omitempty"`
	Active   bool       `json:"active"`

	DiscountType  billing.DiscountType `json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal      `json:"discount_value"`
	TaxRate       decimal.Decimal      `json:"tax_rate"`

	Notes           *string    `json:"notes,omitempty"`
	LastGeneratedAt *time.Time `json:"last_generated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsDue reports whether the schedule should generate at the given time.
func (s Schedule) IsDue(now time.Time) bool {
	return s.Active && !s.NextDate.After(now)
}

// TemplateLine is one line of the schedule's invoice template.
type TemplateLine struct {
	ID          int64           `json:"id"`
	ScheduleID  int64           `json:"schedule_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	SortOrder   int             `json:"sort_order"`
}

// ScheduleWithTemplate bundles a schedule with its lines for detail
// views and generation.
type ScheduleWithTemplate struct {
	Schedule
	Lines []TemplateLine `json:"lines"`
}

// LogStatus is the outcome of one generation attempt.
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusFailed  LogStatus = "failed"
)

// GenerationLogEntry records one generation attempt. Entries are
// append-only and never mutated, so an operator can reconstruct every
// run.
type GenerationLogEntry struct {
	ID         uuid.UUID `json:"id"`
	ScheduleID int64     `json:"schedule_id"`
	InvoiceID  *int64    `json:"invoice_id,omitempty"`
	Status     LogStatus `json:"status"`
	Error      *string   `json:"error,omitempty"`
	RunAt      time.Time `json:"run_at"`
}

// RunReport summarizes one generator batch.
type RunReport struct {
	Processed   int `json:"processed"`
	Generated   int `json:"generated"`
	Deactivated int `json:"deactivated"`
	Failed      int `json:"failed"`
}
