package recurring

import (
	"time"

	"github.com/shopspring/decimal"
)

type TemplateLineInput struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	Rate        decimal.Decimal `json:"rate" validate:"required"`
}

type CreateScheduleRequest struct {
	ClientID      int64               `json:"client_id" validate:"required,gt=0"`
	Frequency     string              `json:"frequency" validate:"required,oneof=weekly monthly yearly"`
	NextDate      time.Time           `json:"next_date" validate:"required"`
	EndDate       *time.Time          `json:"end_date,omitempty"`
	Lines         []TemplateLineInput `json:"lines" validate:"required,min=1,dive"`
	DiscountType  string              `json:"discount_type,omitempty" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	TaxRate       decimal.Decimal     `json:"tax_rate"`
	Notes         *string             `json:"notes,omitempty"`
}

type UpdateScheduleRequest struct {
	Frequency     *string             `json:"frequency,omitempty" validate:"omitempty,oneof=weekly monthly yearly"`
	NextDate      *time.Time          `json:"next_date,omitempty"`
	EndDate       *time.Time          `json:"end_date,omitempty"`
	Active        *bool               `json:"active,omitempty"`
	Lines         []TemplateLineInput `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
	DiscountType  *string             `json:"discount_type,omitempty" validate:"omitempty,oneof=percentage fixed none"`
	DiscountValue *decimal.Decimal    `json:"discount_value,omitempty"`
	TaxRate       *decimal.Decimal    `json:"tax_rate,omitempty"`
	Notes         *string             `json:"notes,omitempty"`
}
