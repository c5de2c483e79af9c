package clients

import (
	"time"

	"github.com/facturo/facturo/internal/billing"
)

// Client is a billed party.
type Client struct {
	ID               int64      `json:"id"`
	OwnerID          int64      `json:"owner_id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Phone            *string    `json:"phone,omitempty"`
	VATNumber        *string    `json:"vat_number,omitempty"`
	TaxExempt        bool       `json:"tax_exempt"`
	Currency         string     `json:"currency"`
	PaymentTermsDays int        `json:"payment_terms_days"`
	AddressLine1     *string    `json:"address_line1,omitempty"`
	AddressLine2     *string    `json:"address_line2,omitempty"`
	City             *string    `json:"city,omitempty"`
	Country          *string    `json:"country,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ArchivedAt       *time.Time `json:"archived_at,omitempty"`
}

// TaxStatus maps the client onto the calculation core's recipient
// shape. Reverse charge needs both the VAT number and the exemption
// flag.
func (c Client) TaxStatus() billing.RecipientTaxStatus {
	status := billing.RecipientTaxStatus{TaxExempt: c.TaxExempt}
	if c.VATNumber != nil {
		status.VATNumber = *c.VATNumber
	}
	return status
}
