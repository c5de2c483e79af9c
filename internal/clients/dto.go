package clients

type CreateClientRequest struct {
	Name             string  `json:"name" validate:"required,max=200"`
	Email            string  `json:"email" validate:"required,email"`
	Phone            *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	VATNumber        *string `json:"vat_number,omitempty" validate:"omitempty,max=50"`
	TaxExempt        bool    `json:"tax_exempt"`
	Currency         string  `json:"currency" validate:"required,len=3"`
	PaymentTermsDays int     `json:"payment_terms_days" validate:"gte=0,lte=365"`
	AddressLine1     *string `json:"address_line1,omitempty" validate:"omitempty,max=200"`
	AddressLine2     *string `json:"address_line2,omitempty" validate:"omitempty,max=200"`
	City             *string `json:"city,omitempty" validate:"omitempty,max=100"`
	Country          *string `json:"country,omitempty" validate:"omitempty,len=2"`
	Notes            *string `json:"notes,omitempty"`
}

type UpdateClientRequest struct {
	Name             *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	VATNumber        *string `json:"vat_number,omitempty" validate:"omitempty,max=50"`
	TaxExempt        *bool   `json:"tax_exempt,omitempty"`
	Currency         *string `json:"currency,omitempty" validate:"omitempty,len=3"`
	PaymentTermsDays *int    `json:"payment_terms_days,omitempty" validate:"omitempty,gte=0,lte=365"`
	AddressLine1     *string `json:"address_line1,omitempty"`
	AddressLine2     *string `json:"address_line2,omitempty"`
	City             *string `json:"city,omitempty"`
	Country          *string `json:"country,omitempty" validate:"omitempty,len=2"`
	Notes            *string `json:"notes,omitempty"`
	IsActive         *bool   `json:"is_active,omitempty"`
}

type ListClientsRequest struct {
	OwnerID  int64
	IsActive *bool
	Search   *string
	Limit    int `validate:"gte=0,lte=1000"`
	Offset   int `validate:"gte=0"`
}
