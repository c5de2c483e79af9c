package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/facturo/facturo/internal/billing"
	"github.com/facturo/facturo/internal/clients"
	"github.com/facturo/facturo/internal/money"
)

// DeliveryKindInvoice and DeliveryKindReminder select the email
// template used by the delivery worker.
const (
	DeliveryKindInvoice  = "invoice"
	DeliveryKindReminder = "reminder"
)

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	CreateInvoice(ctx context.Context, rec CreateRecord) (*Invoice, error)
	GetInvoice(ctx context.Context, ownerID, id int64) (*Invoice, error)
	GetInvoiceWithDetails(ctx context.Context, ownerID, id int64) (*InvoiceWithDetails, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	UpdateInvoice(ctx context.Context, rec UpdateRecord) (*Invoice, error)
	MarkSent(ctx context.Context, ownerID, id int64, at time.Time) (*Invoice, error)
	VoidInvoice(ctx context.Context, ownerID, id int64, at time.Time) (*Invoice, error)
	RecordPayment(ctx context.Context, rec PaymentRecord) (*Invoice, *Payment, error)
}

// ClientDirectory resolves billed parties and their tax status.
type ClientDirectory interface {
	Get(ctx context.Context, ownerID, id int64) (*clients.Client, error)
}

// DeliveryEnqueuer hands finished invoices to the delivery pipeline.
// Enqueue failures are best-effort and never affect invoice state.
type DeliveryEnqueuer interface {
	EnqueueInvoiceDelivery(ctx context.Context, invoiceID int64, kind string) error
}

// Service handles invoice business logic.
type Service struct {
	repo     RepositoryPort
	clients  ClientDirectory
	delivery DeliveryEnqueuer
	logger   *slog.Logger
}

// NewService builds a Service instance. delivery may be nil in
// contexts without a queue (tests, offline tools).
func NewService(repo RepositoryPort, directory ClientDirectory, delivery DeliveryEnqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, clients: directory, delivery: delivery, logger: logger}
}

// Create composes totals from the request and persists a draft invoice.
func (s *Service) Create(ctx context.Context, ownerID int64, req CreateInvoiceRequest) (*Invoice, error) {
	if len(req.Lines) == 0 {
		return nil, ErrNoLines
	}
	client, err := s.clients.Get(ctx, ownerID, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("resolve client: %w", err)
	}

	items := requestItems(req.Lines)
	spec := billing.DiscountSpec{Type: billing.DiscountType(req.DiscountType), Value: req.DiscountValue}
	totals, err := billing.Compose(billing.ComposeInput{
		Items:     items,
		Discount:  spec,
		TaxRate:   req.TaxRate,
		Recipient: client.TaxStatus(),
	})
	if err != nil {
		return nil, err
	}

	issueDate := time.Now().UTC()
	if req.IssueDate != nil {
		issueDate = req.IssueDate.UTC()
	}
	dueDate := issueDate.AddDate(0, 0, client.PaymentTermsDays)
	if req.DueDate != nil {
		dueDate = req.DueDate.UTC()
	}

	return s.repo.CreateInvoice(ctx, CreateRecord{
		OwnerID:       ownerID,
		ClientID:      client.ID,
		Currency:      client.Currency,
		Status:        StatusDraft,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		DiscountType:  spec.Type,
		DiscountValue: spec.Value,
		TaxRate:       req.TaxRate,
		Totals:        totals,
		Lines:         persistedLines(items),
		Notes:         req.Notes,
	})
}

// Get loads one invoice with lines and payments.
func (s *Service) Get(ctx context.Context, ownerID, id int64) (*InvoiceWithDetails, error) {
	return s.repo.GetInvoiceWithDetails(ctx, ownerID, id)
}

// List returns invoices matching the filters.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	return s.repo.ListInvoices(ctx, req)
}

// Update replaces lines and specs and recomputes totals from scratch.
// Totals are never patched incrementally.
func (s *Service) Update(ctx context.Context, ownerID, id int64, req UpdateInvoiceRequest) (*Invoice, error) {
	current, err := s.repo.GetInvoiceWithDetails(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusDraft && current.Status != StatusSent {
		return nil, ErrInvalidStatus
	}
	client, err := s.clients.Get(ctx, ownerID, current.ClientID)
	if err != nil {
		return nil, fmt.Errorf("resolve client: %w", err)
	}

	items := billingLines(current.Lines)
	if req.Lines != nil {
		items = requestItems(req.Lines)
	}
	spec := billing.DiscountSpec{Type: current.DiscountType, Value: current.DiscountValue}
	if req.DiscountType != nil {
		if *req.DiscountType == "none" {
			spec = billing.DiscountSpec{}
		} else {
			spec.Type = billing.DiscountType(*req.DiscountType)
		}
	}
	if req.DiscountValue != nil {
		spec.Value = *req.DiscountValue
	}
	taxRate := current.TaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}

	totals, err := billing.Compose(billing.ComposeInput{
		Items:      items,
		Discount:   spec,
		TaxRate:    taxRate,
		Recipient:  client.TaxStatus(),
		AmountPaid: current.AmountPaid,
	})
	if err != nil {
		return nil, err
	}

	dueDate := current.DueDate
	if req.DueDate != nil {
		dueDate = req.DueDate.UTC()
	}
	notes := current.Notes
	if req.Notes != nil {
		notes = req.Notes
	}

	return s.repo.UpdateInvoice(ctx, UpdateRecord{
		OwnerID:       ownerID,
		InvoiceID:     id,
		DueDate:       dueDate,
		DiscountType:  spec.Type,
		DiscountValue: spec.Value,
		TaxRate:       taxRate,
		Totals:        totals,
		Lines:         persistedLines(items),
		Notes:         notes,
	})
}

// Send transitions a draft invoice to sent and hands it to the
// delivery pipeline.
func (s *Service) Send(ctx context.Context, ownerID, id int64) (*Invoice, error) {
	current, err := s.repo.GetInvoice(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusDraft {
		return nil, ErrInvalidStatus
	}

	inv, err := s.repo.MarkSent(ctx, ownerID, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.enqueueDelivery(ctx, inv.ID, DeliveryKindInvoice)
	return inv, nil
}

// Void cancels a draft or sent invoice.
func (s *Service) Void(ctx context.Context, ownerID, id int64) (*Invoice, error) {
	current, err := s.repo.GetInvoice(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusDraft && current.Status != StatusSent {
		return nil, ErrInvalidStatus
	}
	return s.repo.VoidInvoice(ctx, ownerID, id, time.Now().UTC())
}

// RecordPayment registers a payment and recomposes the paid/due state.
// Overpayment is flagged in the result, not rejected.
func (s *Service) RecordPayment(ctx context.Context, ownerID, id int64, req RecordPaymentRequest) (*PaymentResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	current, err := s.repo.GetInvoiceWithDetails(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusSent {
		return nil, ErrInvalidStatus
	}
	client, err := s.clients.Get(ctx, ownerID, current.ClientID)
	if err != nil {
		return nil, fmt.Errorf("resolve client: %w", err)
	}

	newPaid := money.Round(current.AmountPaid.Add(req.Amount))
	totals, err := billing.Compose(billing.ComposeInput{
		Items:      billingLines(current.Lines),
		Discount:   billing.DiscountSpec{Type: current.DiscountType, Value: current.DiscountValue},
		TaxRate:    current.TaxRate,
		Recipient:  client.TaxStatus(),
		AmountPaid: newPaid,
	})
	if err != nil {
		return nil, err
	}

	paidAt := time.Now().UTC()
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}

	inv, payment, err := s.repo.RecordPayment(ctx, PaymentRecord{
		OwnerID:       ownerID,
		InvoiceID:     id,
		Amount:        req.Amount,
		Method:        req.Method,
		Note:          req.Note,
		PaidAt:        paidAt,
		NewAmountPaid: newPaid,
		NewAmountDue:  totals.AmountDue,
		MarkPaid:      !totals.AmountDue.IsPositive(),
	})
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Invoice: inv, Payment: payment, Overpaid: totals.Overpaid}, nil
}

func (s *Service) enqueueDelivery(ctx context.Context, invoiceID int64, kind string) {
	if s.delivery == nil {
		return
	}
	if err := s.delivery.EnqueueInvoiceDelivery(ctx, invoiceID, kind); err != nil && s.logger != nil {
		s.logger.Warn("enqueue invoice delivery",
			slog.Int64("invoice_id", invoiceID),
			slog.String("kind", kind),
			slog.Any("error", err))
	}
}

func requestItems(lines []LineInput) []billing.LineItem {
	items := make([]billing.LineItem, 0, len(lines))
	for i, l := range lines {
		items = append(items, billing.LineItem{
			Description: l.Description,
			Quantity:    l.Quantity,
			Rate:        l.Rate,
			SortOrder:   i + 1,
		})
	}
	return items
}

func persistedLines(items []billing.LineItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
			Amount:      it.Amount(money.FiatPlaces),
			SortOrder:   it.SortOrder,
		})
	}
	return lines
}
