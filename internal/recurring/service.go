package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturo/facturo/internal/billing"
	"github.com/facturo/facturo/internal/clients"
	"github.com/facturo/facturo/internal/invoices"
	"github.com/facturo/facturo/internal/money"
)

// RepositoryPort defines data access methods for recurring schedules.
type RepositoryPort interface {
	CreateSchedule(ctx context.Context, rec CreateScheduleRecord) (*Schedule, error)
	GetSchedule(ctx context.Context, ownerID, id int64) (*ScheduleWithTemplate, error)
	ListSchedules(ctx context.Context, ownerID int64) ([]Schedule, error)
	ListDue(ctx context.Context, now time.Time) ([]Schedule, error)
	TemplateLines(ctx context.Context, scheduleID int64) ([]TemplateLine, error)
	UpdateSchedule(ctx context.Context, rec UpdateScheduleRecord) (*Schedule, error)
	DeactivateSchedule(ctx context.Context, ownerID, id int64) error
	GenerateInvoice(ctx context.Context, rec invoices.CreateRecord, adv Advance) (*invoices.Invoice, error)
	AppendLog(ctx context.Context, e GenerationLogEntry) error
	ListLogs(ctx context.Context, ownerID, scheduleID int64, limit int) ([]GenerationLogEntry, error)
}

// ClientDirectory resolves billed parties and their tax status.
type ClientDirectory interface {
	Get(ctx context.Context, ownerID, id int64) (*clients.Client, error)
}

// DeliveryEnqueuer hands generated invoices to the delivery pipeline.
type DeliveryEnqueuer interface {
	EnqueueInvoiceDelivery(ctx context.Context, invoiceID int64, kind string) error
}

// Service handles recurring schedule management and batch generation.
type Service struct {
	repo     RepositoryPort
	clients  ClientDirectory
	delivery DeliveryEnqueuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service instance. delivery may be nil in contexts
// without a queue.
func NewService(repo RepositoryPort, directory ClientDirectory, delivery DeliveryEnqueuer, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		clients:  directory,
		delivery: delivery,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and persists a new schedule.
func (s *Service) Create(ctx context.Context, ownerID int64, req CreateScheduleRequest) (*Schedule, error) {
	if len(req.Lines) == 0 {
		return nil, ErrNoTemplateLines
	}
	client, err := s.clients.Get(ctx, ownerID, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("resolve client: %w", err)
	}

	// Dry-run the composer so a schedule with broken specs fails at
	// creation, not at its first generation.
	lines := templateLines(req.Lines)
	spec := billing.DiscountSpec{Type: billing.DiscountType(req.DiscountType), Value: req.DiscountValue}
	if _, err := billing.Compose(billing.ComposeInput{
		Items:     billingItems(lines),
		Discount:  spec,
		TaxRate:   req.TaxRate,
		Recipient: client.TaxStatus(),
	}); err != nil {
		return nil, err
	}

	return s.repo.CreateSchedule(ctx, CreateScheduleRecord{
		OwnerID:       ownerID,
		ClientID:      client.ID,
		Frequency:     billing.Frequency(req.Frequency),
		NextDate:      req.NextDate.UTC(),
		EndDate:       req.EndDate,
		DiscountType:  spec.Type,
		DiscountValue: spec.Value,
		TaxRate:       req.TaxRate,
		Notes:         req.Notes,
		Lines:         lines,
	})
}

// Get loads one schedule with its template.
func (s *Service) Get(ctx context.Context, ownerID, id int64) (*ScheduleWithTemplate, error) {
	return s.repo.GetSchedule(ctx, ownerID, id)
}

// List returns the owner's schedules.
func (s *Service) List(ctx context.Context, ownerID int64) ([]Schedule, error) {
	return s.repo.ListSchedules(ctx, ownerID)
}

// Update applies partial changes to a schedule.
func (s *Service) Update(ctx context.Context, ownerID, id int64, req UpdateScheduleRequest) (*Schedule, error) {
	current, err := s.repo.GetSchedule(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	rec := UpdateScheduleRecord{
		OwnerID:       ownerID,
		ScheduleID:    id,
		Frequency:     current.Frequency,
		NextDate:      current.NextDate,
		EndDate:       current.EndDate,
		Active:        current.Active,
		DiscountType:  current.DiscountType,
		DiscountValue: current.DiscountValue,
		TaxRate:       current.TaxRate,
		Notes:         current.Notes,
	}
	if req.Frequency != nil {
		rec.Frequency = billing.Frequency(*req.Frequency)
	}
	if req.NextDate != nil {
		rec.NextDate = req.NextDate.UTC()
	}
	if req.EndDate != nil {
		rec.EndDate = req.EndDate
	}
	if req.Active != nil {
		rec.Active = *req.Active
	}
	if req.DiscountType != nil {
		if *req.DiscountType == "none" {
			rec.DiscountType = ""
			rec.DiscountValue = decimal.Zero
		} else {
			rec.DiscountType = billing.DiscountType(*req.DiscountType)
		}
	}
	if req.DiscountValue != nil {
		rec.DiscountValue = *req.DiscountValue
	}
	if req.TaxRate != nil {
		rec.TaxRate = *req.TaxRate
	}
	if req.Notes != nil {
		rec.Notes = req.Notes
	}
	if req.Lines != nil {
		rec.Lines = templateLines(req.Lines)
	}
	return s.repo.UpdateSchedule(ctx, rec)
}

// Deactivate pauses a schedule without deleting its template.
func (s *Service) Deactivate(ctx context.Context, ownerID, id int64) error {
	return s.repo.DeactivateSchedule(ctx, ownerID, id)
}

// Logs returns a schedule's generation history.
func (s *Service) Logs(ctx context.Context, ownerID, scheduleID int64, limit int) ([]GenerationLogEntry, error) {
	return s.repo.ListLogs(ctx, ownerID, scheduleID, limit)
}

// ProcessDue generates invoices for every due schedule, sequentially.
// One schedule's failure never aborts the rest of the batch; each
// attempt lands in the generation log either way.
func (s *Service) ProcessDue(ctx context.Context) (RunReport, error) {
	now := s.now()
	var report RunReport

	due, err := s.repo.ListDue(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list due schedules: %w", err)
	}

	for _, sched := range due {
		report.Processed++
		inv, deactivated, err := s.generateOne(ctx, sched, now)

		entry := GenerationLogEntry{ScheduleID: sched.ID, RunAt: now}
		if err != nil {
			report.Failed++
			msg := err.Error()
			entry.Status = LogStatusFailed
			entry.Error = &msg
			s.logError(sched.ID, "recurring generation failed", err)
		} else {
			report.Generated++
			if deactivated {
				report.Deactivated++
			}
			entry.Status = LogStatusSuccess
			entry.InvoiceID = &inv.ID
		}
		if logErr := s.repo.AppendLog(ctx, entry); logErr != nil {
			s.logError(sched.ID, "append generation log", logErr)
		}

		if err == nil {
			s.enqueueDelivery(ctx, inv.ID)
		}
	}
	return report, nil
}

// generateOne runs the per-schedule algorithm. The invoice, its lines,
// and the schedule advance commit atomically inside the repository.
func (s *Service) generateOne(ctx context.Context, sched Schedule, now time.Time) (*invoices.Invoice, bool, error) {
	template, err := s.repo.TemplateLines(ctx, sched.ID)
	if err != nil {
		return nil, false, fmt.Errorf("load template: %w", err)
	}
	if len(template) == 0 {
		return nil, false, ErrNoTemplateLines
	}
	client, err := s.clients.Get(ctx, sched.OwnerID, sched.ClientID)
	if err != nil {
		return nil, false, fmt.Errorf("resolve client: %w", err)
	}

	items := billingItems(template)
	totals, err := billing.Compose(billing.ComposeInput{
		Items:     items,
		Discount:  billing.DiscountSpec{Type: sched.DiscountType, Value: sched.DiscountValue},
		TaxRate:   sched.TaxRate,
		Recipient: client.TaxStatus(),
	})
	if err != nil {
		return nil, false, err
	}

	next, err := billing.NextDate(sched.NextDate, sched.Frequency)
	if err != nil {
		return nil, false, err
	}
	deactivate := sched.EndDate != nil && next.After(*sched.EndDate)

	sentAt := now
	lines := make([]invoices.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, invoices.Line{
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
			Amount:      it.Amount(money.FiatPlaces),
			SortOrder:   it.SortOrder,
		})
	}

	inv, err := s.repo.GenerateInvoice(ctx, invoices.CreateRecord{
		OwnerID:       sched.OwnerID,
		ClientID:      sched.ClientID,
		Currency:      client.Currency,
		Status:        invoices.StatusSent,
		IssueDate:     now,
		DueDate:       now.AddDate(0, 0, client.PaymentTermsDays),
		DiscountType:  sched.DiscountType,
		DiscountValue: sched.DiscountValue,
		TaxRate:       sched.TaxRate,
		Totals:        totals,
		Lines:         lines,
		Notes:         sched.Notes,
		SentAt:        &sentAt,
	}, Advance{
		ScheduleID:  sched.ID,
		Deactivate:  deactivate,
		NextDate:    next,
		GeneratedAt: now,
	})
	if err != nil {
		return nil, false, err
	}
	return inv, deactivate, nil
}

func (s *Service) enqueueDelivery(ctx context.Context, invoiceID int64) {
	if s.delivery == nil {
		return
	}
	if err := s.delivery.EnqueueInvoiceDelivery(ctx, invoiceID, invoices.DeliveryKindInvoice); err != nil && s.logger != nil {
		s.logger.Warn("enqueue invoice delivery",
			slog.Int64("invoice_id", invoiceID),
			slog.Any("error", err))
	}
}

func (s *Service) logError(scheduleID int64, msg string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Error(msg, slog.Int64("schedule_id", scheduleID), slog.Any("error", err))
}

func templateLines(inputs []TemplateLineInput) []TemplateLine {
	lines := make([]TemplateLine, 0, len(inputs))
	for i, in := range inputs {
		lines = append(lines, TemplateLine{
			Description: in.Description,
			Quantity:    in.Quantity,
			Rate:        in.Rate,
			SortOrder:   i + 1,
		})
	}
	return lines
}

func billingItems(lines []TemplateLine) []billing.LineItem {
	items := make([]billing.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, billing.LineItem{
			Description: l.Description,
			Quantity:    l.Quantity,
			Rate:        l.Rate,
			SortOrder:   l.SortOrder,
		})
	}
	return items
}
