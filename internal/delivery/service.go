package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/facturo/facturo/internal/invoices"
)

// RepositoryPort defines data access methods for delivery.
type RepositoryPort interface {
	LoadPacket(ctx context.Context, invoiceID int64) (*Packet, error)
	AppendLog(ctx context.Context, e LogEntry) error
	ListLogs(ctx context.Context, ownerID, invoiceID int64, limit int) ([]LogEntry, error)
	ListReminderCandidates(ctx context.Context, now time.Time, interval time.Duration) ([]ReminderCandidate, error)
}

// Renderer produces the PDF for one packet.
type Renderer interface {
	Render(ctx context.Context, p *Packet) ([]byte, error)
}

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ReminderMarker stamps the invoice after a reminder goes out.
type ReminderMarker interface {
	TouchReminder(ctx context.Context, id int64, at time.Time) error
}

// Enqueuer feeds reminder deliveries back into the queue.
type Enqueuer interface {
	EnqueueInvoiceDelivery(ctx context.Context, invoiceID int64, kind string) error
}

// Service renders and emails invoices. Every attempt lands in the
// delivery log; failures here never change invoice state.
type Service struct {
	repo     RepositoryPort
	renderer Renderer
	mailer   Mailer
	marker   ReminderMarker
	enqueuer Enqueuer
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewService builds a Service instance. interval is the minimum gap
// between reminders for the same invoice.
func NewService(repo RepositoryPort, renderer Renderer, mailer Mailer, marker ReminderMarker, enqueuer Enqueuer, interval time.Duration, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		renderer: renderer,
		mailer:   mailer,
		marker:   marker,
		enqueuer: enqueuer,
		logger:   logger,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Deliver renders the invoice PDF and emails it. The attempt is logged
// either way; the returned error drives queue retries only.
func (s *Service) Deliver(ctx context.Context, invoiceID int64, kind string) error {
	if kind != invoices.DeliveryKindInvoice && kind != invoices.DeliveryKindReminder {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	packet, err := s.repo.LoadPacket(ctx, invoiceID)
	if err != nil {
		return err
	}
	if packet.Invoice.Status != invoices.StatusSent {
		// Paid or voided since enqueue; nothing to send.
		return nil
	}

	err = s.send(ctx, packet, kind)
	entry := LogEntry{
		InvoiceID: invoiceID,
		Kind:      kind,
		Recipient: packet.Client.Email,
		Status:    LogStatusSent,
		CreatedAt: s.now(),
	}
	if err != nil {
		msg := err.Error()
		entry.Status = LogStatusFailed
		entry.Error = &msg
	}
	if logErr := s.repo.AppendLog(ctx, entry); logErr != nil && s.logger != nil {
		s.logger.Error("append delivery log",
			slog.Int64("invoice_id", invoiceID), slog.Any("error", logErr))
	}
	if err != nil {
		return err
	}

	if kind == invoices.DeliveryKindReminder && s.marker != nil {
		if markErr := s.marker.TouchReminder(ctx, invoiceID, s.now()); markErr != nil && s.logger != nil {
			s.logger.Error("touch reminder",
				slog.Int64("invoice_id", invoiceID), slog.Any("error", markErr))
		}
	}
	return nil
}

func (s *Service) send(ctx context.Context, packet *Packet, kind string) error {
	pdf, err := s.renderer.Render(ctx, packet)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Invoice %s from your supplier", packet.Invoice.Number)
	body := fmt.Sprintf(
		"Hello %s,\n\nPlease find invoice %s attached. Amount due: %s %s by %s.\n",
		packet.Client.Name, packet.Invoice.Number,
		packet.Invoice.AmountDue.StringFixed(2), packet.Invoice.Currency,
		packet.Invoice.DueDate.Format("2 Jan 2006"))
	if kind == invoices.DeliveryKindReminder {
		subject = fmt.Sprintf("Reminder: invoice %s is overdue", packet.Invoice.Number)
		body = fmt.Sprintf(
			"Hello %s,\n\nThis is a reminder that invoice %s was due on %s. Outstanding amount: %s %s.\n",
			packet.Client.Name, packet.Invoice.Number,
			packet.Invoice.DueDate.Format("2 Jan 2006"),
			packet.Invoice.AmountDue.StringFixed(2), packet.Invoice.Currency)
	}

	return s.mailer.Send(ctx, Message{
		To:             packet.Client.Email,
		Subject:        subject,
		Body:           body,
		Attachment:     pdf,
		AttachmentName: fmt.Sprintf("%s.pdf", packet.Invoice.Number),
	})
}

// RenderPDF renders an invoice for the API download path, scoped to
// its owner.
func (s *Service) RenderPDF(ctx context.Context, ownerID, invoiceID int64) ([]byte, string, error) {
	packet, err := s.repo.LoadPacket(ctx, invoiceID)
	if err != nil {
		return nil, "", err
	}
	if packet.Invoice.OwnerID != ownerID {
		return nil, "", ErrNotFound
	}
	pdf, err := s.renderer.Render(ctx, packet)
	if err != nil {
		return nil, "", err
	}
	return pdf, fmt.Sprintf("%s.pdf", packet.Invoice.Number), nil
}

// Logs returns an invoice's delivery history.
func (s *Service) Logs(ctx context.Context, ownerID, invoiceID int64, limit int) ([]LogEntry, error) {
	return s.repo.ListLogs(ctx, ownerID, invoiceID, limit)
}

// ScanReminders finds overdue invoices outside the reminder interval
// and feeds them back through the delivery queue.
func (s *Service) ScanReminders(ctx context.Context) (int, error) {
	if s.enqueuer == nil {
		return 0, nil
	}
	candidates, err := s.repo.ListReminderCandidates(ctx, s.now(), s.interval)
	if err != nil {
		return 0, fmt.Errorf("list reminder candidates: %w", err)
	}
	enqueued := 0
	for _, c := range candidates {
		if err := s.enqueuer.EnqueueInvoiceDelivery(ctx, c.InvoiceID, invoices.DeliveryKindReminder); err != nil {
			if s.logger != nil {
				s.logger.Warn("enqueue reminder",
					slog.Int64("invoice_id", c.InvoiceID), slog.Any("error", err))
			}
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
