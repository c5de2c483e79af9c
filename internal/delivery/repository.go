package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facturo/facturo/internal/billing"
	"github.com/facturo/facturo/internal/invoices"
)

// Repository provides PostgreSQL backed persistence for the delivery
// log plus the read queries the worker needs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadPacket fetches the invoice, its lines, and its client in one go.
// The worker receives only an invoice id, so the lookup is not owner
// scoped.
func (r *Repository) LoadPacket(ctx context.Context, invoiceID int64) (*Packet, error) {
	var p Packet
	var discountType string
	err := r.pool.QueryRow(ctx, `
		SELECT
			i.id, i.owner_id, i.client_id, i.number, i.currency, i.status,
			i.issue_date, i.due_date, i.discount_type, i.discount_value,
			i.tax_rate, i.reverse_charge, i.subtotal, i.discount_amount,
			i.tax_amount, i.total, i.amount_paid, i.amount_due, i.notes,
			i.sent_at, i.paid_at, i.last_reminder_at,
			c.id, c.name, c.email, c.currency, c.payment_terms_days,
			c.address_line1, c.address_line2, c.city, c.country
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.id = $1`, invoiceID,
	).Scan(
		&p.Invoice.ID, &p.Invoice.OwnerID, &p.Invoice.ClientID, &p.Invoice.Number,
		&p.Invoice.Currency, &p.Invoice.Status, &p.Invoice.IssueDate, &p.Invoice.DueDate,
		&discountType, &p.Invoice.DiscountValue, &p.Invoice.TaxRate, &p.Invoice.ReverseCharge,
		&p.Invoice.Subtotal, &p.Invoice.DiscountAmount, &p.Invoice.TaxAmount,
		&p.Invoice.Total, &p.Invoice.AmountPaid, &p.Invoice.AmountDue, &p.Invoice.Notes,
		&p.Invoice.SentAt, &p.Invoice.PaidAt, &p.Invoice.LastReminderAt,
		&p.Client.ID, &p.Client.Name, &p.Client.Email, &p.Client.Currency,
		&p.Client.PaymentTermsDays, &p.Client.AddressLine1, &p.Client.AddressLine2,
		&p.Client.City, &p.Client.Country,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Invoice.DiscountType = billing.DiscountType(discountType)

	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, description, quantity, rate, amount, sort_order
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY sort_order ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l invoices.Line
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.Quantity, &l.Rate, &l.Amount, &l.SortOrder); err != nil {
			return nil, err
		}
		p.Lines = append(p.Lines, l)
	}
	return &p, rows.Err()
}

// AppendLog records one delivery attempt.
func (r *Repository) AppendLog(ctx context.Context, e LogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO delivery_log (id, invoice_id, kind, recipient, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.InvoiceID, e.Kind, e.Recipient, string(e.Status), e.Error, e.CreatedAt)
	return err
}

// ListLogs returns an invoice's delivery history, newest first.
func (r *Repository) ListLogs(ctx context.Context, ownerID, invoiceID int64, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT d.id, d.invoice_id, d.kind, d.recipient, d.status, d.error, d.created_at
		FROM delivery_log d
		JOIN invoices i ON i.id = d.invoice_id
		WHERE d.invoice_id = $1 AND i.owner_id = $2
		ORDER BY d.created_at DESC LIMIT $3`, invoiceID, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var status string
		if err := rows.Scan(&e.ID, &e.InvoiceID, &e.Kind, &e.Recipient, &status, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = LogStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListReminderCandidates finds sent invoices past due whose last
// reminder is older than the interval, or that were never reminded.
func (r *Repository) ListReminderCandidates(ctx context.Context, now time.Time, interval time.Duration) ([]ReminderCandidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id FROM invoices
		WHERE status = 'sent' AND due_date < $1
		AND (last_reminder_at IS NULL OR last_reminder_at < $2)
		ORDER BY due_date ASC`, now, now.Add(-interval))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReminderCandidate
	for rows.Next() {
		var c ReminderCandidate
		if err := rows.Scan(&c.InvoiceID, &c.OwnerID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
