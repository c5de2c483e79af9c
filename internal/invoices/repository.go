package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/facturo/facturo/internal/billing"
	"github.com/facturo/facturo/internal/platform/db"
	"github.com/facturo/facturo/internal/sequence"
)

// CreateRecord carries a fully composed invoice into persistence. The
// service computes totals; the repository only stores them.
type CreateRecord struct {
	OwnerID       int64
	ClientID      int64
	Currency      string
	Status        Status
	IssueDate     time.Time
	DueDate       time.Time
	DiscountType  billing.DiscountType
	DiscountValue decimal.Decimal
	TaxRate       decimal.Decimal
	Totals        billing.Totals
	Lines         []Line
	Notes         *string
	SentAt        *time.Time
}

// UpdateRecord replaces an invoice's lines, specs, and totals.
type UpdateRecord struct {
	OwnerID       int64
	InvoiceID     int64
	DueDate       time.Time
	DiscountType  billing.DiscountType
	DiscountValue decimal.Decimal
	TaxRate       decimal.Decimal
	Totals        billing.Totals
	Lines         []Line
	Notes         *string
}

// PaymentRecord persists one payment plus the recomposed paid/due state.
type PaymentRecord struct {
	OwnerID       int64
	InvoiceID     int64
	Amount        decimal.Decimal
	Method        string
	Note          *string
	PaidAt        time.Time
	NewAmountPaid decimal.Decimal
	NewAmountDue  decimal.Decimal
	MarkPaid      bool
}

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `
	id, owner_id, client_id, number, currency, status, issue_date, due_date,
	discount_type, discount_value, tax_rate, reverse_charge,
	subtotal, discount_amount, tax_amount, total, amount_paid, amount_due,
	notes, sent_at, paid_at, voided_at, last_reminder_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var discountType string
	err := row.Scan(
		&inv.ID, &inv.OwnerID, &inv.ClientID, &inv.Number, &inv.Currency,
		&inv.Status, &inv.IssueDate, &inv.DueDate,
		&discountType, &inv.DiscountValue, &inv.TaxRate, &inv.ReverseCharge,
		&inv.Subtotal, &inv.DiscountAmount, &inv.TaxAmount, &inv.Total,
		&inv.AmountPaid, &inv.AmountDue,
		&inv.Notes, &inv.SentAt, &inv.PaidAt, &inv.VoidedAt,
		&inv.LastReminderAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.DiscountType = billing.DiscountType(discountType)
	return &inv, nil
}

// CreateInvoice allocates a number and persists the invoice plus its
// lines in one transaction, retrying the whole unit when the counter
// hits a conflicting transaction.
func (r *Repository) CreateInvoice(ctx context.Context, rec CreateRecord) (*Invoice, error) {
	var inv *Invoice
	var lastErr error
	for attempt := 0; attempt < sequence.MaxAttempts; attempt++ {
		lastErr = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
			created, err := r.CreateInvoiceTx(ctx, tx, rec)
			if err != nil {
				return err
			}
			inv = created
			return nil
		})
		if lastErr == nil {
			return inv, nil
		}
		if !sequence.Retryable(lastErr) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("create invoice: conflict retries exhausted: %w", lastErr)
}

// CreateInvoiceTx is the transaction-scoped variant used by the
// recurring generator so invoice creation and schedule advancement
// commit as one unit.
func (r *Repository) CreateInvoiceTx(ctx context.Context, tx pgx.Tx, rec CreateRecord) (*Invoice, error) {
	number, err := sequence.Next(ctx, tx, rec.OwnerID, rec.IssueDate.Year())
	if err != nil {
		return nil, err
	}
	inv, err := insertInvoice(ctx, tx, number, rec)
	if err != nil {
		return nil, err
	}
	if err := insertLines(ctx, tx, inv.ID, rec.Lines); err != nil {
		return nil, err
	}
	return inv, nil
}

func insertInvoice(ctx context.Context, tx pgx.Tx, number string, rec CreateRecord) (*Invoice, error) {
	query := `
		INSERT INTO invoices (
			owner_id, client_id, number, currency, status, issue_date, due_date,
			discount_type, discount_value, tax_rate, reverse_charge,
			subtotal, discount_amount, tax_amount, total, amount_paid, amount_due,
			notes, sent_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, NOW(), NOW()
		)
		RETURNING ` + invoiceColumns

	amountPaid := rec.Totals.Total.Sub(rec.Totals.AmountDue)
	return scanInvoice(tx.QueryRow(ctx, query,
		rec.OwnerID, rec.ClientID, number, rec.Currency, rec.Status,
		rec.IssueDate, rec.DueDate,
		string(rec.DiscountType), rec.DiscountValue, rec.TaxRate, rec.Totals.ReverseCharge,
		rec.Totals.Subtotal, rec.Totals.DiscountAmount, rec.Totals.TaxAmount,
		rec.Totals.Total, amountPaid, rec.Totals.AmountDue,
		rec.Notes, rec.SentAt,
	))
}

func insertLines(ctx context.Context, tx pgx.Tx, invoiceID int64, lines []Line) error {
	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO invoice_lines (invoice_id, description, quantity, rate, amount, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			invoiceID, l.Description, l.Quantity, l.Rate, l.Amount, l.SortOrder,
		); err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
	}
	return nil
}

// GetInvoice loads one invoice scoped to its owner.
func (r *Repository) GetInvoice(ctx context.Context, ownerID, id int64) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND owner_id = $2`
	return scanInvoice(r.pool.QueryRow(ctx, query, id, ownerID))
}

// GetInvoiceWithDetails loads the aggregate including lines and payments.
func (r *Repository) GetInvoiceWithDetails(ctx context.Context, ownerID, id int64) (*InvoiceWithDetails, error) {
	inv, err := r.GetInvoice(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	lines, err := r.ListLines(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, amount, method, note, paid_at, created_at
		FROM payments WHERE invoice_id = $1 ORDER BY paid_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Note, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &InvoiceWithDetails{
		Invoice:  *inv,
		Lines:    lines,
		Payments: payments,
		Overdue:  inv.IsOverdue(time.Now().UTC()),
	}, nil
}

// ListLines returns the invoice's lines in display order.
func (r *Repository) ListLines(ctx context.Context, invoiceID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, description, quantity, rate, amount, sort_order
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY sort_order ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.Quantity, &l.Rate, &l.Amount, &l.SortOrder); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ListInvoices returns invoices matching the filters plus the unpaged
// total.
func (r *Repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	where := []string{"owner_id = $1"}
	args := []any{req.OwnerID}

	if req.ClientID != nil {
		args = append(args, *req.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if req.Overdue != nil && *req.Overdue {
		where = append(where, "status = 'sent' AND due_date < NOW()")
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, cond, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		var discountType string
		if err := rows.Scan(
			&inv.ID, &inv.OwnerID, &inv.ClientID, &inv.Number, &inv.Currency,
			&inv.Status, &inv.IssueDate, &inv.DueDate,
			&discountType, &inv.DiscountValue, &inv.TaxRate, &inv.ReverseCharge,
			&inv.Subtotal, &inv.DiscountAmount, &inv.TaxAmount, &inv.Total,
			&inv.AmountPaid, &inv.AmountDue,
			&inv.Notes, &inv.SentAt, &inv.PaidAt, &inv.VoidedAt,
			&inv.LastReminderAt, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		inv.DiscountType = billing.DiscountType(discountType)
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

// UpdateInvoice replaces lines, specs, and totals in one transaction.
func (r *Repository) UpdateInvoice(ctx context.Context, rec UpdateRecord) (*Invoice, error) {
	var inv *Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		amountPaid := rec.Totals.Total.Sub(rec.Totals.AmountDue)
		updated, err := scanInvoice(tx.QueryRow(ctx, `
			UPDATE invoices SET
				due_date = $3, discount_type = $4, discount_value = $5, tax_rate = $6,
				reverse_charge = $7, subtotal = $8, discount_amount = $9, tax_amount = $10,
				total = $11, amount_paid = $12, amount_due = $13, notes = $14,
				updated_at = NOW()
			WHERE id = $1 AND owner_id = $2
			RETURNING `+invoiceColumns,
			rec.InvoiceID, rec.OwnerID, rec.DueDate,
			string(rec.DiscountType), rec.DiscountValue, rec.TaxRate,
			rec.Totals.ReverseCharge, rec.Totals.Subtotal, rec.Totals.DiscountAmount,
			rec.Totals.TaxAmount, rec.Totals.Total, amountPaid, rec.Totals.AmountDue,
			rec.Notes,
		))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, rec.InvoiceID); err != nil {
			return err
		}
		if err := insertLines(ctx, tx, rec.InvoiceID, rec.Lines); err != nil {
			return err
		}
		inv = updated
		return nil
	})
	return inv, err
}

// MarkSent transitions a draft invoice to sent.
func (r *Repository) MarkSent(ctx context.Context, ownerID, id int64, at time.Time) (*Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `
		UPDATE invoices SET status = 'sent', sent_at = $3, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND status = 'draft'
		RETURNING `+invoiceColumns, id, ownerID, at))
}

// VoidInvoice transitions a draft or sent invoice to void.
func (r *Repository) VoidInvoice(ctx context.Context, ownerID, id int64, at time.Time) (*Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `
		UPDATE invoices SET status = 'void', voided_at = $3, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND status IN ('draft', 'sent')
		RETURNING `+invoiceColumns, id, ownerID, at))
}

// RecordPayment persists the payment and the recomposed paid/due state
// in one transaction.
func (r *Repository) RecordPayment(ctx context.Context, rec PaymentRecord) (*Invoice, *Payment, error) {
	var inv *Invoice
	var payment *Payment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var p Payment
		if err := tx.QueryRow(ctx, `
			INSERT INTO payments (invoice_id, amount, method, note, paid_at, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING id, invoice_id, amount, method, note, paid_at, created_at`,
			rec.InvoiceID, rec.Amount, rec.Method, rec.Note, rec.PaidAt,
		).Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Note, &p.PaidAt, &p.CreatedAt); err != nil {
			return err
		}

		status := StatusSent
		var paidAt any
		if rec.MarkPaid {
			status = StatusPaid
			paidAt = rec.PaidAt
		}
		updated, err := scanInvoice(tx.QueryRow(ctx, `
			UPDATE invoices SET
				amount_paid = $3, amount_due = $4, status = $5,
				paid_at = COALESCE($6, paid_at), updated_at = NOW()
			WHERE id = $1 AND owner_id = $2
			RETURNING `+invoiceColumns,
			rec.InvoiceID, rec.OwnerID, rec.NewAmountPaid, rec.NewAmountDue, status, paidAt,
		))
		if err != nil {
			return err
		}
		inv = updated
		payment = &p
		return nil
	})
	return inv, payment, err
}

// TouchReminder stamps the last reminder time.
func (r *Repository) TouchReminder(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE invoices SET last_reminder_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	return err
}
