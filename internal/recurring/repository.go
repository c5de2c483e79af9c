package recurring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/facturo/facturo/internal/billing"
	"github.com/facturo/facturo/internal/invoices"
	"github.com/facturo/facturo/internal/platform/db"
	"github.com/facturo/facturo/internal/sequence"
)

// CreateScheduleRecord carries a validated schedule into persistence.
type CreateScheduleRecord struct {
	OwnerID       int64
	ClientID      int64
	Frequency     billing.Frequency
	NextDate      time.Time
	EndDate       *time.Time
	DiscountType  billing.DiscountType
	DiscountValue decimal.Decimal
	TaxRate       decimal.Decimal
	Notes         *string
	Lines         []TemplateLine
}

// UpdateScheduleRecord replaces the mutable schedule fields. Lines is
// nil when the template is unchanged.
type UpdateScheduleRecord struct {
	OwnerID       int64
	ScheduleID    int64
	Frequency     billing.Frequency
	NextDate      time.Time
	EndDate       *time.Time
	Active        bool
	DiscountType  billing.DiscountType
	DiscountValue decimal.Decimal
	TaxRate       decimal.Decimal
	Notes         *string
	Lines         []TemplateLine
}

// Advance describes how a schedule moves after a successful generation.
// Deactivate wins over NextDate when the computed date passes the end
// date.
type Advance struct {
	ScheduleID  int64
	Deactivate  bool
	NextDate    time.Time
	GeneratedAt time.Time
}

// Repository provides PostgreSQL backed persistence for recurring
// schedules and their generation log.
type Repository struct {
	pool     *pgxpool.Pool
	invoices *invoices.Repository
}

// NewRepository constructs a repository. The invoices repository is
// needed so generation can share a transaction with invoice creation.
func NewRepository(pool *pgxpool.Pool, invoiceRepo *invoices.Repository) *Repository {
	return &Repository{pool: pool, invoices: invoiceRepo}
}

const scheduleColumns = `
	id, owner_id, client_id, frequency, next_date, end_date, active,
	discount_type, discount_value, tax_rate, notes,
	last_generated_at, created_at, updated_at`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	var frequency, discountType string
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.ClientID, &frequency, &s.NextDate, &s.EndDate, &s.Active,
		&discountType, &s.DiscountValue, &s.TaxRate, &s.Notes,
		&s.LastGeneratedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Frequency = billing.Frequency(frequency)
	s.DiscountType = billing.DiscountType(discountType)
	return &s, nil
}

// CreateSchedule persists the schedule and its template lines in one
// transaction.
func (r *Repository) CreateSchedule(ctx context.Context, rec CreateScheduleRecord) (*Schedule, error) {
	var sched *Schedule
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		created, err := scanSchedule(tx.QueryRow(ctx, `
			INSERT INTO recurring_schedules (
				owner_id, client_id, frequency, next_date, end_date, active,
				discount_type, discount_value, tax_rate, notes, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7, $8, $9, NOW(), NOW())
			RETURNING `+scheduleColumns,
			rec.OwnerID, rec.ClientID, string(rec.Frequency), rec.NextDate, rec.EndDate,
			string(rec.DiscountType), rec.DiscountValue, rec.TaxRate, rec.Notes,
		))
		if err != nil {
			return err
		}
		if err := insertTemplateLines(ctx, tx, created.ID, rec.Lines); err != nil {
			return err
		}
		sched = created
		return nil
	})
	return sched, err
}

func insertTemplateLines(ctx context.Context, tx pgx.Tx, scheduleID int64, lines []TemplateLine) error {
	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO recurring_template_lines (schedule_id, description, quantity, rate, sort_order)
			VALUES ($1, $2, $3, $4, $5)`,
			scheduleID, l.Description, l.Quantity, l.Rate, l.SortOrder,
		); err != nil {
			return fmt.Errorf("insert template line: %w", err)
		}
	}
	return nil
}

// GetSchedule loads one schedule with its template lines.
func (r *Repository) GetSchedule(ctx context.Context, ownerID, id int64) (*ScheduleWithTemplate, error) {
	sched, err := scanSchedule(r.pool.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM recurring_schedules WHERE id = $1 AND owner_id = $2`,
		id, ownerID))
	if err != nil {
		return nil, err
	}
	lines, err := r.TemplateLines(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ScheduleWithTemplate{Schedule: *sched, Lines: lines}, nil
}

// ListSchedules returns all schedules for one owner, active first.
func (r *Repository) ListSchedules(ctx context.Context, ownerID int64) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+scheduleColumns+` FROM recurring_schedules
		WHERE owner_id = $1 ORDER BY active DESC, next_date ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// ListDue returns active schedules whose next date has arrived, across
// all owners. The generator processes them sequentially.
func (r *Repository) ListDue(ctx context.Context, now time.Time) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+scheduleColumns+` FROM recurring_schedules
		WHERE active AND next_date <= $1 ORDER BY next_date ASC, id ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func collectSchedules(rows pgx.Rows) ([]Schedule, error) {
	var out []Schedule
	for rows.Next() {
		var s Schedule
		var frequency, discountType string
		if err := rows.Scan(
			&s.ID, &s.OwnerID, &s.ClientID, &frequency, &s.NextDate, &s.EndDate, &s.Active,
			&discountType, &s.DiscountValue, &s.TaxRate, &s.Notes,
			&s.LastGeneratedAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		s.Frequency = billing.Frequency(frequency)
		s.DiscountType = billing.DiscountType(discountType)
		out = append(out, s)
	}
	return out, rows.Err()
}

// TemplateLines returns the schedule's template in display order.
func (r *Repository) TemplateLines(ctx context.Context, scheduleID int64) ([]TemplateLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, schedule_id, description, quantity, rate, sort_order
		FROM recurring_template_lines WHERE schedule_id = $1 ORDER BY sort_order ASC`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []TemplateLine
	for rows.Next() {
		var l TemplateLine
		if err := rows.Scan(&l.ID, &l.ScheduleID, &l.Description, &l.Quantity, &l.Rate, &l.SortOrder); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// UpdateSchedule replaces the schedule fields and, when Lines is
// non-nil, the template.
func (r *Repository) UpdateSchedule(ctx context.Context, rec UpdateScheduleRecord) (*Schedule, error) {
	var sched *Schedule
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		updated, err := scanSchedule(tx.QueryRow(ctx, `
			UPDATE recurring_schedules SET
				frequency = $3, next_date = $4, end_date = $5, active = $6,
				discount_type = $7, discount_value = $8, tax_rate = $9, notes = $10,
				updated_at = NOW()
			WHERE id = $1 AND owner_id = $2
			RETURNING `+scheduleColumns,
			rec.ScheduleID, rec.OwnerID, string(rec.Frequency), rec.NextDate, rec.EndDate,
			rec.Active, string(rec.DiscountType), rec.DiscountValue, rec.TaxRate, rec.Notes,
		))
		if err != nil {
			return err
		}
		if rec.Lines != nil {
			if _, err := tx.Exec(ctx,
				`DELETE FROM recurring_template_lines WHERE schedule_id = $1`, rec.ScheduleID); err != nil {
				return err
			}
			if err := insertTemplateLines(ctx, tx, rec.ScheduleID, rec.Lines); err != nil {
				return err
			}
		}
		sched = updated
		return nil
	})
	return sched, err
}

// DeactivateSchedule pauses a schedule. The template is kept so it can
// be reactivated later.
func (r *Repository) DeactivateSchedule(ctx context.Context, ownerID, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE recurring_schedules SET active = FALSE, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GenerateInvoice commits the invoice, its lines, and the schedule
// advance as one unit. A crash between invoice creation and schedule
// advancement cannot leave a half-generated state.
func (r *Repository) GenerateInvoice(ctx context.Context, rec invoices.CreateRecord, adv Advance) (*invoices.Invoice, error) {
	var inv *invoices.Invoice
	var lastErr error
	for attempt := 0; attempt < sequence.MaxAttempts; attempt++ {
		lastErr = r.generateTx(ctx, rec, adv, &inv)
		if lastErr == nil {
			return inv, nil
		}
		if !sequence.Retryable(lastErr) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("generate invoice: conflict retries exhausted: %w", lastErr)
}

func (r *Repository) generateTx(ctx context.Context, rec invoices.CreateRecord, adv Advance, inv **invoices.Invoice) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		created, err := r.invoices.CreateInvoiceTx(ctx, tx, rec)
		if err != nil {
			return err
		}

		set := []string{"last_generated_at = $2", "updated_at = NOW()"}
		args := []any{adv.ScheduleID, adv.GeneratedAt}
		if adv.Deactivate {
			set = append(set, "active = FALSE")
		} else {
			args = append(args, adv.NextDate)
			set = append(set, fmt.Sprintf("next_date = $%d", len(args)))
		}
		if _, err := tx.Exec(ctx,
			`UPDATE recurring_schedules SET `+strings.Join(set, ", ")+` WHERE id = $1`,
			args...,
		); err != nil {
			return fmt.Errorf("advance schedule: %w", err)
		}
		*inv = created
		return nil
	})
}

// AppendLog records one generation attempt. The log is written outside
// the generation transaction so failed attempts are visible too.
func (r *Repository) AppendLog(ctx context.Context, e GenerationLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO generation_log (id, schedule_id, invoice_id, status, error, run_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.ScheduleID, e.InvoiceID, string(e.Status), e.Error, e.RunAt)
	return err
}

// ListLogs returns a schedule's generation history, newest first.
func (r *Repository) ListLogs(ctx context.Context, ownerID, scheduleID int64, limit int) ([]GenerationLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.schedule_id, g.invoice_id, g.status, g.error, g.run_at
		FROM generation_log g
		JOIN recurring_schedules s ON s.id = g.schedule_id
		WHERE g.schedule_id = $1 AND s.owner_id = $2
		ORDER BY g.run_at DESC LIMIT $3`, scheduleID, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GenerationLogEntry
	for rows.Next() {
		var e GenerationLogEntry
		var status string
		if err := rows.Scan(&e.ID, &e.ScheduleID, &e.InvoiceID, &status, &e.Error, &e.RunAt); err != nil {
			return nil, err
		}
		e.Status = LogStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
