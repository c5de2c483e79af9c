package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the report queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RevenueSummary aggregates issued invoices in the window. Void and
// draft invoices never count.
func (r *Repository) RevenueSummary(ctx context.Context, ownerID int64, from, to time.Time) (RevenueSummary, error) {
	var s RevenueSummary
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(total), 0),
			COALESCE(SUM(amount_paid), 0),
			COALESCE(SUM(amount_due) FILTER (WHERE status = 'sent'), 0),
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'paid'),
			COUNT(*) FILTER (WHERE status = 'sent' AND due_date < NOW())
		FROM invoices
		WHERE owner_id = $1
		AND status IN ('sent', 'paid')
		AND issue_date >= $2 AND issue_date <= $3`,
		ownerID, from, to,
	).Scan(&s.TotalInvoiced, &s.TotalCollected, &s.TotalOutstanding,
		&s.InvoiceCount, &s.PaidCount, &s.OverdueCount)
	return s, err
}

// ListOutstanding returns every sent invoice with money still owed.
func (r *Repository) ListOutstanding(ctx context.Context, ownerID int64) ([]OutstandingInvoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT due_date, amount_due FROM invoices
		WHERE owner_id = $1 AND status = 'sent' AND amount_due > 0
		ORDER BY due_date ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutstandingInvoice
	for rows.Next() {
		var inv OutstandingInvoice
		if err := rows.Scan(&inv.DueDate, &inv.AmountDue); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
