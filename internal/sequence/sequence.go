// Package sequence allocates gapless-enough invoice numbers from a
// database-backed monotonic counter, scoped per owner and year.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MaxAttempts bounds allocation retries on conflicting transactions.
const MaxAttempts = 3

// Querier is satisfied by both pgxpool.Pool and pgx.Tx so allocation
// can ride an enclosing transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Next increments the counter for (ownerID, year) and returns the
// formatted invoice number.
func Next(ctx context.Context, q Querier, ownerID int64, year int) (string, error) {
	const query = `
		INSERT INTO invoice_sequences (owner_id, year, last_value, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (owner_id, year)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1, updated_at = NOW()
		RETURNING last_value`

	var value int64
	if err := q.QueryRow(ctx, query, ownerID, year).Scan(&value); err != nil {
		return "", fmt.Errorf("sequence: allocate: %w", err)
	}
	return Format(year, value), nil
}

// Format renders the canonical invoice number.
func Format(year int, value int64) string {
	return fmt.Sprintf("INV-%d-%06d", year, value)
}

// Retryable reports whether the allocation failed on a conflict worth
// retrying in a fresh transaction.
func Retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// unique_violation or serialization_failure
		return pgErr.Code == "23505" || pgErr.Code == "40001"
	}
	return false
}
