package sequence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "INV-2026-000001", Format(2026, 1))
	require.Equal(t, "INV-2026-001042", Format(2026, 1042))
	require.Equal(t, "INV-2026-1000000", Format(2026, 1000000))
}

func TestRetryable(t *testing.T) {
	require.True(t, Retryable(&pgconn.PgError{Code: "23505"}))
	require.True(t, Retryable(&pgconn.PgError{Code: "40001"}))
	require.False(t, Retryable(&pgconn.PgError{Code: "23503"}))
	require.False(t, Retryable(errors.New("network down")))

	wrapped := fmt.Errorf("sequence: allocate: %w", &pgconn.PgError{Code: "40001"})
	require.True(t, Retryable(wrapped))
}
