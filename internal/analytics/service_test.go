package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeRepo struct {
	summary     RevenueSummary
	outstanding []OutstandingInvoice
	calls       int
}

func (r *fakeRepo) RevenueSummary(ctx context.Context, ownerID int64, from, to time.Time) (RevenueSummary, error) {
	r.calls++
	return r.summary, nil
}

func (r *fakeRepo) ListOutstanding(ctx context.Context, ownerID int64) ([]OutstandingInvoice, error) {
	r.calls++
	return r.outstanding, nil
}

func TestBucketByAgeBoundaries(t *testing.T) {
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	due := func(daysAgo int) time.Time { return asOf.AddDate(0, 0, -daysAgo) }

	buckets := bucketByAge([]OutstandingInvoice{
		{DueDate: due(-5), AmountDue: dec("100")},  // not yet due
		{DueDate: due(0), AmountDue: dec("50")},    // due today
		{DueDate: due(1), AmountDue: dec("200")},   // 1 day late
		{DueDate: due(30), AmountDue: dec("300")},  // boundary of first bucket
		{DueDate: due(31), AmountDue: dec("400")},  // second bucket
		{DueDate: due(90), AmountDue: dec("500")},  // boundary of third bucket
		{DueDate: due(121), AmountDue: dec("600")}, // oldest bucket
	}, asOf)

	require.True(t, buckets.Current.Equal(dec("150")))
	require.True(t, buckets.Days30.Equal(dec("500")))
	require.True(t, buckets.Days60.Equal(dec("400")))
	require.True(t, buckets.Days90.Equal(dec("500")))
	require.True(t, buckets.Days120Plus.Equal(dec("600")))
}

func TestAgingWithoutCache(t *testing.T) {
	repo := &fakeRepo{outstanding: []OutstandingInvoice{
		{DueDate: time.Now().AddDate(0, 0, -10), AmountDue: dec("250")},
	}}
	svc := NewService(repo, nil)

	buckets, err := svc.Aging(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, buckets.Days30.Equal(dec("250")))
}

func TestSummaryCachesPerWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &fakeRepo{summary: RevenueSummary{
		TotalInvoiced:  dec("5000"),
		TotalCollected: dec("3000"),
		InvoiceCount:   4,
	}}
	svc := NewService(repo, NewCache(client, time.Minute))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	first, err := svc.Summary(context.Background(), 1, from, to)
	require.NoError(t, err)
	require.True(t, first.TotalInvoiced.Equal(dec("5000")))
	require.Equal(t, 1, repo.calls)

	// Second read hits the cache.
	second, err := svc.Summary(context.Background(), 1, from, to)
	require.NoError(t, err)
	require.True(t, second.TotalCollected.Equal(dec("3000")))
	require.Equal(t, 1, repo.calls)

	// Bump invalidates via the version key.
	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.Summary(context.Background(), 1, from, to)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestCacheVersionInitialises(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewCache(client, time.Minute)
	ver, err := cache.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	require.NoError(t, cache.Bump(context.Background()))
	ver, err = cache.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), ver)
}
