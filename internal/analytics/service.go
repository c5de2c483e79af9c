package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RevenueSummary aggregates one owner's invoicing over a window.
type RevenueSummary struct {
	TotalInvoiced    decimal.Decimal `json:"total_invoiced"`
	TotalCollected   decimal.Decimal `json:"total_collected"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	InvoiceCount     int             `json:"invoice_count"`
	PaidCount        int             `json:"paid_count"`
	OverdueCount     int             `json:"overdue_count"`
}

// AgingBuckets groups outstanding receivables by how far past due they
// are, as of the report time.
type AgingBuckets struct {
	Current     decimal.Decimal `json:"current"`
	Days30      decimal.Decimal `json:"days_30"`
	Days60      decimal.Decimal `json:"days_60"`
	Days90      decimal.Decimal `json:"days_90"`
	Days120Plus decimal.Decimal `json:"days_120_plus"`
}

// OutstandingInvoice is the slim projection the aging report needs.
type OutstandingInvoice struct {
	DueDate   time.Time
	AmountDue decimal.Decimal
}

// Dashboard bundles the two reports for the combined endpoint.
type Dashboard struct {
	Summary RevenueSummary `json:"summary"`
	Aging   AgingBuckets   `json:"aging"`
}

// RepositoryPort defines the read queries behind the reports.
type RepositoryPort interface {
	RevenueSummary(ctx context.Context, ownerID int64, from, to time.Time) (RevenueSummary, error)
	ListOutstanding(ctx context.Context, ownerID int64) ([]OutstandingInvoice, error)
}

// Service computes invoicing analytics with a redis cache in front.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	now   func() time.Time
}

// NewService builds a Service instance. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns the revenue summary for the window, cached per owner
// and window.
func (s *Service) Summary(ctx context.Context, ownerID int64, from, to time.Time) (RevenueSummary, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(-1, 0, 0)
	}

	key, err := s.cache.BuildKey(ctx, "analytics", "summary",
		fmt.Sprintf("%d", ownerID), from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return RevenueSummary{}, err
	}
	var out RevenueSummary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		summary, err := s.repo.RevenueSummary(ctx, ownerID, from, to)
		if err != nil {
			return nil, err
		}
		return summary, nil
	})
	return out, err
}

// Aging buckets the owner's outstanding receivables by days past due.
func (s *Service) Aging(ctx context.Context, ownerID int64) (AgingBuckets, error) {
	asOf := s.now()
	key, err := s.cache.BuildKey(ctx, "analytics", "aging",
		fmt.Sprintf("%d", ownerID), asOf.Format("2006-01-02"))
	if err != nil {
		return AgingBuckets{}, err
	}
	var out AgingBuckets
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		outstanding, err := s.repo.ListOutstanding(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		return bucketByAge(outstanding, asOf), nil
	})
	return out, err
}

// Invalidate drops cached reports after invoice state changes.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// bucketByAge groups outstanding amounts by due date distance. An
// invoice due today or in the future counts as current.
func bucketByAge(outstanding []OutstandingInvoice, asOf time.Time) AgingBuckets {
	buckets := AgingBuckets{
		Current:     decimal.Zero,
		Days30:      decimal.Zero,
		Days60:      decimal.Zero,
		Days90:      decimal.Zero,
		Days120Plus: decimal.Zero,
	}
	for _, inv := range outstanding {
		days := int(asOf.Sub(inv.DueDate).Hours() / 24)
		switch {
		case days <= 0:
			buckets.Current = buckets.Current.Add(inv.AmountDue)
		case days <= 30:
			buckets.Days30 = buckets.Days30.Add(inv.AmountDue)
		case days <= 60:
			buckets.Days60 = buckets.Days60.Add(inv.AmountDue)
		case days <= 90:
			buckets.Days90 = buckets.Days90.Add(inv.AmountDue)
		default:
			buckets.Days120Plus = buckets.Days120Plus.Add(inv.AmountDue)
		}
	}
	return buckets
}
