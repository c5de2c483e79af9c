package recurring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/facturo/facturo/internal/clients"
	"github.com/facturo/facturo/internal/invoices"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memoryRepo struct {
	schedules    map[int64]*Schedule
	templates    map[int64][]TemplateLine
	invoices     []invoices.Invoice
	logs         []GenerationLogEntry
	failGenerate map[int64]error
	nextID       int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		schedules:    make(map[int64]*Schedule),
		templates:    make(map[int64][]TemplateLine),
		failGenerate: make(map[int64]error),
	}
}

func (r *memoryRepo) addSchedule(s Schedule, lines []TemplateLine) {
	cp := s
	r.schedules[s.ID] = &cp
	r.templates[s.ID] = lines
}

func (r *memoryRepo) CreateSchedule(ctx context.Context, rec CreateScheduleRecord) (*Schedule, error) {
	r.nextID++
	s := &Schedule{
		ID:            r.nextID,
		OwnerID:       rec.OwnerID,
		ClientID:      rec.ClientID,
		Frequency:     rec.Frequency,
		NextDate:      rec.NextDate,
		EndDate:       rec.EndDate,
		Active:        true,
		DiscountType:  rec.DiscountType,
		DiscountValue: rec.DiscountValue,
		TaxRate:       rec.TaxRate,
		Notes:         rec.Notes,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	r.schedules[s.ID] = s
	r.templates[s.ID] = rec.Lines
	cp := *s
	return &cp, nil
}

func (r *memoryRepo) GetSchedule(ctx context.Context, ownerID, id int64) (*ScheduleWithTemplate, error) {
	s, ok := r.schedules[id]
	if !ok || s.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return &ScheduleWithTemplate{Schedule: *s, Lines: r.templates[id]}, nil
}

func (r *memoryRepo) ListSchedules(ctx context.Context, ownerID int64) ([]Schedule, error) {
	var out []Schedule
	for _, s := range r.schedules {
		if s.OwnerID == ownerID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListDue(ctx context.Context, now time.Time) ([]Schedule, error) {
	var out []Schedule
	for id := int64(1); id <= r.nextID+10; id++ {
		s, ok := r.schedules[id]
		if ok && s.IsDue(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memoryRepo) TemplateLines(ctx context.Context, scheduleID int64) ([]TemplateLine, error) {
	return r.templates[scheduleID], nil
}

func (r *memoryRepo) UpdateSchedule(ctx context.Context, rec UpdateScheduleRecord) (*Schedule, error) {
	s, ok := r.schedules[rec.ScheduleID]
	if !ok || s.OwnerID != rec.OwnerID {
		return nil, ErrNotFound
	}
	s.Frequency = rec.Frequency
	s.NextDate = rec.NextDate
	s.EndDate = rec.EndDate
	s.Active = rec.Active
	s.DiscountType = rec.DiscountType
	s.DiscountValue = rec.DiscountValue
	s.TaxRate = rec.TaxRate
	s.Notes = rec.Notes
	if rec.Lines != nil {
		r.templates[rec.ScheduleID] = rec.Lines
	}
	cp := *s
	return &cp, nil
}

func (r *memoryRepo) DeactivateSchedule(ctx context.Context, ownerID, id int64) error {
	s, ok := r.schedules[id]
	if !ok || s.OwnerID != ownerID {
		return ErrNotFound
	}
	s.Active = false
	return nil
}

func (r *memoryRepo) GenerateInvoice(ctx context.Context, rec invoices.CreateRecord, adv Advance) (*invoices.Invoice, error) {
	if err := r.failGenerate[adv.ScheduleID]; err != nil {
		return nil, err
	}
	inv := invoices.Invoice{
		ID:        int64(len(r.invoices) + 1),
		OwnerID:   rec.OwnerID,
		ClientID:  rec.ClientID,
		Number:    fmt.Sprintf("INV-TEST-%06d", len(r.invoices)+1),
		Currency:  rec.Currency,
		Status:    rec.Status,
		IssueDate: rec.IssueDate,
		DueDate:   rec.DueDate,
		Subtotal:  rec.Totals.Subtotal,
		TaxAmount: rec.Totals.TaxAmount,
		Total:     rec.Totals.Total,
		AmountDue: rec.Totals.AmountDue,
		SentAt:    rec.SentAt,
	}
	r.invoices = append(r.invoices, inv)

	s := r.schedules[adv.ScheduleID]
	s.LastGeneratedAt = &adv.GeneratedAt
	if adv.Deactivate {
		s.Active = false
	} else {
		s.NextDate = adv.NextDate
	}
	return &inv, nil
}

func (r *memoryRepo) AppendLog(ctx context.Context, e GenerationLogEntry) error {
	r.logs = append(r.logs, e)
	return nil
}

func (r *memoryRepo) ListLogs(ctx context.Context, ownerID, scheduleID int64, limit int) ([]GenerationLogEntry, error) {
	var out []GenerationLogEntry
	for _, e := range r.logs {
		if e.ScheduleID == scheduleID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeDirectory struct {
	client clients.Client
}

func (d fakeDirectory) Get(ctx context.Context, ownerID, id int64) (*clients.Client, error) {
	if id != d.client.ID {
		return nil, clients.ErrNotFound
	}
	cp := d.client
	return &cp, nil
}

type fakeEnqueuer struct {
	calls []int64
}

func (e *fakeEnqueuer) EnqueueInvoiceDelivery(ctx context.Context, invoiceID int64, kind string) error {
	e.calls = append(e.calls, invoiceID)
	return nil
}

func testService(t *testing.T, now time.Time) (*Service, *memoryRepo, *fakeEnqueuer) {
	t.Helper()
	repo := newMemoryRepo()
	enq := &fakeEnqueuer{}
	dir := fakeDirectory{client: clients.Client{
		ID:               7,
		OwnerID:          1,
		Name:             "Acme GmbH",
		Email:            "billing@acme.test",
		Currency:         "EUR",
		PaymentTermsDays: 14,
	}}
	svc := NewService(repo, dir, enq, nil)
	svc.now = func() time.Time { return now }
	return svc, repo, enq
}

func baseSchedule(id int64) (Schedule, []TemplateLine) {
	return Schedule{
			ID:        id,
			OwnerID:   1,
			ClientID:  7,
			Frequency: "monthly",
			NextDate:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			Active:    true,
			TaxRate:   dec("19"),
		}, []TemplateLine{
			{ScheduleID: id, Description: "Retainer", Quantity: dec("1"), Rate: dec("1000"), SortOrder: 1},
		}
}

func TestProcessDueGeneratesSentInvoice(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	svc, repo, enq := testService(t, now)
	sched, lines := baseSchedule(1)
	repo.addSchedule(sched, lines)
	repo.nextID = 1

	report, err := svc.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, RunReport{Processed: 1, Generated: 1}, report)

	require.Len(t, repo.invoices, 1)
	inv := repo.invoices[0]
	require.Equal(t, invoices.StatusSent, inv.Status)
	require.NotNil(t, inv.SentAt)
	require.Equal(t, now, inv.IssueDate)
	require.Equal(t, now.AddDate(0, 0, 14), inv.DueDate)
	require.True(t, inv.Subtotal.Equal(dec("1000")))
	require.True(t, inv.TaxAmount.Equal(dec("190")))
	require.True(t, inv.Total.Equal(dec("1190")))
	require.True(t, inv.AmountDue.Equal(dec("1190")))

	s := repo.schedules[1]
	require.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), s.NextDate)
	require.True(t, s.Active)
	require.NotNil(t, s.LastGeneratedAt)

	require.Len(t, repo.logs, 1)
	require.Equal(t, LogStatusSuccess, repo.logs[0].Status)
	require.Equal(t, inv.ID, *repo.logs[0].InvoiceID)

	require.Equal(t, []int64{inv.ID}, enq.calls)
}

func TestProcessDueDeactivatesPastEndDate(t *testing.T) {
	// Monthly from Jan 31 steps to Feb 29 in 2024, which passes the
	// Feb 15 end date. Exactly one invoice lands before deactivation.
	now := time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC)
	svc, repo, _ := testService(t, now)

	end := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	sched, lines := baseSchedule(1)
	sched.NextDate = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	sched.EndDate = &end
	repo.addSchedule(sched, lines)
	repo.nextID = 1

	report, err := svc.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, RunReport{Processed: 1, Generated: 1, Deactivated: 1}, report)

	require.Len(t, repo.invoices, 1)
	require.False(t, repo.schedules[1].Active)

	// A second run finds nothing due.
	report, err = svc.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, RunReport{}, report)
	require.Len(t, repo.invoices, 1)
}

func TestProcessDueSkipsNotYetDue(t *testing.T) {
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	svc, repo, _ := testService(t, now)
	sched, lines := baseSchedule(1)
	repo.addSchedule(sched, lines)
	repo.nextID = 1

	report, err := svc.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, RunReport{}, report)
	require.Empty(t, repo.invoices)
	require.Empty(t, repo.logs)
}

func TestProcessDueIsolatesFailures(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	svc, repo, enq := testService(t, now)

	first, firstLines := baseSchedule(1)
	second, secondLines := baseSchedule(2)
	repo.addSchedule(first, firstLines)
	repo.addSchedule(second, secondLines)
	repo.nextID = 2
	repo.failGenerate[1] = errors.New("connection reset")

	report, err := svc.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, RunReport{Processed: 2, Generated: 1, Failed: 1}, report)

	// The failed schedule did not advance and stays due.
	require.Equal(t, first.NextDate, repo.schedules[1].NextDate)
	require.True(t, repo.schedules[1].Active)

	require.Len(t, repo.logs, 2)
	require.Equal(t, LogStatusFailed, repo.logs[0].Status)
	require.Contains(t, *repo.logs[0].Error, "connection reset")
	require.Nil(t, repo.logs[0].InvoiceID)
	require.Equal(t, LogStatusSuccess, repo.logs[1].Status)

	// Only the successful invoice reaches the delivery queue.
	require.Len(t, enq.calls, 1)
}

func TestProcessDueFailsScheduleWithoutTemplate(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	svc, repo, _ := testService(t, now)
	sched, _ := baseSchedule(1)
	repo.addSchedule(sched, nil)
	repo.nextID = 1

	report, err := svc.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, RunReport{Processed: 1, Failed: 1}, report)
	require.Len(t, repo.logs, 1)
	require.Equal(t, LogStatusFailed, repo.logs[0].Status)
}

func TestCreateScheduleValidatesSpecEagerly(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	svc, _, _ := testService(t, now)

	_, err := svc.Create(context.Background(), 1, CreateScheduleRequest{
		ClientID:  7,
		Frequency: "monthly",
		NextDate:  now,
		Lines:     []TemplateLineInput{{Description: "x", Quantity: dec("1"), Rate: dec("-10")}},
	})
	require.Error(t, err)
}

func TestCreateScheduleRequiresLines(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	svc, _, _ := testService(t, now)

	_, err := svc.Create(context.Background(), 1, CreateScheduleRequest{
		ClientID:  7,
		Frequency: "monthly",
		NextDate:  now,
	})
	require.ErrorIs(t, err, ErrNoTemplateLines)
}

func TestUpdateScheduleReplacesTemplate(t *testing.T) {
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	svc, repo, _ := testService(t, now)
	sched, lines := baseSchedule(1)
	repo.addSchedule(sched, lines)
	repo.nextID = 1

	active := false
	updated, err := svc.Update(context.Background(), 1, 1, UpdateScheduleRequest{
		Active: &active,
		Lines: []TemplateLineInput{
			{Description: "Hosting", Quantity: dec("2"), Rate: dec("25")},
		},
	})
	require.NoError(t, err)
	require.False(t, updated.Active)
	require.Len(t, repo.templates[1], 1)
	require.Equal(t, "Hosting", repo.templates[1][0].Description)
}
