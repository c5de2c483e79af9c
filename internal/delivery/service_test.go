package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/facturo/facturo/internal/clients"
	"github.com/facturo/facturo/internal/invoices"
)

type memoryRepo struct {
	packets    map[int64]*Packet
	logs       []LogEntry
	candidates []ReminderCandidate
}

func (r *memoryRepo) LoadPacket(ctx context.Context, invoiceID int64) (*Packet, error) {
	p, ok := r.packets[invoiceID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) AppendLog(ctx context.Context, e LogEntry) error {
	r.logs = append(r.logs, e)
	return nil
}

func (r *memoryRepo) ListLogs(ctx context.Context, ownerID, invoiceID int64, limit int) ([]LogEntry, error) {
	var out []LogEntry
	for _, e := range r.logs {
		if e.InvoiceID == invoiceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListReminderCandidates(ctx context.Context, now time.Time, interval time.Duration) ([]ReminderCandidate, error) {
	return r.candidates, nil
}

type fakeRenderer struct {
	err error
}

func (f fakeRenderer) Render(ctx context.Context, p *Packet) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 fake"), nil
}

type fakeMailer struct {
	sent []Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeMarker struct {
	touched []int64
}

func (f *fakeMarker) TouchReminder(ctx context.Context, id int64, at time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeEnqueuer struct {
	calls []int64
	err   error
}

func (f *fakeEnqueuer) EnqueueInvoiceDelivery(ctx context.Context, invoiceID int64, kind string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, invoiceID)
	return nil
}

func sentPacket(id int64) *Packet {
	return &Packet{
		Invoice: invoices.Invoice{
			ID:        id,
			OwnerID:   1,
			Number:    "INV-2024-000042",
			Currency:  "EUR",
			Status:    invoices.StatusSent,
			DueDate:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			AmountDue: decimal.RequireFromString("1190"),
		},
		Lines: []invoices.Line{
			{Description: "Retainer", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(1000), Amount: decimal.NewFromInt(1000)},
		},
		Client: clients.Client{ID: 7, Name: "Acme GmbH", Email: "billing@acme.test"},
	}
}

func testService(repo *memoryRepo, renderer Renderer, mailer Mailer, marker ReminderMarker, enq Enqueuer) *Service {
	return NewService(repo, renderer, mailer, marker, enq, 72*time.Hour, nil)
}

func TestDeliverSendsInvoiceEmail(t *testing.T) {
	repo := &memoryRepo{packets: map[int64]*Packet{42: sentPacket(42)}}
	mailer := &fakeMailer{}
	marker := &fakeMarker{}
	svc := testService(repo, fakeRenderer{}, mailer, marker, nil)

	err := svc.Deliver(context.Background(), 42, invoices.DeliveryKindInvoice)
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	require.Equal(t, "billing@acme.test", msg.To)
	require.Contains(t, msg.Subject, "INV-2024-000042")
	require.Equal(t, "INV-2024-000042.pdf", msg.AttachmentName)
	require.NotEmpty(t, msg.Attachment)

	require.Len(t, repo.logs, 1)
	require.Equal(t, LogStatusSent, repo.logs[0].Status)
	require.Empty(t, marker.touched)
}

func TestDeliverReminderTouchesInvoice(t *testing.T) {
	repo := &memoryRepo{packets: map[int64]*Packet{42: sentPacket(42)}}
	mailer := &fakeMailer{}
	marker := &fakeMarker{}
	svc := testService(repo, fakeRenderer{}, mailer, marker, nil)

	err := svc.Deliver(context.Background(), 42, invoices.DeliveryKindReminder)
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	require.Contains(t, mailer.sent[0].Subject, "Reminder")
	require.Equal(t, []int64{42}, marker.touched)
}

func TestDeliverLogsRenderFailure(t *testing.T) {
	repo := &memoryRepo{packets: map[int64]*Packet{42: sentPacket(42)}}
	mailer := &fakeMailer{}
	marker := &fakeMarker{}
	svc := testService(repo, fakeRenderer{err: errors.New("gotenberg down")}, mailer, marker, nil)

	err := svc.Deliver(context.Background(), 42, invoices.DeliveryKindInvoice)
	require.Error(t, err)

	require.Empty(t, mailer.sent)
	require.Len(t, repo.logs, 1)
	require.Equal(t, LogStatusFailed, repo.logs[0].Status)
	require.Contains(t, *repo.logs[0].Error, "gotenberg down")
	require.Empty(t, marker.touched)
}

func TestDeliverSkipsSettledInvoice(t *testing.T) {
	packet := sentPacket(42)
	packet.Invoice.Status = invoices.StatusPaid
	repo := &memoryRepo{packets: map[int64]*Packet{42: packet}}
	mailer := &fakeMailer{}
	svc := testService(repo, fakeRenderer{}, mailer, nil, nil)

	err := svc.Deliver(context.Background(), 42, invoices.DeliveryKindInvoice)
	require.NoError(t, err)
	require.Empty(t, mailer.sent)
	require.Empty(t, repo.logs)
}

func TestDeliverRejectsUnknownKind(t *testing.T) {
	repo := &memoryRepo{packets: map[int64]*Packet{}}
	svc := testService(repo, fakeRenderer{}, &fakeMailer{}, nil, nil)

	err := svc.Deliver(context.Background(), 42, "carrier_pigeon")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestScanRemindersEnqueuesCandidates(t *testing.T) {
	repo := &memoryRepo{
		packets: map[int64]*Packet{},
		candidates: []ReminderCandidate{
			{InvoiceID: 10, OwnerID: 1},
			{InvoiceID: 11, OwnerID: 2},
		},
	}
	enq := &fakeEnqueuer{}
	svc := testService(repo, fakeRenderer{}, &fakeMailer{}, nil, enq)

	count, err := svc.ScanReminders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, []int64{10, 11}, enq.calls)
}

func TestScanRemindersToleratesEnqueueFailure(t *testing.T) {
	repo := &memoryRepo{
		packets:    map[int64]*Packet{},
		candidates: []ReminderCandidate{{InvoiceID: 10, OwnerID: 1}},
	}
	enq := &fakeEnqueuer{err: errors.New("queue unavailable")}
	svc := testService(repo, fakeRenderer{}, &fakeMailer{}, nil, enq)

	count, err := svc.ScanReminders(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}
