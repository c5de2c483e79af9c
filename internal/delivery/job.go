package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// DeliverPayload mirrors the queue payload for invoice delivery tasks.
type DeliverPayload struct {
	InvoiceID int64  `json:"invoice_id"`
	Kind      string `json:"kind"`
}

// DeliverJob is the asynq handler for render-and-email tasks.
type DeliverJob struct {
	Service *Service
	Logger  *slog.Logger
}

// NewDeliverJob initialises the delivery handler.
func NewDeliverJob(service *Service, logger *slog.Logger) *DeliverJob {
	return &DeliverJob{Service: service, Logger: logger}
}

// Handle processes one delivery task. A vanished invoice is dropped
// without retry; transport failures are retried by the queue.
func (j *DeliverJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("delivery: handler not configured")
	}
	var payload DeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	logger := j.logger().With(
		slog.Int64("invoice_id", payload.InvoiceID),
		slog.String("kind", payload.Kind))

	start := time.Now()
	err := j.Service.Deliver(ctx, payload.InvoiceID, payload.Kind)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownKind):
		logger.Warn("dropping undeliverable task", slog.Any("error", err))
		return asynq.SkipRetry
	case err != nil:
		logger.Error("delivery failed", slog.Any("error", err))
		return err
	}
	logger.Info("invoice delivered", slog.Duration("duration", time.Since(start)))
	return nil
}

// ReminderScanJob is the asynq handler for the scheduled reminder scan.
type ReminderScanJob struct {
	Service *Service
	Logger  *slog.Logger
}

// NewReminderScanJob initialises the reminder scan handler.
func NewReminderScanJob(service *Service, logger *slog.Logger) *ReminderScanJob {
	return &ReminderScanJob{Service: service, Logger: logger}
}

// Handle enqueues reminder deliveries for overdue invoices.
func (j *ReminderScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("delivery: scan handler not configured")
	}
	enqueued, err := j.Service.ScanReminders(ctx)
	if err != nil {
		j.logger().Error("reminder scan failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("reminder scan completed", slog.Int("enqueued", enqueued))
	return nil
}

func (j *DeliverJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", "invoice:deliver"))
	}
	return slog.Default().With(slog.String("job", "invoice:deliver"))
}

func (j *ReminderScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", "invoice:reminder_scan"))
	}
	return slog.Default().With(slog.String("job", "invoice:reminder_scan"))
}
