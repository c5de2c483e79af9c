package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeInvoiceDeliver renders and emails one invoice.
	TaskTypeInvoiceDeliver = "invoice:deliver"
	// TaskTypeRecurringGenerate runs the recurring generation batch.
	TaskTypeRecurringGenerate = "recurring:generate"
	// TaskTypeReminderScan finds overdue invoices needing a reminder.
	TaskTypeReminderScan = "invoice:reminder_scan"
)

// InvoiceDeliveryPayload identifies the invoice to deliver and which
// email template to use.
type InvoiceDeliveryPayload struct {
	InvoiceID int64  `json:"invoice_id"`
	Kind      string `json:"kind"`
}

// NewInvoiceDeliveryTask constructs an invoice delivery task.
func NewInvoiceDeliveryTask(payload InvoiceDeliveryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeInvoiceDeliver, data), nil
}

// NewRecurringGenerateTask constructs the generation batch task. The
// batch takes no parameters beyond "now".
func NewRecurringGenerateTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRecurringGenerate, nil)
}

// NewReminderScanTask constructs the reminder scan task.
func NewReminderScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeReminderScan, nil)
}
