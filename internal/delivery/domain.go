package delivery

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/facturo/facturo/internal/clients"
	"github.com/facturo/facturo/internal/invoices"
)

var (
	// ErrNotFound indicates the invoice to deliver does not exist.
	ErrNotFound = errors.New("delivery: invoice not found")
	// ErrUnknownKind indicates an unsupported delivery kind.
	ErrUnknownKind = errors.New("delivery: unknown kind")
)

// LogStatus is the outcome of one delivery attempt.
type LogStatus string

const (
	LogStatusSent   LogStatus = "sent"
	LogStatusFailed LogStatus = "failed"
)

// LogEntry records one render-and-email attempt. The log is separate
// from the generation log so a delivery failure never looks like a
// failed invoice.
type LogEntry struct {
	ID        uuid.UUID `json:"id"`
	InvoiceID int64     `json:"invoice_id"`
	Kind      string    `json:"kind"`
	Recipient string    `json:"recipient"`
	Status    LogStatus `json:"status"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Packet bundles everything the renderer and mailer need for one
// invoice.
type Packet struct {
	Invoice invoices.Invoice
	Lines   []invoices.Line
	Client  clients.Client
}

// ReminderCandidate is one overdue invoice eligible for a reminder.
type ReminderCandidate struct {
	InvoiceID int64
	OwnerID   int64
}
