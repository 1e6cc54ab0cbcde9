package ports

import (
	"context"
	"time"

	"invoiceflow-backend/domain/invoice"
)

// TransactionStore defines the interface for transaction record persistence.
// This is a port in hexagonal architecture - the workflow engine doesn't know
// about the implementation.
type TransactionStore interface {
	// Create persists a new transaction record. Fails with a conflict error
	// if the transaction id already exists.
	Create(ctx context.Context, tx *invoice.Transaction) error

	// Get retrieves a transaction by id. Fails with a not-found error if absent.
	Get(ctx context.Context, transactionID string) (*invoice.Transaction, error)

	// UpdateStatus sets the status unconditionally (last-writer-wins).
	UpdateStatus(ctx context.Context, transactionID string, status invoice.TransactionStatus) error

	// UpdateStatusFrom sets the status only if the stored status still equals
	// from. Fails with an invalid-state error when another transition won the
	// race, and a not-found error when the record expired underneath.
	UpdateStatusFrom(ctx context.Context, transactionID string, from, to invoice.TransactionStatus) error
}

// InvoiceStore persists finalized invoice records.
type InvoiceStore interface {
	// Create writes the invoice record. Records are created once and never
	// mutated, so a key collision is a conflict error.
	Create(ctx context.Context, rec *invoice.Record) error
}

// StagingStore is the blob drop point for uploaded invoice documents.
type StagingStore interface {
	// PresignPut returns a time-bounded URL authorizing a single PUT of one
	// object under the given key.
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)

	// Fetch reads and decodes a staged invoice document.
	Fetch(ctx context.Context, bucket, key string) (*invoice.Document, error)

	// Remove deletes the staged object after processing.
	Remove(ctx context.Context, bucket, key string) error
}

// PushGateway sends messages to, and forcibly closes, live channel sessions.
type PushGateway interface {
	// Send pushes a raw payload to one connection.
	Send(ctx context.Context, connectionID string, payload []byte) error

	// SendStatus pushes a transaction status message to one connection.
	SendStatus(ctx context.Context, transactionID, connectionID string, status invoice.TransactionStatus) error

	// Disconnect force-closes a connection. Used after every terminal push.
	Disconnect(ctx context.Context, connectionID string) error
}

// AuditPublisher emits failure events for the external audit subsystem.
type AuditPublisher interface {
	PublishFailure(ctx context.Context, detail invoice.AuditDetail) error
}

// InvoiceEvent is a derived read-model event synthesized by the projector.
type InvoiceEvent struct {
	CustomerName  string
	InvoiceNumber string
	EventType     string
	TransactionID string
	ProductID     string
	Quantity      int
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// EventStore persists derived invoice events for downstream read models.
type EventStore interface {
	Create(ctx context.Context, ev *InvoiceEvent) error

	// ListByCustomer returns the retained events for one customer, newest first.
	ListByCustomer(ctx context.Context, customerName string) ([]InvoiceEvent, error)
}

// ChannelSession is a live WebSocket connection tracked at $connect time.
type ChannelSession struct {
	ConnectionID string
	UserID       string
	Endpoint     string
	ConnectedAt  time.Time
	ExpiresAt    time.Time
}

// SessionStore tracks channel sessions between $connect and $disconnect.
type SessionStore interface {
	Put(ctx context.Context, session *ChannelSession) error
	Delete(ctx context.Context, connectionID string) error
}
