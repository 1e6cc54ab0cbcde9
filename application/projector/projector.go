// Package projector derives secondary events and actions from table change
// notifications: invoice inserts become short-lived read-model events, and
// transaction removals trigger the expiry transition.
package projector

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/application/workflow"
	"invoiceflow-backend/domain/invoice"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// EventTypeInvoiceCreated labels the derived event written on invoice insert.
const EventTypeInvoiceCreated = "INVOICE_CREATED"

// derivedEventRetention is how long derived read-model events are kept.
const derivedEventRetention = time.Hour

const transactionPK = "#transaction"
const invoicePKPrefix = "#invoice_"

// ChangeKind tags the notification kinds the projector understands.
type ChangeKind int

const (
	// ChangeIgnored covers modifications and any record outside this
	// projector's scope.
	ChangeIgnored ChangeKind = iota

	// ChangeInvoiceInserted is a new finalized invoice record.
	ChangeInvoiceInserted

	// ChangeTransactionRemoved is a transaction record purged by TTL.
	ChangeTransactionRemoved
)

// Change is one stream record decoded at the boundary into a tagged union.
// Exactly the field matching the kind is set.
type Change struct {
	Kind        ChangeKind
	Invoice     *invoiceInsert
	Transaction *invoice.Transaction
}

// invoiceInsert carries the fields of a newly inserted invoice record.
type invoiceInsert struct {
	CustomerName  string
	InvoiceNumber string
	TransactionID string
	ProductID     string
	Quantity      int
	CreatedAt     time.Time
}

// Projector consumes ordered-per-key change notifications.
type Projector struct {
	engine *workflow.Engine
	events ports.EventStore
	logger *zap.Logger
	now    func() time.Time
}

// NewProjector creates a projector.
func NewProjector(engine *workflow.Engine, eventStore ports.EventStore, logger *zap.Logger) *Projector {
	return &Projector{
		engine: engine,
		events: eventStore,
		logger: logger,
		now:    time.Now,
	}
}

// HandleStream processes one batch of stream records. Records are handled
// independently; a failed record does not stop the rest, but its error is
// returned so the platform can retry and eventually dead-letter the batch.
func (p *Projector) HandleStream(ctx context.Context, event events.DynamoDBEvent) error {
	var errs []error
	for _, record := range event.Records {
		if err := p.handleRecord(ctx, record); err != nil {
			p.logger.Error("Failed to project stream record",
				zap.String("eventID", record.EventID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Projector) handleRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	change := decodeChange(record)

	switch change.Kind {
	case ChangeInvoiceInserted:
		return p.projectInvoiceCreated(ctx, change.Invoice)
	case ChangeTransactionRemoved:
		return p.engine.HandleExpiry(ctx, change.Transaction)
	default:
		return nil
	}
}

// projectInvoiceCreated synthesizes the derived read-model event with a
// short retention TTL.
func (p *Projector) projectInvoiceCreated(ctx context.Context, ins *invoiceInsert) error {
	now := p.now()
	ev := &ports.InvoiceEvent{
		CustomerName:  ins.CustomerName,
		InvoiceNumber: ins.InvoiceNumber,
		EventType:     EventTypeInvoiceCreated,
		TransactionID: ins.TransactionID,
		ProductID:     ins.ProductID,
		Quantity:      ins.Quantity,
		CreatedAt:     now,
		ExpiresAt:     now.Add(derivedEventRetention),
	}

	p.logger.Info("Projecting invoice created event",
		zap.String("customerName", ins.CustomerName),
		zap.String("invoiceNumber", ins.InvoiceNumber),
	)
	return p.events.Create(ctx, ev)
}

// decodeChange validates a loosely-typed stream record into the tagged
// union. Anything that doesn't match a known notification kind is ignored
// rather than guessed at.
func decodeChange(record events.DynamoDBEventRecord) Change {
	switch record.EventName {
	case string(events.DynamoDBOperationTypeInsert):
		image := record.Change.NewImage
		pk := stringAttr(image, "pk")
		if !strings.HasPrefix(pk, invoicePKPrefix) {
			// Transaction inserts carry no projection.
			return Change{Kind: ChangeIgnored}
		}
		return Change{
			Kind: ChangeInvoiceInserted,
			Invoice: &invoiceInsert{
				CustomerName:  strings.TrimPrefix(pk, invoicePKPrefix),
				InvoiceNumber: stringAttr(image, "sk"),
				TransactionID: stringAttr(image, "transactionId"),
				ProductID:     stringAttr(image, "productId"),
				Quantity:      intAttr(image, "quantity"),
				CreatedAt:     time.UnixMilli(int64Attr(image, "createdAt")),
			},
		}

	case string(events.DynamoDBOperationTypeRemove):
		image := record.Change.OldImage
		if stringAttr(image, "pk") != transactionPK {
			return Change{Kind: ChangeIgnored}
		}
		return Change{
			Kind: ChangeTransactionRemoved,
			Transaction: &invoice.Transaction{
				ID:           stringAttr(image, "sk"),
				Status:       invoice.TransactionStatus(stringAttr(image, "transactionStatus")),
				ConnectionID: stringAttr(image, "connectionId"),
				Endpoint:     stringAttr(image, "endpoint"),
				RequestID:    stringAttr(image, "requestId"),
				CreatedAt:    time.UnixMilli(int64Attr(image, "timestamp")),
				ExpiresAt:    time.Unix(int64Attr(image, "ttl"), 0),
			},
		}
	}

	return Change{Kind: ChangeIgnored}
}

func stringAttr(image map[string]events.DynamoDBAttributeValue, name string) string {
	attr, ok := image[name]
	if !ok || attr.DataType() != events.DataTypeString {
		return ""
	}
	return attr.String()
}

func int64Attr(image map[string]events.DynamoDBAttributeValue, name string) int64 {
	attr, ok := image[name]
	if !ok || attr.DataType() != events.DataTypeNumber {
		return 0
	}
	n, err := strconv.ParseInt(attr.Number(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func intAttr(image map[string]events.DynamoDBAttributeValue, name string) int {
	return int(int64Attr(image, name))
}
