package projector

import (
	"context"
	"sync"
	"testing"
	"time"

	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/application/workflow"
	"invoiceflow-backend/domain/invoice"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingEventStore struct {
	mu     sync.Mutex
	events []*ports.InvoiceEvent
	err    error
}

func (s *capturingEventStore) Create(ctx context.Context, ev *ports.InvoiceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *capturingEventStore) ListByCustomer(ctx context.Context, customerName string) ([]ports.InvoiceEvent, error) {
	return nil, nil
}

type capturingGateway struct {
	mu           sync.Mutex
	statuses     []invoice.TransactionStatus
	disconnected []string
}

func (g *capturingGateway) Send(ctx context.Context, connectionID string, payload []byte) error {
	return nil
}

func (g *capturingGateway) SendStatus(ctx context.Context, transactionID, connectionID string, status invoice.TransactionStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses = append(g.statuses, status)
	return nil
}

func (g *capturingGateway) Disconnect(ctx context.Context, connectionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disconnected = append(g.disconnected, connectionID)
	return nil
}

func newTestProjector(store *capturingEventStore, gateway *capturingGateway) *Projector {
	engine := workflow.NewEngine(nil, nil, nil, gateway, nil, nil, "", zap.NewNop())
	return NewProjector(engine, store, zap.NewNop())
}

func invoiceInsertRecord(customer, invoiceNumber string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   "evt-1",
		EventName: string(events.DynamoDBOperationTypeInsert),
		Change: events.DynamoDBStreamRecord{
			NewImage: map[string]events.DynamoDBAttributeValue{
				"pk":            events.NewStringAttribute("#invoice_" + customer),
				"sk":            events.NewStringAttribute(invoiceNumber),
				"transactionId": events.NewStringAttribute("tx-1"),
				"productId":     events.NewStringAttribute("prod-7"),
				"quantity":      events.NewNumberAttribute("3"),
				"createdAt":     events.NewNumberAttribute("1700000000000"),
			},
		},
	}
}

func transactionRemoveRecord(status invoice.TransactionStatus) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   "evt-2",
		EventName: string(events.DynamoDBOperationTypeRemove),
		Change: events.DynamoDBStreamRecord{
			OldImage: map[string]events.DynamoDBAttributeValue{
				"pk":                events.NewStringAttribute("#transaction"),
				"sk":                events.NewStringAttribute("tx-1"),
				"transactionStatus": events.NewStringAttribute(string(status)),
				"connectionId":      events.NewStringAttribute("conn-1"),
				"endpoint":          events.NewStringAttribute("ws.example.com/prod"),
				"requestId":         events.NewStringAttribute("req-1"),
				"timestamp":         events.NewNumberAttribute("1700000000000"),
				"ttl":               events.NewNumberAttribute("1700000120"),
			},
		},
	}
}

func TestDecodeChange(t *testing.T) {
	t.Run("invoice insert", func(t *testing.T) {
		change := decodeChange(invoiceInsertRecord("acme", "INV-001"))

		require.Equal(t, ChangeInvoiceInserted, change.Kind)
		require.NotNil(t, change.Invoice)
		assert.Equal(t, "acme", change.Invoice.CustomerName)
		assert.Equal(t, "INV-001", change.Invoice.InvoiceNumber)
		assert.Equal(t, "tx-1", change.Invoice.TransactionID)
		assert.Equal(t, "prod-7", change.Invoice.ProductID)
		assert.Equal(t, 3, change.Invoice.Quantity)
		assert.Equal(t, time.UnixMilli(1700000000000), change.Invoice.CreatedAt)
	})

	t.Run("transaction removal", func(t *testing.T) {
		change := decodeChange(transactionRemoveRecord(invoice.StatusGenerated))

		require.Equal(t, ChangeTransactionRemoved, change.Kind)
		require.NotNil(t, change.Transaction)
		assert.Equal(t, "tx-1", change.Transaction.ID)
		assert.Equal(t, invoice.StatusGenerated, change.Transaction.Status)
		assert.Equal(t, "conn-1", change.Transaction.ConnectionID)
		assert.Equal(t, time.Unix(1700000120, 0), change.Transaction.ExpiresAt)
	})

	t.Run("transaction insert is ignored", func(t *testing.T) {
		record := events.DynamoDBEventRecord{
			EventName: string(events.DynamoDBOperationTypeInsert),
			Change: events.DynamoDBStreamRecord{
				NewImage: map[string]events.DynamoDBAttributeValue{
					"pk": events.NewStringAttribute("#transaction"),
					"sk": events.NewStringAttribute("tx-1"),
				},
			},
		}
		assert.Equal(t, ChangeIgnored, decodeChange(record).Kind)
	})

	t.Run("invoice removal is ignored", func(t *testing.T) {
		record := events.DynamoDBEventRecord{
			EventName: string(events.DynamoDBOperationTypeRemove),
			Change: events.DynamoDBStreamRecord{
				OldImage: map[string]events.DynamoDBAttributeValue{
					"pk": events.NewStringAttribute("#invoice_acme"),
					"sk": events.NewStringAttribute("INV-001"),
				},
			},
		}
		assert.Equal(t, ChangeIgnored, decodeChange(record).Kind)
	})

	t.Run("modify is ignored", func(t *testing.T) {
		record := events.DynamoDBEventRecord{
			EventName: string(events.DynamoDBOperationTypeModify),
		}
		assert.Equal(t, ChangeIgnored, decodeChange(record).Kind)
	})
}

func TestHandleStream(t *testing.T) {
	ctx := context.Background()

	t.Run("invoice insert becomes a derived event with retention", func(t *testing.T) {
		store := &capturingEventStore{}
		gateway := &capturingGateway{}
		p := newTestProjector(store, gateway)

		err := p.HandleStream(ctx, events.DynamoDBEvent{
			Records: []events.DynamoDBEventRecord{invoiceInsertRecord("acme", "INV-001")},
		})
		require.NoError(t, err)

		require.Len(t, store.events, 1)
		ev := store.events[0]
		assert.Equal(t, EventTypeInvoiceCreated, ev.EventType)
		assert.Equal(t, "acme", ev.CustomerName)
		assert.Equal(t, "INV-001", ev.InvoiceNumber)
		assert.Equal(t, derivedEventRetention, ev.ExpiresAt.Sub(ev.CreatedAt))
	})

	t.Run("unfinished transaction removal triggers the timeout push", func(t *testing.T) {
		store := &capturingEventStore{}
		gateway := &capturingGateway{}
		p := newTestProjector(store, gateway)

		err := p.HandleStream(ctx, events.DynamoDBEvent{
			Records: []events.DynamoDBEventRecord{transactionRemoveRecord(invoice.StatusGenerated)},
		})
		require.NoError(t, err)

		assert.Equal(t, []invoice.TransactionStatus{invoice.StatusTimeout}, gateway.statuses)
		assert.Equal(t, []string{"conn-1"}, gateway.disconnected)
	})

	t.Run("processed transaction removal is silent", func(t *testing.T) {
		store := &capturingEventStore{}
		gateway := &capturingGateway{}
		p := newTestProjector(store, gateway)

		err := p.HandleStream(ctx, events.DynamoDBEvent{
			Records: []events.DynamoDBEventRecord{transactionRemoveRecord(invoice.StatusProcessed)},
		})
		require.NoError(t, err)

		assert.Empty(t, gateway.statuses)
		assert.Empty(t, gateway.disconnected)
	})

	t.Run("a failing record does not stop the rest of the batch", func(t *testing.T) {
		store := &capturingEventStore{err: assert.AnError}
		gateway := &capturingGateway{}
		p := newTestProjector(store, gateway)

		err := p.HandleStream(ctx, events.DynamoDBEvent{
			Records: []events.DynamoDBEventRecord{
				invoiceInsertRecord("acme", "INV-001"),
				transactionRemoveRecord(invoice.StatusGenerated),
			},
		})
		require.Error(t, err)

		// The second record was still handled
		assert.Equal(t, []invoice.TransactionStatus{invoice.StatusTimeout}, gateway.statuses)
	})
}
