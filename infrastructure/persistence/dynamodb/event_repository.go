package dynamodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"invoiceflow-backend/application/ports"
	apperrors "invoiceflow-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// EventRepository implements ports.EventStore over the events table. Derived
// events are short-lived read-model rows; the table TTL purges them.
type EventRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.EventStore {
	return &EventRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// eventItem is the DynamoDB item structure for a derived invoice event.
// Sort key is EVENTTYPE#timestamp so events for one customer sort by time.
type eventItem struct {
	PK            string `dynamodbav:"pk"`
	SK            string `dynamodbav:"sk"`
	TTL           int64  `dynamodbav:"ttl"`
	EventType     string `dynamodbav:"eventType"`
	InvoiceNumber string `dynamodbav:"invoiceNumber"`
	CreatedAt     int64  `dynamodbav:"createdAt"`
	Info          struct {
		TransactionID string `dynamodbav:"transactionId"`
		ProductID     string `dynamodbav:"productId"`
		Quantity      int    `dynamodbav:"quantity"`
	} `dynamodbav:"info"`
}

// Create stores one derived event.
func (r *EventRepository) Create(ctx context.Context, ev *ports.InvoiceEvent) error {
	item := eventItem{
		PK:            invoicePKPrefix + ev.CustomerName,
		SK:            fmt.Sprintf("%s#%d", ev.EventType, ev.CreatedAt.UnixMilli()),
		TTL:           ev.ExpiresAt.Unix(),
		EventType:     ev.EventType,
		InvoiceNumber: ev.InvoiceNumber,
		CreatedAt:     ev.CreatedAt.UnixMilli(),
	}
	item.Info.TransactionID = ev.TransactionID
	item.Info.ProductID = ev.ProductID
	item.Info.Quantity = ev.Quantity

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to create invoice event",
			zap.Error(err),
			zap.String("customerName", ev.CustomerName),
			zap.String("eventType", ev.EventType),
		)
		return apperrors.NewDatabaseError("create invoice event", err)
	}

	return nil
}

// ListByCustomer returns the retained events for one customer, newest first.
func (r *EventRepository) ListByCustomer(ctx context.Context, customerName string) ([]ports.InvoiceEvent, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("pk").Equal(
			expression.Value(invoicePKPrefix + customerName),
		)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}

	events := make([]ports.InvoiceEvent, 0)
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			r.logger.Error("Failed to query invoice events",
				zap.Error(err),
				zap.String("customerName", customerName),
			)
			return nil, apperrors.NewDatabaseError("list invoice events", err)
		}

		for _, raw := range page.Items {
			var item eventItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event: %w", err)
			}
			events = append(events, ports.InvoiceEvent{
				CustomerName:  strings.TrimPrefix(item.PK, invoicePKPrefix),
				InvoiceNumber: item.InvoiceNumber,
				EventType:     item.EventType,
				TransactionID: item.Info.TransactionID,
				ProductID:     item.Info.ProductID,
				Quantity:      item.Info.Quantity,
				CreatedAt:     time.UnixMilli(item.CreatedAt),
				ExpiresAt:     time.Unix(item.TTL, 0),
			})
		}
	}

	return events, nil
}
