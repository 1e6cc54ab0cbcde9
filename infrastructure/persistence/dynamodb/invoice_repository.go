package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/domain/invoice"
	apperrors "invoiceflow-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// invoicePKPrefix keys invoice records by customer. Sort key is the invoice
// number, so (customer, invoiceNumber) is the natural unique key.
const invoicePKPrefix = "#invoice_"

// InvoiceRepository implements ports.InvoiceStore using DynamoDB, sharing the
// invoices table with transaction records.
type InvoiceRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewInvoiceRepository creates a new InvoiceRepository.
func NewInvoiceRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.InvoiceStore {
	return &InvoiceRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// invoiceItem is the DynamoDB item structure for a finalized invoice.
type invoiceItem struct {
	PK            string  `dynamodbav:"pk"`
	SK            string  `dynamodbav:"sk"`
	TTL           int64   `dynamodbav:"ttl"`
	TotalValue    float64 `dynamodbav:"totalValue"`
	ProductID     string  `dynamodbav:"productId"`
	Quantity      int     `dynamodbav:"quantity"`
	TransactionID string  `dynamodbav:"transactionId"`
	CreatedAt     int64   `dynamodbav:"createdAt"`
}

// Create writes a finalized invoice record. Invoices never expire; the ttl
// attribute is kept at zero so the table TTL mechanism skips them.
func (r *InvoiceRepository) Create(ctx context.Context, rec *invoice.Record) error {
	item := invoiceItem{
		PK:            invoicePKPrefix + rec.CustomerName,
		SK:            rec.InvoiceNumber,
		TTL:           0,
		TotalValue:    rec.TotalValue,
		ProductID:     rec.ProductID,
		Quantity:      rec.Quantity,
		TransactionID: rec.TransactionID,
		CreatedAt:     rec.CreatedAt.UnixMilli(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(sk)"),
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return apperrors.NewConflictError(fmt.Sprintf(
				"invoice %s already exists for customer %s", rec.InvoiceNumber, rec.CustomerName))
		}
		r.logger.Error("Failed to create invoice",
			zap.Error(err),
			zap.String("invoiceNumber", rec.InvoiceNumber),
			zap.String("customerName", rec.CustomerName),
		)
		return apperrors.NewDatabaseError("create invoice", err)
	}

	r.logger.Info("Invoice created",
		zap.String("invoiceNumber", rec.InvoiceNumber),
		zap.String("customerName", rec.CustomerName),
		zap.String("transactionId", rec.TransactionID),
		zap.Time("createdAt", time.UnixMilli(item.CreatedAt)),
	)
	return nil
}
