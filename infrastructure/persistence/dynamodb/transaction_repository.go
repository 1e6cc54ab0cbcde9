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
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// transactionPK is the fixed partition key for transaction records. The sort
// key is the transaction id, so the stream projector can tell transaction
// items from invoice items by partition key alone.
const transactionPK = "#transaction"

// TransactionRepository implements ports.TransactionStore using DynamoDB.
// Records carry a ttl attribute; the table's TTL mechanism handles expiry
// and feeds REMOVE records to the stream.
type TransactionRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.TransactionStore {
	return &TransactionRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// transactionItem is the DynamoDB item structure for a transaction record.
type transactionItem struct {
	PK           string `dynamodbav:"pk"`
	SK           string `dynamodbav:"sk"`
	TTL          int64  `dynamodbav:"ttl"`
	Status       string `dynamodbav:"transactionStatus"`
	ConnectionID string `dynamodbav:"connectionId"`
	Endpoint     string `dynamodbav:"endpoint"`
	RequestID    string `dynamodbav:"requestId"`
	Timestamp    int64  `dynamodbav:"timestamp"`
	ExpiresIn    int64  `dynamodbav:"expiresIn"`
}

func (i *transactionItem) toDomain() *invoice.Transaction {
	return &invoice.Transaction{
		ID:           i.SK,
		Status:       invoice.TransactionStatus(i.Status),
		ConnectionID: i.ConnectionID,
		Endpoint:     i.Endpoint,
		RequestID:    i.RequestID,
		CreatedAt:    time.UnixMilli(i.Timestamp),
		ExpiresAt:    time.Unix(i.TTL, 0),
	}
}

// Create persists a new transaction record.
func (r *TransactionRepository) Create(ctx context.Context, tx *invoice.Transaction) error {
	item := transactionItem{
		PK:           transactionPK,
		SK:           tx.ID,
		TTL:          tx.ExpiresAt.Unix(),
		Status:       string(tx.Status),
		ConnectionID: tx.ConnectionID,
		Endpoint:     tx.Endpoint,
		RequestID:    tx.RequestID,
		Timestamp:    tx.CreatedAt.UnixMilli(),
		ExpiresIn:    int64(invoice.UploadURLExpiry.Seconds()),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(sk)"),
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return apperrors.NewConflictError(
				fmt.Sprintf("transaction %s already exists", tx.ID))
		}
		r.logger.Error("Failed to create transaction",
			zap.Error(err),
			zap.String("transactionId", tx.ID),
		)
		return apperrors.NewDatabaseError("create transaction", err)
	}

	return nil
}

// Get retrieves a transaction record by id.
func (r *TransactionRepository) Get(ctx context.Context, transactionID string) (*invoice.Transaction, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       transactionKey(transactionID),
	}

	result, err := r.client.GetItem(ctx, input)
	if err != nil {
		r.logger.Error("Failed to get transaction",
			zap.Error(err),
			zap.String("transactionId", transactionID),
		)
		return nil, apperrors.NewDatabaseError("get transaction", err)
	}

	if len(result.Item) == 0 {
		return nil, apperrors.NewNotFoundError(
			fmt.Sprintf("transaction %s", transactionID))
	}

	var item transactionItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}

	return item.toDomain(), nil
}

// UpdateStatus sets the transaction status unconditionally. The record must
// still exist; a vanished record means TTL expiry already removed it.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, transactionID string, status invoice.TransactionStatus) error {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(
			expression.Name("transactionStatus"),
			expression.Value(string(status)),
		)).
		WithCondition(expression.AttributeExists(expression.Name("pk"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build update expression: %w", err)
	}

	return r.update(ctx, transactionID, status, expr)
}

// UpdateStatusFrom sets the status only when the stored status still equals
// from. This is the guard against cancel/upload/expiry races: the loser of
// the race gets an invalid-state error instead of silently overwriting.
func (r *TransactionRepository) UpdateStatusFrom(ctx context.Context, transactionID string, from, to invoice.TransactionStatus) error {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(
			expression.Name("transactionStatus"),
			expression.Value(string(to)),
		)).
		WithCondition(expression.Equal(
			expression.Name("transactionStatus"),
			expression.Value(string(from)),
		)).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build update expression: %w", err)
	}

	return r.update(ctx, transactionID, to, expr)
}

func (r *TransactionRepository) update(ctx context.Context, transactionID string, status invoice.TransactionStatus, expr expression.Expression) error {
	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       transactionKey(transactionID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return r.resolveConditionFailure(ctx, transactionID, status)
		}
		r.logger.Error("Failed to update transaction status",
			zap.Error(err),
			zap.String("transactionId", transactionID),
			zap.String("status", status.String()),
		)
		return apperrors.NewDatabaseError("update transaction status", err)
	}

	r.logger.Debug("Transaction status updated",
		zap.String("transactionId", transactionID),
		zap.String("status", status.String()),
	)
	return nil
}

// resolveConditionFailure disambiguates a failed conditional update: the
// record is either gone (expired) or its status moved on.
func (r *TransactionRepository) resolveConditionFailure(ctx context.Context, transactionID string, status invoice.TransactionStatus) error {
	current, err := r.Get(ctx, transactionID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return err
		}
		return apperrors.NewDatabaseError("resolve condition failure", err)
	}
	return apperrors.NewInvalidStateError(
		fmt.Sprintf("transaction %s is %s, cannot set %s", transactionID, current.Status, status))
}

func transactionKey(transactionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: transactionPK},
		"sk": &types.AttributeValueMemberS{Value: transactionID},
	}
}
