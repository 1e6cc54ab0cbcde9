package dynamodb

import (
	"context"
	"fmt"
	"time"

	"invoiceflow-backend/application/ports"
	apperrors "invoiceflow-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// SessionRepository implements ports.SessionStore over the connections table.
type SessionRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.SessionStore {
	return &SessionRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

type sessionItem struct {
	PK           string `dynamodbav:"pk"`
	SK           string `dynamodbav:"sk"`
	ConnectionID string `dynamodbav:"connectionId"`
	UserID       string `dynamodbav:"userId"`
	Endpoint     string `dynamodbav:"endpoint"`
	ConnectedAt  string `dynamodbav:"connectedAt"`
	TTL          int64  `dynamodbav:"ttl"`
}

// Put stores a channel session record with its TTL.
func (r *SessionRepository) Put(ctx context.Context, session *ports.ChannelSession) error {
	item := sessionItem{
		PK:           fmt.Sprintf("CONNECTION#%s", session.ConnectionID),
		SK:           "METADATA",
		ConnectionID: session.ConnectionID,
		UserID:       session.UserID,
		Endpoint:     session.Endpoint,
		ConnectedAt:  session.ConnectedAt.Format(time.RFC3339),
		TTL:          session.ExpiresAt.Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to store session",
			zap.Error(err),
			zap.String("connectionId", session.ConnectionID),
		)
		return apperrors.NewDatabaseError("store session", err)
	}

	return nil
}

// Delete removes a session record on $disconnect or when a push finds the
// connection gone.
func (r *SessionRepository) Delete(ctx context.Context, connectionID string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("CONNECTION#%s", connectionID)},
			"sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	}

	if _, err := r.client.DeleteItem(ctx, input); err != nil {
		r.logger.Error("Failed to delete session",
			zap.Error(err),
			zap.String("connectionId", connectionID),
		)
		return apperrors.NewDatabaseError("delete session", err)
	}

	return nil
}
