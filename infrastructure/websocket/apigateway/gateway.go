package apigateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/domain/invoice"
	apperrors "invoiceflow-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"
)

// PushGateway implements ports.PushGateway using the API Gateway Management
// API. A gone connection is not an error: the client already left, and every
// terminal path here ends with a disconnect anyway.
type PushGateway struct {
	client *apigatewaymanagementapi.Client
	logger *zap.Logger
}

// NewPushGateway creates a gateway bound to one WebSocket API endpoint.
func NewPushGateway(awsCfg aws.Config, endpoint string, logger *zap.Logger) ports.PushGateway {
	client := apigatewaymanagementapi.NewFromConfig(awsCfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", endpoint))
	})
	return &PushGateway{
		client: client,
		logger: logger,
	}
}

// Send pushes a raw payload to one connection.
func (g *PushGateway) Send(ctx context.Context, connectionID string, payload []byte) error {
	_, err := g.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         payload,
	})
	if err != nil {
		var goneErr *apigwTypes.GoneException
		if errors.As(err, &goneErr) {
			g.logger.Warn("Connection is gone, dropping push",
				zap.String("connectionId", connectionID),
			)
			return nil
		}
		return apperrors.NewExternalError("websocket push", err)
	}

	return nil
}

// SendStatus pushes a transaction status message to one connection.
func (g *PushGateway) SendStatus(ctx context.Context, transactionID, connectionID string, status invoice.TransactionStatus) error {
	payload, err := json.Marshal(invoice.StatusMessage{
		TransactionID: transactionID,
		Status:        status,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}

	g.logger.Debug("Pushing transaction status",
		zap.String("transactionId", transactionID),
		zap.String("connectionId", connectionID),
		zap.String("status", status.String()),
	)
	return g.Send(ctx, connectionID, payload)
}

// Disconnect force-closes a connection.
func (g *PushGateway) Disconnect(ctx context.Context, connectionID string) error {
	_, err := g.client.DeleteConnection(ctx, &apigatewaymanagementapi.DeleteConnectionInput{
		ConnectionId: aws.String(connectionID),
	})
	if err != nil {
		var goneErr *apigwTypes.GoneException
		if errors.As(err, &goneErr) {
			return nil
		}
		return apperrors.NewExternalError("websocket disconnect", err)
	}

	return nil
}
