// Package main implements the cancelImport WebSocket route Lambda. Clients
// send the transaction id they want to abandon; the workflow engine decides
// whether cancellation is still possible.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"invoiceflow-backend/infrastructure/config"
	"invoiceflow-backend/infrastructure/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

// Global container for Lambda lifecycle management
var container *di.Container

// cancelRequest is the body of a cancelImport route message
type cancelRequest struct {
	TransactionID string `json:"transactionId"`
}

func init() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	container.Logger.Info("cancelImport handler initialized")
}

// handler processes cancelImport route invocations
func handler(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID

	var req cancelRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil || req.TransactionID == "" {
		container.Logger.Warn("Malformed cancel request",
			zap.String("connectionId", connectionID),
			zap.String("body", request.Body),
		)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Body:       `{"error": "transactionId is required"}`,
		}, nil
	}

	if err := container.Engine.CancelImport(ctx, req.TransactionID, connectionID); err != nil {
		container.Logger.Error("Failed to cancel import",
			zap.String("transactionId", req.TransactionID),
			zap.String("connectionId", connectionID),
			zap.Error(err),
		)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"error": "internal server error"}`,
		}, nil
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: "OK"}, nil
}

func main() {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(handler)
	} else {
		log.Println("Running in local test mode")

		testRequest := events.APIGatewayWebsocketProxyRequest{
			RequestContext: events.APIGatewayWebsocketProxyRequestContext{
				ConnectionID: "test-connection-123",
			},
			Body: `{"transactionId":"test-transaction-456"}`,
		}

		response, err := handler(context.Background(), testRequest)
		if err != nil {
			log.Fatalf("Test request processing failed: %v", err)
		}

		log.Printf("Test response: %+v", response)
	}
}
