// Package main implements the getImportUrl WebSocket route Lambda. It opens
// a new import transaction and pushes a presigned upload authorization back
// over the requesting connection.
package main

import (
	"context"
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

	container.Logger.Info("getImportUrl handler initialized")
}

// handler opens an import transaction for the requesting connection. The
// authorization is delivered over the push channel, not in the route
// response, so the response body is only an acknowledgment.
func handler(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID
	requestID := request.RequestContext.RequestID

	auth, err := container.Engine.IssueUploadAuthorization(ctx, connectionID, requestID)
	if err != nil {
		container.Logger.Error("Failed to issue upload authorization",
			zap.String("connectionId", connectionID),
			zap.Error(err),
		)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"error": "internal server error"}`,
		}, nil
	}

	container.Logger.Info("Upload authorization issued",
		zap.String("transactionId", auth.TransactionID),
		zap.String("connectionId", connectionID),
	)

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
				RequestID:    "test-request-456",
			},
		}

		response, err := handler(context.Background(), testRequest)
		if err != nil {
			log.Fatalf("Test request processing failed: %v", err)
		}

		log.Printf("Test response: %+v", response)
	}
}
