// Package main implements the table stream Lambda. It feeds DynamoDB stream
// records to the projector, which derives read-model events from invoice
// inserts and drives expiry handling for removed transaction records.
package main

import (
	"context"
	"log"
	"os"

	"invoiceflow-backend/infrastructure/config"
	"invoiceflow-backend/infrastructure/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
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

	container.Logger.Info("Invoice events handler initialized")
}

// handler delegates the batch to the projector. Errors propagate so the
// stream retries the batch and eventually dead-letters it.
func handler(ctx context.Context, event events.DynamoDBEvent) error {
	return container.Projector.HandleStream(ctx, event)
}

func main() {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(handler)
	} else {
		log.Println("Running in local test mode")

		if err := handler(context.Background(), events.DynamoDBEvent{}); err != nil {
			log.Fatalf("Test event processing failed: %v", err)
		}

		log.Println("Test event processed")
	}
}
