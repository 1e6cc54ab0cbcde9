// Package main implements the staging-bucket notification Lambda. Each
// object created in the staging bucket is an invoice upload; the workflow
// engine validates it and drives the owning transaction to a terminal state.
package main

import (
	"context"
	"log"
	"os"

	"invoiceflow-backend/infrastructure/config"
	"invoiceflow-backend/infrastructure/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
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

	container.Logger.Info("Invoice import handler initialized")
}

// handler processes all records of one notification batch concurrently.
// Failures are logged but never returned: the notification cannot be
// meaningfully retried once the client has been told the outcome, and the
// engine already reports per-transaction failures over the push channel.
func handler(ctx context.Context, event events.S3Event) error {
	var g errgroup.Group

	for _, record := range event.Records {
		bucket := record.S3.Bucket.Name
		key := record.S3.Object.Key

		g.Go(func() error {
			err := processUpload(ctx, bucket, key)
			if err != nil {
				container.Logger.Error("Failed to process upload",
					zap.String("bucket", bucket),
					zap.String("key", key),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	return g.Wait()
}

// processUpload handles one staged object. The object key is the
// transaction id, so it doubles as the trace annotation.
func processUpload(ctx context.Context, bucket, key string) error {
	if container.Config.EnableTracing {
		return container.Tracer.CaptureStep(ctx, "handle-upload", key, func(ctx context.Context) error {
			return container.Engine.HandleUploadObserved(ctx, bucket, key)
		})
	}
	return container.Engine.HandleUploadObserved(ctx, bucket, key)
}

func main() {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(handler)
	} else {
		log.Println("Running in local test mode")

		testEvent := events.S3Event{
			Records: []events.S3EventRecord{
				{
					S3: events.S3Entity{
						Bucket: events.S3Bucket{Name: "test-staging-bucket"},
						Object: events.S3Object{Key: "test-transaction-123"},
					},
				},
			},
		}

		if err := handler(context.Background(), testEvent); err != nil {
			log.Fatalf("Test event processing failed: %v", err)
		}

		log.Println("Test event processed")
	}
}
