// Package main implements the HTTP API Lambda serving the derived invoice
// event read model behind API Gateway.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"invoiceflow-backend/infrastructure/config"
	"invoiceflow-backend/infrastructure/di"
	"invoiceflow-backend/interfaces/http/rest"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
)

// Global variables for Lambda lifecycle management
var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container
	handler   http.Handler
)

func init() {
	start := time.Now()
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	router := rest.NewRouter(container.Events, container.Logger)
	handler = router.Setup()

	chiRouter, ok := handler.(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	log.Printf("Events API cold start completed in %v", time.Since(start))
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return chiLambda.ProxyWithContextV2(ctx, req)
}

func main() {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(Handler)
	} else {
		// Local mode serves the router directly
		addr := container.Config.ServerAddress
		log.Printf("Serving events API on %s", addr)
		if err := http.ListenAndServe(addr, handler); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}
}
