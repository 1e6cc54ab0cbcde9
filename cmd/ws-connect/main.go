// Package main implements the WebSocket $connect and $disconnect Lambda
// handler. Connections must present a valid JWT before a channel session is
// tracked; disconnects remove the session record.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/infrastructure/config"
	"invoiceflow-backend/infrastructure/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// sessionTTL bounds how long an abandoned connection record is retained when
// the $disconnect route never fires.
const sessionTTL = 24 * time.Hour

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

	container.Logger.Info("WebSocket connect handler initialized")
}

// validateToken verifies the JWT signature and issuer and extracts the
// subject claim as the user id.
func validateToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("missing authentication token")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(container.Config.JWTSecret), nil
	}, jwt.WithIssuer(container.Config.JWTIssuer))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return userID, nil
}

// handler processes $connect and $disconnect route invocations
func handler(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID
	routeKey := request.RequestContext.RouteKey

	container.Logger.Info("WebSocket lifecycle request",
		zap.String("routeKey", routeKey),
		zap.String("connectionId", connectionID),
	)

	if routeKey == "$disconnect" {
		if err := container.Sessions.Delete(ctx, connectionID); err != nil {
			container.Logger.Error("Failed to delete channel session",
				zap.String("connectionId", connectionID),
				zap.Error(err),
			)
		}
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: "Disconnected"}, nil
	}

	// $connect: authenticate before tracking the session
	token := request.QueryStringParameters["token"]
	if token == "" {
		token = request.Headers["Authorization"]
	}

	userID, err := validateToken(token)
	if err != nil {
		container.Logger.Warn("Authentication failed",
			zap.String("connectionId", connectionID),
			zap.Error(err),
		)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusUnauthorized,
			Body:       `{"error": "unauthorized"}`,
		}, nil
	}

	now := time.Now()
	session := &ports.ChannelSession{
		ConnectionID: connectionID,
		UserID:       userID,
		Endpoint:     fmt.Sprintf("%s/%s", request.RequestContext.DomainName, request.RequestContext.Stage),
		ConnectedAt:  now,
		ExpiresAt:    now.Add(sessionTTL),
	}

	if err := container.Sessions.Put(ctx, session); err != nil {
		container.Logger.Error("Failed to store channel session",
			zap.String("connectionId", connectionID),
			zap.Error(err),
		)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"error": "internal server error"}`,
		}, nil
	}

	container.Logger.Info("WebSocket connection established",
		zap.String("connectionId", connectionID),
		zap.String("userId", userID),
	)

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: "Connected"}, nil
}

func main() {
	// Check if running in Lambda environment
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(handler)
	} else {
		// Local testing mode
		log.Println("Running in local test mode")

		testRequest := events.APIGatewayWebsocketProxyRequest{
			RequestContext: events.APIGatewayWebsocketProxyRequestContext{
				ConnectionID: "test-connection-123",
				RouteKey:     "$connect",
				DomainName:   "test.execute-api.us-east-1.amazonaws.com",
				Stage:        "dev",
			},
			QueryStringParameters: map[string]string{
				"token": "test-token",
			},
		}

		response, err := handler(context.Background(), testRequest)
		if err != nil {
			log.Fatalf("Test request processing failed: %v", err)
		}

		log.Printf("Test response: %+v", response)
	}
}
