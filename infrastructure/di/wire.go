//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"invoiceflow-backend/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideS3Client,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideTransactionStore,
	ProvideInvoiceStore,
	ProvideEventStore,
	ProvideSessionStore,
	ProvideStagingStore,
	ProvidePushGateway,
	ProvideAuditPublisher,
	ProvideMetrics,
	ProvideTracer,
	ProvideEngine,
	ProvideProjector,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
