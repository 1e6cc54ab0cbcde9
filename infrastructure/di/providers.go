package di

import (
	"context"
	"fmt"

	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/application/projector"
	"invoiceflow-backend/application/workflow"
	"invoiceflow-backend/infrastructure/config"
	"invoiceflow-backend/infrastructure/messaging/eventbridge"
	"invoiceflow-backend/infrastructure/persistence/dynamodb"
	s3storage "invoiceflow-backend/infrastructure/storage/s3"
	"invoiceflow-backend/infrastructure/websocket/apigateway"
	"invoiceflow-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return logger, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideS3Client creates an S3 client
func ProvideS3Client(awsCfg aws.Config) *awss3.Client {
	return awss3.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideTransactionStore creates the transaction repository
func ProvideTransactionStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.TransactionStore {
	return dynamodb.NewTransactionRepository(client, cfg.InvoicesTable, logger)
}

// ProvideInvoiceStore creates the invoice repository
func ProvideInvoiceStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.InvoiceStore {
	return dynamodb.NewInvoiceRepository(client, cfg.InvoicesTable, logger)
}

// ProvideEventStore creates the derived-event repository
func ProvideEventStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.EventStore {
	return dynamodb.NewEventRepository(client, cfg.EventsTable, logger)
}

// ProvideSessionStore creates the channel session repository
func ProvideSessionStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.SessionStore {
	return dynamodb.NewSessionRepository(client, cfg.ConnectionsTable, logger)
}

// ProvideStagingStore creates the S3 staging store
func ProvideStagingStore(client *awss3.Client, cfg *config.Config, logger *zap.Logger) ports.StagingStore {
	return s3storage.NewStagingStore(client, cfg.BucketName, logger)
}

// ProvidePushGateway creates the push channel gateway
func ProvidePushGateway(awsCfg aws.Config, cfg *config.Config, logger *zap.Logger) ports.PushGateway {
	return apigateway.NewPushGateway(awsCfg, cfg.WebSocketEndpoint, logger)
}

// ProvideAuditPublisher creates the audit event publisher
func ProvideAuditPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.AuditPublisher {
	return eventbridge.NewAuditPublisher(client, cfg.AuditBusName, logger)
}

// ProvideMetrics creates the metrics instance. Without the feature flag the
// client is left nil and every recording call becomes a no-op.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	namespace := fmt.Sprintf("InvoiceFlow/%s", cfg.Environment)
	if !cfg.EnableMetrics {
		return observability.NewMetrics(namespace, nil, logger)
	}
	return observability.NewMetrics(namespace, client, logger)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("invoiceflow")
}

// ProvideEngine creates the transaction workflow engine
func ProvideEngine(
	transactions ports.TransactionStore,
	invoices ports.InvoiceStore,
	staging ports.StagingStore,
	gateway ports.PushGateway,
	audit ports.AuditPublisher,
	metrics *observability.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *workflow.Engine {
	return workflow.NewEngine(
		transactions,
		invoices,
		staging,
		gateway,
		audit,
		metrics,
		cfg.WebSocketEndpoint,
		logger,
	)
}

// ProvideProjector creates the stream projector
func ProvideProjector(engine *workflow.Engine, eventStore ports.EventStore, logger *zap.Logger) *projector.Projector {
	return projector.NewProjector(engine, eventStore, logger)
}
