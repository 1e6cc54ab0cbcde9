package di

import (
	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/application/projector"
	"invoiceflow-backend/application/workflow"
	"invoiceflow-backend/infrastructure/config"
	"invoiceflow-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies. Lambda entrypoints build one
// container during cold start and keep it for the life of the process.
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Transactions ports.TransactionStore
	Invoices     ports.InvoiceStore
	Events       ports.EventStore
	Sessions     ports.SessionStore
	Staging      ports.StagingStore
	Gateway      ports.PushGateway
	Audit        ports.AuditPublisher
	Metrics      *observability.Metrics
	Tracer       *observability.Tracer
	Engine       *workflow.Engine
	Projector    *projector.Projector
}
