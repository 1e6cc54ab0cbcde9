// Package workflow implements the invoice-import transaction state machine.
//
// Every entrypoint is one short-lived invocation: it reads the latest
// transaction status, applies a single transition, and fans out the side
// effects. Concurrency control lives in the transaction store's conditional
// writes; racing transitions lose the write and surface the actual status
// instead of overwriting it.
package workflow

import (
	"context"
	"encoding/json"
	"time"

	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/domain/invoice"
	apperrors "invoiceflow-backend/pkg/errors"
	"invoiceflow-backend/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine coordinates the invoice-import workflow. All collaborators are
// injected; the engine holds no mutable state of its own.
type Engine struct {
	transactions ports.TransactionStore
	invoices     ports.InvoiceStore
	staging      ports.StagingStore
	gateway      ports.PushGateway
	audit        ports.AuditPublisher
	metrics      *observability.Metrics
	logger       *zap.Logger

	// endpoint is the routable address of the WebSocket API; stored on every
	// transaction so the expiry path can reach the owning session later.
	endpoint string

	now func() time.Time
}

// NewEngine creates a workflow engine.
func NewEngine(
	transactions ports.TransactionStore,
	invoices ports.InvoiceStore,
	staging ports.StagingStore,
	gateway ports.PushGateway,
	audit ports.AuditPublisher,
	metrics *observability.Metrics,
	endpoint string,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		transactions: transactions,
		invoices:     invoices,
		staging:      staging,
		gateway:      gateway,
		audit:        audit,
		metrics:      metrics,
		logger:       logger,
		endpoint:     endpoint,
		now:          time.Now,
	}
}

// IssueUploadAuthorization starts a new import transaction: a fresh
// transaction id, a presigned upload URL bounded to five minutes, a GENERATED
// record with a two-minute expiry, and a push of the upload target back to
// the requesting connection.
func (e *Engine) IssueUploadAuthorization(ctx context.Context, connectionID, requestID string) (*invoice.UploadAuthorization, error) {
	transactionID := uuid.NewString()

	url, err := e.staging.PresignPut(ctx, transactionID, invoice.UploadURLExpiry)
	if err != nil {
		return nil, err
	}

	tx := invoice.NewTransaction(transactionID, connectionID, e.endpoint, requestID, e.now())
	if err := e.transactions.Create(ctx, tx); err != nil {
		return nil, err
	}

	auth := &invoice.UploadAuthorization{
		URL:           url,
		Expires:       int64(invoice.UploadURLExpiry.Seconds()),
		TransactionID: transactionID,
	}

	payload, err := json.Marshal(auth)
	if err != nil {
		return nil, err
	}
	if err := e.gateway.Send(ctx, connectionID, payload); err != nil {
		return nil, err
	}

	e.metrics.RecordTransition(ctx, invoice.StatusGenerated)
	e.logger.Info("Upload authorization issued",
		zap.String("transactionId", transactionID),
		zap.String("connectionId", connectionID),
	)
	return auth, nil
}

// HandleUploadObserved processes a staged-upload notification. The object key
// is the transaction id.
//
// A non-GENERATED record means cancellation, expiry or a duplicate delivery
// got there first: the current status is pushed back and nothing changes,
// which also guarantees a redelivered notification can never create a second
// invoice record.
func (e *Engine) HandleUploadObserved(ctx context.Context, bucket, key string) error {
	started := e.now()

	tx, err := e.transactions.Get(ctx, key)
	if err != nil {
		if apperrors.IsNotFound(err) {
			// No record means no connection to notify; the upload URL outlived
			// the transaction record.
			e.logger.Error("Upload observed for unknown transaction",
				zap.String("transactionId", key),
			)
			return nil
		}
		return err
	}

	if !tx.Status.CanReceiveUpload() {
		e.logger.Error("Upload observed in non-valid transaction status",
			zap.String("transactionId", key),
			zap.String("status", tx.Status.String()),
		)
		return e.gateway.SendStatus(ctx, key, tx.ConnectionID, tx.Status)
	}

	if ok := e.markReceived(ctx, tx); !ok {
		return nil
	}

	doc, err := e.staging.Fetch(ctx, bucket, key)
	if err != nil {
		if apperrors.IsValidation(err) {
			// Undecodable payloads fail the same way as a bad invoice number.
			return e.rejectUpload(ctx, tx, &invoice.Document{})
		}
		return err
	}

	if err := doc.Validate(); err != nil {
		e.logger.Error("Invoice import failed - non valid invoice number",
			zap.String("transactionId", key),
			zap.String("invoiceNumber", doc.InvoiceNumber),
			zap.Error(err),
		)
		return e.rejectUpload(ctx, tx, doc)
	}

	e.finalizeUpload(ctx, tx, doc, bucket)
	e.metrics.RecordStepLatency(ctx, "upload-observed", e.now().Sub(started))
	return nil
}

// markReceived pushes RECEIVED and advances the status, both concurrently.
// Returns false when the transition lost a race and processing must stop.
func (e *Engine) markReceived(ctx context.Context, tx *invoice.Transaction) bool {
	var g errgroup.Group
	g.Go(func() error {
		return e.gateway.SendStatus(ctx, tx.ID, tx.ConnectionID, invoice.StatusReceived)
	})
	g.Go(func() error {
		return e.transactions.UpdateStatusFrom(ctx, tx.ID, invoice.StatusGenerated, invoice.StatusReceived)
	})

	if err := g.Wait(); err != nil {
		if apperrors.IsInvalidState(err) || apperrors.IsNotFound(err) {
			e.logger.Warn("Lost race while marking transaction received",
				zap.String("transactionId", tx.ID),
				zap.Error(err),
			)
			e.pushCurrentStatus(ctx, tx.ID, tx.ConnectionID)
			return false
		}
		e.logger.Error("Failed to mark transaction received",
			zap.String("transactionId", tx.ID),
			zap.Error(err),
		)
		return false
	}

	e.metrics.RecordTransition(ctx, invoice.StatusReceived)
	return true
}

// finalizeUpload runs the four success effects concurrently: invoice record
// creation, status write, status push, staged object deletion. Siblings are
// not rolled back when one fails; failures are logged and counted, and the
// status guard keeps redeliveries from duplicating the invoice.
func (e *Engine) finalizeUpload(ctx context.Context, tx *invoice.Transaction, doc *invoice.Document, bucket string) {
	rec := invoice.NewRecord(doc, tx.ID, e.now())

	var g errgroup.Group
	g.Go(e.effect(ctx, tx.ID, "create-invoice", func() error {
		return e.invoices.Create(ctx, rec)
	}))
	g.Go(e.effect(ctx, tx.ID, "update-status", func() error {
		return e.transactions.UpdateStatus(ctx, tx.ID, invoice.StatusProcessed)
	}))
	g.Go(e.effect(ctx, tx.ID, "push-status", func() error {
		return e.gateway.SendStatus(ctx, tx.ID, tx.ConnectionID, invoice.StatusProcessed)
	}))
	g.Go(e.effect(ctx, tx.ID, "delete-staged-object", func() error {
		return e.staging.Remove(ctx, bucket, tx.ID)
	}))
	g.Wait() //nolint:errcheck // partial failures are handled per effect

	e.metrics.RecordTransition(ctx, invoice.StatusProcessed)
	e.logger.Info("Invoice import processed",
		zap.String("transactionId", tx.ID),
		zap.String("invoiceNumber", doc.InvoiceNumber),
		zap.String("customerName", doc.CustomerName),
	)
}

// rejectUpload runs the failure effects concurrently and closes the session.
func (e *Engine) rejectUpload(ctx context.Context, tx *invoice.Transaction, doc *invoice.Document) error {
	var g errgroup.Group
	g.Go(e.effect(ctx, tx.ID, "update-status", func() error {
		return e.transactions.UpdateStatus(ctx, tx.ID, invoice.StatusNonValidInvoiceNumber)
	}))
	g.Go(e.effect(ctx, tx.ID, "push-status", func() error {
		return e.gateway.SendStatus(ctx, tx.ID, tx.ConnectionID, invoice.StatusNonValidInvoiceNumber)
	}))
	g.Go(e.effect(ctx, tx.ID, "audit-event", func() error {
		return e.audit.PublishFailure(ctx, invoice.AuditDetail{
			ErrorDetail: invoice.FailNoInvoiceNumber,
			Info: map[string]string{
				"invoiceKey":   tx.ID,
				"customerName": doc.CustomerName,
			},
		})
	}))
	g.Wait() //nolint:errcheck // partial failures are handled per effect

	e.metrics.RecordTransition(ctx, invoice.StatusNonValidInvoiceNumber)
	return e.gateway.Disconnect(ctx, tx.ConnectionID)
}

// CancelImport handles an explicit client cancellation. Whatever the outcome,
// the requesting session is closed afterwards.
func (e *Engine) CancelImport(ctx context.Context, transactionID, connectionID string) error {
	defer func() {
		if err := e.gateway.Disconnect(ctx, connectionID); err != nil {
			e.logger.Warn("Failed to disconnect after cancel",
				zap.String("connectionId", connectionID),
				zap.Error(err),
			)
		}
	}()

	tx, err := e.transactions.Get(ctx, transactionID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			e.logger.Error("Invoice transaction not found",
				zap.String("transactionId", transactionID),
			)
			return e.gateway.SendStatus(ctx, transactionID, connectionID, invoice.StatusNotFound)
		}
		return err
	}

	if !tx.Status.CanCancel() {
		e.logger.Error("Cannot cancel an ongoing process",
			zap.String("transactionId", transactionID),
			zap.String("status", tx.Status.String()),
		)
		return e.gateway.SendStatus(ctx, transactionID, connectionID, tx.Status)
	}

	var g errgroup.Group
	g.Go(func() error {
		return e.gateway.SendStatus(ctx, transactionID, connectionID, invoice.StatusCancelled)
	})
	g.Go(func() error {
		return e.transactions.UpdateStatusFrom(ctx, transactionID, invoice.StatusGenerated, invoice.StatusCancelled)
	})

	if err := g.Wait(); err != nil {
		if apperrors.IsInvalidState(err) || apperrors.IsNotFound(err) {
			// Upload-observed or expiry won the race; its terminal push stands.
			e.logger.Warn("Lost cancellation race",
				zap.String("transactionId", transactionID),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	e.metrics.RecordTransition(ctx, invoice.StatusCancelled)
	return nil
}

// HandleExpiry reacts to a transaction record removed by TTL. A PROCESSED
// record expiring is normal cleanup; anything else is a timed-out import and
// the owning session gets told before being closed.
func (e *Engine) HandleExpiry(ctx context.Context, tx *invoice.Transaction) error {
	if tx.Status == invoice.StatusProcessed {
		return nil
	}

	e.logger.Info("Invoice import timed out",
		zap.String("transactionId", tx.ID),
		zap.String("status", tx.Status.String()),
	)

	if err := e.gateway.SendStatus(ctx, tx.ID, tx.ConnectionID, invoice.StatusTimeout); err != nil {
		return err
	}

	e.metrics.RecordTransition(ctx, invoice.StatusTimeout)
	return e.gateway.Disconnect(ctx, tx.ConnectionID)
}

// pushCurrentStatus re-reads the record and pushes whatever status is stored
// now. Used when a transition loses a race and the client still needs an
// answer.
func (e *Engine) pushCurrentStatus(ctx context.Context, transactionID, connectionID string) {
	current, err := e.transactions.Get(ctx, transactionID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			if err := e.gateway.SendStatus(ctx, transactionID, connectionID, invoice.StatusNotFound); err != nil {
				e.logger.Warn("Failed to push NOT_FOUND status", zap.Error(err))
			}
			return
		}
		e.logger.Warn("Failed to re-read transaction status", zap.Error(err))
		return
	}
	if err := e.gateway.SendStatus(ctx, transactionID, connectionID, current.Status); err != nil {
		e.logger.Warn("Failed to push current status", zap.Error(err))
	}
}

// effect wraps one concurrently dispatched side effect with the partial
// failure policy: log, count, never compensate.
func (e *Engine) effect(ctx context.Context, transactionID, name string, fn func() error) func() error {
	return func() error {
		if err := fn(); err != nil {
			e.logger.Error("Workflow side effect failed",
				zap.String("transactionId", transactionID),
				zap.String("effect", name),
				zap.Error(err),
			)
			e.metrics.RecordPartialFailure(ctx, name)
			return err
		}
		return nil
	}
}
