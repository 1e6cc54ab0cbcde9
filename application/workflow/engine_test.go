package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/domain/invoice"
	apperrors "invoiceflow-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTransactionStore is an in-memory TransactionStore with the same
// conditional-write semantics as the DynamoDB implementation.
type fakeTransactionStore struct {
	mu      sync.Mutex
	records map[string]*invoice.Transaction
	getErr  error
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{records: make(map[string]*invoice.Transaction)}
}

func (s *fakeTransactionStore) Create(ctx context.Context, tx *invoice.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[tx.ID]; ok {
		return apperrors.NewConflictError("transaction already exists")
	}
	cp := *tx
	s.records[tx.ID] = &cp
	return nil
}

func (s *fakeTransactionStore) Get(ctx context.Context, transactionID string) (*invoice.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	tx, ok := s.records[transactionID]
	if !ok {
		return nil, apperrors.NewNotFoundError("transaction")
	}
	cp := *tx
	return &cp, nil
}

func (s *fakeTransactionStore) UpdateStatus(ctx context.Context, transactionID string, status invoice.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.records[transactionID]
	if !ok {
		return apperrors.NewNotFoundError("transaction")
	}
	tx.Status = status
	return nil
}

func (s *fakeTransactionStore) UpdateStatusFrom(ctx context.Context, transactionID string, from, to invoice.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.records[transactionID]
	if !ok {
		return apperrors.NewNotFoundError("transaction")
	}
	if tx.Status != from {
		return apperrors.NewInvalidStateError("status changed concurrently")
	}
	tx.Status = to
	return nil
}

func (s *fakeTransactionStore) status(t *testing.T, transactionID string) invoice.TransactionStatus {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.records[transactionID]
	require.True(t, ok, "transaction %s not stored", transactionID)
	return tx.Status
}

type fakeInvoiceStore struct {
	mu      sync.Mutex
	records []*invoice.Record
}

func (s *fakeInvoiceStore) Create(ctx context.Context, rec *invoice.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.CustomerName == rec.CustomerName && existing.InvoiceNumber == rec.InvoiceNumber {
			return apperrors.NewConflictError("invoice already exists")
		}
	}
	s.records = append(s.records, rec)
	return nil
}

type fakeStagingStore struct {
	mu         sync.Mutex
	doc        *invoice.Document
	fetchErr   error
	presignErr error

	presignedKeys []string
	removedKeys   []string
}

func (s *fakeStagingStore) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presignErr != nil {
		return "", s.presignErr
	}
	s.presignedKeys = append(s.presignedKeys, key)
	return "https://staging.example.com/" + key, nil
}

func (s *fakeStagingStore) Fetch(ctx context.Context, bucket, key string) (*invoice.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.doc, nil
}

func (s *fakeStagingStore) Remove(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removedKeys = append(s.removedKeys, key)
	return nil
}

type statusPush struct {
	transactionID string
	connectionID  string
	status        invoice.TransactionStatus
}

type fakePushGateway struct {
	mu           sync.Mutex
	payloads     [][]byte
	statuses     []statusPush
	disconnected []string
}

func (g *fakePushGateway) Send(ctx context.Context, connectionID string, payload []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payloads = append(g.payloads, payload)
	return nil
}

func (g *fakePushGateway) SendStatus(ctx context.Context, transactionID, connectionID string, status invoice.TransactionStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses = append(g.statuses, statusPush{transactionID, connectionID, status})
	return nil
}

func (g *fakePushGateway) Disconnect(ctx context.Context, connectionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disconnected = append(g.disconnected, connectionID)
	return nil
}

func (g *fakePushGateway) pushedStatuses(t *testing.T) []invoice.TransactionStatus {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]invoice.TransactionStatus, 0, len(g.statuses))
	for _, p := range g.statuses {
		out = append(out, p.status)
	}
	return out
}

type fakeAuditPublisher struct {
	mu      sync.Mutex
	details []invoice.AuditDetail
}

func (p *fakeAuditPublisher) PublishFailure(ctx context.Context, detail invoice.AuditDetail) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.details = append(p.details, detail)
	return nil
}

type fixture struct {
	engine       *Engine
	transactions *fakeTransactionStore
	invoices     *fakeInvoiceStore
	staging      *fakeStagingStore
	gateway      *fakePushGateway
	audit        *fakeAuditPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		transactions: newFakeTransactionStore(),
		invoices:     &fakeInvoiceStore{},
		staging:      &fakeStagingStore{},
		gateway:      &fakePushGateway{},
		audit:        &fakeAuditPublisher{},
	}
	f.engine = NewEngine(
		f.transactions,
		f.invoices,
		f.staging,
		f.gateway,
		f.audit,
		nil,
		"ws.example.com/prod",
		zap.NewNop(),
	)
	return f
}

func (f *fixture) seedTransaction(t *testing.T, status invoice.TransactionStatus) *invoice.Transaction {
	t.Helper()
	tx := invoice.NewTransaction("tx-1", "conn-1", "ws.example.com/prod", "req-1", time.Now())
	tx.Status = status
	require.NoError(t, f.transactions.Create(context.Background(), tx))
	return tx
}

func validDocument() *invoice.Document {
	return &invoice.Document{
		InvoiceNumber: "INV-001",
		CustomerName:  "acme",
		TotalValue:    99.5,
		ProductID:     "prod-7",
		Quantity:      3,
	}
}

func TestIssueUploadAuthorization(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a generated transaction and pushes the authorization", func(t *testing.T) {
		f := newFixture(t)

		auth, err := f.engine.IssueUploadAuthorization(ctx, "conn-1", "req-1")
		require.NoError(t, err)
		require.NotEmpty(t, auth.TransactionID)
		assert.Equal(t, "https://staging.example.com/"+auth.TransactionID, auth.URL)
		assert.Equal(t, int64(invoice.UploadURLExpiry.Seconds()), auth.Expires)

		// Record is stored in GENERATED with the owning session
		tx, err := f.transactions.Get(ctx, auth.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, invoice.StatusGenerated, tx.Status)
		assert.Equal(t, "conn-1", tx.ConnectionID)
		assert.Equal(t, "ws.example.com/prod", tx.Endpoint)

		// The presigned key is the transaction id
		assert.Equal(t, []string{auth.TransactionID}, f.staging.presignedKeys)

		// Exactly one push, carrying the authorization
		require.Len(t, f.gateway.payloads, 1)
		var pushed invoice.UploadAuthorization
		require.NoError(t, json.Unmarshal(f.gateway.payloads[0], &pushed))
		assert.Equal(t, *auth, pushed)
	})

	t.Run("presign failure creates nothing", func(t *testing.T) {
		f := newFixture(t)
		f.staging.presignErr = apperrors.NewExternalError("s3", assert.AnError)

		_, err := f.engine.IssueUploadAuthorization(ctx, "conn-1", "req-1")
		require.Error(t, err)
		assert.Empty(t, f.transactions.records)
		assert.Empty(t, f.gateway.payloads)
	})
}

func TestHandleUploadObserved(t *testing.T) {
	ctx := context.Background()

	t.Run("valid document reaches PROCESSED", func(t *testing.T) {
		f := newFixture(t)
		f.seedTransaction(t, invoice.StatusGenerated)
		f.staging.doc = validDocument()

		require.NoError(t, f.engine.HandleUploadObserved(ctx, "staging", "tx-1"))

		assert.Equal(t, invoice.StatusProcessed, f.transactions.status(t, "tx-1"))
		assert.ElementsMatch(t,
			[]invoice.TransactionStatus{invoice.StatusReceived, invoice.StatusProcessed},
			f.gateway.pushedStatuses(t),
		)

		// Exactly one invoice record, tied back to the transaction
		require.Len(t, f.invoices.records, 1)
		rec := f.invoices.records[0]
		assert.Equal(t, "INV-001", rec.InvoiceNumber)
		assert.Equal(t, "acme", rec.CustomerName)
		assert.Equal(t, "tx-1", rec.TransactionID)

		// Staged object is cleaned up, session stays open
		assert.Equal(t, []string{"tx-1"}, f.staging.removedKeys)
		assert.Empty(t, f.gateway.disconnected)
		assert.Empty(t, f.audit.details)
	})

	t.Run("invalid invoice number is rejected with an audit event", func(t *testing.T) {
		f := newFixture(t)
		f.seedTransaction(t, invoice.StatusGenerated)
		f.staging.doc = &invoice.Document{
			InvoiceNumber: "123", // below minimum length
			CustomerName:  "acme",
			ProductID:     "prod-7",
			Quantity:      1,
		}

		require.NoError(t, f.engine.HandleUploadObserved(ctx, "staging", "tx-1"))

		assert.Equal(t, invoice.StatusNonValidInvoiceNumber, f.transactions.status(t, "tx-1"))
		assert.Empty(t, f.invoices.records)
		assert.Empty(t, f.staging.removedKeys)

		assert.ElementsMatch(t,
			[]invoice.TransactionStatus{invoice.StatusReceived, invoice.StatusNonValidInvoiceNumber},
			f.gateway.pushedStatuses(t),
		)
		assert.Equal(t, []string{"conn-1"}, f.gateway.disconnected)

		require.Len(t, f.audit.details, 1)
		detail := f.audit.details[0]
		assert.Equal(t, invoice.FailNoInvoiceNumber, detail.ErrorDetail)
		assert.Equal(t, "tx-1", detail.Info["invoiceKey"])
		assert.Equal(t, "acme", detail.Info["customerName"])
	})

	t.Run("undecodable payload is rejected like a bad invoice number", func(t *testing.T) {
		f := newFixture(t)
		f.seedTransaction(t, invoice.StatusGenerated)
		f.staging.fetchErr = apperrors.NewValidationError("staged object is not a valid invoice document")

		require.NoError(t, f.engine.HandleUploadObserved(ctx, "staging", "tx-1"))

		assert.Equal(t, invoice.StatusNonValidInvoiceNumber, f.transactions.status(t, "tx-1"))
		require.Len(t, f.audit.details, 1)
		assert.Equal(t, invoice.FailNoInvoiceNumber, f.audit.details[0].ErrorDetail)
		assert.Empty(t, f.audit.details[0].Info["customerName"])
	})

	t.Run("unknown transaction is logged and dropped", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.engine.HandleUploadObserved(ctx, "staging", "tx-missing"))

		assert.Empty(t, f.gateway.statuses)
		assert.Empty(t, f.invoices.records)
	})

	t.Run("redelivered notification pushes the stored status and creates nothing", func(t *testing.T) {
		f := newFixture(t)
		f.seedTransaction(t, invoice.StatusProcessed)
		f.staging.doc = validDocument()

		require.NoError(t, f.engine.HandleUploadObserved(ctx, "staging", "tx-1"))

		assert.Equal(t, []invoice.TransactionStatus{invoice.StatusProcessed}, f.gateway.pushedStatuses(t))
		assert.Empty(t, f.invoices.records)
		assert.Equal(t, invoice.StatusProcessed, f.transactions.status(t, "tx-1"))
	})

	t.Run("cancelled transaction rejects the upload without processing", func(t *testing.T) {
		f := newFixture(t)
		f.seedTransaction(t, invoice.StatusCancelled)
		f.staging.doc = validDocument()

		require.NoError(t, f.engine.HandleUploadObserved(ctx, "staging", "tx-1"))

		assert.Equal(t, []invoice.TransactionStatus{invoice.StatusCancelled}, f.gateway.pushedStatuses(t))
		assert.Empty(t, f.invoices.records)
	})
}

func TestCancelImport(t *testing.T) {
	ctx := context.Background()

	t.Run("generated transaction is cancelled and the session closed", func(t *testing.T) {
		f := newFixture(t)
		f.seedTransaction(t, invoice.StatusGenerated)

		require.NoError(t, f.engine.CancelImport(ctx, "tx-1", "conn-1"))

		assert.Equal(t, invoice.StatusCancelled, f.transactions.status(t, "tx-1"))
		assert.Equal(t, []invoice.TransactionStatus{invoice.StatusCancelled}, f.gateway.pushedStatuses(t))
		assert.Equal(t, []string{"conn-1"}, f.gateway.disconnected)
	})

	t.Run("unknown transaction pushes NOT_FOUND", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.engine.CancelImport(ctx, "tx-missing", "conn-1"))

		assert.Equal(t, []invoice.TransactionStatus{invoice.StatusNotFound}, f.gateway.pushedStatuses(t))
		assert.Equal(t, []string{"conn-1"}, f.gateway.disconnected)
	})

	t.Run("in-flight transaction cannot be cancelled", func(t *testing.T) {
		f := newFixture(t)
		f.seedTransaction(t, invoice.StatusReceived)

		require.NoError(t, f.engine.CancelImport(ctx, "tx-1", "conn-1"))

		assert.Equal(t, invoice.StatusReceived, f.transactions.status(t, "tx-1"))
		assert.Equal(t, []invoice.TransactionStatus{invoice.StatusReceived}, f.gateway.pushedStatuses(t))
		assert.Equal(t, []string{"conn-1"}, f.gateway.disconnected)
	})
}

func TestHandleExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("processed transaction expiring is silent cleanup", func(t *testing.T) {
		f := newFixture(t)
		tx := invoice.NewTransaction("tx-1", "conn-1", "ws.example.com/prod", "req-1", time.Now())
		tx.Status = invoice.StatusProcessed

		require.NoError(t, f.engine.HandleExpiry(ctx, tx))

		assert.Empty(t, f.gateway.statuses)
		assert.Empty(t, f.gateway.disconnected)
	})

	t.Run("unfinished transaction expiring pushes TIMEOUT and disconnects", func(t *testing.T) {
		f := newFixture(t)
		tx := invoice.NewTransaction("tx-1", "conn-1", "ws.example.com/prod", "req-1", time.Now())

		require.NoError(t, f.engine.HandleExpiry(ctx, tx))

		assert.Equal(t, []invoice.TransactionStatus{invoice.StatusTimeout}, f.gateway.pushedStatuses(t))
		assert.Equal(t, []string{"conn-1"}, f.gateway.disconnected)
	})
}

// Statically assert the fakes satisfy the ports.
var (
	_ ports.TransactionStore = (*fakeTransactionStore)(nil)
	_ ports.InvoiceStore     = (*fakeInvoiceStore)(nil)
	_ ports.StagingStore     = (*fakeStagingStore)(nil)
	_ ports.PushGateway      = (*fakePushGateway)(nil)
	_ ports.AuditPublisher   = (*fakeAuditPublisher)(nil)
)
