package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"invoiceflow-backend/application/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEventStore struct {
	events []ports.InvoiceEvent
	err    error
}

func (s *stubEventStore) Create(ctx context.Context, ev *ports.InvoiceEvent) error {
	return nil
}

func (s *stubEventStore) ListByCustomer(ctx context.Context, customerName string) ([]ports.InvoiceEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

func TestRouter(t *testing.T) {
	t.Run("health check", func(t *testing.T) {
		handler := NewRouter(&stubEventStore{}, zap.NewNop()).Setup()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	})

	t.Run("lists events for a customer", func(t *testing.T) {
		store := &stubEventStore{
			events: []ports.InvoiceEvent{
				{
					CustomerName:  "acme",
					InvoiceNumber: "INV-001",
					EventType:     "INVOICE_CREATED",
					TransactionID: "tx-1",
					ProductID:     "prod-7",
					Quantity:      3,
					CreatedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
				},
			},
		}
		handler := NewRouter(store, zap.NewNop()).Setup()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/acme/events", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Success bool `json:"success"`
			Data    []struct {
				CustomerName  string `json:"customerName"`
				InvoiceNumber string `json:"invoiceNumber"`
				EventType     string `json:"eventType"`
				CreatedAt     string `json:"createdAt"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		require.Len(t, body.Data, 1)
		assert.Equal(t, "acme", body.Data[0].CustomerName)
		assert.Equal(t, "INV-001", body.Data[0].InvoiceNumber)
		assert.Equal(t, "2025-03-01T12:00:00Z", body.Data[0].CreatedAt)
	})

	t.Run("store failure yields 500", func(t *testing.T) {
		handler := NewRouter(&stubEventStore{err: assert.AnError}, zap.NewNop()).Setup()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/acme/events", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
