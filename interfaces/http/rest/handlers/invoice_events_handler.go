package handlers

import (
	"net/http"
	"time"

	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/pkg/common"
	appErrors "invoiceflow-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// InvoiceEventsHandler serves the derived invoice event read model.
type InvoiceEventsHandler struct {
	events ports.EventStore
	logger *zap.Logger
}

// NewInvoiceEventsHandler creates a new invoice events handler
func NewInvoiceEventsHandler(events ports.EventStore, logger *zap.Logger) *InvoiceEventsHandler {
	return &InvoiceEventsHandler{
		events: events,
		logger: logger,
	}
}

// invoiceEventResponse is the wire shape of one derived event
type invoiceEventResponse struct {
	CustomerName  string `json:"customerName"`
	InvoiceNumber string `json:"invoiceNumber"`
	EventType     string `json:"eventType"`
	TransactionID string `json:"transactionId"`
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	CreatedAt     string `json:"createdAt"`
}

// ListByCustomer handles GET /invoices/{customerName}/events
func (h *InvoiceEventsHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerName := chi.URLParam(r, "customerName")
	if customerName == "" {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "customerName is required")
		return
	}

	events, err := h.events.ListByCustomer(r.Context(), customerName)
	if err != nil {
		h.logger.Error("Failed to list invoice events",
			zap.String("customerName", customerName),
			zap.Error(err),
		)
		if appErrors.IsNotFound(err) {
			common.RespondError(w, http.StatusNotFound, common.StandardErrorCodes.NotFound, "no events for customer")
			return
		}
		common.RespondError(w, http.StatusInternalServerError, common.StandardErrorCodes.InternalError, "failed to list events")
		return
	}

	response := make([]invoiceEventResponse, 0, len(events))
	for _, ev := range events {
		response = append(response, invoiceEventResponse{
			CustomerName:  ev.CustomerName,
			InvoiceNumber: ev.InvoiceNumber,
			EventType:     ev.EventType,
			TransactionID: ev.TransactionID,
			ProductID:     ev.ProductID,
			Quantity:      ev.Quantity,
			CreatedAt:     ev.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	common.RespondJSON(w, http.StatusOK, response)
}
