package rest

import (
	"net/http"

	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/interfaces/http/rest/handlers"
	"invoiceflow-backend/interfaces/http/rest/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	events ports.EventStore
	logger *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(events ports.EventStore, logger *zap.Logger) *Router {
	return &Router{
		events: events,
		logger: logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	router.Get("/health", rt.healthCheck)

	// Derived invoice events read model
	eventsHandler := handlers.NewInvoiceEventsHandler(rt.events, rt.logger)
	router.Get("/invoices/{customerName}/events", eventsHandler.ListByCustomer)

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
