package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion        string
	InvoicesTable    string
	EventsTable      string
	ConnectionsTable string
	BucketName       string
	AuditBusName     string

	// WebSocket configuration. The endpoint is stored without scheme; it is
	// both the Management API target and the routing info kept on records.
	WebSocketEndpoint string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Logging and features
	LogLevel      string
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),

		InvoicesTable:    getEnv("INVOICES_TABLE", "invoices"),
		EventsTable:      getEnv("EVENTS_TABLE", "events"),
		ConnectionsTable: getEnv("CONNECTIONS_TABLE", "invoice-connections"),
		BucketName:       getEnv("BUCKET_NAME", ""),
		AuditBusName:     getEnv("AUDIT_BUS_NAME", "audit-events"),

		WebSocketEndpoint: stripScheme(getEnv("INVOICE_WSAPI_ENDPOINT", "")),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "invoiceflow-backend"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.InvoicesTable == "" {
			return fmt.Errorf("INVOICES_TABLE is required")
		}
		if c.BucketName == "" {
			return fmt.Errorf("BUCKET_NAME is required")
		}
		if c.WebSocketEndpoint == "" {
			return fmt.Errorf("INVOICE_WSAPI_ENDPOINT is required")
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// stripScheme removes the wss:// or https:// prefix the deployment passes in
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "wss://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return endpoint
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
