package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults apply in development", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "development")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, "invoices", cfg.InvoicesTable)
		assert.True(t, cfg.IsDevelopment())
	})

	t.Run("websocket endpoint scheme is stripped", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "development")
		t.Setenv("INVOICE_WSAPI_ENDPOINT", "wss://abc123.execute-api.us-east-1.amazonaws.com/prod")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "abc123.execute-api.us-east-1.amazonaws.com/prod", cfg.WebSocketEndpoint)
	})

	t.Run("production requires the bucket", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("INVOICES_TABLE", "invoices")
		t.Setenv("INVOICE_WSAPI_ENDPOINT", "wss://abc.example.com/prod")
		t.Setenv("JWT_SECRET", "secret")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BUCKET_NAME")
	})

	t.Run("production with full configuration passes", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("INVOICES_TABLE", "invoices")
		t.Setenv("BUCKET_NAME", "staging-bucket")
		t.Setenv("INVOICE_WSAPI_ENDPOINT", "wss://abc.example.com/prod")
		t.Setenv("JWT_SECRET", "secret")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}
