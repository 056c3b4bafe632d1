package mpesa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afyacare/clinic-api/pkg/apperror"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/", handler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		BaseURL:        server.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "600123",
		WebhookURL:     "https://clinic.example.com/api/v1/payments/webhook",
	})
	return client, server
}

func TestInitiatePayment(t *testing.T) {
	var received InitiateRequest

	client, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments/push", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(InitiateResponse{
			TransactionID: "TXN-001",
			OrderID:       received.OrderID,
		})
	})

	resp, err := client.InitiatePayment(context.Background(), &InitiateRequest{
		OrderID:    "MPX-TEST-1",
		Amount:     1250.00,
		BuyerPhone: "+254711000111",
		Metadata:   map[string]string{"invoice_no": "INV-0001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "TXN-001", resp.TransactionID)
	assert.Equal(t, "MPX-TEST-1", resp.OrderID)

	// Short code and webhook URL are injected from the client config
	assert.Equal(t, "600123", received.ShortCode)
	assert.Equal(t, "https://clinic.example.com/api/v1/payments/webhook", received.WebhookURL)

	t.Run("missing transaction id is an error", func(t *testing.T) {
		client, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(InitiateResponse{})
		})

		_, err := client.InitiatePayment(context.Background(), &InitiateRequest{OrderID: "MPX-TEST-2"})
		require.Error(t, err)
	})
}

func TestQueryStatus(t *testing.T) {
	client, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/payments/MPX-TEST-3/status", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(StatusResponse{
			OrderID:       "MPX-TEST-3",
			PaymentStatus: StatusCompleted,
			Reference:     "QGH7SK61P",
		})
	})

	status, err := client.QueryStatus(context.Background(), "MPX-TEST-3")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.PaymentStatus)
	assert.Equal(t, "QGH7SK61P", status.Reference)
}

func TestProviderErrors(t *testing.T) {
	t.Run("server errors surface as provider unavailable", func(t *testing.T) {
		client, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.QueryStatus(context.Background(), "MPX-TEST-4")
		assert.ErrorIs(t, err, apperror.ErrProviderUnavailable)
	})

	t.Run("client errors carry the provider message", func(t *testing.T) {
		client, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "unknown short code"})
		})

		_, err := client.InitiatePayment(context.Background(), &InitiateRequest{OrderID: "MPX-TEST-5"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown short code")
	})

	t.Run("unreachable provider", func(t *testing.T) {
		client, server := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {})
		server.Close()

		_, err := client.QueryStatus(context.Background(), "MPX-TEST-6")
		assert.ErrorIs(t, err, apperror.ErrProviderUnavailable)
	})
}
