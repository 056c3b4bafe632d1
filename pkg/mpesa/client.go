// Package mpesa is the HTTP client for the mobile-money payment provider.
// The provider authenticates with OAuth2 client credentials and exposes a
// push-payment endpoint plus a status query; confirmations additionally
// arrive on a webhook.
package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/afyacare/clinic-api/pkg/apperror"
)

// Payment status values reported by the provider
const (
	StatusCompleted = "COMPLETED"
	StatusPending   = "PENDING"
	StatusFailed    = "FAILED"
)

// Config holds provider credentials and endpoints
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	WebhookURL     string
	Timeout        time.Duration
}

// Client calls the mobile-money provider API
type Client struct {
	baseURL    string
	shortCode  string
	webhookURL string
	httpClient *http.Client
}

// NewClient creates a provider client. The underlying http.Client injects
// and refreshes the OAuth2 bearer token on every request.
func NewClient(cfg Config) *Client {
	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.ConsumerKey,
		ClientSecret: cfg.ConsumerSecret,
		TokenURL:     cfg.BaseURL + "/oauth/token",
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := oauthCfg.Client(context.Background())
	httpClient.Timeout = timeout

	return &Client{
		baseURL:    cfg.BaseURL,
		shortCode:  cfg.ShortCode,
		webhookURL: cfg.WebhookURL,
		httpClient: httpClient,
	}
}

// InitiateRequest is the outbound push-payment request
type InitiateRequest struct {
	OrderID    string            `json:"order_id"`
	Amount     float64           `json:"amount"`
	BuyerPhone string            `json:"buyer_phone"`
	ShortCode  string            `json:"short_code"`
	WebhookURL string            `json:"webhook_url"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// InitiateResponse carries the provider-issued correlation identifiers
type InitiateResponse struct {
	TransactionID string `json:"transaction_id"`
	OrderID       string `json:"order_id"`
	Message       string `json:"message,omitempty"`
}

// StatusResponse is the provider's answer to a status query
type StatusResponse struct {
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
	Reference     string `json:"reference,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// WebhookPayload is the inbound confirmation pushed by the provider
type WebhookPayload struct {
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
	Reference     string `json:"reference,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// InitiatePayment asks the provider to push a payment prompt to the buyer
func (c *Client) InitiatePayment(ctx context.Context, req *InitiateRequest) (*InitiateResponse, error) {
	req.ShortCode = c.shortCode
	if req.WebhookURL == "" {
		req.WebhookURL = c.webhookURL
	}

	var resp InitiateResponse
	if err := c.post(ctx, "/payments/push", req, &resp); err != nil {
		return nil, err
	}
	if resp.TransactionID == "" {
		return nil, apperror.NewBadRequestError("provider returned no transaction id")
	}
	return &resp, nil
}

// QueryStatus polls the provider for the state of an initiated payment
func (c *Client) QueryStatus(ctx context.Context, orderID string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get(ctx, "/payments/"+orderID+"/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperror.ErrProviderUnavailable
	}

	if resp.StatusCode >= 500 {
		return apperror.ErrProviderUnavailable
	}
	if resp.StatusCode >= 400 {
		var provErr struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &provErr); err == nil && provErr.Message != "" {
			return apperror.NewBadRequestError("provider rejected request: " + provErr.Message)
		}
		return apperror.NewBadRequestError(fmt.Sprintf("provider rejected request (status %d)", resp.StatusCode))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}
