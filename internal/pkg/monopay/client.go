package monopay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CcyEur is the ISO 4217 numeric code the provider expects for EUR invoices
const CcyEur = 978

// Config holds invoice provider configuration
type Config struct {
	BaseURL     string
	Token       string
	WebhookURL  string
	RedirectURL string
	Timeout     time.Duration
}

// Client talks to the external invoice provider
type Client struct {
	httpClient *http.Client
	config     Config
}

// CreateInvoiceRequest represents invoice creation request
type CreateInvoiceRequest struct {
	Amount      int64  // minor units
	Reference   string // internal reference attached to the invoice
	Destination string // human-readable purpose shown on the payment page
}

// CreateInvoiceResponse represents invoice creation response
type CreateInvoiceResponse struct {
	InvoiceID string `json:"invoiceId"`
	PageURL   string `json:"pageUrl"`
}

// InvoiceStatus is the provider's view of an invoice, shared by the
// status-poll endpoint and the webhook payload
type InvoiceStatus struct {
	InvoiceID string `json:"invoiceId"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Ccy       int    `json:"ccy"`
	Reference string `json:"reference,omitempty"`
}

type createInvoiceBody struct {
	Amount           int64            `json:"amount"`
	Ccy              int              `json:"ccy"`
	MerchantPaymInfo merchantPaymInfo `json:"merchantPaymInfo"`
	RedirectURL      string           `json:"redirectUrl,omitempty"`
	WebHookURL       string           `json:"webHookUrl,omitempty"`
}

type merchantPaymInfo struct {
	Reference   string `json:"reference"`
	Destination string `json:"destination"`
}

// NewClient creates a new invoice provider client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// CreateInvoice asks the provider for a new payment invoice
func (c *Client) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*CreateInvoiceResponse, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("monopay client is not initialized")
	}
	if strings.TrimSpace(c.config.Token) == "" {
		return nil, fmt.Errorf("monopay config error: token is empty")
	}

	body := createInvoiceBody{
		Amount: req.Amount,
		Ccy:    CcyEur,
		MerchantPaymInfo: merchantPaymInfo{
			Reference:   req.Reference,
			Destination: req.Destination,
		},
		RedirectURL: c.config.RedirectURL,
		WebHookURL:  c.config.WebhookURL,
	}

	var out CreateInvoiceResponse
	if err := c.call(ctx, http.MethodPost, "/api/merchant/invoice/create", body, &out); err != nil {
		return nil, err
	}
	if out.InvoiceID == "" || out.PageURL == "" {
		return nil, fmt.Errorf("monopay returned incomplete invoice response")
	}
	return &out, nil
}

// GetInvoiceStatus polls the provider for the current invoice status
func (c *Client) GetInvoiceStatus(ctx context.Context, invoiceID string) (*InvoiceStatus, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return nil, fmt.Errorf("validation error: invoice_id must be non-empty")
	}

	var out InvoiceStatus
	path := "/api/merchant/invoice/status?invoiceId=" + invoiceID
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	base := strings.TrimRight(c.config.BaseURL, "/")
	url := base + path

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode monopay request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	timeout := c.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("monopay api call failed: %w", err)
	}
	req.Header.Set("X-Token", c.config.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("monopay api call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("monopay api call failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("monopay api returned non-2xx status: %d, body: %s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse monopay response: %w", err)
	}
	return nil
}
