package monopay

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Provider status vocabulary
const (
	ProviderStatusCreated    = "created"
	ProviderStatusProcessing = "processing"
	ProviderStatusSuccess    = "success"
	ProviderStatusFailure    = "failure"
	ProviderStatusExpired    = "expired"
)

// ParseWebhook decodes a webhook push body into an InvoiceStatus
func ParseWebhook(body []byte) (*InvoiceStatus, error) {
	var event InvoiceStatus
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}
	if strings.TrimSpace(event.InvoiceID) == "" {
		return nil, fmt.Errorf("webhook body missing invoiceId")
	}
	if strings.TrimSpace(event.Status) == "" {
		return nil, fmt.Errorf("webhook body missing status")
	}
	return &event, nil
}

// NormalizeStatus maps the provider status vocabulary onto the internal
// payment statuses (created, pending, success, failed). Unknown statuses
// map to pending so a later event can still settle the invoice.
func NormalizeStatus(providerStatus string) string {
	switch providerStatus {
	case ProviderStatusCreated:
		return "created"
	case ProviderStatusProcessing:
		return "pending"
	case ProviderStatusSuccess:
		return "success"
	case ProviderStatusFailure, ProviderStatusExpired:
		return "failed"
	default:
		return "pending"
	}
}
