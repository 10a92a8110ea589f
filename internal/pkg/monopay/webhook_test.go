package monopay

import (
	"testing"
)

func TestParseWebhook(t *testing.T) {
	body := []byte(`{"invoiceId":"inv_123","status":"success","amount":200,"ccy":978,"reference":"ref-1"}`)

	event, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.InvoiceID != "inv_123" || event.Status != "success" || event.Amount != 200 {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestParseWebhookRejectsIncomplete(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{{`},
		{"missing invoiceId", `{"status":"success"}`},
		{"missing status", `{"invoiceId":"inv_123"}`},
		{"blank invoiceId", `{"invoiceId":"  ","status":"success"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseWebhook([]byte(tc.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		ProviderStatusCreated:    "created",
		ProviderStatusProcessing: "pending",
		ProviderStatusSuccess:    "success",
		ProviderStatusFailure:    "failed",
		ProviderStatusExpired:    "failed",
		"reversed":               "pending",
		"":                       "pending",
	}
	for in, want := range cases {
		if got := NormalizeStatus(in); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
