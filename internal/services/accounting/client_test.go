package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"futures/internal/services"
	"futures/internal/services/tenant"
)

func TestUpsertInvoicePostsToRealm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/company/realm-1/invoice" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req InvoiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.CustomerID != "c-1" || len(req.Lines) != 1 {
			t.Fatalf("unexpected request: %#v", req)
		}
		w.Write([]byte(`{"id":11111,"syncToken":"0"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key", time.Second)
	rec, err := client.UpsertInvoice(context.Background(), tenant.Account{AccountingRealm: "realm-1"},
		InvoiceRequest{CustomerID: "c-1", Lines: []Line{{Description: "Photos", Amount: 25000}}})
	if err != nil {
		t.Fatalf("UpsertInvoice: %v", err)
	}
	if rec.ID.String() != "11111" {
		t.Fatalf("unexpected id %q", rec.ID)
	}
}

func TestRecordInvoicePaymentValidates(t *testing.T) {
	client := NewHTTPClient("http://example.invalid", "key", time.Second)
	account := tenant.Account{AccountingRealm: "realm-1"}
	cases := []struct {
		name string
		req  PaymentRequest
	}{
		{"missing invoice", PaymentRequest{CustomerID: "c", Amount: 1}},
		{"missing amount", PaymentRequest{CustomerID: "c", InvoiceID: "i"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := client.RecordInvoicePayment(context.Background(), account, tc.req); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
