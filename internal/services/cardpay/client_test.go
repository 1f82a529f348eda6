package cardpay

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

func TestAuthorizeChargeDoesNotCapture(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/merchants/m-1/charges" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req ChargeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Capture || req.Amount != 2500 || req.Currency != "usd" {
			t.Fatalf("unexpected request: %#v", req)
		}
		w.Write([]byte(`{"id":"ch_1","status":"authorized","amount":2500}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key", time.Second)
	charge, err := client.AuthorizeCharge(context.Background(), tenant.Account{MemberID: "1", CardMerchant: "m-1"},
		ChargeRequest{PaymentMethodID: "pm_1", Amount: 2500})
	if err != nil {
		t.Fatalf("AuthorizeCharge: %v", err)
	}
	if charge.ID != "ch_1" || charge.Status != "authorized" {
		t.Fatalf("unexpected charge: %#v", charge)
	}
}

func TestCancelAuthorizationSurfacesTooOldCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"authorization_too_old","message":"authorization expired"}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "key", time.Second)
	_, err := client.CancelAuthorization(context.Background(), tenant.Account{CardMerchant: "m-1"}, "ch_1")
	if !services.HasCode(err, CodeAuthorizationTooOld) {
		t.Fatalf("expected too-old code, got %v", err)
	}
}

func TestMerchantRequired(t *testing.T) {
	client := NewHTTPClient("http://example.invalid", "key", time.Second)
	_, err := client.CreateCharge(context.Background(), tenant.Account{MemberID: "1"}, ChargeRequest{Amount: 1})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
