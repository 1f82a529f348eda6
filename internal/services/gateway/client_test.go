package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"futures/internal/services"
	"futures/internal/services/tenant"
)

var account = tenant.Account{MemberID: "1", GatewayMerchantID: "gm-1"}

func TestAddCardReturnsCompositeID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/merchants/gm-1/payment_profiles/card" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"profileId":900,"paymentProfileId":12345,"cardType":"Visa","last4":"1111","expMonth":12,"expYear":2030}`))
	}))
	defer server.Close()

	profile, err := NewHTTPClient(server.URL, "key", time.Second).AddCard(context.Background(), account, CardRequest{ProfileID: "900", CardNonce: "nonce"})
	if err != nil {
		t.Fatalf("AddCard: %v", err)
	}
	if profile.ExternalID() != "900/12345" || profile.Brand != "Visa" {
		t.Fatalf("unexpected profile: %#v", profile)
	}
}

func TestAddCardDuplicateCarriesExistingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"E00039","message":"A duplicate customer payment profile already exists.","existingId":"12345"}}`))
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, "key", time.Second).AddCard(context.Background(), account, CardRequest{CardNonce: "nonce"})
	pe, ok := services.AsProviderError(err)
	if !ok || pe.Code != CodeDuplicatePaymentProfile || pe.ExistingID != "12345" {
		t.Fatalf("expected duplicate error with existing id, got %v", err)
	}
}

func TestChargeValidation(t *testing.T) {
	client := NewHTTPClient("http://example.invalid", "key", time.Second)
	cases := []struct {
		name string
		req  TransactionRequest
	}{
		{"no amount", TransactionRequest{ProfileID: "1", PaymentProfileID: "2"}},
		{"no profile", TransactionRequest{Amount: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := client.ChargeCard(context.Background(), account, tc.req); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
