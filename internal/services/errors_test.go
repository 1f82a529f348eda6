package services_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"futures/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrContract, "callback", "site_added", "expected one dependency", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrContract) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"callback", "site_added", "expected one dependency"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetailsClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      string
		retriable bool
	}{
		{"contract", services.Wrap(services.ErrContract, "callback", "", "bad", nil), "contract", false},
		{"not implemented", services.Wrap(services.ErrNotImplemented, "microsite", "unknown", "", nil), "not_implemented", false},
		{"timeout", services.Wrap(services.ErrTimeout, "workflow", "call", "deadline", nil), "timeout", true},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), "timeout", true},
		{"provider 4xx", &services.ProviderError{Provider: "gateway", Code: "E00027", Status: http.StatusBadRequest}, "provider", false},
		{"provider 503", fmt.Errorf("charge: %w", &services.ProviderError{Provider: "gateway", Status: http.StatusServiceUnavailable}), "provider", true},
		{"transient", services.Wrap(services.ErrTransient, "store", "", "busy", nil), "transient", true},
		{"unknown", errors.New("plain"), "unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details := services.Details(tt.err)
			if details.Kind != tt.kind {
				t.Fatalf("kind = %q, want %q", details.Kind, tt.kind)
			}
			if details.Retriable != tt.retriable {
				t.Fatalf("retriable = %v, want %v", details.Retriable, tt.retriable)
			}
			if details.Message == "" {
				t.Fatal("expected message")
			}
		})
	}

	if details := services.Details(nil); details.Kind != "" || details.Retriable {
		t.Fatalf("expected empty details for nil, got %+v", details)
	}
}

func TestProviderErrorMatching(t *testing.T) {
	err := fmt.Errorf("void: %w", &services.ProviderError{Provider: "cardpay", Code: "charge_too_old", Message: "cannot void"})
	if !errors.Is(err, services.ErrProvider) {
		t.Fatal("expected ProviderError to match ErrProvider")
	}
	if !services.HasCode(err, "charge_too_old") {
		t.Fatal("expected HasCode to find code")
	}
	if services.HasCode(err, "other") {
		t.Fatal("unexpected code match")
	}
	if services.HasCode(errors.New("plain"), "charge_too_old") {
		t.Fatal("plain errors carry no provider code")
	}
}
