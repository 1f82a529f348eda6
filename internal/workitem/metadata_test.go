package workitem

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExternalIDAcceptsNumbersAndStrings(t *testing.T) {
	cases := []struct {
		raw  string
		want ExternalID
	}{
		{`11111`, "11111"},
		{`"11111"`, "11111"},
		{`" abc "`, "abc"},
		{`null`, ""},
	}
	for _, tc := range cases {
		var id ExternalID
		if err := json.Unmarshal([]byte(tc.raw), &id); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if id != tc.want {
			t.Fatalf("unmarshal %s: expected %q, got %q", tc.raw, tc.want, id)
		}
	}
}

func TestDecodeMetadataNarrowsNumericResponseID(t *testing.T) {
	raw := []byte(`{"type":"create_site","memberId":"1","payload":{},"response":{"id":11111}}`)
	meta, err := DecodeMetadata(TypeMicrosite, raw)
	if err != nil {
		t.Fatalf("DecodeMetadata: %v", err)
	}
	site, err := MetadataAs[MicrositeMetadata](meta)
	if err != nil {
		t.Fatalf("MetadataAs: %v", err)
	}
	if site.Response == nil || site.Response.ID.String() != "11111" {
		t.Fatalf("expected string id 11111, got %#v", site.Response)
	}
	if op, ok := SubOperation(meta); !ok || op != OpCreateSite {
		t.Fatalf("expected create_site operation, got %q", op)
	}
	if _, err := MetadataAs[AccountingMetadata](meta); err == nil {
		t.Fatal("expected narrowing to the wrong variant to fail")
	}
}

func TestMergeMetadataIsAppendOnly(t *testing.T) {
	existing := []byte(`{"type":"create_site","payload":{"title":"Main St","siteId":null},"refs":{"internalOrderId":4}}`)
	updated := []byte(`{"type":"publish_site","payload":{"title":"Other","siteId":"s-1","address":"1 Main St"},"response":{"id":"s-1"}}`)

	merged, err := MergeMetadata(existing, updated)
	if err != nil {
		t.Fatalf("MergeMetadata: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(merged, &got); err != nil {
		t.Fatalf("decode merged: %v", err)
	}
	if got["type"] != "create_site" {
		t.Fatalf("expected existing type to be kept, got %v", got["type"])
	}
	payload := got["payload"].(map[string]any)
	if payload["title"] != "Main St" || payload["siteId"] != "s-1" || payload["address"] != "1 Main St" {
		t.Fatalf("unexpected merged payload: %v", payload)
	}
	if _, ok := got["response"]; !ok {
		t.Fatal("expected response to be added")
	}
	if !strings.Contains(string(merged), `"internalOrderId":4`) {
		t.Fatalf("expected refs to survive, got %s", merged)
	}
}

func TestEncodeMetadataRejectsMismatchedType(t *testing.T) {
	if _, err := EncodeMetadata(TypeAccounting, MicrositeMetadata{Type: OpCreateSite}); err == nil {
		t.Fatal("expected mismatched metadata to be rejected")
	}
	if _, err := EncodeMetadata(TypeAccounting, nil); err == nil {
		t.Fatal("expected nil metadata to be rejected")
	}
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusCreated, StatusProcessed}:   true,
		{StatusCreated, StatusFailed}:      true,
		{StatusProcessed, StatusCompleted}: true,
		{StatusProcessed, StatusFailed}:    true,
	}
	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			if got := CanTransition(from, to); got != allowed[[2]Status{from, to}] {
				t.Errorf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}
