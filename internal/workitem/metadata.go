package workitem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Metadata is the type-indexed union stored with each work item. Every
// variant is a struct defined in this package and reports the Type it
// belongs to.
type Metadata interface {
	ItemType() Type
}

// Scrubbed is implemented by metadata carrying secrets that must not outlive
// processing. Each path names a JSON key, outermost first.
type Scrubbed interface {
	Metadata
	ScrubPaths() [][]string
}

// Operational is implemented by integration metadata, which carries a
// sub-operation code.
type Operational interface {
	Metadata
	Operation() Operation
}

// SubOperation returns the sub-operation code of integration metadata.
func SubOperation(meta Metadata) (Operation, bool) {
	op, ok := meta.(Operational)
	if !ok {
		return "", false
	}
	return op.Operation(), true
}

// ExternalID is an identifier assigned by an external provider. Providers
// return numeric and string ids interchangeably; both decode to the string
// form.
type ExternalID string

func (id *ExternalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExternalID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("external id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ExternalID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ExternalID(n.String())
	return nil
}

func (id ExternalID) String() string { return string(id) }

// Empty reports whether no id has been assigned.
func (id ExternalID) Empty() bool { return strings.TrimSpace(string(id)) == "" }

// Refs carries internal aggregate ids from an integration item forward to the
// callback item spawned when it is processed.
type Refs struct {
	BuyerRelID               int64 `json:"buyerRelId,omitempty"`
	InternalOrderID          int64 `json:"internalOrderId,omitempty"`
	InternalDeliverableID    int64 `json:"internalDeliverableId,omitempty"`
	InternalInvoiceID        int64 `json:"internalInvoiceId,omitempty"`
	InternalInvoicePaymentID int64 `json:"internalInvoicePaymentId,omitempty"`
	SetDefault               bool  `json:"setDefault,omitempty"`
}

// CallbackPayload holds the options a callback item was created with.
type CallbackPayload struct {
	SetDefault bool   `json:"setDefault,omitempty"`
	Status     string `json:"status,omitempty"`
}

// CallbackResponse exposes the value a callback wrote so sibling integration
// items can use it as a default.
type CallbackResponse struct {
	ExternalID ExternalID `json:"externalId,omitempty"`
	Status     string     `json:"status,omitempty"`
	InternalID int64      `json:"internalId,omitempty"`
	Brand      string     `json:"brand,omitempty"`
	Last4      string     `json:"last4,omitempty"`
}

var decoders = map[Type]func([]byte) (Metadata, error){
	TypeMicrosite:                 decodeAs[MicrositeMetadata],
	TypeCardProcessor:             decodeAs[CardProcessorMetadata],
	TypePaymentGateway:            decodeAs[PaymentGatewayMetadata],
	TypeAccounting:                decodeAs[AccountingMetadata],
	TypeMicrositeUserSynced:       decodeAs[MicrositeUserSyncedMetadata],
	TypeMicrositeSiteAdded:        decodeAs[MicrositeSiteAddedMetadata],
	TypeMicrositeDeliverableAdded: decodeAs[MicrositeDeliverableAddedMetadata],
	TypeMicrositeSitePublished:    decodeAs[MicrositeSitePublishedMetadata],
	TypePaymentSourceAdded:        decodeAs[PaymentSourceAddedMetadata],
	TypeAccountingCustomerSynced:  decodeAs[AccountingCustomerSyncedMetadata],
	TypeAccountingInvoiceSynced:   decodeAs[AccountingInvoiceSyncedMetadata],
	TypeAccountingPaymentRecorded: decodeAs[AccountingPaymentRecordedMetadata],
}

func decodeAs[M Metadata](raw []byte) (Metadata, error) {
	var meta M
	if len(bytes.TrimSpace(raw)) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// DecodeMetadata narrows raw JSON into the variant registered for t.
func DecodeMetadata(t Type, raw []byte) (Metadata, error) {
	decode, ok := decoders[t]
	if !ok {
		return nil, fmt.Errorf("decode metadata: unknown type %q", t)
	}
	meta, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", t, err)
	}
	return meta, nil
}

// EncodeMetadata serializes meta after checking it belongs to t.
func EncodeMetadata(t Type, meta Metadata) ([]byte, error) {
	if meta == nil {
		return nil, fmt.Errorf("encode metadata: %s metadata is nil", t)
	}
	if meta.ItemType() != t {
		return nil, fmt.Errorf("encode metadata: %s metadata supplied for %s item", meta.ItemType(), t)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode %s metadata: %w", t, err)
	}
	return data, nil
}

// MetadataAs narrows meta to the concrete variant M.
func MetadataAs[M Metadata](meta Metadata) (M, error) {
	var zero M
	if meta == nil {
		return zero, fmt.Errorf("metadata is nil, want %s", zero.ItemType())
	}
	typed, ok := meta.(M)
	if !ok {
		return zero, fmt.Errorf("metadata is %s, want %s", meta.ItemType(), zero.ItemType())
	}
	return typed, nil
}

// MergeMetadata performs an append-only merge of updated into existing: keys
// missing (or null) in existing are taken from updated, keys already holding a
// value are kept, and nested objects merge recursively.
func MergeMetadata(existing, updated []byte) ([]byte, error) {
	if len(bytes.TrimSpace(existing)) == 0 {
		return append([]byte(nil), updated...), nil
	}
	if len(bytes.TrimSpace(updated)) == 0 {
		return append([]byte(nil), existing...), nil
	}
	var base, next map[string]any
	if err := json.Unmarshal(existing, &base); err != nil {
		return nil, fmt.Errorf("merge metadata: decode existing: %w", err)
	}
	if err := json.Unmarshal(updated, &next); err != nil {
		return nil, fmt.Errorf("merge metadata: decode updated: %w", err)
	}
	if base == nil {
		base = map[string]any{}
	}
	mergeObjects(base, next)
	merged, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("merge metadata: encode: %w", err)
	}
	return merged, nil
}

// ScrubMetadata deletes the given key paths from a metadata document. Missing
// keys are ignored.
func ScrubMetadata(data []byte, paths [][]string) ([]byte, error) {
	if len(paths) == 0 || len(bytes.TrimSpace(data)) == 0 {
		return data, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("scrub metadata: decode: %w", err)
	}
	for _, path := range paths {
		deletePath(doc, path)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("scrub metadata: encode: %w", err)
	}
	return out, nil
}

func deletePath(obj map[string]any, path []string) {
	for len(path) > 1 {
		next, ok := obj[path[0]].(map[string]any)
		if !ok {
			return
		}
		obj, path = next, path[1:]
	}
	if len(path) == 1 {
		delete(obj, path[0])
	}
}

func mergeObjects(dst, src map[string]any) {
	for key, value := range src {
		current, exists := dst[key]
		if !exists || current == nil {
			dst[key] = value
			continue
		}
		currentObj, currentIsObj := current.(map[string]any)
		valueObj, valueIsObj := value.(map[string]any)
		if currentIsObj && valueIsObj {
			mergeObjects(currentObj, valueObj)
		}
	}
}
