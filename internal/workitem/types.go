package workitem

import (
	"errors"
	"fmt"
	"strings"
)

// Type identifies the processor responsible for a work item.
type Type string

// Integration types call one external system.
const (
	TypeMicrosite      Type = "microsite"
	TypeCardProcessor  Type = "card_processor"
	TypePaymentGateway Type = "payment_gateway"
	TypeAccounting     Type = "accounting"
)

// Callback types reconcile an integration response into internal aggregates.
const (
	TypeMicrositeUserSynced       Type = "microsite_user_synced"
	TypeMicrositeSiteAdded        Type = "microsite_site_added"
	TypeMicrositeDeliverableAdded Type = "microsite_deliverable_added"
	TypeMicrositeSitePublished    Type = "microsite_site_published"
	TypePaymentSourceAdded        Type = "payment_source_added"
	TypeAccountingCustomerSynced  Type = "accounting_customer_synced"
	TypeAccountingInvoiceSynced   Type = "accounting_invoice_synced"
	TypeAccountingPaymentRecorded Type = "accounting_payment_recorded"
)

// Family partitions types by the kind of side effect they perform.
type Family string

const (
	FamilyIntegration Family = "integration"
	FamilyCallback    Family = "callback"
)

var allTypes = []Type{
	TypeMicrosite,
	TypeCardProcessor,
	TypePaymentGateway,
	TypeAccounting,
	TypeMicrositeUserSynced,
	TypeMicrositeSiteAdded,
	TypeMicrositeDeliverableAdded,
	TypeMicrositeSitePublished,
	TypePaymentSourceAdded,
	TypeAccountingCustomerSynced,
	TypeAccountingInvoiceSynced,
	TypeAccountingPaymentRecorded,
}

// AllTypes returns every declared work item type.
func AllTypes() []Type {
	return append([]Type(nil), allTypes...)
}

// ParseType converts a string into a known Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range allTypes {
		if t == normalized {
			return t, true
		}
	}
	return "", false
}

// Valid reports whether t is a declared type.
func (t Type) Valid() bool {
	for _, known := range allTypes {
		if known == t {
			return true
		}
	}
	return false
}

// Family returns the processor family of t.
func (t Type) Family() Family {
	switch t {
	case TypeMicrosite, TypeCardProcessor, TypePaymentGateway, TypeAccounting:
		return FamilyIntegration
	default:
		return FamilyCallback
	}
}

// Operation is the sub-operation code carried by integration metadata.
type Operation string

const (
	OpEnsureUserExists     Operation = "ensure_user_exists"
	OpCreateSite           Operation = "create_site"
	OpAddDeliverableToSite Operation = "add_deliverable_to_site"
	OpSortSiteDeliverables Operation = "sort_site_deliverables"
	OpPublishSite          Operation = "publish_site"

	OpAuthorizeCharge     Operation = "authorize_charge"
	OpCaptureCharge       Operation = "capture_charge"
	OpCancelAuthorization Operation = "cancel_authorization"
	OpCreateCharge        Operation = "create_charge"
	OpRefundCharge        Operation = "refund_charge"
	OpAddPaymentMethod    Operation = "add_payment_method"

	OpChargeECheck   Operation = "charge_echeck"
	OpAuthorizeCard  Operation = "authorize_card"
	OpVoidCharge     Operation = "void_charge"
	OpChargeCard     Operation = "charge_card"
	OpAddBankAccount Operation = "add_bank_account"
	OpAddCard        Operation = "add_card"
	OpRefundCard     Operation = "refund_card"
	OpRefundECheck   Operation = "refund_echeck"

	OpUpsertCustomer       Operation = "upsert_customer"
	OpUpsertInvoice        Operation = "upsert_invoice"
	OpRecordInvoicePayment Operation = "record_invoice_payment"
)

// Status represents the lifecycle of a work item.
type Status string

const (
	StatusCreated   Status = "created"
	StatusProcessed Status = "processed"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{StatusCreated, StatusProcessed, StatusCompleted, StatusFailed}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Settled reports whether dependents may consume this item's output.
func (s Status) Settled() bool {
	return s == StatusProcessed || s == StatusCompleted
}

var transitions = map[Status][]Status{
	StatusCreated:   {StatusProcessed, StatusFailed},
	StatusProcessed: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is a legal forward move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrIllegalTransition marks attempts to move an item backwards or out of a
// terminal state. It signals a programming error, never a business failure.
var ErrIllegalTransition = errors.New("illegal status transition")

// TransitionError describes a rejected status change.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("work item %s: %s -> %s is not allowed", e.ID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// ErrNotFound is returned when a referenced work item does not exist.
var ErrNotFound = errors.New("work item not found")
