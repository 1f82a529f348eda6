package domain

import "time"

// MemberRelationship links a buyer to the member (tenant) they purchase from.
type MemberRelationship struct {
	ID                   int64
	MemberID             string
	BuyerName            string
	BuyerEmail           string
	MicrositeUserID      string
	AccountingCustomerID string
}

// Order is a buyer's order; its microsite presents the order's deliverables.
type Order struct {
	ID              int64
	BuyerRelID      int64
	Address         string
	MicrositeID     string
	MicrositeStatus string
}

// Deliverable is one media asset attached to an order.
type Deliverable struct {
	ID               int64
	OrderID          int64
	Name             string
	Kind             string
	URL              string
	SortOrder        int
	MicrositeMediaID string
	MicrositeStatus  string
}

// Invoice bills a buyer, optionally for one order. Amounts are in cents.
type Invoice struct {
	ID                  int64
	OrderID             int64
	BuyerRelID          int64
	Number              string
	TotalCents          int64
	AccountingInvoiceID string
}

// InvoicePayment records money received against an invoice.
type InvoicePayment struct {
	ID                  int64
	InvoiceID           int64
	AmountCents         int64
	PaidAt              time.Time
	AccountingPaymentID string
}

// PaymentSourceKind distinguishes vaulted cards from bank accounts.
type PaymentSourceKind string

const (
	PaymentSourceCard        PaymentSourceKind = "card"
	PaymentSourceBankAccount PaymentSourceKind = "bank_account"
)

// PaymentSource is a vaulted card or bank account owned by a buyer. At most
// one source per buyer is the default.
type PaymentSource struct {
	ID         int64
	BuyerRelID int64
	Kind       PaymentSourceKind
	// Provider is the integration type that vaulted the source.
	Provider   string
	Brand      string
	Last4      string
	ExpMonth   int
	ExpYear    int
	ExternalID string
	IsDefault  bool
	Test       bool
	CreatedAt  time.Time
}
