// Package accounting is the client for the bookkeeping system that mirrors
// buyers, invoices and invoice payments.
package accounting

import (
	"context"
	"net/http"
	"strings"
	"time"

	"futures/internal/services"
	"futures/internal/services/httpapi"
	"futures/internal/services/tenant"
	"futures/internal/workitem"
)

// Client is the accounting surface used by the integration processor.
type Client interface {
	UpsertCustomer(ctx context.Context, account tenant.Account, req CustomerRequest) (Record, error)
	UpsertInvoice(ctx context.Context, account tenant.Account, req InvoiceRequest) (Record, error)
	RecordInvoicePayment(ctx context.Context, account tenant.Account, req PaymentRequest) (Record, error)
}

// CustomerRequest creates or updates a customer. ID is empty on first sync.
type CustomerRequest struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// Line is one invoice line. Amount is in cents.
type Line struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

// InvoiceRequest creates or updates an invoice for a customer.
type InvoiceRequest struct {
	ID         string `json:"id,omitempty"`
	CustomerID string `json:"customerId"`
	DocNumber  string `json:"docNumber,omitempty"`
	Lines      []Line `json:"lines"`
}

// PaymentRequest records a payment against an invoice.
type PaymentRequest struct {
	CustomerID string `json:"customerId"`
	InvoiceID  string `json:"invoiceId"`
	Amount     int64  `json:"amount"`
	PaidAt     string `json:"txnDate,omitempty"`
}

// Record is any accounting entity the API returns.
type Record struct {
	ID        workitem.ExternalID `json:"id"`
	SyncToken string              `json:"syncToken,omitempty"`
}

// HTTPClient talks to the accounting REST API.
type HTTPClient struct {
	api *httpapi.Client
}

// NewHTTPClient constructs a client rooted at baseURL authorized with apiKey.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, opts ...httpapi.Option) *HTTPClient {
	opts = append([]httpapi.Option{httpapi.WithBearerToken(apiKey)}, opts...)
	return &HTTPClient{api: httpapi.New("accounting", baseURL, timeout, opts...)}
}

func realmPath(account tenant.Account, entity string) (string, error) {
	realm := strings.TrimSpace(account.AccountingRealm)
	if realm == "" {
		return "", services.Wrap(services.ErrConfiguration, "accounting", "resolve realm",
			"member "+account.MemberID+" has no accounting realm", nil)
	}
	return "v3/company/" + realm + "/" + entity, nil
}

func (c *HTTPClient) post(ctx context.Context, account tenant.Account, entity string, body any) (Record, error) {
	var rec Record
	path, err := realmPath(account, entity)
	if err != nil {
		return rec, err
	}
	err = c.api.Do(ctx, http.MethodPost, path, body, &rec)
	return rec, err
}

func (c *HTTPClient) UpsertCustomer(ctx context.Context, account tenant.Account, req CustomerRequest) (Record, error) {
	if strings.TrimSpace(req.DisplayName) == "" {
		return Record{}, services.Wrap(services.ErrValidation, "accounting", "upsert customer", "display name required", nil)
	}
	return c.post(ctx, account, "customer", req)
}

func (c *HTTPClient) UpsertInvoice(ctx context.Context, account tenant.Account, req InvoiceRequest) (Record, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return Record{}, services.Wrap(services.ErrValidation, "accounting", "upsert invoice", "customer id required", nil)
	}
	if len(req.Lines) == 0 {
		return Record{}, services.Wrap(services.ErrValidation, "accounting", "upsert invoice", "invoice has no lines", nil)
	}
	return c.post(ctx, account, "invoice", req)
}

func (c *HTTPClient) RecordInvoicePayment(ctx context.Context, account tenant.Account, req PaymentRequest) (Record, error) {
	if strings.TrimSpace(req.InvoiceID) == "" || strings.TrimSpace(req.CustomerID) == "" {
		return Record{}, services.Wrap(services.ErrValidation, "accounting", "record payment", "invoice and customer id required", nil)
	}
	if req.Amount <= 0 {
		return Record{}, services.Wrap(services.ErrValidation, "accounting", "record payment", "amount must be positive", nil)
	}
	return c.post(ctx, account, "payment", req)
}
