// Package cardpay is the client for the primary card processor.
package cardpay

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"futures/internal/services"
	"futures/internal/services/httpapi"
	"futures/internal/services/tenant"
	"futures/internal/workitem"
)

// CodeAuthorizationTooOld is returned when an authorization can no longer be
// cancelled because the processor already released it.
const CodeAuthorizationTooOld = "authorization_too_old"

// Client is the card processor surface used by the integration processor.
type Client interface {
	AuthorizeCharge(ctx context.Context, account tenant.Account, req ChargeRequest) (Charge, error)
	CaptureCharge(ctx context.Context, account tenant.Account, chargeID string, amount int64) (Charge, error)
	CancelAuthorization(ctx context.Context, account tenant.Account, chargeID string) (Charge, error)
	CreateCharge(ctx context.Context, account tenant.Account, req ChargeRequest) (Charge, error)
	RefundCharge(ctx context.Context, account tenant.Account, chargeID string, amount int64) (Charge, error)
	AddPaymentMethod(ctx context.Context, account tenant.Account, customerID, token string) (PaymentMethod, error)
}

// ChargeRequest describes a charge or authorization. Amount is in minor units.
type ChargeRequest struct {
	CustomerID      string `json:"customer,omitempty"`
	PaymentMethodID string `json:"paymentMethod"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Description     string `json:"description,omitempty"`
	Capture         bool   `json:"capture"`
}

// Charge is the processor's charge record.
type Charge struct {
	ID     workitem.ExternalID `json:"id"`
	Status string              `json:"status"`
	Amount int64               `json:"amount"`
}

// PaymentMethod is a vaulted card.
type PaymentMethod struct {
	ID       workitem.ExternalID `json:"id"`
	Brand    string              `json:"brand"`
	Last4    string              `json:"last4"`
	ExpMonth int                 `json:"expMonth"`
	ExpYear  int                 `json:"expYear"`
}

// HTTPClient talks to the processor's REST API.
type HTTPClient struct {
	api *httpapi.Client
}

// NewHTTPClient constructs a client rooted at baseURL authorized with apiKey.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, opts ...httpapi.Option) *HTTPClient {
	opts = append([]httpapi.Option{httpapi.WithBearerToken(apiKey)}, opts...)
	return &HTTPClient{api: httpapi.New("card_processor", baseURL, timeout, opts...)}
}

func (c *HTTPClient) merchantPath(account tenant.Account, format string, args ...any) (string, error) {
	merchant := strings.TrimSpace(account.CardMerchant)
	if merchant == "" {
		return "", services.Wrap(services.ErrConfiguration, "card_processor", "resolve merchant",
			"member "+account.MemberID+" has no card merchant", nil)
	}
	return "v1/merchants/" + merchant + "/" + fmt.Sprintf(format, args...), nil
}

func requireID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return services.Wrap(services.ErrValidation, "card_processor", op, "charge id required", nil)
	}
	return nil
}

func (c *HTTPClient) charge(ctx context.Context, account tenant.Account, req ChargeRequest) (Charge, error) {
	var charge Charge
	if req.Amount <= 0 {
		return charge, services.Wrap(services.ErrValidation, "card_processor", "charge", "amount must be positive", nil)
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}
	path, err := c.merchantPath(account, "charges")
	if err != nil {
		return charge, err
	}
	err = c.api.Do(ctx, http.MethodPost, path, req, &charge)
	return charge, err
}

func (c *HTTPClient) AuthorizeCharge(ctx context.Context, account tenant.Account, req ChargeRequest) (Charge, error) {
	req.Capture = false
	return c.charge(ctx, account, req)
}

func (c *HTTPClient) CreateCharge(ctx context.Context, account tenant.Account, req ChargeRequest) (Charge, error) {
	req.Capture = true
	return c.charge(ctx, account, req)
}

func (c *HTTPClient) CaptureCharge(ctx context.Context, account tenant.Account, chargeID string, amount int64) (Charge, error) {
	var charge Charge
	if err := requireID("capture charge", chargeID); err != nil {
		return charge, err
	}
	path, err := c.merchantPath(account, "charges/%s/capture", chargeID)
	if err != nil {
		return charge, err
	}
	err = c.api.Do(ctx, http.MethodPost, path, map[string]int64{"amount": amount}, &charge)
	return charge, err
}

func (c *HTTPClient) CancelAuthorization(ctx context.Context, account tenant.Account, chargeID string) (Charge, error) {
	var charge Charge
	if err := requireID("cancel authorization", chargeID); err != nil {
		return charge, err
	}
	path, err := c.merchantPath(account, "charges/%s/cancel", chargeID)
	if err != nil {
		return charge, err
	}
	err = c.api.Do(ctx, http.MethodPost, path, nil, &charge)
	return charge, err
}

func (c *HTTPClient) RefundCharge(ctx context.Context, account tenant.Account, chargeID string, amount int64) (Charge, error) {
	var refund Charge
	if err := requireID("refund charge", chargeID); err != nil {
		return refund, err
	}
	path, err := c.merchantPath(account, "charges/%s/refunds", chargeID)
	if err != nil {
		return refund, err
	}
	body := map[string]int64{}
	if amount > 0 {
		body["amount"] = amount
	}
	err = c.api.Do(ctx, http.MethodPost, path, body, &refund)
	return refund, err
}

func (c *HTTPClient) AddPaymentMethod(ctx context.Context, account tenant.Account, customerID, token string) (PaymentMethod, error) {
	var method PaymentMethod
	if strings.TrimSpace(token) == "" {
		return method, services.Wrap(services.ErrValidation, "card_processor", "add payment method", "card token required", nil)
	}
	path, err := c.merchantPath(account, "payment_methods")
	if err != nil {
		return method, err
	}
	body := map[string]string{"token": token}
	if customerID != "" {
		body["customer"] = customerID
	}
	err = c.api.Do(ctx, http.MethodPost, path, body, &method)
	return method, err
}
