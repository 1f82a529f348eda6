// Package gateway is the client for the alternate payment gateway, which
// vaults cards and bank accounts under customer profiles and settles card and
// eCheck transactions.
package gateway

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

const (
	// CodeTransactionTooOld is returned when a void arrives after settlement.
	CodeTransactionTooOld = "transaction_too_old"
	// CodeDuplicatePaymentProfile is returned when the card is already vaulted
	// under the profile; ExistingID carries the existing payment profile id.
	CodeDuplicatePaymentProfile = "E00039"
)

// Client is the gateway surface used by the integration processor.
type Client interface {
	ChargeECheck(ctx context.Context, account tenant.Account, req TransactionRequest) (Transaction, error)
	AuthorizeCard(ctx context.Context, account tenant.Account, req TransactionRequest) (Transaction, error)
	VoidCharge(ctx context.Context, account tenant.Account, transactionID string) (Transaction, error)
	CaptureCharge(ctx context.Context, account tenant.Account, transactionID string, amount int64) (Transaction, error)
	ChargeCard(ctx context.Context, account tenant.Account, req TransactionRequest) (Transaction, error)
	AddBankAccount(ctx context.Context, account tenant.Account, req BankAccountRequest) (PaymentProfile, error)
	AddCard(ctx context.Context, account tenant.Account, req CardRequest) (PaymentProfile, error)
	RefundCard(ctx context.Context, account tenant.Account, req RefundRequest) (Transaction, error)
	RefundECheck(ctx context.Context, account tenant.Account, req RefundRequest) (Transaction, error)
}

// TransactionRequest charges or authorizes a vaulted payment profile. Amount
// is in cents.
type TransactionRequest struct {
	ProfileID        string `json:"profileId"`
	PaymentProfileID string `json:"paymentProfileId"`
	Amount           int64  `json:"amount"`
	Description      string `json:"description,omitempty"`
}

// RefundRequest returns money from a settled transaction.
type RefundRequest struct {
	TransactionID    string `json:"refTransId"`
	ProfileID        string `json:"profileId"`
	PaymentProfileID string `json:"paymentProfileId"`
	Amount           int64  `json:"amount"`
}

// CardRequest vaults a tokenized card under a profile.
type CardRequest struct {
	ProfileID string `json:"profileId,omitempty"`
	CardNonce string `json:"opaqueData"`
}

// BankAccountRequest vaults a bank account under a profile.
type BankAccountRequest struct {
	ProfileID     string `json:"profileId,omitempty"`
	RoutingNumber string `json:"routingNumber"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"nameOnAccount"`
	AccountType   string `json:"accountType"`
}

// Transaction is the gateway's transaction record.
type Transaction struct {
	TransactionID workitem.ExternalID `json:"transId"`
	Status        string              `json:"status"`
	AuthCode      string              `json:"authCode,omitempty"`
}

// PaymentProfile is a vaulted card or bank account.
type PaymentProfile struct {
	ProfileID        workitem.ExternalID `json:"profileId"`
	PaymentProfileID workitem.ExternalID `json:"paymentProfileId"`
	Brand            string              `json:"cardType,omitempty"`
	Last4            string              `json:"last4,omitempty"`
	ExpMonth         int                 `json:"expMonth,omitempty"`
	ExpYear          int                 `json:"expYear,omitempty"`
}

// ExternalID is the composite id stored on payment sources.
func (p PaymentProfile) ExternalID() string {
	return p.ProfileID.String() + "/" + p.PaymentProfileID.String()
}

// HTTPClient talks to the gateway's JSON API.
type HTTPClient struct {
	api *httpapi.Client
}

// NewHTTPClient constructs a client rooted at baseURL authorized with apiKey.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, opts ...httpapi.Option) *HTTPClient {
	opts = append([]httpapi.Option{httpapi.WithBearerToken(apiKey)}, opts...)
	return &HTTPClient{api: httpapi.New("payment_gateway", baseURL, timeout, opts...)}
}

func merchantPath(account tenant.Account, suffix string) (string, error) {
	merchant := strings.TrimSpace(account.GatewayMerchantID)
	if merchant == "" {
		return "", services.Wrap(services.ErrConfiguration, "payment_gateway", "resolve merchant",
			"member "+account.MemberID+" has no gateway merchant", nil)
	}
	return "merchants/" + merchant + "/" + suffix, nil
}

func (c *HTTPClient) transaction(ctx context.Context, account tenant.Account, kind string, body any) (Transaction, error) {
	var tx Transaction
	path, err := merchantPath(account, "transactions/"+kind)
	if err != nil {
		return tx, err
	}
	err = c.api.Do(ctx, http.MethodPost, path, body, &tx)
	return tx, err
}

func validateCharge(op string, req TransactionRequest) error {
	if req.Amount <= 0 {
		return services.Wrap(services.ErrValidation, "payment_gateway", op, "amount must be positive", nil)
	}
	if strings.TrimSpace(req.ProfileID) == "" || strings.TrimSpace(req.PaymentProfileID) == "" {
		return services.Wrap(services.ErrValidation, "payment_gateway", op, "payment profile required", nil)
	}
	return nil
}

func (c *HTTPClient) ChargeECheck(ctx context.Context, account tenant.Account, req TransactionRequest) (Transaction, error) {
	if err := validateCharge("charge echeck", req); err != nil {
		return Transaction{}, err
	}
	return c.transaction(ctx, account, "echeck", req)
}

func (c *HTTPClient) AuthorizeCard(ctx context.Context, account tenant.Account, req TransactionRequest) (Transaction, error) {
	if err := validateCharge("authorize card", req); err != nil {
		return Transaction{}, err
	}
	return c.transaction(ctx, account, "authorize", req)
}

func (c *HTTPClient) ChargeCard(ctx context.Context, account tenant.Account, req TransactionRequest) (Transaction, error) {
	if err := validateCharge("charge card", req); err != nil {
		return Transaction{}, err
	}
	return c.transaction(ctx, account, "charge", req)
}

func (c *HTTPClient) VoidCharge(ctx context.Context, account tenant.Account, transactionID string) (Transaction, error) {
	if strings.TrimSpace(transactionID) == "" {
		return Transaction{}, services.Wrap(services.ErrValidation, "payment_gateway", "void charge", "transaction id required", nil)
	}
	return c.transaction(ctx, account, "void", map[string]string{"refTransId": transactionID})
}

func (c *HTTPClient) CaptureCharge(ctx context.Context, account tenant.Account, transactionID string, amount int64) (Transaction, error) {
	if strings.TrimSpace(transactionID) == "" {
		return Transaction{}, services.Wrap(services.ErrValidation, "payment_gateway", "capture charge", "transaction id required", nil)
	}
	return c.transaction(ctx, account, "capture", map[string]any{"refTransId": transactionID, "amount": amount})
}

func (c *HTTPClient) RefundCard(ctx context.Context, account tenant.Account, req RefundRequest) (Transaction, error) {
	return c.refund(ctx, account, "refund", req)
}

func (c *HTTPClient) RefundECheck(ctx context.Context, account tenant.Account, req RefundRequest) (Transaction, error) {
	return c.refund(ctx, account, "echeck_refund", req)
}

func (c *HTTPClient) refund(ctx context.Context, account tenant.Account, kind string, req RefundRequest) (Transaction, error) {
	if strings.TrimSpace(req.TransactionID) == "" {
		return Transaction{}, services.Wrap(services.ErrValidation, "payment_gateway", kind, "transaction id required", nil)
	}
	if req.Amount <= 0 {
		return Transaction{}, services.Wrap(services.ErrValidation, "payment_gateway", kind, "amount must be positive", nil)
	}
	return c.transaction(ctx, account, kind, req)
}

func (c *HTTPClient) AddCard(ctx context.Context, account tenant.Account, req CardRequest) (PaymentProfile, error) {
	var profile PaymentProfile
	if strings.TrimSpace(req.CardNonce) == "" {
		return profile, services.Wrap(services.ErrValidation, "payment_gateway", "add card", "card nonce required", nil)
	}
	path, err := merchantPath(account, "payment_profiles/card")
	if err != nil {
		return profile, err
	}
	err = c.api.Do(ctx, http.MethodPost, path, req, &profile)
	return profile, err
}

func (c *HTTPClient) AddBankAccount(ctx context.Context, account tenant.Account, req BankAccountRequest) (PaymentProfile, error) {
	var profile PaymentProfile
	if strings.TrimSpace(req.RoutingNumber) == "" || strings.TrimSpace(req.AccountNumber) == "" {
		return profile, services.Wrap(services.ErrValidation, "payment_gateway", "add bank account", "routing and account number required", nil)
	}
	if req.AccountType == "" {
		req.AccountType = "checking"
	}
	path, err := merchantPath(account, "payment_profiles/bank_account")
	if err != nil {
		return profile, err
	}
	err = c.api.Do(ctx, http.MethodPost, path, req, &profile)
	return profile, err
}
