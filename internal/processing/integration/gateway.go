package integration

import (
	"context"
	"log/slog"

	"futures/internal/domain"
	"futures/internal/logging"
	"futures/internal/processing"
	"futures/internal/services"
	"futures/internal/services/gateway"
	"futures/internal/services/tenant"
	"futures/internal/workitem"
)

// PaymentGateway drives the alternate payment gateway.
type PaymentGateway struct {
	clients ClientPair[gateway.Client]
	tenants tenant.Resolver
}

// NewPaymentGateway constructs the gateway integration.
func NewPaymentGateway(live, test gateway.Client, tenants tenant.Resolver) *PaymentGateway {
	return &PaymentGateway{clients: ClientPair[gateway.Client]{Live: live, Test: test}, tenants: tenants}
}

func (p *PaymentGateway) Type() workitem.Type { return workitem.TypePaymentGateway }

func (p *PaymentGateway) HealthCheck(context.Context) processing.Health {
	return p.clients.health(string(workitem.TypePaymentGateway))
}

func (p *PaymentGateway) Handle(ctx context.Context, logger *slog.Logger, tx domain.Tx, raw workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	meta, err := workitem.MetadataAs[workitem.PaymentGatewayMetadata](raw)
	if err != nil {
		return processing.Outcome{}, err
	}
	client, err := p.clients.pick(p.Type(), meta.Test)
	if err != nil {
		return processing.Outcome{}, err
	}
	account, err := resolveAccount(ctx, p.tenants, meta.MemberID)
	if err != nil {
		return processing.Outcome{}, err
	}
	logger.Debug("payment gateway call", logging.String(logging.FieldOperation, string(meta.Type)), logging.Bool("test", meta.Test))

	payload := &meta.Payload
	switch meta.Type {
	case workitem.OpChargeECheck, workitem.OpAuthorizeCard, workitem.OpChargeCard:
		p.defaultProfile(payload, deps)
		if err := requireID(p.Type(), meta.Type, "payment profile id", payload.PaymentProfileID); err != nil {
			return processing.Outcome{}, err
		}
		req := gateway.TransactionRequest{
			ProfileID:        payload.ProfileID.String(),
			PaymentProfileID: payload.PaymentProfileID.String(),
			Amount:           payload.Amount,
			Description:      payload.Description,
		}
		var txn gateway.Transaction
		switch meta.Type {
		case workitem.OpChargeECheck:
			txn, err = client.ChargeECheck(ctx, account, req)
		case workitem.OpAuthorizeCard:
			txn, err = client.AuthorizeCard(ctx, account, req)
		default:
			txn, err = client.ChargeCard(ctx, account, req)
		}
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = transactionResponse(txn)

	case workitem.OpVoidCharge:
		payload.TransactionID = defaultID(payload.TransactionID, deps, gatewayTransactionID(workitem.OpAuthorizeCard, workitem.OpChargeCard, workitem.OpChargeECheck))
		if err := requireID(p.Type(), meta.Type, "transaction id", payload.TransactionID); err != nil {
			return processing.Outcome{}, err
		}
		txn, err := client.VoidCharge(ctx, account, payload.TransactionID.String())
		if services.HasCode(err, gateway.CodeTransactionTooOld) {
			logger.Info("transaction already settled; treating void as done",
				logging.String(logging.FieldOperation, string(meta.Type)),
				logging.String("transaction_id", payload.TransactionID.String()))
			return processing.Done(raw), nil
		}
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = transactionResponse(txn)

	case workitem.OpCaptureCharge:
		payload.TransactionID = defaultID(payload.TransactionID, deps, gatewayTransactionID(workitem.OpAuthorizeCard))
		if err := requireID(p.Type(), meta.Type, "transaction id", payload.TransactionID); err != nil {
			return processing.Outcome{}, err
		}
		txn, err := client.CaptureCharge(ctx, account, payload.TransactionID.String(), payload.Amount)
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = transactionResponse(txn)

	case workitem.OpRefundCard, workitem.OpRefundECheck:
		charged := workitem.OpChargeCard
		if meta.Type == workitem.OpRefundECheck {
			charged = workitem.OpChargeECheck
		}
		payload.TransactionID = defaultID(payload.TransactionID, deps, gatewayTransactionID(charged, workitem.OpCaptureCharge))
		if err := requireID(p.Type(), meta.Type, "transaction id", payload.TransactionID); err != nil {
			return processing.Outcome{}, err
		}
		p.defaultProfile(payload, deps)
		req := gateway.RefundRequest{
			TransactionID:    payload.TransactionID.String(),
			ProfileID:        payload.ProfileID.String(),
			PaymentProfileID: payload.PaymentProfileID.String(),
			Amount:           payload.Amount,
		}
		var txn gateway.Transaction
		if meta.Type == workitem.OpRefundCard {
			txn, err = client.RefundCard(ctx, account, req)
		} else {
			txn, err = client.RefundECheck(ctx, account, req)
		}
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = transactionResponse(txn)

	case workitem.OpAddCard:
		profile, err := client.AddCard(ctx, account, gateway.CardRequest{
			ProfileID: payload.ProfileID.String(),
			CardNonce: payload.CardNonce,
		})
		if err != nil {
			pe, ok := services.AsProviderError(err)
			if !meta.Test || !ok || pe.Code != gateway.CodeDuplicatePaymentProfile {
				return processing.Outcome{}, err
			}
			response, lookupErr := existingCard(ctx, tx, meta.Refs.BuyerRelID, pe.ExistingID)
			if lookupErr != nil {
				return processing.Outcome{}, services.Wrap(services.ErrProvider, string(p.Type()), string(meta.Type),
					"duplicate card reported but no matching payment source", lookupErr)
			}
			logger.Info("test card already vaulted; reusing stored payment source",
				logging.String(logging.FieldOperation, string(meta.Type)),
				logging.String("payment_profile_id", pe.ExistingID))
			meta.Response = response
			return processing.Done(meta), nil
		}
		meta.Response = profileResponse(profile)

	case workitem.OpAddBankAccount:
		profile, err := client.AddBankAccount(ctx, account, gateway.BankAccountRequest{
			ProfileID:     payload.ProfileID.String(),
			RoutingNumber: payload.RoutingNumber,
			AccountNumber: payload.AccountNumber,
			AccountName:   payload.AccountName,
			AccountType:   payload.AccountType,
		})
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = profileResponse(profile)
		meta.Payload.RoutingNumber, meta.Payload.AccountNumber = "", ""

	default:
		return processing.Outcome{}, notImplemented(p.Type(), meta.Type)
	}
	return processing.Done(meta), nil
}

// defaultProfile fills the profile pair from a vaulting dependency.
func (p *PaymentGateway) defaultProfile(payload *workitem.PaymentGatewayPayload, deps []workitem.Dependency) {
	if !payload.PaymentProfileID.Empty() {
		return
	}
	for _, dep := range deps {
		switch m := dep.Metadata.(type) {
		case workitem.PaymentGatewayMetadata:
			if (m.Type == workitem.OpAddCard || m.Type == workitem.OpAddBankAccount) && m.Response != nil {
				if payload.ProfileID.Empty() {
					payload.ProfileID = m.Response.ProfileID
				}
				payload.PaymentProfileID = m.Response.PaymentProfileID
				return
			}
		case workitem.PaymentSourceAddedMetadata:
			if id := callbackID(m, workitem.TypePaymentSourceAdded); !id.Empty() {
				profile, paymentProfile := splitCompositeID(id)
				if payload.ProfileID.Empty() {
					payload.ProfileID = profile
				}
				payload.PaymentProfileID = paymentProfile
				return
			}
		}
	}
}

// existingCard synthesizes an add_card response from the buyer's test-mode
// payment source already stored for the provider's payment profile id.
func existingCard(ctx context.Context, tx domain.Tx, buyerRelID int64, paymentProfileID string) (*workitem.PaymentGatewayResponse, error) {
	if tx == nil {
		return nil, services.Wrap(services.ErrContract, "payment_gateway", "add_card", "no transaction for payment source lookup", nil)
	}
	if buyerRelID == 0 {
		return nil, services.Wrap(services.ErrContract, "payment_gateway", "add_card", "duplicate card lookup needs refs.buyerRelId", nil)
	}
	src, err := tx.FindPaymentSourceByExternalSuffix(ctx, buyerRelID, true, paymentProfileID)
	if err != nil {
		return nil, err
	}
	profile, paymentProfile := splitCompositeID(workitem.ExternalID(src.ExternalID))
	return &workitem.PaymentGatewayResponse{
		ProfileID:        profile,
		PaymentProfileID: paymentProfile,
		Status:           "duplicate",
		Brand:            src.Brand,
		Last4:            src.Last4,
		ExpMonth:         src.ExpMonth,
		ExpYear:          src.ExpYear,
	}, nil
}

func gatewayTransactionID(ops ...workitem.Operation) func(workitem.Metadata) workitem.ExternalID {
	return func(meta workitem.Metadata) workitem.ExternalID {
		m, ok := meta.(workitem.PaymentGatewayMetadata)
		if !ok || m.Response == nil {
			return ""
		}
		for _, op := range ops {
			if m.Type == op {
				return m.Response.TransactionID
			}
		}
		return ""
	}
}

func transactionResponse(txn gateway.Transaction) *workitem.PaymentGatewayResponse {
	return &workitem.PaymentGatewayResponse{TransactionID: txn.TransactionID, Status: txn.Status, AuthCode: txn.AuthCode}
}

func profileResponse(profile gateway.PaymentProfile) *workitem.PaymentGatewayResponse {
	return &workitem.PaymentGatewayResponse{
		ProfileID:        profile.ProfileID,
		PaymentProfileID: profile.PaymentProfileID,
		Status:           "vaulted",
		Brand:            profile.Brand,
		Last4:            profile.Last4,
		ExpMonth:         profile.ExpMonth,
		ExpYear:          profile.ExpYear,
	}
}
