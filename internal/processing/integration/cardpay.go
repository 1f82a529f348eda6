package integration

import (
	"context"
	"log/slog"

	"futures/internal/domain"
	"futures/internal/logging"
	"futures/internal/processing"
	"futures/internal/services"
	"futures/internal/services/cardpay"
	"futures/internal/services/tenant"
	"futures/internal/workitem"
)

// CardProcessor drives the primary card processor.
type CardProcessor struct {
	clients ClientPair[cardpay.Client]
	tenants tenant.Resolver
}

// NewCardProcessor constructs the card processor integration.
func NewCardProcessor(live, test cardpay.Client, tenants tenant.Resolver) *CardProcessor {
	return &CardProcessor{clients: ClientPair[cardpay.Client]{Live: live, Test: test}, tenants: tenants}
}

func (p *CardProcessor) Type() workitem.Type { return workitem.TypeCardProcessor }

func (p *CardProcessor) HealthCheck(context.Context) processing.Health {
	return p.clients.health(string(workitem.TypeCardProcessor))
}

func (p *CardProcessor) Handle(ctx context.Context, logger *slog.Logger, _ domain.Tx, raw workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	meta, err := workitem.MetadataAs[workitem.CardProcessorMetadata](raw)
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
	logger.Debug("card processor call", logging.String(logging.FieldOperation, string(meta.Type)), logging.Bool("test", meta.Test))

	payload := &meta.Payload
	switch meta.Type {
	case workitem.OpAuthorizeCharge, workitem.OpCreateCharge:
		payload.PaymentMethodID = defaultID(payload.PaymentMethodID, deps, cardPaymentMethodID)
		if err := requireID(p.Type(), meta.Type, "payment method id", payload.PaymentMethodID); err != nil {
			return processing.Outcome{}, err
		}
		req := cardpay.ChargeRequest{
			CustomerID:      payload.CustomerID.String(),
			PaymentMethodID: payload.PaymentMethodID.String(),
			Amount:          payload.Amount,
			Currency:        payload.Currency,
			Description:     payload.Description,
		}
		var charge cardpay.Charge
		if meta.Type == workitem.OpAuthorizeCharge {
			charge, err = client.AuthorizeCharge(ctx, account, req)
		} else {
			charge, err = client.CreateCharge(ctx, account, req)
		}
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = &workitem.CardProcessorResponse{ID: charge.ID, Status: charge.Status, Amount: charge.Amount}

	case workitem.OpCaptureCharge:
		payload.ChargeID = defaultID(payload.ChargeID, deps, cardChargeID(workitem.OpAuthorizeCharge))
		if err := requireID(p.Type(), meta.Type, "charge id", payload.ChargeID); err != nil {
			return processing.Outcome{}, err
		}
		charge, err := client.CaptureCharge(ctx, account, payload.ChargeID.String(), payload.Amount)
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = &workitem.CardProcessorResponse{ID: charge.ID, Status: charge.Status, Amount: charge.Amount}

	case workitem.OpCancelAuthorization:
		payload.ChargeID = defaultID(payload.ChargeID, deps, cardChargeID(workitem.OpAuthorizeCharge))
		if err := requireID(p.Type(), meta.Type, "charge id", payload.ChargeID); err != nil {
			return processing.Outcome{}, err
		}
		charge, err := client.CancelAuthorization(ctx, account, payload.ChargeID.String())
		if services.HasCode(err, cardpay.CodeAuthorizationTooOld) {
			logger.Info("authorization already released; treating cancel as done",
				logging.String(logging.FieldOperation, string(meta.Type)),
				logging.String("charge_id", payload.ChargeID.String()))
			return processing.Done(raw), nil
		}
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = &workitem.CardProcessorResponse{ID: charge.ID, Status: charge.Status, Amount: charge.Amount}

	case workitem.OpRefundCharge:
		payload.ChargeID = defaultID(payload.ChargeID, deps, cardChargeID(workitem.OpCreateCharge, workitem.OpCaptureCharge, workitem.OpAuthorizeCharge))
		if err := requireID(p.Type(), meta.Type, "charge id", payload.ChargeID); err != nil {
			return processing.Outcome{}, err
		}
		refund, err := client.RefundCharge(ctx, account, payload.ChargeID.String(), payload.Amount)
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = &workitem.CardProcessorResponse{ID: refund.ID, Status: refund.Status, Amount: refund.Amount}

	case workitem.OpAddPaymentMethod:
		method, err := client.AddPaymentMethod(ctx, account, payload.CustomerID.String(), payload.Token)
		if err != nil {
			return processing.Outcome{}, err
		}
		meta.Response = &workitem.CardProcessorResponse{
			ID:       method.ID,
			Brand:    method.Brand,
			Last4:    method.Last4,
			ExpMonth: method.ExpMonth,
			ExpYear:  method.ExpYear,
		}

	default:
		return processing.Outcome{}, notImplemented(p.Type(), meta.Type)
	}
	return processing.Done(meta), nil
}

func cardPaymentMethodID(meta workitem.Metadata) workitem.ExternalID {
	if m, ok := meta.(workitem.CardProcessorMetadata); ok && m.Type == workitem.OpAddPaymentMethod && m.Response != nil {
		return m.Response.ID
	}
	return callbackID(meta, workitem.TypePaymentSourceAdded)
}

func cardChargeID(ops ...workitem.Operation) func(workitem.Metadata) workitem.ExternalID {
	return func(meta workitem.Metadata) workitem.ExternalID {
		m, ok := meta.(workitem.CardProcessorMetadata)
		if !ok || m.Response == nil {
			return ""
		}
		for _, op := range ops {
			if m.Type == op {
				return m.Response.ID
			}
		}
		return ""
	}
}
