package callback

import (
	"context"
	"log/slog"

	"futures/internal/domain"
	"futures/internal/logging"
	"futures/internal/processing"
	"futures/internal/workitem"
)

var vaultingTypes = []workitem.Type{workitem.TypeCardProcessor, workitem.TypePaymentGateway}

// PaymentSourceAdded stores a card or bank account a provider just vaulted.
// With SetDefault the buyer's other sources lose their default flag in the
// same transaction.
type PaymentSourceAdded struct{}

func (PaymentSourceAdded) Type() workitem.Type { return workitem.TypePaymentSourceAdded }

func (p PaymentSourceAdded) Handle(ctx context.Context, logger *slog.Logger, tx domain.Tx, raw workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	meta, err := workitem.MetadataAs[workitem.PaymentSourceAddedMetadata](raw)
	if err != nil {
		return processing.Outcome{}, err
	}
	dep, err := processing.ExpectDependency(deps, p.Type(), vaultingTypes,
		workitem.OpAddPaymentMethod, workitem.OpAddCard, workitem.OpAddBankAccount)
	if err != nil {
		return processing.Outcome{}, err
	}
	source, ok := vaultedSource(dep)
	if !ok {
		return processing.Outcome{}, missingResponse(p.Type(), dep)
	}
	if err := requireExternalID(p.Type(), dep, workitem.ExternalID(source.ExternalID)); err != nil {
		return processing.Outcome{}, err
	}
	if meta.BuyerRelID == 0 {
		return processing.Outcome{}, missingAggregate(p.Type(), "buyerRelId")
	}
	source.BuyerRelID = meta.BuyerRelID
	source.Provider = string(dep.Type)
	source.IsDefault = meta.Payload.SetDefault

	existing, found, err := storedSource(ctx, tx, source)
	if err != nil {
		return processing.Outcome{}, err
	}
	if source.IsDefault && !(found && existing.IsDefault) {
		cleared, err := tx.ClearDefaultPaymentSources(ctx, meta.BuyerRelID)
		if err != nil {
			return processing.Outcome{}, err
		}
		if cleared > 0 {
			logger.Debug("cleared previous default payment source", logging.Int64("buyer_rel_id", meta.BuyerRelID), logging.Int64("cleared", cleared))
		}
	}

	var id int64
	if found {
		id = existing.ID
		if source.IsDefault && !existing.IsDefault {
			if err := tx.SetDefaultPaymentSource(ctx, id); err != nil {
				return processing.Outcome{}, err
			}
		}
		source.Brand, source.Last4 = existing.Brand, existing.Last4
		logger.Info("payment source already stored",
			logging.Int64("buyer_rel_id", meta.BuyerRelID),
			logging.Int64("payment_source_id", id),
			logging.Bool("default", source.IsDefault || existing.IsDefault))
	} else {
		id, err = tx.InsertPaymentSource(ctx, source)
		if err != nil {
			return processing.Outcome{}, err
		}
		logger.Info("payment source stored",
			logging.Int64("buyer_rel_id", meta.BuyerRelID),
			logging.Int64("payment_source_id", id),
			logging.String("kind", string(source.Kind)),
			logging.Bool("default", source.IsDefault))
	}

	meta.Response = &workitem.CallbackResponse{
		ExternalID: workitem.ExternalID(source.ExternalID),
		InternalID: id,
		Brand:      source.Brand,
		Last4:      source.Last4,
	}
	return processing.Done(meta), nil
}

// storedSource finds the buyer's row for the same provider id and mode. A
// duplicate vaulting recovered by the gateway resolves to a card already on
// file.
func storedSource(ctx context.Context, tx domain.Tx, source domain.PaymentSource) (domain.PaymentSource, bool, error) {
	sources, err := tx.PaymentSources(ctx, source.BuyerRelID)
	if err != nil {
		return domain.PaymentSource{}, false, err
	}
	for _, src := range sources {
		if src.ExternalID == source.ExternalID && src.Test == source.Test {
			return src, true, nil
		}
	}
	return domain.PaymentSource{}, false, nil
}

// vaultedSource maps a vaulting response onto a payment source.
func vaultedSource(dep workitem.Dependency) (domain.PaymentSource, bool) {
	switch m := dep.Metadata.(type) {
	case workitem.CardProcessorMetadata:
		if m.Response == nil {
			return domain.PaymentSource{}, false
		}
		return domain.PaymentSource{
			Kind:       domain.PaymentSourceCard,
			Brand:      m.Response.Brand,
			Last4:      m.Response.Last4,
			ExpMonth:   m.Response.ExpMonth,
			ExpYear:    m.Response.ExpYear,
			ExternalID: m.Response.ID.String(),
			Test:       m.Test,
		}, true
	case workitem.PaymentGatewayMetadata:
		if m.Response == nil || m.Response.PaymentProfileID.Empty() {
			return domain.PaymentSource{}, false
		}
		kind := domain.PaymentSourceCard
		last4 := m.Response.Last4
		if m.Type == workitem.OpAddBankAccount {
			kind = domain.PaymentSourceBankAccount
			if last4 == "" {
				last4 = m.Payload.Last4
			}
		}
		return domain.PaymentSource{
			Kind:       kind,
			Brand:      m.Response.Brand,
			Last4:      last4,
			ExpMonth:   m.Response.ExpMonth,
			ExpYear:    m.Response.ExpYear,
			ExternalID: m.Response.ProfileID.String() + "/" + m.Response.PaymentProfileID.String(),
			Test:       m.Test,
		}, true
	default:
		return domain.PaymentSource{}, false
	}
}
