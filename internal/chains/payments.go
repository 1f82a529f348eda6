package chains

import (
	"context"
	"strings"

	"futures/internal/domain"
	"futures/internal/workitem"
)

// PaymentSourceRequest describes a card or bank account to vault for a buyer.
type PaymentSourceRequest struct {
	BuyerRelID int64
	// Provider is TypeCardProcessor or TypePaymentGateway.
	Provider workitem.Type
	Kind     domain.PaymentSourceKind
	// CustomerID is the card processor customer; ProfileID the gateway
	// customer profile.
	CustomerID    string
	ProfileID     string
	Token         string
	RoutingNumber string
	AccountNumber string
	AccountName   string
	AccountType   string
	SetDefault    bool
	Test          bool
}

// AddPaymentSource vaults a card or bank account. The payment_source_added
// callback stores it once the provider answers.
func (c *Chains) AddPaymentSource(ctx context.Context, req PaymentSourceRequest) ([]*workitem.Item, error) {
	return c.write(ctx, "add_payment_source", func(tx chainTx) ([]*workitem.Item, error) {
		rel, err := tx.domain.LoadMemberRelationship(ctx, req.BuyerRelID)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.Token) == "" && req.Kind != domain.PaymentSourceBankAccount {
			return nil, invalid("add_payment_source", "card token required")
		}
		refs := workitem.Refs{BuyerRelID: rel.ID, SetDefault: req.SetDefault}
		var meta workitem.Metadata
		switch req.Provider {
		case workitem.TypeCardProcessor:
			if req.Kind == domain.PaymentSourceBankAccount {
				return nil, invalid("add_payment_source", "card processor does not vault bank accounts")
			}
			meta = workitem.CardProcessorMetadata{
				Type:     workitem.OpAddPaymentMethod,
				Test:     req.Test,
				MemberID: rel.MemberID,
				Refs:     refs,
				Payload: workitem.CardProcessorPayload{
					CustomerID: workitem.ExternalID(req.CustomerID),
					Token:      req.Token,
				},
			}
		case workitem.TypePaymentGateway:
			gw := workitem.PaymentGatewayMetadata{
				Type:     workitem.OpAddCard,
				Test:     req.Test,
				MemberID: rel.MemberID,
				Refs:     refs,
				Payload: workitem.PaymentGatewayPayload{
					ProfileID: workitem.ExternalID(req.ProfileID),
					CardNonce: req.Token,
				},
			}
			if req.Kind == domain.PaymentSourceBankAccount {
				if req.RoutingNumber == "" || req.AccountNumber == "" {
					return nil, invalid("add_payment_source", "routing and account number required")
				}
				gw.Type = workitem.OpAddBankAccount
				gw.Payload.CardNonce = ""
				gw.Payload.RoutingNumber = req.RoutingNumber
				gw.Payload.AccountNumber = req.AccountNumber
				gw.Payload.AccountName = req.AccountName
				gw.Payload.AccountType = req.AccountType
				gw.Payload.Last4 = lastFour(req.AccountNumber)
			}
			meta = gw
		default:
			return nil, invalid("add_payment_source", "unsupported provider %q", req.Provider)
		}
		item, err := create(ctx, tx.items, BuyerSubject(rel.ID), meta)
		if err != nil {
			return nil, err
		}
		return []*workitem.Item{item}, nil
	})
}

// ChargeRequest describes a charge against a buyer's payment source.
type ChargeRequest struct {
	BuyerRelID int64
	// PaymentSourceID selects a stored source; zero uses the buyer's default,
	// or the newest source still being vaulted.
	PaymentSourceID int64
	Amount          int64
	Currency        string
	Description     string
	AuthorizeOnly   bool
	Test            bool
}

// SubmitCharge charges (or authorizes) a buyer's payment source.
func (c *Chains) SubmitCharge(ctx context.Context, req ChargeRequest) ([]*workitem.Item, error) {
	return c.write(ctx, "submit_charge", func(tx chainTx) ([]*workitem.Item, error) {
		if req.Amount <= 0 {
			return nil, invalid("submit_charge", "amount must be positive")
		}
		rel, err := tx.domain.LoadMemberRelationship(ctx, req.BuyerRelID)
		if err != nil {
			return nil, err
		}
		source, pending, err := chargeSource(ctx, tx, rel.ID, req.PaymentSourceID)
		if err != nil {
			return nil, err
		}

		provider, kind := workitem.Type(source.Provider), source.Kind
		var depends []string
		if pending != nil {
			provider, kind = pendingKind(pending)
			depends = append(depends, pending.ID)
		}

		var meta workitem.Metadata
		switch provider {
		case workitem.TypeCardProcessor:
			op := workitem.OpCreateCharge
			if req.AuthorizeOnly {
				op = workitem.OpAuthorizeCharge
			}
			meta = workitem.CardProcessorMetadata{
				Type:     op,
				Test:     req.Test,
				MemberID: rel.MemberID,
				Refs:     workitem.Refs{BuyerRelID: rel.ID},
				Payload: workitem.CardProcessorPayload{
					PaymentMethodID: workitem.ExternalID(source.ExternalID),
					Amount:          req.Amount,
					Currency:        req.Currency,
					Description:     req.Description,
				},
			}
		case workitem.TypePaymentGateway:
			op := workitem.OpChargeCard
			switch {
			case kind == domain.PaymentSourceBankAccount && req.AuthorizeOnly:
				return nil, invalid("submit_charge", "bank accounts cannot be authorized without capture")
			case kind == domain.PaymentSourceBankAccount:
				op = workitem.OpChargeECheck
			case req.AuthorizeOnly:
				op = workitem.OpAuthorizeCard
			}
			profile, paymentProfile, _ := strings.Cut(source.ExternalID, "/")
			meta = workitem.PaymentGatewayMetadata{
				Type:     op,
				Test:     req.Test,
				MemberID: rel.MemberID,
				Refs:     workitem.Refs{BuyerRelID: rel.ID},
				Payload: workitem.PaymentGatewayPayload{
					ProfileID:        workitem.ExternalID(profile),
					PaymentProfileID: workitem.ExternalID(paymentProfile),
					Amount:           req.Amount,
					Description:      req.Description,
				},
			}
		default:
			return nil, invalid("submit_charge", "payment source has unknown provider %q", provider)
		}
		item, err := create(ctx, tx.items, BuyerSubject(rel.ID), meta, depends...)
		if err != nil {
			return nil, err
		}
		return []*workitem.Item{item}, nil
	})
}

// chargeSource picks the stored source to charge, or the open vaulting item
// to wait for when the buyer has no usable source yet.
func chargeSource(ctx context.Context, tx chainTx, buyerRelID, sourceID int64) (domain.PaymentSource, *workitem.Item, error) {
	sources, err := tx.domain.PaymentSources(ctx, buyerRelID)
	if err != nil {
		return domain.PaymentSource{}, nil, err
	}
	for _, src := range sources {
		if (sourceID != 0 && src.ID == sourceID) || (sourceID == 0 && src.IsDefault) {
			return src, nil, nil
		}
	}
	if sourceID != 0 {
		return domain.PaymentSource{}, nil, invalid("submit_charge", "payment source %d not found for buyer %d", sourceID, buyerRelID)
	}
	subject := BuyerSubject(buyerRelID)
	var pending []*workitem.Item
	for _, lookup := range []struct {
		t   workitem.Type
		ops []workitem.Operation
	}{
		{workitem.TypeCardProcessor, []workitem.Operation{workitem.OpAddPaymentMethod}},
		{workitem.TypePaymentGateway, []workitem.Operation{workitem.OpAddCard, workitem.OpAddBankAccount}},
	} {
		open, err := openWithOp(ctx, tx.items, lookup.t, subject, lookup.ops...)
		if err != nil {
			return domain.PaymentSource{}, nil, err
		}
		pending = append(pending, open...)
	}
	if len(pending) == 0 {
		return domain.PaymentSource{}, nil, invalid("submit_charge", "buyer %d has no default payment source", buyerRelID)
	}
	newest := pending[0]
	for _, item := range pending[1:] {
		if item.CreatedAt.After(newest.CreatedAt) {
			newest = item
		}
	}
	return domain.PaymentSource{}, newest, nil
}

func pendingKind(item *workitem.Item) (workitem.Type, domain.PaymentSourceKind) {
	meta, err := item.Metadata()
	if err == nil {
		if op, ok := workitem.SubOperation(meta); ok && op == workitem.OpAddBankAccount {
			return item.Type, domain.PaymentSourceBankAccount
		}
	}
	return item.Type, domain.PaymentSourceCard
}

func lastFour(number string) string {
	number = strings.TrimSpace(number)
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}
