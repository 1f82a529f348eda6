package integration

import (
	"context"
	"log/slog"

	"futures/internal/domain"
	"futures/internal/logging"
	"futures/internal/processing"
	"futures/internal/services/accounting"
	"futures/internal/services/tenant"
	"futures/internal/workitem"
)

// Accounting drives the accounting system.
type Accounting struct {
	clients ClientPair[accounting.Client]
	tenants tenant.Resolver
}

// NewAccounting constructs the accounting integration.
func NewAccounting(live, test accounting.Client, tenants tenant.Resolver) *Accounting {
	return &Accounting{clients: ClientPair[accounting.Client]{Live: live, Test: test}, tenants: tenants}
}

func (p *Accounting) Type() workitem.Type { return workitem.TypeAccounting }

func (p *Accounting) HealthCheck(context.Context) processing.Health {
	return p.clients.health(string(workitem.TypeAccounting))
}

func (p *Accounting) Handle(ctx context.Context, logger *slog.Logger, _ domain.Tx, raw workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	meta, err := workitem.MetadataAs[workitem.AccountingMetadata](raw)
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
	logger.Debug("accounting call", logging.String(logging.FieldOperation, string(meta.Type)), logging.Bool("test", meta.Test))

	payload := &meta.Payload
	var rec accounting.Record
	switch meta.Type {
	case workitem.OpUpsertCustomer:
		rec, err = client.UpsertCustomer(ctx, account, accounting.CustomerRequest{
			ID:          payload.CustomerID.String(),
			DisplayName: payload.DisplayName,
			Email:       payload.Email,
		})

	case workitem.OpUpsertInvoice:
		payload.CustomerID = defaultID(payload.CustomerID, deps, accountingCustomerID)
		if err := requireID(p.Type(), meta.Type, "customer id", payload.CustomerID); err != nil {
			return processing.Outcome{}, err
		}
		lines := make([]accounting.Line, 0, len(payload.Lines))
		for _, l := range payload.Lines {
			lines = append(lines, accounting.Line{Description: l.Description, Amount: l.Amount})
		}
		rec, err = client.UpsertInvoice(ctx, account, accounting.InvoiceRequest{
			ID:         payload.InvoiceID.String(),
			CustomerID: payload.CustomerID.String(),
			DocNumber:  payload.DocNumber,
			Lines:      lines,
		})

	case workitem.OpRecordInvoicePayment:
		payload.CustomerID = defaultID(payload.CustomerID, deps, accountingCustomerID)
		payload.InvoiceID = defaultID(payload.InvoiceID, deps, accountingInvoiceID)
		if err := requireID(p.Type(), meta.Type, "invoice id", payload.InvoiceID); err != nil {
			return processing.Outcome{}, err
		}
		rec, err = client.RecordInvoicePayment(ctx, account, accounting.PaymentRequest{
			CustomerID: payload.CustomerID.String(),
			InvoiceID:  payload.InvoiceID.String(),
			Amount:     payload.Amount,
			PaidAt:     payload.PaidAt,
		})

	default:
		return processing.Outcome{}, notImplemented(p.Type(), meta.Type)
	}
	if err != nil {
		return processing.Outcome{}, err
	}
	meta.Response = &workitem.AccountingResponse{ID: rec.ID, SyncToken: rec.SyncToken}
	return processing.Done(meta), nil
}

func accountingCustomerID(meta workitem.Metadata) workitem.ExternalID {
	if m, ok := meta.(workitem.AccountingMetadata); ok && m.Type == workitem.OpUpsertCustomer && m.Response != nil {
		return m.Response.ID
	}
	return callbackID(meta, workitem.TypeAccountingCustomerSynced)
}

func accountingInvoiceID(meta workitem.Metadata) workitem.ExternalID {
	if m, ok := meta.(workitem.AccountingMetadata); ok && m.Type == workitem.OpUpsertInvoice && m.Response != nil {
		return m.Response.ID
	}
	return callbackID(meta, workitem.TypeAccountingInvoiceSynced)
}
