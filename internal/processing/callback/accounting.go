package callback

import (
	"context"
	"log/slog"

	"futures/internal/domain"
	"futures/internal/logging"
	"futures/internal/processing"
	"futures/internal/workitem"
)

var accountingOnly = []workitem.Type{workitem.TypeAccounting}

func accountingResponse(owner workitem.Type, deps []workitem.Dependency, op workitem.Operation) (*workitem.AccountingResponse, error) {
	dep, err := processing.ExpectDependency(deps, owner, accountingOnly, op)
	if err != nil {
		return nil, err
	}
	meta, ok := dep.Metadata.(workitem.AccountingMetadata)
	if !ok || meta.Response == nil {
		return nil, missingResponse(owner, dep)
	}
	if err := requireExternalID(owner, dep, meta.Response.ID); err != nil {
		return nil, err
	}
	return meta.Response, nil
}

// AccountingCustomerSynced stores the buyer's accounting customer id.
type AccountingCustomerSynced struct{}

func (AccountingCustomerSynced) Type() workitem.Type { return workitem.TypeAccountingCustomerSynced }

func (p AccountingCustomerSynced) Handle(ctx context.Context, logger *slog.Logger, tx domain.Tx, raw workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	meta, err := workitem.MetadataAs[workitem.AccountingCustomerSyncedMetadata](raw)
	if err != nil {
		return processing.Outcome{}, err
	}
	res, err := accountingResponse(p.Type(), deps, workitem.OpUpsertCustomer)
	if err != nil {
		return processing.Outcome{}, err
	}
	if meta.BuyerRelID == 0 {
		return processing.Outcome{}, missingAggregate(p.Type(), "buyerRelId")
	}
	if err := tx.SetAccountingCustomerID(ctx, meta.BuyerRelID, res.ID.String()); err != nil {
		return processing.Outcome{}, err
	}
	logger.Info("accounting customer linked", logging.Int64("buyer_rel_id", meta.BuyerRelID), logging.String("customer_id", res.ID.String()))
	meta.Response = &workitem.CallbackResponse{ExternalID: res.ID, InternalID: meta.BuyerRelID}
	return processing.Done(meta), nil
}

// AccountingInvoiceSynced stores an invoice's accounting id.
type AccountingInvoiceSynced struct{}

func (AccountingInvoiceSynced) Type() workitem.Type { return workitem.TypeAccountingInvoiceSynced }

func (p AccountingInvoiceSynced) Handle(ctx context.Context, logger *slog.Logger, tx domain.Tx, raw workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	meta, err := workitem.MetadataAs[workitem.AccountingInvoiceSyncedMetadata](raw)
	if err != nil {
		return processing.Outcome{}, err
	}
	res, err := accountingResponse(p.Type(), deps, workitem.OpUpsertInvoice)
	if err != nil {
		return processing.Outcome{}, err
	}
	if meta.InternalInvoiceID == 0 {
		return processing.Outcome{}, missingAggregate(p.Type(), "internalInvoiceId")
	}
	if err := tx.SetAccountingInvoiceID(ctx, meta.InternalInvoiceID, res.ID.String()); err != nil {
		return processing.Outcome{}, err
	}
	logger.Info("accounting invoice linked", logging.Int64("invoice_id", meta.InternalInvoiceID), logging.String("accounting_invoice_id", res.ID.String()))
	meta.Response = &workitem.CallbackResponse{ExternalID: res.ID, InternalID: meta.InternalInvoiceID}
	return processing.Done(meta), nil
}

// AccountingPaymentRecorded stores an invoice payment's accounting id.
type AccountingPaymentRecorded struct{}

func (AccountingPaymentRecorded) Type() workitem.Type { return workitem.TypeAccountingPaymentRecorded }

func (p AccountingPaymentRecorded) Handle(ctx context.Context, logger *slog.Logger, tx domain.Tx, raw workitem.Metadata, deps []workitem.Dependency) (processing.Outcome, error) {
	meta, err := workitem.MetadataAs[workitem.AccountingPaymentRecordedMetadata](raw)
	if err != nil {
		return processing.Outcome{}, err
	}
	res, err := accountingResponse(p.Type(), deps, workitem.OpRecordInvoicePayment)
	if err != nil {
		return processing.Outcome{}, err
	}
	if meta.InternalInvoicePaymentID == 0 {
		return processing.Outcome{}, missingAggregate(p.Type(), "internalInvoicePaymentId")
	}
	if err := tx.SetAccountingPaymentID(ctx, meta.InternalInvoicePaymentID, res.ID.String()); err != nil {
		return processing.Outcome{}, err
	}
	logger.Info("accounting payment linked", logging.Int64("invoice_payment_id", meta.InternalInvoicePaymentID))
	meta.Response = &workitem.CallbackResponse{ExternalID: res.ID, InternalID: meta.InternalInvoicePaymentID}
	return processing.Done(meta), nil
}
