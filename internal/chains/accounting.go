package chains

import (
	"context"
	"fmt"

	"futures/internal/domain"
	"futures/internal/workitem"
)

// ensureCustomer creates an upsert_customer item unless one is already open.
func ensureCustomer(ctx context.Context, tx chainTx, rel *domain.MemberRelationship, test bool) (*workitem.Item, error) {
	subject := BuyerSubject(rel.ID)
	open, err := openWithOp(ctx, tx.items, workitem.TypeAccounting, subject, workitem.OpUpsertCustomer)
	if err != nil || len(open) > 0 {
		return nil, err
	}
	name := rel.BuyerName
	if name == "" {
		name = rel.BuyerEmail
	}
	return create(ctx, tx.items, subject, workitem.AccountingMetadata{
		Type:     workitem.OpUpsertCustomer,
		Test:     test,
		MemberID: rel.MemberID,
		Refs:     workitem.Refs{BuyerRelID: rel.ID},
		Payload: workitem.AccountingPayload{
			CustomerID:  workitem.ExternalID(rel.AccountingCustomerID),
			DisplayName: name,
			Email:       rel.BuyerEmail,
		},
	})
}

// pendingCustomer returns the open upsert_customer item to wait for, creating
// one when the buyer has no accounting customer yet.
func pendingCustomer(ctx context.Context, tx chainTx, rel *domain.MemberRelationship, test bool) (string, *workitem.Item, error) {
	if rel.AccountingCustomerID != "" {
		return "", nil, nil
	}
	open, err := openWithOp(ctx, tx.items, workitem.TypeAccounting, BuyerSubject(rel.ID), workitem.OpUpsertCustomer)
	if err != nil {
		return "", nil, err
	}
	if len(open) > 0 {
		return latestID(open), nil, nil
	}
	created, err := ensureCustomer(ctx, tx, rel, test)
	if err != nil {
		return "", nil, err
	}
	return created.ID, created, nil
}

// SyncInvoice pushes an invoice to the accounting system.
func (c *Chains) SyncInvoice(ctx context.Context, invoiceID int64, test bool) ([]*workitem.Item, error) {
	return c.write(ctx, "sync_invoice", func(tx chainTx) ([]*workitem.Item, error) {
		invoice, err := tx.domain.LoadInvoice(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		rel, err := tx.domain.LoadMemberRelationship(ctx, invoice.BuyerRelID)
		if err != nil {
			return nil, err
		}
		var created []*workitem.Item
		customerDep, customer, err := pendingCustomer(ctx, tx, rel, test)
		if err != nil {
			return nil, err
		}
		if customer != nil {
			created = append(created, customer)
		}

		line := fmt.Sprintf("Invoice %s", invoice.Number)
		if invoice.OrderID != 0 {
			order, err := tx.domain.LoadOrder(ctx, invoice.OrderID)
			if err != nil {
				return nil, err
			}
			line = fmt.Sprintf("Invoice %s: %s", invoice.Number, order.Address)
		}
		item, err := create(ctx, tx.items, InvoiceSubject(invoice.ID), workitem.AccountingMetadata{
			Type:     workitem.OpUpsertInvoice,
			Test:     test,
			MemberID: rel.MemberID,
			Refs:     workitem.Refs{BuyerRelID: rel.ID, InternalInvoiceID: invoice.ID},
			Payload: workitem.AccountingPayload{
				CustomerID: workitem.ExternalID(rel.AccountingCustomerID),
				InvoiceID:  workitem.ExternalID(invoice.AccountingInvoiceID),
				DocNumber:  invoice.Number,
				Lines:      []workitem.AccountingLine{{Description: line, Amount: invoice.TotalCents}},
			},
		}, customerDep)
		if err != nil {
			return nil, err
		}
		return append(created, item), nil
	})
}

// RecordInvoicePayment records a payment against an invoice that is
// already synced or has an open sync.
func (c *Chains) RecordInvoicePayment(ctx context.Context, paymentID int64, test bool) ([]*workitem.Item, error) {
	return c.write(ctx, "record_invoice_payment", func(tx chainTx) ([]*workitem.Item, error) {
		payment, err := tx.domain.LoadInvoicePayment(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if payment.AccountingPaymentID != "" {
			return nil, invalid("record_invoice_payment", "payment %d already recorded as %s", payment.ID, payment.AccountingPaymentID)
		}
		invoice, err := tx.domain.LoadInvoice(ctx, payment.InvoiceID)
		if err != nil {
			return nil, err
		}
		rel, err := tx.domain.LoadMemberRelationship(ctx, invoice.BuyerRelID)
		if err != nil {
			return nil, err
		}
		var depends []string
		if invoice.AccountingInvoiceID == "" {
			open, err := openWithOp(ctx, tx.items, workitem.TypeAccounting, InvoiceSubject(invoice.ID), workitem.OpUpsertInvoice)
			if err != nil {
				return nil, err
			}
			if len(open) == 0 {
				return nil, invalid("record_invoice_payment", "invoice %d is not synced; sync the invoice first", invoice.ID)
			}
			depends = append(depends, latestID(open))
		}
		if rel.AccountingCustomerID == "" {
			open, err := openWithOp(ctx, tx.items, workitem.TypeAccounting, BuyerSubject(rel.ID), workitem.OpUpsertCustomer)
			if err != nil {
				return nil, err
			}
			depends = append(depends, latestID(open))
		}
		paidAt := ""
		if !payment.PaidAt.IsZero() {
			paidAt = payment.PaidAt.UTC().Format("2006-01-02")
		}
		item, err := create(ctx, tx.items, InvoiceSubject(invoice.ID), workitem.AccountingMetadata{
			Type:     workitem.OpRecordInvoicePayment,
			Test:     test,
			MemberID: rel.MemberID,
			Refs:     workitem.Refs{BuyerRelID: rel.ID, InternalInvoiceID: invoice.ID, InternalInvoicePaymentID: payment.ID},
			Payload: workitem.AccountingPayload{
				CustomerID: workitem.ExternalID(rel.AccountingCustomerID),
				InvoiceID:  workitem.ExternalID(invoice.AccountingInvoiceID),
				Amount:     payment.AmountCents,
				PaidAt:     paidAt,
			},
		}, depends...)
		if err != nil {
			return nil, err
		}
		return []*workitem.Item{item}, nil
	})
}
