package domain

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

func (t *sqlTx) LoadInvoice(ctx context.Context, id int64) (*Invoice, error) {
	const op = "load invoice"
	row, err := t.queryRow(ctx, op, t.builder.
		Select("id", "order_id", "buyer_rel_id", "number", "total_cents", "accounting_invoice_id").
		From(invoicesTable).
		Where(sq.Eq{idColumn: id}))
	if err != nil {
		return nil, err
	}
	var (
		inv                  Invoice
		orderID              sql.NullInt64
		number, accountingID sql.NullString
	)
	if err := row.Scan(&inv.ID, &orderID, &inv.BuyerRelID, &number, &inv.TotalCents, &accountingID); err != nil {
		return nil, scanErr(err, op, invoicesTable, id)
	}
	inv.OrderID = orderID.Int64
	inv.Number = number.String
	inv.AccountingInvoiceID = accountingID.String
	return &inv, nil
}

func (t *sqlTx) SetAccountingInvoiceID(ctx context.Context, invoiceID int64, accountingID string) error {
	return t.update(ctx, "set accounting invoice id", invoicesTable, invoiceID, map[string]any{
		"accounting_invoice_id": nullable(accountingID),
	})
}

func (t *sqlTx) CreateInvoice(ctx context.Context, inv Invoice) (int64, error) {
	return t.insert(ctx, "create invoice", invoicesTable, map[string]any{
		"order_id":              nullableID(inv.OrderID),
		"buyer_rel_id":          inv.BuyerRelID,
		"number":                nullable(inv.Number),
		"total_cents":           inv.TotalCents,
		"accounting_invoice_id": nullable(inv.AccountingInvoiceID),
	})
}

func (t *sqlTx) LoadInvoicePayment(ctx context.Context, id int64) (*InvoicePayment, error) {
	const op = "load invoice payment"
	row, err := t.queryRow(ctx, op, t.builder.
		Select("id", "invoice_id", "amount_cents", "paid_at", "accounting_payment_id").
		From(invoicePaymentsTable).
		Where(sq.Eq{idColumn: id}))
	if err != nil {
		return nil, err
	}
	var (
		payment              InvoicePayment
		paidAt, accountingID sql.NullString
	)
	if err := row.Scan(&payment.ID, &payment.InvoiceID, &payment.AmountCents, &paidAt, &accountingID); err != nil {
		return nil, scanErr(err, op, invoicePaymentsTable, id)
	}
	payment.PaidAt = parseTime(paidAt)
	payment.AccountingPaymentID = accountingID.String
	return &payment, nil
}

func (t *sqlTx) SetAccountingPaymentID(ctx context.Context, paymentID int64, accountingID string) error {
	return t.update(ctx, "set accounting payment id", invoicePaymentsTable, paymentID, map[string]any{
		"accounting_payment_id": nullable(accountingID),
	})
}

func (t *sqlTx) CreateInvoicePayment(ctx context.Context, payment InvoicePayment) (int64, error) {
	return t.insert(ctx, "create invoice payment", invoicePaymentsTable, map[string]any{
		"invoice_id":            payment.InvoiceID,
		"amount_cents":          payment.AmountCents,
		"paid_at":               formatTime(payment.PaidAt),
		"accounting_payment_id": nullable(payment.AccountingPaymentID),
	})
}
