package domain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"futures/internal/services"
)

// ErrReadOnly is returned when a write is attempted through a read-only Tx.
var ErrReadOnly = errors.New("domain transaction is read-only")

// Reader loads aggregates.
type Reader interface {
	LoadMemberRelationship(ctx context.Context, id int64) (*MemberRelationship, error)
	LoadOrder(ctx context.Context, id int64) (*Order, error)
	LoadDeliverable(ctx context.Context, id int64) (*Deliverable, error)
	OrderDeliverables(ctx context.Context, orderID int64) ([]Deliverable, error)
	LoadInvoice(ctx context.Context, id int64) (*Invoice, error)
	LoadInvoicePayment(ctx context.Context, id int64) (*InvoicePayment, error)
	PaymentSources(ctx context.Context, buyerRelID int64) ([]PaymentSource, error)
	FindPaymentSourceByExternalSuffix(ctx context.Context, buyerRelID int64, test bool, suffix string) (*PaymentSource, error)
}

// Tx is the repository surface handed to processors. Integration processors
// receive a read-only Tx; callback processors receive a writable one.
type Tx interface {
	Reader

	SetMicrositeUserID(ctx context.Context, buyerRelID int64, userID string) error
	SetAccountingCustomerID(ctx context.Context, buyerRelID int64, customerID string) error
	SetOrderMicrosite(ctx context.Context, orderID int64, micrositeID, status string) error
	SetOrderMicrositeStatus(ctx context.Context, orderID int64, status string) error
	SetDeliverableMicrositeMedia(ctx context.Context, deliverableID int64, mediaID, status string) error
	SetAccountingInvoiceID(ctx context.Context, invoiceID int64, accountingID string) error
	SetAccountingPaymentID(ctx context.Context, paymentID int64, accountingID string) error
	ClearDefaultPaymentSources(ctx context.Context, buyerRelID int64) (int64, error)
	InsertPaymentSource(ctx context.Context, source PaymentSource) (int64, error)
	SetDefaultPaymentSource(ctx context.Context, id int64) error

	CreateMemberRelationship(ctx context.Context, rel MemberRelationship) (int64, error)
	CreateOrder(ctx context.Context, order Order) (int64, error)
	CreateDeliverable(ctx context.Context, deliverable Deliverable) (int64, error)
	CreateInvoice(ctx context.Context, invoice Invoice) (int64, error)
	CreateInvoicePayment(ctx context.Context, payment InvoicePayment) (int64, error)
}

const (
	memberRelationshipsTable = "member_relationships"
	ordersTable              = "orders"
	deliverablesTable        = "deliverables"
	invoicesTable            = "invoices"
	invoicePaymentsTable     = "invoice_payments"
	paymentSourcesTable      = "payment_sources"

	idColumn = "id"
)

// timeLayout matches the work item store so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type sqlTx struct {
	tx       *sql.Tx
	builder  sq.StatementBuilderType
	writable bool
	now      func() time.Time
}

// NewTx wraps an open database transaction. Writes fail with ErrReadOnly
// unless writable is set.
func NewTx(tx *sql.Tx, writable bool) Tx {
	return &sqlTx{
		tx:       tx,
		builder:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		writable: writable,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (t *sqlTx) ensureWritable(operation string) error {
	if !t.writable {
		return services.Wrap(services.ErrContract, "domain", operation, "write attempted in read-only transaction", ErrReadOnly)
	}
	return nil
}

func (t *sqlTx) exec(ctx context.Context, operation string, builder sq.Sqlizer) (sql.Result, error) {
	if err := t.ensureWritable(operation); err != nil {
		return nil, err
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("domain - %s - ToSql: %w", operation, err)
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("domain - %s - exec: %w", operation, err)
	}
	return res, nil
}

// update sets columns on the row id of table and reports a not-found error
// when no row matched.
func (t *sqlTx) update(ctx context.Context, operation, table string, id int64, values map[string]any) error {
	res, err := t.exec(ctx, operation, t.builder.Update(table).SetMap(values).Where(sq.Eq{idColumn: id}))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(operation, table, id)
	}
	return nil
}

func (t *sqlTx) insert(ctx context.Context, operation, table string, values map[string]any) (int64, error) {
	res, err := t.exec(ctx, operation, t.builder.Insert(table).SetMap(values))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("domain - %s - last insert id: %w", operation, err)
	}
	return id, nil
}

func (t *sqlTx) queryRow(ctx context.Context, operation string, builder sq.Sqlizer) (*sql.Row, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("domain - %s - ToSql: %w", operation, err)
	}
	return t.tx.QueryRowContext(ctx, query, args...), nil
}

func (t *sqlTx) query(ctx context.Context, operation string, builder sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("domain - %s - ToSql: %w", operation, err)
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("domain - %s - query: %w", operation, err)
	}
	return rows, nil
}

func notFound(operation, table string, id int64) error {
	return services.Wrap(services.ErrNotFound, "domain", operation, fmt.Sprintf("%s %d", table, id), nil)
}

func scanErr(err error, operation, table string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(operation, table, id)
	}
	return fmt.Errorf("domain - %s - scan: %w", operation, err)
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableID(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value sql.NullString) time.Time {
	if !value.Valid || value.String == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(timeLayout, value.String)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339Nano, value.String)
		if err != nil {
			return time.Time{}
		}
	}
	return parsed
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
