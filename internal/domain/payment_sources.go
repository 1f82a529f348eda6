package domain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"futures/internal/services"
)

var paymentSourceColumns = []string{
	"id", "buyer_rel_id", "kind", "provider", "brand", "last4", "exp_month", "exp_year",
	"external_id", "is_default", "test", "created_at",
}

func scanPaymentSource(scanner interface{ Scan(dest ...any) error }) (PaymentSource, error) {
	var (
		src                                PaymentSource
		kind                               string
		provider, brand, last4, externalID sql.NullString
		created                            sql.NullString
		expMonth, expYear                  sql.NullInt64
		isDefault, test                    int
	)
	if err := scanner.Scan(&src.ID, &src.BuyerRelID, &kind, &provider, &brand, &last4, &expMonth, &expYear,
		&externalID, &isDefault, &test, &created); err != nil {
		return PaymentSource{}, err
	}
	src.Kind = PaymentSourceKind(kind)
	src.Provider = provider.String
	src.Brand = brand.String
	src.Last4 = last4.String
	src.ExpMonth = int(expMonth.Int64)
	src.ExpYear = int(expYear.Int64)
	src.ExternalID = externalID.String
	src.IsDefault = isDefault != 0
	src.Test = test != 0
	src.CreatedAt = parseTime(created)
	return src, nil
}

// PaymentSources lists a buyer's payment sources, oldest first.
func (t *sqlTx) PaymentSources(ctx context.Context, buyerRelID int64) ([]PaymentSource, error) {
	const op = "payment sources"
	rows, err := t.query(ctx, op, t.builder.
		Select(paymentSourceColumns...).
		From(paymentSourcesTable).
		Where(sq.Eq{"buyer_rel_id": buyerRelID}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PaymentSource
	for rows.Next() {
		src, err := scanPaymentSource(rows)
		if err != nil {
			return nil, fmt.Errorf("domain - %s - scan: %w", op, err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// likeEscaper escapes LIKE wildcards; queries pair it with ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindPaymentSourceByExternalSuffix finds the buyer's most recent source in
// the given mode whose composite external id ends with "/"+suffix, or equals
// suffix. Gateway sources are stored as "profileID/paymentProfileID".
func (t *sqlTx) FindPaymentSourceByExternalSuffix(ctx context.Context, buyerRelID int64, test bool, suffix string) (*PaymentSource, error) {
	const op = "find payment source"
	if suffix == "" {
		return nil, services.Wrap(services.ErrValidation, "domain", op, "empty external id", nil)
	}
	row, err := t.queryRow(ctx, op, t.builder.
		Select(paymentSourceColumns...).
		From(paymentSourcesTable).
		Where(sq.Eq{"buyer_rel_id": buyerRelID, "test": boolToInt(test)}).
		Where(sq.Or{
			sq.Expr(`external_id LIKE ? ESCAPE '\'`, "%/"+likeEscaper.Replace(suffix)),
			sq.Eq{"external_id": suffix},
		}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1))
	if err != nil {
		return nil, err
	}
	src, err := scanPaymentSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrNotFound, "domain", op,
				fmt.Sprintf("external id %s for buyer %d", suffix, buyerRelID), nil)
		}
		return nil, fmt.Errorf("domain - %s - scan: %w", op, err)
	}
	return &src, nil
}

// SetDefaultPaymentSource flags one source as its buyer's default. Callers
// clear the buyer's other defaults first in the same transaction.
func (t *sqlTx) SetDefaultPaymentSource(ctx context.Context, id int64) error {
	return t.update(ctx, "set default payment source", paymentSourcesTable, id, map[string]any{"is_default": 1})
}

// ClearDefaultPaymentSources unsets the default flag on every source the
// buyer owns and returns how many were changed.
func (t *sqlTx) ClearDefaultPaymentSources(ctx context.Context, buyerRelID int64) (int64, error) {
	res, err := t.exec(ctx, "clear default payment sources", t.builder.
		Update(paymentSourcesTable).
		Set("is_default", 0).
		Where(sq.Eq{"buyer_rel_id": buyerRelID, "is_default": 1}))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *sqlTx) InsertPaymentSource(ctx context.Context, src PaymentSource) (int64, error) {
	created := src.CreatedAt
	if created.IsZero() {
		created = t.now()
	}
	return t.insert(ctx, "insert payment source", paymentSourcesTable, map[string]any{
		"buyer_rel_id": src.BuyerRelID,
		"kind":         string(src.Kind),
		"provider":     nullable(src.Provider),
		"brand":        nullable(src.Brand),
		"last4":        nullable(src.Last4),
		"exp_month":    src.ExpMonth,
		"exp_year":     src.ExpYear,
		"external_id":  nullable(src.ExternalID),
		"is_default":   boolToInt(src.IsDefault),
		"test":         boolToInt(src.Test),
		"created_at":   formatTime(created),
	})
}
