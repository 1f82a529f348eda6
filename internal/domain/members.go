package domain

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

func (t *sqlTx) LoadMemberRelationship(ctx context.Context, id int64) (*MemberRelationship, error) {
	const op = "load member relationship"
	row, err := t.queryRow(ctx, op, t.builder.
		Select("id", "member_id", "buyer_name", "buyer_email", "microsite_user_id", "accounting_customer_id").
		From(memberRelationshipsTable).
		Where(sq.Eq{idColumn: id}))
	if err != nil {
		return nil, err
	}
	var (
		rel                         MemberRelationship
		name, email, userID, custID sql.NullString
	)
	if err := row.Scan(&rel.ID, &rel.MemberID, &name, &email, &userID, &custID); err != nil {
		return nil, scanErr(err, op, memberRelationshipsTable, id)
	}
	rel.BuyerName = name.String
	rel.BuyerEmail = email.String
	rel.MicrositeUserID = userID.String
	rel.AccountingCustomerID = custID.String
	return &rel, nil
}

func (t *sqlTx) SetMicrositeUserID(ctx context.Context, buyerRelID int64, userID string) error {
	return t.update(ctx, "set microsite user id", memberRelationshipsTable, buyerRelID, map[string]any{
		"microsite_user_id": nullable(userID),
	})
}

func (t *sqlTx) SetAccountingCustomerID(ctx context.Context, buyerRelID int64, customerID string) error {
	return t.update(ctx, "set accounting customer id", memberRelationshipsTable, buyerRelID, map[string]any{
		"accounting_customer_id": nullable(customerID),
	})
}

func (t *sqlTx) CreateMemberRelationship(ctx context.Context, rel MemberRelationship) (int64, error) {
	return t.insert(ctx, "create member relationship", memberRelationshipsTable, map[string]any{
		"member_id":              rel.MemberID,
		"buyer_name":             nullable(rel.BuyerName),
		"buyer_email":            nullable(rel.BuyerEmail),
		"microsite_user_id":      nullable(rel.MicrositeUserID),
		"accounting_customer_id": nullable(rel.AccountingCustomerID),
	})
}
