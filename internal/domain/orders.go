package domain

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

func (t *sqlTx) LoadOrder(ctx context.Context, id int64) (*Order, error) {
	const op = "load order"
	row, err := t.queryRow(ctx, op, t.builder.
		Select("id", "buyer_rel_id", "address", "microsite_id", "microsite_status").
		From(ordersTable).
		Where(sq.Eq{idColumn: id}))
	if err != nil {
		return nil, err
	}
	var (
		order                        Order
		address, micrositeID, status sql.NullString
	)
	if err := row.Scan(&order.ID, &order.BuyerRelID, &address, &micrositeID, &status); err != nil {
		return nil, scanErr(err, op, ordersTable, id)
	}
	order.Address = address.String
	order.MicrositeID = micrositeID.String
	order.MicrositeStatus = status.String
	return &order, nil
}

func (t *sqlTx) SetOrderMicrosite(ctx context.Context, orderID int64, micrositeID, status string) error {
	return t.update(ctx, "set order microsite", ordersTable, orderID, map[string]any{
		"microsite_id":     nullable(micrositeID),
		"microsite_status": nullable(status),
	})
}

func (t *sqlTx) SetOrderMicrositeStatus(ctx context.Context, orderID int64, status string) error {
	return t.update(ctx, "set order microsite status", ordersTable, orderID, map[string]any{
		"microsite_status": nullable(status),
	})
}

func (t *sqlTx) CreateOrder(ctx context.Context, order Order) (int64, error) {
	return t.insert(ctx, "create order", ordersTable, map[string]any{
		"buyer_rel_id":     order.BuyerRelID,
		"address":          nullable(order.Address),
		"microsite_id":     nullable(order.MicrositeID),
		"microsite_status": nullable(order.MicrositeStatus),
	})
}

var deliverableColumns = []string{"id", "order_id", "name", "kind", "url", "sort_order", "microsite_media_id", "microsite_status"}

func scanDeliverable(scanner interface{ Scan(dest ...any) error }) (Deliverable, error) {
	var (
		d                                Deliverable
		name, kind, url, mediaID, status sql.NullString
	)
	if err := scanner.Scan(&d.ID, &d.OrderID, &name, &kind, &url, &d.SortOrder, &mediaID, &status); err != nil {
		return Deliverable{}, err
	}
	d.Name = name.String
	d.Kind = kind.String
	d.URL = url.String
	d.MicrositeMediaID = mediaID.String
	d.MicrositeStatus = status.String
	return d, nil
}

func (t *sqlTx) LoadDeliverable(ctx context.Context, id int64) (*Deliverable, error) {
	const op = "load deliverable"
	row, err := t.queryRow(ctx, op, t.builder.
		Select(deliverableColumns...).
		From(deliverablesTable).
		Where(sq.Eq{idColumn: id}))
	if err != nil {
		return nil, err
	}
	d, err := scanDeliverable(row)
	if err != nil {
		return nil, scanErr(err, op, deliverablesTable, id)
	}
	return &d, nil
}

// OrderDeliverables lists an order's deliverables in display order.
func (t *sqlTx) OrderDeliverables(ctx context.Context, orderID int64) ([]Deliverable, error) {
	const op = "order deliverables"
	rows, err := t.query(ctx, op, t.builder.
		Select(deliverableColumns...).
		From(deliverablesTable).
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("sort_order", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Deliverable
	for rows.Next() {
		d, err := scanDeliverable(rows)
		if err != nil {
			return nil, fmt.Errorf("domain - %s - scan: %w", op, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *sqlTx) SetDeliverableMicrositeMedia(ctx context.Context, deliverableID int64, mediaID, status string) error {
	return t.update(ctx, "set deliverable microsite media", deliverablesTable, deliverableID, map[string]any{
		"microsite_media_id": nullable(mediaID),
		"microsite_status":   nullable(status),
	})
}

func (t *sqlTx) CreateDeliverable(ctx context.Context, d Deliverable) (int64, error) {
	return t.insert(ctx, "create deliverable", deliverablesTable, map[string]any{
		"order_id":           d.OrderID,
		"name":               nullable(d.Name),
		"kind":               nullable(d.Kind),
		"url":                nullable(d.URL),
		"sort_order":         d.SortOrder,
		"microsite_media_id": nullable(d.MicrositeMediaID),
		"microsite_status":   nullable(d.MicrositeStatus),
	})
}
