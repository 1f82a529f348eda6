package chains

import (
	"context"
	"slices"
	"strings"

	"futures/internal/domain"
	"futures/internal/workitem"
)

// SyncBuyer ensures the buyer exists at the microsite and at the accounting
// system. Each side is skipped while an earlier sync for the buyer is still
// open.
func (c *Chains) SyncBuyer(ctx context.Context, buyerRelID int64, test bool) ([]*workitem.Item, error) {
	return c.write(ctx, "sync_buyer", func(tx chainTx) ([]*workitem.Item, error) {
		rel, err := tx.domain.LoadMemberRelationship(ctx, buyerRelID)
		if err != nil {
			return nil, err
		}
		var created []*workitem.Item
		user, err := ensureUser(ctx, tx, rel, test)
		if err != nil {
			return nil, err
		}
		if user != nil {
			created = append(created, user)
		}
		customer, err := ensureCustomer(ctx, tx, rel, test)
		if err != nil {
			return nil, err
		}
		if customer != nil {
			created = append(created, customer)
		}
		return created, nil
	})
}

// ensureUser creates an ensure_user_exists item unless one is already open.
// Returns nil when nothing was created.
func ensureUser(ctx context.Context, tx chainTx, rel *domain.MemberRelationship, test bool) (*workitem.Item, error) {
	subject := BuyerSubject(rel.ID)
	open, err := openWithOp(ctx, tx.items, workitem.TypeMicrosite, subject, workitem.OpEnsureUserExists)
	if err != nil || len(open) > 0 {
		return nil, err
	}
	first, last := splitName(rel.BuyerName)
	return create(ctx, tx.items, subject, workitem.MicrositeMetadata{
		Type:     workitem.OpEnsureUserExists,
		Test:     test,
		MemberID: rel.MemberID,
		Refs:     workitem.Refs{BuyerRelID: rel.ID},
		Payload: workitem.MicrositePayload{
			UserID:    workitem.ExternalID(rel.MicrositeUserID),
			Email:     rel.BuyerEmail,
			FirstName: first,
			LastName:  last,
		},
	})
}

// CreateOrderSite creates the order's microsite. When the buyer has no
// microsite user yet, the site waits for the open user sync, which is
// created here if needed.
func (c *Chains) CreateOrderSite(ctx context.Context, orderID int64, test bool) ([]*workitem.Item, error) {
	return c.write(ctx, "create_order_site", func(tx chainTx) ([]*workitem.Item, error) {
		order, err := tx.domain.LoadOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.MicrositeID != "" {
			return nil, invalid("create_order_site", "order %d already has microsite %s", order.ID, order.MicrositeID)
		}
		subject := OrderSubject(order.ID)
		if open, err := openWithOp(ctx, tx.items, workitem.TypeMicrosite, subject, workitem.OpCreateSite); err != nil {
			return nil, err
		} else if len(open) > 0 {
			return nil, invalid("create_order_site", "order %d already has an open site request %s", order.ID, open[0].ID)
		}
		rel, err := tx.domain.LoadMemberRelationship(ctx, order.BuyerRelID)
		if err != nil {
			return nil, err
		}

		var created []*workitem.Item
		var depends []string
		if rel.MicrositeUserID == "" {
			open, err := openWithOp(ctx, tx.items, workitem.TypeMicrosite, BuyerSubject(rel.ID), workitem.OpEnsureUserExists)
			if err != nil {
				return nil, err
			}
			if len(open) == 0 {
				user, err := ensureUser(ctx, tx, rel, test)
				if err != nil {
					return nil, err
				}
				open = append(open, user)
				created = append(created, user)
			}
			depends = append(depends, latestID(open))
		}
		site, err := create(ctx, tx.items, subject, workitem.MicrositeMetadata{
			Type:     workitem.OpCreateSite,
			Test:     test,
			MemberID: rel.MemberID,
			Refs:     workitem.Refs{BuyerRelID: rel.ID, InternalOrderID: order.ID},
			Payload: workitem.MicrositePayload{
				UserID:  workitem.ExternalID(rel.MicrositeUserID),
				Title:   order.Address,
				Address: order.Address,
			},
		}, depends...)
		if err != nil {
			return nil, err
		}
		return append(created, site), nil
	})
}

// AddDeliverable attaches a deliverable to its order's microsite.
func (c *Chains) AddDeliverable(ctx context.Context, deliverableID int64, test bool) ([]*workitem.Item, error) {
	return c.write(ctx, "add_deliverable", func(tx chainTx) ([]*workitem.Item, error) {
		deliverable, err := tx.domain.LoadDeliverable(ctx, deliverableID)
		if err != nil {
			return nil, err
		}
		if deliverable.MicrositeMediaID != "" {
			return nil, invalid("add_deliverable", "deliverable %d is already attached as %s", deliverable.ID, deliverable.MicrositeMediaID)
		}
		order, rel, err := loadOrderBuyer(ctx, tx.domain, deliverable.OrderID)
		if err != nil {
			return nil, err
		}
		siteDep, err := pendingSite(ctx, tx, order, "add_deliverable")
		if err != nil {
			return nil, err
		}
		item, err := create(ctx, tx.items, OrderSubject(order.ID), workitem.MicrositeMetadata{
			Type:     workitem.OpAddDeliverableToSite,
			Test:     test,
			MemberID: rel.MemberID,
			Refs: workitem.Refs{
				BuyerRelID:            rel.ID,
				InternalOrderID:       order.ID,
				InternalDeliverableID: deliverable.ID,
			},
			Payload: workitem.MicrositePayload{
				SiteID:    workitem.ExternalID(order.MicrositeID),
				MediaName: deliverable.Name,
				MediaKind: deliverable.Kind,
				MediaURL:  deliverable.URL,
			},
		}, siteDep)
		if err != nil {
			return nil, err
		}
		return []*workitem.Item{item}, nil
	})
}

// PublishOrderSite orders the site's media by deliverable sort order and
// publishes it once every open attachment for the order has been processed.
func (c *Chains) PublishOrderSite(ctx context.Context, orderID int64, test bool) ([]*workitem.Item, error) {
	return c.write(ctx, "publish_order_site", func(tx chainTx) ([]*workitem.Item, error) {
		order, rel, err := loadOrderBuyer(ctx, tx.domain, orderID)
		if err != nil {
			return nil, err
		}
		siteDep, err := pendingSite(ctx, tx, order, "publish_order_site")
		if err != nil {
			return nil, err
		}
		subject := OrderSubject(order.ID)
		attaching, err := openWithOp(ctx, tx.items, workitem.TypeMicrosite, subject, workitem.OpAddDeliverableToSite)
		if err != nil {
			return nil, err
		}
		deliverables, err := tx.domain.OrderDeliverables(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		slices.SortStableFunc(deliverables, func(a, b domain.Deliverable) int { return a.SortOrder - b.SortOrder })
		pending := map[int64]bool{}
		for _, item := range attaching {
			if meta, err := item.Metadata(); err == nil {
				if m, ok := meta.(workitem.MicrositeMetadata); ok {
					pending[m.Refs.InternalDeliverableID] = true
				}
			}
		}
		var media []workitem.ExternalID
		var placements []workitem.MediaPlacement
		for _, d := range deliverables {
			if d.MicrositeMediaID == "" && !pending[d.ID] {
				continue
			}
			placements = append(placements, workitem.MediaPlacement{
				DeliverableID: d.ID,
				SortOrder:     d.SortOrder,
				MediaID:       workitem.ExternalID(d.MicrositeMediaID),
			})
			if d.MicrositeMediaID != "" {
				media = append(media, workitem.ExternalID(d.MicrositeMediaID))
			}
		}
		if len(media) == 0 && len(attaching) == 0 {
			return nil, invalid("publish_order_site", "order %d has no deliverables on its microsite", order.ID)
		}

		refs := workitem.Refs{BuyerRelID: rel.ID, InternalOrderID: order.ID}
		ordering, err := create(ctx, tx.items, subject, workitem.MicrositeMetadata{
			Type:     workitem.OpSortSiteDeliverables,
			Test:     test,
			MemberID: rel.MemberID,
			Refs:     refs,
			Payload: workitem.MicrositePayload{
				SiteID:     workitem.ExternalID(order.MicrositeID),
				MediaIDs:   media,
				Placements: placements,
			},
		}, append([]string{siteDep}, ids(attaching)...)...)
		if err != nil {
			return nil, err
		}
		publish, err := create(ctx, tx.items, subject, workitem.MicrositeMetadata{
			Type:     workitem.OpPublishSite,
			Test:     test,
			MemberID: rel.MemberID,
			Refs:     refs,
			Payload:  workitem.MicrositePayload{SiteID: workitem.ExternalID(order.MicrositeID)},
		}, ordering.ID)
		if err != nil {
			return nil, err
		}
		return []*workitem.Item{ordering, publish}, nil
	})
}

// pendingSite returns the open create_site item the caller must wait for,
// or "" when the order's microsite id is already known.
func pendingSite(ctx context.Context, tx chainTx, order *domain.Order, event string) (string, error) {
	if order.MicrositeID != "" {
		return "", nil
	}
	open, err := openWithOp(ctx, tx.items, workitem.TypeMicrosite, OrderSubject(order.ID), workitem.OpCreateSite)
	if err != nil {
		return "", err
	}
	if len(open) == 0 {
		return "", invalid(event, "order %d has no microsite; create the site first", order.ID)
	}
	return latestID(open), nil
}

func loadOrderBuyer(ctx context.Context, tx domain.Tx, orderID int64) (*domain.Order, *domain.MemberRelationship, error) {
	order, err := tx.LoadOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	rel, err := tx.LoadMemberRelationship(ctx, order.BuyerRelID)
	if err != nil {
		return nil, nil, err
	}
	return order, rel, nil
}

func splitName(name string) (string, string) {
	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	return first, strings.TrimSpace(last)
}
