package chains

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"futures/internal/domain"
	"futures/internal/logging"
	"futures/internal/services"
	"futures/internal/workitem"
)

// Chains creates work item chains for business events.
type Chains struct {
	store  *workitem.Store
	logger *slog.Logger
}

// New constructs a Chains bound to store.
func New(store *workitem.Store, logger *slog.Logger) *Chains {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Chains{store: store, logger: logging.NewComponentLogger(logger, "chains")}
}

// BuyerSubject groups items acting on one member relationship.
func BuyerSubject(id int64) string { return "buyer:" + strconv.FormatInt(id, 10) }

// OrderSubject groups items acting on one order.
func OrderSubject(id int64) string { return "order:" + strconv.FormatInt(id, 10) }

// InvoiceSubject groups items acting on one invoice.
func InvoiceSubject(id int64) string { return "invoice:" + strconv.FormatInt(id, 10) }

// chainTx bundles the two views of one write transaction.
type chainTx struct {
	items  *workitem.Tx
	domain domain.Tx
}

func (c *Chains) write(ctx context.Context, event string, fn func(chainTx) ([]*workitem.Item, error)) ([]*workitem.Item, error) {
	var created []*workitem.Item
	err := c.store.WriteTx(ctx, func(tx *workitem.Tx) error {
		items, err := fn(chainTx{items: tx, domain: domain.NewTx(tx.SQL(), true)})
		if err != nil {
			return err
		}
		created = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(created))
	for _, item := range created {
		ids = append(ids, item.ID)
	}
	c.logger.Info("work item chain created",
		logging.String(logging.FieldEventType, event),
		logging.Int("items", len(created)),
		logging.Any("item_ids", ids))
	return created, nil
}

// openWithOp returns the open items of type t for subject whose
// sub-operation is one of ops.
func openWithOp(ctx context.Context, tx *workitem.Tx, t workitem.Type, subject string, ops ...workitem.Operation) ([]*workitem.Item, error) {
	items, err := tx.OpenBySubject(ctx, t, subject)
	if err != nil {
		return nil, err
	}
	var out []*workitem.Item
	for _, item := range items {
		meta, err := item.Metadata()
		if err != nil {
			return nil, err
		}
		if op, ok := workitem.SubOperation(meta); ok && slices.Contains(ops, op) {
			out = append(out, item)
		}
	}
	return out, nil
}

// latestID returns the id of the newest item, or "".
func latestID(items []*workitem.Item) string {
	if len(items) == 0 {
		return ""
	}
	return items[len(items)-1].ID
}

func ids(items []*workitem.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func invalid(event, format string, args ...any) error {
	return services.Wrap(services.ErrValidation, "chains", event, fmt.Sprintf(format, args...), nil)
}

func create(ctx context.Context, tx *workitem.Tx, subject string, meta workitem.Metadata, dependsOn ...string) (*workitem.Item, error) {
	deps := make([]string, 0, len(dependsOn))
	for _, id := range dependsOn {
		if id != "" && !slices.Contains(deps, id) {
			deps = append(deps, id)
		}
	}
	return tx.Create(ctx, workitem.Spec{
		Type:      meta.ItemType(),
		Subject:   subject,
		Metadata:  meta,
		DependsOn: deps,
	})
}
