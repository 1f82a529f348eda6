package workflow

import (
	"context"
	"errors"
	"log/slog"

	"futures/internal/events"
	"futures/internal/logging"
	"futures/internal/notifications"
	"futures/internal/services"
	"futures/internal/workitem"
)

// failItem records err on the item. Only the failing item changes; its
// dependents stay created and its dependencies keep their status.
func (m *Manager) failItem(ctx context.Context, logger *slog.Logger, item *workitem.Item, itemErr error) {
	failure := workitem.FailureFor(itemErr)
	details := services.Details(itemErr)

	attrs := []logging.Attr{
		logging.String("error_kind", details.Kind),
		logging.Bool("retriable", failure.Retriable),
		logging.Int("attempt", item.Attempts),
		logging.Alert("item_failure"),
		logging.Error(itemErr),
		logging.String(logging.FieldEventType, "item_failed"),
		logging.String(logging.FieldErrorHint, failureHint(details.Kind)),
	}
	logger.Error("work item failed", logging.Args(attrs...)...)

	persistCtx := context.WithoutCancel(ctx)
	if err := m.store.Fail(persistCtx, item.ID, failure); err != nil {
		if errors.Is(err, workitem.ErrIllegalTransition) {
			logger.Warn("item left created before failure was recorded", logging.Error(err))
		} else {
			logger.Error("failed to persist work item failure",
				logging.Error(err),
				logging.Alert("failure_not_persisted"),
				logging.String(logging.FieldErrorHint, "check work item database access"),
			)
		}
		m.setLastError(err)
		return
	}

	failed, err := m.store.Get(persistCtx, item.ID)
	if err != nil {
		logger.Warn("failed item reload failed", logging.Error(err))
		failed = item
	}
	m.setLastError(itemErr)
	m.setLastItem(failed)
	m.publish(persistCtx, logger, events.ForItem(failed))

	if err := m.notifier.NotifyItemFailed(persistCtx, notifications.ItemFailure{
		ItemID:    item.ID,
		ItemType:  string(item.Type),
		Operation: operationOf(item),
		Message:   failure.Message,
		Retriable: failure.Retriable,
	}); err != nil {
		logger.Debug("item failure notification failed", logging.Error(err))
	}
}

func failureHint(kind string) string {
	switch kind {
	case "timeout", "transient":
		return "retry the item with `futures items retry`"
	case "provider":
		return "inspect the provider response, then retry with --force if the data is fixed"
	case "configuration":
		return "check provider endpoints and tenant accounts in config.toml"
	case "not_implemented":
		return "the operation has no provider call; cancel the chain or add support"
	default:
		return "inspect the item metadata with `futures items show`"
	}
}
