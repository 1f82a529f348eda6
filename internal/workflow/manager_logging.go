package workflow

import (
	"context"
	"log/slog"
	"time"

	"futures/internal/events"
	"futures/internal/logging"
	"futures/internal/workitem"
)

func (m *Manager) itemLogger(ctx context.Context) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	return logging.WithContext(ctx, m.logger)
}

// onItemProcessed logs and publishes everything one dispatch committed.
func (m *Manager) onItemProcessed(ctx context.Context, logger *slog.Logger, result itemResult, elapsed time.Duration) {
	processed := result.processed
	logger.Info("work item processed",
		logging.String("status", string(processed.Status)),
		logging.Int("follow_ons", len(result.spawned)),
		logging.Int("completed", len(result.completed)),
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "item_processed"),
	)
	for _, spawned := range result.spawned {
		logger.Debug("follow-on created",
			logging.String("follow_on_id", spawned.ID),
			logging.String("follow_on_type", string(spawned.Type)),
		)
	}

	evs := make([]events.Event, 0, 1+len(result.spawned)+len(result.completed))
	if processed.Status != workitem.StatusCompleted {
		evs = append(evs, events.ForItem(processed))
	}
	for _, spawned := range result.spawned {
		evs = append(evs, events.ForItem(spawned))
	}
	for _, completed := range result.completed {
		evs = append(evs, events.ForItem(completed))
	}
	m.publish(ctx, logger, evs...)
	m.setLastItem(processed)
}

func (m *Manager) publish(ctx context.Context, logger *slog.Logger, evs ...events.Event) {
	if len(evs) == 0 {
		return
	}
	if err := m.events.Publish(ctx, evs...); err != nil {
		logger.Warn("lifecycle event publish failed; downstream consumers will miss these transitions",
			logging.Error(err),
			logging.Int("events", len(evs)),
			logging.String(logging.FieldEventType, "event_publish_failed"),
			logging.String(logging.FieldErrorHint, "check events.brokers and topic"),
		)
	}
}
