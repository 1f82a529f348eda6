package workflow

import (
	"context"
	"errors"
	"time"

	"futures/internal/logging"
	"futures/internal/workitem"
)

func (m *Manager) notifyError(ctx context.Context, err error, label string) {
	if notifyErr := m.notifier.NotifyError(ctx, err, label); notifyErr != nil {
		m.logger.Debug("error notification failed", logging.Error(notifyErr))
	}
}

func (m *Manager) onItemStarted(ctx context.Context) {
	m.mu.Lock()
	if m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
	m.mu.Unlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("queue stats unavailable for start notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check work item database access"),
			)
		}
		return
	}
	if err := m.notifier.NotifyQueueStarted(ctx, stats[workitem.StatusCreated]); err != nil {
		m.logger.Debug("queue start notification failed", logging.Error(err))
	}
}

// checkQueueDrained sends the completion notification once no created items
// remain after a busy period.
func (m *Manager) checkQueueDrained(ctx context.Context) {
	m.mu.RLock()
	active := m.queueActive
	m.mu.RUnlock()
	if !active {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("queue stats unavailable for completion notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check work item database access"),
			)
		}
		return
	}
	if stats[workitem.StatusCreated] > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	m.logger.Info("queue drained",
		logging.Int("completed", stats[workitem.StatusCompleted]),
		logging.Int("failed", stats[workitem.StatusFailed]),
		logging.Duration("duration", time.Since(start)),
		logging.String(logging.FieldEventType, "queue_drained"),
	)
	if err := m.notifier.NotifyQueueCompleted(ctx, stats[workitem.StatusCompleted], stats[workitem.StatusFailed], time.Since(start)); err != nil {
		m.logger.Debug("queue completion notification failed", logging.Error(err))
	}
}
