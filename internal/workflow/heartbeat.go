package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"futures/internal/logging"
	"futures/internal/workitem"
)

// HeartbeatMonitor renews leases while processors run and reclaims leases
// whose holders went quiet.
type HeartbeatMonitor struct {
	store             *workitem.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *workitem.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStaleItems releases leases whose heartbeat is older than the timeout.
func (h *HeartbeatMonitor) ReclaimStaleItems(ctx context.Context, logger *slog.Logger) error {
	if h.heartbeatTimeout <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-h.heartbeatTimeout)
	reclaimed, err := h.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logger.Info("reclaimed stale leases",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "heartbeat_reclaim"))
	}
	return nil
}

// StartLoop renews owner's lease on itemID until ctx is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, itemID, owner string) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String("component", "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.Heartbeat(ctx, itemID, owner); err != nil {
				switch {
				case errors.Is(err, context.Canceled):
					return
				case errors.Is(err, workitem.ErrLeaseLost):
					logger.Warn("lease lost while processing; result will be discarded",
						logging.Error(err),
						logging.String(logging.FieldEventType, "lease_lost"),
						logging.String(logging.FieldErrorHint, "raise workflow.heartbeat_timeout or lower call_timeout"),
					)
					return
				default:
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}
