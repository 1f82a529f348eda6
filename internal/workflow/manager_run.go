package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"futures/internal/logging"
	"futures/internal/services"
	"futures/internal/workitem"
)

// Start validates the registry and launches the worker pool.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.registry.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.done = make(chan error, 1)
	done := m.done
	m.mu.Unlock()

	group, groupCtx := errgroup.WithContext(runCtx)
	for i := range m.workers {
		name := fmt.Sprintf("worker-%d", i+1)
		reclaim := i == 0
		group.Go(func() error {
			return m.runWorker(groupCtx, name, reclaim)
		})
	}
	m.logger.Info("workflow started",
		logging.Int("workers", m.workers),
		logging.Duration("call_timeout", m.callTimeout),
		logging.String(logging.FieldEventType, "workflow_start"))

	go func() {
		err := group.Wait()
		if err != nil {
			m.halt(err)
		}
		done <- err
	}()
	return nil
}

// halt marks the manager stopped after a worker returned a fatal error.
func (m *Manager) halt(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.logger.Error("workflow halted",
		logging.Error(err),
		logging.String(logging.FieldEventType, "workflow_halted"),
		logging.String(logging.FieldErrorHint, "inspect the item named in the error before restarting"),
	)
}

// Stop cancels the workers and waits for in-flight items to settle.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	if err := <-done; err != nil {
		m.logger.Warn("workflow stopped with error", logging.Error(err))
	}
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

func (m *Manager) runWorker(ctx context.Context, name string, reclaim bool) error {
	ctx = services.WithWorker(ctx, name)
	logger := logging.WithContext(ctx, m.logger)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if reclaim {
			if err := m.heartbeat.ReclaimStaleItems(ctx, logger); err != nil && ctx.Err() == nil {
				logger.Warn("reclaim stale leases failed; stuck items may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check work item database access"),
				)
			}
		}

		worked, err := m.ProcessNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, workitem.ErrIllegalTransition) {
				return err
			}
			m.handleNextItemError(ctx, logger, err)
			continue
		}
		if !worked {
			m.checkQueueDrained(ctx)
			m.wait(ctx, m.pollInterval)
		}
	}
}

// ProcessNext claims and runs one ready item. It reports false when nothing
// was ready.
func (m *Manager) ProcessNext(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	if worker, ok := services.WorkerFromContext(ctx); ok {
		owner = worker + "/" + owner
	}
	item, err := m.store.Claim(ctx, owner)
	if err != nil {
		return false, fmt.Errorf("claim work item: %w", err)
	}
	if item == nil {
		return false, nil
	}
	return true, m.processItem(ctx, item)
}

// Drain processes ready items until none remain and returns how many ran.
func (m *Manager) Drain(ctx context.Context) (int, error) {
	count := 0
	for {
		worked, err := m.ProcessNext(ctx)
		if err != nil {
			return count, err
		}
		if !worked {
			m.checkQueueDrained(ctx)
			return count, nil
		}
		count++
	}
}

func (m *Manager) handleNextItemError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next work item",
		logging.Error(err),
		logging.String(logging.FieldEventType, "claim_failed"),
		logging.String(logging.FieldErrorHint, "check work item database access"),
	)
	m.wait(ctx, m.errorRetry)
}

func (m *Manager) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
