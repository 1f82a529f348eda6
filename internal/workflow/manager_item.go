package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"futures/internal/chains"
	"futures/internal/domain"
	"futures/internal/logging"
	"futures/internal/processing"
	"futures/internal/services"
	"futures/internal/workitem"
)

// errDeferred rolls back a callback transaction whose processor was not ready.
var errDeferred = errors.New("processor not ready")

// itemResult is what one successful dispatch persisted.
type itemResult struct {
	processed *workitem.Item
	spawned   []*workitem.Item
	completed []*workitem.Item
	deferred  bool
}

func (m *Manager) processItem(ctx context.Context, item *workitem.Item) error {
	owner := item.LeaseOwner
	itemCtx := withItemContext(ctx, item)
	logger := m.itemLogger(itemCtx)
	op := operationOf(item)

	m.onItemStarted(itemCtx)
	logger.Info("processing work item",
		logging.String(logging.FieldOperation, op),
		logging.String(logging.FieldEventType, "item_start"),
		logging.Int("attempt", item.Attempts),
	)
	start := time.Now()

	result, err := m.execute(itemCtx, logger, item, owner)
	switch {
	case err == nil && result.deferred:
		return m.deferItem(itemCtx, logger, item, owner)
	case err == nil:
		m.onItemProcessed(itemCtx, logger, result, time.Since(start))
		return nil
	case ctx.Err() != nil:
		// Shutdown: leave the item created so the next run picks it up.
		if relErr := m.store.ReleaseLease(context.WithoutCancel(itemCtx), item.ID, owner, nil); relErr != nil {
			logger.Warn("release lease on shutdown failed", logging.Error(relErr))
		}
		return ctx.Err()
	case errors.Is(err, workitem.ErrLeaseLost):
		logger.Warn("lease lost before result was saved; item will be retried",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lease_lost"),
			logging.String(logging.FieldErrorHint, "raise workflow.heartbeat_timeout or lower call_timeout"),
		)
		return nil
	case errors.Is(err, workitem.ErrIllegalTransition):
		m.setLastError(err)
		logger.Error("illegal work item transition",
			logging.Error(err),
			logging.String(logging.FieldEventType, "illegal_transition"),
			logging.Alert("illegal_transition"),
		)
		m.notifyError(itemCtx, err, item.ID)
		return fmt.Errorf("item %s: %w", item.ID, err)
	default:
		m.failItem(itemCtx, logger, item, err)
		return nil
	}
}

// execute runs the processor for item under the per-call deadline and
// persists its result.
func (m *Manager) execute(ctx context.Context, logger *slog.Logger, item *workitem.Item, owner string) (itemResult, error) {
	meta, err := item.Metadata()
	if err != nil {
		return itemResult{}, services.Wrap(services.ErrValidation, "workflow", "decode metadata", "stored metadata is unreadable", err)
	}
	deps, err := m.store.ResolveDependencies(ctx, item.ID)
	if err != nil {
		return itemResult{}, err
	}

	callCtx, cancel := m.callContext(ctx)
	defer cancel()

	var hbWG sync.WaitGroup
	hbCtx, hbCancel := context.WithCancel(ctx)
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, item.ID, owner)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	if item.Type.Family() == workitem.FamilyCallback {
		return m.executeCallback(ctx, callCtx, logger, item, owner, meta, deps)
	}
	return m.executeIntegration(ctx, callCtx, logger, item, owner, meta, deps)
}

// executeIntegration dispatches inside a read transaction, then saves the
// result in its own write transaction.
func (m *Manager) executeIntegration(ctx, callCtx context.Context, logger *slog.Logger, item *workitem.Item, owner string, meta workitem.Metadata, deps []workitem.Dependency) (itemResult, error) {
	var outcome processing.Outcome
	err := m.store.ReadTx(callCtx, func(tx *workitem.Tx) error {
		var dispatchErr error
		outcome, dispatchErr = m.registry.Dispatch(callCtx, logger, domain.NewTx(tx.SQL(), false), meta, deps)
		return dispatchErr
	})
	if err != nil {
		return itemResult{}, err
	}
	if !outcome.Ready() {
		return itemResult{deferred: true}, nil
	}

	var result itemResult
	err = m.store.WriteTx(ctx, func(tx *workitem.Tx) error {
		var persistErr error
		result, persistErr = m.persist(ctx, tx, item.ID, owner, outcome.Metadata())
		return persistErr
	})
	return result, err
}

// executeCallback dispatches and saves inside a single write transaction so
// the domain write and the status change commit together.
func (m *Manager) executeCallback(ctx, callCtx context.Context, logger *slog.Logger, item *workitem.Item, owner string, meta workitem.Metadata, deps []workitem.Dependency) (itemResult, error) {
	var result itemResult
	err := m.store.WriteTx(callCtx, func(tx *workitem.Tx) error {
		if _, err := tx.CheckLease(callCtx, item.ID, owner); err != nil {
			return err
		}
		outcome, err := m.registry.Dispatch(callCtx, logger, domain.NewTx(tx.SQL(), true), meta, deps)
		if err != nil {
			return err
		}
		if !outcome.Ready() {
			return errDeferred
		}
		result, err = m.persist(callCtx, tx, item.ID, owner, outcome.Metadata())
		return err
	})
	if errors.Is(err, errDeferred) {
		return itemResult{deferred: true}, nil
	}
	return result, err
}

// persist marks the item processed, creates its follow-on callbacks, and runs
// the completion fold.
func (m *Manager) persist(ctx context.Context, tx *workitem.Tx, id, owner string, meta workitem.Metadata) (itemResult, error) {
	if _, err := tx.CheckLease(ctx, id, owner); err != nil {
		return itemResult{}, err
	}
	processed, err := tx.SaveProcessed(ctx, id, meta)
	if err != nil {
		return itemResult{}, err
	}
	result := itemResult{processed: processed}

	for _, spec := range chains.FollowOns(processed, meta) {
		created, err := tx.Create(ctx, spec)
		if err != nil {
			return itemResult{}, fmt.Errorf("create %s follow-on: %w", spec.Type, err)
		}
		result.spawned = append(result.spawned, created)
	}

	promoted, err := tx.PromoteCompleted(ctx, id)
	if err != nil {
		return itemResult{}, err
	}
	for _, promotedID := range promoted {
		completed, err := tx.Get(ctx, promotedID)
		if err != nil {
			return itemResult{}, err
		}
		result.completed = append(result.completed, completed)
		if promotedID == id {
			result.processed = completed
		}
	}
	return result, nil
}

func (m *Manager) deferItem(ctx context.Context, logger *slog.Logger, item *workitem.Item, owner string) error {
	notBefore := m.now().Add(m.notReadyDelay)
	if err := m.store.ReleaseLease(ctx, item.ID, owner, &notBefore); err != nil {
		return fmt.Errorf("defer %s: %w", item.ID, err)
	}
	logger.Info("processor not ready; item deferred",
		logging.String(logging.FieldEventType, "item_deferred"),
		logging.Duration("delay", m.notReadyDelay),
	)
	return nil
}

func (m *Manager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.callTimeout)
}

func withItemContext(ctx context.Context, item *workitem.Item) context.Context {
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithItemType(ctx, string(item.Type))
	return services.WithRequestID(ctx, uuid.NewString())
}

func operationOf(item *workitem.Item) string {
	meta, err := item.Metadata()
	if err != nil {
		return ""
	}
	if op, ok := workitem.SubOperation(meta); ok {
		return string(op)
	}
	return string(item.Type)
}
