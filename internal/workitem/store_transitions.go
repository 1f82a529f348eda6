package workitem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotRetriable is returned when retrying a failure classified as fatal
	// without forcing it.
	ErrNotRetriable = errors.New("failure is not retriable")
	// ErrLeaseLost is returned when an item's lease is no longer held by the caller.
	ErrLeaseLost = errors.New("lease no longer held")
)

func transition(ctx context.Context, q queryer, now time.Time, id string, to Status) (*Item, error) {
	item, err := getItem(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(item.Status, to) {
		return nil, &TransitionError{ID: id, From: item.Status, To: to}
	}
	timestamp := formatTime(now)
	query := `UPDATE work_items SET status = ?, lease_owner = NULL, last_heartbeat = NULL, updated_at = ?`
	args := []any{to, timestamp}
	switch to {
	case StatusProcessed:
		query += `, processed_at = ?, error_message = NULL, retriable = 0`
		args = append(args, timestamp)
	case StatusCompleted:
		query += `, completed_at = ?`
		args = append(args, timestamp)
	}
	query += ` WHERE id = ? AND status = ?`
	args = append(args, id, item.Status)
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transition %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &TransitionError{ID: id, From: item.Status, To: to}
	}
	item.Status = to
	return item, nil
}

// Transition moves an item forward. Illegal moves return a *TransitionError
// matching ErrIllegalTransition.
func (s *Store) Transition(ctx context.Context, id string, to Status) error {
	return s.WriteTx(ctx, func(tx *Tx) error {
		return tx.Transition(ctx, id, to)
	})
}

// Transition moves an item forward inside the transaction.
func (t *Tx) Transition(ctx context.Context, id string, to Status) error {
	_, err := transition(ctx, t.tx, t.now(), id, to)
	return err
}

// SaveProcessed merges meta into the stored metadata, drops any scrubbed
// secrets and marks the item processed.
func (t *Tx) SaveProcessed(ctx context.Context, id string, meta Metadata) (*Item, error) {
	item, err := getItem(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(item.Status, StatusProcessed) {
		return nil, &TransitionError{ID: id, From: item.Status, To: StatusProcessed}
	}
	updated, err := EncodeMetadata(item.Type, meta)
	if err != nil {
		return nil, err
	}
	merged, err := MergeMetadata(item.MetadataJSON, updated)
	if err != nil {
		return nil, err
	}
	if scrubbed, ok := meta.(Scrubbed); ok {
		if merged, err = ScrubMetadata(merged, scrubbed.ScrubPaths()); err != nil {
			return nil, err
		}
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE work_items SET metadata = ? WHERE id = ?`, string(merged), id,
	); err != nil {
		return nil, fmt.Errorf("save metadata %s: %w", id, err)
	}
	if _, err := transition(ctx, t.tx, t.now(), id, StatusProcessed); err != nil {
		return nil, err
	}
	return getItem(ctx, t.tx, id)
}

// Fail marks the item failed with the classified failure.
func (t *Tx) Fail(ctx context.Context, id string, failure Failure) error {
	if _, err := transition(ctx, t.tx, t.now(), id, StatusFailed); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE work_items SET error_message = ?, retriable = ? WHERE id = ?`,
		failure.Message, boolToInt(failure.Retriable), id,
	); err != nil {
		return fmt.Errorf("record failure %s: %w", id, err)
	}
	return nil
}

// Fail marks the item failed in its own write transaction.
func (s *Store) Fail(ctx context.Context, id string, failure Failure) error {
	return s.WriteTx(ctx, func(tx *Tx) error {
		return tx.Fail(ctx, id, failure)
	})
}

// Claim leases the oldest ready item to owner. An item is ready when it is
// created, unleased, past its not_before time, and every dependency is
// processed or completed. Returns nil when nothing is ready.
func (s *Store) Claim(ctx context.Context, owner string) (*Item, error) {
	var claimed *Item
	err := s.WriteTx(ctx, func(tx *Tx) error {
		now := formatTime(tx.now())
		var id string
		err := tx.tx.QueryRowContext(ctx,
			`SELECT w.id FROM work_items w
             WHERE w.status = ? AND w.lease_owner IS NULL
               AND (w.not_before IS NULL OR w.not_before <= ?)
               AND NOT EXISTS (
                   SELECT 1 FROM work_item_dependencies d
                   JOIN work_items p ON p.id = d.depends_on_id
                   WHERE d.item_id = w.id AND p.status NOT IN (?, ?)
               )
             ORDER BY w.created_at, w.id LIMIT 1`,
			StatusCreated, now, StatusProcessed, StatusCompleted,
		).Scan(&id)
		if err != nil {
			if isNoRows(err) {
				return nil
			}
			return fmt.Errorf("select ready item: %w", err)
		}
		res, err := tx.tx.ExecContext(ctx,
			`UPDATE work_items
             SET lease_owner = ?, last_heartbeat = ?, attempts = attempts + 1, not_before = NULL, updated_at = ?
             WHERE id = ? AND status = ? AND lease_owner IS NULL`,
			owner, now, now, id, StatusCreated,
		)
		if err != nil {
			return fmt.Errorf("lease item %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		claimed, err = getItem(ctx, tx.tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Heartbeat renews owner's lease on id.
func (s *Store) Heartbeat(ctx context.Context, id, owner string) error {
	return s.WriteTx(ctx, func(tx *Tx) error {
		now := formatTime(tx.now())
		res, err := tx.tx.ExecContext(ctx,
			`UPDATE work_items SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND lease_owner = ?`,
			now, now, id, owner,
		)
		if err != nil {
			return fmt.Errorf("update heartbeat: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("heartbeat %s: %w", id, ErrLeaseLost)
		}
		return nil
	})
}

// ReleaseLease gives up owner's lease without changing status. A non-nil
// notBefore delays the next claim.
func (s *Store) ReleaseLease(ctx context.Context, id, owner string, notBefore *time.Time) error {
	return s.WriteTx(ctx, func(tx *Tx) error {
		var deferUntil any
		if notBefore != nil {
			deferUntil = formatTime(*notBefore)
		}
		if _, err := tx.tx.ExecContext(ctx,
			`UPDATE work_items SET lease_owner = NULL, last_heartbeat = NULL, not_before = ?, updated_at = ?
             WHERE id = ? AND lease_owner = ? AND status = ?`,
			deferUntil, formatTime(tx.now()), id, owner, StatusCreated,
		); err != nil {
			return fmt.Errorf("release lease %s: %w", id, err)
		}
		return nil
	})
}

// ReclaimStale releases leases whose heartbeat is older than cutoff so another
// worker can pick the item up.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var reclaimed int64
	err := s.WriteTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx,
			`UPDATE work_items SET lease_owner = NULL, last_heartbeat = NULL, updated_at = ?
             WHERE status = ? AND lease_owner IS NOT NULL
               AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
			formatTime(tx.now()), StatusCreated, formatTime(cutoff),
		)
		if err != nil {
			return fmt.Errorf("reclaim stale leases: %w", err)
		}
		reclaimed, err = res.RowsAffected()
		return err
	})
	return reclaimed, err
}

// PromoteCompleted runs the completion fold starting at id: a processed item
// with no outstanding dependents becomes completed, and each of its own
// dependencies is then re-checked the same way. Returns the ids promoted, in
// promotion order.
func (t *Tx) PromoteCompleted(ctx context.Context, id string) ([]string, error) {
	var promoted []string
	pending := []string{id}
	visited := map[string]bool{}
	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]

		item, err := getItem(ctx, t.tx, current)
		if err != nil {
			return nil, err
		}
		if item.Status != StatusProcessed {
			continue
		}
		var outstanding int
		if err := t.tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM work_item_dependencies d
             JOIN work_items c ON c.id = d.item_id
             WHERE d.depends_on_id = ? AND c.status != ? AND c.superseded_by IS NULL`,
			current, StatusCompleted,
		).Scan(&outstanding); err != nil {
			return nil, fmt.Errorf("count outstanding dependents of %s: %w", current, err)
		}
		if outstanding > 0 {
			continue
		}
		if _, err := transition(ctx, t.tx, t.now(), current, StatusCompleted); err != nil {
			return nil, err
		}
		promoted = append(promoted, current)

		parents, err := dependenciesOf(ctx, t.tx, current)
		if err != nil {
			return nil, err
		}
		for _, parent := range parents {
			if !visited[parent.ID] {
				visited[parent.ID] = true
				pending = append(pending, parent.ID)
			}
		}
	}
	return promoted, nil
}

// Retry replaces a failed item with a fresh copy carrying the original
// payload and dependencies, and re-points the failed item's dependents at the
// copy. The failed record stays failed and is marked superseded.
func (s *Store) Retry(ctx context.Context, id string, force bool) (*Item, error) {
	var replacement *Item
	err := s.WriteTx(ctx, func(tx *Tx) error {
		old, err := getItem(ctx, tx.tx, id)
		if err != nil {
			return err
		}
		if old.Status != StatusFailed {
			return fmt.Errorf("retry %s: item is %s, not failed", id, old.Status)
		}
		if old.SupersededBy != "" {
			return fmt.Errorf("retry %s: already replaced by %s", id, old.SupersededBy)
		}
		if !old.Retriable && !force {
			return fmt.Errorf("retry %s: %w (use --force to override)", id, ErrNotRetriable)
		}

		meta, err := originalMetadata(old)
		if err != nil {
			return err
		}
		parents, err := dependenciesOf(ctx, tx.tx, id)
		if err != nil {
			return err
		}
		dependsOn := make([]string, 0, len(parents))
		for _, parent := range parents {
			dependsOn = append(dependsOn, parent.ID)
		}
		replacement, err = createItem(ctx, tx.tx, tx.now(), Spec{
			Type:      old.Type,
			Subject:   old.Subject,
			Metadata:  meta,
			DependsOn: dependsOn,
		})
		if err != nil {
			return err
		}
		if _, err := tx.tx.ExecContext(ctx,
			`UPDATE work_item_dependencies SET depends_on_id = ? WHERE depends_on_id = ?`,
			replacement.ID, id,
		); err != nil {
			return fmt.Errorf("re-point dependents of %s: %w", id, err)
		}
		if _, err := tx.tx.ExecContext(ctx,
			`UPDATE work_items SET superseded_by = ?, updated_at = ? WHERE id = ?`,
			replacement.ID, formatTime(tx.now()), id,
		); err != nil {
			return fmt.Errorf("mark %s superseded: %w", id, err)
		}
		return nil
	})
	return replacement, err
}

// originalMetadata strips the processor response so the copy starts from the
// caller's payload.
func originalMetadata(item *Item) (Metadata, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item.MetadataJSON, &fields); err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", item.ID, err)
	}
	delete(fields, "response")
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return DecodeMetadata(item.Type, raw)
}

// PurgeCompleted deletes completed items finished before cutoff, skipping any
// still referenced by an unfinished dependent.
func (s *Store) PurgeCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := s.WriteTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx,
			`DELETE FROM work_items
             WHERE status = ? AND completed_at IS NOT NULL AND completed_at < ?
               AND NOT EXISTS (
                   SELECT 1 FROM work_item_dependencies d
                   JOIN work_items c ON c.id = d.item_id
                   WHERE d.depends_on_id = work_items.id AND c.status != ?
               )`,
			StatusCompleted, formatTime(cutoff), StatusCompleted,
		)
		if err != nil {
			return fmt.Errorf("purge completed items: %w", err)
		}
		purged, err = res.RowsAffected()
		return err
	})
	return purged, err
}

// CheckLease returns the item when owner still holds its lease, and
// ErrLeaseLost otherwise.
func (t *Tx) CheckLease(ctx context.Context, id, owner string) (*Item, error) {
	item, err := getItem(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != StatusCreated || item.LeaseOwner != owner {
		return nil, fmt.Errorf("work item %s: %w", id, ErrLeaseLost)
	}
	return item, nil
}
