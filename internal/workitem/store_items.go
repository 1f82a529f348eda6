package workitem

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDependenciesPending is returned when an item is resolved before all of
// its dependencies are processed.
var ErrDependenciesPending = errors.New("dependencies not yet processed")

func createItem(ctx context.Context, q queryer, now time.Time, spec Spec) (*Item, error) {
	if !spec.Type.Valid() {
		return nil, fmt.Errorf("create work item: unknown type %q", spec.Type)
	}
	metadata, err := EncodeMetadata(spec.Type, spec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("create work item: %w", err)
	}

	seen := make(map[string]struct{}, len(spec.DependsOn))
	for _, depID := range spec.DependsOn {
		if _, dup := seen[depID]; dup {
			return nil, fmt.Errorf("create work item: duplicate dependency %s", depID)
		}
		seen[depID] = struct{}{}
		var exists int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM work_items WHERE id = ?`, depID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("create work item: check dependency %s: %w", depID, err)
		}
		if exists == 0 {
			return nil, fmt.Errorf("create work item: dependency %s: %w", depID, ErrNotFound)
		}
	}

	id := uuid.NewString()
	timestamp := formatTime(now)
	if _, err := q.ExecContext(ctx,
		`INSERT INTO work_items (id, type, subject, status, metadata, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, spec.Type, nullableString(spec.Subject), StatusCreated, string(metadata), timestamp, timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert work item: %w", err)
	}
	for position, depID := range spec.DependsOn {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO work_item_dependencies (item_id, depends_on_id, position) VALUES (?, ?, ?)`,
			id, depID, position,
		); err != nil {
			return nil, fmt.Errorf("insert dependency %s: %w", depID, err)
		}
	}
	return getItem(ctx, q, id)
}

func getItem(ctx context.Context, q queryer, id string) (*Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("work item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return item, nil
}

func listItems(ctx context.Context, q queryer, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM work_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	return scanItems(rows)
}

func itemStats(ctx context.Context, q queryer) (map[Status]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT status, COUNT(1) FROM work_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("work item stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func dependenciesOf(ctx context.Context, q queryer, id string) ([]*Item, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+prefixed("w")+` FROM work_item_dependencies d
         JOIN work_items w ON w.id = d.depends_on_id
         WHERE d.item_id = ? ORDER BY d.position`, id)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	return scanItems(rows)
}

func dependentsOf(ctx context.Context, q queryer, id string) ([]*Item, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+prefixed("w")+` FROM work_item_dependencies d
         JOIN work_items w ON w.id = d.item_id
         WHERE d.depends_on_id = ? ORDER BY w.created_at, w.id`, id)
	if err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	return scanItems(rows)
}

func openBySubject(ctx context.Context, q queryer, t Type, subject string) ([]*Item, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM work_items
         WHERE type = ? AND subject = ? AND status IN (?, ?)
         ORDER BY created_at, id`,
		t, subject, StatusCreated, StatusProcessed)
	if err != nil {
		return nil, fmt.Errorf("open items by subject: %w", err)
	}
	return scanItems(rows)
}

func resolveDependencies(ctx context.Context, q queryer, id string) ([]Dependency, error) {
	items, err := dependenciesOf(ctx, q, id)
	if err != nil {
		return nil, err
	}
	deps := make([]Dependency, 0, len(items))
	for _, item := range items {
		if !item.Status.Settled() {
			return nil, fmt.Errorf("%w: %s is %s", ErrDependenciesPending, item.ID, item.Status)
		}
		meta, err := item.Metadata()
		if err != nil {
			return nil, fmt.Errorf("resolve dependency %s: %w", item.ID, err)
		}
		deps = append(deps, Dependency{ID: item.ID, Type: item.Type, Status: item.Status, Metadata: meta})
	}
	return deps, nil
}

func prefixed(alias string) string {
	cols := strings.Split(itemColumns, ", ")
	for i, col := range cols {
		cols[i] = alias + "." + col
	}
	return strings.Join(cols, ", ")
}

// Create inserts a new work item in the created state.
func (s *Store) Create(ctx context.Context, spec Spec) (*Item, error) {
	var item *Item
	err := s.WriteTx(ctx, func(tx *Tx) error {
		var err error
		item, err = tx.Create(ctx, spec)
		return err
	})
	return item, err
}

// Get fetches a work item by identifier.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	return getItem(ctx, s.reader, id)
}

// List returns items in creation order, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	return listItems(ctx, s.reader, statuses...)
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	return itemStats(ctx, s.reader)
}

// Dependencies returns the items id depends on, in declared order.
func (s *Store) Dependencies(ctx context.Context, id string) ([]*Item, error) {
	return dependenciesOf(ctx, s.reader, id)
}

// Dependents returns the items that depend on id.
func (s *Store) Dependents(ctx context.Context, id string) ([]*Item, error) {
	return dependentsOf(ctx, s.reader, id)
}

// OpenBySubject returns created or processed items of type t for subject.
func (s *Store) OpenBySubject(ctx context.Context, t Type, subject string) ([]*Item, error) {
	return openBySubject(ctx, s.reader, t, subject)
}

// ResolveDependencies assembles the (type, metadata) pairs a processor
// receives for id. It fails with ErrDependenciesPending if any dependency is
// not yet processed.
func (s *Store) ResolveDependencies(ctx context.Context, id string) ([]Dependency, error) {
	return resolveDependencies(ctx, s.reader, id)
}

// Create inserts a new work item inside the transaction.
func (t *Tx) Create(ctx context.Context, spec Spec) (*Item, error) {
	return createItem(ctx, t.tx, t.now(), spec)
}

// Get fetches a work item inside the transaction.
func (t *Tx) Get(ctx context.Context, id string) (*Item, error) {
	return getItem(ctx, t.tx, id)
}

// Dependencies returns the items id depends on, in declared order.
func (t *Tx) Dependencies(ctx context.Context, id string) ([]*Item, error) {
	return dependenciesOf(ctx, t.tx, id)
}

// Dependents returns the items that depend on id.
func (t *Tx) Dependents(ctx context.Context, id string) ([]*Item, error) {
	return dependentsOf(ctx, t.tx, id)
}

// OpenBySubject returns created or processed items of type t for subject.
func (t *Tx) OpenBySubject(ctx context.Context, itemType Type, subject string) ([]*Item, error) {
	return openBySubject(ctx, t.tx, itemType, subject)
}

// ResolveDependencies assembles the dependencies of id inside the transaction.
func (t *Tx) ResolveDependencies(ctx context.Context, id string) ([]Dependency, error) {
	return resolveDependencies(ctx, t.tx, id)
}
