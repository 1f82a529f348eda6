package testsupport

import (
	"context"
	"testing"

	"futures/internal/config"
	"futures/internal/workitem"
)

// MustOpenStore opens a workitem.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *workitem.Store {
	t.Helper()

	store, err := workitem.Open(cfg)
	if err != nil {
		t.Fatalf("workitem.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustCreate creates a work item for tests using the provided store.
func MustCreate(t testing.TB, store *workitem.Store, meta workitem.Metadata, dependsOn ...string) *workitem.Item {
	t.Helper()

	item, err := store.Create(context.Background(), workitem.Spec{
		Type:      meta.ItemType(),
		Metadata:  meta,
		DependsOn: dependsOn,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return item
}

// MustProcess marks a created item processed with meta merged in.
func MustProcess(t testing.TB, store *workitem.Store, id string, meta workitem.Metadata) *workitem.Item {
	t.Helper()

	var item *workitem.Item
	err := store.WriteTx(context.Background(), func(tx *workitem.Tx) error {
		var err error
		item, err = tx.SaveProcessed(context.Background(), id, meta)
		return err
	})
	if err != nil {
		t.Fatalf("SaveProcessed %s: %v", id, err)
	}
	return item
}
