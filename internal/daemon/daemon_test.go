package daemon_test

import (
	"context"
	"log/slog"
	"testing"

	"futures/internal/daemon"
	"futures/internal/domain"
	"futures/internal/logging"
	"futures/internal/processing"
	"futures/internal/testsupport"
	"futures/internal/workflow"
	"futures/internal/workitem"
)

type passThrough struct{ typ workitem.Type }

func (p passThrough) Type() workitem.Type { return p.typ }

func (p passThrough) Handle(_ context.Context, _ *slog.Logger, _ domain.Tx, meta workitem.Metadata, _ []workitem.Dependency) (processing.Outcome, error) {
	return processing.Done(meta), nil
}

func newDaemon(t *testing.T) (*daemon.Daemon, *workitem.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = "127.0.0.1:0"
	store := testsupport.MustOpenStore(t, cfg)

	registry, err := processing.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for _, typ := range workitem.AllTypes() {
		if err := registry.Register(passThrough{typ: typ}); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, registry, logger)
	d, err := daemon.New(cfg, store, logger, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if !status.Workflow.Running {
		t.Fatal("expected workflow to report running")
	}
	if status.NextReclaim.IsZero() || status.NextPurge.IsZero() {
		t.Fatalf("expected scheduled maintenance, got reclaim=%v purge=%v", status.NextReclaim, status.NextPurge)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = ""
	store := testsupport.MustOpenStore(t, cfg)
	registry, err := processing.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for _, typ := range workitem.AllTypes() {
		_ = registry.Register(passThrough{typ: typ})
	}
	logger := logging.NewNop()
	first, err := daemon.New(cfg, store, logger, workflow.NewManager(cfg, store, registry, logger), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	second, err := daemon.New(cfg, store, logger, workflow.NewManager(cfg, store, registry, logger), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be refused")
	}
}

func TestMaintenanceJobs(t *testing.T) {
	d, store := newDaemon(t)
	ctx := context.Background()

	item := testsupport.MustCreate(t, store, workitem.AccountingMetadata{Type: workitem.OpUpsertCustomer, MemberID: "1"})
	claimed, err := store.Claim(ctx, "crashed-worker")
	if err != nil || claimed == nil || claimed.ID != item.ID {
		t.Fatalf("Claim = %v, %v", claimed, err)
	}

	reclaimed, err := d.ReclaimStale(ctx)
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("fresh lease reclaimed: %d", reclaimed)
	}

	purged, err := d.PurgeCompleted(ctx)
	if err != nil {
		t.Fatalf("PurgeCompleted: %v", err)
	}
	if purged != 0 {
		t.Fatalf("purged %d fresh items", purged)
	}
	if got, err := store.Get(ctx, item.ID); err != nil || got.LeaseOwner != "crashed-worker" {
		t.Fatalf("item after maintenance = %+v, %v", got, err)
	}
}
