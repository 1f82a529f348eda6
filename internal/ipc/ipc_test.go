package ipc_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"futures/internal/daemon"
	"futures/internal/domain"
	"futures/internal/ipc"
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

func startServer(t *testing.T) (*ipc.Client, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = ""
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
	d, err := daemon.New(cfg, store, logger, workflow.NewManager(cfg, store, registry, logger), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	// Unix socket paths are length limited; keep this one short.
	dir, err := os.MkdirTemp("", "fipc")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := ipc.NewServer(ctx, filepath.Join(dir, "d.sock"), d, logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(filepath.Join(dir, "d.sock"))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, cfg.LogPath()
}

func TestStartStopStatus(t *testing.T) {
	client, _ := startServer(t)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon should not be running before Start")
	}
	if status.DatabasePath == "" || status.Workflow.QueueStats == nil {
		t.Fatalf("incomplete status: %+v", status)
	}

	started, err := client.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !started.Started {
		t.Fatalf("start refused: %s", started.Message)
	}
	again, err := client.Start()
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if again.Started || again.Message == "" {
		t.Fatalf("second start response = %+v", again)
	}

	status, err = client.Status()
	if err != nil || !status.Running || status.NextReclaim == "" {
		t.Fatalf("status after start = %+v, %v", status, err)
	}

	if _, err := client.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	status, err = client.Status()
	if err != nil || status.Running {
		t.Fatalf("status after stop = %+v, %v", status, err)
	}
}

func TestMaintenanceCalls(t *testing.T) {
	client, _ := startServer(t)

	reclaimed, err := client.ReclaimStale()
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed.Affected != 0 {
		t.Fatalf("reclaimed = %d", reclaimed.Affected)
	}
	if _, err := client.PurgeCompleted(); err != nil {
		t.Fatalf("PurgeCompleted: %v", err)
	}
}

func TestLogTailFiltersDaemonLog(t *testing.T) {
	client, logPath := startServer(t)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(logPath, []byte("item=a start\nitem=b start\nitem=a done\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	resp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 10, Match: "item=a"})
	if err != nil {
		t.Fatalf("LogTail: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[1] != "item=a done" {
		t.Fatalf("lines = %#v", resp.Lines)
	}
	if resp.Offset == 0 {
		t.Fatal("expected offset to advance")
	}
}
