// Package daemonrun assembles and runs the futures daemon in the foreground.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"futures/internal/config"
	"futures/internal/daemon"
	"futures/internal/events"
	"futures/internal/ipc"
	"futures/internal/logging"
	"futures/internal/workflow"
	"futures/internal/workitem"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// Paused keeps workers idle until a Start request arrives over the socket.
	Paused bool
}

// Run starts the daemon and blocks until SIGINT, SIGTERM, or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logConfigSnapshot(logger, cfg)

	if err := writePIDFile(cfg.PIDPath()); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(cfg.PIDPath())

	store, err := workitem.Open(cfg)
	if err != nil {
		logger.Error("open work item store", logging.Error(err))
		return err
	}

	registry, err := BuildRegistry(cfg)
	if err != nil {
		store.Close()
		return fmt.Errorf("build processor registry: %w", err)
	}

	publisher := events.New(cfg, logger)
	manager := workflow.NewManager(cfg, store, registry, logger, workflow.WithEvents(publisher))

	d, err := daemon.New(cfg, store, logger, manager, publisher)
	if err != nil {
		publisher.Close()
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if !opts.Paused {
		if err := d.Start(signalCtx); err != nil {
			logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check configuration and database access, then run futures start"))
		}
	}

	<-signalCtx.Done()
	logger.Info("futures daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// logConfigSnapshot records which providers are reachable without logging
// credentials.
func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	providers := []struct {
		name string
		p    config.Provider
	}{
		{"microsite", cfg.Microsite},
		{"card_processor", cfg.CardProcessor},
		{"payment_gateway", cfg.PaymentGateway},
		{"accounting", cfg.Accounting},
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.Int("workers", cfg.Workflow.Workers),
		logging.Int("tenants", len(cfg.Tenants)),
		logging.Bool("events_enabled", len(cfg.Events.Brokers) > 0),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.String("api_bind", cfg.API.Bind),
	}
	for _, entry := range providers {
		attrs = append(attrs,
			logging.Bool(entry.name+"_live", strings.TrimSpace(entry.p.BaseURL) != ""),
			logging.Bool(entry.name+"_test", strings.TrimSpace(entry.p.TestBaseURL) != ""))
	}
	logger.Info("configuration snapshot", logging.Args(attrs...)...)
}
