package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"futures/internal/api"
	"futures/internal/config"
	"futures/internal/events"
	"futures/internal/logging"
	"futures/internal/notifications"
	"futures/internal/workflow"
	"futures/internal/workitem"
)

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *workitem.Store
	workflow *workflow.Manager
	events   events.Publisher

	lockPath string
	lock     *flock.Flock

	scheduler *cron.Cron
	reclaimID cron.EntryID
	purgeID   cron.EntryID
	api       *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	NextReclaim  time.Time
	NextPurge    time.Time
}

// New constructs a daemon with initialized dependencies. publisher may be nil;
// when set it is closed with the daemon.
func New(cfg *config.Config, store *workitem.Store, logger *slog.Logger, wf *workflow.Manager, publisher events.Publisher) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		events:   publisher,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, d.logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, schedules maintenance, and launches the
// workflow manager and status API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another futures daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.startScheduler(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.workflow.Start(runCtx); err != nil {
		d.stopScheduler()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		d.stopScheduler()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("futures daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.stopScheduler()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("futures daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.events != nil {
		errs = append(errs, d.events.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if d.scheduler != nil {
		if d.reclaimID != 0 {
			status.NextReclaim = d.scheduler.Entry(d.reclaimID).Next
		}
		if d.purgeID != 0 {
			status.NextPurge = d.scheduler.Entry(d.purgeID).Next
		}
	}
	return status
}

// DTO converts the status into its transport representation.
func (s Status) DTO() api.DaemonStatus {
	payload := api.DaemonStatus{
		Running:      s.Running,
		PID:          s.PID,
		DatabasePath: s.DatabasePath,
		LockFilePath: s.LockFilePath,
		Workflow:     api.FromStatusSummary(s.Workflow),
	}
	if !s.NextReclaim.IsZero() {
		payload.NextReclaim = s.NextReclaim.UTC().Format(time.RFC3339)
	}
	if !s.NextPurge.IsZero() {
		payload.NextPurge = s.NextPurge.UTC().Format(time.RFC3339)
	}
	return payload
}

// LogPath returns the file the daemon logs to.
func (d *Daemon) LogPath() string {
	return d.cfg.LogPath()
}
