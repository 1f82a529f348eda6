package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"futures/internal/logging"
)

// ReclaimStale releases leases whose heartbeat is older than the configured
// heartbeat timeout.
func (d *Daemon) ReclaimStale(ctx context.Context) (int64, error) {
	timeout := time.Duration(d.cfg.Workflow.HeartbeatTimeout) * time.Second
	reclaimed, err := d.store.ReclaimStale(ctx, time.Now().UTC().Add(-timeout))
	if err != nil {
		return 0, fmt.Errorf("reclaim stale leases: %w", err)
	}
	if reclaimed > 0 {
		d.logger.Info("reclaimed stale leases",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "maintenance_reclaim"))
	}
	return reclaimed, nil
}

// PurgeCompleted deletes completed items older than the retention window.
// A zero retention keeps everything.
func (d *Daemon) PurgeCompleted(ctx context.Context) (int64, error) {
	days := d.cfg.Maintenance.CompletedRetentionDays
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	purged, err := d.store.PurgeCompleted(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge completed items: %w", err)
	}
	d.logger.Info("purged completed items",
		logging.Int64("count", purged),
		logging.Int("retention_days", days),
		logging.String(logging.FieldEventType, "maintenance_purge"))
	return purged, nil
}

func (d *Daemon) startScheduler(ctx context.Context) error {
	scheduler := cron.New(cron.WithLogger(cronLogger{logger: d.logger}))
	jobs := []struct {
		name string
		spec string
		id   *cron.EntryID
		run  func(context.Context) (int64, error)
	}{
		{name: "reclaim", spec: d.cfg.Maintenance.ReclaimSchedule, id: &d.reclaimID, run: d.ReclaimStale},
		{name: "purge", spec: d.cfg.Maintenance.RetentionSchedule, id: &d.purgeID, run: d.PurgeCompleted},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		run := job.run
		name := job.name
		id, err := scheduler.AddFunc(job.spec, func() {
			if _, err := run(ctx); err != nil && ctx.Err() == nil {
				d.logger.Warn("maintenance job failed",
					logging.String("job", name),
					logging.Error(err),
					logging.String(logging.FieldEventType, "maintenance_failed"),
					logging.String(logging.FieldErrorHint, "check work item database access"),
				)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %s job: %w", name, err)
		}
		*job.id = id
	}
	scheduler.Start()
	d.scheduler = scheduler
	return nil
}

func (d *Daemon) stopScheduler() {
	if d.scheduler == nil {
		return
	}
	<-d.scheduler.Stop().Done()
	d.scheduler = nil
	d.reclaimID = 0
	d.purgeID = 0
}

// cronLogger routes scheduler diagnostics through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("scheduler: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("scheduler: "+msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}
