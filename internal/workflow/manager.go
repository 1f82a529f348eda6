package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"futures/internal/config"
	"futures/internal/events"
	"futures/internal/logging"
	"futures/internal/notifications"
	"futures/internal/processing"
	"futures/internal/workitem"
)

// Manager coordinates work item processing across a worker pool.
type Manager struct {
	cfg       *config.Config
	store     *workitem.Store
	registry  *processing.Registry
	logger    *slog.Logger
	notifier  notifications.Service
	events    events.Publisher
	heartbeat *HeartbeatMonitor
	now       func() time.Time

	workers       int
	pollInterval  time.Duration
	errorRetry    time.Duration
	callTimeout   time.Duration
	notReadyDelay time.Duration

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	done     chan error
	lastErr  error
	lastItem *workitem.Item

	queueActive bool
	queueStart  time.Time
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithNotifier replaces the ntfy notifier built from config.
func WithNotifier(n notifications.Service) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithEvents publishes lifecycle events through p.
func WithEvents(p events.Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.events = p
		}
	}
}

// WithClock overrides the time source used for not_before deferrals.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *workitem.Store, registry *processing.Registry, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	m := &Manager{
		cfg:           cfg,
		store:         store,
		registry:      registry,
		logger:        logger,
		notifier:      notifications.NewService(cfg),
		events:        events.Noop{},
		now:           func() time.Time { return time.Now().UTC() },
		workers:       cfg.Workflow.Workers,
		pollInterval:  seconds(cfg.Workflow.QueuePollInterval),
		errorRetry:    seconds(cfg.Workflow.ErrorRetryInterval),
		callTimeout:   seconds(cfg.Workflow.CallTimeout),
		notReadyDelay: seconds(cfg.Workflow.NotReadyDelay),
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			seconds(cfg.Workflow.HeartbeatInterval),
			seconds(cfg.Workflow.HeartbeatTimeout),
		),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers < 1 {
		m.workers = 1
	}
	return m
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
