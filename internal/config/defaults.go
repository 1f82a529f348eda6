package config

const (
	defaultDataDir                   = "~/.local/share/futures"
	defaultLogDir                    = "~/.local/share/futures/logs"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultWorkers                   = 4
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultCallTimeout               = 60
	defaultNotReadyDelay             = 30
	defaultReclaimSchedule           = "*/5 * * * *"
	defaultRetentionSchedule         = "30 3 * * *"
	defaultCompletedRetentionDays    = 90
	defaultEventsTopic               = "futures.lifecycle"
	defaultEventsWriteTimeout        = 10
	defaultProviderTimeoutSeconds    = 30
	defaultAPIBind                   = "127.0.0.1:7480"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
			CallTimeout:        defaultCallTimeout,
			NotReadyDelay:      defaultNotReadyDelay,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Maintenance: Maintenance{
			ReclaimSchedule:        defaultReclaimSchedule,
			RetentionSchedule:      defaultRetentionSchedule,
			CompletedRetentionDays: defaultCompletedRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Failures:       true,
		},
		Events: Events{
			Topic:        defaultEventsTopic,
			WriteTimeout: defaultEventsWriteTimeout,
		},
		API:            API{Bind: defaultAPIBind},
		Microsite:      Provider{TimeoutSeconds: defaultProviderTimeoutSeconds},
		CardProcessor:  Provider{TimeoutSeconds: defaultProviderTimeoutSeconds},
		PaymentGateway: Provider{TimeoutSeconds: defaultProviderTimeoutSeconds},
		Accounting:     Provider{TimeoutSeconds: defaultProviderTimeoutSeconds},
	}
}
