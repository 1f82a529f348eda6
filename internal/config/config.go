package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains storage directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Workflow contains configuration for the orchestrator worker pool and timing.
// Durations are expressed in seconds.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	CallTimeout        int `toml:"call_timeout"`
	NotReadyDelay      int `toml:"not_ready_delay"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Maintenance contains cron schedules for housekeeping jobs run by the daemon.
type Maintenance struct {
	ReclaimSchedule        string `toml:"reclaim_schedule"`
	RetentionSchedule      string `toml:"retention_schedule"`
	CompletedRetentionDays int    `toml:"completed_retention_days"`
}

// Notifications contains configuration for ntfy operator alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Failures       bool   `toml:"failures"`
}

// Events contains configuration for publishing work-item lifecycle events to Kafka.
type Events struct {
	Brokers      []string `toml:"brokers"`
	Topic        string   `toml:"topic"`
	WriteTimeout int      `toml:"write_timeout"`
}

// API contains configuration for the daemon's HTTP status API.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Provider holds the live and sandbox endpoints of one external integration.
type Provider struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TestBaseURL    string `toml:"test_base_url"`
	TestAPIKey     string `toml:"test_api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Tenant maps a member to the accounts it owns at each provider.
type Tenant struct {
	MemberID          string `toml:"member_id"`
	MicrositeAccount  string `toml:"microsite_account"`
	AccountingRealm   string `toml:"accounting_realm"`
	CardMerchant      string `toml:"card_merchant"`
	GatewayMerchantID string `toml:"gateway_merchant_id"`
}

// Config encapsulates all configuration values for futures.
//
// Configuration sections by subsystem:
//   - Paths: database and log directories
//   - Workflow: worker pool size, polling, heartbeats, per-call deadline
//   - Logging: log format and level
//   - Maintenance: stale lease reclaim and retention schedules
//   - Notifications: ntfy alerts for failed work items
//   - Events: Kafka lifecycle event publishing
//   - API: daemon HTTP status endpoint
//   - Microsite, CardProcessor, PaymentGateway, Accounting: provider endpoints
//   - Tenants: per-member provider accounts
type Config struct {
	Paths          Paths         `toml:"paths"`
	Workflow       Workflow      `toml:"workflow"`
	Logging        Logging       `toml:"logging"`
	Maintenance    Maintenance   `toml:"maintenance"`
	Notifications  Notifications `toml:"notifications"`
	Events         Events        `toml:"events"`
	API            API           `toml:"api"`
	Microsite      Provider      `toml:"microsite"`
	CardProcessor  Provider      `toml:"card_processor"`
	PaymentGateway Provider      `toml:"payment_gateway"`
	Accounting     Provider      `toml:"accounting"`
	Tenants        []Tenant      `toml:"tenants"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/futures/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnvironment(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("futures.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "futures.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "futuresd.lock")
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "futuresd.sock")
}

// PIDPath returns the file recording the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "futuresd.pid")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "futures.log")
}

// Tenant returns the tenant entry for a member, if configured.
func (c *Config) Tenant(memberID string) (Tenant, bool) {
	memberID = strings.TrimSpace(memberID)
	for _, tenant := range c.Tenants {
		if tenant.MemberID == memberID {
			return tenant, true
		}
	}
	return Tenant{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
