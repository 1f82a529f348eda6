package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"futures/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "futures")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "futures.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Workflow.Workers != config.Default().Workflow.Workers {
		t.Fatalf("unexpected worker count: %d", cfg.Workflow.Workers)
	}
	if cfg.Workflow.CallTimeout != config.Default().Workflow.CallTimeout {
		t.Fatalf("unexpected call timeout: %d", cfg.Workflow.CallTimeout)
	}
	if len(cfg.Events.Brokers) != 0 {
		t.Fatalf("expected events disabled by default, got %v", cfg.Events.Brokers)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "futures.toml")

	type payload struct {
		Workflow struct {
			Workers           int `toml:"workers"`
			HeartbeatInterval int `toml:"heartbeat_interval"`
			HeartbeatTimeout  int `toml:"heartbeat_timeout"`
		} `toml:"workflow"`
		Microsite struct {
			BaseURL string `toml:"base_url"`
		} `toml:"microsite"`
		Tenants []struct {
			MemberID         string `toml:"member_id"`
			MicrositeAccount string `toml:"microsite_account"`
		} `toml:"tenants"`
	}
	custom := payload{}
	custom.Workflow.Workers = 8
	custom.Workflow.HeartbeatInterval = 20
	custom.Workflow.HeartbeatTimeout = 200
	custom.Microsite.BaseURL = "https://sites.example.com/api/"
	custom.Tenants = append(custom.Tenants, struct {
		MemberID         string `toml:"member_id"`
		MicrositeAccount string `toml:"microsite_account"`
	}{MemberID: " 7 ", MicrositeAccount: "acme"})
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Workflow.Workers != 8 {
		t.Fatalf("expected 8 workers, got %d", cfg.Workflow.Workers)
	}
	if cfg.Workflow.HeartbeatTimeout != 200 {
		t.Fatalf("expected heartbeat timeout 200, got %d", cfg.Workflow.HeartbeatTimeout)
	}
	if cfg.Microsite.BaseURL != "https://sites.example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Microsite.BaseURL)
	}
	tenant, ok := cfg.Tenant("7")
	if !ok || tenant.MicrositeAccount != "acme" {
		t.Fatalf("expected tenant 7 to resolve, got %+v (ok=%v)", tenant, ok)
	}
}

func TestEnvironmentFillsOnlyMissingSecrets(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "futures.toml")
	contents := "[microsite]\napi_key = \"file-key\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	dotenv := "FUTURES_ACCOUNTING_API_KEY=dotenv-accounting\n"
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte(dotenv), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("FUTURES_ACCOUNTING_API_KEY") })

	t.Setenv("FUTURES_MICROSITE_API_KEY", "env-key")
	t.Setenv("FUTURES_PAYMENT_GATEWAY_TEST_API_KEY", "env-gateway")
	t.Setenv("FUTURES_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Microsite.APIKey != "file-key" {
		t.Errorf("expected file value to win, got %q", cfg.Microsite.APIKey)
	}
	if cfg.PaymentGateway.TestAPIKey != "env-gateway" {
		t.Errorf("expected gateway test key from env, got %q", cfg.PaymentGateway.TestAPIKey)
	}
	if cfg.Accounting.APIKey != "dotenv-accounting" {
		t.Errorf("expected accounting key from .env, got %q", cfg.Accounting.APIKey)
	}
	if len(cfg.Events.Brokers) != 2 || cfg.Events.Brokers[1] != "k2:9092" {
		t.Errorf("expected brokers from env, got %v", cfg.Events.Brokers)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[payment_gateway]") {
		t.Fatalf("sample config missing payment gateway section: %s", contents)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "futures") {
		t.Fatalf("expected data dir to contain futures, got %q", cfg.Paths.DataDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero workers", func(c *config.Config) { c.Workflow.Workers = 0 }},
		{"zero call timeout", func(c *config.Config) { c.Workflow.CallTimeout = 0 }},
		{"heartbeat interval", func(c *config.Config) { c.Workflow.HeartbeatInterval = 0 }},
		{"timeout not above interval", func(c *config.Config) { c.Workflow.HeartbeatTimeout = c.Workflow.HeartbeatInterval }},
		{"bad cron", func(c *config.Config) { c.Maintenance.ReclaimSchedule = "every five minutes" }},
		{"relative provider url", func(c *config.Config) { c.CardProcessor.BaseURL = "api.example.com" }},
		{"events without timeout", func(c *config.Config) {
			c.Events.Brokers = []string{"localhost:9092"}
			c.Events.WriteTimeout = 0
		}},
		{"tenant without member", func(c *config.Config) { c.Tenants = []config.Tenant{{MicrositeAccount: "x"}} }},
		{"duplicate tenant", func(c *config.Config) { c.Tenants = []config.Tenant{{MemberID: "1"}, {MemberID: "1"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
