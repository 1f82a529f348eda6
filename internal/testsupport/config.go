package testsupport

import (
	"path/filepath"
	"testing"

	"futures/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.ErrorRetryInterval = 1
	cfgVal.Workflow.NotReadyDelay = 1
	cfgVal.Tenants = []config.Tenant{{MemberID: "1", MicrositeAccount: "acct-1", AccountingRealm: "realm-1"}}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithProviderURL points every provider, live and sandbox, at baseURL.
func WithProviderURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		for _, p := range []*config.Provider{&b.cfg.Microsite, &b.cfg.CardProcessor, &b.cfg.PaymentGateway, &b.cfg.Accounting} {
			p.BaseURL = baseURL
			p.TestBaseURL = baseURL
			p.APIKey = "live-key"
			p.TestAPIKey = "test-key"
		}
	}
}

// WithTenant adds a tenant mapping.
func WithTenant(tenant config.Tenant) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tenants = append(b.cfg.Tenants, tenant)
	}
}

// WithWorkers overrides the worker pool size.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Workers = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
