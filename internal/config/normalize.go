package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	c.normalizeMaintenance()
	c.normalizeEvents()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.normalizeProviders()
	c.normalizeTenants()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.NotReadyDelay <= 0 {
		c.Workflow.NotReadyDelay = defaultNotReadyDelay
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeMaintenance() {
	c.Maintenance.ReclaimSchedule = strings.TrimSpace(c.Maintenance.ReclaimSchedule)
	c.Maintenance.RetentionSchedule = strings.TrimSpace(c.Maintenance.RetentionSchedule)
	if c.Maintenance.CompletedRetentionDays < 0 {
		c.Maintenance.CompletedRetentionDays = 0
	}
}

func (c *Config) normalizeEvents() {
	brokers := make([]string, 0, len(c.Events.Brokers))
	for _, broker := range c.Events.Brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	c.Events.Brokers = brokers
	c.Events.Topic = strings.TrimSpace(c.Events.Topic)
	if c.Events.Topic == "" {
		c.Events.Topic = defaultEventsTopic
	}
}

func (c *Config) normalizeProviders() {
	for _, p := range []*Provider{&c.Microsite, &c.CardProcessor, &c.PaymentGateway, &c.Accounting} {
		p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
		p.TestBaseURL = strings.TrimRight(strings.TrimSpace(p.TestBaseURL), "/")
		p.APIKey = strings.TrimSpace(p.APIKey)
		p.TestAPIKey = strings.TrimSpace(p.TestAPIKey)
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = defaultProviderTimeoutSeconds
		}
	}
}

func (c *Config) normalizeTenants() {
	for i := range c.Tenants {
		t := &c.Tenants[i]
		t.MemberID = strings.TrimSpace(t.MemberID)
		t.MicrositeAccount = strings.TrimSpace(t.MicrositeAccount)
		t.AccountingRealm = strings.TrimSpace(t.AccountingRealm)
		t.CardMerchant = strings.TrimSpace(t.CardMerchant)
		t.GatewayMerchantID = strings.TrimSpace(t.GatewayMerchantID)
	}
}
