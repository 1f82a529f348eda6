package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateMaintenance(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateTenants(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":              c.Workflow.Workers,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.call_timeout":         c.Workflow.CallTimeout,
		"workflow.not_ready_delay":      c.Workflow.NotReadyDelay,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateMaintenance() error {
	for key, spec := range map[string]string{
		"maintenance.reclaim_schedule":   c.Maintenance.ReclaimSchedule,
		"maintenance.retention_schedule": c.Maintenance.RetentionSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: invalid cron expression %q: %w", key, spec, err)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	topic := strings.TrimSpace(c.Notifications.NtfyTopic)
	if topic == "" {
		return nil
	}
	if _, err := url.ParseRequestURI(topic); err != nil {
		return fmt.Errorf("notifications.ntfy_topic must be a URL: %w", err)
	}
	return nil
}

func (c *Config) validateEvents() error {
	if len(c.Events.Brokers) == 0 {
		return nil
	}
	if c.Events.WriteTimeout <= 0 {
		return errors.New("events.write_timeout must be positive when events.brokers is set")
	}
	return nil
}

func (c *Config) validateProviders() error {
	for key, p := range map[string]Provider{
		"microsite":       c.Microsite,
		"card_processor":  c.CardProcessor,
		"payment_gateway": c.PaymentGateway,
		"accounting":      c.Accounting,
	} {
		for field, raw := range map[string]string{"base_url": p.BaseURL, "test_base_url": p.TestBaseURL} {
			if raw == "" {
				continue
			}
			parsed, err := url.Parse(raw)
			if err != nil || parsed.Scheme == "" || parsed.Host == "" {
				return fmt.Errorf("%s.%s must be an absolute URL, got %q", key, field, raw)
			}
		}
	}
	return nil
}

func (c *Config) validateTenants() error {
	seen := make(map[string]struct{}, len(c.Tenants))
	for i, tenant := range c.Tenants {
		if tenant.MemberID == "" {
			return fmt.Errorf("tenants[%d].member_id must be set", i)
		}
		if _, dup := seen[tenant.MemberID]; dup {
			return fmt.Errorf("tenants[%d].member_id %q is duplicated", i, tenant.MemberID)
		}
		seen[tenant.MemberID] = struct{}{}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
