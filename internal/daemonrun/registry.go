package daemonrun

import (
	"strings"
	"time"

	"futures/internal/config"
	"futures/internal/processing"
	"futures/internal/processing/callback"
	"futures/internal/processing/integration"
	"futures/internal/services/accounting"
	"futures/internal/services/cardpay"
	"futures/internal/services/gateway"
	"futures/internal/services/microsite"
	"futures/internal/services/tenant"
)

// BuildRegistry wires one processor per work item type from configuration.
// Providers without a base URL get no client for that mode; their processors
// report unhealthy and fail items with a configuration error.
func BuildRegistry(cfg *config.Config) (*processing.Registry, error) {
	tenants := tenant.NewConfigResolver(cfg)

	procs := []processing.Processor{
		integration.NewMicrosite(
			providerClient(cfg.Microsite, false, func(url, key string, timeout time.Duration) microsite.Client {
				return microsite.NewHTTPClient(url, key, timeout)
			}),
			providerClient(cfg.Microsite, true, func(url, key string, timeout time.Duration) microsite.Client {
				return microsite.NewHTTPClient(url, key, timeout)
			}),
			tenants),
		integration.NewCardProcessor(
			providerClient(cfg.CardProcessor, false, func(url, key string, timeout time.Duration) cardpay.Client {
				return cardpay.NewHTTPClient(url, key, timeout)
			}),
			providerClient(cfg.CardProcessor, true, func(url, key string, timeout time.Duration) cardpay.Client {
				return cardpay.NewHTTPClient(url, key, timeout)
			}),
			tenants),
		integration.NewPaymentGateway(
			providerClient(cfg.PaymentGateway, false, func(url, key string, timeout time.Duration) gateway.Client {
				return gateway.NewHTTPClient(url, key, timeout)
			}),
			providerClient(cfg.PaymentGateway, true, func(url, key string, timeout time.Duration) gateway.Client {
				return gateway.NewHTTPClient(url, key, timeout)
			}),
			tenants),
		integration.NewAccounting(
			providerClient(cfg.Accounting, false, func(url, key string, timeout time.Duration) accounting.Client {
				return accounting.NewHTTPClient(url, key, timeout)
			}),
			providerClient(cfg.Accounting, true, func(url, key string, timeout time.Duration) accounting.Client {
				return accounting.NewHTTPClient(url, key, timeout)
			}),
			tenants),
	}
	procs = append(procs, callback.Processors()...)

	registry, err := processing.NewRegistry(procs...)
	if err != nil {
		return nil, err
	}
	if err := registry.Validate(); err != nil {
		return nil, err
	}
	return registry, nil
}

// providerClient returns the zero C (a nil interface) when the mode has no
// base URL, so processors can detect the missing client.
func providerClient[C any](p config.Provider, test bool, build func(url, key string, timeout time.Duration) C) C {
	url, key := p.BaseURL, p.APIKey
	if test {
		url, key = p.TestBaseURL, p.TestAPIKey
	}
	if strings.TrimSpace(url) == "" {
		var zero C
		return zero
	}
	return build(url, key, time.Duration(p.TimeoutSeconds)*time.Second)
}
