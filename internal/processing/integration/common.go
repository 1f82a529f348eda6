package integration

import (
	"context"
	"fmt"
	"strings"

	"futures/internal/processing"
	"futures/internal/services"
	"futures/internal/services/tenant"
	"futures/internal/workitem"
)

// ClientPair holds the live and test credential sets for one provider.
type ClientPair[C any] struct {
	Live C
	Test C
}

// pick returns the client for the requested mode.
func (p ClientPair[C]) pick(itemType workitem.Type, test bool) (C, error) {
	client, mode := p.Live, "live"
	if test {
		client, mode = p.Test, "test"
	}
	if any(client) == nil {
		var zero C
		return zero, services.Wrap(services.ErrConfiguration, string(itemType), "select client",
			mode+" client not configured", nil)
	}
	return client, nil
}

func (p ClientPair[C]) health(name string) processing.Health {
	if any(p.Live) == nil {
		return processing.Unhealthy(name, "live client not configured")
	}
	if any(p.Test) == nil {
		return processing.Unhealthy(name, "test client not configured")
	}
	return processing.Healthy(name)
}

func notImplemented(itemType workitem.Type, op workitem.Operation) error {
	return services.Wrap(services.ErrNotImplemented, string(itemType), string(op),
		fmt.Sprintf("no handler for %s sub-operation %q", itemType, op), nil)
}

func resolveAccount(ctx context.Context, tenants tenant.Resolver, memberID string) (tenant.Account, error) {
	if tenants == nil {
		return tenant.Account{}, services.Wrap(services.ErrConfiguration, "integration", "resolve tenant", "no tenant resolver", nil)
	}
	return tenants.Resolve(ctx, memberID)
}

// defaultID returns current when set, otherwise the first id pick finds in
// deps, in declared order.
func defaultID(current workitem.ExternalID, deps []workitem.Dependency, pick func(workitem.Metadata) workitem.ExternalID) workitem.ExternalID {
	if !current.Empty() {
		return current
	}
	for _, dep := range deps {
		if id := pick(dep.Metadata); !id.Empty() {
			return id
		}
	}
	return ""
}

// callbackID extracts the external id a callback of type t wrote back.
func callbackID(meta workitem.Metadata, t workitem.Type) workitem.ExternalID {
	if meta == nil || meta.ItemType() != t {
		return ""
	}
	if res, ok := workitem.CallbackResult(meta); ok {
		return res.ExternalID
	}
	return ""
}

func requireID(itemType workitem.Type, op workitem.Operation, field string, id workitem.ExternalID) error {
	if id.Empty() {
		return services.Wrap(services.ErrValidation, string(itemType), string(op),
			field+" missing from payload and dependencies", nil)
	}
	return nil
}

// splitCompositeID splits a "profile/paymentProfile" id.
func splitCompositeID(id workitem.ExternalID) (workitem.ExternalID, workitem.ExternalID) {
	profile, paymentProfile, ok := strings.Cut(id.String(), "/")
	if !ok {
		return "", id
	}
	return workitem.ExternalID(profile), workitem.ExternalID(paymentProfile)
}
