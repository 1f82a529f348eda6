// Package tenant resolves the per-member provider accounts every external
// call is made on behalf of.
package tenant

import (
	"context"
	"strings"

	"futures/internal/config"
	"futures/internal/services"
)

// Account identifies a member's accounts at each provider.
type Account struct {
	MemberID          string
	MicrositeAccount  string
	AccountingRealm   string
	CardMerchant      string
	GatewayMerchantID string
}

// Resolver maps a member id to its provider accounts.
type Resolver interface {
	Resolve(ctx context.Context, memberID string) (Account, error)
}

// ConfigResolver serves accounts from the [[tenants]] configuration table.
type ConfigResolver struct {
	accounts map[string]Account
}

// NewConfigResolver indexes the configured tenants by member id.
func NewConfigResolver(cfg *config.Config) *ConfigResolver {
	r := &ConfigResolver{accounts: map[string]Account{}}
	if cfg == nil {
		return r
	}
	for _, t := range cfg.Tenants {
		r.accounts[t.MemberID] = Account{
			MemberID:          t.MemberID,
			MicrositeAccount:  t.MicrositeAccount,
			AccountingRealm:   t.AccountingRealm,
			CardMerchant:      t.CardMerchant,
			GatewayMerchantID: t.GatewayMerchantID,
		}
	}
	return r
}

// Resolve returns the account for memberID or an ErrConfiguration failure.
func (r *ConfigResolver) Resolve(_ context.Context, memberID string) (Account, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return Account{}, services.Wrap(services.ErrValidation, "tenant", "resolve", "member id missing from metadata", nil)
	}
	account, ok := r.accounts[memberID]
	if !ok {
		return Account{}, services.Wrap(services.ErrConfiguration, "tenant", "resolve", "no tenant configured for member "+memberID, nil)
	}
	return account, nil
}

// Static is a Resolver over a fixed account list.
type Static []Account

// Resolve returns the matching account.
func (s Static) Resolve(_ context.Context, memberID string) (Account, error) {
	for _, a := range s {
		if a.MemberID == memberID {
			return a, nil
		}
	}
	return Account{}, services.Wrap(services.ErrConfiguration, "tenant", "resolve", "no tenant configured for member "+memberID, nil)
}
