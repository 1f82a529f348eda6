// Package microsite is the client for the property microsite provider: buyer
// user accounts, order sites, site media and publishing.
package microsite

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"futures/internal/services"
	"futures/internal/services/httpapi"
	"futures/internal/services/tenant"
	"futures/internal/workitem"
)

const tokenTTL = 5 * time.Minute

// Client is the microsite provider surface used by the integration processor.
type Client interface {
	EnsureUserExists(ctx context.Context, account tenant.Account, req UserRequest) (User, error)
	CreateSite(ctx context.Context, account tenant.Account, req SiteRequest) (Site, error)
	AddDeliverableToSite(ctx context.Context, account tenant.Account, siteID string, req MediaRequest) (Media, error)
	SortSiteDeliverables(ctx context.Context, account tenant.Account, siteID string, mediaIDs []string) (Site, error)
	PublishSite(ctx context.Context, account tenant.Account, siteID string) (Site, error)
}

// UserRequest identifies the buyer to find or create.
type UserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// User is a provider user account.
type User struct {
	ID    workitem.ExternalID `json:"id"`
	Email string              `json:"email"`
}

// SiteRequest creates a site owned by a user.
type SiteRequest struct {
	UserID  string `json:"userId"`
	Title   string `json:"title,omitempty"`
	Address string `json:"address,omitempty"`
}

// Site is a provider microsite.
type Site struct {
	ID     workitem.ExternalID `json:"id"`
	Status string              `json:"status"`
	URL    string              `json:"url,omitempty"`
}

// MediaRequest attaches one deliverable to a site.
type MediaRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
	URL  string `json:"url"`
}

// Media is a site media entry.
type Media struct {
	ID     workitem.ExternalID `json:"id"`
	Status string              `json:"status"`
}

// HTTPClient talks to the provider's REST API. Requests carry a short-lived
// HS256 token naming the tenant's microsite account, signed with the API key.
type HTTPClient struct {
	api    *httpapi.Client
	apiKey []byte
	now    func() time.Time
}

// NewHTTPClient constructs a client rooted at baseURL.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, opts ...httpapi.Option) *HTTPClient {
	c := &HTTPClient{apiKey: []byte(strings.TrimSpace(apiKey)), now: time.Now}
	c.api = httpapi.New("microsite", baseURL, timeout, opts...)
	return c
}

// Token signs the bearer token for account.
func (c *HTTPClient) Token(account tenant.Account) (string, error) {
	if len(c.apiKey) == 0 {
		return "", services.Wrap(services.ErrConfiguration, "microsite", "sign token", "api key not configured", nil)
	}
	if strings.TrimSpace(account.MicrositeAccount) == "" {
		return "", services.Wrap(services.ErrConfiguration, "microsite", "sign token",
			"member "+account.MemberID+" has no microsite account", nil)
	}
	now := c.now()
	claims := jwt.MapClaims{
		"sub":    account.MicrositeAccount,
		"member": account.MemberID,
		"iss":    "futures",
		"iat":    now.Unix(),
		"exp":    now.Add(tokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.apiKey)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "microsite", "sign token", "", err)
	}
	return signed, nil
}

func (c *HTTPClient) do(ctx context.Context, account tenant.Account, method, path string, body, out any) error {
	token, err := c.Token(account)
	if err != nil {
		return err
	}
	return c.api.WithToken(token).Do(ctx, method, path, body, out)
}

func (c *HTTPClient) EnsureUserExists(ctx context.Context, account tenant.Account, req UserRequest) (User, error) {
	var user User
	if strings.TrimSpace(req.Email) == "" {
		return user, services.Wrap(services.ErrValidation, "microsite", "ensure user exists", "email required", nil)
	}
	err := c.do(ctx, account, http.MethodPut, "v1/users", req, &user)
	return user, err
}

func (c *HTTPClient) CreateSite(ctx context.Context, account tenant.Account, req SiteRequest) (Site, error) {
	var site Site
	if strings.TrimSpace(req.UserID) == "" {
		return site, services.Wrap(services.ErrValidation, "microsite", "create site", "user id required", nil)
	}
	err := c.do(ctx, account, http.MethodPost, "v1/sites", req, &site)
	return site, err
}

func (c *HTTPClient) AddDeliverableToSite(ctx context.Context, account tenant.Account, siteID string, req MediaRequest) (Media, error) {
	var media Media
	if strings.TrimSpace(siteID) == "" {
		return media, services.Wrap(services.ErrValidation, "microsite", "add deliverable", "site id required", nil)
	}
	err := c.do(ctx, account, http.MethodPost, fmt.Sprintf("v1/sites/%s/media", siteID), req, &media)
	return media, err
}

func (c *HTTPClient) SortSiteDeliverables(ctx context.Context, account tenant.Account, siteID string, mediaIDs []string) (Site, error) {
	var site Site
	if strings.TrimSpace(siteID) == "" {
		return site, services.Wrap(services.ErrValidation, "microsite", "sort deliverables", "site id required", nil)
	}
	body := map[string][]string{"order": mediaIDs}
	err := c.do(ctx, account, http.MethodPut, fmt.Sprintf("v1/sites/%s/media/order", siteID), body, &site)
	return site, err
}

func (c *HTTPClient) PublishSite(ctx context.Context, account tenant.Account, siteID string) (Site, error) {
	var site Site
	if strings.TrimSpace(siteID) == "" {
		return site, services.Wrap(services.ErrValidation, "microsite", "publish site", "site id required", nil)
	}
	err := c.do(ctx, account, http.MethodPost, fmt.Sprintf("v1/sites/%s/publish", siteID), nil, &site)
	return site, err
}
