// Package httpapi is the JSON-over-HTTP transport shared by the provider
// clients. Non-2xx answers are decoded into *services.ProviderError.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"futures/internal/services"
)

const defaultTimeout = 30 * time.Second

// HTTPDoer describes the HTTP client used by provider clients.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Authorizer decorates an outgoing request with credentials.
type Authorizer func(ctx context.Context, req *http.Request) error

// Client issues JSON requests against one provider base URL.
type Client struct {
	provider  string
	baseURL   string
	doer      HTTPDoer
	authorize Authorizer
	headers   http.Header
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.doer = doer
		}
	}
}

// WithAuthorizer sets the per-request credential hook.
func WithAuthorizer(fn Authorizer) Option {
	return func(c *Client) {
		c.authorize = fn
	}
}

// WithBearerToken authorizes every request with a static bearer token.
func WithBearerToken(token string) Option {
	token = strings.TrimSpace(token)
	return WithAuthorizer(func(_ context.Context, req *http.Request) error {
		if token == "" {
			return services.Wrap(services.ErrConfiguration, "httpapi", "authorize", "api key not configured", nil)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	})
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// New constructs a client for provider rooted at baseURL.
func New(provider, baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		provider: provider,
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		doer:     &http.Client{Timeout: timeout},
		headers:  http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of c that authorizes with a bearer token minted
// for one tenant.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	WithBearerToken(token)(&clone)
	return &clone
}

// Provider returns the provider name used in errors.
func (c *Client) Provider() string {
	return c.provider
}

// Do sends body as JSON to path and decodes a successful answer into out.
// Either body or out may be nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return services.Wrap(services.ErrConfiguration, c.provider, path, "base url not configured", nil)
	}
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, c.provider, path, "build url", err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return services.Wrap(services.ErrValidation, c.provider, path, "encode request", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return services.Wrap(services.ErrValidation, c.provider, path, "new request", err)
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authorize != nil {
		if err := c.authorize(ctx, req); err != nil {
			return err
		}
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, c.provider, path, "request deadline exceeded", err)
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		return services.Wrap(services.ErrTransient, c.provider, path, "http request", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, c.provider, path, "read response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return c.decodeError(resp.StatusCode, payload)
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return services.Wrap(services.ErrProvider, c.provider, path, "decode response", err)
	}
	return nil
}

type errorBody struct {
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	ExistingID json.RawMessage `json:"existingId"`
	Error      *struct {
		Code       string          `json:"code"`
		Message    string          `json:"message"`
		ExistingID json.RawMessage `json:"existingId"`
	} `json:"error"`
}

func (c *Client) decodeError(status int, payload []byte) error {
	pe := &services.ProviderError{Provider: c.provider, Status: status}
	var parsed errorBody
	if err := json.Unmarshal(payload, &parsed); err == nil {
		pe.Code = parsed.Code
		pe.Message = parsed.Message
		pe.ExistingID = rawID(parsed.ExistingID)
		if parsed.Error != nil {
			pe.Code = firstNonEmpty(parsed.Error.Code, pe.Code)
			pe.Message = firstNonEmpty(parsed.Error.Message, pe.Message)
			pe.ExistingID = firstNonEmpty(rawID(parsed.Error.ExistingID), pe.ExistingID)
		}
	}
	if pe.Message == "" {
		pe.Message = summarize(payload)
	}
	return pe
}

// rawID renders a JSON string or number id as a string.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

func summarize(payload []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(payload))
	if len(text) > limit {
		return fmt.Sprintf("%s...", text[:limit])
	}
	return text
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
