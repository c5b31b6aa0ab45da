// Package elog is the client for the experiment logbook web service.
//
// The package covers two concerns: the HTTP client itself, including the
// Kerberos-backed credential handling and the transient/permanent error
// classification the sync pipeline relies on, and one fetch function per
// endpoint (info, elog, runs, files, questionnaire, workflows) that turns
// the raw API payload into the row types under types.go.
package elog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the production logbook endpoint.
const DefaultBaseURL = "https://pswww.slac.stanford.edu"

// DefaultPrincipal is the HTTP service principal of the logbook host.
const DefaultPrincipal = "HTTP@pswww.slac.stanford.edu"

// AuthError reports a credential problem (missing ticket, expired ticket,
// or access denied). It is always permanent: retrying cannot help until the
// operator re-authenticates.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// APIError reports a failed API call. StatusCode is zero for network-level
// failures that never produced a response.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api request %s failed: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("api request %s failed: %v", e.Endpoint, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying. Server errors,
// rate limiting and network-level failures are transient; everything else
// (validation errors, missing resources) is permanent.
func (e *APIError) Transient() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsTransient classifies any error from this package for retry purposes.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	// Unknown errors (context cancellation and the like) are not retried.
	return false
}

// Credential produces the Authorization headers for authenticated calls.
//
// Implementations may cache; Refresh discards any cached state so the next
// AuthHeaders call mints fresh headers (used after a 401).
type Credential interface {
	AuthHeaders(ctx context.Context) (map[string]string, error)
	Refresh()
}

// StaticCredential sends a fixed Authorization header value. Used by tests
// and by automation that obtains a token out of band.
type StaticCredential string

// AuthHeaders implements Credential.
func (s StaticCredential) AuthHeaders(ctx context.Context) (map[string]string, error) {
	if s == "" {
		return map[string]string{}, nil
	}
	return map[string]string{"Authorization": string(s)}, nil
}

// Refresh implements Credential. Static tokens cannot be refreshed.
func (s StaticCredential) Refresh() {}

// Client talks to the logbook web service.
type Client struct {
	baseURL    string
	credential Credential
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient substitutes the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a logbook client. An empty baseURL selects the
// production endpoint; a nil credential means unauthenticated calls only.
func NewClient(baseURL string, credential Credential, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if credential == nil {
		credential = StaticCredential("")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		credential: credential,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an authenticated GET and decodes the JSON response into out.
//
// A 401 response triggers one credential refresh and retry; a second 401 or
// a 403 becomes an AuthError. Other non-2xx statuses become an APIError.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	return c.get(ctx, endpoint, params, out, true)
}

// GetPublic performs an unauthenticated GET. Some listing endpoints do not
// require a ticket.
func (c *Client) GetPublic(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	return c.get(ctx, endpoint, params, out, false)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}, auth bool) error {
	var headers map[string]string
	if auth {
		var err error
		headers, err = c.credential.AuthHeaders(ctx)
		if err != nil {
			return &AuthError{Reason: err.Error()}
		}
	}

	status, body, err := c.do(ctx, endpoint, params, headers)
	if err != nil {
		return &APIError{Endpoint: endpoint, Err: err}
	}

	// On 401, refresh the credential once and retry.
	if status == http.StatusUnauthorized && auth {
		c.credential.Refresh()
		headers, err = c.credential.AuthHeaders(ctx)
		if err != nil {
			return &AuthError{Reason: err.Error()}
		}
		status, body, err = c.do(ctx, endpoint, params, headers)
		if err != nil {
			return &APIError{Endpoint: endpoint, Err: err}
		}
		if status == http.StatusUnauthorized {
			return &AuthError{Reason: fmt.Sprintf("access denied for %s", endpoint)}
		}
	}

	if status == http.StatusForbidden {
		return &AuthError{Reason: fmt.Sprintf("access denied for %s", endpoint)}
	}

	if status < 200 || status >= 300 {
		return &APIError{Endpoint: endpoint, StatusCode: status, Body: truncate(body, 500)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return &APIError{Endpoint: endpoint, StatusCode: status, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values, headers map[string]string) (int, string, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, string(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// apiEnvelope is the standard {success, value} wrapper the logbook service
// puts around most responses.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Value   json.RawMessage `json:"value"`
}
