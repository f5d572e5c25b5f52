// Package widgetclient calls the widget HTTP API on behalf of a host page or
// an operator. Requests carry the page origin in the Origin header, as a
// browser would.
package widgetclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vestiva/internal/manifest"
)

var (
	// ErrUnauthorized is returned for 401 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadRequest is returned for 400 responses.
	ErrBadRequest = errors.New("bad request")
)

// StatusError is any non-2xx response not covered by a more specific error.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("widget api: %d %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusBadRequest:
		return ErrBadRequest
	}
	return nil
}

// RateLimitError is returned for 429 responses. The client never retries on
// its own; RetryAfter is the server's hint, zero when absent.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("widget api: rate limited, retry after %s", e.RetryAfter)
}

type Manifest = manifest.Manifest

type ValidateResult struct {
	Valid       bool     `json:"valid"`
	ClientID    string   `json:"clientId,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type Session struct {
	ClientID    string   `json:"clientId"`
	Permissions []string `json:"permissions"`
}

type Client struct {
	base   string
	origin string
	http   *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// New returns a client for the API at baseURL acting for the page at origin.
func New(baseURL, origin string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		origin: origin,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Origin() string { return c.origin }

// Manifest fetches the loader manifest.
func (c *Client) Manifest(ctx context.Context) (Manifest, error) {
	var m Manifest
	err := c.do(ctx, http.MethodGet, "/widget/manifest.json", "", nil, &m)
	return m, err
}

// IssueToken requests a widget token for clientID bound to the client origin.
func (c *Client) IssueToken(ctx context.Context, clientID string, permissions []string) (string, error) {
	body := map[string]any{"clientId": clientID}
	if permissions != nil {
		body["permissions"] = permissions
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/widget/token", "", body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// ValidateToken asks the server whether token is usable from the client origin.
func (c *Client) ValidateToken(ctx context.Context, token string) (ValidateResult, error) {
	var out ValidateResult
	err := c.do(ctx, http.MethodPost, "/api/widget/validate", "", map[string]string{"token": token}, &out)
	return out, err
}

// CheckDomain reports whether domain is authorized for clientID.
func (c *Client) CheckDomain(ctx context.Context, domain, clientID string) (bool, error) {
	path := "/api/widget/domains/" + url.PathEscape(domain) + "?clientId=" + url.QueryEscape(clientID)
	var out struct {
		IsValid bool `json:"isValid"`
	}
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return false, err
	}
	return out.IsValid, nil
}

// ValidateDomain is the first handshake step: is the client origin registered
// for clientID, proven with the integrator's client token.
func (c *Client) ValidateDomain(ctx context.Context, clientID, clientToken string) (bool, error) {
	var out struct {
		Valid bool `json:"valid"`
	}
	body := map[string]string{"clientId": clientID, "domain": c.origin}
	if err := c.do(ctx, http.MethodPost, "/api/widget/validate-domain", clientToken, body, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

// Authenticate is the second handshake step; it returns a widget token.
func (c *Client) Authenticate(ctx context.Context, clientID, clientToken string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"clientId": clientID, "domain": c.origin}
	if err := c.do(ctx, http.MethodPost, "/api/widget/auth", clientToken, body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Session resolves a widget token into the client it was issued for.
func (c *Client) Session(ctx context.Context, token string) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodGet, "/api/widget/session", token, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
