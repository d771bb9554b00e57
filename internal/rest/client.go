package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// csrfCookies are checked in order for the token sent on non-GET requests.
var csrfCookies = []string{"csrf_access_token", "csrf_refresh_token", "csrf"}

// APIError is a non-2xx response surfaced to the caller with the backend's
// human-readable message. Calls are not retried automatically.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (HTTP %d)", e.Message, e.Status)
}

// Client is a JSON REST client for the ticketing backend. Authentication is
// a session cookie held in the client's jar; a CSRF token header is added on
// mutating requests. On a 401 the client attempts one token refresh and
// retries; if the refresh also fails it invokes the injected auth-failure
// handler so the owning process can clear the session.
type Client struct {
	base          *url.URL
	http          *http.Client
	logger        *zap.Logger
	onAuthFailure func()
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithAuthFailureHandler injects the callback fired when a 401 survives the
// refresh attempt. Passed in by the owning process rather than registered in
// package state, so teardown is explicit.
func WithAuthFailureHandler(fn func()) Option {
	return func(c *Client) { c.onAuthFailure = fn }
}

// WithCookies seeds the cookie jar, used to restore a persisted session.
func WithCookies(cookies []*http.Cookie) Option {
	return func(c *Client) { c.http.Jar.SetCookies(c.base, cookies) }
}

// WithTimeout overrides the per-request timeout (default 15s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the given API base URL, e.g.
// "http://localhost:5000/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	c := &Client{
		base:   base,
		http:   &http.Client{Jar: jar, Timeout: 15 * time.Second},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Cookies returns the current session cookies for persistence.
func (c *Client) Cookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.base)
}

// SetCookies replaces the session cookies in the jar.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.http.Jar.SetCookies(c.base, cookies)
}

// WSClient returns an HTTP client sharing the session cookie jar but with
// no per-request timeout. Websocket handshakes authenticate with the same
// session cookie as REST calls, and the dialer rejects clients that carry a
// Timeout.
func (c *Client) WSClient() *http.Client {
	return &http.Client{Jar: c.http.Jar}
}

// get issues a GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// do issues a request with a JSON body and decodes the response into out.
// out may be nil for calls whose response body is irrelevant (or 204).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if refreshErr := c.refresh(ctx); refreshErr != nil {
			c.notifyAuthFailure()
			return &APIError{Status: http.StatusUnauthorized, Message: "session expired"}
		}
		resp, err = c.send(ctx, method, path, body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			c.notifyAuthFailure()
			return &APIError{Status: http.StatusUnauthorized, Message: "session expired"}
		}
	}

	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && method != http.MethodHead {
		if token := c.csrfToken(); token != "" {
			req.Header.Set("X-CSRF-TOKEN", token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// refresh attempts a one-shot session refresh against the auth collaborator.
func (c *Client) refresh(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, "/auth/refresh", nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	return nil
}

func (c *Client) notifyAuthFailure() {
	c.logger.Warn("authentication failure, session cleared")
	if c.onAuthFailure != nil {
		c.onAuthFailure()
	}
}

func (c *Client) csrfToken() string {
	for _, name := range csrfCookies {
		for _, ck := range c.http.Jar.Cookies(c.base) {
			if ck.Name == name && ck.Value != "" {
				return ck.Value
			}
		}
	}
	return ""
}

// errorMessage extracts a human-readable message from an error response
// body, falling back to the HTTP status text.
func errorMessage(resp *http.Response) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return http.StatusText(resp.StatusCode)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
