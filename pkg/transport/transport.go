// Package transport dispatches action requests to the NARRATE backend.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"narrate/pkg/action"
	"narrate/pkg/logx"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 10 << 20
)

// Transport sends one request and returns the raw response. An error means
// no HTTP status was received.
type Transport interface {
	Do(ctx context.Context, req action.Request) (*action.Response, error)
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, req action.Request) (*action.Response, error)

// Do calls f.
func (f Func) Do(ctx context.Context, req action.Request) (*action.Response, error) {
	return f(ctx, req)
}

// Option customizes an HTTP transport.
type Option func(*HTTP)

// WithTimeout bounds each request including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTP) {
		if d > 0 {
			t.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying client. Its Jar is kept if set.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTP) {
		if c == nil {
			return
		}
		if c.Jar == nil {
			c.Jar = t.client.Jar
		}
		t.client = c
	}
}

// HTTP is a Transport over net/http with a cookie jar holding the
// backend's refresh_token session cookie.
type HTTP struct {
	baseURL *url.URL
	client  *http.Client
	logger  *logx.Logger
}

// NewHTTP creates a transport rooted at baseURL, e.g. "https://host/backend".
func NewHTTP(baseURL string, opts ...Option) (*HTTP, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	t := &HTTP{
		baseURL: u,
		client:  &http.Client{Timeout: defaultTimeout, Jar: jar},
		logger:  logx.NewLogger("transport"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// URL resolves a request target against the base URL.
func (t *HTTP) URL(target string) string {
	return t.baseURL.String() + "/" + strings.TrimPrefix(target, "/")
}

// Do performs the request. Non-2xx statuses are not errors.
func (t *HTTP) Do(ctx context.Context, req action.Request) (*action.Response, error) {
	body, contentType, err := req.Body()
	if err != nil {
		t.logger.Error("Failed to encode body of %s: %v", req, err)
		return nil, fmt.Errorf("%w: failed to encode request body: %w", action.ErrInvalidRequest, err)
	}

	target := t.URL(req.Target())
	httpReq, err := http.NewRequestWithContext(ctx, req.Method(), target, body)
	if err != nil {
		t.logger.Error("Failed to build %s: %v", req, err)
		return nil, fmt.Errorf("%w: failed to create request: %w", action.ErrInvalidRequest, err)
	}

	for k, vals := range req.Headers() {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	logx.Debug(ctx, "transport", "%s %s", req.Method(), target)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		// Status arrived; a truncated body is left for Interpret to reject.
		t.logger.Warn("Failed to read body of %s %s: %v", req.Method(), target, err)
	}

	return &action.Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   data,
	}, nil
}

// Cookies returns the cookies the jar holds for the base URL.
func (t *HTTP) Cookies() []*http.Cookie {
	return t.client.Jar.Cookies(t.baseURL)
}

// SetCookies restores previously saved cookies for the base URL.
func (t *HTTP) SetCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	t.client.Jar.SetCookies(t.baseURL, cookies)
}
