// Package client provides the bounded outbound HTTP client used to reach the
// remote portal API.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/config"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

var (
	ErrTooManyRedirects    = errors.New("too many redirects")
	ErrResponseTooLarge    = errors.New("response body too large")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrRedirectBlocked     = errors.New("redirect blocked by policy")
	ErrRedirectNotSameHost = errors.New("redirect to different host blocked")
	ErrRedirectDowngrade   = errors.New("redirect from https to http blocked")

	// errRetryableStatus marks a 5xx answer to an idempotent request.
	errRetryableStatus = errors.New("retryable upstream status")
)

// Response is a fully read, size-bounded HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is an HTTP client with bounded behavior: timeouts, a capped body size,
// same-host redirects only, and retries for idempotent requests.
type Client struct {
	cfg        config.RemoteAPIConfig
	httpClient *http.Client
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

// New creates a new client. The client ignores proxy environment variables.
func New(cfg config.RemoteAPIConfig, logger *slog.Logger) *Client {
	if cfg.TimeoutMS <= 0 {
		cfg.TimeoutMS = 15000
	}
	if cfg.ConnectTimeoutMS <= 0 {
		cfg.ConnectTimeoutMS = 3000
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = 8 << 20
	}

	dialer := &net.Dialer{
		Timeout: time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond,
	}

	transport := &http.Transport{
		Proxy:       nil,
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		MaxIdleConns:    20,
		IdleConnTimeout: 30 * time.Second,
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.TimeoutMS) * time.Millisecond,
			// Redirects are followed manually under policy.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		logger: logutil.NoopIfNil(logger),
	}
}

// SetBackOff replaces the retry schedule (tests use a zero-delay schedule).
func (c *Client) SetBackOff(f func() backoff.BackOff) {
	c.newBackOff = f
}

// Do sends req and reads the whole response body.
// GET and HEAD requests are retried on transport errors and 5xx answers and may
// follow same-host redirects; everything else is sent exactly once.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	req = req.WithContext(ctx)
	if req.URL == nil || req.URL.Host == "" {
		return nil, ErrInvalidURL
	}

	if !isIdempotent(req.Method) || c.cfg.MaxRetries <= 0 {
		return c.doOnce(req, isIdempotent(req.Method))
	}

	var last *Response
	attempt := 0
	op := func() (*Response, error) {
		attempt++
		resp, err := c.doOnce(req, true)
		if err != nil {
			if ctx.Err() != nil || !isTransient(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			last = resp
			return nil, fmt.Errorf("%w: %d", errRetryableStatus, resp.StatusCode)
		}
		return resp, nil
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("retrying remote request",
				"method", req.Method, "path", req.URL.Path, "attempt", attempt, "error", err, "backoff", next)
		}),
	)
	if err != nil {
		if errors.Is(err, errRetryableStatus) && last != nil {
			return last, nil
		}
		return nil, err
	}
	return resp, nil
}

// doOnce sends one request (following permitted redirects) and reads the body.
func (c *Client) doOnce(req *http.Request, allowRedirect bool) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if isRedirect(resp.StatusCode) {
		if !allowRedirect {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %s %s received %d", ErrRedirectBlocked, req.Method, req.URL.Path, resp.StatusCode)
		}
		resp, err = c.followRedirect(req, resp, 0)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		return nil, ErrResponseTooLarge
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// followRedirect follows a redirect with strict constraints.
func (c *Client) followRedirect(origReq *http.Request, resp *http.Response, depth int) (*http.Response, error) {
	defer resp.Body.Close()

	maxRedirects := c.cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 1
	}
	if depth >= maxRedirects {
		return nil, fmt.Errorf("%w: exceeded limit of %d", ErrTooManyRedirects, maxRedirects)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("%w: no Location header", ErrRedirectBlocked)
	}
	redirectURL, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid Location: %v", ErrRedirectBlocked, err)
	}
	redirectURL = origReq.URL.ResolveReference(redirectURL)

	if origReq.URL.Scheme == "https" && redirectURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectDowngrade, origReq.URL.Scheme, redirectURL.Scheme)
	}
	if !isSameHost(origReq.URL, redirectURL) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectNotSameHost, origReq.URL.Host, redirectURL.Host)
	}

	newReq, err := http.NewRequestWithContext(origReq.Context(), origReq.Method, redirectURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedirectBlocked, err)
	}
	copyRedirectHeaders(origReq, newReq)

	newResp, err := c.httpClient.Do(newReq)
	if err != nil {
		return nil, err
	}
	if isRedirect(newResp.StatusCode) {
		return c.followRedirect(newReq, newResp, depth+1)
	}
	return newResp, nil
}

// isSameHost checks if two URLs have the same hostname and effective port.
func isSameHost(a, b *url.URL) bool {
	if !strings.EqualFold(a.Hostname(), b.Hostname()) {
		return false
	}
	return effectivePort(a) == effectivePort(b)
}

// effectivePort returns the explicit port or the scheme default.
func effectivePort(u *url.URL) string {
	if port := u.Port(); port != "" {
		return port
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

// copyRedirectHeaders copies safe headers for redirects. Authorization is never copied.
func copyRedirectHeaders(src, dst *http.Request) {
	if ua := src.Header.Get("User-Agent"); ua != "" {
		dst.Header.Set("User-Agent", ua)
	}
	if accept := src.Header.Get("Accept"); accept != "" {
		dst.Header.Set("Accept", accept)
	}
}

func isRedirect(code int) bool {
	return code == http.StatusMovedPermanently ||
		code == http.StatusFound ||
		code == http.StatusSeeOther ||
		code == http.StatusTemporaryRedirect ||
		code == http.StatusPermanentRedirect
}

func isIdempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// isTransient reports whether a transport error is worth another attempt.
// Policy errors and oversized bodies are final.
func isTransient(err error) bool {
	return !IsRedirectError(err) && !errors.Is(err, ErrResponseTooLarge)
}

// IsRedirectError returns true if the error is a redirect-related error.
func IsRedirectError(err error) bool {
	return errors.Is(err, ErrRedirectBlocked) ||
		errors.Is(err, ErrRedirectNotSameHost) ||
		errors.Is(err, ErrRedirectDowngrade) ||
		errors.Is(err, ErrTooManyRedirects)
}
