// Package client talks to the upstream CRM REST API on behalf of a session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/crm-dashboard/internal/session"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

const maxBodyBytes = 10 << 20

// TokenSource is the per-session view of the token store. Every request reads the
// access token through it at call time.
type TokenSource interface {
	Key() string
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, token string) error
	Clear(ctx context.Context, reason string) error
}

// Metrics receives upstream call telemetry.
type Metrics interface {
	ObserveUpstream(route string, status int, duration time.Duration)
	ObserveRefresh(outcome string)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	logger    *zap.Logger
	metrics   Metrics
	refreshes singleflight.Group
}

// New constructs a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request describes one upstream call. route is the templated path used as the
// metrics label.
type request struct {
	method      string
	route       string
	path        string
	query       url.Values
	body        []byte
	contentType string
	anonymous   bool
}

func newRequest(method, route, path string) *request {
	return &request{method: method, route: route, path: path}
}

func (r *request) withQuery(q url.Values) *request {
	r.query = q
	return r
}

func (r *request) withJSON(v any) (*request, error) {
	if v == nil {
		return r, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("client: encode body: %w", err)
	}
	r.body = b
	r.contentType = "application/json"
	return r, nil
}

type response struct {
	status int
	body   []byte
}

// do sends r with the session's bearer token. A 401 triggers exactly one refresh
// followed by one retry; a second 401 or a failed refresh ends the session.
func (c *Client) do(ctx context.Context, ts TokenSource, r *request) (*response, error) {
	var token string
	if !r.anonymous {
		if ts == nil {
			return nil, appErrors.ErrUnauthorized
		}
		t, err := ts.AccessToken(ctx)
		if err != nil {
			return nil, tokenError(err)
		}
		token = t
	}

	resp, err := c.send(ctx, r, token)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusUnauthorized || r.anonymous {
		return resp, nil
	}

	fresh, err := c.refresh(ctx, ts, token)
	if err != nil {
		if ctx.Err() != nil {
			// The caller went away; the refresh itself was not rejected.
			return nil, transportError(ctx, err)
		}
		c.logger.Info("token refresh failed, ending session", zap.String("route", r.route), zap.Error(err))
		if clearErr := ts.Clear(context.WithoutCancel(ctx), session.ReasonRefreshFailed); clearErr != nil {
			c.logger.Warn("failed to clear session", zap.Error(clearErr))
		}
		return nil, appErrors.ErrSessionExpired
	}

	resp, err = c.send(ctx, r, fresh)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusUnauthorized {
		c.logger.Info("request rejected after refresh, ending session", zap.String("route", r.route))
		if clearErr := ts.Clear(context.WithoutCancel(ctx), session.ReasonRejectedTwice); clearErr != nil {
			c.logger.Warn("failed to clear session", zap.Error(clearErr))
		}
		return nil, appErrors.ErrSessionExpired
	}
	return resp, nil
}

// refresh obtains a new access token for ts. Concurrent callers of one session share
// a single upstream refresh. If the stored token already differs from the one that
// was rejected, another caller refreshed in the meantime and that token is reused.
// The shared refresh is detached from the caller's cancellation and bounded by the
// client timeout; a caller whose context ends stops waiting but does not abort it.
func (c *Client) refresh(ctx context.Context, ts TokenSource, rejected string) (string, error) {
	ch := c.refreshes.DoChan(ts.Key(), func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
		defer cancel()

		if current, err := ts.AccessToken(rctx); err == nil && current != "" && current != rejected {
			return current, nil
		}
		refreshToken, err := ts.RefreshToken(rctx)
		if err != nil {
			return "", err
		}
		if refreshToken == "" {
			return "", errors.New("no refresh token")
		}
		token, err := c.Refresh(rctx, refreshToken)
		if err != nil {
			c.observeRefresh("failed")
			return "", err
		}
		if err := ts.SetAccessToken(rctx, token); err != nil {
			return "", err
		}
		c.observeRefresh("succeeded")
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			c.logger.Debug("joined in-flight token refresh", zap.String("session_id", ts.Key()))
		}
		return res.Val.(string), nil
	}
}

func (c *Client) refreshTimeout() time.Duration {
	if c.http != nil && c.http.Timeout > 0 {
		return c.http.Timeout
	}
	return 15 * time.Second
}

func (c *Client) send(ctx context.Context, r *request, token string) (*response, error) {
	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(r.route, 0, time.Since(start))
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.observe(r.route, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to read upstream response")
	}

	c.logger.Debug("upstream call",
		zap.String("method", r.method),
		zap.String("route", r.route),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return &response{status: resp.StatusCode, body: payload}, nil
}

// call performs r and returns the body of a 2xx response. Other statuses become
// *APIError.
func (c *Client) call(ctx context.Context, ts TokenSource, r *request) ([]byte, error) {
	resp, err := c.do(ctx, ts, r)
	if err != nil {
		return nil, err
	}
	if resp.status < 200 || resp.status >= 300 {
		return nil, newAPIError(resp.status, resp.body)
	}
	return resp.body, nil
}

func (c *Client) observe(route string, status int, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveUpstream(route, status, d)
	}
}

func (c *Client) observeRefresh(outcome string) {
	if c.metrics != nil {
		c.metrics.ObserveRefresh(outcome)
	}
}

func tokenError(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return appErrors.ErrSessionExpired
	}
	return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "session store unavailable")
}

func transportError(ctx context.Context, err error) error {
	var netErr net.Error
	if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "upstream timed out")
	}
	return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "upstream unreachable")
}
