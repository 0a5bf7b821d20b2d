// Package apiclient is the HTTP layer of the portals: it attaches the
// session's bearer token, normalizes failures into user-facing errors and
// silently refreshes an expired access token, replaying the request once.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/go-authgate/portal-session/session"
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is sent as-is when it is []byte or string, JSON-encoded otherwise.
	Body   any
	Header http.Header
	// SkipAuth sends the request without the bearer token.
	SkipAuth bool
}

// Client is safe for concurrent use.
type Client struct {
	cfg       Config
	sess      *session.Manager
	doer      Doer
	refresher *refresher
	log       zerolog.Logger

	mu        sync.RWMutex
	reqHooks  []RequestInterceptor
	respHooks []ResponseInterceptor
}

// Option configures a Client.
type Option func(*Client)

// WithDoer replaces the transport used for API calls. The refresh exchange
// never goes through it.
func WithDoer(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithRefreshHTTPClient replaces the isolated client used for token exchange.
func WithRefreshHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.refresher.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
		c.refresher.log = l
	}
}

// New builds a Client for cfg sharing the session held by sess.
func New(cfg Config, sess *session.Manager, opts ...Option) (*Client, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("invalid config: nil session manager")
	}

	c := &Client{
		cfg:  cfg,
		sess: sess,
		doer: &http.Client{},
		log:  zerolog.Nop(),
		refresher: &refresher{
			cfg:  cfg,
			sess: sess,
			http: &http.Client{Timeout: cfg.RefreshTimeout},
			log:  zerolog.Nop(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.reqHooks = []RequestInterceptor{
		c.defaultHeaders,
		c.requestID,
		c.bearer,
	}
	c.respHooks = []ResponseInterceptor{
		c.recoverSession,
		c.logOutcome,
	}
	return c, nil
}

// Session returns the manager the client reads tokens from.
func (c *Client) Session() *session.Manager {
	return c.sess
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// UseRequest appends request interceptors after the built-in ones.
func (c *Client) UseRequest(hooks ...RequestInterceptor) {
	c.mu.Lock()
	c.reqHooks = append(c.reqHooks, hooks...)
	c.mu.Unlock()
}

// UseResponse appends response interceptors after the built-in ones.
func (c *Client) UseResponse(hooks ...ResponseInterceptor) {
	c.mu.Lock()
	c.respHooks = append(c.respHooks, hooks...)
	c.mu.Unlock()
}

// Do runs r through the interceptor chain. A non-nil error is an *Error
// unless an interceptor returned something else.
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	call, err := newCall(r)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, call)

	c.mu.RLock()
	hooks := c.respHooks
	c.mu.RUnlock()
	for _, hook := range hooks {
		resp, err = hook(ctx, call, resp, err)
	}

	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DoJSON runs r and decodes the envelope data into out.
func (c *Client) DoJSON(ctx context.Context, r *Request, out any) error {
	resp, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.DoJSON(ctx, &Request{Method: http.MethodGet, Path: path}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.DoJSON(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.DoJSON(ctx, &Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.DoJSON(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.DoJSON(ctx, &Request{Method: http.MethodDelete, Path: path}, out)
}

// send performs one attempt of call: request interceptors, the network
// round trip under the client-wide timeout, and status classification.
func (c *Client) send(ctx context.Context, call *Call) (*Response, error) {
	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		sendCtx,
		call.Method(),
		c.url(call.req.Path, call.req.Query),
		bytes.NewReader(call.body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range call.req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}

	c.mu.RLock()
	hooks := c.reqHooks
	c.mu.RUnlock()
	for _, hook := range hooks {
		if err := hook(call, httpReq); err != nil {
			return nil, fmt.Errorf("request interceptor: %w", err)
		}
	}

	httpResp, err := c.doer.Do(httpReq)
	if err != nil {
		return nil, networkError(call, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, networkError(call, fmt.Errorf("failed to read response: %w", err))
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, statusError(call, resp, c.cfg.isPublic(call.Path()))
	}
	return resp, nil
}

func (c *Client) url(path string, query url.Values) string {
	u := path
	if !isAbsolute(path) {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		u = c.cfg.BaseURL + path
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

func isAbsolute(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// encodeBody renders a request body once so every attempt can resend it.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case io.Reader:
		return io.ReadAll(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, nil
	}
}

// Refresh exchanges the refresh token now, without waiting for a 401. It
// joins an exchange already in flight. A failure clears the session.
func (c *Client) Refresh(ctx context.Context) error {
	snap := c.sess.Snapshot()
	if !snap.Refreshable() {
		return ErrRefreshUnavailable
	}
	_, err := c.refresher.refresh(ctx, snap.AccessToken)
	return err
}

// RefreshCount reports how many refresh exchanges reached the network.
func (c *Client) RefreshCount() int64 {
	return c.refresher.Exchanges()
}
