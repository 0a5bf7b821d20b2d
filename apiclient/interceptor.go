package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// RequestInterceptor edits an outgoing request before it is sent. It runs
// again for a replayed call.
type RequestInterceptor func(call *Call, req *http.Request) error

// ResponseInterceptor sees every outcome of a call, success or failure, and
// may replace it.
type ResponseInterceptor func(ctx context.Context, call *Call, resp *Response, err error) (*Response, error)

// Call is one logical request across its (at most two) attempts.
type Call struct {
	req  *Request
	body []byte

	// retried is set before the replay is issued, so a call is never
	// resubmitted twice.
	retried bool
	// token overrides the session's access token for the replay.
	token     string
	sentToken string
	requestID string
}

func newCall(r *Request) (*Call, error) {
	if r == nil {
		return nil, errors.New("nil request")
	}
	body, err := encodeBody(r.Body)
	if err != nil {
		return nil, err
	}
	return &Call{req: r, body: body}, nil
}

// Request returns the request as built by the caller.
func (c *Call) Request() *Request { return c.req }

// Retried reports whether the call has already been replayed.
func (c *Call) Retried() bool { return c.retried }

// SentToken is the access token attached to the latest attempt.
func (c *Call) SentToken() string { return c.sentToken }

// RequestID is the X-Request-ID of the latest attempt.
func (c *Call) RequestID() string { return c.requestID }

// Method returns the HTTP method, GET when unset.
func (c *Call) Method() string {
	if c.req.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(c.req.Method)
}

// Path returns the request path without query string.
func (c *Call) Path() string {
	p := c.req.Path
	if isAbsolute(p) {
		if u, err := url.Parse(p); err == nil {
			return u.Path
		}
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func (c *Client) defaultHeaders(call *Call, req *http.Request) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if len(call.body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	for k, v := range c.cfg.DefaultHeaders {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return nil
}

func (c *Client) requestID(call *Call, req *http.Request) error {
	id := req.Header.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
		req.Header.Set("X-Request-ID", id)
	}
	call.requestID = id
	return nil
}

// bearer attaches the access token. No token is not an error here: the
// request goes out unauthenticated and the backend decides.
func (c *Client) bearer(call *Call, req *http.Request) error {
	if call.req.SkipAuth {
		call.sentToken = ""
		return nil
	}
	token := call.token
	if token == "" {
		token = c.sess.AccessToken()
	}
	call.sentToken = token
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// recoverSession handles failed calls in priority order: public routes,
// logout, the refresh route itself, then a 401 that a token refresh can fix.
func (c *Client) recoverSession(
	ctx context.Context,
	call *Call,
	resp *Response,
	err error,
) (*Response, error) {
	if err == nil {
		return resp, nil
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return resp, err
	}

	path := call.Path()
	switch {
	case c.cfg.isPublic(path), call.req.SkipAuth:
		// no token was sent, so a 401 says nothing about the session
		return resp, err
	case pathMatches(path, c.cfg.Endpoints.Logout):
		return resp, err
	case pathMatches(path, c.cfg.Endpoints.Refresh):
		c.log.Warn().Str("path", path).Msg("refresh endpoint failed, clearing session")
		c.sess.Clear()
		return resp, err
	}

	if apiErr.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if call.retried {
		c.log.Warn().Str("path", path).Msg("401 after token refresh, clearing session")
		c.sess.Clear()
		return nil, sessionExpired(call, err)
	}

	snap := c.sess.Snapshot()
	if !snap.Refreshable() {
		if snap.IsAuthenticated {
			c.log.Warn().Str("path", path).Msg("401 without refresh token, clearing session")
			c.sess.Clear()
			return nil, sessionExpired(call, err)
		}
		return resp, err
	}

	token, refreshErr := c.refresher.refresh(ctx, call.sentToken)
	if refreshErr != nil {
		if ctx.Err() != nil {
			// the caller gave up waiting; the exchange itself carries on
			return nil, networkError(call, refreshErr)
		}
		return nil, sessionExpired(call, refreshErr)
	}

	call.retried = true
	call.token = token.AccessToken
	c.log.Debug().Str("path", path).Msg("replaying request with refreshed token")

	replayResp, replayErr := c.send(ctx, call)
	return c.recoverSession(ctx, call, replayResp, replayErr)
}

func (c *Client) logOutcome(
	_ context.Context,
	call *Call,
	resp *Response,
	err error,
) (*Response, error) {
	if err == nil {
		c.log.Debug().
			Str("method", call.Method()).
			Str("path", call.Path()).
			Int("status", resp.StatusCode).
			Bool("retried", call.retried).
			Msg("api call")
		return resp, nil
	}

	ev := c.log.Info()
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Kind == KindServer || apiErr.Kind == KindNetwork {
			ev = c.log.Warn()
		}
		ev = ev.Str("kind", apiErr.Kind.String()).Int("status", apiErr.StatusCode)
	}
	ev.Err(errors.Unwrap(err)).
		Str("method", call.Method()).
		Str("path", call.Path()).
		Str("request_id", call.requestID).
		Msg("api call failed")
	return resp, err
}
