package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/go-authgate/portal-session/session"
)

// ErrRefreshUnavailable is returned when the session has nothing to refresh with.
var ErrRefreshUnavailable = errors.New("no refresh token available")

// ErrSessionChanged is returned when the session was replaced while an
// exchange for the previous one was in flight.
var ErrSessionChanged = errors.New("session changed during token refresh")

const refreshKey = "refresh"

// refresher exchanges the refresh token for a new access token. At most one
// exchange is outstanding; concurrent callers share its result.
type refresher struct {
	cfg  Config
	sess *session.Manager
	// http is isolated from the Client's interceptors and retries so the
	// exchange is neither intercepted recursively nor repeated.
	http *http.Client
	log  zerolog.Logger

	group     singleflight.Group
	exchanges atomic.Int64
}

// refresh returns a usable access token for a call that was rejected while
// carrying stale. If the session already holds a different token, another
// call refreshed it in the meantime and no exchange is made.
func (r *refresher) refresh(ctx context.Context, stale string) (*oauth2.Token, error) {
	if tok := r.current(stale); tok != nil {
		return tok, nil
	}

	ch := r.group.DoChan(refreshKey, func() (any, error) {
		if tok := r.current(stale); tok != nil {
			return tok, nil
		}
		return r.exchange()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// current returns the session's token when it differs from stale.
func (r *refresher) current(stale string) *oauth2.Token {
	tok, err := r.sess.Token()
	if err != nil || tok.AccessToken == stale {
		return nil
	}
	return tok
}

// Exchanges reports how many token exchanges went on the wire.
func (r *refresher) Exchanges() int64 {
	return r.exchanges.Load()
}

// exchange performs the network call. Any failure is terminal for the
// session: it is cleared and the exchange is not retried.
func (r *refresher) exchange() (*oauth2.Token, error) {
	snap := r.sess.Snapshot()
	if !snap.Refreshable() {
		r.sess.Clear()
		return nil, ErrRefreshUnavailable
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RefreshTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"refreshToken": snap.RefreshToken})
	if err != nil {
		return nil, r.fail(snap.RefreshToken, err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		r.cfg.BaseURL+r.cfg.Endpoints.Refresh,
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, r.fail(snap.RefreshToken, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+snap.RefreshToken)
	if r.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}

	r.exchanges.Add(1)
	r.log.Debug().Msg("exchanging refresh token")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, r.fail(snap.RefreshToken, fmt.Errorf("refresh request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, r.fail(snap.RefreshToken, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retrieveErr := &oauth2.RetrieveError{Response: resp, Body: body}
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &errResp) == nil {
			retrieveErr.ErrorCode = errResp.Error
			retrieveErr.ErrorDescription = errResp.ErrorDescription
		}
		return nil, r.fail(snap.RefreshToken, retrieveErr)
	}

	tp, err := parseTokenPair(body)
	if err != nil {
		return nil, r.fail(snap.RefreshToken, err)
	}
	if err := validateTokenResponse(tp.AccessToken, tp.TokenType); err != nil {
		return nil, r.fail(snap.RefreshToken, fmt.Errorf("invalid token response: %w", err))
	}

	expiry := tp.expiry(time.Now())
	if !r.sess.SwapTokens(snap.RefreshToken, tp.AccessToken, tp.RefreshToken, expiry) {
		r.log.Info().Msg("session replaced during refresh, new tokens dropped")
		return nil, ErrSessionChanged
	}

	refreshToken := tp.RefreshToken
	if refreshToken == "" {
		// fixed refresh token: the server did not rotate it
		refreshToken = snap.RefreshToken
	}
	r.log.Info().Bool("rotated", tp.RefreshToken != "").Msg("access token refreshed")

	return &oauth2.Token{
		AccessToken:  tp.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
		Expiry:       expiry,
	}, nil
}

// fail clears the session the exchange started from; a session opened
// meanwhile is left alone.
func (r *refresher) fail(from string, err error) error {
	if r.sess.ClearFrom(from) {
		r.log.Warn().Err(err).Msg("token refresh failed, clearing session")
	}
	return err
}
