// Package session holds the client-side session of a portal: the bearer
// tokens, the authenticated principal and their durable copy.
package session

import (
	"errors"
	"time"
)

// ErrNoSession is returned when an operation needs an authenticated session.
var ErrNoSession = errors.New("no authenticated session")

// Session is a snapshot of the authentication state.
//
// IsAuthenticated is true iff an access token and a principal are present.
// The refresh token is optional; without it the session cannot be refreshed.
type Session struct {
	AccessToken     string     `json:"access_token"`
	RefreshToken    string     `json:"refresh_token,omitempty"`
	Principal       *Principal `json:"principal,omitempty"`
	Expiry          time.Time  `json:"expires_at"`
	IsAuthenticated bool       `json:"is_authenticated"`
}

// Refreshable reports whether a token exchange can be attempted.
func (s Session) Refreshable() bool {
	return s.RefreshToken != "" && s.Principal != nil
}

// Expired reports whether the access token is known to be expired at now.
// A session without a known expiry is never considered expired.
func (s Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && !now.Before(s.Expiry)
}

// clone deep-copies the principal so callers can never alias manager state.
func (s Session) clone() Session {
	if s.Principal != nil {
		p := *s.Principal
		s.Principal = &p
	}
	return s
}

// normalize enforces the IsAuthenticated invariant on rehydrated data.
func (s Session) normalize() Session {
	s.IsAuthenticated = s.AccessToken != "" && s.Principal != nil
	if !s.IsAuthenticated {
		return Session{}
	}
	return s
}
