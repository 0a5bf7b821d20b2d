package tui

import (
	"time"
)

// Summary is the principal and token state shown to the user.
type Summary struct {
	ID           string
	Name         string
	Email        string
	Status       string
	Role         string
	Confirmed    bool
	TokenPreview string
	ExpiresIn    time.Duration
}

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{ App string }

// MsgSessionRestored signals that a persisted session was loaded.
type MsgSessionRestored struct{ Summary Summary }

// MsgSessionMissing signals that no session was persisted.
type MsgSessionMissing struct{}

// MsgTokenExpired signals that the restored access token has expired.
type MsgTokenExpired struct{}

// MsgRefreshing signals that a token refresh is in progress.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the token was refreshed successfully.
type MsgRefreshOK struct{}

// MsgRefreshFailed signals that token refresh failed.
type MsgRefreshFailed struct{ Err error }

// MsgLoggingIn signals that credentials were submitted.
type MsgLoggingIn struct{ Email string }

// MsgLoginOK signals that a session was opened with a provisional principal.
type MsgLoginOK struct{ Summary Summary }

// MsgProfileConfirmed signals that the profile endpoint confirmed the principal.
type MsgProfileConfirmed struct{ Summary Summary }

// MsgProfileFailed signals that the profile could not be fetched.
type MsgProfileFailed struct{ Err error }

// MsgSessionSaved signals that new tokens were written to disk.
type MsgSessionSaved struct{ Path string }

// MsgCallingAPI signals that a resource call started.
type MsgCallingAPI struct{ Path string }

// MsgAPICallOK signals that an API call succeeded.
type MsgAPICallOK struct {
	Path string
	Body string
}

// MsgAPICallFailed signals that an API call failed.
type MsgAPICallFailed struct{ Err error }

// MsgAccessTokenRejected signals that the access token was rejected (401).
type MsgAccessTokenRejected struct{}

// MsgTokenRefreshedRetrying signals that the token was refreshed and the call replayed.
type MsgTokenRefreshedRetrying struct{}

// MsgReAuthRequired signals that the session expired and a new login is needed.
type MsgReAuthRequired struct{}

// MsgLoggedOut signals the local session was cleared.
type MsgLoggedOut struct{ Err error }

// MsgDone signals successful completion of the flow.
type MsgDone struct{ Summary Summary }

// MsgFatal signals a fatal error that should terminate the flow.
type MsgFatal struct{ Err error }
