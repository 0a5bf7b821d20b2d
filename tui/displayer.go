package tui

import (
	"fmt"
	"io"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/common-nighthawk/go-figure"
)

// Displayer abstracts all output from the session flow.
type Displayer interface {
	Banner(app string)
	SessionRestored(s Summary)
	SessionMissing()
	TokenExpired()
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	LoggingIn(email string)
	LoginOK(s Summary)
	ProfileConfirmed(s Summary)
	ProfileFailed(err error)
	SessionSaved(path string)
	CallingAPI(path string)
	APICallOK(path, body string)
	APICallFailed(err error)
	AccessTokenRejected()
	TokenRefreshedRetrying()
	ReAuthRequired()
	LoggedOut(err error)
	Done(s Summary)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner(app string) {
	fmt.Fprintln(p.w, figure.NewFigure("portal", "cybermedium", true).String())
	fmt.Fprintf(p.w, "=== %s portal session ===\n", app)
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) SessionRestored(s Summary) {
	fmt.Fprintf(p.w, "Found existing session for %s\n", displayName(s))
}

func (p *PlainDisplayer) SessionMissing() {
	fmt.Fprintln(p.w, "No existing session found, logging in...")
}

func (p *PlainDisplayer) TokenExpired() {
	fmt.Fprintln(p.w, "Access token expired")
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Refreshing access token...")
}

func (p *PlainDisplayer) RefreshOK() {
	fmt.Fprintln(p.w, "Token refreshed successfully!")
}

func (p *PlainDisplayer) RefreshFailed(err error) {
	fmt.Fprintf(p.w, "Refresh failed: %v\n", err)
	fmt.Fprintln(p.w, "Logging in again...")
}

func (p *PlainDisplayer) LoggingIn(email string) {
	fmt.Fprintf(p.w, "Logging in as %s...\n", email)
}

func (p *PlainDisplayer) LoginOK(s Summary) {
	fmt.Fprintf(p.w, "Logged in as %s (unverified)\n", displayName(s))
}

func (p *PlainDisplayer) ProfileConfirmed(s Summary) {
	fmt.Fprintf(p.w, "Profile confirmed: %s <%s>\n", s.Name, s.Email)
}

func (p *PlainDisplayer) ProfileFailed(err error) {
	fmt.Fprintf(p.w, "Profile fetch failed: %v\n", err)
}

func (p *PlainDisplayer) SessionSaved(path string) {
	fmt.Fprintf(p.w, "Session saved to %s\n", path)
}

func (p *PlainDisplayer) CallingAPI(path string) {
	fmt.Fprintf(p.w, "\nCalling %s...\n", path)
}

func (p *PlainDisplayer) APICallOK(path, body string) {
	fmt.Fprintf(p.w, "API call to %s successful!\n", path)
	if body != "" {
		fmt.Fprintln(p.w, body)
	}
}

func (p *PlainDisplayer) APICallFailed(err error) {
	fmt.Fprintf(p.w, "API call failed: %v\n", err)
}

func (p *PlainDisplayer) AccessTokenRejected() {
	fmt.Fprintln(p.w, "Access token rejected (401), refreshing...")
}

func (p *PlainDisplayer) TokenRefreshedRetrying() {
	fmt.Fprintln(p.w, "Token refreshed, retried API call")
}

func (p *PlainDisplayer) ReAuthRequired() {
	fmt.Fprintln(p.w, "Session expired, re-authenticating...")
}

func (p *PlainDisplayer) LoggedOut(err error) {
	if err != nil {
		fmt.Fprintf(p.w, "Warning: server logout failed: %v\n", err)
	}
	fmt.Fprintln(p.w, "Logged out, local session cleared")
}

func (p *PlainDisplayer) Done(s Summary) {
	fmt.Fprintln(p.w, "\n========================================")
	fmt.Fprintln(p.w, "Current Session:")
	fmt.Fprintf(p.w, "Principal: %s\n", displayName(s))
	fmt.Fprintf(p.w, "ID: %s\n", s.ID)
	fmt.Fprintf(p.w, "Status: %s\n", s.Status)
	if s.Role != "" {
		fmt.Fprintf(p.w, "Role: %s\n", s.Role)
	}
	fmt.Fprintf(p.w, "Verified: %t\n", s.Confirmed)
	fmt.Fprintf(p.w, "Access Token: %s...\n", s.TokenPreview)
	fmt.Fprintf(p.w, "Expires In: %s\n", s.ExpiresIn.Round(time.Second))
	fmt.Fprintln(p.w, "========================================")
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

func displayName(s Summary) string {
	if s.Email == "" {
		return s.Name
	}
	return fmt.Sprintf("%s <%s>", s.Name, s.Email)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner(_ string)            {}
func (NoopDisplayer) SessionRestored(_ Summary)  {}
func (NoopDisplayer) SessionMissing()            {}
func (NoopDisplayer) TokenExpired()              {}
func (NoopDisplayer) Refreshing()                {}
func (NoopDisplayer) RefreshOK()                 {}
func (NoopDisplayer) RefreshFailed(_ error)      {}
func (NoopDisplayer) LoggingIn(_ string)         {}
func (NoopDisplayer) LoginOK(_ Summary)          {}
func (NoopDisplayer) ProfileConfirmed(_ Summary) {}
func (NoopDisplayer) ProfileFailed(_ error)      {}
func (NoopDisplayer) SessionSaved(_ string)      {}
func (NoopDisplayer) CallingAPI(_ string)        {}
func (NoopDisplayer) APICallOK(_, _ string)      {}
func (NoopDisplayer) APICallFailed(_ error)      {}
func (NoopDisplayer) AccessTokenRejected()       {}
func (NoopDisplayer) TokenRefreshedRetrying()    {}
func (NoopDisplayer) ReAuthRequired()            {}
func (NoopDisplayer) LoggedOut(_ error)          {}
func (NoopDisplayer) Done(_ Summary)             {}
func (NoopDisplayer) Fatal(_ error)              {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner(app string) {
	t.p.Send(MsgBanner{App: app})
}

func (t *ProgramDisplayer) SessionRestored(s Summary) {
	t.p.Send(MsgSessionRestored{Summary: s})
}

func (t *ProgramDisplayer) SessionMissing() {
	t.p.Send(MsgSessionMissing{})
}

func (t *ProgramDisplayer) TokenExpired() {
	t.p.Send(MsgTokenExpired{})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) RefreshOK() {
	t.p.Send(MsgRefreshOK{})
}

func (t *ProgramDisplayer) RefreshFailed(err error) {
	t.p.Send(MsgRefreshFailed{Err: err})
}

func (t *ProgramDisplayer) LoggingIn(email string) {
	t.p.Send(MsgLoggingIn{Email: email})
}

func (t *ProgramDisplayer) LoginOK(s Summary) {
	t.p.Send(MsgLoginOK{Summary: s})
}

func (t *ProgramDisplayer) ProfileConfirmed(s Summary) {
	t.p.Send(MsgProfileConfirmed{Summary: s})
}

func (t *ProgramDisplayer) ProfileFailed(err error) {
	t.p.Send(MsgProfileFailed{Err: err})
}

func (t *ProgramDisplayer) SessionSaved(path string) {
	t.p.Send(MsgSessionSaved{Path: path})
}

func (t *ProgramDisplayer) CallingAPI(path string) {
	t.p.Send(MsgCallingAPI{Path: path})
}

func (t *ProgramDisplayer) APICallOK(path, body string) {
	t.p.Send(MsgAPICallOK{Path: path, Body: body})
}

func (t *ProgramDisplayer) APICallFailed(err error) {
	t.p.Send(MsgAPICallFailed{Err: err})
}

func (t *ProgramDisplayer) AccessTokenRejected() {
	t.p.Send(MsgAccessTokenRejected{})
}

func (t *ProgramDisplayer) TokenRefreshedRetrying() {
	t.p.Send(MsgTokenRefreshedRetrying{})
}

func (t *ProgramDisplayer) ReAuthRequired() {
	t.p.Send(MsgReAuthRequired{})
}

func (t *ProgramDisplayer) LoggedOut(err error) {
	t.p.Send(MsgLoggedOut{Err: err})
}

func (t *ProgramDisplayer) Done(s Summary) {
	t.p.Send(MsgDone{Summary: s})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
