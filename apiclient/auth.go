package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/go-authgate/portal-session/claims"
	"github.com/go-authgate/portal-session/session"
)

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// SignupRequest is the registration form.
type SignupRequest struct {
	Name     string `json:"name"            validate:"required"`
	Email    string `json:"email"           validate:"required,email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"        validate:"required,min=6"`
}

// SignupResult tells whether signup opened a session right away. Backends
// that verify the address first answer with a message only.
type SignupResult struct {
	SignedIn  bool
	Principal *session.Principal
	Message   string
}

// Auth drives the session lifecycle endpoints over a Client.
type Auth struct {
	c        *Client
	validate *validator.Validate
	now      func() time.Time
}

// NewAuth returns the auth service for c.
func NewAuth(c *Client) *Auth {
	return &Auth{c: c, validate: newValidator(), now: time.Now}
}

// Login authenticates and stores the new session. The principal is seeded
// from the token claims and stays provisional until FetchProfile.
func (a *Auth) Login(ctx context.Context, cred Credentials) (*session.Principal, error) {
	path := a.c.cfg.Endpoints.Login
	if err := validateInput(a.validate, http.MethodPost, path, cred); err != nil {
		return nil, err
	}

	resp, err := a.c.Do(ctx, &Request{
		Method:   http.MethodPost,
		Path:     path,
		Body:     cred,
		SkipAuth: true,
	})
	if err != nil {
		return nil, err
	}
	return a.open(resp)
}

// Signup registers an account and signs in when the backend returns tokens.
func (a *Auth) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	path := a.c.cfg.Endpoints.Signup
	if err := validateInput(a.validate, http.MethodPost, path, req); err != nil {
		return nil, err
	}

	resp, err := a.c.Do(ctx, &Request{
		Method:   http.MethodPost,
		Path:     path,
		Body:     req,
		SkipAuth: true,
	})
	if err != nil {
		return nil, err
	}

	tp, err := parseTokenPair(resp.Body)
	if err != nil {
		return nil, err
	}
	if tp.AccessToken == "" {
		msg := serverMessage(resp.Body)
		if env, envErr := resp.Envelope(); envErr == nil && env.CustomerMessage != "" {
			msg = env.CustomerMessage
		}
		return &SignupResult{Message: msg}, nil
	}

	p, err := a.open(resp)
	if err != nil {
		return nil, err
	}
	return &SignupResult{SignedIn: true, Principal: p}, nil
}

// open turns a token-bearing answer into the current session.
func (a *Auth) open(resp *Response) (*session.Principal, error) {
	tp, err := parseTokenPair(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := validateTokenResponse(tp.AccessToken, tp.TokenType); err != nil {
		return nil, fmt.Errorf("invalid token response: %w", err)
	}

	var p session.Principal
	if c, ok := claims.TryDecode(tp.AccessToken); ok && c.Subject != "" {
		p = session.ProvisionalPrincipal(c)
	} else if tp.User != nil {
		p = session.ProvisionalPrincipal(claims.FromMap(tp.User))
	} else {
		p = session.ProvisionalPrincipal(nil)
	}

	a.c.sess.SetSession(p, tp.AccessToken, tp.RefreshToken, tp.expiry(a.now()))
	a.c.log.Info().Str("principal", p.ID).Msg("session opened")
	return &p, nil
}

// FetchProfile loads the principal from the backend and marks it confirmed.
func (a *Auth) FetchProfile(ctx context.Context) (*session.Principal, error) {
	var m map[string]any
	if err := a.c.Get(ctx, a.c.cfg.Endpoints.Profile, &m); err != nil {
		return nil, err
	}
	p := session.ConfirmedPrincipal(claims.FromMap(profileObject(m)))
	a.c.sess.ConfirmPrincipal(p)
	return &p, nil
}

// UpdateProfile sends the full profile, current values overlaid with patch,
// and confirms what the backend returns.
func (a *Auth) UpdateProfile(ctx context.Context, patch session.PrincipalPatch) (*session.Principal, error) {
	snap := a.c.sess.Snapshot()
	if snap.Principal == nil {
		return nil, session.ErrNoSession
	}
	merged := snap.Principal.Apply(patch)

	payload := map[string]any{
		"name":    merged.Name,
		"email":   merged.Email,
		"phone":   merged.Phone,
		"logoUrl": merged.LogoURL,
	}

	var m map[string]any
	if err := a.c.Put(ctx, a.c.cfg.Endpoints.Profile, payload, &m); err != nil {
		return nil, err
	}

	confirmed := merged
	if obj := profileObject(m); len(obj) > 0 {
		confirmed = overlay(merged, session.ConfirmedPrincipal(claims.FromMap(obj)))
	}
	confirmed.UpdatedAt = a.now()
	a.c.sess.ConfirmPrincipal(confirmed)
	return &confirmed, nil
}

// Logout tells the backend and clears the local session whatever it says.
// The backend's error, if any, is returned for display only.
func (a *Auth) Logout(ctx context.Context) error {
	defer a.c.sess.Clear()

	if a.c.sess.AccessToken() == "" {
		return nil
	}
	_, err := a.c.Do(ctx, &Request{Method: http.MethodPost, Path: a.c.cfg.Endpoints.Logout})
	return err
}

// profileObject unwraps {"user": {...}} style answers.
func profileObject(m map[string]any) map[string]any {
	if obj := firstObject(m, userKeys); obj != nil {
		return obj
	}
	return m
}

// overlay keeps base fields the echo left empty or defaulted.
func overlay(base, echo session.Principal) session.Principal {
	out := base
	if echo.ID != "" {
		out.ID = echo.ID
	}
	if echo.Name != "" && echo.Name != claims.DefaultName {
		out.Name = echo.Name
	}
	if echo.Email != "" {
		out.Email = echo.Email
	}
	if echo.Phone != "" {
		out.Phone = echo.Phone
	}
	if echo.LogoURL != "" {
		out.LogoURL = echo.LogoURL
	}
	if echo.Role != "" {
		out.Role = echo.Role
	}
	if !echo.CreatedAt.IsZero() {
		out.CreatedAt = echo.CreatedAt
	}
	out.Trust = session.Confirmed
	return out
}
