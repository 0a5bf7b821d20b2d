package apiclient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Default timeouts.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultRefreshTimeout = 10 * time.Second
)

// Endpoints are the paths of the auth routes, relative to Config.BaseURL.
type Endpoints struct {
	Login   string
	Signup  string
	Refresh string
	Logout  string
	Profile string
}

// DefaultEndpoints returns the routes shared by the portals.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:   "/auth/login",
		Signup:  "/auth/signup",
		Refresh: "/auth/refresh",
		Logout:  "/auth/logout",
		Profile: "/auth/me",
	}
}

// DefaultPublicPaths are reachable without a session. A 401 from them is a
// business answer (bad credentials, bad code), never a session expiry.
var DefaultPublicPaths = []string{
	"/auth/login",
	"/auth/signup",
	"/auth/register",
	"/auth/verify",
	"/auth/verify-otp",
	"/auth/verify-email",
	"/auth/resend-otp",
	"/auth/oauth",
	"/auth/google",
	"/auth/forgot-password",
	"/auth/reset-password",
}

// Config describes the backend the client talks to.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RefreshTimeout time.Duration
	Endpoints      Endpoints
	PublicPaths    []string
	DefaultHeaders map[string]string
	UserAgent      string
}

// withDefaults fills zero values and validates the base URL.
func (c Config) withDefaults() (Config, error) {
	if err := ValidateBaseURL(c.BaseURL); err != nil {
		return c, err
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = DefaultRefreshTimeout
	}

	def := DefaultEndpoints()
	if c.Endpoints.Login == "" {
		c.Endpoints.Login = def.Login
	}
	if c.Endpoints.Signup == "" {
		c.Endpoints.Signup = def.Signup
	}
	if c.Endpoints.Refresh == "" {
		c.Endpoints.Refresh = def.Refresh
	}
	if c.Endpoints.Logout == "" {
		c.Endpoints.Logout = def.Logout
	}
	if c.Endpoints.Profile == "" {
		c.Endpoints.Profile = def.Profile
	}

	if c.PublicPaths == nil {
		c.PublicPaths = append([]string(nil), DefaultPublicPaths...)
	}
	c.PublicPaths = append(c.PublicPaths, c.Endpoints.Login, c.Endpoints.Signup)
	return c, nil
}

// ValidateBaseURL checks that rawURL is an absolute http(s) URL.
func ValidateBaseURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("base URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// isPublic reports whether path is on the allow-list.
func (c Config) isPublic(path string) bool {
	for _, p := range c.PublicPaths {
		if p != "" && pathMatches(path, p) {
			return true
		}
	}
	return false
}

// pathMatches is true for the route itself and anything below it.
func pathMatches(path, route string) bool {
	if route == "" {
		return false
	}
	route = strings.TrimRight(route, "/")
	return path == route || strings.HasPrefix(path, route+"/")
}
