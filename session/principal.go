package session

import (
	"strings"
	"time"

	"github.com/go-authgate/portal-session/claims"
)

// Status is the account status reported by the backend.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusPending   Status = "PENDING"
)

// ParseStatus normalizes s; an empty value becomes StatusInactive.
func ParseStatus(s string) Status {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return StatusInactive
	}
	return Status(s)
}

// Trust tells where a principal came from.
type Trust string

const (
	// Provisional principals are seeded from unverified token claims.
	Provisional Trust = "provisional"
	// Confirmed principals come from an authenticated profile fetch.
	Confirmed Trust = "confirmed"
)

// Principal is the authenticated identity of a session.
type Principal struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Status    Status    `json:"status"`
	LogoURL   string    `json:"logo_url,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Trust     Trust     `json:"trust"`
}

// Confirmed reports whether p came from the profile endpoint. Provisional
// data must never drive an authorization decision.
func (p Principal) Confirmed() bool {
	return p.Trust == Confirmed
}

// ProvisionalPrincipal builds an advisory principal from token claims.
func ProvisionalPrincipal(c *claims.Claims) Principal {
	p := principalFromClaims(c)
	p.Trust = Provisional
	return p
}

// ConfirmedPrincipal builds a principal from a profile payload resolved
// through claims.FromMap.
func ConfirmedPrincipal(c *claims.Claims) Principal {
	p := principalFromClaims(c)
	p.Trust = Confirmed
	return p
}

func principalFromClaims(c *claims.Claims) Principal {
	if c == nil {
		return Principal{Name: claims.DefaultName, Status: StatusInactive}
	}
	return Principal{
		ID:        c.Subject,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Status:    ParseStatus(c.Status),
		LogoURL:   c.LogoURL,
		Role:      c.Role,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// PrincipalPatch is a partial update; nil fields are left untouched.
type PrincipalPatch struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	LogoURL *string `json:"logo_url,omitempty"`
	Role    *string `json:"role,omitempty"`
	Status  *Status `json:"status,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (pp PrincipalPatch) Empty() bool {
	return pp.Name == nil && pp.Email == nil && pp.Phone == nil &&
		pp.LogoURL == nil && pp.Role == nil && pp.Status == nil
}

// Apply returns a copy of p with the non-nil patch fields merged in.
func (p Principal) Apply(pp PrincipalPatch) Principal {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Email != nil {
		p.Email = *pp.Email
	}
	if pp.Phone != nil {
		p.Phone = *pp.Phone
	}
	if pp.LogoURL != nil {
		p.LogoURL = *pp.LogoURL
	}
	if pp.Role != nil {
		p.Role = *pp.Role
	}
	if pp.Status != nil {
		p.Status = *pp.Status
	}
	return p
}
