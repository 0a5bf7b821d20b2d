// Package claims reads the payload of a bearer token without verifying it.
//
// The decoded claims are advisory: they seed a provisional principal right
// after login, before the authenticated profile fetch completes. The backend
// validates the token on every request, so nothing here is a trust boundary.
package claims

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	// ErrMalformedToken is returned when a token does not have exactly three segments.
	ErrMalformedToken = errors.New("malformed token")
	// ErrDecode is returned when the payload segment cannot be decoded or parsed.
	ErrDecode = errors.New("token payload decode failed")
)

// Defaults substituted for fields the backend did not send.
const (
	DefaultName   = "User"
	DefaultStatus = "INACTIVE"
)

// Claims is the normalized view of a token payload or profile object.
type Claims struct {
	Subject   string
	Name      string
	Email     string
	Phone     string
	Status    string
	LogoURL   string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time

	// Raw holds the decoded payload as sent by the backend.
	Raw jwt.MapClaims
}

// payloadParser only decodes segments; it is never asked to verify a signature.
var payloadParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode splits token into its three segments and parses the middle one.
func Decode(token string) (*Claims, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return nil, errors.Wrapf(ErrMalformedToken, "expected 3 segments, got %d", len(parts))
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "base64: %v", err)
	}

	raw := jwt.MapClaims{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrapf(ErrDecode, "json: %v", err)
	}

	c := FromMap(raw)
	if exp, err := raw.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if c.CreatedAt.IsZero() {
		if iat, err := raw.GetIssuedAt(); err == nil && iat != nil {
			c.CreatedAt = iat.Time
		}
	}
	return c, nil
}

// decodeSegment accepts the URL alphabet first and falls back to the
// standard one, padded or not.
func decodeSegment(seg string) ([]byte, error) {
	payload, err := payloadParser.DecodeSegment(seg)
	if err == nil {
		return payload, nil
	}
	if std, stdErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(seg, "=")); stdErr == nil {
		return std, nil
	}
	return nil, err
}

// TryDecode is Decode for callers that treat any failure as "no claims".
func TryDecode(token string) (*Claims, bool) {
	c, err := Decode(token)
	if err != nil {
		return nil, false
	}
	return c, true
}

// Expired reports whether the claims carry an expiry that is before now.
// Claims without an expiry never expire.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
