package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-authgate/portal-session/claims"
)

// tokenPair is what login, signup and refresh answers resolve to.
type tokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	// User is the principal object some answers embed next to the tokens.
	User map[string]any
}

var (
	accessTokenKeys  = []string{"accessToken", "access_token", "token"}
	refreshTokenKeys = []string{"refreshToken", "refresh_token"}
	tokenTypeKeys    = []string{"tokenType", "token_type"}
	expiresInKeys    = []string{"expiresIn", "expires_in"}
	userKeys         = []string{"user", "admin", "serviceProvider", "provider", "profile"}
)

// parseTokenPair looks for tokens in data.tokens, data, then the top level.
func parseTokenPair(body []byte) (tokenPair, error) {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return tokenPair{}, fmt.Errorf("failed to parse token response: %w", err)
	}

	scopes := make([]map[string]any, 0, 3)
	if data, ok := root["data"].(map[string]any); ok {
		if nested, ok := data["tokens"].(map[string]any); ok {
			scopes = append(scopes, nested)
		}
		scopes = append(scopes, data)
	}
	scopes = append(scopes, root)

	var tp tokenPair
	for _, scope := range scopes {
		if tp.AccessToken == "" {
			tp.AccessToken = firstString(scope, accessTokenKeys)
		}
		if tp.RefreshToken == "" {
			tp.RefreshToken = firstString(scope, refreshTokenKeys)
		}
		if tp.TokenType == "" {
			tp.TokenType = firstString(scope, tokenTypeKeys)
		}
		if tp.ExpiresIn == 0 {
			tp.ExpiresIn = firstInt(scope, expiresInKeys)
		}
		if tp.User == nil {
			tp.User = firstObject(scope, userKeys)
		}
	}
	return tp, nil
}

// validateTokenResponse rejects answers that cannot back a session.
func validateTokenResponse(accessToken, tokenType string) error {
	if accessToken == "" {
		return errors.New("access_token is empty")
	}

	if len(accessToken) < 10 {
		return fmt.Errorf("access_token is too short (length: %d)", len(accessToken))
	}

	// token type is optional, but when present it must be Bearer
	if tokenType != "" && !strings.EqualFold(tokenType, "Bearer") {
		return fmt.Errorf("unexpected token_type: %s (expected Bearer)", tokenType)
	}

	return nil
}

// expiry prefers the server's expires_in and falls back to the exp claim.
func (tp tokenPair) expiry(now time.Time) time.Time {
	if tp.ExpiresIn > 0 {
		return now.Add(time.Duration(tp.ExpiresIn) * time.Second)
	}
	if c, ok := claims.TryDecode(tp.AccessToken); ok {
		return c.ExpiresAt
	}
	return time.Time{}
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstInt(m map[string]any, keys []string) int64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int64(v)
		case string:
			var n int64
			if _, err := fmt.Sscan(v, &n); err == nil {
				return n
			}
		}
	}
	return 0
}

func firstObject(m map[string]any, keys []string) map[string]any {
	for _, k := range keys {
		if obj, ok := m[k].(map[string]any); ok {
			return obj
		}
	}
	return nil
}
