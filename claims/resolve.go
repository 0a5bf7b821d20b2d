package claims

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Candidate keys per logical field, in priority order. The three portals
// receive differently shaped payloads for the same identity.
var (
	subjectKeys   = []string{"sub", "id", "_id", "userId", "user_id", "serviceProviderId", "providerId", "adminId"}
	nameKeys      = []string{"name", "fullName", "full_name", "businessName", "username"}
	emailKeys     = []string{"email", "emailAddress", "email_address"}
	phoneKeys     = []string{"phone", "phoneNumber", "phone_number", "mobile"}
	statusKeys    = []string{"status", "accountStatus", "account_status"}
	logoKeys      = []string{"logo", "logoUrl", "logo_url", "avatar", "avatarUrl", "picture"}
	roleKeys      = []string{"role", "userType", "user_type"}
	createdAtKeys = []string{"createdAt", "created_at"}
	updatedAtKeys = []string{"updatedAt", "updated_at"}
)

// FromMap resolves claims from an arbitrary JSON object. Missing fields get
// their documented defaults; nothing here fails.
func FromMap(m map[string]any) *Claims {
	c := &Claims{
		Subject:   firstString(m, subjectKeys),
		Name:      firstString(m, nameKeys),
		Email:     firstString(m, emailKeys),
		Phone:     firstString(m, phoneKeys),
		Status:    strings.ToUpper(firstString(m, statusKeys)),
		LogoURL:   firstString(m, logoKeys),
		Role:      firstString(m, roleKeys),
		CreatedAt: firstTime(m, createdAtKeys),
		UpdatedAt: firstTime(m, updatedAtKeys),
		Raw:       m,
	}

	if c.Name == "" {
		first := stringValue(m["firstName"])
		last := stringValue(m["lastName"])
		c.Name = strings.TrimSpace(first + " " + last)
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Status == "" {
		c.Status = DefaultStatus
	}
	return c
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s := stringValue(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func firstTime(m map[string]any, keys []string) time.Time {
	for _, k := range keys {
		if t, ok := timeValue(m[k]); ok {
			return t
		}
	}
	return time.Time{}
}

// timeValue accepts RFC 3339 strings and unix seconds.
func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return time.Time{}, false
		}
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
		if secs, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.Unix(secs, 0), true
		}
	case json.Number:
		if secs, err := t.Float64(); err == nil {
			return time.Unix(int64(secs), 0), true
		}
	case float64:
		return time.Unix(int64(t), 0), true
	}
	return time.Time{}, false
}
