package apiclient

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFriendly(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Invalid email or password.", true},
		{"The code you entered is incorrect.", true},
		{"", false},
		{"   ", false},
		{"null", false},
		{"Request failed with status code 401", false},
		{"Network Error", false},
		{"timeout of 30000ms exceeded", false},
		{"NullPointerException at Foo.java:42", false},
		{"connect ECONNREFUSED 127.0.0.1:5432", false},
		{"<html><body>502</body></html>", false},
		{"jwt malformed", false},
		{strings.Repeat("a", maxFriendlyLen+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isFriendly(tt.msg))
		})
	}
}

func TestServerMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", ``, ""},
		{"customer message first", `{"message":"m","customerMessage":"c"}`, "c"},
		{"message", `{"message":" spaced "}`, "spaced"},
		{"response desc", `{"responseDesc":"Account locked"}`, "Account locked"},
		{"oauth description", `{"error":"invalid_grant","error_description":"expired"}`, "expired"},
		{"errors strings", `{"errors":["first","second"]}`, "first"},
		{"errors objects", `{"errors":[{"field":"email","message":"taken"}]}`, "taken"},
		{"no known keys", `{"foo":"bar"}`, ""},
		{"plain text", `Service unavailable`, "Service unavailable"},
		{"broken json", `{"message":`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serverMessage([]byte(tt.body)))
		})
	}
}

func TestKindHelpers(t *testing.T) {
	err := &Error{Kind: KindForbidden, Message: MsgForbidden, Err: errors.New("status 403")}
	wrapped := errors.Join(errors.New("context"), err)

	assert.True(t, IsKind(wrapped, KindForbidden))
	assert.False(t, IsKind(wrapped, KindAuth))
	assert.Equal(t, KindForbidden, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "forbidden", KindForbidden.String())
	assert.Equal(t, "unknown", Kind(99).String())
	assert.EqualError(t, err.Unwrap(), "status 403")
}

func TestCode_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		body string
		want Code
	}{
		{`{"responseCode":"00"}`, "00"},
		{`{"responseCode":0}`, "0"},
		{`{"responseCode":200}`, "200"},
		{`{"responseCode":null}`, ""},
		{`{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var env Envelope
			require.NoError(t, json.Unmarshal([]byte(tt.body), &env))
			assert.Equal(t, tt.want, env.ResponseCode)
		})
	}

	var env Envelope
	assert.Error(t, json.Unmarshal([]byte(`{"responseCode":true}`), &env))
}
