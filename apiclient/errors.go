package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies a failed call.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAuth
	KindSessionExpired
	KindForbidden
	KindValidation
	KindNotFound
	KindConflict
	KindRateLimited
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindSessionExpired:
		return "session_expired"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// User-facing messages.
const (
	MsgNetwork            = "Unable to reach the server. Please check your internet connection and try again."
	MsgTimeout            = "The request timed out. Please check your connection and try again."
	MsgCanceled           = "The request was cancelled."
	MsgInvalidCredentials = "Invalid credentials. Please check your details and try again."
	MsgUnauthenticated    = "You are not signed in. Please log in to continue."
	MsgSessionExpired     = "Your session has expired. Please log in again."
	MsgForbidden          = "You do not have permission to perform this action."
	MsgBadRequest         = "The request could not be processed. Please check your input and try again."
	MsgUnprocessable      = "Some of the information provided is invalid. Please review it and try again."
	MsgNotFound           = "The requested resource could not be found."
	MsgConflict           = "This record already exists. Please use different details."
	MsgRateLimited        = "Too many requests. Please wait a moment and try again."
	MsgServer             = "Something went wrong on our end. Please try again later."
	MsgUnknown            = "An unexpected error occurred. Please try again."
)

// Error is the normalized failure returned by the client. Error() is always
// a human readable message.
type Error struct {
	Kind          Kind
	StatusCode    int
	Message       string
	ServerMessage string
	Method        string
	Path          string
	Response      *Response
	Err           error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail is a diagnostic rendering for logs, never for end users.
func (e *Error) Detail() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", e.Method, e.Path, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == k
}

// KindOf returns the kind of err, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// networkError wraps a transport failure: no response was received.
func networkError(call *Call, err error) *Error {
	msg := MsgNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		msg = MsgCanceled
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		msg = MsgTimeout
	}
	return &Error{
		Kind:    KindNetwork,
		Message: msg,
		Method:  call.Method(),
		Path:    call.Path(),
		Err:     err,
	}
}

// statusError classifies a non-2xx response.
func statusError(call *Call, resp *Response, loginLike bool) *Error {
	serverMsg := serverMessage(resp.Body)
	e := &Error{
		StatusCode:    resp.StatusCode,
		ServerMessage: serverMsg,
		Method:        call.Method(),
		Path:          call.Path(),
		Response:      resp,
		Err:           fmt.Errorf("status %d", resp.StatusCode),
	}

	friendly := ""
	if isFriendly(serverMsg) {
		friendly = serverMsg
	}

	status := resp.StatusCode
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuth
		e.Message = pick(friendly, MsgUnauthenticated)
		if loginLike {
			e.Message = pick(friendly, MsgInvalidCredentials)
		}
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
		e.Message = pick(friendly, MsgForbidden)
	case status == http.StatusBadRequest:
		e.Kind = KindValidation
		e.Message = pick(friendly, MsgBadRequest)
	case status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
		e.Message = pick(friendly, MsgUnprocessable)
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = pick(friendly, MsgNotFound)
	case status == http.StatusConflict:
		e.Kind = KindConflict
		e.Message = MsgConflict
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.Message = MsgRateLimited
	case status >= 500:
		e.Kind = KindServer
		e.Message = MsgServer
	default:
		e.Kind = KindUnknown
		e.Message = pick(friendly, MsgUnknown)
	}
	return e
}

// sessionExpired turns cause into the terminal "log in again" error.
func sessionExpired(call *Call, cause error) *Error {
	e := &Error{
		Kind:    KindSessionExpired,
		Message: MsgSessionExpired,
		Method:  call.Method(),
		Path:    call.Path(),
		Err:     cause,
	}
	var apiErr *Error
	if errors.As(cause, &apiErr) {
		e.StatusCode = apiErr.StatusCode
		e.Response = apiErr.Response
	}
	if e.StatusCode == 0 {
		e.StatusCode = http.StatusUnauthorized
	}
	return e
}

func pick(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

// serverMessageKeys are read in order; the first non-empty string wins.
var serverMessageKeys = []string{"customerMessage", "message", "responseDesc", "error_description", "error", "detail"}

// serverMessage extracts the best-effort message a backend put in body.
func serverMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		// plain text bodies still count if they pass isFriendly
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			return ""
		}
		return trimmed
	}

	for _, k := range serverMessageKeys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}

	if list, ok := obj["errors"].([]any); ok && len(list) > 0 {
		switch first := list[0].(type) {
		case string:
			return strings.TrimSpace(first)
		case map[string]any:
			if s, ok := first["message"].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

const maxFriendlyLen = 200

// transportPhrases mark messages that leak HTTP or runtime internals.
var transportPhrases = []string{
	"status code",
	"request failed",
	"network error",
	"timeout of",
	"exception",
	"stack",
	"internal server error",
	"econn",
	"<html",
	"<!doctype",
	"sql",
	"undefined",
	"nil pointer",
	"jwt",
}

// isFriendly decides whether a backend message can be shown to a user.
func isFriendly(msg string) bool {
	msg = strings.TrimSpace(msg)
	if msg == "" || len(msg) > maxFriendlyLen {
		return false
	}
	lower := strings.ToLower(msg)
	if lower == "null" {
		return false
	}
	for _, phrase := range transportPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}
