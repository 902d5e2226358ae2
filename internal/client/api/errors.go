package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrAuthenticationFailed is the terminal condition of a call whose session
// could not be recovered: no refresh token, or the refresh itself failed.
// The token store has been cleared; callers should send the user to login.
var ErrAuthenticationFailed = errors.New("authentication failed")

// errNoRefreshToken is the cause wrapped with ErrAuthenticationFailed when the store holds none.
var errNoRefreshToken = errors.New("no refresh token held")

// TransportError means no HTTP response was received (network, DNS, timeout, cancellation).
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Detail carries the server-provided message, if any.
//
//	var httpErr *api.HTTPError
//	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound { ... }
type HTTPError struct {
	StatusCode int
	Detail     string
	Code       string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsStatus reports whether err is an *HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

// IsAuthFailure reports whether err ended the session.
func IsAuthFailure(err error) bool { return errors.Is(err, ErrAuthenticationFailed) }

// errorBody covers the error shapes the API produces: {"detail": "..."} and
// validation lists {"detail": [{"msg": "..."}]}.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Code   string          `json:"code"`
}

func newHTTPError(status int, body []byte) *HTTPError {
	e := &HTTPError{StatusCode: status}
	var eb errorBody
	if json.Unmarshal(body, &eb) != nil {
		return e
	}
	e.Code = eb.Code
	if len(eb.Detail) == 0 {
		return e
	}
	var s string
	if json.Unmarshal(eb.Detail, &s) == nil {
		e.Detail = s
		return e
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(eb.Detail, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		e.Detail = strings.Join(msgs, "; ")
	}
	return e
}

func statusOK(code int) bool { return code >= http.StatusOK && code < http.StatusMultipleChoices }
