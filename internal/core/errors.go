package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrForbidden matches 403 responses.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrRetriesExhausted matches an HTTPError raised after the attempt budget ran out.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrLoginFailure is returned when credential validation is rejected with 401.
	ErrLoginFailure = errors.New("improper token has been passed")

	// ErrGatewayNotFound is returned when gateway discovery fails.
	ErrGatewayNotFound = errors.New("the gateway to connect to was not found")

	// ErrInvalidRoute is returned for routes with missing placeholders.
	ErrInvalidRoute = errors.New("invalid route")
)

// HTTPError is a non-success API response that was not absorbed by retries.
type HTTPError struct {
	StatusCode int
	Method     string
	URL        string
	Bucket     string

	// Code and Message come from a JSON error body when present.
	Code    int
	Message string

	// Body is the decoded payload (JSON value or raw text).
	Body any
	Text string

	Header    http.Header
	Attempts  int
	Exhausted bool
}

// NewHTTPError builds an error from a parsed response body.
func NewHTTPError(resp *Response, bucket string) *HTTPError {
	if resp == nil {
		return &HTTPError{Bucket: bucket}
	}

	e := &HTTPError{
		StatusCode: resp.StatusCode,
		Method:     resp.Method,
		URL:        resp.URL,
		Bucket:     bucket,
		Body:       resp.Data,
		Text:       string(resp.Raw),
		Header:     resp.Header,
	}

	if body, ok := resp.Data.(map[string]any); ok {
		if message, ok := body["message"].(string); ok {
			e.Message = message
		}
		if code, ok := body["code"].(float64); ok {
			e.Code = int(code)
		}
	} else {
		e.Message = strings.TrimSpace(e.Text)
	}

	return e
}

func (e *HTTPError) Error() string {
	status := fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Exhausted {
		status += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s (error code: %d): %s", status, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", status, e.Message)
	}
	return status
}

// Unwrap exposes the error kind for errors.Is.
func (e *HTTPError) Unwrap() []error {
	var kinds []error
	switch e.StatusCode {
	case http.StatusForbidden:
		kinds = append(kinds, ErrForbidden)
	case http.StatusNotFound:
		kinds = append(kinds, ErrNotFound)
	}
	if e.Exhausted {
		kinds = append(kinds, ErrRetriesExhausted)
	}
	return kinds
}

// NetworkError wraps a transport failure. These are never retried.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AsHTTPError extracts an HTTPError from err.
func AsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsForbidden reports whether err is a 403 response.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
