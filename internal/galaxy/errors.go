// Package galaxy provides an authenticated HTTP client for the Galaxy NG
// (Automation Hub) API with credential resolution, session refresh,
// bounded retry, error classification, and task polling.
package galaxy

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Category sentinels. Use errors.Is(err, galaxy.ErrAuth) to check.
var (
	ErrCredential     = errors.New("galaxy: credential error")
	ErrAuth           = errors.New("galaxy: authentication rejected")
	ErrPermission     = errors.New("galaxy: permission denied")
	ErrAPI            = errors.New("galaxy: api error")
	ErrResponseFormat = errors.New("galaxy: unexpected response format")
	ErrTaskFailed     = errors.New("galaxy: task failed")
	ErrTaskTimeout    = errors.New("galaxy: timed out waiting for task")

	// ErrDuplicate and ErrUnsupportedServer are raised by resource wrappers,
	// not by the session pipeline.
	ErrDuplicate         = errors.New("galaxy: already exists")
	ErrUnsupportedServer = errors.New("galaxy: unsupported server version")
)

// Sentinel errors for HTTP status code classification.
var (
	ErrBadRequest     = errors.New("galaxy: bad request")
	ErrUnauthorized   = errors.New("galaxy: unauthorized")
	ErrForbidden      = errors.New("galaxy: forbidden")
	ErrNotFound       = errors.New("galaxy: not found")
	ErrConflict       = errors.New("galaxy: conflict")
	ErrServerError    = errors.New("galaxy: server error")
	ErrGatewayTimeout = errors.New("galaxy: gateway timeout")
)

// ErrorDetail is one entry of the top-level "errors" list the API returns.
type ErrorDetail struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// APIError is returned for any response the pipeline could not turn into a
// success. Err is the category (ErrAPI, ErrAuth or ErrPermission); the status
// sentinel is derived from StatusCode.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
	Errors     []ErrorDetail
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "galaxy: %s %s: HTTP %d", e.Method, e.URL, e.StatusCode)

	switch {
	case len(e.Errors) > 0:
		first := e.Errors[0]
		fmt.Fprintf(&b, ": %s", first.Code)

		if first.Detail != "" {
			fmt.Fprintf(&b, ": %s", first.Detail)
		}
	case e.Body != "":
		fmt.Fprintf(&b, ": %s", truncate(e.Body, maxErrorBody))
	}

	return b.String()
}

func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, 2)

	category := e.Err
	if category == nil {
		category = ErrAPI
	}

	errs = append(errs, category)

	if s := classifyStatus(e.StatusCode); s != nil {
		errs = append(errs, s)
	}

	return errs
}

// HasCode reports whether any structured error entry carries code.
func (e *APIError) HasCode(code string) bool {
	for _, d := range e.Errors {
		if d.Code == code {
			return true
		}
	}

	return false
}

// CredentialError reports a failure to establish the initial credential:
// rejected password, malformed token response, missing CSRF token.
type CredentialError struct {
	Mode       string
	StatusCode int
	Reason     string
	Body       string
	Err        error
}

func (e *CredentialError) Error() string {
	msg := fmt.Sprintf("galaxy: %s credential: %s", e.Mode, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}

	if e.Body != "" {
		msg += ": " + truncate(e.Body, maxErrorBody)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *CredentialError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCredential, e.Err}
	}

	return []error{ErrCredential}
}

// ResponseFormatError is returned when a successful response does not carry
// the JSON body the caller asked for.
type ResponseFormatError struct {
	StatusCode int
	URL        string
	Body       string
	Err        error
}

func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("galaxy: cannot parse JSON response from %s (HTTP %d): %s",
		e.URL, e.StatusCode, truncate(e.Body, maxErrorBody))
}

func (e *ResponseFormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrResponseFormat, e.Err}
	}

	return []error{ErrResponseFormat}
}

// TaskFailedError is returned by WaitForTask when the task ends in the
// failed state and the caller asked for failures to be raised.
type TaskFailedError struct {
	URL    string
	Detail string
	Result *TaskResult
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("galaxy: task %s failed: %s", e.URL, e.Detail)
}

func (e *TaskFailedError) Unwrap() error {
	return ErrTaskFailed
}

// maxErrorBody bounds how much of a response body ends up in error strings.
const maxErrorBody = 512

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusGatewayTimeout:
		return ErrGatewayTimeout
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// StatusCode extracts the HTTP status from an APIError anywhere in the
// chain. Returns 0 when err carries no status.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return credErr.StatusCode
	}

	return 0
}
