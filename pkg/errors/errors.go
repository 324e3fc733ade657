// Package errors defines the error types returned by the Ruqqus client.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel status classes. An *APIError matches one of these through errors.Is.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrServerUnavailable = errors.New("server unavailable")
	// ErrClosed is returned by any operation attempted after the session was closed.
	ErrClosed = errors.New("session closed")
)

// ConfigError indicates a problem with the client configuration or with caller input.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// AuthReason classifies a rejected credential exchange.
type AuthReason string

const (
	ReasonRefreshToken      AuthReason = "Refresh Token"
	ReasonAuthorizationCode AuthReason = "Authcode"
	ReasonClientCredentials AuthReason = "ID or Client Secret"
	ReasonUnknown           AuthReason = "Unknown"
)

// AuthError indicates a credential exchange failure.
type AuthError struct {
	// StatusCode is the HTTP status code associated with the failure
	StatusCode int
	// Reason classifies which credential was rejected
	Reason AuthReason
	// Message contains the detailed error message
	Message string
	// Body contains the raw response body (if available)
	Body string
	// Fatal is set when the session cannot continue with its current credentials
	Fatal bool
	// Err contains the underlying error if available
	Err error
}

func (e *AuthError) Error() string {
	var parts []string

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status code %d", e.StatusCode))
	}
	if e.Reason != "" {
		parts = append(parts, "invalid "+string(e.Reason))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Body != "" {
		parts = append(parts, fmt.Sprintf("body: %q", e.Body))
	}
	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("err: %v", e.Err))
	}

	prefix := "auth error"
	if e.Fatal {
		prefix = "fatal auth error"
	}
	if len(parts) == 0 {
		return prefix
	}
	return prefix + ": " + strings.Join(parts, ", ")
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ScopeError indicates an operation needs a scope the session was not granted.
// No request is sent when this error is returned.
type ScopeError struct {
	// Scope is the missing scope
	Scope string
	// StatusCode mirrors the status the server would have answered with
	StatusCode int
	// Message optionally overrides the default description
	Message string
}

func (e *ScopeError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("missing %q scope", e.Scope)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("scope error (status %d): %s", e.StatusCode, msg)
	}
	return "scope error: " + msg
}

// Is reports ScopeError as an unauthorized status class.
func (e *ScopeError) Is(target error) bool {
	return target == ErrUnauthorized
}

// StateError indicates an operation was attempted when the session is not ready.
type StateError struct {
	// Operation is the name of the operation that was attempted
	Operation string
	// Message contains the detailed error message
	Message string
}

func (e *StateError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("state error during %s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("state error: %s", e.Message)
}

// RequestError indicates a network level failure while making an API request.
type RequestError struct {
	// Operation is the name of the API operation that failed
	Operation string
	// URL is the URL that was being accessed
	URL string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" && e.URL != "" {
		return fmt.Sprintf("request error during %s to %s: %s", e.Operation, e.URL, msg)
	} else if e.Operation != "" {
		return fmt.Sprintf("request error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("request error: %s", msg)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ParseError indicates a problem decoding an API response.
type ParseError struct {
	// Operation is the name of the API operation where parsing failed
	Operation string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" {
		return fmt.Sprintf("parse error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("parse error: %s", msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// APIError represents a non-success response from the API.
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// ErrorCode is the error string from the response body (if available)
	ErrorCode string
	// Message describes the status class
	Message string
	// Body contains the raw response body
	Body string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("ruqqus API error (status %d, code %s): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("ruqqus API error (status %d): %s", e.StatusCode, e.Message)
}

// Is matches the sentinel for the error's status class.
func (e *APIError) Is(target error) bool {
	return target != nil && target == StatusClass(e.StatusCode)
}

// StatusClass maps a status code to its sentinel, or nil for codes without one.
func StatusClass(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusMethodNotAllowed:
		return ErrInvalidRequest
	case http.StatusRequestEntityTooLarge:
		return ErrPayloadTooLarge
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return ErrServerUnavailable
	default:
		return nil
	}
}

// NewAPIError builds an APIError with the message for its status class.
func NewAPIError(status int, body string) *APIError {
	msg := "unexpected response code"
	switch status {
	case http.StatusUnauthorized:
		msg = "unauthorized"
	case http.StatusForbidden:
		msg = "forbidden"
	case http.StatusNotFound:
		msg = "not found"
	case http.StatusMethodNotAllowed:
		msg = "invalid request"
	case http.StatusRequestEntityTooLarge:
		msg = "payload too large"
	case http.StatusInternalServerError:
		msg = "server down"
	case http.StatusServiceUnavailable:
		msg = "server unavailable"
	}
	return &APIError{StatusCode: status, Message: msg, Body: body}
}

// ClientError indicates a problem with the HTTP client operations.
type ClientError struct {
	// Operation describes what the client was trying to do
	Operation string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *ClientError) Error() string {
	if e.Err != nil && e.Operation == "" && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("client error: %v", e.Err)
	}
	if e.Operation != "" && e.Message != "" {
		return fmt.Sprintf("client error during %s: %s", e.Operation, e.Message)
	}
	if e.Operation != "" {
		return fmt.Sprintf("client error during %s", e.Operation)
	}
	if e.Message != "" {
		return fmt.Sprintf("client error: %s", e.Message)
	}
	return "client error"
}

func (e *ClientError) Unwrap() error {
	return e.Err
}
