package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      ConfigError
		contains []string
	}{
		{
			name:     "with field and message",
			err:      ConfigError{Field: "ClientID", Message: "cannot be empty"},
			contains: []string{"config error", "ClientID", "cannot be empty"},
		},
		{
			name:     "only message",
			err:      ConfigError{Message: "invalid configuration"},
			contains: []string{"config error", "invalid configuration"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(result, want) {
					t.Errorf("ConfigError.Error() = %q, want to contain %q", result, want)
				}
			}
		})
	}
}

func TestAuthError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      AuthError
		contains []string
		absent   []string
	}{
		{
			name: "fatal classified rejection",
			err: AuthError{
				StatusCode: 401,
				Reason:     ReasonRefreshToken,
				Fatal:      true,
				Body:       `{"oauth_error":"Invalid refresh_token"}`,
			},
			contains: []string{"fatal auth error", "401", "invalid Refresh Token", "oauth_error"},
		},
		{
			name: "wrapped network failure",
			err: AuthError{
				Message: "token exchange failed",
				Err:     errors.New("connection reset"),
			},
			contains: []string{"auth error", "token exchange failed", "connection reset"},
			absent:   []string{"fatal"},
		},
		{
			name:     "empty error",
			err:      AuthError{},
			contains: []string{"auth error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(result, want) {
					t.Errorf("AuthError.Error() = %q, want to contain %q", result, want)
				}
			}
			for _, bad := range tt.absent {
				if strings.Contains(result, bad) {
					t.Errorf("AuthError.Error() = %q, should not contain %q", result, bad)
				}
			}
		})
	}
}

func TestScopeError(t *testing.T) {
	err := &ScopeError{Scope: "read", StatusCode: 401}
	if got := err.Error(); !strings.Contains(got, `missing "read" scope`) || !strings.Contains(got, "401") {
		t.Errorf("ScopeError.Error() = %q", got)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Error("ScopeError should match ErrUnauthorized")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("ScopeError should not match ErrNotFound")
	}

	custom := &ScopeError{Message: "no scopes requested"}
	if got := custom.Error(); got != "scope error: no scopes requested" {
		t.Errorf("ScopeError.Error() = %q", got)
	}
}

func TestStateError_Error(t *testing.T) {
	err := &StateError{Operation: "Connect", Message: "session already closed"}
	if got := err.Error(); got != "state error during Connect: session already closed" {
		t.Errorf("StateError.Error() = %q", got)
	}
	bare := &StateError{Message: "not online"}
	if got := bare.Error(); got != "state error: not online" {
		t.Errorf("StateError.Error() = %q", got)
	}
}

func TestRequestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  RequestError
		want string
	}{
		{
			name: "operation and URL",
			err:  RequestError{Operation: "GET", URL: "https://ruqqus.com/api/v1/identity", Message: "timeout"},
			want: "request error during GET to https://ruqqus.com/api/v1/identity: timeout",
		},
		{
			name: "falls back to wrapped error",
			err:  RequestError{Operation: "POST", Err: errors.New("refused")},
			want: "request error during POST: refused",
		},
		{
			name: "only message",
			err:  RequestError{Message: "failed"},
			want: "request error: failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("RequestError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseError_Error(t *testing.T) {
	err := &ParseError{Operation: "identity", Err: errors.New("unexpected EOF")}
	if got := err.Error(); got != "parse error during identity: unexpected EOF" {
		t.Errorf("ParseError.Error() = %q", got)
	}
}

func TestAPIError_StatusClasses(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{401, ErrUnauthorized},
		{403, ErrForbidden},
		{404, ErrNotFound},
		{405, ErrInvalidRequest},
		{413, ErrPayloadTooLarge},
		{500, ErrServerUnavailable},
		{503, ErrServerUnavailable},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := NewAPIError(tt.status, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
			if errors.Is(err, ErrClosed) {
				t.Errorf("status %d should not match ErrClosed", tt.status)
			}
		})
	}

	generic := NewAPIError(418, "teapot")
	for _, sentinel := range []error{ErrUnauthorized, ErrForbidden, ErrNotFound, ErrInvalidRequest, ErrPayloadTooLarge, ErrServerUnavailable} {
		if errors.Is(generic, sentinel) {
			t.Errorf("status 418 unexpectedly matches %v", sentinel)
		}
	}
	if !strings.Contains(generic.Error(), "418") {
		t.Errorf("APIError.Error() = %q, want status code", generic.Error())
	}
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{StatusCode: 403, ErrorCode: "Deletion Failed", Message: "forbidden"}
	want := "ruqqus API error (status 403, code Deletion Failed): forbidden"
	if got := err.Error(); got != want {
		t.Errorf("APIError.Error() = %q, want %q", got, want)
	}
}

func TestClientError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  ClientError
		want string
	}{
		{"only inner error", ClientError{Err: errors.New("connection refused")}, "connection refused"},
		{"operation and message", ClientError{Operation: "Do", Message: "failed"}, "client error during Do: failed"},
		{"operation only", ClientError{Operation: "Do"}, "client error during Do"},
		{"message only", ClientError{Message: "failed"}, "client error: failed"},
		{"all fields", ClientError{Operation: "Do", Message: "failed", Err: errors.New("timeout")}, "client error: timeout"},
		{"empty", ClientError{}, "client error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("ClientError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorChaining(t *testing.T) {
	rootErr := errors.New("root cause")

	for _, err := range []error{
		&AuthError{Err: rootErr},
		&RequestError{Err: rootErr},
		&ParseError{Err: rootErr},
		&ClientError{Err: rootErr},
	} {
		if !errors.Is(err, rootErr) {
			t.Errorf("%T should wrap root error for errors.Is", err)
		}
	}

	wrapped := fmt.Errorf("vote: %w", &AuthError{StatusCode: 401, Fatal: true})
	var target *AuthError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find AuthError")
	}
	if !target.Fatal {
		t.Error("expected fatal AuthError")
	}
}
