package internal

import (
	"strings"
	"testing"

	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

// checkConfigError asserts err matches the expectation and is a *ConfigError.
func checkConfigError(t *testing.T, err error, wantError bool, errorMsg string) {
	t.Helper()
	if !wantError {
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		return
	}
	if err == nil {
		t.Errorf("expected error containing %q, got nil", errorMsg)
		return
	}
	if !strings.Contains(err.Error(), errorMsg) {
		t.Errorf("expected error containing %q, got %q", errorMsg, err.Error())
	}
	if _, ok := err.(*pkgerrs.ConfigError); !ok {
		t.Errorf("expected *pkgerrs.ConfigError, got %T", err)
	}
}

func TestValidator_ValidateGuildName(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		input     string
		wantError bool
		errorMsg  string
	}{
		{name: "valid minimum length", input: "abc"},
		{name: "valid maximum length", input: strings.Repeat("a", 25)},
		{name: "valid with numbers and underscore", input: "Ruqqus_2020"},

		{name: "empty string", input: "", wantError: true, errorMsg: "cannot be empty"},
		{name: "too short", input: "ab", wantError: true, errorMsg: "invalid guild name"},
		{name: "too long", input: strings.Repeat("a", 26), wantError: true, errorMsg: "invalid guild name"},
		{name: "contains dash", input: "test-guild", wantError: true, errorMsg: "invalid guild name"},
		{name: "contains slash", input: "+test/x", wantError: true, errorMsg: "invalid guild name"},
		{name: "path traversal", input: "../etc", wantError: true, errorMsg: "invalid guild name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkConfigError(t, v.ValidateGuildName(tt.input), tt.wantError, tt.errorMsg)
		})
	}
}

func TestValidator_ValidateUsername(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		input     string
		wantError bool
		errorMsg  string
	}{
		{name: "valid", input: "alice"},
		{name: "valid with hyphen", input: "alice-b"},
		{name: "empty", input: "", wantError: true, errorMsg: "cannot be empty"},
		{name: "space", input: "alice b", wantError: true, errorMsg: "invalid username"},
		{name: "query injection", input: "a?b=c", wantError: true, errorMsg: "invalid username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkConfigError(t, v.ValidateUsername(tt.input), tt.wantError, tt.errorMsg)
		})
	}
}

func TestValidator_ValidateID(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		input     string
		wantError bool
		errorMsg  string
	}{
		{name: "base36", input: "7xk2"},
		{name: "empty", input: "", wantError: true, errorMsg: "cannot be empty"},
		{name: "uppercase", input: "ABC", wantError: true, errorMsg: "invalid id"},
		{name: "fullname", input: "t2_abc", wantError: true, errorMsg: "invalid id"},
		{name: "slash", input: "abc/../x", wantError: true, errorMsg: "invalid id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateID("post", tt.input)
			checkConfigError(t, err, tt.wantError, tt.errorMsg)
			if err != nil && err.(*pkgerrs.ConfigError).Field != "post" {
				t.Errorf("Field = %q, want post", err.(*pkgerrs.ConfigError).Field)
			}
		})
	}
}

func TestValidator_ValidateBody(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		input     string
		wantError bool
		errorMsg  string
	}{
		{name: "text", input: "hello"},
		{name: "empty", input: "", wantError: true, errorMsg: "cannot be blank"},
		{name: "whitespace", input: " \n\t", wantError: true, errorMsg: "cannot be blank"},
		{name: "too long", input: strings.Repeat("x", 10001), wantError: true, errorMsg: "cannot exceed 10000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkConfigError(t, v.ValidateBody(tt.input), tt.wantError, tt.errorMsg)
		})
	}
}

func TestValidator_ValidateSubmission(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		req       *types.SubmitPostRequest
		wantError bool
		errorMsg  string
	}{
		{name: "text post", req: &types.SubmitPostRequest{Guild: "general", Title: "hi", Body: "text"}},
		{name: "link post", req: &types.SubmitPostRequest{Guild: "general", Title: "hi", URL: "https://example.com"}},
		{name: "nil", req: nil, wantError: true, errorMsg: "cannot be nil"},
		{name: "bad guild", req: &types.SubmitPostRequest{Guild: "x", Title: "hi", Body: "b"}, wantError: true, errorMsg: "invalid guild"},
		{name: "blank title", req: &types.SubmitPostRequest{Guild: "general", Title: "  ", Body: "b"}, wantError: true, errorMsg: "title cannot be blank"},
		{name: "long title", req: &types.SubmitPostRequest{Guild: "general", Title: strings.Repeat("t", 501), Body: "b"}, wantError: true, errorMsg: "title cannot exceed"},
		{name: "no content", req: &types.SubmitPostRequest{Guild: "general", Title: "hi"}, wantError: true, errorMsg: "url or a body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkConfigError(t, v.ValidateSubmission(tt.req), tt.wantError, tt.errorMsg)
		})
	}
}

func TestValidator_ValidateListing(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		req       *types.ListingRequest
		wantError bool
		errorMsg  string
	}{
		{name: "nil", req: nil},
		{name: "zero value", req: &types.ListingRequest{}},
		{name: "page and sort", req: &types.ListingRequest{Page: 3, Sort: types.SortTop, Limit: 100}},
		{name: "negative page", req: &types.ListingRequest{Page: -1}, wantError: true, errorMsg: "page cannot be negative"},
		{name: "negative limit", req: &types.ListingRequest{Limit: -1}, wantError: true, errorMsg: "limit cannot be negative"},
		{name: "limit too large", req: &types.ListingRequest{Limit: 101}, wantError: true, errorMsg: "cannot exceed 100"},
		{name: "unknown sort", req: &types.ListingRequest{Sort: "controversial"}, wantError: true, errorMsg: "unknown sort"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkConfigError(t, v.ValidateListing(tt.req), tt.wantError, tt.errorMsg)
		})
	}
}

func TestValidator_ValidateVote(t *testing.T) {
	v := NewValidator()

	for _, dir := range []types.Vote{types.VoteDown, types.VoteClear, types.VoteUp} {
		if err := v.ValidateVote(dir); err != nil {
			t.Errorf("ValidateVote(%d) = %v", dir, err)
		}
	}
	checkConfigError(t, v.ValidateVote(2), true, "vote must be")
}

func TestValidator_ValidateUserAgent(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		input     string
		wantError bool
		errorMsg  string
	}{
		{name: "default style", input: "go-ruqqus@abc123"},
		{name: "empty", input: "", wantError: true, errorMsg: "cannot be empty"},
		{name: "header injection CRLF", input: "agent\r\nX-Evil: 1", wantError: true, errorMsg: "newline"},
		{name: "header injection LF", input: "agent\nX-Evil: 1", wantError: true, errorMsg: "newline"},
		{name: "too long", input: strings.Repeat("a", 257), wantError: true, errorMsg: "too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkConfigError(t, v.ValidateUserAgent(tt.input), tt.wantError, tt.errorMsg)
		})
	}
}
