package adversarial_tests

import (
	"errors"
	"strings"
	"testing"

	"github.com/jamesprial/go-ruqqus/adversarial_tests/helpers"
	"github.com/jamesprial/go-ruqqus/internal"
	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

func TestGuildNameFuzzing(t *testing.T) {
	validator := internal.NewValidator()
	fuzzer := helpers.NewFuzzer(1)

	for _, name := range fuzzer.FuzzName() {
		err := validator.ValidateGuildName(name)
		want := isValidName(name, false)
		if want && err != nil {
			t.Errorf("ValidateGuildName(%q) rejected a valid name: %v", name, err)
		}
		if !want {
			if err == nil {
				t.Errorf("ValidateGuildName(%q) accepted an invalid name", name)
			} else if !isConfigError(err) {
				t.Errorf("ValidateGuildName(%q) returned %T, want *ConfigError", name, err)
			}
		}
	}
}

func TestUsernameFuzzing(t *testing.T) {
	validator := internal.NewValidator()
	fuzzer := helpers.NewFuzzer(2)

	for _, name := range fuzzer.FuzzName() {
		err := validator.ValidateUsername(name)
		if want := isValidName(name, true); want != (err == nil) {
			t.Errorf("ValidateUsername(%q) = %v, want valid=%v", name, err, want)
		}
	}
}

func TestIDFuzzing(t *testing.T) {
	validator := internal.NewValidator()
	fuzzer := helpers.NewFuzzer(3)

	for _, id := range fuzzer.FuzzID() {
		err := validator.ValidateID("id", id)
		if want := isValidID(id); want != (err == nil) {
			t.Errorf("ValidateID(%q) = %v, want valid=%v", id, err, want)
		}
		if err != nil && !isConfigError(err) {
			t.Errorf("ValidateID(%q) returned %T, want *ConfigError", id, err)
		}
	}
}

func TestUserAgentFuzzing(t *testing.T) {
	validator := internal.NewValidator()
	fuzzer := helpers.NewFuzzer(4)

	for _, ua := range fuzzer.FuzzUserAgent() {
		err := validator.ValidateUserAgent(ua)
		injects := strings.ContainsAny(ua, "\r\n")
		if (ua == "" || injects || len(ua) > 256) && err == nil {
			t.Errorf("ValidateUserAgent(%q) accepted a dangerous value", truncate(ua))
		}
		if ua != "" && !injects && len(ua) <= 256 && err != nil {
			t.Errorf("ValidateUserAgent(%q) rejected a harmless value: %v", truncate(ua), err)
		}
	}
}

func TestListingLimitFuzzing(t *testing.T) {
	validator := internal.NewValidator()

	for _, limit := range []int{-2147483648, -100, -1, 101, 1000, 2147483647} {
		if err := validator.ValidateListing(&types.ListingRequest{Limit: limit}); !isConfigError(err) {
			t.Errorf("limit %d: expected ConfigError, got %v", limit, err)
		}
	}
	for _, page := range []int{-1, -2147483648} {
		if err := validator.ValidateListing(&types.ListingRequest{Page: page}); !isConfigError(err) {
			t.Errorf("page %d: expected ConfigError, got %v", page, err)
		}
	}
	for _, sort := range []string{"HOT", "newest", "top;drop", "../new"} {
		if err := validator.ValidateListing(&types.ListingRequest{Sort: sort}); !isConfigError(err) {
			t.Errorf("sort %q: expected ConfigError, got %v", sort, err)
		}
	}
}

func TestVoteDirectionFuzzing(t *testing.T) {
	validator := internal.NewValidator()

	for dir := -5; dir <= 5; dir++ {
		err := validator.ValidateVote(types.Vote(dir))
		if want := dir >= -1 && dir <= 1; want != (err == nil) {
			t.Errorf("ValidateVote(%d) = %v", dir, err)
		}
	}
}

func TestSubmissionBoundaries(t *testing.T) {
	validator := internal.NewValidator()

	tests := []struct {
		name    string
		req     *types.SubmitPostRequest
		wantErr bool
	}{
		{"nil", nil, true},
		{"whitespace title", &types.SubmitPostRequest{Guild: "general", Title: " \t\n", Body: "x"}, true},
		{"title at limit", &types.SubmitPostRequest{Guild: "general", Title: strings.Repeat("t", 500), Body: "x"}, false},
		{"title over limit", &types.SubmitPostRequest{Guild: "general", Title: strings.Repeat("t", 501), Body: "x"}, true},
		{"body at limit", &types.SubmitPostRequest{Guild: "general", Title: "t", Body: strings.Repeat("b", 10000)}, false},
		{"body over limit", &types.SubmitPostRequest{Guild: "general", Title: "t", Body: strings.Repeat("b", 10001)}, true},
		{"whitespace url and body", &types.SubmitPostRequest{Guild: "general", Title: "t", URL: " ", Body: "\n"}, true},
		{"injected guild", &types.SubmitPostRequest{Guild: "general/../admin", Title: "t", Body: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateSubmission(tt.req)
			if tt.wantErr != (err != nil) {
				t.Errorf("ValidateSubmission = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// isValidName is an independent restatement of the naming rule: 3 to 25 ASCII
// letters, digits or underscores, plus hyphens for usernames.
func isValidName(name string, allowHyphen bool) bool {
	if len(name) < 3 || len(name) > 25 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		case r == '-' && allowHyphen:
		default:
			return false
		}
	}
	return true
}

func isValidID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func isConfigError(err error) bool {
	var configErr *pkgerrs.ConfigError
	return errors.As(err, &configErr)
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
