package validation

import (
	"regexp"
	"strings"

	"github.com/jamesprial/go-ruqqus/pkg/types"
)

// Regular expressions for validating platform data formats
var (
	// base36Regex matches base36 encoded IDs (0-9, a-z)
	base36Regex = regexp.MustCompile(`^[0-9a-z]+$`)

	// guildRegex matches guild names (3-25 chars, alphanumeric + underscore)
	guildRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,25}$`)

	// usernameRegex matches usernames (3-25 chars, alphanumeric + underscore + hyphen)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,25}$`)

	// fullnameRegex matches prefixed identifiers: t[1-4]_[base36_id]
	fullnameRegex = regexp.MustCompile(`^t[1-4]_[0-9a-z]+$`)

	// permalinkRegex matches post and comment permalinks
	// Format: /post/{id}/{slug} or /post/{id}/{slug}/{comment_id}
	permalinkRegex = regexp.MustCompile(`^/post/[0-9a-z]+(/[^/]*)?(/[0-9a-z]+)?/?$`)
)

const (
	// MaxTitleLength is the longest post title the platform accepts.
	MaxTitleLength = 500
	// MaxBodyLength is the longest post or comment body the platform accepts.
	MaxBodyLength = 10000
)

// IsValidBase36 checks if a string is a valid base36 encoded ID
func IsValidBase36(s string) bool {
	return s != "" && base36Regex.MatchString(s)
}

// IsValidGuild checks if a string is a valid guild name
func IsValidGuild(s string) bool {
	return guildRegex.MatchString(s)
}

// IsValidUsername checks if a string is a valid username
func IsValidUsername(s string) bool {
	return usernameRegex.MatchString(s)
}

// IsValidFullname checks if a string is a valid prefixed identifier
func IsValidFullname(s string) bool {
	return fullnameRegex.MatchString(s)
}

// IsValidPermalink checks if a string is a valid post or comment permalink
func IsValidPermalink(s string) bool {
	return s != "" && permalinkRegex.MatchString(s)
}

// IsBlank reports whether s is empty once surrounding whitespace is removed.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// NormalizeScopes lowercases the requested scopes and drops anything outside the
// vocabulary. The literal "all" expands to the full vocabulary.
func NormalizeScopes(requested []string) []types.Scope {
	if len(requested) == 1 && strings.EqualFold(strings.TrimSpace(requested[0]), "all") {
		return append([]types.Scope(nil), types.AllScopes...)
	}

	seen := make(map[types.Scope]bool, len(requested))
	out := make([]types.Scope, 0, len(requested))
	for _, s := range requested {
		name := strings.ToLower(strings.TrimSpace(s))
		if !types.IsKnownScope(name) || seen[types.Scope(name)] {
			continue
		}
		seen[types.Scope(name)] = true
		out = append(out, types.Scope(name))
	}
	return out
}
