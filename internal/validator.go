package internal

import (
	"fmt"
	"strings"

	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
	"github.com/jamesprial/go-ruqqus/pkg/types"
	"github.com/jamesprial/go-ruqqus/pkg/validation"
)

const (
	// Listing constraints
	maxListingLimit = 100

	// User agent constraints
	maxUserAgentLength = 256
)

// Validator checks caller input before any request is sent.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateGuildName checks a guild name against the platform's naming rules.
func (v *Validator) ValidateGuildName(name string) error {
	if name == "" {
		return &pkgerrs.ConfigError{Field: "guild", Message: "guild name cannot be empty"}
	}
	if !validation.IsValidGuild(name) {
		return &pkgerrs.ConfigError{Field: "guild", Message: fmt.Sprintf("invalid guild name %q", name)}
	}
	return nil
}

// ValidateUsername checks a username against the platform's naming rules.
func (v *Validator) ValidateUsername(name string) error {
	if name == "" {
		return &pkgerrs.ConfigError{Field: "username", Message: "username cannot be empty"}
	}
	if !validation.IsValidUsername(name) {
		return &pkgerrs.ConfigError{Field: "username", Message: fmt.Sprintf("invalid username %q", name)}
	}
	return nil
}

// ValidateID checks that id is a base36 item id. field names the argument in the error.
func (v *Validator) ValidateID(field, id string) error {
	if id == "" {
		return &pkgerrs.ConfigError{Field: field, Message: "id cannot be empty"}
	}
	if !validation.IsValidBase36(id) {
		return &pkgerrs.ConfigError{Field: field, Message: fmt.Sprintf("invalid id %q", id)}
	}
	return nil
}

// ValidateBody checks a comment or post body.
func (v *Validator) ValidateBody(body string) error {
	if validation.IsBlank(body) {
		return &pkgerrs.ConfigError{Field: "body", Message: "body cannot be blank"}
	}
	if len(body) > validation.MaxBodyLength {
		return &pkgerrs.ConfigError{Field: "body", Message: fmt.Sprintf("body cannot exceed %d characters", validation.MaxBodyLength)}
	}
	return nil
}

// ValidateSubmission checks a new post. A post needs a guild, a title and a URL or body.
func (v *Validator) ValidateSubmission(req *types.SubmitPostRequest) error {
	if req == nil {
		return &pkgerrs.ConfigError{Field: "post", Message: "request cannot be nil"}
	}
	if err := v.ValidateGuildName(req.Guild); err != nil {
		return err
	}
	if validation.IsBlank(req.Title) {
		return &pkgerrs.ConfigError{Field: "title", Message: "title cannot be blank"}
	}
	if len(req.Title) > validation.MaxTitleLength {
		return &pkgerrs.ConfigError{Field: "title", Message: fmt.Sprintf("title cannot exceed %d characters", validation.MaxTitleLength)}
	}
	if validation.IsBlank(req.URL) && validation.IsBlank(req.Body) {
		return &pkgerrs.ConfigError{Field: "body", Message: "post needs a url or a body"}
	}
	if len(req.Body) > validation.MaxBodyLength {
		return &pkgerrs.ConfigError{Field: "body", Message: fmt.Sprintf("body cannot exceed %d characters", validation.MaxBodyLength)}
	}
	return nil
}

// ValidateListing checks listing parameters. A nil request is valid.
func (v *Validator) ValidateListing(req *types.ListingRequest) error {
	if req == nil {
		return nil
	}
	if req.Page < 0 {
		return &pkgerrs.ConfigError{Field: "listing.Page", Message: "page cannot be negative"}
	}
	if req.Limit < 0 {
		return &pkgerrs.ConfigError{Field: "listing.Limit", Message: "limit cannot be negative"}
	}
	if req.Limit > maxListingLimit {
		return &pkgerrs.ConfigError{Field: "listing.Limit", Message: fmt.Sprintf("limit cannot exceed %d", maxListingLimit)}
	}
	switch req.Sort {
	case "", types.SortHot, types.SortNew, types.SortTop, types.SortActivity, types.SortDisputed:
	default:
		return &pkgerrs.ConfigError{Field: "listing.Sort", Message: fmt.Sprintf("unknown sort %q", req.Sort)}
	}
	return nil
}

// ValidateVote checks a vote direction.
func (v *Validator) ValidateVote(dir types.Vote) error {
	switch dir {
	case types.VoteDown, types.VoteClear, types.VoteUp:
		return nil
	}
	return &pkgerrs.ConfigError{Field: "vote", Message: fmt.Sprintf("vote must be -1, 0 or 1, got %d", dir)}
}

// ValidateUserAgent validates the User-Agent string to prevent header injection attacks.
func (v *Validator) ValidateUserAgent(ua string) error {
	if len(ua) == 0 {
		return &pkgerrs.ConfigError{Field: "UserAgent", Message: "user agent cannot be empty"}
	}

	// Check for newline characters that could be used for header injection
	if strings.ContainsAny(ua, "\r\n") {
		return &pkgerrs.ConfigError{Field: "UserAgent", Message: "user agent cannot contain newline characters"}
	}

	if len(ua) > maxUserAgentLength {
		return &pkgerrs.ConfigError{Field: "UserAgent", Message: fmt.Sprintf("user agent too long (max %d characters)", maxUserAgentLength)}
	}

	return nil
}
