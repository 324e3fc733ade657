package ruqqus

import (
	"strings"

	"golang.org/x/oauth2"

	"github.com/jamesprial/go-ruqqus/pkg/errors"
	"github.com/jamesprial/go-ruqqus/pkg/validation"
)

const (
	// DefaultAuthState is sent as the state parameter when none is given.
	DefaultAuthState = "go-ruqqus"
	// DefaultRedirectURI is used when no redirect URI is given.
	DefaultRedirectURI = "http://localhost"
)

// AuthURLOptions describes an authorization request.
type AuthURLOptions struct {
	ClientID    string
	RedirectURI string
	State       string
	// Scopes lists the requested scopes. Entries may themselves be comma separated,
	// and the single entry "all" requests the full vocabulary. Unknown names are dropped.
	Scopes []string
	// Permanent asks for a refresh token along with the access code.
	Permanent bool
	// Domain defaults to DefaultDomain.
	Domain string
}

// AuthURL returns the URL a user visits to grant the application access. The code
// the platform redirects back with is passed to a Session as Config.AccessCode.
func AuthURL(opts AuthURLOptions) (string, error) {
	if strings.TrimSpace(opts.ClientID) == "" {
		return "", &errors.ConfigError{Field: "ClientID", Message: "client id is required"}
	}

	var requested []string
	for _, s := range opts.Scopes {
		requested = append(requested, strings.Split(s, ",")...)
	}
	scopes := validation.NormalizeScopes(requested)
	if len(scopes) == 0 {
		return "", &errors.ScopeError{Message: "at least one valid scope is required"}
	}
	names := make([]string, len(scopes))
	for i, s := range scopes {
		names[i] = string(s)
	}

	redirect := strings.TrimSpace(opts.RedirectURI)
	if redirect == "" {
		redirect = DefaultRedirectURI
	}
	state := opts.State
	if state == "" {
		state = DefaultAuthState
	}
	domain := opts.Domain
	if domain == "" {
		domain = DefaultDomain
	}

	conf := &oauth2.Config{
		ClientID:    opts.ClientID,
		RedirectURL: redirect,
		Endpoint: oauth2.Endpoint{
			AuthURL: siteURL(domain) + "/oauth/authorize",
		},
	}

	params := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("scope", strings.Join(names, ","))}
	if opts.Permanent {
		params = append(params, oauth2.SetAuthURLParam("permanent", "true"))
	}
	return conf.AuthCodeURL(state, params...), nil
}
