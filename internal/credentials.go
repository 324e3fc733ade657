package internal

import (
	"sync"
	"time"

	"github.com/jamesprial/go-ruqqus/pkg/types"
)

// GrantResult is the accepted part of a successful grant response.
type GrantResult struct {
	AccessToken string
	// RefreshToken is empty when the server did not rotate it.
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       types.ScopeSet
}

// CredentialStore holds the session's tokens. Only the token manager writes to it,
// everything else reads through the accessors.
type CredentialStore struct {
	clientID     string
	clientSecret string

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	scopes       types.ScopeSet
	released     bool
}

// NewCredentialStore creates a store seeded with the application credentials and an
// optional refresh token from a previous session.
func NewCredentialStore(clientID, clientSecret, refreshToken string) *CredentialStore {
	return &CredentialStore{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		scopes:       make(types.ScopeSet),
	}
}

// ClientID returns the application id.
func (s *CredentialStore) ClientID() string { return s.clientID }

// ClientSecret returns the application secret.
func (s *CredentialStore) ClientSecret() string { return s.clientSecret }

// Mode reports which exchange the next refresh performs.
func (s *CredentialStore) Mode() types.GrantMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.refreshToken != "" {
		return types.GrantRefreshToken
	}
	return types.GrantAuthorizationCode
}

// Apply records a successful grant. The refresh token is only replaced when the
// response carried one, and the granted scopes are added to the set.
func (s *CredentialStore) Apply(res GrantResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}

	s.accessToken = res.AccessToken
	if res.RefreshToken != "" {
		s.refreshToken = res.RefreshToken
	}
	s.expiresAt = res.ExpiresAt
	for scope := range res.Scopes {
		s.scopes[scope] = struct{}{}
	}
}

// Release wipes the tokens. The store ignores further writes.
func (s *CredentialStore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	s.scopes = make(types.ScopeSet)
}

// AccessToken returns the current bearer token.
func (s *CredentialStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *CredentialStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// ExpiresAt returns the access token's expiry.
func (s *CredentialStore) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// HasScope reports whether scope was granted.
func (s *CredentialStore) HasScope(scope types.Scope) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scopes.Has(scope)
}

// Scopes returns a copy of the granted scope set.
func (s *CredentialStore) Scopes() types.ScopeSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyScopes(s.scopes)
}

// Snapshot returns a copy of the stored credentials.
func (s *CredentialStore) Snapshot() types.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.Credentials{
		ClientID:     s.clientID,
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		ExpiresAt:    s.expiresAt,
		Scopes:       copyScopes(s.scopes),
	}
}

func copyScopes(src types.ScopeSet) types.ScopeSet {
	out := make(types.ScopeSet, len(src))
	for k := range src {
		out[k] = struct{}{}
	}
	return out
}
