package internal

import (
	"errors"
	"testing"
	"time"

	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

func TestCredentialStore_Mode(t *testing.T) {
	if got := NewCredentialStore("id", "secret", "").Mode(); got != types.GrantAuthorizationCode {
		t.Errorf("Mode() = %v, want code", got)
	}
	if got := NewCredentialStore("id", "secret", "refresh").Mode(); got != types.GrantRefreshToken {
		t.Errorf("Mode() = %v, want refresh", got)
	}
}

func TestCredentialStore_ApplyAccumulatesScopes(t *testing.T) {
	store := NewCredentialStore("id", "secret", "")
	expires := time.Unix(1_700_000_000, 0)

	store.Apply(GrantResult{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: expires, Scopes: types.ParseScopes("read")})
	store.Apply(GrantResult{AccessToken: "a2", ExpiresAt: expires.Add(time.Hour), Scopes: types.ParseScopes("vote")})

	if store.AccessToken() != "a2" || store.RefreshToken() != "r1" {
		t.Errorf("tokens = %q/%q, want a2/r1", store.AccessToken(), store.RefreshToken())
	}
	if !store.ExpiresAt().Equal(expires.Add(time.Hour)) {
		t.Errorf("ExpiresAt() = %v", store.ExpiresAt())
	}
	if !store.HasScope(types.ScopeRead) || !store.HasScope(types.ScopeVote) {
		t.Errorf("scopes = %v, want read and vote", store.Scopes())
	}
	if store.Mode() != types.GrantRefreshToken {
		t.Error("a stored refresh token should switch to refresh mode")
	}
}

func TestCredentialStore_ScopesIsACopy(t *testing.T) {
	store := NewCredentialStore("id", "secret", "")
	store.Apply(GrantResult{AccessToken: "a", Scopes: types.ParseScopes("read")})

	scopes := store.Scopes()
	scopes[types.ScopeDelete] = struct{}{}

	if store.HasScope(types.ScopeDelete) {
		t.Error("mutating the returned set changed the store")
	}
}

func TestCredentialStore_Release(t *testing.T) {
	store := NewCredentialStore("id", "secret", "refresh")
	store.Apply(GrantResult{AccessToken: "a", Scopes: types.ParseScopes("read")})

	store.Release()
	store.Apply(GrantResult{AccessToken: "late", Scopes: types.ParseScopes("vote")})

	snap := store.Snapshot()
	if snap.AccessToken != "" || snap.RefreshToken != "" || len(snap.Scopes) != 0 {
		t.Errorf("released store still holds %+v", snap)
	}
	if snap.ClientID != "id" {
		t.Errorf("ClientID = %q, want id", snap.ClientID)
	}
}

func TestGate_Allow(t *testing.T) {
	store := NewCredentialStore("id", "secret", "")
	store.Apply(GrantResult{AccessToken: "a", Scopes: types.ParseScopes("read,vote")})
	gate := NewGate(store)

	if err := gate.Allow(types.ScopeRead); err != nil {
		t.Errorf("Allow(read) = %v, want nil", err)
	}

	err := gate.Allow(types.ScopeDelete)
	var scopeErr *pkgerrs.ScopeError
	if !errors.As(err, &scopeErr) {
		t.Fatalf("expected ScopeError, got %T", err)
	}
	if scopeErr.Scope != "delete" || scopeErr.StatusCode != 401 {
		t.Errorf("unexpected scope error %+v", scopeErr)
	}
	if !errors.Is(err, pkgerrs.ErrUnauthorized) {
		t.Error("scope errors should match ErrUnauthorized")
	}
}

func TestConnectionManager_Lifecycle(t *testing.T) {
	cm := NewConnectionManager()
	at := time.Unix(1_700_000_000, 0)

	if cm.Online() || !cm.StartedAt().IsZero() {
		t.Fatal("new manager should be offline")
	}
	if !cm.MarkOnline(at) {
		t.Fatal("first MarkOnline should succeed")
	}
	if cm.MarkOnline(at.Add(time.Minute)) {
		t.Error("second MarkOnline should report already online")
	}
	if !cm.StartedAt().Equal(at) {
		t.Errorf("StartedAt() = %v, want %v", cm.StartedAt(), at)
	}

	if !cm.Close() {
		t.Fatal("first Close should return true")
	}
	if cm.Close() {
		t.Error("second Close should return false")
	}
	select {
	case <-cm.Done():
	default:
		t.Error("Done should be closed")
	}
	if !cm.Closed() {
		t.Error("Closed() should be true")
	}
}
