package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jamesprial/go-ruqqus/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "ruqqus.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_LoadMissing(t *testing.T) {
	s := openTestStore(t)

	creds, err := s.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if creds != nil {
		t.Errorf("expected nil, got %+v", creds)
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	expires := time.Unix(1_700_000_000, 0).UTC()

	err := s.Save(ctx, types.Credentials{
		ClientID:     "client",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    expires,
		Scopes:       types.ParseScopes("read,identity"),
	})
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := s.Load(ctx, "client")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected saved credentials")
	}
	if got.AccessToken != "access" || got.RefreshToken != "refresh" {
		t.Errorf("tokens = %q/%q", got.AccessToken, got.RefreshToken)
	}
	if !got.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
	}
	if got.Scopes.String() != "identity,read" {
		t.Errorf("Scopes = %q", got.Scopes.String())
	}
}

func TestStore_SaveKeepsRefreshTokenWhenEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, types.Credentials{ClientID: "client", AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := s.Save(ctx, types.Credentials{ClientID: "client", AccessToken: "a2"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := s.Load(ctx, "client")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.AccessToken != "a2" || got.RefreshToken != "r1" {
		t.Errorf("tokens = %q/%q, want a2/r1", got.AccessToken, got.RefreshToken)
	}
	if !got.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero", got.ExpiresAt)
	}
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, types.Credentials{ClientID: "client", RefreshToken: "r"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := s.Delete(ctx, "client"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	got, err := s.Load(ctx, "client")
	if err != nil || got != nil {
		t.Errorf("Load after Delete = %+v, %v", got, err)
	}
}

func TestStore_SaveRequiresClientID(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(context.Background(), types.Credentials{RefreshToken: "r"}); err == nil {
		t.Error("expected error for empty client id")
	}
}
