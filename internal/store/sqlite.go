// Package store persists session credentials in a SQLite file so a process can
// resume with its last refresh token.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jamesprial/go-ruqqus/pkg/types"
)

// Store keeps one credential row per client id.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			client_id TEXT PRIMARY KEY,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			scopes TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the credentials saved for clientID, or nil if there are none.
func (s *Store) Load(ctx context.Context, clientID string) (*types.Credentials, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT client_id, access_token, refresh_token, expires_at, scopes
		FROM credentials
		WHERE client_id = ?
	`, clientID)

	var creds types.Credentials
	var expiresAt int64
	var scopes string
	err := row.Scan(&creds.ClientID, &creds.AccessToken, &creds.RefreshToken, &expiresAt, &scopes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	if expiresAt > 0 {
		creds.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	}
	creds.Scopes = types.ParseScopes(scopes)
	return &creds, nil
}

// Save stores creds. An empty refresh token keeps the one already saved.
func (s *Store) Save(ctx context.Context, creds types.Credentials) error {
	if creds.ClientID == "" {
		return fmt.Errorf("failed to save credentials: client id is empty")
	}

	var expiresAt int64
	if !creds.ExpiresAt.IsZero() {
		expiresAt = creds.ExpiresAt.Unix()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (client_id, access_token, refresh_token, expires_at, scopes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN credentials.refresh_token ELSE excluded.refresh_token END,
			expires_at = excluded.expires_at,
			scopes = excluded.scopes,
			updated_at = excluded.updated_at
	`, creds.ClientID, creds.AccessToken, creds.RefreshToken, expiresAt, creds.Scopes.String(), s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Delete removes the credentials saved for clientID.
func (s *Store) Delete(ctx context.Context, clientID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE client_id = ?`, clientID); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
