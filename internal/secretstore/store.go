// Package secretstore persists opaque blobs addressed by a
// (service, account) pair, backed by a local sqlite database.
package secretstore

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when no blob is stored under the
// given (service, account) pair.
var ErrNotFound = errors.New("secret store: entry not found")

type Store interface {
	Get(service, account string) ([]byte, error)
	// Set overwrites the stored blob atomically from the caller's
	// point of view. No cross-process transactional guarantee.
	Set(service, account string, blob []byte) error
	Close() error
}

type sqliteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at the given path.
func Open(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open secret store: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS secrets (
		service TEXT NOT NULL,
		account TEXT NOT NULL,
		blob BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (service, account)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create secrets table: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Get(service, account string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(
		"SELECT blob FROM secrets WHERE service = ? AND account = ?",
		service, account,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	return blob, nil
}

func (s *sqliteStore) Set(service, account string, blob []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO secrets (service, account, blob) VALUES (?, ?, ?)
		 ON CONFLICT (service, account)
		 DO UPDATE SET blob = excluded.blob, updated_at = CURRENT_TIMESTAMP`,
		service, account, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to write secret: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }
