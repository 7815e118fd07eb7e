// Package sqlitestore is a reference implementation of the credential and
// tier stores on SQLite. It is suitable for single-node deployments and
// doubles as the canonical integration fixture; larger installations
// implement the same interfaces on their own database.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/tidegate/authcore"
)

const schema = `
CREATE TABLE IF NOT EXISTS principals (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	is_active     INTEGER NOT NULL DEFAULT 0,
	is_superuser  INTEGER NOT NULL DEFAULT 0,
	tier_id       TEXT NOT NULL DEFAULT '',
	is_deleted    INTEGER NOT NULL DEFAULT 0,
	last_login    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tiers (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS rate_limit_rules (
	tier_id       TEXT NOT NULL REFERENCES tiers(id),
	path          TEXT NOT NULL,
	request_limit INTEGER NOT NULL,
	period_ms     INTEGER NOT NULL,
	PRIMARY KEY (tier_id, path)
);
`

// Store implements [authcore.CredentialStore] and [authcore.TierStore] on
// a single SQLite database.
type Store struct {
	db *sql.DB
}

var (
	_ authcore.CredentialStore = (*Store)(nil)
	_ authcore.TierStore       = (*Store)(nil)
)

// Open opens (or creates) the database at dsn and bootstraps the schema.
// Use ":memory:" for an ephemeral store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// mapConstraint translates SQLite uniqueness violations into the
// duplicate sentinels the engine matches on.
func mapConstraint(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "principals.username"):
		return authcore.ErrDuplicateUsername
	case strings.Contains(msg, "principals.email"):
		return authcore.ErrDuplicateEmail
	}
	return err
}

func mapNotFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
