package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// migration is one schema version. {{ts}} expands to the dialect's
// timestamp column type.
type migration struct {
	version    int
	name       string
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create auth tables",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id            TEXT PRIMARY KEY,
				email         TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				name          TEXT NOT NULL,
				role          TEXT NOT NULL CHECK (role IN ('admin', 'musician')),
				instrument    TEXT,
				phone         TEXT,
				photo         TEXT,
				active        BOOLEAN NOT NULL DEFAULT TRUE,
				created_at    {{ts}} NOT NULL,
				updated_at    {{ts}} NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS sessions (
				id            TEXT PRIMARY KEY,
				account_id    TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				token_hash    TEXT NOT NULL UNIQUE,
				expires_at    {{ts}} NOT NULL,
				last_activity {{ts}} NOT NULL,
				created_at    {{ts}} NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_account_id ON sessions(account_id)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
			`CREATE TABLE IF NOT EXISTS password_reset_tokens (
				id         TEXT PRIMARY KEY,
				account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				token_hash TEXT NOT NULL UNIQUE,
				expires_at {{ts}} NOT NULL,
				used       BOOLEAN NOT NULL DEFAULT FALSE,
				used_at    {{ts}},
				created_at {{ts}} NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_password_reset_tokens_account_id ON password_reset_tokens(account_id)`,
		},
	},
	{
		version: 2,
		name:    "index accounts by role",
		statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_accounts_role ON accounts(role)`,
		},
	},
}

func (s *Store) timestampType() string {
	if s.driver == DriverPostgres {
		return "TIMESTAMPTZ"
	}
	// go-sqlite3 only decodes time.Time for declared TIMESTAMP/DATETIME columns
	return "TIMESTAMP"
}

// Migrate brings the schema to the latest version. Each version is applied
// in its own transaction and recorded in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at %s NOT NULL
		)`, s.timestampType())); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, 0 for a fresh
// database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := s.timestampType()
	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, strings.ReplaceAll(stmt, "{{ts}}", ts)); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)`,
		m.version, m.name, time.Now().UTC(),
	); err != nil {
		return err
	}
	return tx.Commit()
}
