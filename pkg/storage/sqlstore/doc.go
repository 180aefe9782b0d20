// Package sqlstore implements auth.Store on database/sql for PostgreSQL
// (lib/pq) and SQLite (mattn/go-sqlite3).
//
// Both dialects share the same queries with $N placeholders. Only the
// timestamp column type differs: TIMESTAMPTZ on PostgreSQL, TIMESTAMP on
// SQLite. All times are written and read in UTC.
//
// Usage:
//
//	store, err := sqlstore.Open(ctx, sqlstore.Config{
//		Driver: sqlstore.DriverPostgres,
//		DSN:    "postgres://cantor@localhost/cantor?sslmode=disable",
//	})
//	if err != nil {
//		return err
//	}
//	if err := store.Migrate(ctx); err != nil {
//		return err
//	}
//
// Unique violations on accounts.email surface as auth.ErrDuplicateEmail;
// lookups that match no row return auth.ErrRecordNotFound.
package sqlstore
