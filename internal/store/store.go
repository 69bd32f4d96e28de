package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// dsnParams configure every connection through go-sqlite3's DSN options,
// so a reconnect by database/sql gets the same settings.
//
// Imports run in one long transaction while a pipeline may be finishing a
// run in the same file; _txlock=immediate takes the write lock at BEGIN so
// the second writer waits on busy_timeout instead of failing mid-transaction.
const dsnParams = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"

// migration moves the catalog from version-1 to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations are applied in order, each in its own transaction together with
// the user_version bump. Version 0 is a catalog created from schema.sql alone.
var migrations = []migration{
	{
		version: 1,
		name:    "event search indexes",
		stmt: `
			CREATE INDEX IF NOT EXISTS idx_events_name_key ON events(run_id, name_key);
			CREATE INDEX IF NOT EXISTS idx_events_kind ON events(run_id, kind, seq);
		`,
	},
}

var currentSchemaVersion = migrations[len(migrations)-1].version

// Store is the run catalog.
//
// The catalog is written at run start and finish, and in bulk by imports.
// SQLite allows one writer, so the pool holds a single connection: writers
// queue in database/sql rather than contending for the file lock.
type Store struct {
	db *sql.DB
}

// Open creates or opens the catalog at path and brings its schema up to
// date. Opening an existing catalog again is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate creates the base tables, then applies every migration above the
// catalog's user_version. A catalog written by a newer build is refused.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("catalog schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("migration %d (%s): set user_version: %w", m.version, m.name, err)
	}
	return tx.Commit()
}
