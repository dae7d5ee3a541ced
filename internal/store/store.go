package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a database whose user_version is below version.
type migration struct {
	version int
	stmt    string
}

// migrations run in version order; schemaSQL is version 0.
var migrations = []migration{
	{1, `CREATE INDEX IF NOT EXISTS idx_update_log_db ON update_log(db, seq)`},
}

var currentSchemaVersion = migrations[len(migrations)-1].version

// connParams are go-sqlite3 DSN parameters applied to every connection:
// WAL journal, NORMAL sync, 5s busy timeout, foreign keys.
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"on"},
}

// Store is a SQLite file holding any number of named XML databases and
// their update log.
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	open map[string]*Database
}

// Open opens the SQLite file at path, creating it if needed, and brings its
// schema up to date. Opening the same file again is harmless.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer, and Database handles
	// already serialize their commits.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, open: make(map[string]*Database)}, nil
}

// Close closes the file. Databases opened from the store must not be used
// afterwards.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate creates missing tables, then applies every migration newer than
// the file's user_version, each in its own transaction.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("set user_version %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
	}
	return nil
}

// verifyPragma reports whether pragma name currently reads as want.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("%s = %q, want %q", name, got, want)
	}
	return nil
}
