package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/treeup/internal/canon"
	"github.com/roach88/treeup/internal/doc"
	"github.com/roach88/treeup/internal/node"
	"github.com/roach88/treeup/internal/update"
)

var (
	// ErrNotFound is returned for a database name that does not exist.
	ErrNotFound = errors.New("database not found")

	// ErrExists is returned when creating a database whose name is taken.
	ErrExists = errors.New("database already exists")
)

// DatabaseInfo describes a stored database.
type DatabaseInfo struct {
	Name       string
	Generation uint64
	Nodes      int
	Digest     string
}

// Database is a persisted database. It implements update.Store.
type Database struct {
	s    *Store
	data *doc.Data
}

var _ update.Store = (*Database)(nil)

// Name implements update.Store.
func (d *Database) Name() string {
	return d.data.Name()
}

// Data implements update.Store.
func (d *Database) Data() *doc.Data {
	return d.data
}

// Resource returns the resource stored under path.
func (d *Database) Resource(ctx context.Context, path string) ([]byte, error) {
	return d.s.Resource(ctx, d.Name(), path)
}

// CreateDatabase stores a new database holding the given top-level nodes.
func (s *Store) CreateDatabase(ctx context.Context, name string, nodes ...*node.Node) (*Database, error) {
	data := doc.New(name, nodes...)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create database: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO databases (name, generation, digest)
		VALUES (?, 0, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, data.Digest())
	if err != nil {
		return nil, fmt.Errorf("create database: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("create database %q: %w", name, ErrExists)
	}
	if err := writeRows(ctx, tx, name, data.Rows()); err != nil {
		return nil, fmt.Errorf("create database: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create database: commit: %w", err)
	}

	d := &Database{s: s, data: data}
	s.mu.Lock()
	s.open[name] = d
	s.mu.Unlock()
	return d, nil
}

// OpenDatabase loads a stored database. While the Store is open, every
// call for the same name returns the same *Database.
func (s *Store) OpenDatabase(ctx context.Context, name string) (*Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.open[name]; ok {
		return d, nil
	}

	var gen uint64
	err := s.db.QueryRowContext(ctx, `SELECT generation FROM databases WHERE name = ?`, name).Scan(&gen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open database %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, name, value, size, asize, dist
		FROM nodes
		WHERE db = ?
		ORDER BY pre ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", name, err)
	}
	defer rows.Close()

	var table []doc.Row
	for rows.Next() {
		var r doc.Row
		if err := rows.Scan(&r.Kind, &r.Name, &r.Value, &r.Size, &r.ASize, &r.Dist); err != nil {
			return nil, fmt.Errorf("open database %q: scan: %w", name, err)
		}
		table = append(table, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("open database %q: %w", name, err)
	}

	d := &Database{s: s, data: doc.FromRows(name, table, gen)}
	s.open[name] = d
	return d, nil
}

// ListDatabases returns every stored database ordered by name.
func (s *Store) ListDatabases(ctx context.Context) ([]DatabaseInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.name, d.generation, d.digest,
		       (SELECT COUNT(*) FROM nodes n WHERE n.db = d.name)
		FROM databases d
		ORDER BY d.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	defer rows.Close()

	var out []DatabaseInfo
	for rows.Next() {
		var info DatabaseInfo
		if err := rows.Scan(&info.Name, &info.Generation, &info.Digest, &info.Nodes); err != nil {
			return nil, fmt.Errorf("list databases: scan: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DropDatabase deletes a database with its nodes and resources.
// Its update log entries are kept.
func (s *Store) DropDatabase(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM databases WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("drop database %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("drop database %q: %w", name, ErrNotFound)
	}
	s.mu.Lock()
	delete(s.open, name)
	s.mu.Unlock()
	return nil
}

// Resource returns the resource stored under path in database name.
func (s *Store) Resource(ctx context.Context, name, path string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM resources WHERE db = ? AND path = ?
	`, name, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resource %q in %q: %w", path, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resource %q in %q: %w", path, name, err)
	}
	return data, nil
}

// Resources returns the resource paths of database name in binary order.
func (s *Store) Resources(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path FROM resources WHERE db = ? ORDER BY path ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("resources of %q: %w", name, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("resources of %q: scan: %w", name, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Begin implements update.Store. The committed table is saved so that an
// aborted or failed transaction can be undone.
func (d *Database) Begin(ctx context.Context) (update.Txn, error) {
	tx, err := d.data.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &dbTxn{Tx: tx, d: d, saved: tx.Rows()}, nil
}

type dbTxn struct {
	*doc.Tx
	d     *Database
	saved []doc.Row

	resources map[string][]byte
	journal   *LogEntry
}

func (t *dbTxn) PutResource(path string, data []byte) error {
	if t.resources == nil {
		t.resources = make(map[string][]byte)
	}
	t.resources[path] = slices.Clone(data)
	return nil
}

func (t *dbTxn) Journal(statementID string, summary []byte) {
	t.journal = &LogEntry{Statement: statementID, Database: t.Name(), Summary: string(summary)}
}

// Commit flushes the table, resources and journal entry in one SQL
// transaction and then publishes the in-memory edits.
func (t *dbTxn) Commit(ctx context.Context) error {
	gen := t.Generation()
	if t.Dirty() {
		gen++
	}
	if t.journal != nil {
		t.journal.Generation = gen
	}
	if err := t.d.s.flush(ctx, t.Name(), gen, t.Dirty(), t.Rows(), t.resources, t.journal); err != nil {
		t.Reset(t.saved)
		t.Tx.Abort()
		return &update.UpdateError{
			Code:    update.ErrCodeApplyFailure,
			Message: "cannot persist database",
			Store:   t.Name(),
			Err:     err,
		}
	}
	t.Tx.Commit()
	return nil
}

// Abort undoes the edits made so far and releases the database.
func (t *dbTxn) Abort() {
	if t.Dirty() {
		t.Reset(t.saved)
	}
	t.resources = nil
	t.Tx.Abort()
}

func (s *Store) flush(ctx context.Context, name string, gen uint64, dirty bool, rows []doc.Row, resources map[string][]byte, entry *LogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("flush %q: begin tx: %w", name, err)
	}
	defer tx.Rollback() // No-op if committed

	if dirty {
		digest := canon.Digest(canon.DomainStore, []byte(doc.FromRows(name, rows, gen).XML()))
		if _, err := tx.ExecContext(ctx, `
			UPDATE databases SET generation = ?, digest = ? WHERE name = ?
		`, gen, digest, name); err != nil {
			return fmt.Errorf("flush %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE db = ?`, name); err != nil {
			return fmt.Errorf("flush %q: %w", name, err)
		}
		if err := writeRows(ctx, tx, name, rows); err != nil {
			return fmt.Errorf("flush %q: %w", name, err)
		}
	}

	for _, path := range slices.Sorted(maps.Keys(resources)) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resources (db, path, data)
			VALUES (?, ?, ?)
			ON CONFLICT(db, path) DO UPDATE SET data = excluded.data
		`, name, path, resources[path]); err != nil {
			return fmt.Errorf("flush %q: resource %q: %w", name, path, err)
		}
	}

	if entry != nil {
		if err := appendLog(ctx, tx, *entry); err != nil {
			return fmt.Errorf("flush %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("flush %q: commit: %w", name, err)
	}
	return nil
}

func writeRows(ctx context.Context, tx *sql.Tx, name string, rows []doc.Row) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (db, pre, kind, name, value, size, asize, dist)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	defer stmt.Close()

	for pre, r := range rows {
		if _, err := stmt.ExecContext(ctx, name, pre, int(r.Kind), r.Name, r.Value, r.Size, r.ASize, r.Dist); err != nil {
			return fmt.Errorf("write rows: node %d: %w", pre, err)
		}
	}
	return nil
}
