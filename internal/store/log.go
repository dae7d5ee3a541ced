package store

import (
	"context"
	"database/sql"
	"fmt"
)

// LogEntry records one applied statement on one database.
type LogEntry struct {
	Seq        int64
	Statement  string
	Database   string
	Generation uint64
	Summary    string // canonical JSON of the applied primitives
}

// AppendLog appends entry to the update log and returns its sequence
// number. Statements applied through a Database are journaled by their
// commit; AppendLog is for entries recorded outside a statement.
func (s *Store) AppendLog(ctx context.Context, entry LogEntry) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append log: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := appendLog(ctx, tx, entry); err != nil {
		return 0, err
	}
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT last_insert_rowid()`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("append log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append log: commit: %w", err)
	}
	return seq, nil
}

func appendLog(ctx context.Context, tx *sql.Tx, e LogEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO update_log (statement, db, generation, summary)
		VALUES (?, ?, ?, ?)
	`, e.Statement, e.Database, e.Generation, e.Summary)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// ReadLog returns the update log of database name, or of every database
// if name is empty, ordered by sequence number.
func (s *Store) ReadLog(ctx context.Context, name string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, statement, db, generation, summary
		FROM update_log
		WHERE ? = '' OR db = ?
		ORDER BY seq ASC
	`, name, name)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Seq, &e.Statement, &e.Database, &e.Generation, &e.Summary); err != nil {
			return nil, fmt.Errorf("read log: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return out, nil
}
