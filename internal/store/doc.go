// Package store provides SQLite-backed persisted databases.
//
// A database is a named positional document plus its binary resources.
// The store keeps:
//   - databases: name, generation and content digest
//   - nodes: the positional table, one row per node in pre-order
//   - resources: binary resources by path
//   - update_log: one entry per applied statement and database
//
// # Critical Patterns
//
// One table in memory per database:
//   - OpenDatabase returns the same *Database for a name while the Store
//     is open, so every statement on it shares one writer lock
//
// Flush on commit:
//   - A statement edits the in-memory table; Commit rewrites the node
//     rows, staged resources, generation and log entry in one SQL
//     transaction
//   - If the flush fails the in-memory table is restored and the
//     statement fails with APPLY_FAILURE
//
// Deterministic reads:
//   - Node rows are read ORDER BY pre ASC, log entries ORDER BY seq ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
