// Package doc implements the array-backed positional document table.
//
// A document is a forest of rows in pre-order (document order). A node's
// pre value is its index in the table. Each row stores:
//   - Size:  rows in the node's subtree, counting itself and its attributes
//   - ASize: 1 + number of attributes (elements only; 1 otherwise)
//   - Dist:  pre - parent pre; top-level rows use pre+1 (virtual parent -1)
//
// Attributes are stored directly after their element, before its children.
//
// # Edits
//
// Insert and Delete splice rows and then repair, in O(edit + shift):
//   - the Size of every ancestor
//   - the ASize of the parent when attributes move
//   - the Dist of every node after the edit whose parent lies before it
//   - every open Cursor
//
// A structural edit at pre P only changes positions of rows at or after P.
// Callers that apply several edits process targets from the highest position
// to the lowest so earlier edits never move a not yet processed target.
//
// # Concurrency
//
// Reads take a shared lock and see committed state only. Edits happen inside
// a Tx obtained from Begin, which serializes writers (context-aware) and
// excludes readers until Commit or Abort, so a reader never observes an
// intermediate state.
package doc
