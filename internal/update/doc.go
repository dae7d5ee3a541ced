// Package update implements the pending update list.
//
// An update statement never edits a store while it is being evaluated.
// Instead the evaluator registers one Primitive per planned edit; the
// primitives accumulate in a Pending list and take effect together, once,
// when the statement ends.
//
// ARCHITECTURE:
//
// Primitive: one planned edit (Kind) aimed at one node (Target) with a
// kind-specific Payload. A Target is either a persisted position in a store
// or the identity of a constructed fragment node.
//
// List: the primitives of one store, keyed by target with one slot per
// kind. A second registration for an occupied slot is merged into the first
// (insertions concatenate, deletes collapse, differing renames and repeated
// replacements conflict).
//
// Pending: one List per touched store for the lifetime of a statement, plus
// one List for fragment targets that belongs to no store. ValidateAndApply finishes and checks every List; only if all of them pass
// does it apply any.
//
// CRITICAL PATTERNS:
//
// Snapshot discipline:
// Registration reads only the pre-mutation state of a store. Nothing is
// applied before ValidateAndApply, so positions captured during evaluation
// stay valid until then. NewPending records each store's generation, and
// ValidateAndApply refuses to apply if another statement committed since.
// Payload nodes are copied at registration; later edits to a fragment do
// not reach a payload already registered.
//
// Descending apply:
// A structural edit at position P only moves rows after P. Finish sorts
// persisted targets by descending position and Apply processes them in that
// order, so no edit moves a target that is still waiting to be processed.
// Fragment targets come last; they have no positions, take no store lock
// and are applied after every store has committed.
//
// All-or-nothing across stores:
// Every store is checked before any store is touched. A conflict in one
// store leaves all stores exactly as they were.
//
// There is no rollback once Apply has started: a failure there is fatal for
// the statement and reported as APPLY_FAILURE.
package update
