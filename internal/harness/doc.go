// Package harness runs update scenarios and compares their outcome.
//
// A scenario seeds in-memory stores from XML, executes one update
// statement against them and checks the result: the final document of each
// store, the error code when the statement must fail, and optional
// assertions on selections, resources and the applied primitives.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: reorder_books
//	description: "Delete, insert and replace in one statement"
//	stores:
//	  lib: <lib><book id="1"/><book id="2"/></lib>
//	statement:
//	  updates:
//	    - op: delete
//	      store: lib
//	      path: /lib/book[1]
//	expect:
//	  stores:
//	    lib: <lib><book id="2"/></lib>
//	assertions:
//	  - type: select_count
//	    store: lib
//	    path: /lib/book
//	    count: 1
//
// A failing scenario names the error code instead; its stores must stay
// unchanged:
//
//	expect:
//	  error: CONFLICTING_UPDATE
//
// # Determinism
//
// Statement ids come from a sequence seeded with the scenario name
// ("reorder_books-001"), so summaries are byte-identical across runs and
// can be compared with golden files (see RunWithGolden).
package harness
