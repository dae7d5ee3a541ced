package update

import (
	"cmp"
	"fmt"
)

// AddressKind discriminates the two variants of a Target.
type AddressKind uint8

const (
	// AddrPersisted addresses a row by its pre-mutation position.
	AddrPersisted AddressKind = iota + 1
	// AddrFragment addresses a constructed node by its arena id.
	AddrFragment
)

// Target is a node address: Persisted(position) or Fragment(id).
//
// Targets are comparable; two are equal iff they have the same variant
// and value. The zero Target addresses nothing.
type Target struct {
	kind  AddressKind
	value int64
}

// Persisted addresses the node at pre in a store's pre-mutation state.
func Persisted(pre int) Target {
	return Target{kind: AddrPersisted, value: int64(pre)}
}

// Fragment addresses the constructed node with the given arena id.
func Fragment(id int64) Target {
	return Target{kind: AddrFragment, value: id}
}

// Kind returns the variant, or 0 for the zero Target.
func (t Target) Kind() AddressKind {
	return t.kind
}

// Pre returns the position of a persisted target.
func (t Target) Pre() (int, bool) {
	return int(t.value), t.kind == AddrPersisted
}

// FragmentID returns the id of a fragment target.
func (t Target) FragmentID() (int64, bool) {
	return t.value, t.kind == AddrFragment
}

// IsZero reports whether t addresses nothing.
func (t Target) IsZero() bool {
	return t.kind == 0
}

func (t Target) String() string {
	switch t.kind {
	case AddrPersisted:
		return fmt.Sprintf("pre:%d", t.value)
	case AddrFragment:
		return fmt.Sprintf("fragment:%d", t.value)
	default:
		return "none"
	}
}

// compareApplyOrder orders persisted targets by descending position,
// followed by fragment targets by ascending id.
func compareApplyOrder(a, b Target) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	if a.kind == AddrPersisted {
		return cmp.Compare(b.value, a.value)
	}
	return cmp.Compare(a.value, b.value)
}
