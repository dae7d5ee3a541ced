package update

import (
	"slices"

	"github.com/roach88/treeup/internal/node"
)

// slots holds at most one primitive per kind for one target.
type slots [numKinds]*Primitive

func (s *slots) kinds() []Kind {
	var out []Kind
	for k, p := range s {
		if p != nil {
			out = append(out, Kind(k))
		}
	}
	return out
}

func (s *slots) has(kinds ...Kind) bool {
	for _, k := range kinds {
		if s[k] != nil {
			return true
		}
	}
	return false
}

// List collects the primitives of one store.
//
// A List is built single-threaded during evaluation. After Finish it
// accepts no more registrations.
type List struct {
	store Store
	arena *node.Arena
	gen   uint64

	slots map[Target]*slots
	count int

	finished bool
	checked  bool
	sorted   []Target
}

// NewList creates an empty list for store. Fragment targets are resolved
// through arena, which may be nil when only persisted targets are used.
func NewList(store Store, arena *node.Arena) *List {
	return &List{
		store: store,
		arena: arena,
		gen:   store.Data().Generation(),
		slots: make(map[Target]*slots),
	}
}

// Store returns the store the list applies to.
func (l *List) Store() Store {
	return l.store
}

// Generation returns the store generation the list was built against.
func (l *List) Generation() uint64 {
	return l.gen
}

// Len returns the number of distinct primitives after merging.
func (l *List) Len() int {
	return l.count
}

// Finished reports whether Finish was called.
func (l *List) Finished() bool {
	return l.finished
}

// Register adds p, merging it into an existing primitive of the same kind
// on the same target.
func (l *List) Register(p *Primitive) error {
	name := l.store.Name()
	if l.finished {
		return newAlreadyFinished(name, "register after finish")
	}
	if p == nil {
		return &UpdateError{Code: ErrCodeInvalidUpdate, Message: "nil primitive", Store: name}
	}
	if !p.Kind.Valid() {
		return newInvalid(name, p.Target, p.Kind, "unknown update kind")
	}
	if p.Target.IsZero() {
		return newInvalid(name, p.Target, p.Kind, "primitive has no target")
	}

	s := l.slots[p.Target]
	if s == nil {
		s = new(slots)
		l.slots[p.Target] = s
	}
	if have := s[p.Kind]; have != nil {
		if err := have.Merge(p); err != nil {
			if ue, ok := err.(*UpdateError); ok {
				ue.Store = name
			}
			return err
		}
		return nil
	}
	s[p.Kind] = NewPrimitive(p.Kind, p.Target, p.Payload)
	l.count++
	return nil
}

// Finish freezes the list and sorts its targets into apply order:
// persisted targets by descending position, then fragments by ascending
// id. Finish is idempotent.
func (l *List) Finish() {
	if l.finished {
		return
	}
	l.finished = true
	l.sorted = l.order()
}

// order returns the targets in apply order.
func (l *List) order() []Target {
	out := make([]Target, 0, len(l.slots))
	for t := range l.slots {
		out = append(out, t)
	}
	slices.SortFunc(out, compareApplyOrder)
	return out
}

// Targets returns the targets in apply order, or nil before Finish.
func (l *List) Targets() []Target {
	return slices.Clone(l.sorted)
}

// Primitives returns the primitives registered for t in apply priority.
func (l *List) Primitives(t Target) []*Primitive {
	s := l.slots[t]
	if s == nil {
		return nil
	}
	var out []*Primitive
	for _, p := range s {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Summary describes every primitive in apply order. The list stays open
// for registration.
func (l *List) Summary() []any {
	out := make([]any, 0, l.count)
	for _, t := range l.order() {
		for _, p := range l.Primitives(t) {
			out = append(out, p.Describe())
		}
	}
	return out
}
