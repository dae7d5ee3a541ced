package update

import (
	"fmt"
	"slices"

	"github.com/roach88/treeup/internal/node"
)

// conflictMatrix[a][b] holds the reason kinds a and b may not share a
// target, or "" if they may.
var conflictMatrix = func() (m [numKinds][numKinds]string) {
	rules := []struct {
		kind   Kind
		with   []Kind
		reason string
	}{
		{Delete, []Kind{ReplaceNode, Rename, InsertFirst, InsertLast, InsertAttributes, ReplaceValue, ReplaceElementContent},
			"node is deleted and also modified"},
		{ReplaceNode, []Kind{Rename, InsertFirst, InsertLast, InsertAttributes, ReplaceValue, ReplaceElementContent},
			"node is replaced and also modified"},
		{ReplaceValue, []Kind{ReplaceElementContent},
			"value replaced twice"},
		{ReplaceElementContent, []Kind{InsertFirst, InsertLast},
			"element content is replaced and also extended"},
	}
	for _, r := range rules {
		for _, w := range r.with {
			m[r.kind][w] = r.reason
			m[w][r.kind] = r.reason
		}
	}
	return m
}()

// nodeInfo is what Check needs to know about a resolved target.
type nodeInfo struct {
	kind   node.Kind
	parent Target // zero for parentless fragments and top-level rows
	orphan bool   // parentless fragment
}

// attr is an existing attribute of an element.
type attr struct {
	target Target
	name   string
}

// Check validates the finished list against the store snapshot.
//
// Check reports the first problem it finds, visiting targets in apply order:
// unresolvable targets (ADDRESS_RESOLUTION), primitives that do not fit
// their target or payload (INVALID_UPDATE), incompatible kinds on one node
// and duplicate attribute names on one element (CONFLICTING_UPDATE).
// Check calls Finish if needed.
func (l *List) Check() error {
	l.Finish()
	l.checked = false

	infos := make(map[Target]nodeInfo, len(l.sorted))
	for _, t := range l.sorted {
		s := l.slots[t]
		info, err := l.resolve(t, s)
		if err != nil {
			return err
		}
		infos[t] = info
		if err := l.checkKinds(t, s); err != nil {
			return err
		}
		if err := l.checkTyping(t, info, s); err != nil {
			return err
		}
	}
	if err := l.checkAttributeNames(infos); err != nil {
		return err
	}
	l.checked = true
	return nil
}

func (l *List) resolve(t Target, s *slots) (nodeInfo, error) {
	name := l.store.Name()
	switch t.Kind() {
	case AddrPersisted:
		pre, _ := t.Pre()
		d := l.store.Data()
		r, ok := d.Row(pre)
		if !ok {
			if kinds := s.kinds(); len(kinds) == 1 && kinds[0] == StoreBinary {
				// Resources need no node; an empty store can hold them.
				return nodeInfo{kind: node.Document}, nil
			}
			return nodeInfo{}, newUnresolved(name, t, "position %d out of range [0,%d)", pre, d.Len())
		}
		info := nodeInfo{kind: r.Kind}
		if p := d.Parent(pre); p >= 0 {
			info.parent = Persisted(p)
		}
		return info, nil
	case AddrFragment:
		id, _ := t.FragmentID()
		if l.arena == nil {
			return nodeInfo{}, newUnresolved(name, t, "no fragment arena")
		}
		n, ok := l.arena.Lookup(id)
		if !ok {
			return nodeInfo{}, newUnresolved(name, t, "unknown fragment %d", id)
		}
		info := nodeInfo{kind: n.Kind, orphan: n.Parent == nil}
		if n.Parent != nil {
			info.parent = Fragment(n.Parent.ID)
		}
		return info, nil
	default:
		return nodeInfo{}, newUnresolved(name, t, "invalid target")
	}
}

func (l *List) checkKinds(t Target, s *slots) error {
	kinds := s.kinds()
	for i, a := range kinds {
		for _, b := range kinds[i+1:] {
			if reason := conflictMatrix[a][b]; reason != "" {
				return newConflict(l.store.Name(), t, reason, a, b)
			}
		}
	}
	return nil
}

func (l *List) checkTyping(t Target, info nodeInfo, s *slots) error {
	name := l.store.Name()
	for _, k := range s.kinds() {
		p := s[k]
		nodes := node.Expand(p.Payload.Nodes)
		switch k {
		case InsertBefore, InsertAfter:
			if info.kind == node.Attribute {
				return newInvalid(name, t, k, "cannot insert siblings of an attribute")
			}
			if info.orphan {
				return newInvalid(name, t, k, "target has no parent")
			}
			if countAttrs(nodes) > 0 {
				return newInvalid(name, t, k, "attributes must be inserted with %s", InsertAttributes)
			}
		case InsertFirst, InsertLast:
			if info.kind != node.Element && info.kind != node.Document {
				return newInvalid(name, t, k, "target is a %s node", info.kind)
			}
			if countAttrs(nodes) > 0 {
				return newInvalid(name, t, k, "attributes must be inserted with %s", InsertAttributes)
			}
		case InsertAttributes:
			if info.kind != node.Element {
				return newInvalid(name, t, k, "target is a %s node", info.kind)
			}
			if countAttrs(nodes) != len(nodes) {
				return newInvalid(name, t, k, "payload contains non-attribute nodes")
			}
		case ReplaceNode:
			if info.orphan {
				return newInvalid(name, t, k, "target has no parent")
			}
			want := 0
			if info.kind == node.Attribute {
				want = len(nodes)
			}
			if countAttrs(nodes) != want {
				return newInvalid(name, t, k, "%s node cannot be replaced by this payload", info.kind)
			}
		case Rename:
			if !info.kind.Named() {
				return newInvalid(name, t, k, "%s node has no name", info.kind)
			}
			if p.Payload.Name == "" {
				return newInvalid(name, t, k, "empty name")
			}
		case ReplaceValue:
			if info.kind == node.Element || info.kind == node.Document {
				return newInvalid(name, t, k, "%s node has no value", info.kind)
			}
		case ReplaceElementContent:
			if info.kind != node.Element {
				return newInvalid(name, t, k, "target is a %s node", info.kind)
			}
		case StoreBinary:
			if t.Kind() != AddrPersisted {
				return newInvalid(name, t, k, "resources belong to a store, not a fragment")
			}
			for _, r := range p.Payload.Resources {
				if r.Path == "" {
					return newInvalid(name, t, k, "empty resource path")
				}
			}
		}
	}
	return nil
}

func countAttrs(nodes []*node.Node) int {
	n := 0
	for _, c := range nodes {
		if c.Kind == node.Attribute {
			n++
		}
	}
	return n
}

// existing marks an attribute name that no primitive touched.
const existing = numKinds

// checkAttributeNames verifies that no element ends up with two attributes
// of the same name.
func (l *List) checkAttributeNames(infos map[Target]nodeInfo) error {
	affected := make(map[Target]bool)
	for _, t := range l.sorted {
		s := l.slots[t]
		info := infos[t]
		if s.has(InsertAttributes) {
			affected[t] = true
		}
		if info.kind == node.Attribute && s.has(Rename, ReplaceNode) && !info.parent.IsZero() {
			affected[info.parent] = true
		}
	}
	elems := make([]Target, 0, len(affected))
	for t := range affected {
		elems = append(elems, t)
	}
	slices.SortFunc(elems, compareApplyOrder)

	for _, e := range elems {
		if es := l.slots[e]; es != nil && es.has(Delete, ReplaceNode) {
			continue
		}
		seen := make(map[string]Kind)
		add := func(name string, k Kind) error {
			prev, dup := seen[name]
			if !dup {
				seen[name] = k
				return nil
			}
			var kinds []Kind
			for _, x := range []Kind{prev, k} {
				if x != existing {
					kinds = append(kinds, x)
				}
			}
			return newConflict(l.store.Name(), e, fmt.Sprintf("duplicate attribute %q", name), kinds...)
		}

		for _, a := range l.attributesOf(e) {
			as := l.slots[a.target]
			switch {
			case as == nil:
				if err := add(a.name, existing); err != nil {
					return err
				}
			case as.has(Delete):
			case as.has(ReplaceNode):
				for _, n := range node.Expand(as[ReplaceNode].Payload.Nodes) {
					if err := add(n.Name, ReplaceNode); err != nil {
						return err
					}
				}
			case as.has(Rename):
				if err := add(as[Rename].Payload.Name, Rename); err != nil {
					return err
				}
			default:
				if err := add(a.name, existing); err != nil {
					return err
				}
			}
		}
		if es := l.slots[e]; es != nil && es.has(InsertAttributes) {
			for _, n := range node.Expand(es[InsertAttributes].Payload.Nodes) {
				if err := add(n.Name, InsertAttributes); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (l *List) attributesOf(e Target) []attr {
	var out []attr
	switch e.Kind() {
	case AddrPersisted:
		pre, _ := e.Pre()
		d := l.store.Data()
		for _, a := range d.Attributes(pre) {
			r, _ := d.Row(a)
			out = append(out, attr{target: Persisted(a), name: r.Name})
		}
	case AddrFragment:
		id, _ := e.FragmentID()
		if n, ok := l.arena.Lookup(id); ok {
			for _, a := range n.Attrs {
				out = append(out, attr{target: Fragment(a.ID), name: a.Name})
			}
		}
	}
	return out
}
