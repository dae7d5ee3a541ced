package update

import (
	"github.com/roach88/treeup/internal/node"
)

// Apply performs every primitive of a checked list against tx.
//
// Persisted targets are processed in descending position, so an edit never
// shifts a target that is still waiting. Within one target the kinds run in
// priority order. Fragment targets are processed last. Apply does not roll
// back: on error the edits made so far stay in tx.
func (l *List) Apply(tx Txn) error {
	if !l.checked {
		return newApplyFailure(l.store.Name(), Target{}, nil, "apply before a successful check")
	}
	return l.execute(tx, l.sorted)
}

func (l *List) execute(tx Txn, order []Target) error {
	for _, t := range order {
		s := l.slots[t]
		var err error
		switch t.Kind() {
		case AddrPersisted:
			pre, _ := t.Pre()
			err = l.applyPersisted(tx, t, pre, s)
		case AddrFragment:
			err = l.applyFragment(t, s)
		}
		if err != nil {
			return err
		}
		for _, k := range s.kinds() {
			primitivesApplied.WithLabelValues(k.String()).Inc()
		}
	}
	return nil
}

// applyPersisted applies the primitives of one persisted node.
//
// pos tracks the node (or where it was) and after the slot right behind
// its subtree, both adjusted for the edits made here.
func (l *List) applyPersisted(tx Txn, t Target, pre int, s *slots) error {
	name := l.store.Name()
	fail := func(err error, k Kind) error {
		ue := newApplyFailure(name, t, err, "%s failed", k)
		ue.Kinds = []Kind{k}
		return ue
	}

	if p := s[StoreBinary]; p != nil {
		for _, r := range p.Payload.Resources {
			if err := tx.PutResource(r.Path, r.Data); err != nil {
				return fail(err, StoreBinary)
			}
		}
		if len(s.kinds()) == 1 {
			return nil
		}
	}

	row, ok := tx.Row(pre)
	if !ok {
		return newApplyFailure(name, t, nil, "position %d out of range [0,%d)", pre, tx.Len())
	}
	parent := tx.Parent(pre)
	pos, after := pre, pre+row.Size

	for k := range StoreBinary {
		p := s[k]
		if p == nil {
			continue
		}
		var err error
		switch k {
		case Delete:
			err = tx.Delete(pos)
			after = pos
		case ReplaceNode:
			var n int
			if n, err = tx.Insert(pos, parent, p.Payload.Nodes); err == nil {
				err = tx.Delete(pos + n)
				after = pos + n
			}
		case Rename:
			err = tx.Rename(pos, p.Payload.Name)
		case InsertBefore:
			var n int
			n, err = tx.Insert(pos, parent, p.Payload.Nodes)
			pos += n
			after += n
		case InsertAfter:
			_, err = tx.Insert(after, parent, p.Payload.Nodes)
		case InsertFirst, InsertAttributes:
			r, _ := tx.Row(pos)
			_, err = tx.Insert(pos+r.ASize, pos, p.Payload.Nodes)
		case InsertLast:
			r, _ := tx.Row(pos)
			_, err = tx.Insert(pos+r.Size, pos, p.Payload.Nodes)
		case ReplaceValue:
			err = tx.SetValue(pos, p.Payload.Value)
		case ReplaceElementContent:
			err = replaceContent(tx, pos, p.Payload.Value)
		}
		if err != nil {
			return fail(err, k)
		}
	}
	return nil
}

func replaceContent(tx Txn, pos int, value string) error {
	r, _ := tx.Row(pos)
	for r.Size > r.ASize {
		if err := tx.Delete(pos + r.ASize); err != nil {
			return err
		}
		r, _ = tx.Row(pos)
	}
	if value == "" {
		return nil
	}
	_, err := tx.Insert(pos+r.ASize, pos, []*node.Node{{Kind: node.Text, Value: value}})
	return err
}

// applyFragment applies the primitives of one constructed node. Payload
// nodes are copied so that a payload never ends up in two places.
func (l *List) applyFragment(t Target, s *slots) error {
	id, _ := t.FragmentID()
	n, ok := l.arena.Lookup(id)
	if !ok {
		return newApplyFailure(l.store.Name(), t, nil, "unknown fragment %d", id)
	}

	parent := n.Parent
	idx := n.Index()
	next := idx + 1
	insert := func(i int, nodes []*node.Node) int {
		c := l.arena.CopyAll(node.Expand(nodes))
		if len(c) > 0 && c[0].Kind == node.Attribute {
			parent.InsertAttrs(i, c...)
		} else {
			parent.InsertChildren(i, c...)
		}
		return len(c)
	}

	for k := range StoreBinary {
		p := s[k]
		if p == nil {
			continue
		}
		switch k {
		case Delete:
			n.Detach()
			next = idx
		case ReplaceNode:
			n.Detach()
			next = idx + insert(idx, p.Payload.Nodes)
		case Rename:
			n.Name = p.Payload.Name
		case InsertBefore:
			c := insert(idx, p.Payload.Nodes)
			idx += c
			next += c
		case InsertAfter:
			insert(next, p.Payload.Nodes)
		case InsertFirst:
			n.InsertChildren(0, l.arena.CopyAll(node.Expand(p.Payload.Nodes))...)
		case InsertLast:
			n.InsertChildren(len(n.Children), l.arena.CopyAll(node.Expand(p.Payload.Nodes))...)
		case InsertAttributes:
			n.InsertAttrs(len(n.Attrs), l.arena.CopyAll(node.Expand(p.Payload.Nodes))...)
		case ReplaceValue:
			n.Value = p.Payload.Value
		case ReplaceElementContent:
			for _, c := range n.Children {
				c.Parent = nil
			}
			n.Children = nil
			if p.Payload.Value != "" {
				n.InsertChildren(0, l.arena.Text(p.Payload.Value))
			}
		}
	}
	return nil
}
