package doc

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/treeup/internal/node"
)

// ErrTxClosed is returned by edits on a committed or aborted Tx.
var ErrTxClosed = errors.New("transaction closed")

// Tx is an exclusive edit transaction on a Data.
//
// Tx is not safe for concurrent use; it belongs to the goroutine that
// called Begin. Reads through the Tx see its own uncommitted edits.
type Tx struct {
	data  *Data
	dirty bool
	done  bool
}

// Name returns the document name.
func (tx *Tx) Name() string {
	return tx.data.name
}

// Generation returns the generation the Tx started from.
func (tx *Tx) Generation() uint64 {
	return tx.data.gen
}

// Dirty reports whether the Tx modified the table.
func (tx *Tx) Dirty() bool {
	return tx.dirty
}

// Len returns the current number of rows.
func (tx *Tx) Len() int {
	return len(tx.data.rows)
}

// Row returns the current row at pre.
func (tx *Tx) Row(pre int) (Row, bool) {
	return table(tx.data.rows).row(pre)
}

// Parent returns the current parent of pre, or -1 for top-level rows.
func (tx *Tx) Parent(pre int) int {
	return table(tx.data.rows).parent(pre)
}

// Rows returns a copy of the current table.
func (tx *Tx) Rows() []Row {
	return slices.Clone(tx.data.rows)
}

// Insert inserts nodes at pre as children (or attributes) of parent and
// returns the number of rows added. parent == -1 inserts top-level rows.
//
// Attribute nodes must be inserted into the attribute region of an element,
// other nodes into its content region. A batch may not mix both.
func (tx *Tx) Insert(pre, parent int, nodes []*node.Node) (int, error) {
	if tx.done {
		return 0, ErrTxClosed
	}
	nodes = node.Expand(nodes)
	if len(nodes) == 0 {
		return 0, nil
	}
	t := table(tx.data.rows)
	attrs, err := checkBatch(nodes)
	if err != nil {
		return 0, err
	}
	if err := t.checkSlot(pre, parent, attrs); err != nil {
		return 0, err
	}

	var block []Row
	for _, n := range nodes {
		at := pre + len(block)
		block = appendRows(block, n, at-parent)
	}
	n := len(block)

	tx.data.rows = slices.Insert(tx.data.rows, pre, block...)
	t = table(tx.data.rows)
	for a := parent; a >= 0; a = t.parent(a) {
		t[a].Size += n
	}
	if attrs {
		t[parent].ASize += n
	}
	t.shiftDist(pre+n, parent, n)

	for c := range tx.data.cursors {
		if c.pos >= pre {
			c.pos += n
		}
	}
	tx.dirty = true
	return n, nil
}

// Delete removes the subtree at pre.
func (tx *Tx) Delete(pre int) error {
	if tx.done {
		return ErrTxClosed
	}
	t := table(tx.data.rows)
	r, ok := t.row(pre)
	if !ok {
		return fmt.Errorf("delete: node %d out of range [0,%d)", pre, len(t))
	}
	n := r.Size
	parent := t.parent(pre)

	tx.data.rows = slices.Delete(tx.data.rows, pre, pre+n)
	t = table(tx.data.rows)
	for a := parent; a >= 0; a = t.parent(a) {
		t[a].Size -= n
	}
	if r.Kind == node.Attribute {
		t[parent].ASize--
	}
	t.shiftDist(pre, parent, -n)

	for c := range tx.data.cursors {
		switch {
		case c.pos >= pre+n:
			c.pos -= n
		case c.pos >= pre:
			c.pos = -1
		}
	}
	tx.dirty = true
	return nil
}

// Rename sets the name of the element, attribute or processing
// instruction at pre.
func (tx *Tx) Rename(pre int, name string) error {
	if tx.done {
		return ErrTxClosed
	}
	r, ok := table(tx.data.rows).row(pre)
	if !ok {
		return fmt.Errorf("rename: node %d out of range [0,%d)", pre, len(tx.data.rows))
	}
	if !r.Kind.Named() {
		return fmt.Errorf("rename: %s node %d has no name", r.Kind, pre)
	}
	tx.data.rows[pre].Name = name
	tx.dirty = true
	return nil
}

// SetValue sets the value of the attribute, text, comment or processing
// instruction at pre.
func (tx *Tx) SetValue(pre int, value string) error {
	if tx.done {
		return ErrTxClosed
	}
	r, ok := table(tx.data.rows).row(pre)
	if !ok {
		return fmt.Errorf("set value: node %d out of range [0,%d)", pre, len(tx.data.rows))
	}
	if r.Kind == node.Element || r.Kind == node.Document {
		return fmt.Errorf("set value: %s node %d has no value", r.Kind, pre)
	}
	tx.data.rows[pre].Value = value
	tx.dirty = true
	return nil
}

// Reset replaces the whole table. Open cursors are invalidated.
func (tx *Tx) Reset(rows []Row) {
	tx.data.rows = slices.Clone(rows)
	for c := range tx.data.cursors {
		c.pos = -1
	}
	tx.dirty = false
}

// Commit publishes the edits and releases the document.
// The generation advances when the Tx modified the table.
func (tx *Tx) Commit() {
	if tx.done {
		return
	}
	if tx.dirty {
		tx.data.gen++
	}
	tx.release()
}

// Abort releases the document without advancing the generation.
// Edits already made stay in the table; callers that need to discard them
// Reset the table first.
func (tx *Tx) Abort() {
	if tx.done {
		return
	}
	tx.release()
}

func (tx *Tx) release() {
	tx.done = true
	tx.data.mu.Unlock()
	tx.data.writer.Release(1)
}

func checkBatch(nodes []*node.Node) (attrs bool, err error) {
	attrs = nodes[0].Kind == node.Attribute
	for _, n := range nodes[1:] {
		if (n.Kind == node.Attribute) != attrs {
			return false, fmt.Errorf("insert: batch mixes attributes and other nodes")
		}
	}
	return attrs, nil
}

// checkSlot verifies that pre is a valid insertion point under parent.
func (t table) checkSlot(pre, parent int, attrs bool) error {
	if parent < -1 || parent >= len(t) {
		return fmt.Errorf("insert: parent %d out of range [0,%d)", parent, len(t))
	}
	if parent == -1 {
		if attrs {
			return fmt.Errorf("insert: attributes need a parent element")
		}
		if pre < 0 || pre > len(t) || (pre < len(t) && t.parent(pre) != -1) {
			return fmt.Errorf("insert: %d is not a top-level slot", pre)
		}
		return nil
	}
	p := t[parent]
	if p.Kind != node.Element && p.Kind != node.Document {
		return fmt.Errorf("insert: parent %d is a %s node", parent, p.Kind)
	}
	lo, hi := t.contentStart(parent), t.end(parent)
	if attrs {
		lo, hi = parent+1, t.contentStart(parent)
	}
	if pre < lo || pre > hi {
		return fmt.Errorf("insert: %d outside [%d,%d] of parent %d", pre, lo, hi, parent)
	}
	if pre < hi && t.parent(pre) != parent {
		return fmt.Errorf("insert: %d is not a child slot of %d", pre, parent)
	}
	return nil
}

// shiftDist adds delta to the Dist of every row at or after from whose
// parent lies before the edit: the following siblings under parent, then
// the following siblings of each ancestor. Sizes must already be repaired.
func (t table) shiftDist(from, parent, delta int) {
	for {
		end := t.end(parent)
		for q := from; q < end; q += t[q].Size {
			t[q].Dist += delta
		}
		if parent < 0 {
			return
		}
		from = end
		parent = t.parent(parent)
	}
}
