package doc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/treeup/internal/canon"
	"github.com/roach88/treeup/internal/node"
)

// Row is one node of the positional table.
type Row struct {
	Kind  node.Kind
	Name  string
	Value string
	Size  int
	ASize int
	Dist  int
}

// Data is a positional document table.
type Data struct {
	name string

	writer *semaphore.Weighted // one Tx at a time
	mu     sync.RWMutex        // readers vs. the open Tx

	rows    []Row
	gen     uint64
	cursors map[*Cursor]struct{}
}

// New creates a document named name holding the given top-level nodes.
// Document nodes contribute their children.
func New(name string, nodes ...*node.Node) *Data {
	var rows []Row
	for _, n := range node.Expand(nodes) {
		rows = appendRows(rows, n, len(rows)+1)
	}
	return FromRows(name, rows, 0)
}

// FromRows creates a document from an existing table.
// The rows are used as is; callers guarantee their consistency.
func FromRows(name string, rows []Row, generation uint64) *Data {
	return &Data{
		name:    name,
		writer:  semaphore.NewWeighted(1),
		rows:    rows,
		gen:     generation,
		cursors: make(map[*Cursor]struct{}),
	}
}

// Name returns the document name.
func (d *Data) Name() string {
	return d.name
}

// Generation returns the number of committed, modifying transactions.
func (d *Data) Generation() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.gen
}

// Len returns the number of rows.
func (d *Data) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rows)
}

// Row returns the row at pre.
func (d *Data) Row(pre int) (Row, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return table(d.rows).row(pre)
}

// Rows returns a copy of the table.
func (d *Data) Rows() []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Row, len(d.rows))
	copy(out, d.rows)
	return out
}

// Parent returns the parent pre of pre, or -1 for top-level rows.
func (d *Data) Parent(pre int) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return table(d.rows).parent(pre)
}

// Attributes returns the pre values of the attributes of pre.
func (d *Data) Attributes(pre int) []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return table(d.rows).attributes(pre)
}

// Children returns the pre values of the children of pre; pre == -1 lists
// the top-level rows.
func (d *Data) Children(pre int) []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return table(d.rows).children(pre)
}

// XML serializes the whole document.
func (d *Data) XML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var b strings.Builder
	t := table(d.rows)
	for _, pre := range t.children(-1) {
		t.write(&b, pre)
	}
	return b.String()
}

// NodeXML serializes the subtree at pre.
func (d *Data) NodeXML(pre int) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t := table(d.rows)
	if _, ok := t.row(pre); !ok {
		return "", fmt.Errorf("node %d out of range [0,%d)", pre, len(t))
	}
	var b strings.Builder
	t.write(&b, pre)
	return b.String(), nil
}

// Digest returns a content digest of the committed table.
func (d *Data) Digest() string {
	return canon.Digest(canon.DomainStore, []byte(d.XML()))
}

// Cursor registers a position handle at pre that subsequent edits keep
// pointing at the same node. Close it when done.
func (d *Data) Cursor(pre int) (*Cursor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := table(d.rows).row(pre); !ok {
		return nil, fmt.Errorf("cursor: node %d out of range [0,%d)", pre, len(d.rows))
	}
	c := &Cursor{data: d, pos: pre}
	d.cursors[c] = struct{}{}
	return c, nil
}

// Begin opens an exclusive edit transaction.
//
// Begin blocks until no other Tx is open on d or ctx is done. While the Tx
// is open, readers block; they resume once it commits or aborts.
func (d *Data) Begin(ctx context.Context) (*Tx, error) {
	if err := d.writer.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("begin %s: %w", d.name, err)
	}
	d.mu.Lock()
	return &Tx{data: d}, nil
}

// Cursor tracks a node position across edits.
type Cursor struct {
	data *Data
	pos  int
}

// Pos returns the current position, or -1 once the node was deleted.
func (c *Cursor) Pos() int {
	c.data.mu.RLock()
	defer c.data.mu.RUnlock()
	return c.pos
}

// Close unregisters the cursor.
func (c *Cursor) Close() {
	c.data.mu.Lock()
	delete(c.data.cursors, c)
	c.data.mu.Unlock()
}

// appendRows flattens n in pre-order; dist is n's distance to its parent.
func appendRows(rows []Row, n *node.Node, dist int) []Row {
	start := len(rows)
	rows = append(rows, Row{Kind: n.Kind, Name: n.Name, Value: n.Value, ASize: 1, Dist: dist})
	for _, a := range n.Attrs {
		rows = append(rows, Row{Kind: node.Attribute, Name: a.Name, Value: a.Value, Size: 1, ASize: 1, Dist: len(rows) - start})
	}
	rows[start].ASize = 1 + len(n.Attrs)
	for _, c := range node.Expand(n.Children) {
		rows = appendRows(rows, c, len(rows)-start)
	}
	rows[start].Size = len(rows) - start
	return rows
}
