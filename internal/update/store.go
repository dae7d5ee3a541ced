package update

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/treeup/internal/doc"
	"github.com/roach88/treeup/internal/node"
)

// Store is an updatable store: a named positional document plus its binary
// resources.
type Store interface {
	// Name identifies the store within a Pending list.
	Name() string

	// Data returns the committed document. Registration and Check read it.
	Data() *doc.Data

	// Begin opens the store's exclusive edit transaction. It blocks until
	// no other statement is applying to the store or ctx is done.
	Begin(ctx context.Context) (Txn, error)
}

// Txn is an open edit transaction on a Store.
type Txn interface {
	Generation() uint64
	Len() int
	Row(pre int) (doc.Row, bool)
	Parent(pre int) int

	Insert(pre, parent int, nodes []*node.Node) (int, error)
	Delete(pre int) error
	Rename(pre int, name string) error
	SetValue(pre int, value string) error
	PutResource(path string, data []byte) error

	// Commit makes every edit visible and releases the store.
	Commit(ctx context.Context) error

	// Abort releases the store. It is a no-op after Commit.
	Abort()
}

// Journaler is implemented by transactions that persist a record of the
// statement they apply. Pending calls Journal right before Commit.
type Journaler interface {
	Journal(statementID string, summary []byte)
}

// Memory is an in-memory Store.
type Memory struct {
	data *doc.Data

	mu        sync.RWMutex
	resources map[string][]byte
}

// NewMemory creates an in-memory store holding the given top-level nodes.
func NewMemory(name string, nodes ...*node.Node) *Memory {
	return MemoryFrom(doc.New(name, nodes...))
}

// MemoryFrom wraps an existing document.
func MemoryFrom(d *doc.Data) *Memory {
	return &Memory{data: d, resources: make(map[string][]byte)}
}

// ParseMemory creates an in-memory store from XML text.
func ParseMemory(name, xml string) (*Memory, error) {
	nodes, err := node.NewArena().ParseString(xml)
	if err != nil {
		return nil, err
	}
	return NewMemory(name, nodes...), nil
}

// Name implements Store.
func (m *Memory) Name() string {
	return m.data.Name()
}

// Data implements Store.
func (m *Memory) Data() *doc.Data {
	return m.data
}

// Resource returns the committed resource stored under path.
func (m *Memory) Resource(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.resources[path]
	return b, ok
}

// Resources returns the sorted paths of all committed resources.
func (m *Memory) Resources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.resources))
}

// Begin implements Store.
func (m *Memory) Begin(ctx context.Context) (Txn, error) {
	tx, err := m.data.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &memoryTxn{Tx: tx, m: m}, nil
}

type memoryTxn struct {
	*doc.Tx
	m      *Memory
	staged map[string][]byte
}

func (t *memoryTxn) PutResource(path string, data []byte) error {
	if t.staged == nil {
		t.staged = make(map[string][]byte)
	}
	t.staged[path] = slices.Clone(data)
	return nil
}

func (t *memoryTxn) Commit(ctx context.Context) error {
	t.m.mu.Lock()
	maps.Copy(t.m.resources, t.staged)
	t.m.mu.Unlock()
	t.staged = nil
	t.Tx.Commit()
	return nil
}

// Abort releases the document. Edits already made cannot be undone, so a
// dirty transaction is published under a new generation instead.
func (t *memoryTxn) Abort() {
	t.staged = nil
	if t.Tx.Dirty() {
		t.Tx.Commit()
		return
	}
	t.Tx.Abort()
}
