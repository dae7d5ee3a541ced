package node

import (
	"sync"
	"sync/atomic"
)

// Arena allocates fragment nodes and their identities.
//
// Ids come from a monotonic counter, so a fragment id is stable for the
// arena's lifetime and never reused. One arena lives for one update
// statement.
//
// Thread-safety: Arena is safe for concurrent use.
type Arena struct {
	next  atomic.Int64
	mu    sync.RWMutex
	nodes map[int64]*Node
}

// NewArena creates an empty arena. The first allocated id is 1.
func NewArena() *Arena {
	return &Arena{nodes: make(map[int64]*Node)}
}

func (a *Arena) alloc(n *Node) *Node {
	n.ID = a.next.Add(1)
	a.mu.Lock()
	a.nodes[n.ID] = n
	a.mu.Unlock()
	return n
}

// Lookup returns the node allocated under id.
func (a *Arena) Lookup(id int64) (*Node, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n, ok := a.nodes[id]
	return n, ok
}

// Len returns the number of nodes allocated so far.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.nodes)
}

// Document creates a document node holding children.
func (a *Arena) Document(children ...*Node) *Node {
	n := a.alloc(&Node{Kind: Document})
	n.InsertChildren(0, children...)
	return n
}

// Element creates an element with attributes and children.
func (a *Arena) Element(name string, attrs []*Node, children ...*Node) *Node {
	n := a.alloc(&Node{Kind: Element, Name: name})
	n.InsertAttrs(0, attrs...)
	n.InsertChildren(0, children...)
	return n
}

// Attribute creates a parentless attribute.
func (a *Arena) Attribute(name, value string) *Node {
	return a.alloc(&Node{Kind: Attribute, Name: name, Value: value})
}

// Text creates a text node.
func (a *Arena) Text(value string) *Node {
	return a.alloc(&Node{Kind: Text, Value: value})
}

// Comment creates a comment node.
func (a *Arena) Comment(value string) *Node {
	return a.alloc(&Node{Kind: Comment, Value: value})
}

// PI creates a processing instruction.
func (a *Arena) PI(target, value string) *Node {
	return a.alloc(&Node{Kind: ProcessingInstruction, Name: target, Value: value})
}

// Copy returns a parentless deep copy of n with fresh ids.
func (a *Arena) Copy(n *Node) *Node {
	c := a.alloc(&Node{Kind: n.Kind, Name: n.Name, Value: n.Value})
	for _, attr := range n.Attrs {
		c.InsertAttrs(len(c.Attrs), a.Copy(attr))
	}
	for _, ch := range n.Children {
		c.InsertChildren(len(c.Children), a.Copy(ch))
	}
	return c
}

// CopyAll copies every node in nodes.
func (a *Arena) CopyAll(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = a.Copy(n)
	}
	return out
}
