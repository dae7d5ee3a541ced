// Package node defines node kinds and constructed fragment trees.
//
// A fragment is a tree built in memory (by parsing or by constructors) that
// has no persisted position. Every fragment node carries an ID that is unique
// for the lifetime of the Arena that allocated it; ids are never reused.
package node

import (
	"fmt"
	"slices"
)

// Kind identifies the kind of a tree node.
type Kind uint8

const (
	Document Kind = iota + 1
	Element
	Attribute
	Text
	Comment
	ProcessingInstruction
)

// String returns the XPath-style kind test name.
func (k Kind) String() string {
	switch k {
	case Document:
		return "document-node"
	case Element:
		return "element"
	case Attribute:
		return "attribute"
	case Text:
		return "text"
	case Comment:
		return "comment"
	case ProcessingInstruction:
		return "processing-instruction"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Named reports whether nodes of this kind carry a name.
func (k Kind) Named() bool {
	return k == Element || k == Attribute || k == ProcessingInstruction
}

// Node is a constructed fragment node.
type Node struct {
	ID       int64
	Kind     Kind
	Name     string
	Value    string
	Attrs    []*Node
	Children []*Node
	Parent   *Node
}

// IsAttribute reports whether n is an attribute node.
func (n *Node) IsAttribute() bool {
	return n != nil && n.Kind == Attribute
}

// Index returns the position of n among its parent's attributes or
// children, or -1 for a parentless node.
func (n *Node) Index() int {
	if n.Parent == nil {
		return -1
	}
	list := n.Parent.Children
	if n.Kind == Attribute {
		list = n.Parent.Attrs
	}
	for i, c := range list {
		if c == n {
			return i
		}
	}
	return -1
}

// Detach removes n from its parent. Detaching a parentless node is a no-op.
func (n *Node) Detach() {
	i := n.Index()
	if i < 0 {
		n.Parent = nil
		return
	}
	p := n.Parent
	if n.Kind == Attribute {
		p.Attrs = slices.Delete(p.Attrs, i, i+1)
	} else {
		p.Children = slices.Delete(p.Children, i, i+1)
	}
	n.Parent = nil
}

// InsertChildren inserts nodes into n's children at index i.
func (n *Node) InsertChildren(i int, nodes ...*Node) {
	for _, c := range nodes {
		c.Parent = n
	}
	n.Children = slices.Insert(n.Children, i, nodes...)
}

// InsertAttrs inserts attribute nodes into n's attributes at index i.
func (n *Node) InsertAttrs(i int, attrs ...*Node) {
	for _, a := range attrs {
		a.Parent = n
	}
	n.Attrs = slices.Insert(n.Attrs, i, attrs...)
}

// Attr returns the attribute with the given name.
func (n *Node) Attr(name string) (*Node, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Count returns the number of rows n occupies when flattened:
// itself, its attributes and all descendants.
func (n *Node) Count() int {
	c := 1 + len(n.Attrs)
	for _, ch := range n.Children {
		c += ch.Count()
	}
	return c
}

// Expand replaces every Document node in nodes by its children, recursively.
func Expand(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n.Kind == Document {
			out = append(out, Expand(n.Children)...)
			continue
		}
		out = append(out, n)
	}
	return out
}
