package update

import "fmt"

// Kind is the operation kind of a Primitive.
//
// The ordinal order is the per-node apply priority.
type Kind uint8

const (
	Delete Kind = iota
	ReplaceNode
	Rename
	InsertBefore
	InsertAfter
	InsertFirst
	InsertLast
	InsertAttributes
	ReplaceValue
	ReplaceElementContent
	StoreBinary

	numKinds
)

var kindNames = [numKinds]string{
	Delete:                "delete",
	ReplaceNode:           "replace-node",
	Rename:                "rename",
	InsertBefore:          "insert-before",
	InsertAfter:           "insert-after",
	InsertFirst:           "insert-as-first-child",
	InsertLast:            "insert-as-last-child",
	InsertAttributes:      "insert-attributes",
	ReplaceValue:          "replace-value",
	ReplaceElementContent: "replace-element-content",
	StoreBinary:           "store-binary-resource",
}

// String returns the catalog name of k.
func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is part of the catalog.
func (k Kind) Valid() bool {
	return k < numKinds
}

// ParseKind returns the kind with the given catalog name.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown update kind %q", name)
}

// Kinds returns the catalog in apply priority order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// inserts reports whether k carries nodes that end up in the tree.
func (k Kind) inserts() bool {
	switch k {
	case InsertBefore, InsertAfter, InsertFirst, InsertLast, InsertAttributes:
		return true
	}
	return false
}
