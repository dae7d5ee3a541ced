package update

import (
	"fmt"
	"slices"

	"github.com/roach88/treeup/internal/node"
)

// Resource is a binary resource stored alongside a store's tree.
type Resource struct {
	Path string
	Data []byte
}

// Payload carries the kind-specific arguments of a Primitive.
type Payload struct {
	// Nodes to insert or to replace the target with, in order.
	Nodes []*node.Node

	// Name is the new name for Rename.
	Name string

	// Value is the new value for ReplaceValue and ReplaceElementContent.
	Value string

	// Resources to store for StoreBinary.
	Resources []Resource
}

// Primitive is one planned edit of one node.
type Primitive struct {
	Kind    Kind
	Target  Target
	Payload Payload
}

// NewPrimitive constructs a primitive. The payload slices are copied.
func NewPrimitive(kind Kind, target Target, payload Payload) *Primitive {
	payload.Nodes = slices.Clone(payload.Nodes)
	payload.Resources = slices.Clone(payload.Resources)
	return &Primitive{Kind: kind, Target: target, Payload: payload}
}

// NewDelete plans the deletion of target.
func NewDelete(target Target) *Primitive {
	return NewPrimitive(Delete, target, Payload{})
}

// NewRename plans renaming target to name.
func NewRename(target Target, name string) *Primitive {
	return NewPrimitive(Rename, target, Payload{Name: name})
}

// NewInsert plans an insertion of nodes relative to target.
// kind must be one of the insertion kinds.
func NewInsert(kind Kind, target Target, nodes ...*node.Node) *Primitive {
	return NewPrimitive(kind, target, Payload{Nodes: nodes})
}

// NewReplaceNode plans replacing target with nodes (none deletes it).
func NewReplaceNode(target Target, nodes ...*node.Node) *Primitive {
	return NewPrimitive(ReplaceNode, target, Payload{Nodes: nodes})
}

// NewReplaceValue plans setting the value of an attribute, text, comment or
// processing instruction.
func NewReplaceValue(target Target, value string) *Primitive {
	return NewPrimitive(ReplaceValue, target, Payload{Value: value})
}

// NewReplaceElementContent plans replacing an element's children with a
// single text node holding value (no children if value is empty).
func NewReplaceElementContent(target Target, value string) *Primitive {
	return NewPrimitive(ReplaceElementContent, target, Payload{Value: value})
}

// NewStoreBinary plans storing data under path in the target's store.
func NewStoreBinary(target Target, path string, data []byte) *Primitive {
	return NewPrimitive(StoreBinary, target, Payload{Resources: []Resource{{Path: path, Data: data}}})
}

// Merge folds other into p. Both must share target and kind.
//
// Insertion payloads concatenate in merge order, deletes collapse, an
// identical rename is a no-op. A differing rename, a second replacement or
// the same resource path stored twice is a conflict.
func (p *Primitive) Merge(other *Primitive) error {
	if other.Kind != p.Kind || other.Target != p.Target {
		return &UpdateError{
			Code:    ErrCodeInvalidUpdate,
			Message: fmt.Sprintf("cannot merge %s on %s into %s on %s", other.Kind, other.Target, p.Kind, p.Target),
			Target:  p.Target,
			Kinds:   []Kind{p.Kind, other.Kind},
		}
	}

	switch p.Kind {
	case Delete:
		return nil
	case InsertBefore, InsertAfter, InsertFirst, InsertLast, InsertAttributes:
		p.Payload.Nodes = append(p.Payload.Nodes, other.Payload.Nodes...)
		return nil
	case Rename:
		if p.Payload.Name == other.Payload.Name {
			return nil
		}
		return newConflict("", p.Target,
			fmt.Sprintf("node renamed twice (%q, %q)", p.Payload.Name, other.Payload.Name), Rename, Rename)
	case ReplaceNode, ReplaceValue, ReplaceElementContent:
		return newConflict("", p.Target, "node replaced more than once", p.Kind, p.Kind)
	case StoreBinary:
		for _, r := range other.Payload.Resources {
			for _, have := range p.Payload.Resources {
				if have.Path == r.Path {
					return newConflict("", p.Target,
						fmt.Sprintf("resource %q stored more than once", r.Path), StoreBinary, StoreBinary)
				}
			}
		}
		p.Payload.Resources = append(p.Payload.Resources, other.Payload.Resources...)
		return nil
	default:
		return newInvalid("", p.Target, p.Kind, "unknown update kind")
	}
}

// Describe returns a canonical-JSON friendly summary of p.
func (p *Primitive) Describe() map[string]any {
	d := map[string]any{
		"kind":   p.Kind.String(),
		"target": p.Target.String(),
	}
	if len(p.Payload.Nodes) > 0 {
		d["nodes"] = node.Serialize(p.Payload.Nodes)
	}
	switch p.Kind {
	case Rename:
		d["name"] = p.Payload.Name
	case ReplaceValue, ReplaceElementContent:
		d["value"] = p.Payload.Value
	case StoreBinary:
		paths := make([]string, len(p.Payload.Resources))
		for i, r := range p.Payload.Resources {
			paths[i] = r.Path
		}
		d["resources"] = paths
	}
	return d
}
