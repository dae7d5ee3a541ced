package script

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/treeup/internal/doc"
	"github.com/roach88/treeup/internal/node"
	"github.com/roach88/treeup/internal/update"
)

// Result reports an applied statement.
type Result struct {
	// Statement is the statement id.
	Statement string

	// Stores lists the stores that received primitives, in apply order.
	Stores []string

	// Primitives is the number of primitives applied after merging.
	Primitives int

	// Fragments holds every declared fragment after the statement.
	Fragments map[string]string

	// Summary describes the applied primitives per store.
	Summary map[string]any
}

// Execute registers every instruction of stmt against stores and applies
// them as one statement.
//
// Instruction errors (bad payloads, paths selecting nothing) discard the
// statement before anything is validated. Validation and apply errors are
// *update.UpdateError values.
func Execute(ctx context.Context, stmt *Statement, stores []update.Store, opts ...update.Option) (*Result, error) {
	arena := node.NewArena()
	p := update.NewPending(stores, append(opts, update.WithArena(arena))...)

	e := &executor{
		pending: p,
		arena:   arena,
		stores:  make(map[string]update.Store, len(stores)),
		frags:   make(map[string][]*node.Node, len(stmt.Fragments)),
	}
	for _, s := range stores {
		e.stores[s.Name()] = s
	}

	for _, label := range sortedKeys(stmt.Fragments) {
		nodes, err := arena.ParseString(stmt.Fragments[label])
		if err != nil {
			p.Discard()
			return nil, fmt.Errorf("fragment %q: %w", label, err)
		}
		e.frags[label] = nodes
	}

	for i, ins := range stmt.Updates {
		if err := e.register(ins); err != nil {
			p.Discard()
			return nil, fmt.Errorf("updates[%d] (%s): %w", i, ins.Op, err)
		}
	}

	slog.Debug("statement registered",
		slog.String("name", stmt.Name),
		slog.String("statement", p.ID()),
		slog.Int("primitives", p.Len()))

	summary := p.Summary()
	if err := p.ValidateAndApply(ctx); err != nil {
		return nil, err
	}

	res := &Result{
		Statement:  p.ID(),
		Stores:     p.Stores(),
		Primitives: p.Len(),
		Fragments:  make(map[string]string, len(e.frags)),
		Summary:    summary,
	}
	for label, nodes := range e.frags {
		res.Fragments[label] = node.Serialize(nodes)
	}
	return res, nil
}

type executor struct {
	pending *update.Pending
	arena   *node.Arena
	stores  map[string]update.Store
	frags   map[string][]*node.Node
}

func (e *executor) register(ins Instruction) error {
	kind, err := update.ParseKind(ins.Op)
	if err != nil {
		return err
	}

	storeName, targets, err := e.targets(ins)
	if err != nil {
		return err
	}
	if len(targets) == 0 && kind != update.Delete {
		return fmt.Errorf("path %q selects no nodes", ins.Path)
	}

	payload, err := e.payload(kind, ins)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if err := e.pending.Register(storeName, kind, t, payload); err != nil {
			return err
		}
	}
	return nil
}

// targets resolves the instruction's target nodes. Fragment targets come
// back with an empty store name.
func (e *executor) targets(ins Instruction) (string, []update.Target, error) {
	if ins.Store != "" {
		s, ok := e.stores[ins.Store]
		if !ok {
			return "", nil, fmt.Errorf("unknown store %q", ins.Store)
		}
		pres, err := s.Data().Select(ins.Path)
		if err != nil {
			return "", nil, err
		}
		targets := make([]update.Target, len(pres))
		for i, pre := range pres {
			targets[i] = update.Persisted(pre)
		}
		return ins.Store, targets, nil
	}

	roots, ok := e.frags[ins.Fragment]
	if !ok {
		return "", nil, fmt.Errorf("unknown fragment %q", ins.Fragment)
	}
	var selected []*node.Node
	if ins.Path == "" {
		selected = node.Expand(roots)
	} else {
		// The positional table of a fragment has the same pre-order as
		// flatten, so selected positions index into it.
		pres, err := doc.New(ins.Fragment, roots...).Select(ins.Path)
		if err != nil {
			return "", nil, err
		}
		flat := flatten(roots)
		for _, pre := range pres {
			selected = append(selected, flat[pre])
		}
	}
	targets := make([]update.Target, len(selected))
	for i, n := range selected {
		targets[i] = update.Fragment(n.ID)
	}
	return "", targets, nil
}

func (e *executor) payload(kind update.Kind, ins Instruction) (update.Payload, error) {
	var p update.Payload
	switch kind {
	case update.Rename:
		p.Name = ins.Name
	case update.ReplaceValue, update.ReplaceElementContent:
		p.Value = ins.Value
	case update.StoreBinary:
		data := []byte(ins.Resource.Data)
		if ins.Resource.Encoding == "base64" {
			b, err := base64.StdEncoding.DecodeString(ins.Resource.Data)
			if err != nil {
				return p, fmt.Errorf("resource %q: %w", ins.Resource.Path, err)
			}
			data = b
		}
		p.Resources = []update.Resource{{Path: ins.Resource.Path, Data: data}}
	}

	for _, a := range ins.Attributes {
		p.Nodes = append(p.Nodes, e.arena.Attribute(a.Name, a.Value))
	}
	if ins.Nodes == "" {
		return p, nil
	}
	if label, ok := strings.CutPrefix(ins.Nodes, "$"); ok {
		nodes, ok := e.frags[label]
		if !ok {
			return p, fmt.Errorf("unknown fragment %q", label)
		}
		p.Nodes = append(p.Nodes, nodes...)
		return p, nil
	}
	nodes, err := e.arena.ParseString(ins.Nodes)
	if err != nil {
		return p, err
	}
	p.Nodes = append(p.Nodes, nodes...)
	return p, nil
}

// flatten lists nodes in table order: each node, its attributes, then its
// children. Document nodes contribute only their children.
func flatten(nodes []*node.Node) []*node.Node {
	var out []*node.Node
	var walk func(n *node.Node)
	walk = func(n *node.Node) {
		out = append(out, n)
		out = append(out, n.Attrs...)
		for _, c := range node.Expand(n.Children) {
			walk(c)
		}
	}
	for _, n := range node.Expand(nodes) {
		walk(n)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
