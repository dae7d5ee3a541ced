package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treeup/internal/node"
)

func TestRegister_DeleteIsIdempotent(t *testing.T) {
	once := memStore(t, "db", `<a><b/><c/></a>`)
	twice := memStore(t, "db", `<a><b/><c/></a>`)

	l1 := NewList(once, nil)
	require.NoError(t, l1.Register(NewDelete(Persisted(1))))

	l2 := NewList(twice, nil)
	require.NoError(t, l2.Register(NewDelete(Persisted(1))))
	require.NoError(t, l2.Register(NewDelete(Persisted(1))))
	assert.Equal(t, 1, l2.Len())

	require.NoError(t, applyList(t, l1))
	require.NoError(t, applyList(t, l2))
	assert.Equal(t, `<a><c/></a>`, once.Data().XML())
	assert.Equal(t, once.Data().XML(), twice.Data().XML())
}

func TestRegister_InsertionsKeepRegistrationOrder(t *testing.T) {
	s := memStore(t, "db", `<a/>`)
	a := node.NewArena()
	l := NewList(s, a)

	require.NoError(t, l.Register(NewInsert(InsertLast, Persisted(0), a.Element("x", nil))))
	require.NoError(t, l.Register(NewInsert(InsertLast, Persisted(0), a.Element("y", nil))))
	assert.Equal(t, 1, l.Len())

	require.NoError(t, applyList(t, l))
	assert.Equal(t, `<a><x/><y/></a>`, s.Data().XML())
}

func TestRegister_Rename(t *testing.T) {
	s := memStore(t, "db", `<a/>`)
	l := NewList(s, nil)

	require.NoError(t, l.Register(NewRename(Persisted(0), "b")))
	require.NoError(t, l.Register(NewRename(Persisted(0), "b")), "identical rename merges")

	err := l.Register(NewRename(Persisted(0), "c"))
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	var ue *UpdateError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "db", ue.Store)
	assert.Equal(t, Persisted(0), ue.Target)
}

func TestRegister_ReplaceTwiceConflicts(t *testing.T) {
	kinds := []*Primitive{
		NewReplaceNode(Persisted(1)),
		NewReplaceValue(Persisted(1), "v"),
		NewReplaceElementContent(Persisted(1), "v"),
	}
	for _, p := range kinds {
		t.Run(p.Kind.String(), func(t *testing.T) {
			l := NewList(memStore(t, "db", `<a><b/></a>`), nil)
			require.NoError(t, l.Register(p))
			err := l.Register(NewPrimitive(p.Kind, p.Target, p.Payload))
			assert.True(t, IsConflict(err), "got %v", err)
		})
	}
}

func TestRegister_StoreBinary(t *testing.T) {
	l := NewList(memStore(t, "db", `<a/>`), nil)
	require.NoError(t, l.Register(NewStoreBinary(Persisted(0), "img/a.png", []byte{1})))
	require.NoError(t, l.Register(NewStoreBinary(Persisted(0), "img/b.png", []byte{2})))

	err := l.Register(NewStoreBinary(Persisted(0), "img/a.png", []byte{3}))
	assert.True(t, IsConflict(err))

	ps := l.Primitives(Persisted(0))
	require.Len(t, ps, 1)
	assert.Len(t, ps[0].Payload.Resources, 2)
}

func TestRegister_Invalid(t *testing.T) {
	l := NewList(memStore(t, "db", `<a/>`), nil)

	assert.True(t, IsInvalidUpdate(l.Register(nil)))
	assert.True(t, IsInvalidUpdate(l.Register(NewDelete(Target{}))))
	assert.True(t, IsInvalidUpdate(l.Register(NewPrimitive(Kind(99), Persisted(0), Payload{}))))
	assert.Equal(t, 0, l.Len())
}

func TestRegister_CopiesPrimitive(t *testing.T) {
	s := memStore(t, "db", `<a/>`)
	a := node.NewArena()
	l := NewList(s, a)

	p := NewInsert(InsertLast, Persisted(0), a.Element("x", nil))
	require.NoError(t, l.Register(p))
	require.NoError(t, l.Register(NewInsert(InsertLast, Persisted(0), a.Element("y", nil))))

	assert.Len(t, p.Payload.Nodes, 1, "caller's primitive is not modified by merging")
}

func TestFinish_Order(t *testing.T) {
	a := node.NewArena()
	frags := frag(t, a, `<f><g/><h/></f>`)
	f, g := frags[0], frags[0].Children[0]

	l := NewList(memStore(t, "db", `<r><a/><b/><c/><d/></r>`), a)
	require.NoError(t, l.Register(NewDelete(Persisted(1))))
	require.NoError(t, l.Register(NewRename(Fragment(g.ID), "x")))
	require.NoError(t, l.Register(NewDelete(Persisted(4))))
	require.NoError(t, l.Register(NewRename(Fragment(f.ID), "y")))
	require.NoError(t, l.Register(NewRename(Persisted(2), "z")))

	assert.Nil(t, l.Targets())
	l.Finish()
	want := []Target{Persisted(4), Persisted(2), Persisted(1), Fragment(f.ID), Fragment(g.ID)}
	assert.Equal(t, want, l.Targets())

	l.Finish()
	assert.Equal(t, want, l.Targets(), "finish is idempotent")
}

func TestRegister_AfterFinish(t *testing.T) {
	l := NewList(memStore(t, "db", `<a/>`), nil)
	require.NoError(t, l.Register(NewDelete(Persisted(0))))
	l.Finish()
	assert.True(t, l.Finished())

	err := l.Register(NewRename(Persisted(0), "b"))
	assert.True(t, IsAlreadyFinished(err))
	assert.Equal(t, 1, l.Len())
}

func TestList_Summary(t *testing.T) {
	a := node.NewArena()
	l := NewList(memStore(t, "db", `<a><b/></a>`), a)
	require.NoError(t, l.Register(NewRename(Persisted(0), "z")))
	require.NoError(t, l.Register(NewInsert(InsertAfter, Persisted(1), a.Element("c", nil))))
	require.NoError(t, l.Register(NewDelete(Persisted(1))))

	assert.Equal(t, []any{
		map[string]any{"kind": "delete", "target": "pre:1"},
		map[string]any{"kind": "insert-after", "target": "pre:1", "nodes": "<c/>"},
		map[string]any{"kind": "rename", "target": "pre:0", "name": "z"},
	}, l.Summary())
}

func TestList_SummaryDoesNotFinish(t *testing.T) {
	l := NewList(memStore(t, "db", `<a><b/></a>`), nil)
	require.NoError(t, l.Register(NewDelete(Persisted(1))))
	l.Summary()

	assert.False(t, l.Finished())
	assert.Nil(t, l.Targets())
	require.NoError(t, l.Register(NewRename(Persisted(0), "z")))
	assert.Len(t, l.Summary(), 2)
}
