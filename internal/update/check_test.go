package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treeup/internal/node"
)

func TestCheck_DeleteAndRenameConflict(t *testing.T) {
	l := NewList(memStore(t, "db", `<a><b/></a>`), nil)
	require.NoError(t, l.Register(NewDelete(Persisted(1))))
	require.NoError(t, l.Register(NewRename(Persisted(1), "c")), "registration does not look at other kinds")

	err := l.Check()
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	var ue *UpdateError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, Persisted(1), ue.Target)
	assert.Equal(t, []Kind{Delete, Rename}, ue.Kinds)
}

func TestCheck_KindMatrix(t *testing.T) {
	a := node.NewArena()
	el := func() *node.Node { return a.Element("x", nil) }
	prim := map[Kind]func(Target) *Primitive{
		Delete:                NewDelete,
		ReplaceNode:           func(t Target) *Primitive { return NewReplaceNode(t, el()) },
		Rename:                func(t Target) *Primitive { return NewRename(t, "z") },
		InsertBefore:          func(t Target) *Primitive { return NewInsert(InsertBefore, t, el()) },
		InsertAfter:           func(t Target) *Primitive { return NewInsert(InsertAfter, t, el()) },
		InsertFirst:           func(t Target) *Primitive { return NewInsert(InsertFirst, t, el()) },
		InsertLast:            func(t Target) *Primitive { return NewInsert(InsertLast, t, el()) },
		InsertAttributes:      func(t Target) *Primitive { return NewInsert(InsertAttributes, t, a.Attribute("q", "1")) },
		ReplaceElementContent: func(t Target) *Primitive { return NewReplaceElementContent(t, "v") },
	}

	tests := []struct {
		a, b     Kind
		conflict bool
	}{
		{Delete, Rename, true},
		{Delete, ReplaceNode, true},
		{Delete, InsertFirst, true},
		{Delete, InsertAttributes, true},
		{Delete, ReplaceElementContent, true},
		{Delete, InsertBefore, false},
		{Delete, InsertAfter, false},
		{ReplaceNode, Rename, true},
		{ReplaceNode, InsertLast, true},
		{ReplaceNode, InsertBefore, false},
		{ReplaceNode, InsertAfter, false},
		{ReplaceElementContent, InsertFirst, true},
		{ReplaceElementContent, InsertLast, true},
		{ReplaceElementContent, InsertAttributes, false},
		{ReplaceElementContent, Rename, false},
		{Rename, InsertFirst, false},
		{InsertFirst, InsertLast, false},
	}
	for _, tt := range tests {
		t.Run(tt.a.String()+"+"+tt.b.String(), func(t *testing.T) {
			l := NewList(memStore(t, "db", `<r><b>t</b></r>`), a)
			require.NoError(t, l.Register(prim[tt.a](Persisted(1))))
			require.NoError(t, l.Register(prim[tt.b](Persisted(1))))

			err := l.Check()
			if tt.conflict {
				assert.True(t, IsConflict(err), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheck_Typing(t *testing.T) {
	// <a k="1">t<b/></a>: a=0 @k=1 t=2 b=3
	const xml = `<a k="1">t<b/></a>`
	a := node.NewArena()
	orphan := a.Element("o", nil)

	tests := []struct {
		name string
		prim *Primitive
	}{
		{"insert before attribute", NewInsert(InsertBefore, Persisted(1), a.Element("x", nil))},
		{"insert after attribute", NewInsert(InsertAfter, Persisted(1), a.Element("x", nil))},
		{"attribute as sibling", NewInsert(InsertAfter, Persisted(3), a.Attribute("q", "1"))},
		{"insert into text", NewInsert(InsertFirst, Persisted(2), a.Element("x", nil))},
		{"attribute as child", NewInsert(InsertLast, Persisted(0), a.Attribute("q", "1"))},
		{"element as attribute", NewInsert(InsertAttributes, Persisted(0), a.Element("x", nil))},
		{"attributes on text", NewInsert(InsertAttributes, Persisted(2), a.Attribute("q", "1"))},
		{"replace element by attribute", NewReplaceNode(Persisted(3), a.Attribute("q", "1"))},
		{"replace attribute by element", NewReplaceNode(Persisted(1), a.Element("x", nil))},
		{"rename text", NewRename(Persisted(2), "x")},
		{"rename to empty", NewRename(Persisted(0), "")},
		{"replace value of element", NewReplaceValue(Persisted(0), "v")},
		{"replace content of attribute", NewReplaceElementContent(Persisted(1), "v")},
		{"sibling of parentless fragment", NewInsert(InsertAfter, Fragment(orphan.ID), a.Element("x", nil))},
		{"replace parentless fragment", NewReplaceNode(Fragment(orphan.ID))},
		{"binary on fragment", NewStoreBinary(Fragment(orphan.ID), "f", nil)},
		{"binary without path", NewStoreBinary(Persisted(0), "", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewList(memStore(t, "db", xml), a)
			require.NoError(t, l.Register(tt.prim))
			err := l.Check()
			assert.True(t, IsInvalidUpdate(err), "got %v", err)
		})
	}
}

func TestCheck_Accepts(t *testing.T) {
	const xml = `<a k="1">t<b/></a>`
	a := node.NewArena()
	orphan := a.Element("o", nil)

	tests := []struct {
		name string
		prim *Primitive
	}{
		{"replace attribute by attributes", NewReplaceNode(Persisted(1), a.Attribute("j", "2"), a.Attribute("m", "3"))},
		{"replace with nothing", NewReplaceNode(Persisted(3))},
		{"value of attribute", NewReplaceValue(Persisted(1), "2")},
		{"value of text", NewReplaceValue(Persisted(2), "u")},
		{"rename attribute", NewRename(Persisted(1), "j")},
		{"sibling of top-level element", NewInsert(InsertBefore, Persisted(0), a.Comment("c"))},
		{"delete parentless fragment", NewDelete(Fragment(orphan.ID))},
		{"document payload", NewInsert(InsertLast, Persisted(0), a.Document(a.Element("x", nil)))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewList(memStore(t, "db", xml), a)
			require.NoError(t, l.Register(tt.prim))
			assert.NoError(t, l.Check())
		})
	}
}

func TestCheck_Unresolved(t *testing.T) {
	a := node.NewArena()

	l := NewList(memStore(t, "db", `<a/>`), a)
	require.NoError(t, l.Register(NewDelete(Persisted(5))))
	assert.True(t, IsAddressResolution(l.Check()))

	l = NewList(memStore(t, "db", `<a/>`), a)
	require.NoError(t, l.Register(NewDelete(Fragment(1234))))
	assert.True(t, IsAddressResolution(l.Check()))

	l = NewList(memStore(t, "db", `<a/>`), nil)
	require.NoError(t, l.Register(NewDelete(Fragment(1))))
	assert.True(t, IsAddressResolution(l.Check()))
}

func TestCheck_BinaryOnEmptyStore(t *testing.T) {
	l := NewList(NewMemory("db"), nil)
	require.NoError(t, l.Register(NewStoreBinary(Persisted(0), "blob", []byte("x"))))
	assert.NoError(t, l.Check())
}

func TestCheck_AttributeNames(t *testing.T) {
	// <a k="1" m="2"/>: a=0 @k=1 @m=2
	const xml = `<a k="1" m="2"/>`
	a := node.NewArena()
	attr := func(name string) *node.Node { return a.Attribute(name, "x") }

	tests := []struct {
		name     string
		prims    []*Primitive
		conflict bool
	}{
		{"insert existing name", []*Primitive{NewInsert(InsertAttributes, Persisted(0), attr("k"))}, true},
		{"insert new name", []*Primitive{NewInsert(InsertAttributes, Persisted(0), attr("j"))}, false},
		{"insert after delete", []*Primitive{
			NewDelete(Persisted(1)),
			NewInsert(InsertAttributes, Persisted(0), attr("k")),
		}, false},
		{"rename onto existing", []*Primitive{NewRename(Persisted(2), "k")}, true},
		{"swap names", []*Primitive{NewRename(Persisted(1), "m"), NewRename(Persisted(2), "k")}, false},
		{"replace onto existing", []*Primitive{NewReplaceNode(Persisted(1), attr("m"))}, true},
		{"replace keeps name", []*Primitive{NewReplaceNode(Persisted(1), attr("k"))}, false},
		{"same name inserted twice", []*Primitive{
			NewInsert(InsertAttributes, Persisted(0), attr("j")),
			NewInsert(InsertAttributes, Persisted(0), attr("j")),
		}, true},
		{"rename and insert same name", []*Primitive{
			NewRename(Persisted(1), "j"),
			NewInsert(InsertAttributes, Persisted(0), attr("j")),
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewList(memStore(t, "db", xml), a)
			for _, p := range tt.prims {
				require.NoError(t, l.Register(p))
			}
			err := l.Check()
			if tt.conflict {
				assert.True(t, IsConflict(err), "got %v", err)
				var ue *UpdateError
				require.ErrorAs(t, err, &ue)
				assert.Equal(t, Persisted(0), ue.Target)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheck_FragmentAttributeNames(t *testing.T) {
	a := node.NewArena()
	f := frag(t, a, `<f x="1"/>`)[0]

	l := NewList(memStore(t, "db", `<a/>`), a)
	require.NoError(t, l.Register(NewInsert(InsertAttributes, Fragment(f.ID), a.Attribute("x", "2"))))
	assert.True(t, IsConflict(l.Check()))
}
