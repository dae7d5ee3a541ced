package doc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treeup/internal/node"
)

func mustData(t *testing.T, xml string) *Data {
	t.Helper()
	nodes, err := node.NewArena().ParseString(xml)
	require.NoError(t, err)
	return New("test", nodes...)
}

func fragment(t *testing.T, xml string) []*node.Node {
	t.Helper()
	nodes, err := node.NewArena().ParseString(xml)
	require.NoError(t, err)
	return nodes
}

// assertConsistent rebuilds the table from its serialization and compares
// every Size, ASize and Dist with the incrementally maintained values.
func assertConsistent(t *testing.T, d *Data) {
	t.Helper()
	rebuilt := mustData(t, d.XML())
	assert.Equal(t, rebuilt.Rows(), d.Rows(), "table drifted from %s", d.XML())
}

func edit(t *testing.T, d *Data, fn func(tx *Tx)) {
	t.Helper()
	tx, err := d.Begin(context.Background())
	require.NoError(t, err)
	fn(tx)
	tx.Commit()
}

func TestNew_Rows(t *testing.T) {
	d := mustData(t, `<a x="1"><b/><c>t</c></a>`)

	want := []Row{
		{Kind: node.Element, Name: "a", Size: 5, ASize: 2, Dist: 1},
		{Kind: node.Attribute, Name: "x", Value: "1", Size: 1, ASize: 1, Dist: 1},
		{Kind: node.Element, Name: "b", Size: 1, ASize: 1, Dist: 2},
		{Kind: node.Element, Name: "c", Size: 2, ASize: 1, Dist: 3},
		{Kind: node.Text, Value: "t", Size: 1, ASize: 1, Dist: 1},
	}
	assert.Equal(t, want, d.Rows())
	assert.Equal(t, 0, d.Parent(3))
	assert.Equal(t, -1, d.Parent(0))
	assert.Equal(t, []int{1}, d.Attributes(0))
	assert.Equal(t, []int{2, 3}, d.Children(0))
	assert.Equal(t, []int{0}, d.Children(-1))
	assert.Equal(t, `<a x="1"><b/><c>t</c></a>`, d.XML())
}

func TestNew_DocumentNodeContributesChildren(t *testing.T) {
	a := node.NewArena()
	d := New("test", a.Document(a.Element("r", nil)))
	assert.Equal(t, "<r/>", d.XML())
}

func TestTx_Insert(t *testing.T) {
	tests := []struct {
		name   string
		start  string
		pre    int
		parent int
		frag   string
		want   string
	}{
		{"last child", "<a><b/><c/></a>", 3, 0, "<d/>", "<a><b/><c/><d/></a>"},
		{"between siblings", "<a><b/><c/></a>", 2, 0, "<x/><y/>", "<a><b/><x/><y/><c/></a>"},
		{"first child", "<a><b/></a>", 1, 0, "<x><y/></x>", "<a><x><y/></x><b/></a>"},
		{"into nested element", "<r><a><b/></a><c/></r>", 3, 2, "<n/>", "<r><a><b><n/></b></a><c/></r>"},
		{"top level before", "<a/><b/>", 1, -1, "<m/>", "<a/><m/><b/>"},
		{"top level end", "<a/>", 1, -1, "<z/>", "<a/><z/>"},
		{"text", "<a><b/></a>", 2, 0, "<t>x</t>", "<a><b/><t>x</t></a>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustData(t, tt.start)
			nodes := fragment(t, tt.frag)
			edit(t, d, func(tx *Tx) {
				n, err := tx.Insert(tt.pre, tt.parent, nodes)
				require.NoError(t, err)
				assert.Greater(t, n, 0)
			})
			assert.Equal(t, tt.want, d.XML())
			assertConsistent(t, d)
		})
	}
}

func TestTx_InsertAttribute(t *testing.T) {
	d := mustData(t, `<a x="1"><b/></a>`)
	attr := []*node.Node{{Kind: node.Attribute, Name: "k", Value: "v"}}
	edit(t, d, func(tx *Tx) {
		// appending at the end of the attribute region
		n, err := tx.Insert(2, 0, attr)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
	assert.Equal(t, `<a x="1" k="v"><b/></a>`, d.XML())
	row, ok := d.Row(0)
	require.True(t, ok)
	assert.Equal(t, 3, row.ASize)
	assertConsistent(t, d)
}

func TestTx_InsertRejectsBadSlots(t *testing.T) {
	d := mustData(t, `<a k="v"><b><c/></b></a>`)
	attr := []*node.Node{{Kind: node.Attribute, Name: "z", Value: "1"}}
	elem := fragment(t, "<e/>")

	tx, err := d.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Abort()

	_, err = tx.Insert(1, 0, elem)
	assert.Error(t, err, "element into attribute region")

	_, err = tx.Insert(3, 0, attr)
	assert.Error(t, err, "attribute into content region")

	_, err = tx.Insert(3, 0, elem)
	assert.Error(t, err, "grandchild position is not a child slot of 0")

	_, err = tx.Insert(0, -1, attr)
	assert.Error(t, err, "top-level attribute")

	_, err = tx.Insert(2, 1, elem)
	assert.Error(t, err, "attribute parent")

	_, err = tx.Insert(1, 0, append(attr, elem...))
	assert.Error(t, err, "mixed batch")

	assert.False(t, tx.Dirty())
}

func TestTx_Delete(t *testing.T) {
	tests := []struct {
		name  string
		start string
		pre   int
		want  string
	}{
		{"leaf", "<a><b/><c/></a>", 1, "<a><c/></a>"},
		{"subtree", "<r><a><b/><c/></a><d/></r>", 1, "<r><d/></r>"},
		{"attribute", `<a x="1" y="2"><b/></a>`, 1, `<a y="2"><b/></a>`},
		{"nested", "<r><a><b/></a><c><d/></c></r>", 2, "<r><a/><c><d/></c></r>"},
		{"top level", "<a/><b/><c/>", 1, "<a/><c/>"},
		{"root", "<a><b/></a>", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustData(t, tt.start)
			edit(t, d, func(tx *Tx) {
				require.NoError(t, tx.Delete(tt.pre))
			})
			assert.Equal(t, tt.want, d.XML())
			if tt.want != "" {
				assertConsistent(t, d)
			}
		})
	}
}

func TestTx_RenameAndSetValue(t *testing.T) {
	d := mustData(t, `<a k="v">t<!--c--></a>`)
	edit(t, d, func(tx *Tx) {
		require.NoError(t, tx.Rename(0, "b"))
		require.NoError(t, tx.Rename(1, "q"))
		require.NoError(t, tx.SetValue(1, "w"))
		require.NoError(t, tx.SetValue(2, "u"))
		require.NoError(t, tx.SetValue(3, "d"))

		assert.Error(t, tx.Rename(2, "x"), "text has no name")
		assert.Error(t, tx.SetValue(0, "x"), "element has no value")
		assert.Error(t, tx.Rename(9, "x"))
		assert.Error(t, tx.SetValue(9, "x"))
		assert.Error(t, tx.Delete(9))
	})
	assert.Equal(t, `<b q="w">u<!--d--></b>`, d.XML())
}

func TestTx_ClosedRejectsEdits(t *testing.T) {
	d := mustData(t, "<a/>")
	tx, err := d.Begin(context.Background())
	require.NoError(t, err)
	tx.Commit()
	tx.Commit()

	_, err = tx.Insert(1, -1, fragment(t, "<b/>"))
	assert.ErrorIs(t, err, ErrTxClosed)
	assert.ErrorIs(t, tx.Delete(0), ErrTxClosed)
	assert.ErrorIs(t, tx.Rename(0, "x"), ErrTxClosed)
	assert.ErrorIs(t, tx.SetValue(0, "x"), ErrTxClosed)
}

func TestTx_GenerationAdvancesOnlyWhenDirty(t *testing.T) {
	d := mustData(t, "<a/>")
	assert.Equal(t, uint64(0), d.Generation())

	edit(t, d, func(tx *Tx) {})
	assert.Equal(t, uint64(0), d.Generation())

	edit(t, d, func(tx *Tx) {
		require.NoError(t, tx.Rename(0, "b"))
	})
	assert.Equal(t, uint64(1), d.Generation())

	tx, err := d.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rename(0, "c"))
	tx.Abort()
	assert.Equal(t, uint64(1), d.Generation())
}

func TestTx_Reset(t *testing.T) {
	d := mustData(t, "<a><b/></a>")
	saved := d.Rows()
	edit(t, d, func(tx *Tx) {
		require.NoError(t, tx.Delete(1))
		tx.Reset(saved)
		assert.False(t, tx.Dirty())
	})
	assert.Equal(t, "<a><b/></a>", d.XML())
}

func TestCursor_TracksEdits(t *testing.T) {
	d := mustData(t, "<a><b/><c/><e/></a>")
	c, err := d.Cursor(2)
	require.NoError(t, err)
	defer c.Close()

	edit(t, d, func(tx *Tx) {
		require.NoError(t, tx.Delete(1))
	})
	assert.Equal(t, 1, c.Pos())

	edit(t, d, func(tx *Tx) {
		_, err := tx.Insert(1, 0, fragment(t, "<x><y/></x>"))
		require.NoError(t, err)
	})
	assert.Equal(t, 3, c.Pos())

	edit(t, d, func(tx *Tx) {
		// inserting after the cursor does not move it
		_, err := tx.Insert(4, 0, fragment(t, "<z/>"))
		require.NoError(t, err)
	})
	assert.Equal(t, 3, c.Pos())

	edit(t, d, func(tx *Tx) {
		require.NoError(t, tx.Delete(3))
	})
	assert.Equal(t, -1, c.Pos())

	_, err = d.Cursor(99)
	assert.Error(t, err)
}

func TestBegin_SerializesWriters(t *testing.T) {
	d := mustData(t, "<a/>")
	tx, err := d.Begin(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	tx.Commit()
	tx2, err := d.Begin(context.Background())
	require.NoError(t, err)
	tx2.Abort()
}

func TestBegin_ReadersSeeCommittedStateOnly(t *testing.T) {
	d := mustData(t, "<a><b/></a>")
	tx, err := d.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Delete(1))

	got := make(chan string, 1)
	go func() { got <- d.XML() }()

	select {
	case s := <-got:
		t.Fatalf("reader observed open transaction: %s", s)
	case <-time.After(30 * time.Millisecond):
	}

	_, err = tx.Insert(1, 0, fragment(t, "<c/>"))
	require.NoError(t, err)
	tx.Commit()

	select {
	case s := <-got:
		assert.Equal(t, "<a><c/></a>", s)
	case <-time.After(time.Second):
		t.Fatal("reader did not resume after commit")
	}
}

func TestNodeXMLAndDigest(t *testing.T) {
	d := mustData(t, `<a><b k="1">x</b></a>`)
	s, err := d.NodeXML(1)
	require.NoError(t, err)
	assert.Equal(t, `<b k="1">x</b>`, s)

	_, err = d.NodeXML(10)
	assert.Error(t, err)

	same := mustData(t, `<a><b k="1">x</b></a>`)
	other := mustData(t, `<a><b k="2">x</b></a>`)
	assert.Equal(t, d.Digest(), same.Digest())
	assert.NotEqual(t, d.Digest(), other.Digest())
}
