package update

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/treeup/internal/node"
)

func memStore(t *testing.T, name, xml string) *Memory {
	t.Helper()
	m, err := ParseMemory(name, xml)
	require.NoError(t, err)
	return m
}

// frag parses xml into fresh nodes of arena.
func frag(t *testing.T, a *node.Arena, xml string) []*node.Node {
	t.Helper()
	nodes, err := a.ParseString(xml)
	require.NoError(t, err)
	return nodes
}

// applyList finishes, checks and applies l against its store.
func applyList(t *testing.T, l *List) error {
	t.Helper()
	if err := l.Check(); err != nil {
		return err
	}
	tx, err := l.Store().Begin(context.Background())
	require.NoError(t, err)
	if err := l.Apply(tx); err != nil {
		tx.Abort()
		return err
	}
	return tx.Commit(context.Background())
}
