package commit_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/oneconcern/irmin/pkg/commit"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/objects"
	"github.com/oneconcern/irmin/pkg/storage/localfs"
	"github.com/oneconcern/irmin/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(t testing.TB) *commit.Graph {
	objs, err := objects.New(localfs.NewMemory())
	require.NoError(t, err)
	return commit.NewGraph(tree.New(objs))
}

func mustCommit(t testing.TB, g *commit.Graph, message string, parents ...commit.Commit) commit.Commit {
	ctx := context.Background()
	tr, err := g.Trees().Add(ctx, g.Trees().Empty(), model.ParsePath("/message"), []byte(message), model.DefaultMetadata)
	require.NoError(t, err)
	c, err := g.New(ctx, parents, tr, model.Info{Author: "test", Message: message, Date: 1})
	require.NoError(t, err)
	return c
}

// diamond builds:
//
//	root <- left  <- merge
//	     <- right <-
func diamond(t testing.TB, g *commit.Graph) (root, left, right, merge commit.Commit) {
	root = mustCommit(t, g, "root")
	left = mustCommit(t, g, "left", root)
	right = mustCommit(t, g, "right", root)
	merge = mustCommit(t, g, "merge", left, right)
	return
}

func TestNewAndOf(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)

	root := mustCommit(t, g, "root")
	assert.Empty(t, root.Parents())

	child := mustCommit(t, g, "child", root)
	loaded, err := g.Of(ctx, child.Hash())
	require.NoError(t, err)
	assert.True(t, g.Equal(child, loaded))
	assert.Equal(t, []hash.Hash{root.Hash()}, loaded.Parents())
	assert.Equal(t, "child", loaded.Info().Message)

	parents, err := g.Parents(ctx, loaded)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.True(t, g.Equal(root, parents[0]))

	data, _, err := g.Trees().Find(ctx, g.Tree(loaded), model.ParsePath("/message"))
	require.NoError(t, err)
	assert.Equal(t, "child", string(data))

	again := mustCommit(t, g, "child", root)
	assert.Equal(t, child.Hash(), again.Hash(), "commits are content addressed")

	_, err = g.Of(ctx, hash.MustFromBytes(make([]byte, hash.Size)))
	assert.True(t, errors.Is(err, status.ErrNotFound))
}

func TestAncestors(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	root, left, right, merge := diamond(t, g)

	for _, toPin := range []struct {
		Depth    int
		Expected []commit.Commit
	}{
		{Depth: 0, Expected: []commit.Commit{merge, left, right, root}},
		{Depth: 1, Expected: []commit.Commit{merge, left, right}},
		{Depth: 2, Expected: []commit.Commit{merge, left, right, root}},
	} {
		fixture := toPin
		t.Run(fmt.Sprintf("depth %d", fixture.Depth), func(t *testing.T) {
			var visited []hash.Hash
			require.NoError(t, g.Ancestors(ctx, merge, fixture.Depth, func(c commit.Commit) error {
				visited = append(visited, c.Hash())
				return nil
			}))
			assert.Equal(t, commit.Hashes(fixture.Expected), visited, "shared ancestors are visited once")
		})
	}

	var count int
	require.NoError(t, g.Ancestors(ctx, merge, 0, func(commit.Commit) error {
		count++
		if count == 2 {
			return commit.ErrStop
		}
		return nil
	}))
	assert.Equal(t, 2, count)

	boom := errors.New("boom")
	err := g.Ancestors(ctx, merge, 0, func(commit.Commit) error { return boom })
	assert.True(t, errors.Is(err, boom))
}

func TestIsAncestor(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	root, left, right, merge := diamond(t, g)

	for _, toPin := range []struct {
		Name     string
		A, B     commit.Commit
		Expected bool
	}{
		{Name: "self", A: left, B: left, Expected: true},
		{Name: "root of merge", A: root, B: merge, Expected: true},
		{Name: "left of merge", A: left, B: merge, Expected: true},
		{Name: "merge of left", A: merge, B: left, Expected: false},
		{Name: "siblings", A: left, B: right, Expected: false},
	} {
		fixture := toPin
		t.Run(fixture.Name, func(t *testing.T) {
			ok, err := g.IsAncestor(ctx, fixture.A, fixture.B)
			require.NoError(t, err)
			assert.Equal(t, fixture.Expected, ok)

			ok, err = g.IsAncestorOf(ctx, fixture.A.Hash(), fixture.B.Hash())
			require.NoError(t, err)
			assert.Equal(t, fixture.Expected, ok)
		})
	}
}

func TestAncestorsSkipParents(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	_, left, right, merge := diamond(t, g)

	var visited []hash.Hash
	require.NoError(t, g.Ancestors(ctx, merge, 0, func(c commit.Commit) error {
		visited = append(visited, c.Hash())
		if c.Hash() != merge.Hash() {
			return commit.ErrSkipParents
		}
		return nil
	}))
	assert.Equal(t, commit.Hashes([]commit.Commit{merge, left, right}), visited)
}
