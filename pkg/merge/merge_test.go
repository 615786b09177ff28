package merge_test

import (
	"context"
	"testing"
	"time"

	"github.com/oneconcern/irmin/pkg/commit"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/merge"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/objects"
	"github.com/oneconcern/irmin/pkg/storage/localfs"
	"github.com/oneconcern/irmin/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRepo struct {
	t      testing.TB
	trees  *tree.Store
	graph  *commit.Graph
	engine *merge.Engine
	clock  int64
}

func newTestRepo(t testing.TB, opts ...merge.Option) *testRepo {
	objs, err := objects.New(localfs.NewMemory())
	require.NoError(t, err)
	trees := tree.New(objs)
	graph := commit.NewGraph(trees)
	return &testRepo{
		t:      t,
		trees:  trees,
		graph:  graph,
		engine: merge.New(graph, opts...),
	}
}

// commit applies edits on the tree of the first parent: a nil value removes the path
func (r *testRepo) commit(edits map[string]*string, parents ...commit.Commit) commit.Commit {
	ctx := context.Background()
	t := r.trees.Empty()
	if len(parents) > 0 {
		t = r.graph.Tree(parents[0])
	}
	var err error
	for p, v := range edits {
		if v == nil {
			t, err = r.trees.Remove(ctx, t, model.ParsePath(p))
		} else {
			t, err = r.trees.Add(ctx, t, model.ParsePath(p), []byte(*v), model.DefaultMetadata)
		}
		require.NoError(r.t, err)
	}
	return r.commitTree(t, parents...)
}

func (r *testRepo) commitTree(t tree.Tree, parents ...commit.Commit) commit.Commit {
	r.clock++
	clock := r.clock
	info := model.NewInfoAt(func() time.Time { return time.Unix(clock, 0) }, "test", "commit")
	c, err := r.graph.New(context.Background(), parents, t, info)
	require.NoError(r.t, err)
	return c
}

func (r *testRepo) find(t tree.Tree, p string) (string, bool) {
	data, _, err := r.trees.Find(context.Background(), t, model.ParsePath(p))
	if errors.Is(err, status.ErrNotFound) {
		return "", false
	}
	require.NoError(r.t, err)
	return string(data), true
}

func str(s string) *string {
	return &s
}

func TestMergeFastPaths(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	a := r.commit(map[string]*string{"/a/b": str("v1")})
	b := r.commit(map[string]*string{"/a/c": str("v2")}, a)

	merged, err := r.engine.Merge(ctx, a, a)
	require.NoError(t, err)
	assert.Equal(t, a.TreeHash(), r.trees.Hash(merged), "merging a commit with itself yields its tree")

	merged, err = r.engine.Merge(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, b.TreeHash(), r.trees.Hash(merged), "merging with a descendant fast-forwards")

	merged, err = r.engine.Merge(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, b.TreeHash(), r.trees.Hash(merged))
}

func TestLowestCommonAncestor(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	root := r.commit(map[string]*string{"/x": str("0")})
	left := r.commit(map[string]*string{"/l": str("1")}, root)
	right := r.commit(map[string]*string{"/r": str("1")}, root)
	left2 := r.commit(map[string]*string{"/l": str("2")}, left)

	lca, err := r.engine.LowestCommonAncestor(ctx, left2, right)
	require.NoError(t, err)
	require.NotNil(t, lca)
	assert.Equal(t, root.Hash(), lca.Hash())

	lca, err = r.engine.LowestCommonAncestor(ctx, left2, left)
	require.NoError(t, err)
	require.NotNil(t, lca)
	assert.Equal(t, left.Hash(), lca.Hash())

	unrelated := r.commit(map[string]*string{"/u": str("0")})
	lca, err = r.engine.LowestCommonAncestor(ctx, left2, unrelated)
	require.NoError(t, err)
	assert.Nil(t, lca)
}

func TestMergeDisjoint(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	base := r.commit(map[string]*string{"/a/b": str("v1"), "/a/c": str("c"), "/d": str("d")})
	ours := r.commit(map[string]*string{"/a/b": str("v2"), "/d": nil}, base)
	theirs := r.commit(map[string]*string{"/a/e": str("e"), "/f/g": str("g")}, base)

	merged, err := r.engine.Merge(ctx, ours, theirs)
	require.NoError(t, err)

	for _, toPin := range []struct {
		Path     string
		Expected string
		Present  bool
	}{
		{Path: "/a/b", Expected: "v2", Present: true},
		{Path: "/a/c", Expected: "c", Present: true},
		{Path: "/a/e", Expected: "e", Present: true},
		{Path: "/f/g", Expected: "g", Present: true},
		{Path: "/d"},
	} {
		fixture := toPin
		value, found := r.find(merged, fixture.Path)
		assert.Equal(t, fixture.Present, found, fixture.Path)
		assert.Equal(t, fixture.Expected, value, fixture.Path)
	}

	// merging is symmetric when there is no conflict
	swapped, err := r.engine.Merge(ctx, theirs, ours)
	require.NoError(t, err)
	assert.True(t, r.trees.Equal(merged, swapped))
}

func TestMergeSameChange(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	base := r.commit(map[string]*string{"/a": str("v1")})
	ours := r.commit(map[string]*string{"/a": str("v2"), "/o": str("o")}, base)
	theirs := r.commit(map[string]*string{"/a": str("v2"), "/t": str("t")}, base)

	merged, err := r.engine.Merge(ctx, ours, theirs)
	require.NoError(t, err)
	value, _ := r.find(merged, "/a")
	assert.Equal(t, "v2", value)
}

func TestMergeConflicts(t *testing.T) {
	ctx := context.Background()

	for _, toPin := range []struct {
		Name      string
		Resolver  merge.Resolver
		Conflicts []string
		Expected  map[string]string
	}{
		{
			Name:      "unresolved",
			Conflicts: []string{"/a/b", "/c", "/j"},
		},
		{
			Name:     "ours",
			Resolver: merge.Ours(),
			Expected: map[string]string{"/a/b": "ours", "/c": "ours", "/j": `{"k1":"ours","k2":"base"}`},
		},
		{
			Name:     "theirs",
			Resolver: merge.Theirs(),
			Expected: map[string]string{"/a/b": "theirs", "/j": `{"k1":"base","k2":"theirs"}`},
		},
		{
			Name:      "json",
			Resolver:  merge.JSON(),
			Conflicts: []string{"/a/b", "/c"},
		},
		{
			Name:      "json values",
			Resolver:  merge.JSONValue(),
			Conflicts: []string{"/a/b", "/c"},
		},
		{
			Name:     "json then ours",
			Resolver: merge.Chain(merge.JSON(), merge.Ours()),
			Expected: map[string]string{"/a/b": "ours", "/c": "ours", "/j": `{"k1":"ours","k2":"theirs"}`},
		},
	} {
		fixture := toPin
		t.Run(fixture.Name, func(t *testing.T) {
			r := newTestRepo(t)
			base := r.commit(map[string]*string{
				"/a/b": str("base"),
				"/c":   str("base"),
				"/j":   str(`{"k1":"base","k2":"base"}`),
			})
			ours := r.commit(map[string]*string{
				"/a/b": str("ours"),
				"/c":   str("ours"),
				"/j":   str(`{"k1":"ours","k2":"base"}`),
			}, base)
			theirs := r.commit(map[string]*string{
				"/a/b": str("theirs"),
				"/c":   nil,
				"/j":   str(`{"k1":"base","k2":"theirs"}`),
			}, base)

			merged, err := r.engine.Merge(ctx, ours, theirs, merge.Resolve(fixture.Resolver))
			if len(fixture.Conflicts) > 0 {
				require.Error(t, err)
				assert.True(t, errors.Is(err, status.ErrConflict))

				var conflict *merge.ConflictError
				require.True(t, errors.As(err, &conflict))
				paths := make([]string, 0, len(conflict.Paths))
				for _, p := range conflict.Paths {
					paths = append(paths, p.String())
				}
				assert.Equal(t, fixture.Conflicts, paths)
				return
			}

			require.NoError(t, err)
			for p, expected := range fixture.Expected {
				value, found := r.find(merged, p)
				assert.True(t, found, p)
				assert.Equal(t, expected, value, p)
			}
			if _, ok := fixture.Expected["/c"]; !ok {
				_, found := r.find(merged, "/c")
				assert.False(t, found, "theirs removed /c")
			}
		})
	}
}

func TestMergeTreeAgainstContents(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	base := r.commit(map[string]*string{"/x": str("0")})
	ours := r.commit(map[string]*string{"/a": str("contents")}, base)
	theirs := r.commit(map[string]*string{"/a/b": str("in a tree")}, base)

	_, err := r.engine.Merge(ctx, ours, theirs)
	var conflict *merge.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []model.Path{model.ParsePath("/a")}, conflict.Paths)
}

func TestMergeUnrelated(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	ours := r.commit(map[string]*string{"/a": str("a"), "/same": str("s")})
	theirs := r.commit(map[string]*string{"/b": str("b"), "/same": str("s")})

	merged, err := r.engine.Merge(ctx, ours, theirs)
	require.NoError(t, err)
	for _, p := range []string{"/a", "/b", "/same"} {
		_, found := r.find(merged, p)
		assert.True(t, found, p)
	}

	conflicting := r.commit(map[string]*string{"/a": str("other")})
	_, err = r.engine.Merge(ctx, ours, conflicting)
	assert.True(t, errors.Is(err, status.ErrConflict))
}

func TestMergeCrissCross(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	// l2 merges (l1, r1) and r2 merges (r1, l1): l3 and r3 have two common ancestors
	root := r.commit(map[string]*string{"/shared": str("0"), "/l": str("0"), "/r": str("0")})
	l1 := r.commit(map[string]*string{"/l": str("1")}, root)
	r1 := r.commit(map[string]*string{"/r": str("1")}, root)

	l1r1, err := r.engine.Merge(ctx, l1, r1)
	require.NoError(t, err)
	l2 := r.commitTree(l1r1, l1, r1)
	r2 := r.commitTree(l1r1, r1, l1)
	require.NotEqual(t, l2.Hash(), r2.Hash())

	l3 := r.commit(map[string]*string{"/l": str("3")}, l2)
	r3 := r.commit(map[string]*string{"/shared": str("r3")}, r2)

	lcas, err := r.engine.LowestCommonAncestors(ctx, l3, r3)
	require.NoError(t, err)
	require.Len(t, lcas, 2)
	assert.ElementsMatch(t, commit.Hashes([]commit.Commit{l1, r1}), commit.Hashes(lcas))

	merged, err := r.engine.Merge(ctx, l3, r3)
	require.NoError(t, err)
	for _, toPin := range []struct {
		Path     string
		Expected string
	}{
		{Path: "/l", Expected: "3"},
		{Path: "/r", Expected: "1"},
		{Path: "/shared", Expected: "r3"},
	} {
		fixture := toPin
		value, _ := r.find(merged, fixture.Path)
		assert.Equal(t, fixture.Expected, value, fixture.Path)
	}
}

func TestMergeAll(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	base := r.commit(map[string]*string{"/base": str("0")})
	a := r.commit(map[string]*string{"/a": str("a")}, base)
	b := r.commit(map[string]*string{"/b": str("b")}, base)
	c := r.commit(map[string]*string{"/c": str("c")}, base)

	merged, err := r.engine.MergeAll(ctx, []commit.Commit{a, b, base, c})
	require.NoError(t, err)
	for _, p := range []string{"/base", "/a", "/b", "/c"} {
		_, found := r.find(merged, p)
		assert.True(t, found, p)
	}

	empty, err := r.engine.MergeAll(ctx, nil)
	require.NoError(t, err)
	assert.True(t, r.trees.Equal(r.trees.Empty(), empty))
}

// a commit descending from an already merged one is merged against that commit, not against older history
func TestMergeAllBase(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	root := r.commit(map[string]*string{"/f": str("0")})
	a := r.commit(map[string]*string{"/a": str("a")}, root)
	b := r.commit(map[string]*string{"/f": str("1")}, root)
	c := r.commit(map[string]*string{"/f": str("2")}, b)

	for _, toPin := range []struct {
		Name    string
		Commits []commit.Commit
	}{
		{Name: "descendant last", Commits: []commit.Commit{a, b, c}},
		{Name: "descendant first", Commits: []commit.Commit{a, c, b}},
	} {
		fixture := toPin
		t.Run(fixture.Name, func(t *testing.T) {
			merged, err := r.engine.MergeAll(ctx, fixture.Commits)
			require.NoError(t, err)
			for _, expected := range []struct {
				Path  string
				Value string
			}{
				{Path: "/a", Value: "a"},
				{Path: "/f", Value: "2"},
			} {
				value, found := r.find(merged, expected.Path)
				require.True(t, found, expected.Path)
				assert.Equal(t, expected.Value, value, expected.Path)
			}
		})
	}
}

func TestDefaultResolver(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, merge.DefaultResolver(merge.Theirs()))

	base := r.commit(map[string]*string{"/a": str("base")})
	ours := r.commit(map[string]*string{"/a": str("ours")}, base)
	theirs := r.commit(map[string]*string{"/a": str("theirs")}, base)

	merged, err := r.engine.Merge(ctx, ours, theirs)
	require.NoError(t, err)
	value, _ := r.find(merged, "/a")
	assert.Equal(t, "theirs", value)

	_, err = r.engine.Merge(ctx, ours, theirs, merge.Resolve(nil))
	assert.True(t, errors.Is(err, status.ErrConflict), "a nil resolver overrides the default one")
}
