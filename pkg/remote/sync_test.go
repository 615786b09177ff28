package remote_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/oneconcern/irmin/pkg/branch"
	"github.com/oneconcern/irmin/pkg/commit"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/objects"
	"github.com/oneconcern/irmin/pkg/remote"
	"github.com/oneconcern/irmin/pkg/storage/localfs"
	"github.com/oneconcern/irmin/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type testRepo struct {
	t        testing.TB
	objects  *objects.Store
	trees    *tree.Store
	graph    *commit.Graph
	branches branch.Table
	sync     *remote.Sync
	clock    int64
}

func newTestRepo(t testing.TB) *testRepo {
	objs, err := objects.New(localfs.NewMemory())
	require.NoError(t, err)
	trees := tree.New(objs)
	graph := commit.NewGraph(trees)
	return &testRepo{
		t:        t,
		objects:  objs,
		trees:    trees,
		graph:    graph,
		branches: branch.NewMemory(),
		sync:     remote.New(graph, remote.Concurrency(4)),
	}
}

// chain of commits, each adding one file to the tree of its parent
func (r *testRepo) chain(n int, prefix string, parent *commit.Commit) []commit.Commit {
	ctx := context.Background()
	commits := make([]commit.Commit, 0, n)
	t := r.trees.Empty()
	var parents []commit.Commit
	if parent != nil {
		t = r.graph.Tree(*parent)
		parents = []commit.Commit{*parent}
	}
	for i := 0; i < n; i++ {
		var err error
		t, err = r.trees.Add(ctx, t, model.NewPath(prefix, fmt.Sprintf("file-%d", i)), []byte(fmt.Sprintf("%s-%d", prefix, i)), model.DefaultMetadata)
		require.NoError(r.t, err)

		r.clock++
		clock := r.clock
		info := model.NewInfoAt(func() time.Time { return time.Unix(clock, 0) }, "test", fmt.Sprintf("commit %d", i))
		c, err := r.graph.New(ctx, parents, t, info)
		require.NoError(r.t, err)
		commits = append(commits, c)
		parents = []commit.Commit{c}
	}
	return commits
}

// branchRemote serves a branch of a test repository
type branchRemote struct {
	repo   *testRepo
	branch string
	casFn  func() bool
}

func (b *branchRemote) String() string { return "test/" + b.branch }

func (b *branchRemote) Head(ctx context.Context) (hash.Hash, bool, error) {
	return b.repo.branches.Get(ctx, b.branch)
}

func (b *branchRemote) Has(ctx context.Context, key model.KindedKey) (bool, error) {
	return b.repo.objects.Has(ctx, key)
}

func (b *branchRemote) Get(ctx context.Context, key model.KindedKey) ([]byte, error) {
	return b.repo.objects.GetRaw(ctx, key)
}

func (b *branchRemote) Put(ctx context.Context, key model.KindedKey, data []byte) error {
	return b.repo.objects.PutRaw(ctx, key, data)
}

func (b *branchRemote) CompareAndSet(ctx context.Context, expected *hash.Hash, next hash.Hash) (bool, error) {
	if b.casFn != nil && !b.casFn() {
		return false, nil
	}
	return b.repo.branches.CompareAndSet(ctx, b.branch, expected, next)
}

func leakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"),
		goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"),
	}
}

func TestFetch(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)
	ctx := context.Background()

	source := newTestRepo(t)
	commits := source.chain(3, "a", nil)
	head := commits[len(commits)-1]
	require.NoError(t, source.branches.Set(ctx, "main", head.Hash()))

	target := newTestRepo(t)
	r := &branchRemote{repo: source, branch: "main"}

	res, err := target.sync.Fetch(ctx, r, 0)
	require.NoError(t, err)
	assert.Equal(t, head.Hash(), res.Head)
	// 3 commits, 3 root nodes, 3 "a" nodes, 3 contents
	assert.Equal(t, 12, res.Objects)
	assert.False(t, res.Updated)

	fetched, err := target.graph.Of(ctx, head.Hash())
	require.NoError(t, err)
	data, _, err := target.trees.Find(ctx, target.graph.Tree(fetched), model.ParsePath("/a/file-0"))
	require.NoError(t, err)
	assert.Equal(t, "a-0", string(data))

	_, found, err := target.branches.Get(ctx, "main")
	require.NoError(t, err)
	assert.False(t, found, "fetch does not move local branches")

	again, err := target.sync.Fetch(ctx, r, 0)
	require.NoError(t, err)
	assert.Equal(t, res.Head, again.Head)
	assert.Equal(t, 0, again.Objects, "nothing left to fetch")

	// new commits on the remote only bring the new objects
	more := source.chain(1, "b", &head)
	require.NoError(t, source.branches.Set(ctx, "main", more[0].Hash()))
	res, err = target.sync.Fetch(ctx, r, 0)
	require.NoError(t, err)
	assert.Equal(t, more[0].Hash(), res.Head)
	assert.Equal(t, 4, res.Objects, "commit, root node, b node and contents")
}

func TestFetchDepth(t *testing.T) {
	ctx := context.Background()

	source := newTestRepo(t)
	commits := source.chain(4, "a", nil)
	head := commits[3]
	require.NoError(t, source.branches.Set(ctx, "main", head.Hash()))

	target := newTestRepo(t)
	_, err := target.sync.Fetch(ctx, &branchRemote{repo: source, branch: "main"}, 1)
	require.NoError(t, err)

	for i, c := range commits {
		found, err := target.objects.Commits.Has(ctx, c.Hash())
		require.NoError(t, err)
		assert.Equal(t, i >= 2, found, "commit %d", i)
	}

	// a truncated history is still walked
	var visited int
	fetched, err := target.graph.Of(ctx, head.Hash())
	require.NoError(t, err)
	require.NoError(t, target.graph.Ancestors(ctx, fetched, 0, func(commit.Commit) error {
		visited++
		return nil
	}))
	assert.Equal(t, 2, visited)
}

// an unlimited fetch completes the history left truncated by a shallow fetch
func TestFetchDeepensShallowHistory(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)
	ctx := context.Background()

	for _, toPin := range []struct {
		Name       string
		Depth      int
		NewCommits int
	}{
		{Name: "unchanged remote, depth 1", Depth: 1},
		{Name: "unchanged remote, depth 2", Depth: 2},
		{Name: "remote moved, depth 1", Depth: 1, NewCommits: 2},
	} {
		fixture := toPin
		t.Run(fixture.Name, func(t *testing.T) {
			source := newTestRepo(t)
			commits := source.chain(5, "a", nil)
			head := commits[len(commits)-1]
			require.NoError(t, source.branches.Set(ctx, "main", head.Hash()))

			target := newTestRepo(t)
			r := &branchRemote{repo: source, branch: "main"}
			_, err := target.sync.Fetch(ctx, r, fixture.Depth)
			require.NoError(t, err)

			if fixture.NewCommits > 0 {
				more := source.chain(fixture.NewCommits, "b", &head)
				head = more[len(more)-1]
				require.NoError(t, source.branches.Set(ctx, "main", head.Hash()))
			}

			res, err := target.sync.Fetch(ctx, r, 0)
			require.NoError(t, err)
			assert.Positive(t, res.Objects)

			countHistory := func(repo *testRepo) int {
				c, err := repo.graph.Of(ctx, head.Hash())
				require.NoError(t, err)
				var n int
				require.NoError(t, repo.graph.Ancestors(ctx, c, 0, func(commit.Commit) error {
					n++
					return nil
				}))
				return n
			}
			assert.Equal(t, countHistory(source), countHistory(target))
			for i, c := range commits {
				found, err := target.objects.Commits.Has(ctx, c.Hash())
				require.NoError(t, err)
				assert.True(t, found, "commit %d", i)
			}

			again, err := target.sync.Fetch(ctx, r, 0)
			require.NoError(t, err)
			assert.Equal(t, 0, again.Objects, "history is complete")
		})
	}
}

func TestFetchNoHead(t *testing.T) {
	target := newTestRepo(t)
	_, err := target.sync.Fetch(context.Background(), &branchRemote{repo: newTestRepo(t), branch: "main"}, 0)
	assert.True(t, errors.Is(err, status.ErrNoHead))
}

func TestPush(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)
	ctx := context.Background()

	local := newTestRepo(t)
	commits := local.chain(2, "a", nil)
	head := commits[1]

	upstream := newTestRepo(t)
	r := &branchRemote{repo: upstream, branch: "main"}

	res, err := local.sync.Push(ctx, r, head.Hash(), 0)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, 8, res.Objects)

	remoteHead, found, err := upstream.branches.Get(ctx, "main")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, head.Hash(), remoteHead)

	res, err = local.sync.Push(ctx, r, head.Hash(), 0)
	require.NoError(t, err)
	assert.False(t, res.Updated, "up to date")
	assert.Equal(t, 0, res.Objects)

	next := local.chain(1, "b", &head)
	res, err = local.sync.Push(ctx, r, next[0].Hash(), 0)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, 4, res.Objects)

	// the remote has moved away
	unrelated := upstream.chain(1, "u", nil)
	require.NoError(t, upstream.branches.Set(ctx, "main", unrelated[0].Hash()))
	_, err = local.sync.Push(ctx, r, next[0].Hash(), 0)
	assert.True(t, errors.Is(err, status.ErrDiverged))
	remoteHead, _, err = upstream.branches.Get(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, unrelated[0].Hash(), remoteHead)
}

func TestPushLosesRace(t *testing.T) {
	ctx := context.Background()

	local := newTestRepo(t)
	head := local.chain(1, "a", nil)[0]
	upstream := newTestRepo(t)
	r := &branchRemote{repo: upstream, branch: "main", casFn: func() bool { return false }}

	res, err := local.sync.Push(ctx, r, head.Hash(), 0)
	assert.True(t, errors.Is(err, status.ErrDiverged))
	assert.False(t, res.Updated)

	_, found, err := upstream.branches.Get(ctx, "main")
	require.NoError(t, err)
	assert.False(t, found)

	stored, err := upstream.objects.Commits.Has(ctx, head.Hash())
	require.NoError(t, err)
	assert.True(t, stored, "objects are transferred before the head moves")
}
