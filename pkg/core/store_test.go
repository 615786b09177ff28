package core_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/oneconcern/irmin/internal/rand"
	"github.com/oneconcern/irmin/pkg/commit"
	"github.com/oneconcern/irmin/pkg/config"
	"github.com/oneconcern/irmin/pkg/core"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/dlogger"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func leakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"),
		goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"),
	}
}

func testConfig() config.Repo {
	cfg := config.Default()
	cfg.LogLevel = dlogger.LogLevelNone
	cfg.Retry.Initial = time.Millisecond
	cfg.Retry.Max = 5 * time.Millisecond
	return cfg
}

func newTestRepo(t testing.TB, cfg config.Repo, opts ...core.Option) *core.Repo {
	var clock int64
	var mx sync.Mutex
	opts = append([]core.Option{core.WithClock(func() time.Time {
		mx.Lock()
		defer mx.Unlock()
		clock++
		return time.Unix(clock, 0)
	})}, opts...)

	repo, err := core.Open(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, repo.Close()) })
	return repo
}

func mainStore(t testing.TB, repo *core.Repo) *core.Store {
	s, err := repo.Main(context.Background())
	require.NoError(t, err)
	return s
}

func mustSet(t testing.TB, s *core.Store, path, value string) {
	ok, err := s.Set(context.Background(), model.ParsePath(path), []byte(value), s.Repo().Info("test", "set "+path))
	require.NoError(t, err)
	require.True(t, ok)
}

func mustFind(t testing.TB, s *core.Store, path string) string {
	data, found, err := s.Find(context.Background(), model.ParsePath(path))
	require.NoError(t, err)
	require.True(t, found, "expected contents at %s", path)
	return string(data)
}

func mustHead(t testing.TB, s *core.Store) commit.Commit {
	head, found, err := s.Head(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	return head
}

func historyLength(t testing.TB, s *core.Store) int {
	var n int
	require.NoError(t, s.History(context.Background(), 0, func(commit.Commit) error {
		n++
		return nil
	}))
	return n
}

func TestReads(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)
	ctx := context.Background()
	s := mainStore(t, newTestRepo(t, testConfig()))

	_, found, err := s.Head(ctx)
	require.NoError(t, err)
	assert.False(t, found, "a new branch has no head")
	_, found, err = s.Find(ctx, model.ParsePath("/a"))
	require.NoError(t, err)
	assert.False(t, found)

	mustSet(t, s, "/a/b", "v1")
	mustSet(t, s, "/a/c", "v2")
	mustSet(t, s, "/d", "v3")

	for _, toPin := range []struct {
		Path    string
		Mem     bool
		MemTree bool
	}{
		{Path: "/", MemTree: true},
		{Path: "/a", MemTree: true},
		{Path: "/a/b", Mem: true},
		{Path: "/d", Mem: true},
		{Path: "/x"},
		{Path: "/d/x"},
	} {
		fixture := toPin
		t.Run(fixture.Path, func(t *testing.T) {
			path := model.ParsePath(fixture.Path)
			mem, err := s.Mem(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, fixture.Mem, mem)

			memTree, err := s.MemTree(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, fixture.MemTree, memTree)

			_, found, err := s.Find(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, fixture.Mem, found)

			_, found, err = s.FindTree(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, fixture.MemTree, found)

			_, found, err = s.FindMetadata(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, fixture.Mem, found)
		})
	}

	assert.Equal(t, "v1", mustFind(t, s, "/a/b"))

	list, err := s.List(ctx, model.ParsePath("/a"))
	require.NoError(t, err)
	assert.Equal(t, []model.Path{model.ParsePath("/a/b"), model.ParsePath("/a/c")}, list)

	list, err = s.List(ctx, model.Root)
	require.NoError(t, err)
	assert.Equal(t, []model.Path{model.ParsePath("/a"), model.ParsePath("/d")}, list)

	list, err = s.List(ctx, model.ParsePath("/nowhere"))
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.Equal(t, 3, historyLength(t, s))
}

func TestSetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := mainStore(t, newTestRepo(t, testConfig()))

	mustSet(t, s, "/a", "v1")
	head := mustHead(t, s)

	mustSet(t, s, "/a", "v1")
	assert.Equal(t, head.Hash(), mustHead(t, s).Hash(), "an unchanged tree makes no commit")

	ok, err := s.Set(ctx, model.ParsePath("/a"), []byte("v1"), s.Repo().Info("test", "again"), core.AllowEmpty(true))
	require.NoError(t, err)
	require.True(t, ok)
	next := mustHead(t, s)
	assert.NotEqual(t, head.Hash(), next.Hash())
	assert.Equal(t, head.TreeHash(), next.TreeHash())
	assert.Equal(t, []string{"test", "again"}, []string{next.Info().Author, next.Info().Message})
}

func TestSetMetadata(t *testing.T) {
	ctx := context.Background()
	s := mainStore(t, newTestRepo(t, testConfig()))

	ok, err := s.Set(ctx, model.ParsePath("/bin/run"), []byte("#!/bin/sh"), s.Repo().Info("test", "exec"), core.WithMetadata(model.Executable))
	require.NoError(t, err)
	require.True(t, ok)

	m, found, err := s.FindMetadata(ctx, model.ParsePath("/bin/run"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.Executable, m)
}

func TestSetInvalid(t *testing.T) {
	ctx := context.Background()
	s := mainStore(t, newTestRepo(t, testConfig()))

	_, err := s.Set(ctx, model.Root, []byte("v"), s.Repo().Info("test", "root"))
	assert.True(t, errors.Is(err, status.ErrInvalidPath))

	_, err = s.Set(ctx, model.ParsePath("/a"), []byte{0xff, 0xfe}, s.Repo().Info("test", "not utf8"))
	assert.True(t, errors.Is(err, status.ErrInvalidContents))

	_, found, err := s.Head(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := mainStore(t, newTestRepo(t, testConfig()))

	ok, err := s.Remove(ctx, model.ParsePath("/a"), s.Repo().Info("test", "rm"))
	require.NoError(t, err)
	assert.True(t, ok)
	_, found, err := s.Head(ctx)
	require.NoError(t, err)
	assert.False(t, found, "removing from an empty branch makes no commit")

	mustSet(t, s, "/a/b", "v1")
	mustSet(t, s, "/c", "v2")

	ok, err = s.Remove(ctx, model.ParsePath("/a/b"), s.Repo().Info("test", "rm"))
	require.NoError(t, err)
	assert.True(t, ok)

	mem, err := s.Mem(ctx, model.ParsePath("/a/b"))
	require.NoError(t, err)
	assert.False(t, mem)
	memTree, err := s.MemTree(ctx, model.ParsePath("/a"))
	require.NoError(t, err)
	assert.True(t, memTree, "empty subtrees are retained")
	assert.Equal(t, "v2", mustFind(t, s, "/c"))
	assert.Equal(t, 3, historyLength(t, s))
}

func TestRemovePruneEmpty(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.PruneEmpty = true
	s := mainStore(t, newTestRepo(t, cfg))

	mustSet(t, s, "/a/b/c", "v1")
	mustSet(t, s, "/d", "v2")
	ok, err := s.Remove(ctx, model.ParsePath("/a/b/c"), s.Repo().Info("test", "rm"))
	require.NoError(t, err)
	require.True(t, ok)

	memTree, err := s.MemTree(ctx, model.ParsePath("/a"))
	require.NoError(t, err)
	assert.False(t, memTree)
}

func TestSetTree(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, testConfig())
	s := mainStore(t, repo)
	mustSet(t, s, "/x", "0")

	sub, err := repo.Trees().Add(ctx, repo.Trees().Empty(), model.ParsePath("/b/c"), []byte("v"), model.DefaultMetadata)
	require.NoError(t, err)

	ok, err := s.SetTree(ctx, model.ParsePath("/a"), sub, repo.Info("test", "graft"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", mustFind(t, s, "/a/b/c"))

	grafted, found, err := s.FindTree(ctx, model.ParsePath("/a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, repo.Trees().Equal(sub, grafted))

	// a stored tree can be found again by its hash
	h := repo.Trees().Hash(grafted)
	loaded, err := repo.Tree(ctx, h)
	require.NoError(t, err)
	assert.True(t, repo.Trees().Equal(sub, loaded))
}

func TestTestAndSet(t *testing.T) {
	ctx := context.Background()
	s := mainStore(t, newTestRepo(t, testConfig()))
	path := model.ParsePath("/a/b")
	info := s.Repo().Info("test", "tas")

	for _, toPin := range []struct {
		Name     string
		Old      []byte
		New      []byte
		Expected bool
		Value    *string
	}{
		{Name: "expect absent, but absent", Old: nil, New: []byte("v1"), Expected: true, Value: str("v1")},
		{Name: "expect absent, but present", Old: nil, New: []byte("v2"), Expected: false, Value: str("v1")},
		{Name: "wrong old value", Old: []byte("v0"), New: []byte("v2"), Expected: false, Value: str("v1")},
		{Name: "right old value", Old: []byte("v1"), New: []byte("v2"), Expected: true, Value: str("v2")},
		{Name: "remove", Old: []byte("v2"), New: nil, Expected: true},
		{Name: "remove absent", Old: nil, New: nil, Expected: true},
		{Name: "empty contents are not absent", Old: nil, New: []byte{}, Expected: true, Value: str("")},
		{Name: "empty old value", Old: []byte{}, New: []byte("v3"), Expected: true, Value: str("v3")},
	} {
		fixture := toPin
		t.Run(fixture.Name, func(t *testing.T) {
			before, _, err := s.Head(ctx)
			require.NoError(t, err)

			ok, err := s.TestAndSet(ctx, path, fixture.Old, fixture.New, info)
			require.NoError(t, err)
			assert.Equal(t, fixture.Expected, ok)

			data, found, err := s.Find(ctx, path)
			require.NoError(t, err)
			if fixture.Value == nil {
				assert.False(t, found)
			} else {
				require.True(t, found)
				assert.Equal(t, *fixture.Value, string(data))
			}

			if !fixture.Expected {
				after, _, err := s.Head(ctx)
				require.NoError(t, err)
				assert.Equal(t, before.Hash(), after.Hash(), "a failed precondition leaves the head unchanged")
			}
		})
	}
}

func TestTestAndSetTree(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, testConfig())
	s := mainStore(t, repo)
	mustSet(t, s, "/a/b", "v1")
	info := repo.Info("test", "tas")

	current, found, err := s.FindTree(ctx, model.ParsePath("/a"))
	require.NoError(t, err)
	require.True(t, found)

	replacement, err := repo.Trees().Add(ctx, repo.Trees().Empty(), model.ParsePath("/c"), []byte("v2"), model.DefaultMetadata)
	require.NoError(t, err)

	ok, err := s.TestAndSetTree(ctx, model.ParsePath("/a"), nil, &replacement, info)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.TestAndSetTree(ctx, model.ParsePath("/a"), &replacement, &replacement, info)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.TestAndSetTree(ctx, model.ParsePath("/a"), &current, &replacement, info)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", mustFind(t, s, "/a/c"))

	ok, err = s.TestAndSetTree(ctx, model.ParsePath("/a"), &replacement, nil, info)
	require.NoError(t, err)
	assert.True(t, ok)
	memTree, err := s.MemTree(ctx, model.ParsePath("/a"))
	require.NoError(t, err)
	assert.False(t, memTree)
}

// two concurrent writers expecting the same value: exactly one of them wins
func TestConcurrentTestAndSet(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)
	ctx := context.Background()
	repo := newTestRepo(t, testConfig())
	s := mainStore(t, repo)
	path := model.ParsePath("/a/b")

	mustSet(t, s, "/a/b", "v1")
	c1 := mustHead(t, s)

	const writers = 8
	var wg sync.WaitGroup
	results := make([]bool, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value := fmt.Sprintf("v%d", i+2)
			results[i], errs[i] = s.TestAndSet(ctx, path, []byte("v1"), []byte(value), repo.Info(value, "tas"))
		}(i)
	}
	wg.Wait()

	var winners []int
	for i := range results {
		require.NoError(t, errs[i])
		if results[i] {
			winners = append(winners, i)
		}
	}
	require.Len(t, winners, 1)

	c2 := mustHead(t, s)
	assert.Equal(t, []hash.Hash{c1.Hash()}, c2.Parents())
	assert.Equal(t, fmt.Sprintf("v%d", winners[0]+2), mustFind(t, s, "/a/b"))
	assert.Equal(t, 2, historyLength(t, s))
}

// concurrent read-modify-write increments are serialized into a total order of commits
func TestConcurrentIncrements(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)
	ctx := context.Background()
	cfg := testConfig()
	cfg.Retry.MaxAttempts = 1
	repo := newTestRepo(t, cfg)
	s := mainStore(t, repo)
	path := model.ParsePath("/counter")
	mustSet(t, s, "/counter", "0")

	const (
		writers    = 4
		increments = 5
	)
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for done := 0; done < increments; {
				data, _, err := s.Find(ctx, path)
				if err != nil {
					errs <- err
					return
				}
				n, err := strconv.Atoi(string(data))
				if err != nil {
					errs <- err
					return
				}
				ok, err := s.TestAndSet(ctx, path, data, []byte(strconv.Itoa(n+1)), repo.Info("test", "increment"))
				if err != nil {
					errs <- err
					return
				}
				if ok {
					done++
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, strconv.Itoa(writers*increments), mustFind(t, s, "/counter"))
	assert.Equal(t, writers*increments+1, historyLength(t, s))
}

// readers of a branch on disk never fail while the branch is being written
func TestReadsDuringWrites(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)

	for _, toPin := range []struct {
		Name   string
		Atomic bool
	}{
		{Name: "fs", Atomic: true},
		{Name: "fs in-place objects", Atomic: false},
	} {
		fixture := toPin

		t.Run(fixture.Name, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig()
			cfg.Backend = config.BackendFS
			cfg.Root = t.TempDir()
			cfg.AtomicWrites = fixture.Atomic
			cfg.CacheSize = 0
			repo := newTestRepo(t, cfg)
			s := mainStore(t, repo)
			path := model.ParsePath("/counter")
			mustSet(t, s, "/counter", "0")

			const (
				readers = 4
				writes  = 100
			)
			var (
				wg       sync.WaitGroup
				done     = make(chan struct{})
				mx       sync.Mutex
				failures []error
				reads    int
			)
			for i := 0; i < readers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						select {
						case <-done:
							return
						default:
						}
						_, found, err := s.Find(ctx, path)
						if err == nil && !found {
							err = fmt.Errorf("counter vanished")
						}
						mx.Lock()
						reads++
						if err != nil {
							failures = append(failures, err)
						}
						mx.Unlock()
					}
				}()
			}

			for i := 1; i <= writes; i++ {
				mustSet(t, s, "/counter", strconv.Itoa(i))
			}
			close(done)
			wg.Wait()

			assert.Positive(t, reads)
			assert.Empty(t, failures, "read failures while writing")
			assert.Equal(t, strconv.Itoa(writes), mustFind(t, s, "/counter"))
		})
	}
}

func TestImmutableView(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, testConfig())
	s := mainStore(t, repo)
	mustSet(t, s, "/a", "v1")
	c1 := mustHead(t, s)
	mustSet(t, s, "/a", "v2")

	pinned, err := repo.OfCommit(ctx, c1)
	require.NoError(t, err)
	assert.False(t, pinned.IsBranch())
	assert.Empty(t, pinned.Branch())
	assert.Equal(t, "v1", mustFind(t, pinned, "/a"))

	info := repo.Info("test", "nope")
	for _, toPin := range []struct {
		Name string
		Op   func() error
	}{
		{Name: "set", Op: func() error { _, err := pinned.Set(ctx, model.ParsePath("/a"), []byte("v3"), info); return err }},
		{Name: "remove", Op: func() error { _, err := pinned.Remove(ctx, model.ParsePath("/a"), info); return err }},
		{Name: "test and set", Op: func() error {
			_, err := pinned.TestAndSet(ctx, model.ParsePath("/a"), []byte("v1"), []byte("v3"), info)
			return err
		}},
		{Name: "set tree", Op: func() error {
			_, err := pinned.SetTree(ctx, model.Root, repo.Trees().Empty(), info)
			return err
		}},
		{Name: "set head", Op: func() error { return pinned.SetHead(ctx, c1) }},
		{Name: "fast-forward", Op: func() error { _, err := pinned.FastForward(ctx, c1); return err }},
		{Name: "merge", Op: func() error { _, err := pinned.MergeWithCommit(ctx, c1, info); return err }},
	} {
		fixture := toPin
		t.Run(fixture.Name, func(t *testing.T) {
			assert.True(t, errors.Is(fixture.Op(), status.ErrImmutableView))
		})
	}
	assert.Equal(t, "v1", mustFind(t, pinned, "/a"))
}

func TestHeads(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, testConfig())
	s := mainStore(t, repo)

	mustSet(t, s, "/a", "v1")
	c1 := mustHead(t, s)
	mustSet(t, s, "/a", "v2")
	c2 := mustHead(t, s)

	ok, err := s.FastForward(ctx, c1)
	require.NoError(t, err)
	assert.False(t, ok, "cannot fast-forward to an ancestor")
	assert.Equal(t, c2.Hash(), mustHead(t, s).Hash())

	require.NoError(t, s.SetHead(ctx, c1))
	assert.Equal(t, "v1", mustFind(t, s, "/a"))

	ok, err = s.FastForward(ctx, c2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", mustFind(t, s, "/a"))

	other, err := repo.OfBranch(ctx, "feature/x")
	require.NoError(t, err)
	ok, err = other.FastForward(ctx, c1)
	require.NoError(t, err)
	assert.True(t, ok, "an unset branch is fast-forwarded to any commit")

	branches, err := repo.Branches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"feature/x", "main"}, branches)

	require.NoError(t, repo.RemoveBranch(ctx, "feature/x"))
	branches, err = repo.Branches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, branches)

	unknown, err := repo.Commits().New(ctx, nil, repo.Trees().Empty(), repo.Info("test", "dangling"))
	require.NoError(t, err)
	require.NoError(t, s.SetHead(ctx, unknown), "any stored commit may become a head")

	_, err = repo.OfBranch(ctx, "bad name")
	assert.True(t, errors.Is(err, status.ErrInvalidBranch))
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	s := mainStore(t, newTestRepo(t, testConfig()))

	for i := 0; i < 4; i++ {
		mustSet(t, s, "/a", strconv.Itoa(i))
	}

	var messages []string
	require.NoError(t, s.History(ctx, 1, func(c commit.Commit) error {
		messages = append(messages, mustFindIn(t, s, c, "/a"))
		return nil
	}))
	assert.Equal(t, []string{"3", "2"}, messages)

	var visited int
	require.NoError(t, s.History(ctx, 0, func(commit.Commit) error {
		visited++
		if visited == 2 {
			return commit.ErrStop
		}
		return nil
	}))
	assert.Equal(t, 2, visited)
}

func TestRandomPaths(t *testing.T) {
	ctx := context.Background()
	s := mainStore(t, newTestRepo(t, testConfig()))

	expected := make(map[string]string)
	for i := 0; i < 20; i++ {
		path := rand.Path(3, 6)
		expected[model.ParsePath(path).String()] = rand.LetterString(32)
	}
	for path, value := range expected {
		mustSet(t, s, path, value)
	}
	for path, value := range expected {
		assert.Equal(t, value, mustFind(t, s, path))
	}

	// the same contents in another branch share all their objects
	head := mustHead(t, s)
	other, err := s.Repo().OfBranch(ctx, "copy")
	require.NoError(t, err)
	require.NoError(t, other.SetHead(ctx, head))
	t1, err := s.Tree(ctx)
	require.NoError(t, err)
	t2, err := other.Tree(ctx)
	require.NoError(t, err)
	assert.True(t, s.Repo().Trees().Equal(t1, t2))
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	repo, err := core.Open(ctx, testConfig())
	require.NoError(t, err)
	s := mainStore(t, repo)
	mustSet(t, s, "/a", "v1")

	other := mainStore(t, repo)
	require.NoError(t, other.Close())
	_, _, err = other.Find(ctx, model.ParsePath("/a"))
	assert.True(t, errors.Is(err, status.ErrClosed))
	assert.Equal(t, "v1", mustFind(t, s, "/a"), "closing a store does not affect others")

	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())
	_, _, err = s.Find(ctx, model.ParsePath("/a"))
	assert.True(t, errors.Is(err, status.ErrClosed))
	_, err = repo.Main(ctx)
	assert.True(t, errors.Is(err, status.ErrClosed))
}

func mustFindIn(t testing.TB, s *core.Store, c commit.Commit, path string) string {
	pinned, err := s.Repo().OfCommit(context.Background(), c)
	require.NoError(t, err)
	return mustFind(t, pinned, path)
}

func str(s string) *string {
	return &s
}
