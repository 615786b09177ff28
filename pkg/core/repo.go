/*
 * Copyright © 2019 One Concern
 *
 */

package core

import (
	"context"
	"time"

	"github.com/oneconcern/irmin/pkg/branch"
	"github.com/oneconcern/irmin/pkg/commit"
	"github.com/oneconcern/irmin/pkg/config"
	"github.com/oneconcern/irmin/pkg/contents"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/dlogger"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/merge"
	"github.com/oneconcern/irmin/pkg/metrics"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/objects"
	"github.com/oneconcern/irmin/pkg/remote"
	"github.com/oneconcern/irmin/pkg/storage"
	"github.com/oneconcern/irmin/pkg/tree"
	opentracing "github.com/opentracing/opentracing-go"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Repo is an opened repository.
//
// A Repo is safe for concurrent use. It must be closed when no longer used, and stores
// obtained from it must not be used after that.
type Repo struct {
	cfg      config.Repo
	l        *zap.Logger
	tracer   opentracing.Tracer
	clock    model.Clock
	contents contents.Type

	resolver       merge.Resolver
	customResolver bool

	backend  *backend
	objects  *objects.Store
	trees    *tree.Store
	graph    *commit.Graph
	branches branch.Table
	merger   *merge.Engine
	sync     *remote.Sync

	closed atomic.Bool

	metrics.Enable
	m *M
}

// Open a repository, as configured
func Open(ctx context.Context, cfg config.Repo, opts ...Option) (*Repo, error) {
	r := &Repo{
		cfg:    cfg,
		tracer: opentracing.GlobalTracer(),
		clock:  model.DefaultClock,
	}
	for _, apply := range opts {
		apply(r)
	}

	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = r.cfg

	if r.l == nil {
		l, err := dlogger.GetLogger(cfg.LogLevel)
		if err != nil {
			return nil, status.ErrInvalidConfig.Wrap(err)
		}
		r.l = l
	}

	hasher, err := hash.ByName(cfg.Hash)
	if err != nil {
		return nil, status.ErrInvalidConfig.Wrap(err)
	}
	r.contents, err = contents.ByName(cfg.Contents)
	if err != nil {
		return nil, err
	}
	if !r.customResolver {
		r.resolver = r.contents.Merge()
	}

	if cfg.Metrics {
		metrics.Init(metrics.WithLogger(r.l))
		r.EnableMetrics(true)
		r.m = r.EnsureMetrics("core", &M{}).(*M)
	}

	r.backend, err = openBackend(ctx, cfg, r.l)
	if err != nil {
		return nil, err
	}
	r.branches = r.backend.branches

	r.objects, err = objects.New(
		storage.Instrument(r.tracer, r.l, r.backend.objects),
		objects.Hasher(hasher),
		objects.CacheSize(cfg.CacheSize),
		objects.Logger(r.l),
		objects.WithMetrics(cfg.Metrics),
	)
	if err != nil {
		_ = r.backend.close()
		return nil, err
	}

	r.trees = tree.New(r.objects, tree.WithPruneEmpty(cfg.PruneEmpty), tree.Logger(r.l))
	r.graph = commit.NewGraph(r.trees, commit.Logger(r.l))
	r.merger = merge.New(r.graph, merge.Logger(r.l), merge.DefaultResolver(r.resolver))
	r.sync = remote.New(r.graph, remote.Logger(r.l), remote.WithMetrics(cfg.Metrics))

	r.l.Debug("opened repository",
		zap.String("backend", string(cfg.Backend)),
		zap.Stringer("objects", r.objects),
		zap.String("hash", hasher.Name()),
		zap.String("contents", r.contents.Name()),
	)
	return r, nil
}

// Close the repository, releasing its backend
func (r *Repo) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if r.cfg.Metrics {
		metrics.Flush()
	}
	if err := r.backend.close(); err != nil {
		return status.ErrBackend.Wrap(err)
	}
	r.l.Debug("closed repository", zap.Stringer("objects", r.objects))
	return nil
}

func (r *Repo) check() error {
	if r.closed.Load() {
		return status.ErrClosed
	}
	return nil
}

// Config of the repository
func (r *Repo) Config() config.Repo {
	return r.cfg
}

// Logger of the repository
func (r *Repo) Logger() *zap.Logger {
	return r.l
}

// ContentsType is the type of contents held by this repository
func (r *Repo) ContentsType() contents.Type {
	return r.contents
}

// Objects of the repository
func (r *Repo) Objects() *objects.Store {
	return r.objects
}

// Trees of the repository
func (r *Repo) Trees() *tree.Store {
	return r.trees
}

// Commits of the repository
func (r *Repo) Commits() *commit.Graph {
	return r.graph
}

// Merger of the repository
func (r *Repo) Merger() *merge.Engine {
	return r.merger
}

// BranchTable of the repository
func (r *Repo) BranchTable() branch.Table {
	return r.branches
}

// Sync transfers objects between this repository and remotes
func (r *Repo) Sync() *remote.Sync {
	return r.sync
}

// Info for a new commit, dated by the clock of the repository
func (r *Repo) Info(author, message string) model.Info {
	return model.NewInfoAt(r.clock, author, message)
}

// Main store, bound to the default branch
func (r *Repo) Main(ctx context.Context) (*Store, error) {
	return r.OfBranch(ctx, model.DefaultBranch)
}

// OfBranch returns a store bound to a branch. The branch does not need to exist yet.
func (r *Repo) OfBranch(_ context.Context, name string) (*Store, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if err := model.ValidateBranchName(name); err != nil {
		return nil, err
	}
	return &Store{repo: r, branch: name}, nil
}

// OfCommit returns a read-only store pinned to a commit
func (r *Repo) OfCommit(ctx context.Context, c commit.Commit) (*Store, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if c.IsZero() {
		return nil, status.ErrInvalidHash.WrapMessage("no commit")
	}
	found, err := r.objects.Commits.Has(ctx, c.Hash())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, status.ErrNotFound.WrapMessage("commit %v", c.Hash().Short())
	}
	pinned := c
	return &Store{repo: r, pinned: &pinned}, nil
}

// Branches of the repository, in sorted order
func (r *Repo) Branches(ctx context.Context) ([]string, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.branches.List(ctx)
}

// RemoveBranch removes a branch. Commits remain stored.
func (r *Repo) RemoveBranch(ctx context.Context, name string) (err error) {
	if err = r.check(); err != nil {
		return err
	}
	if r.m != nil {
		defer func(t0 time.Time) {
			r.m.Usage.UsedAll(t0, "RemoveBranch")(err)
		}(time.Now())
	}

	if err = r.branches.Remove(ctx, name); err != nil {
		return err
	}
	r.l.Info("removed branch", zap.String("branch", name))
	return nil
}

// Commit stored with some hash
func (r *Repo) Commit(ctx context.Context, h hash.Hash) (commit.Commit, error) {
	if err := r.check(); err != nil {
		return commit.Commit{}, err
	}
	return r.graph.Of(ctx, h)
}

// Tree stored with some hash
func (r *Repo) Tree(ctx context.Context, h hash.Hash) (tree.Tree, error) {
	if err := r.check(); err != nil {
		return tree.Tree{}, err
	}
	return r.trees.Of(ctx, h)
}

// Contents stored with some hash
func (r *Repo) Contents(ctx context.Context, h hash.Hash) ([]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.objects.Contents.Get(ctx, h)
}

// PutContents stores contents, after checking them against the type of contents of the repository
func (r *Repo) PutContents(ctx context.Context, data []byte) (hash.Hash, error) {
	if err := r.check(); err != nil {
		return hash.Zero, err
	}
	if err := r.contents.Validate(data); err != nil {
		return hash.Zero, err
	}
	return r.objects.Contents.Put(ctx, data)
}
