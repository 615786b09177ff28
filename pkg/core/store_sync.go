package core

import (
	"context"

	"github.com/oneconcern/irmin/pkg/commit"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/remote"
	"go.uber.org/zap"
)

// Fetch the history of a remote, up to depth hops from its head, and return its head.
// No branch is updated.
func (s *Store) Fetch(ctx context.Context, r remote.Remote, depth int) (c commit.Commit, err error) {
	if err = s.check(); err != nil {
		return commit.Commit{}, err
	}
	span, ctx := s.span(ctx, "Fetch")
	defer func() { finish(span, err) }()

	res, err := s.repo.sync.Fetch(ctx, r, depth)
	if err != nil {
		return commit.Commit{}, err
	}
	return s.repo.graph.Of(ctx, res.Head)
}

// Pull fetches the head of a remote, then updates the branch of this store with it.
//
// With PullMerge, the branch is fast-forwarded when possible and merged with the fetched head
// otherwise. With PullSet, the branch head is replaced by the fetched head. Pull returns the
// resulting head of the branch.
func (s *Store) Pull(ctx context.Context, r remote.Remote, depth int, mode PullMode, info model.Info) (commit.Commit, error) {
	if err := s.check(); err != nil {
		return commit.Commit{}, err
	}
	if s.pinned != nil {
		return commit.Commit{}, status.ErrImmutableView.WrapMessage("Pull on %v", s)
	}

	fetched, err := s.Fetch(ctx, r, depth)
	if err != nil {
		return commit.Commit{}, err
	}

	switch mode {
	case PullSet:
		if err = s.SetHead(ctx, fetched); err != nil {
			return commit.Commit{}, err
		}
	default:
		ok, err := s.FastForward(ctx, fetched)
		if err != nil {
			return commit.Commit{}, err
		}
		if !ok {
			merged, err := s.MergeWithCommit(ctx, fetched, info)
			if err != nil {
				return commit.Commit{}, err
			}
			if !merged {
				return commit.Commit{}, status.ErrPreconditionFailed.WrapMessage("could not merge %v into %v", r, s)
			}
		}
	}

	head, _, err := s.head(ctx)
	if err != nil {
		return commit.Commit{}, err
	}
	s.logger().Info("pulled", zap.Stringer("remote", r), zap.Stringer("mode", mode), zap.Stringer("head", head.Hash()))
	return head, nil
}

// Push the head of this store to a remote, along with its history up to depth hops.
//
// The remote head moves only when it is an ancestor of the pushed head: pushing to a diverged
// remote fails with status.ErrDiverged, and leaves the remote head unchanged.
func (s *Store) Push(ctx context.Context, r remote.Remote, depth int) (res remote.Result, err error) {
	if err = s.check(); err != nil {
		return remote.Result{}, err
	}
	span, ctx := s.span(ctx, "Push")
	defer func() { finish(span, err) }()

	head, found, err := s.head(ctx)
	if err != nil {
		return remote.Result{}, err
	}
	if !found {
		return remote.Result{}, status.ErrNoHead.WrapMessage("nothing to push from %v", s)
	}
	return s.repo.sync.Push(ctx, r, head.Hash(), depth)
}

// StoreRemote exposes a store as a remote, e.g. to synchronize two repositories within the same process
func StoreRemote(s *Store) remote.Remote {
	return &storeRemote{s: s}
}

var _ remote.Remote = &storeRemote{}

type storeRemote struct {
	s *Store
}

func (r *storeRemote) String() string {
	return r.s.repo.objects.String() + "#" + r.s.String()
}

func (r *storeRemote) Head(ctx context.Context) (hash.Hash, bool, error) {
	head, found, err := r.s.Head(ctx)
	if err != nil || !found {
		return hash.Zero, false, err
	}
	return head.Hash(), true, nil
}

func (r *storeRemote) Has(ctx context.Context, key model.KindedKey) (bool, error) {
	if err := r.s.check(); err != nil {
		return false, err
	}
	return r.s.repo.objects.Has(ctx, key)
}

func (r *storeRemote) Get(ctx context.Context, key model.KindedKey) ([]byte, error) {
	if err := r.s.check(); err != nil {
		return nil, err
	}
	return r.s.repo.objects.GetRaw(ctx, key)
}

func (r *storeRemote) Put(ctx context.Context, key model.KindedKey, data []byte) error {
	if err := r.s.check(); err != nil {
		return err
	}
	return r.s.repo.objects.PutRaw(ctx, key, data)
}

func (r *storeRemote) CompareAndSet(ctx context.Context, expected *hash.Hash, next hash.Hash) (bool, error) {
	if err := r.s.check(); err != nil {
		return false, err
	}
	if !r.s.IsBranch() {
		return false, status.ErrImmutableView.WrapMessage("remote %v", r)
	}
	found, err := r.s.repo.objects.Commits.Has(ctx, next)
	if err != nil {
		return false, err
	}
	if !found {
		return false, status.ErrNotFound.WrapMessage("commit %v", next.Short())
	}
	return r.s.repo.branches.CompareAndSet(ctx, r.s.branch, expected, next)
}
