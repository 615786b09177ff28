package core

import (
	"context"

	"github.com/oneconcern/irmin/pkg/commit"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/tree"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Store is a handle on the current tree of a branch, or of a commit.
//
// Every read resolves the current head once, so that it works on a consistent snapshot.
// The handle borrows its repository and must not outlive it.
type Store struct {
	repo   *Repo
	branch string
	pinned *commit.Commit
	closed atomic.Bool
}

// Repo of this store
func (s *Store) Repo() *Repo {
	return s.repo
}

// Branch of this store, empty when the store is pinned to a commit
func (s *Store) Branch() string {
	return s.branch
}

// IsBranch tells if this store is bound to a branch
func (s *Store) IsBranch() bool {
	return s.pinned == nil
}

func (s *Store) String() string {
	if s.pinned != nil {
		return "commit:" + s.pinned.Hash().Short()
	}
	return "branch:" + s.branch
}

// Close releases the handle. Closing does not affect the repository.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *Store) check() error {
	if s.closed.Load() {
		return status.ErrClosed.WrapMessage("store %v", s)
	}
	return s.repo.check()
}

func (s *Store) logger() *zap.Logger {
	return s.repo.l.With(zap.Stringer("store", s))
}

// Head of the store: the head of its branch, or its pinned commit
func (s *Store) Head(ctx context.Context) (commit.Commit, bool, error) {
	if err := s.check(); err != nil {
		return commit.Commit{}, false, err
	}
	return s.head(ctx)
}

func (s *Store) head(ctx context.Context) (commit.Commit, bool, error) {
	if s.pinned != nil {
		return *s.pinned, true, nil
	}
	h, found, err := s.repo.branches.Get(ctx, s.branch)
	if err != nil || !found {
		return commit.Commit{}, false, err
	}
	c, err := s.repo.graph.Of(ctx, h)
	if err != nil {
		return commit.Commit{}, false, err
	}
	return c, true, nil
}

// Tree of the current head. A branch without any head has an empty tree.
func (s *Store) Tree(ctx context.Context) (tree.Tree, error) {
	if err := s.check(); err != nil {
		return tree.Tree{}, err
	}
	return s.snapshot(ctx)
}

func (s *Store) snapshot(ctx context.Context) (tree.Tree, error) {
	head, found, err := s.head(ctx)
	if err != nil {
		return tree.Tree{}, err
	}
	if !found {
		return s.repo.trees.Empty(), nil
	}
	return s.repo.graph.Tree(head), nil
}

// Find the contents at some path. Absent contents are reported as false, not as an error.
func (s *Store) Find(ctx context.Context, path model.Path) ([]byte, bool, error) {
	if err := s.check(); err != nil {
		return nil, false, err
	}
	t, err := s.snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	data, _, err := s.repo.trees.Find(ctx, t, path)
	return absent(data, err)
}

// FindMetadata finds the metadata of the contents at some path
func (s *Store) FindMetadata(ctx context.Context, path model.Path) (model.Metadata, bool, error) {
	if err := s.check(); err != nil {
		return model.DefaultMetadata, false, err
	}
	t, err := s.snapshot(ctx)
	if err != nil {
		return model.DefaultMetadata, false, err
	}
	e, err := s.repo.trees.Resolve(ctx, t, path)
	e, found, err := absent(e, err)
	if err != nil || !found || !e.IsContents() {
		return model.DefaultMetadata, false, err
	}
	return e.Metadata(), true, nil
}

// FindTree finds the subtree at some path
func (s *Store) FindTree(ctx context.Context, path model.Path) (tree.Tree, bool, error) {
	if err := s.check(); err != nil {
		return tree.Tree{}, false, err
	}
	t, err := s.snapshot(ctx)
	if err != nil {
		return tree.Tree{}, false, err
	}
	sub, err := s.repo.trees.FindTree(ctx, t, path)
	return absent(sub, err)
}

// Mem tells if there are contents at some path
func (s *Store) Mem(ctx context.Context, path model.Path) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	t, err := s.snapshot(ctx)
	if err != nil {
		return false, err
	}
	return s.repo.trees.Mem(ctx, t, path)
}

// MemTree tells if there is a subtree at some path
func (s *Store) MemTree(ctx context.Context, path model.Path) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	t, err := s.snapshot(ctx)
	if err != nil {
		return false, err
	}
	return s.repo.trees.MemTree(ctx, t, path)
}

// List the children of the subtree at some path, as full paths in sorted order.
// A path which is not a subtree has no children.
func (s *Store) List(ctx context.Context, path model.Path) ([]model.Path, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	t, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	names, err := s.repo.trees.List(ctx, t, path)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return []model.Path{}, nil
		}
		return nil, err
	}
	paths := make([]model.Path, 0, len(names))
	for _, name := range names {
		paths = append(paths, path.AppendPath(name))
	}
	return paths, nil
}

// History visits the head of the store then its ancestors, breadth first, up to depth hops from the head.
// A depth of zero or less visits the whole history. fn returning commit.ErrStop ends the walk.
func (s *Store) History(ctx context.Context, depth int, fn func(commit.Commit) error) error {
	if err := s.check(); err != nil {
		return err
	}
	head, found, err := s.head(ctx)
	if err != nil || !found {
		return err
	}
	return s.repo.graph.Ancestors(ctx, head, depth, fn)
}

// absent turns a not found error into a false result
func absent[T any](v T, err error) (T, bool, error) {
	var zero T
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, status.ErrNotFound):
		return zero, false, nil
	default:
		return zero, false, err
	}
}
