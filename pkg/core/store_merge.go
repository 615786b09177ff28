package core

import (
	"context"

	"github.com/oneconcern/irmin/pkg/commit"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/merge"
	"github.com/oneconcern/irmin/pkg/model"
	"go.uber.org/zap"
)

// MergeWithCommit merges a commit into the branch of this store.
//
// The branch is fast-forwarded when the commit descends from its head, and left unchanged when
// the commit is already part of its history. Otherwise, the trees are merged from their lowest
// common ancestors and a merge commit, with the head then the commit as parents, becomes the new head.
// Unresolved conflicts fail the merge with a *merge.ConflictError.
func (s *Store) MergeWithCommit(ctx context.Context, other commit.Commit, info model.Info, opts ...merge.MergeOption) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	if s.pinned == nil {
		if err := s.stored(ctx, other); err != nil {
			return false, err
		}
	}

	ok, err := s.update(ctx, "Merge", func(ctx context.Context, head *commit.Commit) (*commit.Commit, bool, error) {
		if head == nil {
			return &other, true, nil
		}
		if head.Hash() == other.Hash() {
			return nil, true, nil
		}

		merged, err := s.repo.graph.IsAncestor(ctx, other, *head)
		if err != nil || merged {
			return nil, merged, err
		}
		fastForward, err := s.repo.graph.IsAncestor(ctx, *head, other)
		if err != nil {
			return nil, false, err
		}
		if fastForward {
			return &other, true, nil
		}

		t, err := s.repo.merger.Merge(ctx, *head, other, opts...)
		if err != nil {
			return nil, false, err
		}
		c, err := s.repo.graph.New(ctx, []commit.Commit{*head, other}, t, info)
		if err != nil {
			return nil, false, err
		}
		return &c, true, nil
	})

	if err != nil && errors.Is(err, status.ErrConflict) {
		var conflict *merge.ConflictError
		if errors.As(err, &conflict) {
			s.logger().Info("merge conflict", zap.Stringer("commit", other.Hash()), zap.Int("conflicts", len(conflict.Paths)))
		}
		if s.repo.m != nil {
			s.repo.m.Volume.Updates.Conflict("Merge")
		}
	}
	return ok, err
}

// MergeWithBranch merges the head of another branch into the branch of this store
func (s *Store) MergeWithBranch(ctx context.Context, name string, info model.Info, opts ...merge.MergeOption) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	other, err := s.repo.OfBranch(ctx, name)
	if err != nil {
		return false, err
	}
	head, found, err := other.head(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		return false, status.ErrBranchNotFound.WrapMessage("%q", name)
	}
	return s.MergeWithCommit(ctx, head, info, opts...)
}

// MergeInto merges the head of a source store into the branch of a target store.
//
// Both stores must belong to the same repository. A source without any head leaves the target unchanged.
func MergeInto(ctx context.Context, target, source *Store, info model.Info, opts ...merge.MergeOption) (bool, error) {
	if target.repo != source.repo {
		return false, status.ErrPreconditionFailed.WrapMessage("cannot merge stores from different repositories")
	}
	if err := source.check(); err != nil {
		return false, err
	}
	head, found, err := source.head(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return target.MergeWithCommit(ctx, head, info, opts...)
}
