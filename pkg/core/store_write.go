package core

import (
	"bytes"
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oneconcern/irmin/pkg/branch"
	"github.com/oneconcern/irmin/pkg/commit"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/tree"
	opentracing "github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

// errLostRace is retried: the branch head moved since it was read
var errLostRace = errors.New("branch head moved")

// attempt builds the successor of the current head, or nil when no new head is needed.
// In the latter case, ok tells if the update is considered successful.
type attempt func(ctx context.Context, head *commit.Commit) (next *commit.Commit, ok bool, err error)

// update runs an attempt against the current head, then moves the head of the branch to the successor.
//
// When another writer moves the head meanwhile, the attempt is run again against the new head,
// waiting some time between attempts. After the configured number of attempts, update gives up and
// returns false.
func (s *Store) update(ctx context.Context, operation string, fn attempt) (updated bool, err error) {
	if err = s.check(); err != nil {
		return false, err
	}
	if s.pinned != nil {
		return false, status.ErrImmutableView.WrapMessage("%s on %v", operation, s)
	}

	span, ctx := s.span(ctx, operation)
	m := s.repo.m
	if m != nil {
		defer func(t0 time.Time) {
			m.Usage.UsedAll(t0, operation)(err)
		}(time.Now())
	}
	defer func() { finish(span, err) }()

	retry := s.repo.cfg.Retry
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retry.Initial
	policy.MaxInterval = retry.Max
	policy.MaxElapsedTime = 0
	var attempts uint64
	if retry.MaxAttempts > 1 {
		attempts = uint64(retry.MaxAttempts - 1)
	}

	l := s.logger().With(zap.String("operation", operation))
	var next *commit.Commit

	err = backoff.RetryNotify(func() error {
		var (
			current  *commit.Commit
			expected *hash.Hash
		)
		head, found, erh := s.head(ctx)
		if erh != nil {
			return backoff.Permanent(erh)
		}
		if found {
			current = &head
			h := head.Hash()
			expected = &h
		}

		candidate, ok, era := fn(ctx, current)
		if era != nil {
			return backoff.Permanent(era)
		}
		if candidate == nil {
			updated, next = ok, nil
			return nil
		}

		swapped, erc := s.repo.branches.CompareAndSet(ctx, s.branch, expected, candidate.Hash())
		if erc != nil {
			return backoff.Permanent(erc)
		}
		if !swapped {
			return errLostRace
		}
		updated, next = true, candidate
		return nil
	},
		backoff.WithContext(backoff.WithMaxRetries(policy, attempts), ctx),
		func(_ error, wait time.Duration) {
			l.Debug("branch head moved, retrying", zap.Duration("wait", wait))
			if m != nil {
				m.Volume.Updates.Retry(operation)
			}
		},
	)

	switch {
	case errors.Is(err, errLostRace):
		l.Warn("update abandoned after too many attempts", zap.Int("attempts", retry.MaxAttempts))
		if m != nil {
			m.Volume.Updates.Exhaust(operation)
		}
		return false, nil
	case err != nil:
		return false, err
	}

	if next != nil {
		l.Info("moved branch head", zap.Stringer("head", next.Hash()))
		if m != nil {
			m.Volume.Updates.Commit(operation)
		}
	}
	return updated, nil
}

// change applies an edit to the tree of the head, then commits the edited tree on top of the head.
// An edit returning false fails the update without any change.
func (s *Store) change(info model.Info, o writeOptions, edit func(context.Context, tree.Tree) (tree.Tree, bool, error)) attempt {
	return func(ctx context.Context, head *commit.Commit) (*commit.Commit, bool, error) {
		current := s.repo.trees.Empty()
		var parents []commit.Commit
		if head != nil {
			current = s.repo.graph.Tree(*head)
			parents = []commit.Commit{*head}
		}

		edited, ok, err := edit(ctx, current)
		if err != nil || !ok {
			return nil, false, err
		}
		if !o.allowEmpty && s.repo.trees.Equal(current, edited) {
			return nil, true, nil
		}

		c, err := s.repo.graph.New(ctx, parents, edited, info)
		if err != nil {
			return nil, false, err
		}
		return &c, true, nil
	}
}

// Set the contents at some path.
//
// It returns false when the update had to be abandoned because of concurrent writers.
// Setting the same contents again does not create any commit.
func (s *Store) Set(ctx context.Context, path model.Path, data []byte, info model.Info, opts ...WriteOption) (bool, error) {
	if err := s.repo.contents.Validate(data); err != nil {
		return false, err
	}
	o := writeSettings(opts)
	return s.update(ctx, "Set", s.change(info, o, func(ctx context.Context, t tree.Tree) (tree.Tree, bool, error) {
		edited, err := s.repo.trees.Add(ctx, t, path, data, o.metadata)
		return edited, err == nil, err
	}))
}

// SetTree grafts a tree at some path. Setting the root replaces the whole tree.
func (s *Store) SetTree(ctx context.Context, path model.Path, sub tree.Tree, info model.Info, opts ...WriteOption) (bool, error) {
	o := writeSettings(opts)
	return s.update(ctx, "SetTree", s.change(info, o, func(ctx context.Context, t tree.Tree) (tree.Tree, bool, error) {
		edited, err := s.repo.trees.AddTree(ctx, t, path, sub)
		return edited, err == nil, err
	}))
}

// TestAndSet sets the contents at some path, provided that the current contents are old.
//
// A nil old value expects no contents at this path. A nil value removes the contents.
// The precondition is checked against every head the update is attempted on: it returns
// false as soon as the current contents differ from old.
func (s *Store) TestAndSet(ctx context.Context, path model.Path, old, value []byte, info model.Info, opts ...WriteOption) (bool, error) {
	if value != nil {
		if err := s.repo.contents.Validate(value); err != nil {
			return false, err
		}
	}
	o := writeSettings(opts)
	return s.update(ctx, "TestAndSet", s.change(info, o, func(ctx context.Context, t tree.Tree) (tree.Tree, bool, error) {
		data, _, err := s.repo.trees.Find(ctx, t, path)
		current, found, err := absent(data, err)
		if err != nil {
			return tree.Tree{}, false, err
		}
		if found != (old != nil) || !bytes.Equal(current, old) {
			return tree.Tree{}, false, nil
		}

		var edited tree.Tree
		if value == nil {
			edited, err = s.repo.trees.Remove(ctx, t, path)
		} else {
			edited, err = s.repo.trees.Add(ctx, t, path, value, o.metadata)
		}
		return edited, err == nil, err
	}))
}

// TestAndSetTree grafts a tree at some path, provided that the current subtree there is old.
//
// A nil old tree expects no subtree at this path. A nil value removes the subtree.
func (s *Store) TestAndSetTree(ctx context.Context, path model.Path, old, value *tree.Tree, info model.Info, opts ...WriteOption) (bool, error) {
	o := writeSettings(opts)
	return s.update(ctx, "TestAndSetTree", s.change(info, o, func(ctx context.Context, t tree.Tree) (tree.Tree, bool, error) {
		sub, err := s.repo.trees.FindTree(ctx, t, path)
		current, found, err := absent(sub, err)
		if err != nil {
			return tree.Tree{}, false, err
		}
		if found != (old != nil) || (found && !s.repo.trees.Equal(current, *old)) {
			return tree.Tree{}, false, nil
		}

		var edited tree.Tree
		if value == nil {
			edited, err = s.repo.trees.Remove(ctx, t, path)
		} else {
			edited, err = s.repo.trees.AddTree(ctx, t, path, *value)
		}
		return edited, err == nil, err
	}))
}

// Remove the contents or subtree at some path. Removing a missing path does not create any commit.
func (s *Store) Remove(ctx context.Context, path model.Path, info model.Info, opts ...WriteOption) (bool, error) {
	o := writeSettings(opts)
	return s.update(ctx, "Remove", s.change(info, o, func(ctx context.Context, t tree.Tree) (tree.Tree, bool, error) {
		edited, err := s.repo.trees.Remove(ctx, t, path)
		return edited, err == nil, err
	}))
}

// SetHead moves the head of the branch to some commit, unconditionally
func (s *Store) SetHead(ctx context.Context, c commit.Commit) (err error) {
	if err = s.check(); err != nil {
		return err
	}
	if s.pinned != nil {
		return status.ErrImmutableView.WrapMessage("SetHead on %v", s)
	}
	span, ctx := s.span(ctx, "SetHead")
	defer func() { finish(span, err) }()

	if err = s.stored(ctx, c); err != nil {
		return err
	}
	if err = s.repo.branches.Set(ctx, s.branch, c.Hash()); err != nil {
		return err
	}
	s.logger().Info("set branch head", zap.Stringer("head", c.Hash()))
	return nil
}

// FastForward moves the head of the branch to a commit descending from it.
// It returns false when the commit does not descend from the head.
func (s *Store) FastForward(ctx context.Context, c commit.Commit) (ok bool, err error) {
	if err = s.check(); err != nil {
		return false, err
	}
	if s.pinned != nil {
		return false, status.ErrImmutableView.WrapMessage("FastForward on %v", s)
	}
	span, ctx := s.span(ctx, "FastForward")
	defer func() { finish(span, err) }()

	if err = s.stored(ctx, c); err != nil {
		return false, err
	}
	ok, err = branch.FastForward(ctx, s.repo.branches, s.repo.graph, s.branch, c.Hash())
	if err != nil {
		return false, err
	}
	if ok {
		s.logger().Info("fast-forwarded branch head", zap.Stringer("head", c.Hash()))
	}
	return ok, nil
}

// stored checks that a commit is stored before a branch points to it
func (s *Store) stored(ctx context.Context, c commit.Commit) error {
	found, err := s.repo.objects.Commits.Has(ctx, c.Hash())
	if err != nil {
		return err
	}
	if !found {
		return status.ErrNotFound.WrapMessage("commit %v", c.Hash().Short())
	}
	return nil
}

func (s *Store) span(ctx context.Context, operation string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, s.repo.tracer, "core."+operation)
	span.SetTag("store", s.String())
	return span, ctx
}

func finish(span opentracing.Span, err error) {
	if err != nil {
		span.SetTag("error", true)
		span.LogKV("event", "error", "message", err.Error())
	}
	span.Finish()
}
