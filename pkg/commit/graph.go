package commit

import (
	"context"

	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/objects"
	"github.com/oneconcern/irmin/pkg/tree"
	"go.uber.org/zap"
)

var (
	// ErrStop is returned by a visitor to end a walk over the graph without error
	ErrStop = errors.New("stop walking")

	// ErrSkipParents is returned by a visitor to not walk the parents of the visited commit
	ErrSkipParents = errors.New("skip parents")
)

// Graph of commits
type Graph struct {
	objects *objects.Store
	trees   *tree.Store
	l       *zap.Logger
}

// Option for a commit graph
type Option func(*Graph)

// Logger for the commit graph
func Logger(l *zap.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.l = l
		}
	}
}

// NewGraph builds a commit graph storing commits along with the trees they reference
func NewGraph(trees *tree.Store, opts ...Option) *Graph {
	g := &Graph{
		objects: trees.Objects(),
		trees:   trees,
		l:       zap.NewNop(),
	}
	for _, apply := range opts {
		apply(g)
	}
	return g
}

// Trees used by this graph
func (g *Graph) Trees() *tree.Store {
	return g.trees
}

// New stores the tree, then a commit of this tree with some parents
func (g *Graph) New(ctx context.Context, parents []Commit, t tree.Tree, info model.Info) (Commit, error) {
	root, err := g.trees.Save(ctx, t)
	if err != nil {
		return Commit{}, err
	}

	value := model.CommitValue{
		Node:    root,
		Parents: Hashes(parents),
		Info:    info,
	}
	h, err := g.objects.Commits.Put(ctx, value)
	if err != nil {
		return Commit{}, err
	}
	if len(value.Parents) == 0 {
		value.Parents = nil
	}

	g.l.Debug("new commit", zap.Stringer("commit", h), zap.Stringer("tree", root), zap.Int("parents", len(parents)))
	return Commit{h: h, value: value}, nil
}

// Of loads a commit by hash
func (g *Graph) Of(ctx context.Context, h hash.Hash) (Commit, error) {
	value, err := g.objects.Commits.Get(ctx, h)
	if err != nil {
		return Commit{}, err
	}
	return Commit{h: h, value: value}, nil
}

// Parents of a commit, loaded in order
func (g *Graph) Parents(ctx context.Context, c Commit) ([]Commit, error) {
	parents := make([]Commit, 0, len(c.value.Parents))
	for _, h := range c.value.Parents {
		parent, err := g.Of(ctx, h)
		if err != nil {
			return nil, err
		}
		parents = append(parents, parent)
	}
	return parents, nil
}

// Tree of a commit, loaded when first needed
func (g *Graph) Tree(c Commit) tree.Tree {
	return g.trees.Ref(c.value.Node)
}

// Equal tells if two commits have the same hash
func (g *Graph) Equal(a, b Commit) bool {
	return a.h == b.h
}

// Ancestors visits a commit then its ancestors breadth first, each of them once.
//
// Depth limits the number of hops from the starting commit, a depth of zero or less
// meaning no limit. Parents which are not stored locally, as in shallow histories,
// are skipped. The walk ends when fn returns an error: ErrStop ends it without error,
// while ErrSkipParents only prunes the parents of the visited commit. A commit reachable
// through another path may still be visited.
func (g *Graph) Ancestors(ctx context.Context, c Commit, depth int, fn func(Commit) error) error {
	type item struct {
		c     Commit
		depth int
	}

	visited := map[hash.Hash]struct{}{c.h: {}}
	queue := []item{{c: c}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		current := queue[0]
		queue = queue[1:]

		if err := fn(current.c); err != nil {
			if errors.Is(err, ErrSkipParents) {
				continue
			}
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}

		if depth > 0 && current.depth >= depth {
			continue
		}

		for _, h := range current.c.value.Parents {
			if _, seen := visited[h]; seen {
				continue
			}
			visited[h] = struct{}{}

			parent, err := g.Of(ctx, h)
			if err != nil {
				if errors.Is(err, status.ErrNotFound) {
					g.l.Debug("history is truncated", zap.Stringer("commit", current.c.h), zap.Stringer("missing parent", h))
					continue
				}
				return err
			}
			queue = append(queue, item{c: parent, depth: current.depth + 1})
		}
	}
	return nil
}

// IsAncestor tells if a is an ancestor of b, or equal to b
func (g *Graph) IsAncestor(ctx context.Context, a, b Commit) (bool, error) {
	if a.h == b.h {
		return true, nil
	}
	var found bool
	err := g.Ancestors(ctx, b, 0, func(c Commit) error {
		if c.h == a.h {
			found = true
			return ErrStop
		}
		return nil
	})
	return found, err
}

// IsAncestorOf tells if the commit with hash a is an ancestor of the commit with hash b, or equal to it
func (g *Graph) IsAncestorOf(ctx context.Context, a, b hash.Hash) (bool, error) {
	if a == b {
		return true, nil
	}
	descendant, err := g.Of(ctx, b)
	if err != nil {
		return false, err
	}
	return g.IsAncestor(ctx, Commit{h: a}, descendant)
}
