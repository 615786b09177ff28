package merge

import (
	"context"
	"sort"

	"github.com/oneconcern/irmin/pkg/commit"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/tree"
	"go.uber.org/zap"
)

// maxVirtualDepth bounds the recursion when building virtual bases from several common ancestors.
// Deeper than that, the first common ancestor is used as the base.
const maxVirtualDepth = 8

// Engine merges commits and trees
type Engine struct {
	graph    *commit.Graph
	trees    *tree.Store
	l        *zap.Logger
	resolver Resolver
}

// Option for a merge engine
type Option func(*Engine)

// Logger for the merge engine
func Logger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.l = l
		}
	}
}

// DefaultResolver settles conflicts when a merge does not specify its own resolver.
// There is no default resolver unless specified.
func DefaultResolver(r Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// New merge engine over a commit graph
func New(graph *commit.Graph, opts ...Option) *Engine {
	e := &Engine{
		graph: graph,
		trees: graph.Trees(),
		l:     zap.NewNop(),
	}
	for _, apply := range opts {
		apply(e)
	}
	return e
}

type mergeOptions struct {
	resolver Resolver
}

// MergeOption alters a single merge
type MergeOption func(*mergeOptions)

// Resolve conflicts with this resolver. A nil resolver leaves all conflicts unresolved.
func Resolve(r Resolver) MergeOption {
	return func(o *mergeOptions) {
		o.resolver = r
	}
}

func (e *Engine) options(opts []MergeOption) mergeOptions {
	o := mergeOptions{resolver: e.resolver}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// LowestCommonAncestors of two commits: common ancestors which are not ancestors of any other
// common ancestor. There may be several of them with criss-cross merges, and none for
// unrelated histories. Candidates are ordered by their distance from b.
func (e *Engine) LowestCommonAncestors(ctx context.Context, a, b commit.Commit) ([]commit.Commit, error) {
	if a.Hash() == b.Hash() {
		return []commit.Commit{a}, nil
	}
	return e.commonAncestors(ctx, []commit.Commit{a}, b)
}

// commonAncestors yields the lowest common ancestors of b and of the union of the histories of ours
func (e *Engine) commonAncestors(ctx context.Context, ours []commit.Commit, b commit.Commit) ([]commit.Commit, error) {
	ofA := make(map[hash.Hash]struct{})
	for _, a := range ours {
		if _, done := ofA[a.Hash()]; done {
			continue
		}
		if err := e.graph.Ancestors(ctx, a, 0, func(c commit.Commit) error {
			if _, done := ofA[c.Hash()]; done {
				return commit.ErrSkipParents
			}
			ofA[c.Hash()] = struct{}{}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	// no need to walk past a common ancestor: its own ancestors are dominated
	var candidates []commit.Commit
	if err := e.graph.Ancestors(ctx, b, 0, func(c commit.Commit) error {
		if _, common := ofA[c.Hash()]; common {
			candidates = append(candidates, c)
			return commit.ErrSkipParents
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if len(candidates) < 2 {
		return candidates, nil
	}

	lcas := make([]commit.Commit, 0, len(candidates))
	for i, candidate := range candidates {
		dominated := false
		for j, other := range candidates {
			if i == j {
				continue
			}
			isAncestor, err := e.graph.IsAncestor(ctx, candidate, other)
			if err != nil {
				return nil, err
			}
			if isAncestor {
				dominated = true
				break
			}
		}
		if !dominated {
			lcas = append(lcas, candidate)
		}
	}
	return lcas, nil
}

// LowestCommonAncestor of two commits, or nil when they share no history.
// When there are several candidates, the one closest to b is returned.
func (e *Engine) LowestCommonAncestor(ctx context.Context, a, b commit.Commit) (*commit.Commit, error) {
	lcas, err := e.LowestCommonAncestors(ctx, a, b)
	if err != nil || len(lcas) == 0 {
		return nil, err
	}
	lca := lcas[0]
	return &lca, nil
}

// Merge the trees of two commits, using the tree of their common ancestor as a base.
//
// Merging a commit with itself or with one of its ancestors yields its own tree.
// With several common ancestors, the base is a virtual tree merged from all of them.
// Unrelated histories are merged against the empty tree.
//
// Unresolved conflicts are reported as a *ConflictError.
func (e *Engine) Merge(ctx context.Context, a, b commit.Commit, opts ...MergeOption) (tree.Tree, error) {
	return e.merge(ctx, a, b, e.options(opts), 0)
}

func (e *Engine) merge(ctx context.Context, a, b commit.Commit, o mergeOptions, depth int) (tree.Tree, error) {
	if a.Hash() == b.Hash() {
		return e.graph.Tree(a), nil
	}
	if isAncestor, err := e.graph.IsAncestor(ctx, a, b); err != nil || isAncestor {
		return e.graph.Tree(b), err
	}
	if isAncestor, err := e.graph.IsAncestor(ctx, b, a); err != nil || isAncestor {
		return e.graph.Tree(a), err
	}

	lcas, err := e.LowestCommonAncestors(ctx, a, b)
	if err != nil {
		return tree.Tree{}, err
	}
	base, err := e.base(ctx, lcas, o, depth)
	if err != nil {
		return tree.Tree{}, err
	}

	e.l.Debug("merging commits",
		zap.Stringer("ours", a), zap.Stringer("theirs", b),
		zap.Stringers("ancestors", lcas),
	)
	return e.MergeTrees(ctx, base, e.graph.Tree(a), e.graph.Tree(b), Resolve(o.resolver))
}

// base tree for a merge with these common ancestors
func (e *Engine) base(ctx context.Context, lcas []commit.Commit, o mergeOptions, depth int) (tree.Tree, error) {
	switch {
	case len(lcas) == 0:
		return e.trees.Empty(), nil
	case len(lcas) == 1 || depth >= maxVirtualDepth:
		return e.graph.Tree(lcas[0]), nil
	}

	virtual := e.graph.Tree(lcas[0])
	for _, next := range lcas[1:] {
		inner, err := e.LowestCommonAncestors(ctx, lcas[0], next)
		if err != nil {
			return tree.Tree{}, err
		}
		innerBase, err := e.base(ctx, inner, o, depth+1)
		if err != nil {
			return tree.Tree{}, err
		}
		merged, err := e.MergeTrees(ctx, innerBase, virtual, e.graph.Tree(next), Resolve(o.resolver))
		if err != nil {
			if errors.Is(err, status.ErrConflict) {
				e.l.Debug("conflicting common ancestors, falling back to the first one", zap.Stringer("ancestor", lcas[0]))
				return e.graph.Tree(lcas[0]), nil
			}
			return tree.Tree{}, err
		}
		virtual = merged
	}
	return virtual, nil
}

// MergeAll merges the trees of several commits, as iterative pairwise merges in the given order.
// Commits which are ancestors of an already merged commit are skipped.
//
// Each step merges the next commit against the lowest common ancestors of this commit and of
// all the commits merged so far.
func (e *Engine) MergeAll(ctx context.Context, commits []commit.Commit, opts ...MergeOption) (tree.Tree, error) {
	if len(commits) == 0 {
		return e.trees.Empty(), nil
	}
	o := e.options(opts)

	first := commits[0]
	merged := []commit.Commit{first}
	result := e.graph.Tree(first)

	for _, next := range commits[1:] {
		skip := false
		for _, done := range merged {
			isAncestor, err := e.graph.IsAncestor(ctx, next, done)
			if err != nil {
				return tree.Tree{}, err
			}
			if isAncestor {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		// the result so far descends from all the merged commits
		lcas, err := e.commonAncestors(ctx, merged, next)
		if err != nil {
			return tree.Tree{}, err
		}
		base, err := e.base(ctx, lcas, o, 0)
		if err != nil {
			return tree.Tree{}, err
		}
		result, err = e.MergeTrees(ctx, base, result, e.graph.Tree(next), Resolve(o.resolver))
		if err != nil {
			return tree.Tree{}, err
		}
		merged = append(merged, next)
	}
	return result, nil
}

// MergeTrees performs a 3-way merge of two trees against a base tree.
//
// For every path, a change on one side only is taken, identical changes on both sides are taken,
// and different changes on both sides are a conflict. Subtrees changed on both sides are merged
// recursively. Conflicts are submitted to the resolver, if any. All unresolved conflicts are
// reported together as a *ConflictError.
func (e *Engine) MergeTrees(ctx context.Context, base, ours, theirs tree.Tree, opts ...MergeOption) (tree.Tree, error) {
	m := &treeMerge{
		Engine:  e,
		options: e.options(opts),
	}
	result, err := m.mergeTrees(ctx, model.Root, base, ours, theirs)
	if err != nil {
		return tree.Tree{}, err
	}
	if len(m.conflicts) > 0 {
		sort.Slice(m.conflicts, func(i, j int) bool {
			return m.conflicts[i].Compare(m.conflicts[j]) < 0
		})
		e.l.Debug("unresolved conflicts", zap.Int("conflicts", len(m.conflicts)))
		return tree.Tree{}, &ConflictError{Paths: m.conflicts}
	}
	return result, nil
}

// treeMerge holds the state of a single tree merge
type treeMerge struct {
	*Engine
	options   mergeOptions
	conflicts []model.Path
}

type slot struct {
	present bool
	entry   tree.Entry
}

func (m *treeMerge) same(a, b slot) bool {
	if !a.present || !b.present {
		return a.present == b.present
	}
	return m.trees.EqualEntries(a.entry, b.entry)
}

func (m *treeMerge) mergeTrees(ctx context.Context, path model.Path, base, ours, theirs tree.Tree) (tree.Tree, error) {
	switch {
	case m.trees.Equal(ours, theirs), m.trees.Equal(base, theirs):
		return ours, nil
	case m.trees.Equal(base, ours):
		return theirs, nil
	}
	if err := ctx.Err(); err != nil {
		return tree.Tree{}, err
	}

	slots := make(map[string]*[3]slot)
	names := make([]string, 0)
	for i, t := range []tree.Tree{base, ours, theirs} {
		children, err := m.trees.Children(ctx, t)
		if err != nil {
			return tree.Tree{}, err
		}
		for _, child := range children {
			s, found := slots[child.Name]
			if !found {
				s = new([3]slot)
				slots[child.Name] = s
				names = append(names, child.Name)
			}
			s[i] = slot{present: true, entry: child.Entry}
		}
	}
	sort.Strings(names)

	merged := make([]tree.Child, 0, len(names))
	for _, name := range names {
		s := slots[name]
		entry, present, err := m.mergeEntries(ctx, path.Append(name), s[0], s[1], s[2])
		if err != nil {
			return tree.Tree{}, err
		}
		if present {
			merged = append(merged, tree.Child{Name: name, Entry: entry})
		}
	}
	return m.trees.OfChildren(merged)
}

func (m *treeMerge) mergeEntries(ctx context.Context, path model.Path, base, ours, theirs slot) (tree.Entry, bool, error) {
	switch {
	case m.same(ours, theirs), m.same(base, theirs):
		return ours.entry, ours.present, nil
	case m.same(base, ours):
		return theirs.entry, theirs.present, nil
	}

	if ours.present && theirs.present && ours.entry.IsTree() && theirs.entry.IsTree() {
		baseTree := m.trees.Empty()
		if base.present && base.entry.IsTree() {
			baseTree = base.entry.Tree()
		}
		sub, err := m.mergeTrees(ctx, path, baseTree, ours.entry.Tree(), theirs.entry.Tree())
		if err != nil {
			return tree.Entry{}, false, err
		}
		return m.trees.TreeEntry(sub), true, nil
	}

	return m.conflict(ctx, path, base, ours, theirs)
}

func (m *treeMerge) conflict(ctx context.Context, path model.Path, base, ours, theirs slot) (tree.Entry, bool, error) {
	if m.options.resolver != nil {
		c := Conflict{Path: path}
		for _, pair := range []struct {
			side *Side
			slot slot
		}{
			{side: &c.Base, slot: base},
			{side: &c.Ours, slot: ours},
			{side: &c.Theirs, slot: theirs},
		} {
			side, err := m.side(ctx, pair.slot)
			if err != nil {
				return tree.Entry{}, false, err
			}
			*pair.side = side
		}

		resolved, ok, err := m.options.resolver.Resolve(ctx, c)
		if err != nil {
			return tree.Entry{}, false, err
		}
		if ok {
			entry, present := m.entryOf(resolved)
			return entry, present, nil
		}
	}

	m.l.Debug("conflict", zap.Stringer("path", path))
	m.conflicts = append(m.conflicts, path)
	return ours.entry, ours.present, nil
}

func (m *treeMerge) side(ctx context.Context, s slot) (Side, error) {
	if !s.present {
		return Absent(), nil
	}
	if s.entry.IsTree() {
		return Side{Present: true, Entry: s.entry}, nil
	}
	data, err := m.trees.ReadContents(ctx, s.entry)
	if err != nil {
		return Side{}, err
	}
	return Side{Present: true, Entry: s.entry, Data: data, Metadata: s.entry.Metadata()}, nil
}

func (m *treeMerge) entryOf(s Side) (tree.Entry, bool) {
	switch {
	case !s.Present:
		return tree.Entry{}, false
	case s.Entry.IsTree():
		return s.Entry, true
	case s.Entry.IsContents() && s.Metadata == s.Entry.Metadata() &&
		m.trees.Objects().Contents.Hash(s.Data) == s.Entry.ContentsHash():
		return s.Entry, true
	default:
		return m.trees.ContentsEntry(s.Data, s.Metadata), true
	}
}
