package tree

import (
	"context"
	"fmt"

	iradix "github.com/hashicorp/go-immutable-radix/v2"
	"github.com/oneconcern/irmin/pkg/convert"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/objects"
	"go.uber.org/zap"
)

// Store operates on trees whose nodes and contents live in an object store
type Store struct {
	objects    *objects.Store
	l          *zap.Logger
	pruneEmpty bool
}

// Option for a tree store
type Option func(*Store)

// WithPruneEmpty removes nodes left empty by Remove from their parent. Disabled by default:
// empty nodes are retained.
func WithPruneEmpty(enabled bool) Option {
	return func(s *Store) {
		s.pruneEmpty = enabled
	}
}

// Logger for the tree store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.l = l
		}
	}
}

// New tree store
func New(objs *objects.Store, opts ...Option) *Store {
	s := &Store{
		objects: objs,
		l:       zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// Objects used to store nodes and contents
func (s *Store) Objects() *objects.Store {
	return s.objects
}

// Empty tree
func (s *Store) Empty() Tree {
	return Tree{n: newNode(iradix.New[Entry]())}
}

// Ref is a tree referring to a stored node, which is loaded when first needed
func (s *Store) Ref(h hash.Hash) Tree {
	return Tree{n: refNode(h)}
}

// Of loads a stored tree. It fails with status.ErrNotFound if there is no node with this hash.
func (s *Store) Of(ctx context.Context, h hash.Hash) (Tree, error) {
	t := s.Ref(h)
	if _, err := s.entries(ctx, t.n); err != nil {
		return Tree{}, err
	}
	return t, nil
}

// Hash of a tree, computed once
func (s *Store) Hash(t Tree) hash.Hash {
	return s.hashOf(s.node(t))
}

// Key of a tree, as a kinded reference to its node
func (s *Store) Key(t Tree) model.KindedKey {
	return model.NodeKey(s.Hash(t))
}

// Equal tells if two trees have the same hash
func (s *Store) Equal(a, b Tree) bool {
	if a.n != nil && a.n == b.n {
		return true
	}
	return s.Hash(a) == s.Hash(b)
}

// ContentsEntry makes an entry holding contents which are not stored yet
func (s *Store) ContentsEntry(data []byte, m model.Metadata) Entry {
	if data == nil {
		data = []byte{}
	}
	return Entry{
		kind:     model.KindContents,
		contents: s.objects.Contents.Hash(data),
		metadata: m,
		pending:  data,
	}
}

// ContentsRef makes an entry referring to stored contents
func (s *Store) ContentsRef(h hash.Hash, m model.Metadata) Entry {
	return Entry{kind: model.KindContents, contents: h, metadata: m}
}

// TreeEntry makes an entry holding a subtree
func (s *Store) TreeEntry(t Tree) Entry {
	return Entry{kind: model.KindNode, tree: t}
}

// EntryKey is the kinded hash of an entry
func (s *Store) EntryKey(e Entry) model.KindedKey {
	if e.IsTree() {
		return s.Key(e.tree)
	}
	return model.ContentsKey(e.contents)
}

// EqualEntries tells if two entries are identical: same contents and metadata, or equal subtrees
func (s *Store) EqualEntries(a, b Entry) bool {
	if a.kind != b.kind {
		return false
	}
	if a.IsTree() {
		return s.Equal(a.tree, b.tree)
	}
	return a.contents == b.contents && a.metadata == b.metadata
}

// ReadContents of a contents entry
func (s *Store) ReadContents(ctx context.Context, e Entry) ([]byte, error) {
	if !e.IsContents() {
		return nil, status.ErrNotFound.WrapMessage("entry is a tree")
	}
	if e.pending != nil {
		return e.pending, nil
	}
	return s.objects.Contents.Get(ctx, e.contents)
}

// Resolve the entry at some path. The root path resolves to the tree itself.
func (s *Store) Resolve(ctx context.Context, t Tree, path model.Path) (Entry, error) {
	if path.IsRoot() {
		return s.TreeEntry(t), nil
	}

	current := s.node(t)
	for i, segment := range path {
		entries, err := s.entries(ctx, current)
		if err != nil {
			return Entry{}, err
		}
		e, found := entries.Get(key(segment))
		if !found {
			return Entry{}, status.ErrNotFound.WrapMessage("path %v", path)
		}
		if i == len(path)-1 {
			return e, nil
		}
		if !e.IsTree() {
			return Entry{}, status.ErrNotFound.WrapMessage("path %v: %v", path, status.ErrNotATree.WrapMessage("%v", path[:i+1]))
		}
		current = s.node(e.tree)
	}
	panic("unreachable")
}

// Find the contents and metadata at some path
func (s *Store) Find(ctx context.Context, t Tree, path model.Path) ([]byte, model.Metadata, error) {
	e, err := s.Resolve(ctx, t, path)
	if err != nil {
		return nil, model.DefaultMetadata, err
	}
	if !e.IsContents() {
		return nil, model.DefaultMetadata, status.ErrNotFound.WrapMessage("path %v is a tree", path)
	}
	data, err := s.ReadContents(ctx, e)
	if err != nil {
		return nil, model.DefaultMetadata, err
	}
	return data, e.metadata, nil
}

// FindTree finds the subtree at some path
func (s *Store) FindTree(ctx context.Context, t Tree, path model.Path) (Tree, error) {
	e, err := s.Resolve(ctx, t, path)
	if err != nil {
		return Tree{}, err
	}
	if !e.IsTree() {
		return Tree{}, status.ErrNotFound.Wrap(status.ErrNotATree.WrapMessage("path %v", path))
	}
	return e.tree, nil
}

// Mem tells if there are contents at some path
func (s *Store) Mem(ctx context.Context, t Tree, path model.Path) (bool, error) {
	e, err := s.Resolve(ctx, t, path)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	return e.IsContents(), nil
}

// MemTree tells if there is a subtree at some path
func (s *Store) MemTree(ctx context.Context, t Tree, path model.Path) (bool, error) {
	e, err := s.Resolve(ctx, t, path)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	return e.IsTree(), nil
}

// List the names of the immediate children of the subtree at some path, in sorted order.
//
// Names are returned as single-segment paths.
func (s *Store) List(ctx context.Context, t Tree, path model.Path) ([]model.Path, error) {
	sub, err := s.FindTree(ctx, t, path)
	if err != nil {
		return nil, err
	}
	children, err := s.Children(ctx, sub)
	if err != nil {
		return nil, err
	}
	paths := make([]model.Path, 0, len(children))
	for _, child := range children {
		paths = append(paths, model.NewPath(child.Name))
	}
	return paths, nil
}

// Children of the root node of a tree, sorted by name
func (s *Store) Children(ctx context.Context, t Tree) ([]Child, error) {
	entries, err := s.entries(ctx, s.node(t))
	if err != nil {
		return nil, err
	}
	children := make([]Child, 0, entries.Len())
	entries.Root().Walk(func(k []byte, e Entry) bool {
		children = append(children, Child{Name: convert.UnsafeBytesToString(k), Entry: e})
		return false
	})
	return children, nil
}

// OfChildren builds a tree from a set of named entries
func (s *Store) OfChildren(children []Child) (Tree, error) {
	txn := iradix.New[Entry]().Txn()
	for _, child := range children {
		if err := model.ValidateSegment(child.Name); err != nil {
			return Tree{}, err
		}
		if _, duplicate := txn.Insert(key(child.Name), child.Entry); duplicate {
			return Tree{}, status.ErrInvalidPath.WrapMessage("duplicate entry %q", child.Name)
		}
	}
	return Tree{n: newNode(txn.Commit())}, nil
}

// Add contents at some path, creating intermediate subtrees as needed.
// Any existing entry at this path is replaced.
func (s *Store) Add(ctx context.Context, t Tree, path model.Path, data []byte, m model.Metadata) (Tree, error) {
	if path.IsRoot() {
		return Tree{}, status.ErrInvalidPath.WrapMessage("cannot add contents at the root")
	}
	if err := path.Validate(); err != nil {
		return Tree{}, err
	}
	e := s.ContentsEntry(data, m)
	return s.update(ctx, t, path, &e)
}

// AddTree grafts a subtree at some path. Adding at the root replaces the whole tree.
func (s *Store) AddTree(ctx context.Context, t Tree, path model.Path, sub Tree) (Tree, error) {
	if path.IsRoot() {
		return sub, nil
	}
	if err := path.Validate(); err != nil {
		return Tree{}, err
	}
	e := s.TreeEntry(sub)
	return s.update(ctx, t, path, &e)
}

// Remove the entry at some path. Removing the root yields the empty tree.
// Removing a missing path returns the tree unchanged.
func (s *Store) Remove(ctx context.Context, t Tree, path model.Path) (Tree, error) {
	if path.IsRoot() {
		return s.Empty(), nil
	}
	return s.update(ctx, t, path, nil)
}

// update sets (or removes, when e is nil) the entry at path, rebuilding the nodes along the path
func (s *Store) update(ctx context.Context, t Tree, path model.Path, e *Entry) (Tree, error) {
	n, changed, err := s.updateNode(ctx, s.node(t), path, e)
	if err != nil {
		return Tree{}, err
	}
	if !changed {
		return t, nil
	}
	return Tree{n: n}, nil
}

func (s *Store) updateNode(ctx context.Context, n *node, path model.Path, e *Entry) (*node, bool, error) {
	entries, err := s.entries(ctx, n)
	if err != nil {
		return nil, false, err
	}

	k := key(path[0])
	existing, found := entries.Get(k)

	var (
		next   Entry
		remove bool
	)

	if len(path) == 1 {
		switch {
		case e == nil && !found:
			return n, false, nil
		case e == nil:
			remove = true
		case found && s.EqualEntries(existing, *e):
			return n, false, nil
		default:
			next = *e
		}
	} else {
		var child *node
		switch {
		case found && existing.IsTree():
			child = s.node(existing.tree)
		case e == nil:
			return n, false, nil
		default:
			// contents on the way are replaced by a subtree
			child = s.Empty().n
		}

		updated, changed, err := s.updateNode(ctx, child, path[1:], e)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return n, false, nil
		}

		if e == nil && s.pruneEmpty && updated.loaded().Len() == 0 {
			remove = true
		} else {
			next = Entry{kind: model.KindNode, tree: Tree{n: updated}}
		}
	}

	if remove {
		entries, _, _ = entries.Delete(k)
	} else {
		entries, _, _ = entries.Insert(k, next)
	}
	return newNode(entries), true, nil
}

// Save stores all nodes and contents of a tree which are not stored yet, and returns its hash
func (s *Store) Save(ctx context.Context, t Tree) (hash.Hash, error) {
	var written int
	h, err := s.save(ctx, s.node(t), &written)
	if err != nil {
		return hash.Zero, err
	}
	s.l.Debug("saved tree", zap.Stringer("hash", h), zap.Int("nodes", written))
	return h, nil
}

func (s *Store) save(ctx context.Context, n *node, written *int) (hash.Hash, error) {
	if h, stored := n.storedHash(); stored {
		return h, nil
	}

	// a stored node implies all its children are stored
	h := s.hashOf(n)
	found, err := s.objects.Nodes.Has(ctx, h)
	if err != nil {
		return hash.Zero, err
	}
	if found {
		n.markStored(h)
		return h, nil
	}

	entries := n.loaded()
	entries.Root().Walk(func(_ []byte, e Entry) bool {
		switch {
		case e.IsTree():
			_, err = s.save(ctx, s.node(e.tree), written)
		case e.pending != nil:
			_, err = s.objects.Contents.Put(ctx, e.pending)
		}
		return err != nil
	})
	if err != nil {
		return hash.Zero, err
	}

	stored, err := s.objects.Nodes.Put(ctx, s.valueOf(entries))
	if err != nil {
		return hash.Zero, err
	}
	*written++
	n.markStored(stored)
	return stored, nil
}

// Walk visits all entries of a tree depth first, in sorted order. The root is not visited.
//
// When fn returns ErrSkipTree on a subtree entry, the subtree is not visited.
// Any other error stops the walk.
func (s *Store) Walk(ctx context.Context, t Tree, fn WalkFunc) error {
	err := s.walk(ctx, s.node(t), model.Root, fn)
	if errors.Is(err, ErrSkipTree) {
		return nil
	}
	return err
}

func (s *Store) walk(ctx context.Context, n *node, prefix model.Path, fn WalkFunc) error {
	children, err := s.Children(ctx, Tree{n: n})
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := prefix.Append(child.Name)
		err := fn(path, child.Entry)
		switch {
		case errors.Is(err, ErrSkipTree):
			continue
		case err != nil:
			return err
		}
		if child.Entry.IsTree() {
			if err := s.walk(ctx, s.node(child.Entry.tree), path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// node behind a tree handle. The zero tree is empty.
func (s *Store) node(t Tree) *node {
	if t.n == nil {
		return s.Empty().n
	}
	return t.n
}

// entries of a node, loaded from the object store for references
func (s *Store) entries(ctx context.Context, n *node) (*iradix.Tree[Entry], error) {
	if entries := n.loaded(); entries != nil {
		return entries, nil
	}

	value, err := s.objects.Nodes.Get(ctx, n.h)
	if err != nil {
		return nil, err
	}

	txn := iradix.New[Entry]().Txn()
	for _, stored := range value.Entries {
		e := Entry{kind: stored.Kind, metadata: stored.Metadata}
		if stored.Kind == model.KindNode {
			e.tree = Tree{n: refNode(stored.Hash)}
		} else {
			e.contents = stored.Hash
		}
		txn.Insert(key(stored.Name), e)
	}
	entries := txn.Commit()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.entries == nil {
		n.entries = entries
	}
	return n.entries, nil
}

// hashOf a node, memoized
func (s *Store) hashOf(n *node) hash.Hash {
	n.mu.Lock()
	if n.hashed {
		h := n.h
		n.mu.Unlock()
		return h
	}
	entries := n.entries
	n.mu.Unlock()

	h, err := s.objects.Nodes.Hash(s.valueOf(entries))
	if err != nil {
		// entry names are validated when building nodes
		panic(fmt.Sprintf("tree: node does not encode: %v", err))
	}

	n.mu.Lock()
	n.h, n.hashed = h, true
	n.mu.Unlock()
	return h
}

func (s *Store) valueOf(entries *iradix.Tree[Entry]) model.NodeValue {
	value := model.NodeValue{Entries: make([]model.NodeEntry, 0, entries.Len())}
	entries.Root().Walk(func(k []byte, e Entry) bool {
		stored := model.NodeEntry{
			Name:     string(k),
			Kind:     e.kind,
			Metadata: e.metadata,
		}
		if e.IsTree() {
			stored.Hash = s.hashOf(s.node(e.tree))
		} else {
			stored.Hash = e.contents
		}
		value.Entries = append(value.Entries, stored)
		return false
	})
	return value
}

func key(name string) []byte {
	return convert.UnsafeStringToBytes(name)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, status.ErrNotFound) {
		return nil
	}
	return err
}
