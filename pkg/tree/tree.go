package tree

import (
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix/v2"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
)

// Tree is an immutable handle on a node.
//
// The zero value is the empty tree.
type Tree struct {
	n *node
}

// IsZero tells if this tree is the zero value
func (t Tree) IsZero() bool {
	return t.n == nil
}

type node struct {
	mu sync.Mutex

	h      hash.Hash
	hashed bool // h is known
	stored bool // known to be persisted in the backend

	// entries keyed by name, iterated in byte order. Nil for references not loaded yet.
	entries *iradix.Tree[Entry]
}

func newNode(entries *iradix.Tree[Entry]) *node {
	return &node{entries: entries}
}

func refNode(h hash.Hash) *node {
	return &node{h: h, hashed: true, stored: true}
}

func (n *node) loaded() *iradix.Tree[Entry] {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.entries
}

func (n *node) markStored(h hash.Hash) {
	n.mu.Lock()
	n.h, n.hashed, n.stored = h, true, true
	n.mu.Unlock()
}

// Entry is a named item in a node: either contents with some metadata, or a subtree
type Entry struct {
	kind     model.Kind
	contents hash.Hash
	metadata model.Metadata
	pending  []byte // contents bytes not stored yet
	tree     Tree
}

// Kind of entry: model.KindContents or model.KindNode
func (e Entry) Kind() model.Kind {
	return e.kind
}

// IsTree tells if this entry is a subtree
func (e Entry) IsTree() bool {
	return e.kind == model.KindNode
}

// IsContents tells if this entry holds contents
func (e Entry) IsContents() bool {
	return e.kind == model.KindContents
}

// ContentsHash is the hash of the contents of a contents entry
func (e Entry) ContentsHash() hash.Hash {
	return e.contents
}

// Metadata of a contents entry
func (e Entry) Metadata() model.Metadata {
	return e.metadata
}

// Tree of a subtree entry
func (e Entry) Tree() Tree {
	return e.tree
}

// Child is an entry with its name
type Child struct {
	Name  string
	Entry Entry
}

func (n *node) storedHash() (hash.Hash, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.h, n.stored
}
