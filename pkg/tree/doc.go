// Package tree implements immutable hierarchical trees of contents, with copy-on-write updates.
//
// A Tree is either materialized in memory (possibly holding contents and subtrees which
// are not stored yet) or a reference to a stored node, loaded on demand. Both kinds of
// trees behave identically.
//
// Updates rebuild the nodes along the updated path only: every other subtree is shared
// with the original tree and keeps its memoized hash.
package tree
