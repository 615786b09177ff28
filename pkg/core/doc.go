// Package core opens repositories and exposes stores bound to a branch or to a commit.
//
// A Repo wires together the object stores, the tree store, the commit graph, the branch table,
// the merge engine and the remote synchronizer, from a configuration value.
//
// A Store is a handle on the current tree of a branch, or of a pinned commit.
// Updates on a branch build a new commit then move the branch head with a compare-and-set,
// retrying with some backoff when another writer moved the head meanwhile. Stores pinned to a
// commit are read-only.
package core
