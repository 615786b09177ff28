// Package model describes the base objects manipulated by the store.
//
// The object model is composed of:
//
//	Contents:
//	  An immutable byte payload, identified by its hash.
//
//	Nodes:
//	  An immutable directory of named entries. Each entry points either to contents
//	  (with some metadata) or to another node. A node is identified by the hash of its
//	  sorted entries.
//
//	Commits:
//	  A snapshot of a root node, with its parent commits and some Info (author, message, date).
//	  Commits form a directed acyclic graph.
//
//	Branches:
//	  A name given to a commit, analogous to branches in git. Branch heads are the only mutable state.
//
// Paths locate entries in a tree of nodes.
package model
