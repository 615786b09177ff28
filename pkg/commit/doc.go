// Package commit implements the commit graph: immutable commits referencing a root tree
// and their parents, forming a directed acyclic graph.
package commit
