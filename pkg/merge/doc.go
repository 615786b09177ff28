// Package merge implements three-way merges of trees and commits.
//
// Commits are merged against their lowest common ancestors. When two commits have several
// lowest common ancestors, these are merged first into a virtual base. Unrelated commits
// are merged against the empty tree.
//
// Trees are merged path by path: a path changed on one side only takes that side, a path
// changed identically on both sides takes the common value, and a path changed differently
// on both sides is a conflict, which a Resolver may settle. Unresolved conflicts make the
// whole merge fail with a *ConflictError.
package merge
