// Package branch implements branch tables: the mutable mapping from branch names to head commits.
//
// Branch heads are the only mutable state of a repository. They are updated with
// compare-and-set, which serializes all concurrent writers of a branch.
package branch
