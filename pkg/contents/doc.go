// Package contents describes the types of values held by a repository.
//
// A Type validates raw contents and tells how conflicting contents merge.
// A Codec converts typed values to and from the bytes stored as contents.
package contents
