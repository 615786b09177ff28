// Package hash defines the digests which identify contents, nodes and commits.
//
// Hashes are computed by a Hasher within a domain, so identical bytes stored as
// contents and as a node never share a hash.
package hash
