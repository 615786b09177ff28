// Package objects stores the immutable objects of a repository: contents, nodes and commits.
//
// Every object is identified by the domain-separated hash of its encoded form and lives
// under the key "<kind>/<hh>/<hash>" of a key/blob storage.Store. Objects are append-only:
// writing an object twice is a no-op, and reading an object always verifies its hash.
//
// Nodes and commits are encoded with deterministic CBOR (see package codec), so that
// equal values always yield equal hashes.
package objects
