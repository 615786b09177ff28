// Package status exports the errors produced by the repository packages.
//
// The sentinels are declared in a separate package so that the lower layers
// (objects, tree, commit, branch, merge, remote) may share them without
// importing the core package.
package status

import (
	"github.com/oneconcern/irmin/pkg/errors"
)

var (
	// ErrNotFound indicates that a path, hash or branch does not resolve to anything
	ErrNotFound = errors.New("not found")

	// ErrPreconditionFailed indicates a test-and-set mismatch, a lost compare-and-set race or a refused fast-forward
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrConflict indicates an unresolved merge conflict
	ErrConflict = errors.New("merge conflict")

	// ErrImmutableView indicates an update operation attempted on a store pinned to a commit
	ErrImmutableView = errors.New("cannot update an immutable view")

	// ErrCorruptObject indicates a stored object which does not match its hash or cannot be decoded
	ErrCorruptObject = errors.New("corrupt object")

	// ErrBackend indicates an opaque failure from the storage backend
	ErrBackend = errors.New("backend error")

	// ErrTransport indicates an opaque failure from a remote transport
	ErrTransport = errors.New("transport error")

	// ErrBranchNotFound indicates that a branch has no head
	ErrBranchNotFound = errors.New("branch not found")

	// ErrNoHead indicates that a remote does not advertise any head
	ErrNoHead = errors.New("no head")

	// ErrNotATree indicates that a path resolves to contents where a node was expected
	ErrNotATree = errors.New("not a tree")

	// ErrInvalidPath indicates a malformed path
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidHash indicates a malformed hash
	ErrInvalidHash = errors.New("invalid hash")

	// ErrInvalidContents indicates contents which do not match the type of contents of the repository
	ErrInvalidContents = errors.New("invalid contents")

	// ErrInvalidBranch indicates a malformed branch name
	ErrInvalidBranch = errors.New("invalid branch name")

	// ErrDiverged indicates that a remote head is not an ancestor of the pushed commit
	ErrDiverged = errors.New("histories have diverged")

	// ErrClosed indicates an operation on a closed repository
	ErrClosed = errors.New("repository is closed")

	// ErrInvalidConfig indicates a configuration which cannot be used to open a repository
	ErrInvalidConfig = errors.New("invalid configuration")
)
