package branch

import (
	"context"

	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
)

// Table maps branch names to head commits.
//
// All head mutations of a branch are linearizable with respect to each other.
type Table interface {
	// Get the head of a branch, or false if the branch is not set
	Get(context.Context, string) (hash.Hash, bool, error)

	// Set the head of a branch unconditionally
	Set(context.Context, string, hash.Hash) error

	// CompareAndSet sets the head of a branch to next if its current head is expected.
	// A nil expected head means that the branch must not be set.
	CompareAndSet(ctx context.Context, name string, expected *hash.Hash, next hash.Hash) (bool, error)

	// Remove a branch. Removing a branch which is not set is not an error.
	Remove(context.Context, string) error

	// List all branches, in sorted order
	List(context.Context) ([]string, error)
}

// Ancestry knows how commits relate to each other
type Ancestry interface {
	// IsAncestorOf tells if a is an ancestor of b, or equal to it
	IsAncestorOf(ctx context.Context, a, b hash.Hash) (bool, error)
}

// FastForward moves the head of a branch to a candidate commit which descends from the current head.
//
// It returns false, without changing the branch, when the candidate does not descend from the head.
// An unset branch is set to the candidate.
func FastForward(ctx context.Context, table Table, ancestry Ancestry, name string, candidate hash.Hash) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		head, found, err := table.Get(ctx, name)
		if err != nil {
			return false, err
		}

		var expected *hash.Hash
		if found {
			if head == candidate {
				return true, nil
			}
			ok, err := ancestry.IsAncestorOf(ctx, head, candidate)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			expected = &head
		}

		ok, err := table.CompareAndSet(ctx, name, expected, candidate)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		// the head moved meanwhile: check again against the new head
	}
}

func validate(name string) error {
	return model.ValidateBranchName(name)
}

func sameHead(current *hash.Hash, expected *hash.Hash) bool {
	switch {
	case current == nil || expected == nil:
		return current == nil && expected == nil
	default:
		return *current == *expected
	}
}
