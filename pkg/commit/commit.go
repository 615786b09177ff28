package commit

import (
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
)

// Commit is an immutable, stored commit
type Commit struct {
	h     hash.Hash
	value model.CommitValue
}

// Hash of the commit
func (c Commit) Hash() hash.Hash {
	return c.h
}

// Key of the commit, as a kinded reference
func (c Commit) Key() model.KindedKey {
	return model.CommitKey(c.h)
}

// TreeHash is the hash of the root tree of the commit
func (c Commit) TreeHash() hash.Hash {
	return c.value.Node
}

// Parents of the commit, in order
func (c Commit) Parents() []hash.Hash {
	parents := make([]hash.Hash, len(c.value.Parents))
	copy(parents, c.value.Parents)
	return parents
}

// Info attached to the commit
func (c Commit) Info() model.Info {
	return c.value.Info
}

// IsZero tells if this is the zero value, which is not a commit
func (c Commit) IsZero() bool {
	return c.h.IsZero()
}

func (c Commit) String() string {
	return c.h.Short()
}

// Hashes of some commits
func Hashes(commits []Commit) []hash.Hash {
	hashes := make([]hash.Hash, 0, len(commits))
	for _, c := range commits {
		hashes = append(hashes, c.h)
	}
	return hashes
}
