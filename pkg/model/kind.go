package model

import (
	"fmt"

	"github.com/oneconcern/irmin/pkg/hash"
)

// Kind of a stored object
type Kind uint8

// Object kinds
const (
	KindContents Kind = iota + 1
	KindNode
	KindCommit
)

// Kinds lists all object kinds
var Kinds = []Kind{KindContents, KindNode, KindCommit}

func (k Kind) String() string {
	switch k {
	case KindContents:
		return "contents"
	case KindNode:
		return "node"
	case KindCommit:
		return "commit"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind from its string representation
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, ErrInvalidObjectKey.WrapMessage("unknown object kind %q", s)
}

// Domain used to hash objects of this kind
func (k Kind) Domain() hash.Domain {
	switch k {
	case KindNode:
		return hash.Node
	case KindCommit:
		return hash.Commit
	default:
		return hash.Contents
	}
}

// KindedKey is a hash reference tagged with the kind of object it points to
type KindedKey struct {
	Kind Kind      `json:"kind" cbor:"1,keyasint"`
	Hash hash.Hash `json:"hash" cbor:"2,keyasint"`
}

// ContentsKey makes a kinded key for contents
func ContentsKey(h hash.Hash) KindedKey {
	return KindedKey{Kind: KindContents, Hash: h}
}

// NodeKey makes a kinded key for a node
func NodeKey(h hash.Hash) KindedKey {
	return KindedKey{Kind: KindNode, Hash: h}
}

// CommitKey makes a kinded key for a commit
func CommitKey(h hash.Hash) KindedKey {
	return KindedKey{Kind: KindCommit, Hash: h}
}

func (k KindedKey) String() string {
	return k.Kind.String() + ":" + k.Hash.String()
}
