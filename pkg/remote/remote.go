package remote

import (
	"context"

	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
)

// Remote is a transport to a branch of another repository
type Remote interface {
	String() string

	// Head of the remote branch, if any
	Head(context.Context) (hash.Hash, bool, error)

	Has(context.Context, model.KindedKey) (bool, error)

	// Get the encoded form of an object. Missing objects are reported as status.ErrNotFound.
	Get(context.Context, model.KindedKey) ([]byte, error)

	// Put the encoded form of an object, which is verified by the remote end
	Put(context.Context, model.KindedKey, []byte) error

	// CompareAndSet moves the remote head if it is still the expected one. A nil expected head means no head.
	CompareAndSet(ctx context.Context, expected *hash.Hash, next hash.Hash) (bool, error)
}

// Result of a synchronization
type Result struct {
	// Head transferred
	Head hash.Hash `json:"head" yaml:"head"`

	// Objects transferred
	Objects int `json:"objects" yaml:"objects"`

	// Updated tells if a push moved the remote head
	Updated bool `json:"updated" yaml:"updated"`
}
