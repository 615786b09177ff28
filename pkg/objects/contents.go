package objects

import (
	"context"

	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
)

// Contents stores opaque blobs of bytes
type Contents struct {
	s *Store
}

// Hash of some contents, without storing them
func (c *Contents) Hash(data []byte) hash.Hash {
	return c.s.hasher.Sum(hash.Contents, data)
}

// Put stores contents and returns their hash. Putting the same contents again is a no-op.
func (c *Contents) Put(ctx context.Context, data []byte) (hash.Hash, error) {
	h := c.Hash(data)
	if err := c.s.write(ctx, model.ContentsKey(h), data); err != nil {
		return hash.Zero, err
	}
	return h, nil
}

// Get contents by hash. Missing contents yield status.ErrNotFound.
func (c *Contents) Get(ctx context.Context, h hash.Hash) ([]byte, error) {
	return c.s.read(ctx, model.ContentsKey(h))
}

// Has tells if some contents are stored
func (c *Contents) Has(ctx context.Context, h hash.Hash) (bool, error) {
	return c.s.Has(ctx, model.ContentsKey(h))
}
