package objects

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oneconcern/irmin/pkg/codec"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
)

// Values stores structured objects (nodes or commits) in their canonical encoding.
//
// Decoded values are shared with the cache: callers must not mutate them.
type Values[V any] struct {
	s       *Store
	kind    model.Kind
	prepare func(V) (V, error)
	cache   *lru.Cache[hash.Hash, V]
}

func newValues[V any](s *Store, kind model.Kind, prepare func(V) (V, error)) (*Values[V], error) {
	v := &Values[V]{
		s:       s,
		kind:    kind,
		prepare: prepare,
	}
	if s.cacheSize > 0 {
		cache, err := lru.New[hash.Hash, V](s.cacheSize)
		if err != nil {
			return nil, err
		}
		v.cache = cache
	}
	return v, nil
}

// Encode a value to its canonical form and hash it, without storing it
func (v *Values[V]) Encode(value V) (hash.Hash, []byte, error) {
	h, data, _, err := v.encode(value)
	return h, data, err
}

func (v *Values[V]) encode(value V) (hash.Hash, []byte, V, error) {
	prepared, err := v.prepare(value)
	if err != nil {
		return hash.Zero, nil, prepared, err
	}
	data, err := codec.Marshal(prepared)
	if err != nil {
		return hash.Zero, nil, prepared, err
	}
	return v.s.hasher.Sum(v.kind.Domain(), data), data, prepared, nil
}

// Hash of a value, without storing it
func (v *Values[V]) Hash(value V) (hash.Hash, error) {
	h, _, err := v.Encode(value)
	return h, err
}

// Put stores a value and returns its hash. Putting the same value again is a no-op.
func (v *Values[V]) Put(ctx context.Context, value V) (hash.Hash, error) {
	h, data, prepared, err := v.encode(value)
	if err != nil {
		return hash.Zero, err
	}
	if err = v.s.write(ctx, model.KindedKey{Kind: v.kind, Hash: h}, data); err != nil {
		return hash.Zero, err
	}
	if v.cache != nil {
		v.cache.Add(h, prepared)
	}
	return h, nil
}

// Get a value by hash. Missing values yield status.ErrNotFound, values which do not
// decode or do not match their hash yield status.ErrCorruptObject.
func (v *Values[V]) Get(ctx context.Context, h hash.Hash) (V, error) {
	if v.cache != nil {
		if value, ok := v.cache.Get(h); ok {
			if v.s.MetricsEnabled() {
				v.s.m.Volume.Cache.Hit(v.kind.String())
			}
			return value, nil
		}
		if v.s.MetricsEnabled() {
			v.s.m.Volume.Cache.Miss(v.kind.String())
		}
	}

	var zero V
	data, err := v.s.read(ctx, model.KindedKey{Kind: v.kind, Hash: h})
	if err != nil {
		return zero, err
	}
	value, err := v.decode(data)
	if err != nil {
		return zero, err
	}
	if v.cache != nil {
		v.cache.Add(h, value)
	}
	return value, nil
}

// Has tells if a value is stored
func (v *Values[V]) Has(ctx context.Context, h hash.Hash) (bool, error) {
	if v.cache != nil && v.cache.Contains(h) {
		return true, nil
	}
	return v.s.Has(ctx, model.KindedKey{Kind: v.kind, Hash: h})
}

// Decode the encoded form of a value, as transferred from a remote.
// Undecodable or invalid values are reported as status.ErrCorruptObject.
func (v *Values[V]) Decode(data []byte) (V, error) {
	return v.decode(data)
}

func (v *Values[V]) decode(data []byte) (V, error) {
	var value V
	if err := codec.Unmarshal(data, &value); err != nil {
		return value, status.ErrCorruptObject.WrapMessage("cannot decode %v: %v", v.kind, err)
	}
	prepared, err := v.prepare(value)
	if err != nil {
		return value, status.ErrCorruptObject.Wrap(err)
	}
	return prepared, nil
}

// prepareNode sorts entries on a copy of the node, then validates it
func prepareNode(n model.NodeValue) (model.NodeValue, error) {
	sorted := model.NodeValue{Entries: make([]model.NodeEntry, len(n.Entries))}
	copy(sorted.Entries, n.Entries)
	sorted.Sort()
	if err := sorted.Validate(); err != nil {
		return n, err
	}
	return sorted, nil
}

func prepareCommit(c model.CommitValue) (model.CommitValue, error) {
	if c.Node.IsZero() {
		return c, status.ErrCorruptObject.WrapMessage("commit without a root node")
	}
	if len(c.Parents) == 0 {
		c.Parents = nil
	}
	return c, nil
}
