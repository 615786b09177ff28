package objects

import (
	"context"
	"time"

	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/metrics"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/storage"
	storagestatus "github.com/oneconcern/irmin/pkg/storage/status"
	"go.uber.org/zap"
)

// DefaultCacheSize is the default number of decoded nodes and commits kept in memory
const DefaultCacheSize = 10000

// Store bundles the contents, node and commit stores sharing one backend
type Store struct {
	backend        storage.Store
	hasher         hash.Hasher
	l              *zap.Logger
	cacheSize      int
	withVerifyHash bool

	Contents *Contents
	Nodes    *Values[model.NodeValue]
	Commits  *Values[model.CommitValue]

	metrics.Enable
	m *M
}

// New object store over some key/blob backend
func New(backend storage.Store, opts ...Option) (*Store, error) {
	s := &Store{
		backend:        backend,
		hasher:         hash.Default(),
		l:              zap.NewNop(),
		cacheSize:      DefaultCacheSize,
		withVerifyHash: true,
	}
	for _, apply := range opts {
		apply(s)
	}

	if s.MetricsEnabled() {
		s.m = s.EnsureMetrics("objects", &M{}).(*M)
	}

	s.Contents = &Contents{s: s}

	var err error
	s.Nodes, err = newValues(s, model.KindNode, prepareNode)
	if err != nil {
		return nil, err
	}
	s.Commits, err = newValues(s, model.KindCommit, prepareCommit)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Backend exposes the underlying key/blob store
func (s *Store) Backend() storage.Store {
	return s.backend
}

// Hasher used to identify objects
func (s *Store) Hasher() hash.Hasher {
	return s.hasher
}

func (s *Store) String() string {
	return "objects(" + s.hasher.Name() + ")@" + s.backend.String()
}

// Has tells if an object is stored
func (s *Store) Has(ctx context.Context, key model.KindedKey) (bool, error) {
	found, err := s.backend.Has(ctx, model.GetObjectKey(key))
	if err != nil {
		return false, backendError(err)
	}
	return found, nil
}

// GetRaw retrieves the encoded form of an object, after verifying its hash
func (s *Store) GetRaw(ctx context.Context, key model.KindedKey) ([]byte, error) {
	return s.read(ctx, key)
}

// PutRaw stores the encoded form of an object.
//
// The data must hash to the key, and nodes and commits must decode to valid values.
// Otherwise PutRaw fails with status.ErrCorruptObject and nothing is stored.
func (s *Store) PutRaw(ctx context.Context, key model.KindedKey, data []byte) error {
	if actual := s.hasher.Sum(key.Kind.Domain(), data); actual != key.Hash {
		return status.ErrCorruptObject.WrapMessage("%v does not match data hashing to %v", key, actual)
	}

	switch key.Kind {
	case model.KindNode:
		if _, err := s.Nodes.decode(data); err != nil {
			return err
		}
	case model.KindCommit:
		if _, err := s.Commits.decode(data); err != nil {
			return err
		}
	case model.KindContents:
	default:
		return status.ErrCorruptObject.WrapMessage("unknown object kind for %v", key)
	}

	return s.write(ctx, key, data)
}

// Keys lists the hashes of all stored objects of some kind
func (s *Store) Keys(ctx context.Context, kind model.Kind) ([]hash.Hash, error) {
	keys, err := s.backend.KeysPrefix(ctx, model.GetObjectKeyPrefix(kind))
	if err != nil {
		return nil, backendError(err)
	}
	hashes := make([]hash.Hash, 0, len(keys))
	for _, key := range keys {
		k, err := model.GetObjectKeyComponents(key)
		if err != nil {
			s.l.Warn("skipping unexpected key in object store", zap.String("key", key), zap.Error(err))
			continue
		}
		hashes = append(hashes, k.Hash)
	}
	return hashes, nil
}

// read an object from the backend and verify its hash
func (s *Store) read(ctx context.Context, key model.KindedKey) (data []byte, err error) {
	if s.MetricsEnabled() {
		defer func(t0 time.Time) {
			s.m.Volume.IO.IORecord(t0, "read")(int64(len(data)), err)
		}(time.Now())
	}

	data, err = storage.ReadAll(ctx, s.backend, model.GetObjectKey(key))
	if err != nil {
		if storagestatus.IsNotExists(err) {
			return nil, status.ErrNotFound.WrapMessage("%v", key)
		}
		return nil, backendError(err)
	}

	if s.withVerifyHash {
		if actual := s.hasher.Sum(key.Kind.Domain(), data); actual != key.Hash {
			s.l.Warn("corrupt object", zap.Stringer("key", key), zap.Stringer("actual", actual))
			if s.MetricsEnabled() {
				s.m.Volume.Cache.Corrupt(key.Kind.String())
			}
			return nil, status.ErrCorruptObject.WrapMessage("%v hashes to %v", key, actual)
		}
	}

	s.l.Debug("read object", zap.Stringer("key", key), zap.Int("size", len(data)))
	if s.MetricsEnabled() {
		s.m.Volume.Objects.Inc(key.Kind.String(), "read")
	}
	return data, nil
}

// write an object to the backend. Writing an existing object is a no-op.
func (s *Store) write(ctx context.Context, key model.KindedKey, data []byte) (err error) {
	if s.MetricsEnabled() {
		defer func(t0 time.Time) {
			s.m.Volume.IO.IORecord(t0, "write")(int64(len(data)), err)
		}(time.Now())
	}

	err = storage.PutBytes(ctx, s.backend, model.GetObjectKey(key), data, storage.NoOverWrite)
	switch {
	case err == nil:
		s.l.Debug("stored object", zap.Stringer("key", key), zap.Int("size", len(data)))
		if s.MetricsEnabled() {
			s.m.Volume.Objects.Inc(key.Kind.String(), "write")
			s.m.Volume.Objects.Size(int64(len(data)), key.Kind.String(), "write")
		}
		return nil
	case storagestatus.IsExists(err):
		// concurrent writers of the same object converge to one stored object
		if s.MetricsEnabled() {
			s.m.Volume.Cache.Duplicate(key.Kind.String())
		}
		return nil
	default:
		return backendError(err)
	}
}

func backendError(err error) error {
	return status.ErrBackend.Wrap(err)
}
