// Package pbl implements a storage.Store on top of an embedded pebble database.
package pbl

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/storage"
	"github.com/oneconcern/irmin/pkg/storage/status"
)

var _ storage.Store = &Store{}

// Store is a prefix-confined view of a pebble database.
//
// Pebble has no transactions: exclusive writes are serialized within the process.
type Store struct {
	db     *pebble.DB
	prefix []byte
	mx     sync.Mutex
}

// Open a pebble database. An empty dir opens an in-memory database.
func Open(dir string) (*pebble.DB, error) {
	opts := &pebble.Options{}
	if dir == "" {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	return db, nil
}

// New store on an opened pebble database, with all keys under prefix
func New(db *pebble.DB, prefix string) *Store {
	return &Store{
		db:     db,
		prefix: []byte(prefix),
	}
}

func (s *Store) key(key string) []byte {
	k := make([]byte, 0, len(s.prefix)+len(key))
	k = append(k, s.prefix...)
	return append(k, key...)
}

func (s *Store) String() string {
	return "pebble@" + string(s.prefix)
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, closer, err := s.db.Get(s.key(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, status.ErrStorageAPI.Wrap(err)
	}
	_ = closer.Close()
	return true, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	value, closer, err := s.db.Get(s.key(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, status.ErrNotExists.WrapMessage("key %q", key)
		}
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	// the value is only valid until the closer is called
	buf := make([]byte, len(value))
	copy(buf, value)
	_ = closer.Close()

	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (s *Store) Put(ctx context.Context, key string, rdr io.Reader, exclusive bool) error {
	value, err := io.ReadAll(rdr)
	if err != nil {
		return err
	}
	if exclusive {
		s.mx.Lock()
		defer s.mx.Unlock()

		has, err := s.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			return status.ErrExists.WrapMessage("key %q", key)
		}
	}
	if err := s.db.Set(s.key(key), value, pebble.Sync); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.Delete(s.key(key), pebble.Sync); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.KeysPrefix(ctx, "")
}

func (s *Store) KeysPrefix(ctx context.Context, prefix string) ([]string, error) {
	lower := s.key(prefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upperBound(lower),
	})
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	defer func() { _ = iter.Close() }()

	keys := make([]string, 0, 100)
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys = append(keys, string(iter.Key()[len(s.prefix):]))
	}
	return keys, iter.Error()
}

func (s *Store) Clear(ctx context.Context) error {
	lower := s.key("")
	upper := upperBound(lower)
	if upper == nil {
		// no prefix: the whole key space
		upper = []byte{0xff, 0xff, 0xff, 0xff}
	}
	if err := s.db.DeleteRange(lower, upper, pebble.Sync); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

// upperBound is the smallest key greater than all keys with the given prefix
func upperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
