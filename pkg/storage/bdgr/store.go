// Package bdgr implements a storage.Store on top of an embedded badger database.
//
// A single database may be shared by several stores, each one confined to a key prefix.
package bdgr

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/storage"
	"github.com/oneconcern/irmin/pkg/storage/status"
	"go.uber.org/zap"
)

const conflictRetryInterval = 10 * time.Millisecond

var _ storage.Store = &Store{}

// Store is a prefix-confined view of a badger database
type Store struct {
	db     *badger.DB
	prefix []byte
	l      *zap.Logger
}

// Option for the badger store
type Option func(*Store)

// Prefix confines all keys of this store under some prefix
func Prefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = []byte(prefix)
	}
}

// Logger for this store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.l = l
		}
	}
}

// Open a badger database at some location on the local file system.
//
// An empty dir opens an in-memory database.
func Open(dir string, l *zap.Logger) (*badger.DB, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, status.ErrInvalidResource.Wrap(err)
		}
		opts = badger.DefaultOptions(dir)
	}
	if l == nil {
		l = zap.NewNop()
	}
	opts = opts.
		WithLogger(zapLogger{l: l.Sugar()}).
		WithLoggingLevel(badger.WARNING).
		WithMetricsEnabled(false)

	return badger.Open(opts)
}

// New builds a storage.Store over an opened badger database.
//
// The caller remains responsible for closing the database.
func New(db *badger.DB, opts ...Option) *Store {
	s := &Store{
		db: db,
		l:  zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// DB exposes the underlying database
func (s *Store) DB() *badger.DB {
	return s.db
}

func (s *Store) key(key string) []byte {
	k := make([]byte, 0, len(s.prefix)+len(key))
	k = append(k, s.prefix...)
	return append(k, key...)
}

func (s *Store) String() string {
	return "badger@" + string(s.prefix)
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, e := txn.Get(s.key(key))
		return e
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, status.ErrStorageAPI.Wrap(err)
	}
	return true, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, e := txn.Get(s.key(key))
		if e != nil {
			return e
		}
		value, e = item.ValueCopy(nil)
		return e
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, status.ErrNotExists.WrapMessage("key %q", key)
		}
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	return io.NopCloser(bytes.NewReader(value)), nil
}

// Put writes a value, retrying on transaction conflicts
func (s *Store) Put(ctx context.Context, key string, rdr io.Reader, exclusive bool) error {
	value, err := io.ReadAll(rdr)
	if err != nil {
		return err
	}
	k := s.key(key)

	return backoff.Retry(func() error {
		err := s.db.Update(func(txn *badger.Txn) error {
			if exclusive {
				_, e := txn.Get(k)
				if e == nil {
					return status.ErrExists.WrapMessage("key %q", key)
				}
				if !errors.Is(e, badger.ErrKeyNotFound) {
					return status.ErrStorageAPI.Wrap(e)
				}
			}
			return txn.Set(k, value)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, badger.ErrConflict):
			s.l.Debug("badger conflict on put, retrying", zap.String("key", key))
			return err
		case status.IsExists(err):
			return backoff.Permanent(err)
		default:
			return backoff.Permanent(status.ErrStorageAPI.Wrap(err))
		}
	},
		backoff.WithContext(backoff.NewConstantBackOff(conflictRetryInterval), ctx),
	)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	})
	if err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.KeysPrefix(ctx, "")
}

// KeysPrefix iterates over keys only, in lexicographic order
func (s *Store) KeysPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0, 100)
	seek := s.key(prefix)
	err := s.db.View(func(txn *badger.Txn) error {
		iterator := txn.NewIterator(badger.IteratorOptions{
			Prefix:         seek,
			PrefetchValues: false,
		})
		defer iterator.Close()

		for iterator.Seek(seek); iterator.ValidForPrefix(seek); iterator.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			k := iterator.Item().KeyCopy(nil)
			keys = append(keys, string(k[len(s.prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Clear drops all keys under this store's prefix
func (s *Store) Clear(ctx context.Context) error {
	if len(s.prefix) == 0 {
		return s.db.DropAll()
	}
	return s.db.DropPrefix(s.prefix)
}

// zapLogger relays badger logs to zap
type zapLogger struct {
	l *zap.SugaredLogger
}

func (z zapLogger) Errorf(f string, args ...interface{})   { z.l.Errorf(f, args...) }
func (z zapLogger) Warningf(f string, args ...interface{}) { z.l.Warnf(f, args...) }
func (z zapLogger) Infof(f string, args ...interface{})    { z.l.Infof(f, args...) }
func (z zapLogger) Debugf(f string, args ...interface{})   { z.l.Debugf(f, args...) }
