package branch

import (
	"context"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/errors"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"go.uber.org/zap"
)

const (
	// DefaultBadgerPrefix confines branch heads in a badger database shared with objects
	DefaultBadgerPrefix = "refs/"

	maxConflictRetryTime = 30 * time.Second
)

var _ Table = &Badger{}

// Badger is a branch table stored in a badger database.
//
// Compare-and-set runs in a transaction, so concurrent updates are safe across goroutines.
// Transactions aborted by a conflict are retried.
type Badger struct {
	db     *badger.DB
	prefix string
	l      *zap.Logger
}

// BadgerOption configures a badger branch table
type BadgerOption func(*Badger)

// BadgerPrefix sets the prefix of head keys in the database
func BadgerPrefix(prefix string) BadgerOption {
	return func(b *Badger) {
		b.prefix = prefix
	}
}

// BadgerLogger sets a logger for the badger branch table
func BadgerLogger(l *zap.Logger) BadgerOption {
	return func(b *Badger) {
		if l != nil {
			b.l = l
		}
	}
}

// NewBadger builds a branch table over an opened badger database
func NewBadger(db *badger.DB, opts ...BadgerOption) *Badger {
	b := &Badger{
		db:     db,
		prefix: DefaultBadgerPrefix,
		l:      zap.NewNop(),
	}
	for _, apply := range opts {
		apply(b)
	}
	return b
}

func (b *Badger) key(name string) []byte {
	return []byte(b.prefix + model.GetBranchKey(name))
}

func (b *Badger) Get(_ context.Context, name string) (hash.Hash, bool, error) {
	if err := validate(name); err != nil {
		return hash.Zero, false, err
	}
	var (
		h     hash.Hash
		found bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		h, found, err = b.get(txn, name)
		return err
	})
	return h, found, err
}

func (b *Badger) get(txn *badger.Txn, name string) (hash.Hash, bool, error) {
	item, err := txn.Get(b.key(name))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return hash.Zero, false, nil
		}
		return hash.Zero, false, status.ErrBackend.Wrap(err)
	}
	var h hash.Hash
	err = item.Value(func(v []byte) error {
		var e error
		h, e = hash.FromBytes(v)
		return e
	})
	if err != nil {
		return hash.Zero, false, status.ErrCorruptObject.WrapMessage("head of branch %q: %v", name, err)
	}
	return h, true, nil
}

func (b *Badger) Set(ctx context.Context, name string, h hash.Hash) error {
	if err := validate(name); err != nil {
		return err
	}
	return b.update(ctx, name, func(txn *badger.Txn) error {
		return txn.Set(b.key(name), h.Bytes())
	})
}

func (b *Badger) CompareAndSet(ctx context.Context, name string, expected *hash.Hash, next hash.Hash) (bool, error) {
	if err := validate(name); err != nil {
		return false, err
	}
	var swapped bool
	err := b.update(ctx, name, func(txn *badger.Txn) error {
		swapped = false
		current, found, err := b.get(txn, name)
		if err != nil {
			return err
		}
		var head *hash.Hash
		if found {
			head = &current
		}
		if !sameHead(head, expected) {
			return nil
		}
		if err := txn.Set(b.key(name), next.Bytes()); err != nil {
			return err
		}
		swapped = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (b *Badger) Remove(ctx context.Context, name string) error {
	if err := validate(name); err != nil {
		return err
	}
	return b.update(ctx, name, func(txn *badger.Txn) error {
		return txn.Delete(b.key(name))
	})
}

func (b *Badger) List(ctx context.Context) ([]string, error) {
	prefix := []byte(b.prefix + model.GetBranchKeyPrefix())
	names := make([]string, 0, 10)
	err := b.db.View(func(txn *badger.Txn) error {
		iterator := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer iterator.Close()

		for iterator.Seek(prefix); iterator.ValidForPrefix(prefix); iterator.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(iterator.Item().Key()[len(b.prefix):])
			if name, ok := model.GetBranchFromKey(key); ok {
				names = append(names, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, status.ErrBackend.Wrap(err)
	}
	sort.Strings(names)
	return names, nil
}

// update runs a read-write transaction, retried with backoff when it conflicts with another one
func (b *Badger) update(ctx context.Context, name string, fn func(*badger.Txn) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Millisecond
	policy.MaxElapsedTime = maxConflictRetryTime

	return backoff.Retry(func() error {
		err := b.db.Update(fn)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, badger.ErrConflict):
			b.l.Debug("conflict on branch update, retrying", zap.String("branch", name))
			return err
		case errors.Is(err, status.ErrBackend), errors.Is(err, status.ErrCorruptObject):
			return backoff.Permanent(err)
		default:
			return backoff.Permanent(status.ErrBackend.Wrap(err))
		}
	}, backoff.WithContext(policy, ctx))
}
