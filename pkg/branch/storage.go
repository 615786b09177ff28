package branch

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/oneconcern/irmin/pkg/core/status"
	"github.com/oneconcern/irmin/pkg/hash"
	"github.com/oneconcern/irmin/pkg/model"
	"github.com/oneconcern/irmin/pkg/storage"
	storagestatus "github.com/oneconcern/irmin/pkg/storage/status"
)

var _ Table = &Storage{}

// Storage is a branch table persisted on a key/blob store, as "heads/<branch>" keys holding
// the hex representation of the head.
//
// Updates are serialized by a lock local to this process. A Locker shared with other processes,
// such as a localfs.FileLock next to the heads, extends this to several processes.
// Reads take no lock: the store must replace a key atomically (e.g. localfs.NewAtomic).
//
// Since a head may be stored as a file, a branch name may not be a parent directory of
// another one: with "a/b" set, "a" is rejected, and the other way round.
type Storage struct {
	store  storage.Store
	mu     sync.Mutex
	locker Locker
}

// Locker excludes concurrent updaters of a branch table, possibly across processes
type Locker interface {
	Lock(context.Context) (func() error, error)
}

// StorageOption configures a branch table persisted on a key/blob store
type StorageOption func(*Storage)

// StorageLocker guards updates with a lock shared with other processes
func StorageLocker(locker Locker) StorageOption {
	return func(s *Storage) {
		s.locker = locker
	}
}

// NewStorage builds a branch table over a key/blob store
func NewStorage(store storage.Store, opts ...StorageOption) *Storage {
	s := &Storage{store: store}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// lock acquires the local lock, then the shared one
func (s *Storage) lock(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if s.locker == nil {
		return s.mu.Unlock, nil
	}
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, status.ErrBackend.Wrap(err)
	}
	return func() {
		_ = unlock()
		s.mu.Unlock()
	}, nil
}

func (s *Storage) Get(ctx context.Context, name string) (hash.Hash, bool, error) {
	if err := validate(name); err != nil {
		return hash.Zero, false, err
	}
	return s.get(ctx, name)
}

func (s *Storage) get(ctx context.Context, name string) (hash.Hash, bool, error) {
	data, err := storage.ReadAll(ctx, s.store, model.GetBranchKey(name))
	if err != nil {
		if storagestatus.IsNotExists(err) {
			return hash.Zero, false, nil
		}
		return hash.Zero, false, status.ErrBackend.Wrap(err)
	}
	h, err := hash.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return hash.Zero, false, status.ErrCorruptObject.WrapMessage("head of branch %q: %v", name, err)
	}
	return h, true, nil
}

func (s *Storage) Set(ctx context.Context, name string, h hash.Hash) error {
	if err := validate(name); err != nil {
		return err
	}
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return s.set(ctx, name, h)
}

func (s *Storage) set(ctx context.Context, name string, h hash.Hash) error {
	if err := s.checkNesting(ctx, name); err != nil {
		return err
	}
	if err := storage.PutBytes(ctx, s.store, model.GetBranchKey(name), []byte(h.String()), storage.OverWrite); err != nil {
		return status.ErrBackend.Wrap(err)
	}
	return nil
}

func (s *Storage) CompareAndSet(ctx context.Context, name string, expected *hash.Hash, next hash.Hash) (bool, error) {
	if err := validate(name); err != nil {
		return false, err
	}
	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	current, found, err := s.get(ctx, name)
	if err != nil {
		return false, err
	}
	var head *hash.Hash
	if found {
		head = &current
	}
	if !sameHead(head, expected) {
		return false, nil
	}
	if err := s.set(ctx, name, next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storage) Remove(ctx context.Context, name string) error {
	if err := validate(name); err != nil {
		return err
	}
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.store.Delete(ctx, model.GetBranchKey(name))
	if err != nil && !storagestatus.IsNotExists(err) {
		return status.ErrBackend.Wrap(err)
	}
	return nil
}

// checkNesting rejects a name which is a parent directory of another branch, or the other way round
func (s *Storage) checkNesting(ctx context.Context, name string) error {
	for i := strings.LastIndex(name, "/"); i > 0; i = strings.LastIndex(name[:i], "/") {
		parent := name[:i]
		has, err := s.store.Has(ctx, model.GetBranchKey(parent))
		if err != nil {
			return status.ErrBackend.Wrap(err)
		}
		if has {
			return status.ErrInvalidBranch.WrapMessage("branch %q is nested under branch %q", name, parent)
		}
	}
	nested, err := s.store.KeysPrefix(ctx, model.GetBranchKey(name)+"/")
	if err != nil {
		return status.ErrBackend.Wrap(err)
	}
	if len(nested) > 0 {
		child, _ := model.GetBranchFromKey(nested[0])
		return status.ErrInvalidBranch.WrapMessage("branch %q has nested branch %q", name, child)
	}
	return nil
}

func (s *Storage) List(ctx context.Context) ([]string, error) {
	keys, err := s.store.KeysPrefix(ctx, model.GetBranchKeyPrefix())
	if err != nil {
		return nil, status.ErrBackend.Wrap(err)
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if name, ok := model.GetBranchFromKey(key); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
