package branch

import (
	"context"
	"sort"
	"sync"

	"github.com/oneconcern/irmin/pkg/hash"
	"go.uber.org/atomic"
)

var _ Table = &Memory{}

// Memory is a branch table held in memory.
//
// Each branch head is an atomic pointer: reads and compare-and-set never take a lock,
// except to register a branch seen for the first time.
type Memory struct {
	mu    sync.RWMutex
	heads map[string]*atomic.Pointer[hash.Hash]
}

// NewMemory builds an empty in-memory branch table
func NewMemory() *Memory {
	return &Memory{
		heads: make(map[string]*atomic.Pointer[hash.Hash]),
	}
}

func (m *Memory) head(name string, create bool) *atomic.Pointer[hash.Hash] {
	m.mu.RLock()
	p, ok := m.heads[name]
	m.mu.RUnlock()
	if ok || !create {
		return p
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok = m.heads[name]; ok {
		return p
	}
	p = atomic.NewPointer[hash.Hash](nil)
	m.heads[name] = p
	return p
}

func (m *Memory) Get(_ context.Context, name string) (hash.Hash, bool, error) {
	if err := validate(name); err != nil {
		return hash.Zero, false, err
	}
	p := m.head(name, false)
	if p == nil {
		return hash.Zero, false, nil
	}
	h := p.Load()
	if h == nil {
		return hash.Zero, false, nil
	}
	return *h, true, nil
}

func (m *Memory) Set(_ context.Context, name string, h hash.Hash) error {
	if err := validate(name); err != nil {
		return err
	}
	m.head(name, true).Store(&h)
	return nil
}

func (m *Memory) CompareAndSet(_ context.Context, name string, expected *hash.Hash, next hash.Hash) (bool, error) {
	if err := validate(name); err != nil {
		return false, err
	}
	p := m.head(name, true)
	for {
		current := p.Load()
		if !sameHead(current, expected) {
			return false, nil
		}
		// pointers are never reused: a successful swap proves nobody moved the head since Load
		if p.CompareAndSwap(current, &next) {
			return true, nil
		}
	}
}

func (m *Memory) Remove(_ context.Context, name string) error {
	if err := validate(name); err != nil {
		return err
	}
	if p := m.head(name, false); p != nil {
		p.Store(nil)
	}
	return nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.heads))
	for name, p := range m.heads {
		if p.Load() != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
