package objects

import (
	"github.com/oneconcern/irmin/pkg/hash"
	"go.uber.org/zap"
)

// Option to configure an object store
type Option func(*Store)

// Hasher specifies the hash algorithm identifying objects. The default is Blake2b.
func Hasher(h hash.Hasher) Option {
	return func(s *Store) {
		if h != nil {
			s.hasher = h
		}
	}
}

// Logger sets a logger on the object store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.l = l
		}
	}
}

// CacheSize sets the number of decoded nodes and commits kept in memory.
// A zero or negative size disables caching.
func CacheSize(size int) Option {
	return func(s *Store) {
		s.cacheSize = size
	}
}

// VerifyHash toggles hash verification when reading objects. Enabled by default.
func VerifyHash(enabled bool) Option {
	return func(s *Store) {
		s.withVerifyHash = enabled
	}
}

// WithMetrics toggles metrics collection on object stores
func WithMetrics(enabled bool) Option {
	return func(s *Store) {
		s.EnableMetrics(enabled)
	}
}
