package remote

import (
	"go.uber.org/zap"
)

// DefaultConcurrency is the number of objects transferred in parallel
const DefaultConcurrency = 16

// Option for a synchronizer
type Option func(*Sync)

// Logger for the synchronizer
func Logger(l *zap.Logger) Option {
	return func(s *Sync) {
		if l != nil {
			s.l = l
		}
	}
}

// Concurrency sets the number of objects transferred in parallel. It defaults to DefaultConcurrency.
func Concurrency(n int) Option {
	return func(s *Sync) {
		if n <= 0 {
			n = DefaultConcurrency
		}
		s.concurrency = n
	}
}

// WithMetrics toggles metrics collection on transfers
func WithMetrics(enabled bool) Option {
	return func(s *Sync) {
		s.EnableMetrics(enabled)
	}
}
