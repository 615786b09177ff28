package core

import (
	"github.com/oneconcern/irmin/pkg/merge"
	"github.com/oneconcern/irmin/pkg/model"
	opentracing "github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

// Option to open a repository
type Option func(*Repo)

// WithLogger sets the logger of the repository. When not set, a logger is built from the configured log level.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.l = l
		}
	}
}

// WithTracer sets the tracer of repository operations. It defaults to the global opentracing tracer.
func WithTracer(tr opentracing.Tracer) Option {
	return func(r *Repo) {
		if tr != nil {
			r.tracer = tr
		}
	}
}

// WithMetrics toggles metrics collection, overriding the configuration
func WithMetrics(enabled bool) Option {
	return func(r *Repo) {
		r.cfg.Metrics = enabled
	}
}

// WithClock sets the clock dating new commits
func WithClock(clock model.Clock) Option {
	return func(r *Repo) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithResolver sets the default resolver of merge conflicts.
// It defaults to the merge function of the type of contents held by the repository.
func WithResolver(resolver merge.Resolver) Option {
	return func(r *Repo) {
		r.resolver = resolver
		r.customResolver = true
	}
}

// WriteOption alters a single update of a store
type WriteOption func(*writeOptions)

type writeOptions struct {
	metadata   model.Metadata
	allowEmpty bool
}

// WithMetadata sets the metadata of written contents. It defaults to model.DefaultMetadata.
func WithMetadata(m model.Metadata) WriteOption {
	return func(o *writeOptions) {
		o.metadata = m
	}
}

// AllowEmpty records a commit even when the update leaves the tree unchanged
func AllowEmpty(enabled bool) WriteOption {
	return func(o *writeOptions) {
		o.allowEmpty = enabled
	}
}

func writeSettings(opts []WriteOption) writeOptions {
	o := writeOptions{metadata: model.DefaultMetadata}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// PullMode tells how a pull updates the local branch
type PullMode uint8

const (
	// PullMerge fast-forwards the branch to the fetched head when possible, and merges it otherwise
	PullMerge PullMode = iota
	// PullSet moves the branch head to the fetched head unconditionally
	PullSet
)

func (m PullMode) String() string {
	if m == PullSet {
		return "set"
	}
	return "merge"
}
